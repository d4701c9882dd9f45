package flows

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

var (
	errRejected  = errors.New("rejected")
	errMalformed = errors.New("malformed")
	errDeclined  = errors.New("declined")
)

func newDeps(t *testing.T, h http.HandlerFunc) Deps {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL + "/api/")
	if err != nil {
		t.Fatalf("parse base url: %v", err)
	}
	return Deps{
		BaseURL:   base,
		Endpoints: DefaultEndpoints(),
		Headers:   http.Header{"X-Client": []string{"test"}},
		Pipeline:  srv.Client(),
		Raw:       srv.Client(),
		Errors:    Errors{Rejected: errRejected, Malformed: errMalformed, Declined: errDeclined},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRunLoginDecodesGrant(t *testing.T) {
	deps := newDeps(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Client") != "test" {
			t.Errorf("configured header missing")
		}
		var creds Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email != "a@b.c" {
			t.Errorf("unexpected body %+v (%v)", creds, err)
		}
		_, _ = io.WriteString(w, `{"success":true,"data":{"token":"t1","user":{"id":7,"role":"user","email":"a@b.c"},"expires_in":3600}}`)
	})

	grant, err := RunLogin(context.Background(), Credentials{Email: "a@b.c", Password: "pw"}, deps)
	if err != nil {
		t.Fatalf("RunLogin: %v", err)
	}
	if grant.Token != "t1" || grant.User.ID != "7" || grant.User.Role != "user" || grant.ExpiresIn != 3600 {
		t.Fatalf("unexpected grant %+v", grant)
	}
	var email string
	if !grant.User.Field("email", &email) || email != "a@b.c" {
		t.Fatalf("extra user fields not preserved")
	}
}

func TestRunLoginRejectedEnvelope(t *testing.T) {
	deps := newDeps(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "bad credentials"})
	})

	_, err := RunLogin(context.Background(), Credentials{}, deps)
	if !errors.Is(err, errRejected) {
		t.Fatalf("expected rejected, got %v", err)
	}
}

func TestRunLoginHTTPError(t *testing.T) {
	deps := newDeps(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"success": false, "message": "email required"})
	})

	_, err := RunLogin(context.Background(), Credentials{}, deps)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Message != "email required" {
		t.Fatalf("unexpected APIError %+v", apiErr)
	}
	if StatusOf(err) != http.StatusUnprocessableEntity {
		t.Fatalf("StatusOf mismatch")
	}
}

func TestRunLoginMalformed(t *testing.T) {
	deps := newDeps(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>`)
	})
	if _, err := RunLogin(context.Background(), Credentials{}, deps); !errors.Is(err, errMalformed) {
		t.Fatalf("expected malformed, got %v", err)
	}

	deps = newDeps(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"data":{"user":{"id":1}}}`)
	})
	if _, err := RunLogin(context.Background(), Credentials{}, deps); !errors.Is(err, errMalformed) {
		t.Fatalf("expected malformed for tokenless grant, got %v", err)
	}
}

func TestRunRegister(t *testing.T) {
	deps := newDeps(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"message":"created"}`)
	})
	res, err := RunRegister(context.Background(), Registration{Email: "a@b.c"}, deps)
	if err != nil {
		t.Fatalf("RunRegister: %v", err)
	}
	if res.Grant != nil || res.Message != "created" {
		t.Fatalf("unexpected result %+v", res)
	}

	deps = newDeps(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"data":{"token":"t9","user":{"id":"9","role":"user"},"expires_in":60}}`)
	})
	res, err = RunRegister(context.Background(), Registration{Email: "a@b.c"}, deps)
	if err != nil {
		t.Fatalf("RunRegister: %v", err)
	}
	if res.Grant == nil || res.Grant.Token != "t9" {
		t.Fatalf("expected grant, got %+v", res)
	}
}

func TestRunRefreshUsesExplicitBearer(t *testing.T) {
	deps := newDeps(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/refresh" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer t1" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"data":{"token":"t2","user":{"id":7,"role":"user"},"expires_in":3600}}`)
	})

	grant, err := RunRefresh(context.Background(), "t1", deps)
	if err != nil {
		t.Fatalf("RunRefresh: %v", err)
	}
	if grant.Token != "t2" {
		t.Fatalf("unexpected token %q", grant.Token)
	}

	if _, err := RunRefresh(context.Background(), "stale", deps); StatusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}

func TestRunRefreshUsesConfiguredAuthHeader(t *testing.T) {
	deps := newDeps(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("default header must not be sent when another is configured")
		}
		if got := r.Header.Get("X-Auth"); got != "Bearer t1" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false})
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"data":{"token":"t2","user":{"id":7,"role":"user"},"expires_in":3600}}`)
	})
	deps.AuthHeader = "X-Auth"

	grant, err := RunRefresh(context.Background(), "t1", deps)
	if err != nil {
		t.Fatalf("RunRefresh: %v", err)
	}
	if grant.Token != "t2" {
		t.Fatalf("unexpected token %q", grant.Token)
	}
}

func TestRunRefreshDeclined(t *testing.T) {
	deps := newDeps(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"message":"session revoked"}`)
	})

	_, err := RunRefresh(context.Background(), "t1", deps)
	if !errors.Is(err, errDeclined) {
		t.Fatalf("expected declined, got %v", err)
	}
	if errors.Is(err, errRejected) {
		t.Fatalf("refresh must not report generic rejection")
	}
}

func TestRunMeShapes(t *testing.T) {
	for name, body := range map[string]string{
		"wrapped": `{"success":true,"data":{"user":{"id":3,"role":"super_admin"}}}`,
		"flat":    `{"success":true,"data":{"id":3,"role":"super_admin"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			deps := newDeps(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET, got %s", r.Method)
				}
				_, _ = io.WriteString(w, body)
			})
			user, err := RunMe(context.Background(), deps)
			if err != nil {
				t.Fatalf("RunMe: %v", err)
			}
			if user.ID != "3" || user.Role != "super_admin" {
				t.Fatalf("unexpected user %+v", user)
			}
		})
	}
}

func TestRunLogoutPropagatesError(t *testing.T) {
	deps := newDeps(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if err := RunLogout(context.Background(), deps); StatusOf(err) != http.StatusInternalServerError {
		t.Fatalf("expected 500 APIError, got %v", err)
	}
}
