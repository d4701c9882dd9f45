package goAuthClient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// raceAPI answers login with t1, accepts only renewed tokens (r1, r2, ...) on
// /ip-addresses, and parks every refresh call on gate until released.
type raceAPI struct {
	refreshes atomic.Int32
	entered   chan struct{}
	gate      chan struct{}
}

func newRaceAPI() *raceAPI {
	return &raceAPI{
		entered: make(chan struct{}, 8),
		gate:    make(chan struct{}),
	}
}

func (a *raceAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, scenarioLogin)
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		n := a.refreshes.Add(1)
		a.entered <- struct{}{}
		<-a.gate
		_, _ = fmt.Fprintf(w, `{"success":true,"data":{"token":"r%d","user":{"id":7,"role":"user"},"expires_in":3600}}`, n)
	})
	mux.HandleFunc("GET /ip-addresses", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer r") {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"success":false}`)
			return
		}
		_, _ = io.WriteString(w, `{"success":true}`)
	})
	return mux
}

func (a *raceAPI) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-a.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh call did not arrive")
	}
}

func TestProactiveAndReactiveRenewalLastWriteWins(t *testing.T) {
	api := newRaceAPI()
	h := newHarness(t, api.handler(), nil, nil)
	ctx := context.Background()

	_, err := h.client.Login(ctx, Credentials{Email: "user@example.com", Password: "secret"})
	require.NoError(t, err)

	h.clock.Add(3540 * time.Second)
	api.waitEntered(t)

	var (
		wg     sync.WaitGroup
		status int
		reqErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		resp, err := h.client.HTTPClient().Get(h.server.URL + "/ip-addresses")
		if err != nil {
			reqErr = err
			return
		}
		status = resp.StatusCode
		resp.Body.Close()
	}()
	api.waitEntered(t)

	close(api.gate)
	wg.Wait()

	require.NoError(t, reqErr)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int32(2), api.refreshes.Load(), "both paths called the refresh endpoint")

	require.Eventually(t, func() bool {
		_, pending := h.client.RenewalDue()
		return pending
	}, 2*time.Second, 5*time.Millisecond)

	sess := h.session(t)
	require.NotNil(t, sess)
	assert.Contains(t, []string{"r1", "r2"}, sess.Token, "one of the two renewals is the last write")
	assert.True(t, sess.Authenticated())
}

func TestSerializedRenewalsCoalesce(t *testing.T) {
	api := newRaceAPI()
	h := newHarness(t, api.handler(), nil, func(cfg *Config) {
		cfg.Renewal.Serialize = true
	})
	ctx := context.Background()

	_, err := h.client.Login(ctx, Credentials{Email: "user@example.com", Password: "secret"})
	require.NoError(t, err)

	h.clock.Add(3540 * time.Second)
	api.waitEntered(t)

	var (
		wg     sync.WaitGroup
		status int
		reqErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		resp, err := h.client.HTTPClient().Get(h.server.URL + "/ip-addresses")
		if err != nil {
			reqErr = err
			return
		}
		status = resp.StatusCode
		resp.Body.Close()
	}()

	// Let the reactive path join the in-flight renewal before releasing it.
	time.Sleep(100 * time.Millisecond)

	close(api.gate)
	wg.Wait()

	require.NoError(t, reqErr)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int32(1), api.refreshes.Load(), "one refresh call serves both paths")

	sess := h.session(t)
	require.NotNil(t, sess)
	assert.Equal(t, "r1", sess.Token)
}

func TestCancelledRequestDoesNotEndSerializedRenewal(t *testing.T) {
	api := newRaceAPI()
	h := newHarness(t, api.handler(), nil, func(cfg *Config) {
		cfg.Renewal.Serialize = true
	})

	_, err := h.client.Login(context.Background(), Credentials{Email: "user@example.com", Password: "secret"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.server.URL+"/ip-addresses", nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		resp, err := h.client.HTTPClient().Do(req)
		if resp != nil {
			resp.Body.Close()
		}
		done <- err
	}()
	api.waitEntered(t)

	cancel()
	close(api.gate)

	err = <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	sess := h.session(t)
	require.NotNil(t, sess, "abandoned request must not log the user out")
	assert.Equal(t, "r1", sess.Token)
	assert.True(t, sess.Authenticated())
}
