package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/router"
	"github.com/MrEthical07/goAuthClient/session"
)

// Default header names.
const (
	DefaultAuthHeader     = "Authorization"
	DefaultTrackingHeader = "X-Session-ID"
)

// Hooks observe recovery. All fields are optional.
type Hooks struct {
	OnRetry        func(req *http.Request)
	OnRenewed      func(ctx context.Context, grant session.Grant)
	OnSessionEnded func(ctx context.Context, err error)
}

// Config wires a Transport. Store and Renewer are required.
type Config struct {
	Base           http.RoundTripper
	Store          session.Store
	Renewer        refresh.Renewer
	Navigator      router.Navigator
	LoginPath      string
	AuthHeader     string
	TrackingHeader string
	Logger         *zerolog.Logger
	Hooks          Hooks

	// Lifetime resolves the validity of a renewed grant. Defaults to expires_in.
	Lifetime func(session.Grant) time.Duration
}

// Transport is the request pipeline.
type Transport struct {
	cfg Config
}

// New panics when Store or Renewer is missing.
func New(cfg Config) *Transport {
	if cfg.Store == nil || cfg.Renewer == nil {
		panic("transport: pipeline requires store and renewer")
	}
	if cfg.Base == nil {
		cfg.Base = http.DefaultTransport
	}
	if cfg.Navigator == nil {
		cfg.Navigator = router.NopNavigator{}
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = router.DefaultPaths().Login
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = DefaultAuthHeader
	}
	if cfg.TrackingHeader == "" {
		cfg.TrackingHeader = DefaultTrackingHeader
	}
	if cfg.Lifetime == nil {
		cfg.Lifetime = session.Grant.Lifetime
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	return &Transport{cfg: cfg}
}

// Base returns the transport the pipeline delegates to.
func (t *Transport) Base() http.RoundTripper {
	return t.cfg.Base
}

type retriedKey struct{}

func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

// Retried reports whether req is the re-issue of a request that already went
// through recovery.
func Retried(req *http.Request) bool {
	v, _ := req.Context().Value(retriedKey{}).(bool)
	return v
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out, err := t.outbound(req)
	if err != nil {
		closeBody(req)
		return nil, err
	}

	resp, err := t.cfg.Base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || Retried(req) {
		return resp, nil
	}
	return t.recover(req, resp)
}

func (t *Transport) outbound(req *http.Request) (*http.Request, error) {
	ctx := req.Context()

	sess, err := t.cfg.Store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: read session: %w", err)
	}
	trackingID, err := t.cfg.Store.GetOrCreateTrackingID(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: tracking id: %w", err)
	}

	out := req.Clone(ctx)
	if sess != nil && sess.Token != "" {
		out.Header.Set(t.cfg.AuthHeader, "Bearer "+sess.Token)
	}
	if trackingID != "" {
		out.Header.Set(t.cfg.TrackingHeader, trackingID)
	}
	return out, nil
}

func (t *Transport) recover(req *http.Request, resp *http.Response) (*http.Response, error) {
	ctx := req.Context()
	log := t.cfg.Logger

	sess, err := t.cfg.Store.Get(ctx)
	if err != nil || sess == nil || sess.Token == "" {
		return resp, nil
	}

	body, replayable := rewind(req)
	if !replayable {
		log.Debug().Str("url", req.URL.Redacted()).Msg("authentication failure not retried: body cannot be replayed")
		return resp, nil
	}

	// The renewal outlives the caller: a rotated token must be stored even if
	// the request that noticed the 401 gives up.
	renewCtx := context.WithoutCancel(ctx)
	grant, err := t.cfg.Renewer.Renew(renewCtx, sess.Token)
	if errors.Is(err, refresh.ErrDeclined) {
		if body != nil {
			_ = body.Close()
		}
		return resp, nil
	}
	discard(resp)
	if err != nil {
		if body != nil {
			_ = body.Close()
		}
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}
		t.endSession(renewCtx, err)
		return nil, err
	}

	if err := t.cfg.Store.Set(renewCtx, grant.Token, grant.User, t.cfg.Lifetime(grant)); err != nil {
		if body != nil {
			_ = body.Close()
		}
		return nil, fmt.Errorf("transport: store renewed session: %w", err)
	}
	if t.cfg.Hooks.OnRenewed != nil {
		t.cfg.Hooks.OnRenewed(renewCtx, grant)
	}

	if err := ctx.Err(); err != nil {
		if body != nil {
			_ = body.Close()
		}
		log.Debug().Str("url", req.URL.Redacted()).Msg("retry skipped: caller went away during renewal")
		return nil, err
	}

	retry := req.Clone(markRetried(ctx))
	retry.Body = body
	if t.cfg.Hooks.OnRetry != nil {
		t.cfg.Hooks.OnRetry(retry)
	}
	log.Debug().Str("url", req.URL.Redacted()).Msg("retrying request after renewal")

	return t.RoundTrip(retry)
}

func (t *Transport) endSession(ctx context.Context, cause error) {
	t.cfg.Logger.Warn().Err(cause).Msg("renewal after authentication failure failed; ending session")

	if err := t.cfg.Store.Clear(ctx); err != nil {
		t.cfg.Logger.Error().Err(err).Msg("session clear failed")
	}
	t.cfg.Navigator.Navigate(ctx, router.Location{Path: t.cfg.LoginPath, Replace: true})

	if t.cfg.Hooks.OnSessionEnded != nil {
		t.cfg.Hooks.OnSessionEnded(ctx, cause)
	}
}

// rewind returns a fresh copy of the request body. A request without a body is
// trivially replayable.
func rewind(req *http.Request) (io.ReadCloser, bool) {
	if req.Body == nil || req.Body == http.NoBody {
		return req.Body, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	return body, true
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
