package goAuthClient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/internal/flows"
	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/router"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/MrEthical07/goAuthClient/transport"
)

// Credentials is the login payload.
type Credentials = flows.Credentials

// Registration is the register payload.
type Registration = flows.Registration

// Client owns one session: its store, its renewal timer, its request pipeline,
// and its route guard.
type Client struct {
	cfg       Config
	store     session.Store
	navigator router.Navigator
	guard     *router.Guard
	scheduler *refresh.Scheduler
	transport *transport.Transport
	http      *http.Client
	deps      flows.Deps
	renewals  *singleflight.Group

	clock   clock.Clock
	logger  *zerolog.Logger
	metrics *Metrics
	audit   *audit.Dispatcher
}

// Login exchanges credentials for a session, persists it, and starts the
// renewal chain. A success=false answer leaves the store untouched and returns
// [ErrRejected].
func (c *Client) Login(ctx context.Context, creds Credentials) (*session.Session, error) {
	grant, err := flows.RunLogin(ctx, creds, c.deps)
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.emitAudit(ctx, AuditLoginFailure, nil, err, nil)
		return nil, err
	}

	sess, err := c.establish(ctx, grant)
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.emitAudit(ctx, AuditLoginFailure, nil, err, nil)
		return nil, err
	}

	c.metrics.Inc(MetricLoginSuccess)
	c.emitAudit(ctx, AuditLoginSuccess, sess, nil, nil)
	c.logger.Info().Str("tracking_id", sess.TrackingID).Str("user_id", sess.User.ID).Msg("logged in")
	return sess, nil
}

// Register creates an account. When the server issues a session with the
// account it is established exactly like a login; otherwise the returned
// session is nil and the store is untouched.
func (c *Client) Register(ctx context.Context, reg Registration) (*session.Session, error) {
	res, err := flows.RunRegister(ctx, reg, c.deps)
	if err != nil {
		c.metrics.Inc(MetricRegisterFailure)
		c.emitAudit(ctx, AuditRegister, nil, err, nil)
		return nil, err
	}

	var sess *session.Session
	if res.Grant != nil {
		sess, err = c.establish(ctx, *res.Grant)
		if err != nil {
			c.metrics.Inc(MetricRegisterFailure)
			c.emitAudit(ctx, AuditRegister, nil, err, nil)
			return nil, err
		}
	}

	c.metrics.Inc(MetricRegisterSuccess)
	c.emitAudit(ctx, AuditRegister, sess, nil, map[string]string{"session": boolString(sess != nil)})
	return sess, nil
}

func (c *Client) establish(ctx context.Context, grant session.Grant) (*session.Session, error) {
	lifetime := c.lifetime(grant)
	if err := c.store.Set(ctx, grant.Token, grant.User, lifetime); err != nil {
		return nil, err
	}
	if _, err := c.store.GetOrCreateTrackingID(ctx); err != nil {
		return nil, err
	}

	if lifetime > 0 {
		c.scheduler.Schedule(lifetime)
	} else {
		c.scheduler.Cancel()
		c.logger.Warn().Msg("grant carries no expiry; proactive renewal disabled")
	}

	return c.store.Get(ctx)
}

// Logout notifies the server, then clears the store and cancels the renewal
// timer whatever the server answered. The call error is returned.
func (c *Client) Logout(ctx context.Context) error {
	sess, _ := c.store.Get(ctx)

	callErr := flows.RunLogout(ctx, c.deps)

	c.scheduler.Cancel()
	clearErr := c.store.Clear(ctx)

	c.metrics.Inc(MetricLogout)
	c.emitAudit(ctx, AuditLogout, sess, callErr, nil)
	if callErr != nil {
		c.logger.Warn().Err(callErr).Msg("logout call failed; local session cleared")
		return callErr
	}
	return clearErr
}

// Me fetches the current user from the server through the pipeline.
func (c *Client) Me(ctx context.Context) (session.User, error) {
	return flows.RunMe(ctx, c.deps)
}

// Refresh renews the session now and restarts the renewal chain from the new
// grant. It returns [ErrNoSession] without a stored token.
func (c *Client) Refresh(ctx context.Context) error {
	return c.scheduler.RenewNow(ctx)
}

// Resume restarts the renewal chain for a session persisted by an earlier
// process. An already expired session is renewed immediately. It returns nil
// without a stored session.
func (c *Client) Resume(ctx context.Context) (*session.Session, error) {
	sess, err := c.store.Get(ctx)
	if err != nil || sess == nil {
		return nil, err
	}

	expiresAt := sess.ExpiresAt
	if expiresAt.IsZero() && c.cfg.Renewal.DeriveFromToken {
		if at, err := jwt.ExpiresAt(sess.Token); err == nil {
			expiresAt = at
		}
	}
	if expiresAt.IsZero() {
		c.logger.Warn().Str("tracking_id", sess.TrackingID).Msg("resumed session has no expiry; proactive renewal disabled")
		return sess, nil
	}

	remaining := expiresAt.Sub(c.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	c.scheduler.Schedule(remaining)
	return sess, nil
}

// Session returns the stored session, or nil.
func (c *Client) Session(ctx context.Context) (*session.Session, error) {
	return c.store.Get(ctx)
}

// TrackingID returns the session-tracking id, creating one if none is stored.
func (c *Client) TrackingID(ctx context.Context) (string, error) {
	return c.store.GetOrCreateTrackingID(ctx)
}

// Check returns the guard decision for location without navigating.
func (c *Client) Check(ctx context.Context, location string) router.Decision {
	return c.guard.Check(ctx, location)
}

// Navigate runs the guard for location, follows redirects, and delivers the
// final location to the navigator.
func (c *Client) Navigate(ctx context.Context, location string) (router.Location, error) {
	to, err := c.guard.Navigate(ctx, c.navigator, location)
	if err != nil {
		return router.Location{}, err
	}
	if to.Path == router.Clean(location) {
		c.metrics.Inc(MetricNavigationAllowed)
	} else {
		c.metrics.Inc(MetricNavigationRedirected)
	}
	return to, nil
}

// HTTPClient returns the http.Client whose transport is the request pipeline.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// NewRequest builds a request for path, resolved against the base URL.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, c.resolve(path), body)
}

// Do sends req through the pipeline.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// RenewalDue reports when the pending renewal fires.
func (c *Client) RenewalDue() (time.Time, bool) {
	return c.scheduler.Due()
}

func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close stops the renewal timer and flushes the audit dispatcher. The stored
// session is left in place so it can be resumed.
func (c *Client) Close() {
	c.scheduler.Close()
	c.audit.Close()
}

// resolve joins a relative reference onto the base URL. Absolute URLs pass
// through.
func (c *Client) resolve(ref string) string {
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	u := *c.deps.BaseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(r.Path, "/")
	u.RawPath = ""
	u.RawQuery = r.RawQuery
	return u.String()
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
