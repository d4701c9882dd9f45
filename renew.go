package goAuthClient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/goAuthClient/internal/flows"
	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/MrEthical07/goAuthClient/transport"
)

type trigger string

const (
	triggerProactive trigger = "proactive"
	triggerReactive  trigger = "reactive"
)

// renewer returns the Renewer handed to the scheduler or the pipeline. Both
// share c.renewals when renewals are serialized.
func (c *Client) renewer(t trigger) refresh.Renewer {
	return refresh.RenewerFunc(func(ctx context.Context, token string) (session.Grant, error) {
		return c.renew(ctx, t, token)
	})
}

func (c *Client) renew(ctx context.Context, t trigger, token string) (session.Grant, error) {
	before, _ := c.store.Get(ctx)

	var (
		grant session.Grant
		err   error
	)
	if c.renewals == nil {
		grant, err = c.callRefresh(ctx, token)
	} else {
		// The shared call runs detached; each waiter gives up on its own ctx.
		ch := c.renewals.DoChan(token, func() (any, error) {
			return c.callRefresh(context.WithoutCancel(ctx), token)
		})
		select {
		case <-ctx.Done():
			return session.Grant{}, ctx.Err()
		case res := <-ch:
			err = res.Err
			if err == nil {
				grant = res.Val.(session.Grant)
			}
			if res.Shared {
				c.logger.Debug().Str("trigger", string(t)).Msg("renewal coalesced")
			}
		}
	}

	meta := map[string]string{"trigger": string(t)}
	switch {
	case err == nil:
		if t == triggerReactive {
			c.metrics.Inc(MetricReactiveRenewalSuccess)
		} else {
			c.metrics.Inc(MetricRenewalSuccess)
		}
		after := &session.Session{Token: grant.Token, User: grant.User}
		if before != nil {
			after.TrackingID = before.TrackingID
		}
		c.emitAudit(ctx, AuditRefreshSuccess, after, nil, meta)
	case errors.Is(err, ErrRenewalDeclined):
		c.metrics.Inc(MetricRenewalDeclined)
		c.emitAudit(ctx, AuditRefreshFailure, before, err, meta)
	default:
		if t == triggerReactive {
			c.metrics.Inc(MetricReactiveRenewalFailure)
		} else {
			c.metrics.Inc(MetricRenewalFailure)
		}
		c.emitAudit(ctx, AuditRefreshFailure, before, err, meta)
	}
	return grant, err
}

func (c *Client) callRefresh(ctx context.Context, token string) (session.Grant, error) {
	start := c.clock.Now()
	grant, err := flows.RunRefresh(ctx, token, c.deps)
	c.metrics.Observe(MetricRenewalLatency, c.clock.Since(start))
	return grant, err
}

// lifetime is the validity of grant: expires_in, or the token's exp claim when
// Renewal.DeriveFromToken is set. Zero means unknown.
func (c *Client) lifetime(grant session.Grant) time.Duration {
	if d := grant.Lifetime(); d > 0 {
		return d
	}
	if !c.cfg.Renewal.DeriveFromToken {
		return 0
	}
	d, err := jwt.ExpiresIn(grant.Token, c.clock.Now())
	if err != nil {
		return 0
	}
	return d
}

func (c *Client) schedulerHooks() refresh.Hooks {
	return refresh.Hooks{
		OnScheduled: func(time.Duration) {
			c.metrics.Inc(MetricRenewalScheduled)
		},
		OnDeclined: func(context.Context) {
			c.logger.Info().Msg("server declined renewal; session kept until it expires")
		},
		OnFailed: func(ctx context.Context, err error) {
			c.forcedLogout(ctx, triggerProactive, err)
		},
	}
}

func (c *Client) transportHooks() transport.Hooks {
	return transport.Hooks{
		OnRetry: func(*http.Request) {
			c.metrics.Inc(MetricRequestRetried)
		},
		OnSessionEnded: func(ctx context.Context, err error) {
			c.scheduler.Cancel()
			c.forcedLogout(ctx, triggerReactive, err)
		},
	}
}

func (c *Client) forcedLogout(ctx context.Context, t trigger, err error) {
	c.metrics.Inc(MetricForcedLogout)
	c.emitAudit(ctx, AuditForcedLogout, nil, err, map[string]string{"trigger": string(t)})
}
