package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	client "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/router"
	"github.com/MrEthical07/goAuthClient/session"
)

// app carries per-invocation state shared by all commands.
type app struct {
	viper    *viper.Viper
	settings settings
	stdout   io.Writer
	stderr   io.Writer
	logger   zerolog.Logger

	// closers run in reverse order once the command returns.
	closers []func()
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		viper:  viper.New(),
		stdout: stdout,
		stderr: stderr,
		logger: zerolog.Nop(),
	}
}

func (a *app) setupLogger() error {
	level, err := zerolog.ParseLevel(a.settings.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: a.stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) openStore(ctx context.Context) (session.Store, error) {
	s := a.settings
	switch s.Store {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		addr := s.RedisAddr
		if addr == "mini" {
			mr, err := miniredis.Run()
			if err != nil {
				return nil, fmt.Errorf("start embedded redis: %w", err)
			}
			a.closers = append(a.closers, mr.Close)
			addr = mr.Addr()
			a.logger.Debug().Str("addr", addr).Msg("using embedded redis")
		}
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", session.ErrBackendUnavailable, err)
		}
		return session.NewRedisStore(rdb, s.RedisPrefix, s.RedisTTL), nil
	default:
		path, err := s.sessionFile()
		if err != nil {
			return nil, err
		}
		return session.NewFileStore(path)
	}
}

// open builds a Client over the configured store. Redirects are logged since
// a shell has no router to hand them to.
func (a *app) open(ctx context.Context) (*client.Client, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	logger := a.logger
	b := client.New().
		WithConfig(a.settings.clientConfig()).
		WithStore(store).
		WithLogger(logger).
		WithNavigator(router.NavigatorFunc(func(_ context.Context, to router.Location) {
			logger.Info().Str("path", to.Path).Bool("replace", to.Replace).Msg("navigate")
		}))
	if a.settings.Audit {
		b = b.WithAuditSink(client.NewLogSink(logger.With().Str("component", "audit").Logger()))
	}

	c, err := b.Build()
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, c.Close)
	return c, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type sessionView struct {
	Authenticated bool          `json:"authenticated"`
	User          *session.User `json:"user,omitempty"`
	TrackingID    string        `json:"tracking_id,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	RenewalDue    *time.Time    `json:"renewal_due,omitempty"`
}

func viewOf(sess *session.Session) sessionView {
	if sess == nil {
		return sessionView{}
	}
	v := sessionView{
		Authenticated: sess.Authenticated(),
		TrackingID:    sess.TrackingID,
	}
	if sess.User.ID != "" {
		u := sess.User
		v.User = &u
	}
	if !sess.ExpiresAt.IsZero() {
		at := sess.ExpiresAt
		v.ExpiresAt = &at
	}
	return v
}
