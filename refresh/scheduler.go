package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/goAuthClient/router"
	"github.com/MrEthical07/goAuthClient/session"
)

// ErrNoSession is returned by RenewNow when no token is stored.
var ErrNoSession = errors.New("refresh: no session to renew")

// Hooks observe the renewal chain. All fields are optional.
type Hooks struct {
	OnScheduled func(delay time.Duration)
	OnRenewed   func(ctx context.Context, grant session.Grant)
	OnDeclined  func(ctx context.Context)
	OnFailed    func(ctx context.Context, err error)
}

// Config wires a Scheduler. Store and Renewer are required.
type Config struct {
	Clock     clock.Clock
	Store     session.Store
	Renewer   Renewer
	Navigator router.Navigator
	LoginPath string
	Lead      time.Duration
	Logger    *zerolog.Logger
	Hooks     Hooks

	// Lifetime resolves how long a renewed grant is valid. Defaults to the
	// grant's expires_in.
	Lifetime func(session.Grant) time.Duration
}

// Scheduler owns the single pending renewal timer of one client session.
type Scheduler struct {
	cfg Config
	ctx context.Context
	end context.CancelFunc

	mu    sync.Mutex
	timer *clock.Timer
	due   time.Time
	gen   uint64
}

// NewScheduler panics when Store or Renewer is missing.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Store == nil || cfg.Renewer == nil {
		panic("refresh: scheduler requires store and renewer")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Navigator == nil {
		cfg.Navigator = router.NopNavigator{}
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = router.DefaultPaths().Login
	}
	if cfg.Lead <= 0 {
		cfg.Lead = DefaultLead
	}
	if cfg.Lifetime == nil {
		cfg.Lifetime = session.Grant.Lifetime
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}

	ctx, end := context.WithCancel(context.Background())
	return &Scheduler{cfg: cfg, ctx: ctx, end: end}
}

// Schedule cancels any pending timer and arms one to fire at
// max(expiresIn - lead, 0).
func (s *Scheduler) Schedule(expiresIn time.Duration) {
	delay := Delay(expiresIn, s.cfg.Lead)

	s.mu.Lock()
	s.stopLocked()
	s.gen++
	gen := s.gen
	s.due = s.cfg.Clock.Now().Add(delay)
	s.timer = s.cfg.Clock.AfterFunc(delay, func() { s.fire(gen) })
	s.mu.Unlock()

	s.cfg.Logger.Debug().Dur("delay", delay).Uint64("generation", gen).Msg("renewal scheduled")
	if s.cfg.Hooks.OnScheduled != nil {
		s.cfg.Hooks.OnScheduled(delay)
	}
}

// Cancel stops the pending timer, if any, and invalidates in-flight renewals.
// It is idempotent.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	s.stopLocked()
	s.gen++
	s.mu.Unlock()
}

// Close cancels the scheduler and aborts an in-flight renewal call.
func (s *Scheduler) Close() {
	s.Cancel()
	s.end()
}

// Pending reports whether a timer is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Due returns when the pending timer fires.
func (s *Scheduler) Due() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return time.Time{}, false
	}
	return s.due, true
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.due = time.Time{}
}

func (s *Scheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.due = time.Time{}
	s.mu.Unlock()

	_ = s.renew(s.ctx, gen)
}

// RenewNow performs the renewal the timer would perform, synchronously, and
// returns its error. A missing token yields [ErrNoSession].
func (s *Scheduler) RenewNow(ctx context.Context) error {
	s.mu.Lock()
	s.stopLocked()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	return s.renew(ctx, gen)
}

func (s *Scheduler) renew(ctx context.Context, gen uint64) error {
	log := s.cfg.Logger

	sess, err := s.cfg.Store.Get(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("renewal skipped: session unreadable")
		return err
	}
	if sess == nil || sess.Token == "" {
		log.Debug().Msg("renewal skipped: no token")
		return ErrNoSession
	}

	grant, err := s.cfg.Renewer.Renew(ctx, sess.Token)
	if err != nil && ctx.Err() != nil {
		log.Debug().Err(err).Msg("renewal abandoned by caller")
		return err
	}
	if !s.current(gen) {
		log.Debug().Msg("renewal result discarded: superseded")
		return context.Canceled
	}
	if errors.Is(err, ErrDeclined) {
		log.Warn().Str("tracking_id", sess.TrackingID).Msg("renewal declined; chain stopped")
		if s.cfg.Hooks.OnDeclined != nil {
			s.cfg.Hooks.OnDeclined(ctx)
		}
		return err
	}
	if err != nil {
		s.fail(ctx, err)
		return err
	}

	lifetime := s.cfg.Lifetime(grant)
	stored, err := s.store(ctx, gen, grant, lifetime)
	if err != nil {
		s.fail(ctx, err)
		return err
	}
	if !stored {
		log.Debug().Msg("renewal result discarded: superseded")
		return context.Canceled
	}
	if s.cfg.Hooks.OnRenewed != nil {
		s.cfg.Hooks.OnRenewed(ctx, grant)
	}

	if lifetime <= 0 {
		log.Warn().Msg("renewed grant has no expiry; chain stopped")
		return nil
	}
	if !s.current(gen) {
		return nil
	}
	s.Schedule(lifetime)
	return nil
}

// store writes grant while holding s.mu so a Cancel issued during the write
// waits for it, and a Clear that follows the Cancel always lands last.
func (s *Scheduler) store(ctx context.Context, gen uint64, grant session.Grant, lifetime time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false, nil
	}
	if err := s.cfg.Store.Set(ctx, grant.Token, grant.User, lifetime); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Scheduler) fail(ctx context.Context, cause error) {
	s.cfg.Logger.Warn().Err(cause).Msg("renewal failed; ending session")

	if err := s.cfg.Store.Clear(ctx); err != nil {
		s.cfg.Logger.Error().Err(err).Msg("session clear failed")
	}
	s.cfg.Navigator.Navigate(ctx, router.Location{Path: s.cfg.LoginPath, Replace: true})

	if s.cfg.Hooks.OnFailed != nil {
		s.cfg.Hooks.OnFailed(ctx, cause)
	}
}
