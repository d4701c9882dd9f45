package goAuthClient

import (
	"net/http"
	"net/url"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/internal/flows"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/router"
	"github.com/MrEthical07/goAuthClient/session"
	"github.com/MrEthical07/goAuthClient/transport"
)

// Builder assembles a Client. A Builder is single-use.
type Builder struct {
	config Config

	store     session.Store
	navigator router.Navigator
	routes    []router.Route
	base      http.RoundTripper
	clock     clock.Clock
	logger    *zerolog.Logger
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the session store. Defaults to an in-memory store.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithNavigator sets where redirects are delivered. Defaults to an in-memory
// [router.History] starting at the home path.
func (b *Builder) WithNavigator(nav router.Navigator) *Builder {
	b.navigator = nav
	return b
}

// WithRoutes replaces [router.DefaultRoutes].
func (b *Builder) WithRoutes(routes ...router.Route) *Builder {
	b.routes = routes
	return b
}

// WithTransport sets the base round tripper the pipeline delegates to.
func (b *Builder) WithTransport(rt http.RoundTripper) *Builder {
	b.base = rt
	return b
}

func (b *Builder) WithClock(clk clock.Clock) *Builder {
	b.clock = clk
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires store, scheduler, pipeline, and
// guard into a Client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	clk := b.clock
	if clk == nil {
		clk = clock.New()
	}
	logger := b.logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	store := b.store
	if store == nil {
		store = session.NewMemoryStore().WithNow(clk.Now)
	}
	nav := b.navigator
	if nav == nil {
		nav = router.NewHistory(cfg.Navigation.HomePath)
	}
	routes := b.routes
	if len(routes) == 0 {
		routes = router.DefaultRoutes()
	}
	base := b.base
	if base == nil {
		base = http.DefaultTransport
	}

	headers := make(http.Header, len(cfg.HTTP.Headers))
	for k, v := range cfg.HTTP.Headers {
		headers.Set(k, v)
	}

	c := &Client{
		cfg:       cfg,
		store:     store,
		navigator: nav,
		clock:     clk,
		logger:    logger,
		metrics:   NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Logger:     logger,
		}, b.auditSink),
	}
	if cfg.Renewal.Serialize {
		c.renewals = &singleflight.Group{}
	}

	c.deps = flows.Deps{
		BaseURL:    baseURL,
		Endpoints:  cfg.endpoints(),
		Headers:    headers,
		AuthHeader: cfg.Transport.AuthHeader,
		Raw:        &http.Client{Transport: base, Timeout: cfg.HTTP.Timeout},
		Errors: flows.Errors{
			Rejected:  ErrRejected,
			Malformed: ErrMalformedResponse,
			Declined:  ErrRenewalDeclined,
		},
	}

	c.scheduler = refresh.NewScheduler(refresh.Config{
		Clock:     clk,
		Store:     store,
		Renewer:   c.renewer(triggerProactive),
		Navigator: nav,
		LoginPath: cfg.Navigation.LoginPath,
		Lead:      cfg.Renewal.Lead,
		Logger:    logger,
		Hooks:     c.schedulerHooks(),
		Lifetime:  c.lifetime,
	})

	c.transport = transport.New(transport.Config{
		Base:           base,
		Store:          store,
		Renewer:        c.renewer(triggerReactive),
		Navigator:      nav,
		LoginPath:      cfg.Navigation.LoginPath,
		AuthHeader:     cfg.Transport.AuthHeader,
		TrackingHeader: cfg.Transport.TrackingHeader,
		Logger:         logger,
		Hooks:          c.transportHooks(),
		Lifetime:       c.lifetime,
	})
	c.http = &http.Client{Transport: c.transport, Timeout: cfg.HTTP.Timeout}
	c.deps.Pipeline = c.http

	c.guard = router.NewGuard(router.NewTable(routes...), store, cfg.paths())

	b.built = true
	return c, nil
}
