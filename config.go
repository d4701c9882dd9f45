package goAuthClient

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthClient/internal/flows"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/router"
	"github.com/MrEthical07/goAuthClient/transport"
)

// Config holds everything a Client needs besides its collaborators (store,
// navigator, clock), which are supplied through the Builder.
type Config struct {
	// BaseURL is the API root every endpoint path is resolved against.
	BaseURL string

	Endpoints  EndpointsConfig
	HTTP       HTTPConfig
	Transport  TransportConfig
	Renewal    RenewalConfig
	Navigation NavigationConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
ENDPOINTS
====================================
*/

// EndpointsConfig holds the auth endpoint paths, relative to BaseURL.
type EndpointsConfig struct {
	Register string
	Login    string
	Refresh  string
	Logout   string
	Me       string
}

/*
====================================
HTTP / TRANSPORT
====================================
*/

// HTTPConfig configures the http.Client wrapping the pipeline.
type HTTPConfig struct {
	// Timeout bounds each call made through Client.HTTPClient. Zero means the
	// base transport's own behavior applies.
	Timeout time.Duration
	// Headers are added to every auth endpoint call.
	Headers map[string]string
}

// TransportConfig names the headers the pipeline attaches.
type TransportConfig struct {
	AuthHeader     string
	TrackingHeader string
}

/*
====================================
RENEWAL
====================================
*/

// RenewalConfig controls proactive and reactive renewal.
type RenewalConfig struct {
	// Lead is how long before expiry the scheduler renews. Zero selects
	// refresh.DefaultLead.
	Lead time.Duration
	// Serialize coalesces concurrent renewals of the same token into one call.
	// When false the scheduler and the pipeline renew independently and the
	// last store write wins.
	Serialize bool
	// DeriveFromToken falls back to the access token's exp claim when a grant
	// carries no expires_in.
	DeriveFromToken bool
}

/*
====================================
NAVIGATION
====================================
*/

// NavigationConfig names the two entry points the guard and the pipeline
// redirect to.
type NavigationConfig struct {
	LoginPath string
	HomePath  string
}

/*
====================================
AUDIT / METRICS
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a Config matching the /auth/* API layout with a 60s
// renewal lead.
func DefaultConfig() Config {
	ep := flows.DefaultEndpoints()
	paths := router.DefaultPaths()
	return Config{
		BaseURL: "http://localhost:8080/api",
		Endpoints: EndpointsConfig{
			Register: ep.Register,
			Login:    ep.Login,
			Refresh:  ep.Refresh,
			Logout:   ep.Logout,
			Me:       ep.Me,
		},
		Transport: TransportConfig{
			AuthHeader:     transport.DefaultAuthHeader,
			TrackingHeader: transport.DefaultTrackingHeader,
		},
		Renewal: RenewalConfig{
			Lead:            refresh.DefaultLead,
			DeriveFromToken: true,
		},
		Navigation: NavigationConfig{
			LoginPath: paths.Login,
			HomePath:  paths.Home,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.HTTP.Headers != nil {
		out.HTTP.Headers = make(map[string]string, len(cfg.HTTP.Headers))
		for k, v := range cfg.HTTP.Headers {
			out.HTTP.Headers[k] = v
		}
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting, wrapped in [ErrInvalidConfig].
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: BaseURL: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: BaseURL must be http or https", ErrInvalidConfig)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: BaseURL must include a host", ErrInvalidConfig)
	}

	for name, p := range map[string]string{
		"Register": c.Endpoints.Register,
		"Login":    c.Endpoints.Login,
		"Refresh":  c.Endpoints.Refresh,
		"Logout":   c.Endpoints.Logout,
		"Me":       c.Endpoints.Me,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: Endpoints.%s must be an absolute path", ErrInvalidConfig, name)
		}
	}

	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("%w: HTTP.Timeout must be >= 0", ErrInvalidConfig)
	}
	if c.Transport.AuthHeader == "" || c.Transport.TrackingHeader == "" {
		return fmt.Errorf("%w: Transport header names must be set", ErrInvalidConfig)
	}
	if strings.EqualFold(c.Transport.AuthHeader, c.Transport.TrackingHeader) {
		return fmt.Errorf("%w: Transport.AuthHeader and TrackingHeader must differ", ErrInvalidConfig)
	}

	if c.Renewal.Lead < 0 {
		return fmt.Errorf("%w: Renewal.Lead must be >= 0", ErrInvalidConfig)
	}

	if !strings.HasPrefix(c.Navigation.LoginPath, "/") || !strings.HasPrefix(c.Navigation.HomePath, "/") {
		return fmt.Errorf("%w: Navigation paths must be absolute", ErrInvalidConfig)
	}
	if c.Navigation.LoginPath == c.Navigation.HomePath {
		return fmt.Errorf("%w: Navigation.LoginPath and HomePath must differ", ErrInvalidConfig)
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("%w: Audit.BufferSize must be > 0 when enabled", ErrInvalidConfig)
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return fmt.Errorf("%w: Metrics.EnableLatencyHistograms requires Metrics.Enabled", ErrInvalidConfig)
	}

	return nil
}

func (c *Config) endpoints() flows.Endpoints {
	return flows.Endpoints{
		Register: c.Endpoints.Register,
		Login:    c.Endpoints.Login,
		Refresh:  c.Endpoints.Refresh,
		Logout:   c.Endpoints.Logout,
		Me:       c.Endpoints.Me,
	}
}

func (c *Config) paths() router.Paths {
	return router.Paths{Login: c.Navigation.LoginPath, Home: c.Navigation.HomePath}
}
