package flows

import (
	"net/http"
	"net/url"
	"strings"
)

// Endpoints holds the auth endpoint paths, relative to the base URL.
type Endpoints struct {
	Register string
	Login    string
	Refresh  string
	Logout   string
	Me       string
}

// DefaultEndpoints returns the /auth/* layout of the API.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Register: "/auth/register",
		Login:    "/auth/login",
		Refresh:  "/auth/refresh",
		Logout:   "/auth/logout",
		Me:       "/auth/me",
	}
}

// Errors carries host-level sentinel errors used by the flows.
type Errors struct {
	// Rejected is returned when a 2xx envelope carries success=false.
	Rejected error
	// Malformed is returned when a response body is not a usable envelope.
	Malformed error
	// Declined is returned by RunRefresh in place of Rejected.
	Declined error
}

// Deps groups flow dependencies. The root Client builds this once.
type Deps struct {
	BaseURL   *url.URL
	Endpoints Endpoints
	Headers   http.Header

	// AuthHeader carries the bearer on calls that name a token explicitly.
	// Empty means "Authorization".
	AuthHeader string

	// Pipeline sends requests through the credential-attaching transport.
	Pipeline *http.Client
	// Raw bypasses the pipeline. Renewal calls use it so a 401 from the
	// refresh endpoint never recurses into recovery.
	Raw *http.Client

	Errors Errors
}

func (d Deps) authHeader() string {
	if d.AuthHeader == "" {
		return "Authorization"
	}
	return d.AuthHeader
}

func (d Deps) resolve(path string) string {
	if d.BaseURL == nil {
		return path
	}
	u := *d.BaseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String()
}
