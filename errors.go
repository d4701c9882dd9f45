package goAuthClient

import (
	"errors"

	"github.com/MrEthical07/goAuthClient/internal/flows"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/router"
	"github.com/MrEthical07/goAuthClient/session"
)

var (
	// ErrInvalidConfig wraps every Config.Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrBuilderUsed is returned by a second Build call on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrRejected is returned when an auth endpoint answers success=false.
	ErrRejected = errors.New("request rejected")
	// ErrMalformedResponse is returned when an auth endpoint answers with a body
	// that is not a usable envelope.
	ErrMalformedResponse = errors.New("malformed auth response")

	ErrRenewalDeclined    = refresh.ErrDeclined
	ErrNoSession          = refresh.ErrNoSession
	ErrRedirectLoop       = router.ErrRedirectLoop
	ErrCorruptSession     = session.ErrCorruptSession
	ErrBackendUnavailable = session.ErrBackendUnavailable
)

// APIError reports a non-2xx answer from an auth endpoint.
type APIError = flows.APIError

// StatusOf returns the HTTP status carried by an [APIError] in err's chain, or 0.
func StatusOf(err error) int {
	return flows.StatusOf(err)
}
