package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAuthClient/session"
)

// ErrDeclined is returned by a Renewer when the server answered with
// success=false. No session mutation follows a declined renewal.
var ErrDeclined = errors.New("refresh: renewal declined")

// Renewer exchanges the current token for a new grant.
type Renewer interface {
	Renew(ctx context.Context, token string) (session.Grant, error)
}

// RenewerFunc adapts a function to [Renewer].
type RenewerFunc func(ctx context.Context, token string) (session.Grant, error)

func (f RenewerFunc) Renew(ctx context.Context, token string) (session.Grant, error) {
	return f(ctx, token)
}

// DefaultLead is how long before expiry a renewal fires.
const DefaultLead = 60 * time.Second

// Delay returns max(expiresIn - lead, 0).
func Delay(expiresIn, lead time.Duration) time.Duration {
	d := expiresIn - lead
	if d < 0 {
		return 0
	}
	return d
}
