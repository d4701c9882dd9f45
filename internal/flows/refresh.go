package flows

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goAuthClient/session"
)

// RunRefresh exchanges token for a new grant. It uses the raw client, so the
// call is authenticated with token explicitly rather than by the pipeline.
// An envelope with success=false yields deps.Errors.Declined.
func RunRefresh(ctx context.Context, token string, deps Deps) (session.Grant, error) {
	env, err := send(ctx, deps.Raw, call{
		method: http.MethodPost,
		path:   deps.Endpoints.Refresh,
		body:   struct{}{},
		token:  token,
	}, deps)
	if err != nil {
		return session.Grant{}, err
	}
	if !env.Success {
		return session.Grant{}, rejected(deps.Errors.Declined, env)
	}
	return decodeGrant(env, deps)
}
