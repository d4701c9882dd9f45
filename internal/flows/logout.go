package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/MrEthical07/goAuthClient/session"
)

// RunLogout notifies the server. The caller clears local state regardless of
// the result.
func RunLogout(ctx context.Context, deps Deps) error {
	_, err := send(ctx, deps.Pipeline, call{
		method: http.MethodPost,
		path:   deps.Endpoints.Logout,
	}, deps)
	return err
}

// RunMe fetches the current user. The user may arrive as data.user or as data
// itself.
func RunMe(ctx context.Context, deps Deps) (session.User, error) {
	env, err := send(ctx, deps.Pipeline, call{
		method: http.MethodGet,
		path:   deps.Endpoints.Me,
	}, deps)
	if err != nil {
		return session.User{}, err
	}
	if !env.Success {
		return session.User{}, rejected(deps.Errors.Rejected, env)
	}

	var wrapped struct {
		User *session.User `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &wrapped); err == nil && wrapped.User != nil {
		return *wrapped.User, nil
	}

	var user session.User
	if err := json.Unmarshal(env.Data, &user); err != nil {
		return session.User{}, fmt.Errorf("%w: %v", deps.Errors.Malformed, err)
	}
	return user, nil
}
