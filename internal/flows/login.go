package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/MrEthical07/goAuthClient/session"
)

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register payload.
type Registration struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResult carries the outcome of RunRegister. Grant is nil when the
// server did not issue a session with the account.
type RegisterResult struct {
	Message string
	Grant   *session.Grant
}

// RunLogin posts credentials through the pipeline and decodes the grant.
func RunLogin(ctx context.Context, creds Credentials, deps Deps) (session.Grant, error) {
	env, err := send(ctx, deps.Pipeline, call{
		method: http.MethodPost,
		path:   deps.Endpoints.Login,
		body:   creds,
	}, deps)
	if err != nil {
		return session.Grant{}, err
	}
	if !env.Success {
		return session.Grant{}, rejected(deps.Errors.Rejected, env)
	}
	return decodeGrant(env, deps)
}

// RunRegister posts a registration through the pipeline.
func RunRegister(ctx context.Context, reg Registration, deps Deps) (RegisterResult, error) {
	env, err := send(ctx, deps.Pipeline, call{
		method: http.MethodPost,
		path:   deps.Endpoints.Register,
		body:   reg,
	}, deps)
	if err != nil {
		return RegisterResult{}, err
	}
	if !env.Success {
		return RegisterResult{}, rejected(deps.Errors.Rejected, env)
	}

	res := RegisterResult{Message: env.Message}
	if hasToken(env.Data) {
		grant, err := decodeGrant(env, deps)
		if err != nil {
			return RegisterResult{}, err
		}
		res.Grant = &grant
	}
	return res, nil
}

func decodeGrant(env *Envelope, deps Deps) (session.Grant, error) {
	var grant session.Grant
	if err := json.Unmarshal(env.Data, &grant); err != nil {
		return session.Grant{}, fmt.Errorf("%w: %v", deps.Errors.Malformed, err)
	}
	if grant.Token == "" {
		return session.Grant{}, fmt.Errorf("%w: grant without token", deps.Errors.Malformed)
	}
	return grant, nil
}

func hasToken(data json.RawMessage) bool {
	if len(data) == 0 {
		return false
	}
	var probe struct {
		Token string `json:"token"`
	}
	return json.Unmarshal(data, &probe) == nil && probe.Token != ""
}
