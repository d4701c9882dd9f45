package router

import "github.com/MrEthical07/goAuthClient/session"

// Meta holds the access requirements of a route.
type Meta struct {
	GuestOnly          bool
	RequiresAuth       bool
	RequiresSuperAdmin bool
}

// AuthState is the authentication state a decision is made from.
type AuthState struct {
	HasToken bool
	HasUser  bool
	Role     session.Role
}

// StateOf derives the AuthState of a stored session. A nil session is unauthenticated.
func StateOf(sess *session.Session) AuthState {
	if sess == nil {
		return AuthState{}
	}
	return AuthState{
		HasToken: sess.Token != "",
		HasUser:  sess.Authenticated(),
		Role:     sess.User.Role,
	}
}

// Outcome is the result kind of a navigation decision.
type Outcome int

const (
	Allow Outcome = iota
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the verdict for one navigation.
type Decision struct {
	Outcome Outcome
	Path    string
	Replace bool
}

// Paths are the two entry points a guard redirects to.
type Paths struct {
	Login string
	Home  string
}

// DefaultPaths returns "/login" and "/".
func DefaultPaths() Paths {
	return Paths{Login: "/login", Home: "/"}
}

// Decide applies the navigation rules in order; the first matching rule wins.
func Decide(meta Meta, state AuthState, paths Paths) Decision {
	authenticated := state.HasToken && state.HasUser

	if meta.GuestOnly {
		if authenticated {
			return Decision{Outcome: Redirect, Path: paths.Home}
		}
		return Decision{Outcome: Allow}
	}

	if meta.RequiresAuth {
		if !authenticated {
			return Decision{Outcome: Redirect, Path: paths.Login, Replace: true}
		}
		if meta.RequiresSuperAdmin && state.Role != session.RoleSuperAdmin {
			return Decision{Outcome: Redirect, Path: paths.Home, Replace: true}
		}
	}

	return Decision{Outcome: Allow}
}
