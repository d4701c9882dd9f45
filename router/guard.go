package router

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAuthClient/session"
)

// ErrRedirectLoop is returned when redirects do not settle.
var ErrRedirectLoop = errors.New("router: redirect loop")

const maxRedirects = 8

// SessionReader is the read side of a session store.
type SessionReader interface {
	Get(ctx context.Context) (*session.Session, error)
}

// Guard evaluates navigations against the stored session.
type Guard struct {
	table *Table
	store SessionReader
	paths Paths
}

// NewGuard returns a guard over table. A nil table uses [DefaultRoutes].
func NewGuard(table *Table, store SessionReader, paths Paths) *Guard {
	if table == nil {
		table = NewTable(DefaultRoutes()...)
	}
	if paths.Login == "" {
		paths.Login = DefaultPaths().Login
	}
	if paths.Home == "" {
		paths.Home = DefaultPaths().Home
	}
	return &Guard{table: table, store: store, paths: paths}
}

// State reads the store. Read failures, including corrupt state, count as unauthenticated.
func (g *Guard) State(ctx context.Context) AuthState {
	if g.store == nil {
		return AuthState{}
	}
	sess, err := g.store.Get(ctx)
	if err != nil {
		return AuthState{}
	}
	return StateOf(sess)
}

// Check returns the decision for a single navigation step.
func (g *Guard) Check(ctx context.Context, location string) Decision {
	meta, _, redirect, ok := g.table.Match(location)
	if !ok {
		return Decision{Outcome: Redirect, Path: g.paths.Home, Replace: true}
	}
	if redirect != "" {
		return Decision{Outcome: Redirect, Path: redirect, Replace: true}
	}
	return Decide(meta, g.State(ctx), g.paths)
}

// Resolve follows redirects until a location is allowed. The returned Location
// is replacing when any hop was replacing.
func (g *Guard) Resolve(ctx context.Context, location string) (Location, error) {
	current := Location{Path: Clean(location)}
	for i := 0; i < maxRedirects; i++ {
		d := g.Check(ctx, current.Path)
		if d.Outcome == Allow {
			return current, nil
		}
		current = Location{Path: Clean(d.Path), Replace: current.Replace || d.Replace}
	}
	return Location{}, ErrRedirectLoop
}

// Navigate resolves location and delivers the result to nav.
func (g *Guard) Navigate(ctx context.Context, nav Navigator, location string) (Location, error) {
	to, err := g.Resolve(ctx, location)
	if err != nil {
		return Location{}, err
	}
	if nav != nil {
		nav.Navigate(ctx, to)
	}
	return to, nil
}
