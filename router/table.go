package router

import (
	"path"
	"strings"
)

// CatchAll is the route path that matches every otherwise unmatched location.
const CatchAll = "/*"

// Route is one navigable location. A child with an empty Path is the parent's
// default view. Child metadata is merged with the parent's, as nested routes
// inherit their ancestors' requirements.
type Route struct {
	Path     string
	Name     string
	Meta     Meta
	Redirect string
	Children []Route
}

type entry struct {
	name     string
	meta     Meta
	redirect string
}

// Table resolves locations to route metadata.
type Table struct {
	entries  map[string]entry
	catchAll *entry
}

// NewTable flattens the route tree.
func NewTable(routes ...Route) *Table {
	t := &Table{entries: make(map[string]entry)}
	for _, r := range routes {
		t.add("", Meta{}, r)
	}
	return t
}

func (t *Table) add(prefix string, inherited Meta, r Route) {
	if r.Path == CatchAll {
		t.catchAll = &entry{name: r.Name, meta: r.Meta, redirect: r.Redirect}
		return
	}

	full := Clean(joinRoute(prefix, r.Path))
	meta := mergeMeta(inherited, r.Meta)

	if len(r.Children) == 0 || r.Redirect != "" {
		t.entries[full] = entry{name: r.Name, meta: meta, redirect: r.Redirect}
	}
	for _, child := range r.Children {
		t.add(full, meta, child)
	}
}

func joinRoute(prefix, p string) string {
	if p == "" {
		if prefix == "" {
			return "/"
		}
		return prefix
	}
	if strings.HasPrefix(p, "/") || prefix == "" {
		return p
	}
	return prefix + "/" + p
}

func mergeMeta(parent, child Meta) Meta {
	return Meta{
		GuestOnly:          parent.GuestOnly || child.GuestOnly,
		RequiresAuth:       parent.RequiresAuth || child.RequiresAuth,
		RequiresSuperAdmin: parent.RequiresSuperAdmin || child.RequiresSuperAdmin,
	}
}

// Clean normalizes a location: it drops query and fragment, resolves dot
// segments, and removes the trailing slash.
func Clean(location string) string {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		location = location[:i]
	}
	if location == "" {
		return "/"
	}
	if !strings.HasPrefix(location, "/") {
		location = "/" + location
	}
	return path.Clean(location)
}

// Match returns the metadata, name, and redirect target for a location.
// Unmatched locations fall through to the catch-all route when one is registered.
func (t *Table) Match(location string) (meta Meta, name string, redirect string, ok bool) {
	e, found := t.entries[Clean(location)]
	if !found {
		if t.catchAll == nil {
			return Meta{}, "", "", false
		}
		e = *t.catchAll
	}
	return e.meta, e.name, e.redirect, true
}

// DefaultRoutes mirrors the application's views: guest-only login and
// registration, the authenticated dashboard, the super-admin audit dashboard,
// and a catch-all back home.
func DefaultRoutes() []Route {
	return []Route{
		{Path: "/login", Name: "Login", Meta: Meta{GuestOnly: true}},
		{Path: "/register", Name: "Register", Meta: Meta{GuestOnly: true}},
		{
			Path: "/",
			Meta: Meta{RequiresAuth: true},
			Children: []Route{
				{Path: "", Name: "Dashboard"},
			},
		},
		{
			Path: "/audit",
			Meta: Meta{RequiresAuth: true, RequiresSuperAdmin: true},
			Children: []Route{
				{Path: "", Name: "AuditDashboard"},
			},
		},
		{Path: CatchAll, Redirect: "/"},
	}
}
