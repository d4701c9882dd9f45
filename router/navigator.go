package router

import (
	"context"
	"sync"
)

// Location is a navigation target. Replace means the current history entry is
// overwritten, so back-navigation cannot return to a state that no longer applies.
type Location struct {
	Path    string
	Replace bool
}

// Navigator delivers navigations to the host application.
type Navigator interface {
	Navigate(ctx context.Context, to Location)
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(ctx context.Context, to Location)

func (f NavigatorFunc) Navigate(ctx context.Context, to Location) {
	f(ctx, to)
}

// NopNavigator discards navigations.
type NopNavigator struct{}

func (NopNavigator) Navigate(context.Context, Location) {}

// History is an in-memory browser-style history stack.
type History struct {
	mu      sync.Mutex
	entries []string
}

// NewHistory starts a history at the given location.
func NewHistory(start string) *History {
	return &History{entries: []string{Clean(start)}}
}

func (h *History) Navigate(_ context.Context, to Location) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := Clean(to.Path)
	if to.Replace && len(h.entries) > 0 {
		h.entries[len(h.entries)-1] = p
		return
	}
	h.entries = append(h.entries, p)
}

// Current returns the top entry, or "" for an empty history.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) == 0 {
		return ""
	}
	return h.entries[len(h.entries)-1]
}

// Entries returns a copy of the stack, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string(nil), h.entries...)
}
