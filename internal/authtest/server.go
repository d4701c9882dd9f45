// Package authtest provides an in-process implementation of the auth API the
// client consumes. It issues HS256 access tokens and tracks them so tests can
// expire, revoke, or refuse renewals on demand.
package authtest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MrEthical07/goAuthClient/session"
)

// RefreshMode selects how POST /auth/refresh answers.
type RefreshMode int

const (
	// RefreshOK issues a new token.
	RefreshOK RefreshMode = iota
	// RefreshDecline answers 200 with success=false.
	RefreshDecline
	// RefreshFail answers 401.
	RefreshFail
)

// Request is one request the server saw.
type Request struct {
	Method     string
	Path       string
	Token      string
	TrackingID string
}

type account struct {
	id       int
	name     string
	email    string
	password string
	role     session.Role
}

type issued struct {
	userID    int
	expiresAt time.Time
}

// Server is the fake API.
type Server struct {
	clock     clock.Clock
	key       []byte
	expiresIn time.Duration
	omitTTL   bool

	mu          sync.Mutex
	nextID      int
	accounts    map[string]*account
	tokens      map[string]issued
	refreshMode RefreshMode
	autoLogin   bool
	seen        []Request
	counts      map[string]int
}

// Option configures a Server.
type Option func(*Server)

// WithClock makes token expiry follow clk.
func WithClock(clk clock.Clock) Option {
	return func(s *Server) { s.clock = clk }
}

// WithExpiresIn sets the lifetime of issued tokens. Default one hour.
func WithExpiresIn(d time.Duration) Option {
	return func(s *Server) { s.expiresIn = d }
}

// WithoutExpiresIn omits expires_in from grants; the lifetime is then only
// visible through the token's exp claim.
func WithoutExpiresIn() Option {
	return func(s *Server) { s.omitTTL = true }
}

// WithAutoLogin makes /auth/register return a session.
func WithAutoLogin() Option {
	return func(s *Server) { s.autoLogin = true }
}

// New returns an empty server.
func New(opts ...Option) *Server {
	s := &Server{
		clock:     clock.New(),
		key:       []byte(uuid.NewString()),
		expiresIn: time.Hour,
		nextID:    1,
		accounts:  map[string]*account{},
		tokens:    map[string]issued{},
		counts:    map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddUser registers an account and returns its id.
func (s *Server) AddUser(email, password string, role session.Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked("", email, password, role)
}

func (s *Server) addLocked(name, email, password string, role session.Role) int {
	id := s.nextID
	s.nextID++
	s.accounts[strings.ToLower(email)] = &account{id: id, name: name, email: email, password: password, role: role}
	return id
}

// SetRefreshMode changes how renewals are answered.
func (s *Server) SetRefreshMode(m RefreshMode) {
	s.mu.Lock()
	s.refreshMode = m
	s.mu.Unlock()
}

// Revoke invalidates token immediately.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// Expire moves token past its expiry. Unlike Revoke, the token can still be
// renewed.
func (s *Server) Expire(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[token]; ok {
		t.expiresAt = s.clock.Now()
		s.tokens[token] = t
	}
}

// Calls returns how often the route "METHOD /path" was hit.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[route]
}

// Seen returns every request received, oldest first.
func (s *Server) Seen() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.seen...)
}

// Handler serves the /auth endpoints plus two protected resources,
// /ip-addresses and /audit-logs (super admin only).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", s.register)
	mux.HandleFunc("POST /auth/login", s.login)
	mux.HandleFunc("POST /auth/refresh", s.refresh)
	mux.HandleFunc("POST /auth/logout", s.logout)
	mux.HandleFunc("GET /auth/me", s.me)
	mux.HandleFunc("/ip-addresses", s.resource(false))
	mux.HandleFunc("/audit-logs", s.resource(true))
	return s.record(mux)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.seen = append(s.seen, Request{
			Method:     r.Method,
			Path:       r.URL.Path,
			Token:      bearer(r),
			TrackingID: r.Header.Get("X-Session-ID"),
		})
		s.counts[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type grantData struct {
	Token     string         `json:"token"`
	User      map[string]any `json:"user"`
	ExpiresIn *int64         `json:"expires_in,omitempty"`
}

func write(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func bearer(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if !strings.HasPrefix(v, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(v, "Bearer ")
}

func (a *account) document() map[string]any {
	doc := map[string]any{"id": a.id, "email": a.email, "role": string(a.role)}
	if a.name != "" {
		doc["name"] = a.name
	}
	return doc
}

// issueLocked signs a token for a and records it.
func (s *Server) issueLocked(a *account) (grantData, error) {
	now := s.clock.Now()
	exp := now.Add(s.expiresIn)
	claims := jwtlib.RegisteredClaims{
		Subject:   a.email,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return grantData{}, err
	}
	s.tokens[token] = issued{userID: a.id, expiresAt: exp}

	g := grantData{Token: token, User: a.document()}
	if !s.omitTTL {
		secs := int64(s.expiresIn / time.Second)
		g.ExpiresIn = &secs
	}
	return g, nil
}

var errUnauthenticated = errors.New("unauthenticated")

// authenticateLocked returns the account owning a live token.
func (s *Server) authenticateLocked(token string) (*account, error) {
	t, ok := s.tokens[token]
	if !ok || !s.clock.Now().Before(t.expiresAt) {
		return nil, errUnauthenticated
	}
	for _, a := range s.accounts {
		if a.id == t.userID {
			return a, nil
		}
	}
	return nil, errUnauthenticated
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		write(w, http.StatusBadRequest, envelope{Message: "invalid body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[strings.ToLower(body.Email)]
	if !ok || a.password != body.Password {
		write(w, http.StatusUnauthorized, envelope{Message: "invalid credentials"})
		return
	}
	g, err := s.issueLocked(a)
	if err != nil {
		write(w, http.StatusInternalServerError, envelope{Message: err.Error()})
		return
	}
	write(w, http.StatusOK, envelope{Success: true, Message: "login successful", Data: g})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		write(w, http.StatusUnprocessableEntity, envelope{Message: "email and password are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[strings.ToLower(body.Email)]; exists {
		write(w, http.StatusConflict, envelope{Message: "email already registered"})
		return
	}
	s.addLocked(body.Name, body.Email, body.Password, session.RoleUser)
	a := s.accounts[strings.ToLower(body.Email)]

	if !s.autoLogin {
		write(w, http.StatusCreated, envelope{Success: true, Message: "registered", Data: map[string]any{"user": a.document()}})
		return
	}
	g, err := s.issueLocked(a)
	if err != nil {
		write(w, http.StatusInternalServerError, envelope{Message: err.Error()})
		return
	}
	write(w, http.StatusCreated, envelope{Success: true, Message: "registered", Data: g})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.refreshMode {
	case RefreshDecline:
		write(w, http.StatusOK, envelope{Message: "refresh not permitted"})
		return
	case RefreshFail:
		write(w, http.StatusUnauthorized, envelope{Message: "refresh failed"})
		return
	}

	// A token past exp but still known may be renewed; revoked tokens may not.
	t, ok := s.tokens[bearer(r)]
	if !ok {
		write(w, http.StatusUnauthorized, envelope{Message: "invalid token"})
		return
	}
	var owner *account
	for _, a := range s.accounts {
		if a.id == t.userID {
			owner = a
		}
	}
	if owner == nil {
		write(w, http.StatusUnauthorized, envelope{Message: "invalid token"})
		return
	}
	delete(s.tokens, bearer(r))

	g, err := s.issueLocked(owner)
	if err != nil {
		write(w, http.StatusInternalServerError, envelope{Message: err.Error()})
		return
	}
	write(w, http.StatusOK, envelope{Success: true, Data: g})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.authenticateLocked(bearer(r)); err != nil {
		write(w, http.StatusUnauthorized, envelope{Message: "unauthenticated"})
		return
	}
	delete(s.tokens, bearer(r))
	write(w, http.StatusOK, envelope{Success: true, Message: "logged out"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.authenticateLocked(bearer(r))
	if err != nil {
		write(w, http.StatusUnauthorized, envelope{Message: "unauthenticated"})
		return
	}
	write(w, http.StatusOK, envelope{Success: true, Data: map[string]any{"user": a.document()}})
}

func (s *Server) resource(superAdmin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		a, err := s.authenticateLocked(bearer(r))
		s.mu.Unlock()

		if err != nil {
			write(w, http.StatusUnauthorized, envelope{Message: "unauthenticated"})
			return
		}
		if superAdmin && a.role != session.RoleSuperAdmin {
			write(w, http.StatusForbidden, envelope{Message: "forbidden"})
			return
		}

		var body any
		if r.Body != nil && r.ContentLength != 0 {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		write(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
			"path":   r.URL.Path,
			"method": r.Method,
			"echo":   body,
		}})
	}
}
