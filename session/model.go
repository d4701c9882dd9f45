package session

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Role is the enumerated role carried on the user record.
type Role string

const (
	RoleUser       Role = "user"
	RoleSuperAdmin Role = "super_admin"
)

// User is the user record returned by the auth endpoints. ID and Role are decoded;
// every other field the server sends is preserved verbatim in the raw form.
type User struct {
	ID   string
	Role Role

	raw json.RawMessage
}

// UnmarshalJSON accepts numeric or string ids and keeps the original document.
func (u *User) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*u = User{raw: append(json.RawMessage(nil), data...)}

	if rawID, ok := fields["id"]; ok {
		u.ID = decodeID(rawID)
	}
	if rawRole, ok := fields["role"]; ok {
		var role string
		if err := json.Unmarshal(rawRole, &role); err != nil {
			return err
		}
		u.Role = Role(role)
	}

	return nil
}

// MarshalJSON returns the document the user was decoded from, or a minimal
// {id, role} object for users built in code.
func (u User) MarshalJSON() ([]byte, error) {
	if len(u.raw) > 0 {
		return u.raw, nil
	}
	return json.Marshal(struct {
		ID   string `json:"id"`
		Role Role   `json:"role"`
	}{ID: u.ID, Role: u.Role})
}

// Field decodes an arbitrary attribute of the user record into dst.
// It reports false when the attribute is absent or does not decode.
func (u User) Field(name string, dst any) bool {
	if len(u.raw) == 0 {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(u.raw, &fields); err != nil {
		return false
	}
	v, ok := fields[name]
	if !ok {
		return false
	}
	return json.Unmarshal(v, dst) == nil
}

func decodeID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		if s, err := strconv.Unquote(string(raw)); err == nil {
			return s
		}
	}
	if bytes.Equal(raw, []byte("null")) {
		return ""
	}
	return string(raw)
}

// Session is the triple of token, user, and tracking id held for an authenticated client.
type Session struct {
	Token      string
	User       User
	TrackingID string

	// ExpiresAt is zero when the expiry is unknown.
	ExpiresAt time.Time
}

// Authenticated reports whether both token and user are present.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != "" && (s.User.ID != "" || s.User.Role != "" || len(s.User.raw) > 0)
}

// Grant is the data object of a successful login or refresh envelope.
type Grant struct {
	Token     string `json:"token"`
	User      User   `json:"user"`
	ExpiresIn int64  `json:"expires_in"`
}

// Lifetime converts ExpiresIn seconds to a duration.
func (g Grant) Lifetime() time.Duration {
	if g.ExpiresIn <= 0 {
		return 0
	}
	return time.Duration(g.ExpiresIn) * time.Second
}
