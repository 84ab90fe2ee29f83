// Package settings defines persistent per-server and per-user configuration.
package settings

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// ErrNotFound is the error a Store returns when a record does not exist.
var ErrNotFound = errors.New("settings not found")

// Default is the ID of the configuration used for private messages.
const Default = "@default"

// Server is the configuration of one server.
type Server struct {
	// Prefix marks words as command invocations.
	Prefix string `json:"prefix"`
	// Addons are the IDs of the groups the server has opted into.
	Addons []string `json:"addons,omitzero"`
	// Color is the server's embed color scheme as RGB. Zero means the bot
	// default.
	Color int `json:"color,omitzero"`
	// Settings holds addon-defined settings keyed by group ID.
	Settings map[string]jsontext.Value `json:"settings,omitzero"`
}

// Enabled reports whether the server has opted into a group.
func (s *Server) Enabled(group string) bool {
	return slices.Contains(s.Addons, group)
}

// Enable opts the server into a group. It reports false if the group was
// already enabled.
func (s *Server) Enable(group string) bool {
	if s.Enabled(group) {
		return false
	}
	s.Addons = append(s.Addons, group)
	return true
}

// Disable opts the server out of a group. It reports false if the group
// was not enabled.
func (s *Server) Disable(group string) bool {
	k := slices.Index(s.Addons, group)
	if k < 0 {
		return false
	}
	s.Addons = slices.Delete(s.Addons, k, k+1)
	return true
}

// Get decodes the settings for a group into v.
// It reports false if the group has no settings.
func (s *Server) Get(group string, v any) (bool, error) {
	return get(s.Settings, group, v)
}

// Set encodes v as the settings for a group.
func (s *Server) Set(group string, v any) error {
	return set(&s.Settings, group, v)
}

// User is the configuration of one user across all servers.
type User struct {
	// Settings holds addon-defined settings keyed by group ID.
	Settings map[string]jsontext.Value `json:"settings,omitzero"`
}

// Get decodes the settings for a group into v.
// It reports false if the group has no settings.
func (u *User) Get(group string, v any) (bool, error) {
	return get(u.Settings, group, v)
}

// Set encodes v as the settings for a group.
func (u *User) Set(group string, v any) error {
	return set(&u.Settings, group, v)
}

func get(m map[string]jsontext.Value, group string, v any) (bool, error) {
	b, ok := m[group]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return true, fmt.Errorf("couldn't decode settings for %s: %w", group, err)
	}
	return true, nil
}

func set(m *map[string]jsontext.Value, group string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("couldn't encode settings for %s: %w", group, err)
	}
	if *m == nil {
		*m = make(map[string]jsontext.Value)
	}
	(*m)[group] = b
	return nil
}

// Store is persistent storage for configuration.
type Store interface {
	// Server loads a server's configuration.
	// If there is none, the error is ErrNotFound.
	Server(ctx context.Context, id string) (*Server, error)
	// SetServer saves a server's configuration.
	SetServer(ctx context.Context, id string, cfg *Server) error
	// Servers lists the IDs of all servers with saved configuration.
	Servers(ctx context.Context) ([]string, error)
	// User loads a user's configuration.
	// If there is none, the error is ErrNotFound.
	User(ctx context.Context, id string) (*User, error)
	// SetUser saves a user's configuration.
	SetUser(ctx context.Context, id string, cfg *User) error
}

// Encode serializes a configuration for storage.
func Encode[T Server | User](v *T) ([]byte, error) {
	return json.Marshal(v, json.Deterministic(true))
}

// Decode deserializes a stored configuration.
func Decode[T Server | User](b []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(b, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Clone returns a deep copy of the configuration.
func (s *Server) Clone() *Server {
	r := *s
	r.Addons = slices.Clone(s.Addons)
	r.Settings = cloneBlobs(s.Settings)
	return &r
}

// Clone returns a deep copy of the configuration.
func (u *User) Clone() *User {
	return &User{Settings: cloneBlobs(u.Settings)}
}

func cloneBlobs(m map[string]jsontext.Value) map[string]jsontext.Value {
	if m == nil {
		return nil
	}
	r := make(map[string]jsontext.Value, len(m))
	for k, v := range m {
		r[k] = slices.Clone(v)
	}
	return r
}
