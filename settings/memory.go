package settings

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Memory is a Store held in memory. Records are kept serialized, so values
// loaded from it never alias values saved to it.
type Memory struct {
	mu      sync.Mutex
	servers map[string][]byte
	users   map[string][]byte
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		servers: make(map[string][]byte),
		users:   make(map[string][]byte),
	}
}

func (m *Memory) Server(ctx context.Context, id string) (*Server, error) {
	m.mu.Lock()
	b, ok := m.servers[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return Decode[Server](b)
}

func (m *Memory) SetServer(ctx context.Context, id string, cfg *Server) error {
	b, err := Encode(cfg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.servers[id] = b
	m.mu.Unlock()
	return nil
}

func (m *Memory) Servers(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.servers)), nil
}

func (m *Memory) User(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	b, ok := m.users[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return Decode[User](b)
}

func (m *Memory) SetUser(ctx context.Context, id string, cfg *User) error {
	b, err := Encode(cfg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.users[id] = b
	m.mu.Unlock()
	return nil
}
