// Package sqlstore implements settings storage in an SQLite database.
package sqlstore

import (
	"context"
	_ "embed"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/tilde/settings"
)

//go:embed schema.sql
var schemaSQL string

// Init initializes an SQLite DB to hold settings.
// For convenience, it accepts either a single connection or a pool.
func Init[DB *sqlite.Conn | *sqlitex.Pool](ctx context.Context, db DB) error {
	var conn *sqlite.Conn
	switch db := any(db).(type) {
	case *sqlite.Conn:
		conn = db
	case *sqlitex.Pool:
		var err error
		conn, err = db.Take(ctx)
		defer db.Put(conn)
		if err != nil {
			return fmt.Errorf("couldn't get connection from pool: %w", err)
		}
	}
	err := sqlitex.ExecuteScript(conn, schemaSQL, nil)
	if err != nil {
		return fmt.Errorf("couldn't initialize settings schema: %w", err)
	}
	return nil
}

// Store is a settings store backed by an SQL database.
type Store struct {
	db *sqlitex.Pool
}

var _ settings.Store = (*Store)(nil)

// Open opens settings in an existing database.
func Open(ctx context.Context, db *sqlitex.Pool) (*Store, error) {
	return &Store{db: db}, nil
}

type table struct {
	sel, ins, all string
}

var (
	serverTable = table{
		sel: `SELECT config FROM server WHERE id = :id`,
		ins: `INSERT INTO server (id, config) VALUES (:id, :config) ON CONFLICT (id) DO UPDATE SET config = excluded.config`,
		all: `SELECT id FROM server ORDER BY id`,
	}
	userTable = table{
		sel: `SELECT config FROM user WHERE id = :id`,
		ins: `INSERT INTO user (id, config) VALUES (:id, :config) ON CONFLICT (id) DO UPDATE SET config = excluded.config`,
	}
)

func (s *Store) load(ctx context.Context, t *table, id string) ([]byte, error) {
	conn, err := s.db.Take(ctx)
	defer s.db.Put(conn)
	if err != nil {
		return nil, fmt.Errorf("couldn't get connection to load settings: %w", err)
	}
	var b []byte
	opts := sqlitex.ExecOptions{
		Named: map[string]any{":id": id},
		ResultFunc: func(st *sqlite.Stmt) error {
			b = []byte(st.ColumnText(0))
			return nil
		},
	}
	if err := sqlitex.Execute(conn, t.sel, &opts); err != nil {
		return nil, fmt.Errorf("couldn't load settings for %s: %w", id, err)
	}
	if b == nil {
		return nil, settings.ErrNotFound
	}
	return b, nil
}

func (s *Store) save(ctx context.Context, t *table, id string, b []byte) error {
	conn, err := s.db.Take(ctx)
	defer s.db.Put(conn)
	if err != nil {
		return fmt.Errorf("couldn't get connection to save settings: %w", err)
	}
	opts := sqlitex.ExecOptions{
		Named: map[string]any{":id": id, ":config": string(b)},
	}
	if err := sqlitex.Execute(conn, t.ins, &opts); err != nil {
		return fmt.Errorf("couldn't save settings for %s: %w", id, err)
	}
	return nil
}

// Server loads a server's configuration.
func (s *Store) Server(ctx context.Context, id string) (*settings.Server, error) {
	b, err := s.load(ctx, &serverTable, id)
	if err != nil {
		return nil, err
	}
	return settings.Decode[settings.Server](b)
}

// SetServer saves a server's configuration.
func (s *Store) SetServer(ctx context.Context, id string, cfg *settings.Server) error {
	b, err := settings.Encode(cfg)
	if err != nil {
		return fmt.Errorf("couldn't encode settings for %s: %w", id, err)
	}
	return s.save(ctx, &serverTable, id, b)
}

// Servers lists the IDs of servers with saved configuration.
func (s *Store) Servers(ctx context.Context) ([]string, error) {
	conn, err := s.db.Take(ctx)
	defer s.db.Put(conn)
	if err != nil {
		return nil, fmt.Errorf("couldn't get connection to list servers: %w", err)
	}
	var r []string
	opts := sqlitex.ExecOptions{
		ResultFunc: func(st *sqlite.Stmt) error {
			r = append(r, st.ColumnText(0))
			return nil
		},
	}
	if err := sqlitex.Execute(conn, serverTable.all, &opts); err != nil {
		return nil, fmt.Errorf("couldn't list servers: %w", err)
	}
	return r, nil
}

// User loads a user's configuration.
func (s *Store) User(ctx context.Context, id string) (*settings.User, error) {
	b, err := s.load(ctx, &userTable, id)
	if err != nil {
		return nil, err
	}
	return settings.Decode[settings.User](b)
}

// SetUser saves a user's configuration.
func (s *Store) SetUser(ctx context.Context, id string, cfg *settings.User) error {
	b, err := settings.Encode(cfg)
	if err != nil {
		return fmt.Errorf("couldn't encode settings for %s: %w", id, err)
	}
	return s.save(ctx, &userTable, id, b)
}
