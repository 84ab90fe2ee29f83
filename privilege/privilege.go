// Package privilege records privilege levels granted explicitly to users.
//
// A grant applies either in one server or, with the empty server ID,
// everywhere. A server-specific grant takes precedence over a global one.
package privilege

import (
	"context"
	_ "embed"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/tilde/command"
)

//go:embed schema.sql
var schemaSQL string

// Init initializes grants in an SQL database.
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
	if err := sqlitex.ExecuteScript(conn, schemaSQL, nil); err != nil {
		return fmt.Errorf("couldn't initialize privilege schema: %w", err)
	}
	return nil
}

// List is a list of grants backed by an SQL database.
type List struct {
	db *sqlitex.Pool
}

var _ command.Grants = (*List)(nil)

// Open opens an existing grant list in an SQL database.
func Open(ctx context.Context, db *sqlitex.Pool) (*List, error) {
	return &List{db: db}, nil
}

// Grant is a level granted to a user.
type Grant struct {
	Server string
	User   string
	Level  command.Level
}

// Set grants a level to a platform-qualified user in a server, replacing any
// existing grant there.
func (l *List) Set(ctx context.Context, server, user string, level command.Level) error {
	conn, err := l.db.Take(ctx)
	defer l.db.Put(conn)
	if err != nil {
		return fmt.Errorf("couldn't get connection to grant level: %w", err)
	}
	const ins = `INSERT INTO privilege (server, user, level) VALUES (:server, :user, :level) ON CONFLICT (server, user) DO UPDATE SET level = excluded.level`
	opts := sqlitex.ExecOptions{
		Named: map[string]any{":server": server, ":user": user, ":level": int64(level)},
	}
	if err := sqlitex.Execute(conn, ins, &opts); err != nil {
		return fmt.Errorf("couldn't grant %v to %s in %q: %w", level, user, server, err)
	}
	return nil
}

// Remove removes a user's grant in a server. It is not an error if there is
// no such grant.
func (l *List) Remove(ctx context.Context, server, user string) error {
	conn, err := l.db.Take(ctx)
	defer l.db.Put(conn)
	if err != nil {
		return fmt.Errorf("couldn't get connection to remove grant: %w", err)
	}
	opts := sqlitex.ExecOptions{
		Named: map[string]any{":server": server, ":user": user},
	}
	if err := sqlitex.Execute(conn, `DELETE FROM privilege WHERE server = :server AND user = :user`, &opts); err != nil {
		return fmt.Errorf("couldn't remove grant for %s in %q: %w", user, server, err)
	}
	return nil
}

// Level returns the level granted to a user in a server, falling back to
// the user's global grant. The result is false if neither exists.
func (l *List) Level(ctx context.Context, server, user string) (command.Level, bool, error) {
	conn, err := l.db.Take(ctx)
	defer l.db.Put(conn)
	if err != nil {
		return command.Disallowed, false, fmt.Errorf("couldn't get connection to check grant: %w", err)
	}
	// The empty server sorts first, so descending order puts the
	// server-specific grant ahead of the global one.
	const sel = `SELECT level FROM privilege WHERE user = :user AND server IN (:server, '') ORDER BY server DESC LIMIT 1`
	var (
		r  command.Level
		ok bool
	)
	opts := sqlitex.ExecOptions{
		Named: map[string]any{":server": server, ":user": user},
		ResultFunc: func(st *sqlite.Stmt) error {
			r, ok = command.Level(st.ColumnInt64(0)), true
			return nil
		},
	}
	if err := sqlitex.Execute(conn, sel, &opts); err != nil {
		return command.Disallowed, false, fmt.Errorf("couldn't check grant for %s in %q: %w", user, server, err)
	}
	return r, ok, nil
}

// Grants lists the grants in a server, not including global ones.
func (l *List) Grants(ctx context.Context, server string) ([]Grant, error) {
	conn, err := l.db.Take(ctx)
	defer l.db.Put(conn)
	if err != nil {
		return nil, fmt.Errorf("couldn't get connection to list grants: %w", err)
	}
	var r []Grant
	opts := sqlitex.ExecOptions{
		Named: map[string]any{":server": server},
		ResultFunc: func(st *sqlite.Stmt) error {
			r = append(r, Grant{
				Server: server,
				User:   st.ColumnText(0),
				Level:  command.Level(st.ColumnInt64(1)),
			})
			return nil
		},
	}
	if err := sqlitex.Execute(conn, `SELECT user, level FROM privilege WHERE server = :server ORDER BY user`, &opts); err != nil {
		return nil, fmt.Errorf("couldn't list grants in %q: %w", server, err)
	}
	return r, nil
}
