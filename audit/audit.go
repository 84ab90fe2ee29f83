// Package audit records command invocations.
//
// Invokers are recorded by userhash rather than by ID, so a log shows which
// invocations came from the same user in a server without naming them.
package audit

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/tilde/command"
	"github.com/zephyrtronium/tilde/message"
	"github.com/zephyrtronium/tilde/userhash"
)

//go:embed schema.sql
var schemaSQL string

// Init initializes an SQLite DB to record invocations.
func Init[DB *sqlitex.Pool | *sqlite.Conn](ctx context.Context, db DB) error {
	var conn *sqlite.Conn
	switch db := any(db).(type) {
	case *sqlite.Conn:
		conn = db
	case *sqlitex.Pool:
		var err error
		conn, err = db.Take(ctx)
		defer db.Put(conn)
		if err != nil {
			return fmt.Errorf("couldn't get conn to initialize audit log: %w", err)
		}
	}
	err := sqlitex.ExecuteScript(conn, schemaSQL, nil)
	if err != nil {
		return fmt.Errorf("couldn't initialize audit schema: %w", err)
	}
	return nil
}

// Log is an audit log backed by an SQL database.
type Log struct {
	db   *sqlitex.Pool
	hash userhash.Hasher
}

var _ command.Auditor = (*Log)(nil)

// Open opens an audit log in an existing database.
func Open(ctx context.Context, db *sqlitex.Pool, hash userhash.Hasher) (*Log, error) {
	return &Log{db: db, hash: hash}, nil
}

// meta is metadata recorded with an invocation.
type meta struct {
	Platform string `json:"platform,omitzero"`
	ID       string `json:"id,omitzero"`
	Channel  string `json:"channel,omitzero"`
}

// Entry is a recorded invocation.
type Entry struct {
	Time    time.Time
	User    userhash.Hash
	Group   string
	Trigger string
	// Platform is the platform the invoking message came from.
	Platform string
}

// Record records an invocation of a command.
func (l *Log) Record(ctx context.Context, msg *message.Received, group, trigger string) error {
	conn, err := l.db.Take(ctx)
	defer l.db.Put(conn)
	if err != nil {
		return fmt.Errorf("couldn't get conn to record invocation: %w", err)
	}
	m := meta{
		Platform: msg.Platform,
		ID:       msg.ID,
		Channel:  msg.Channel,
	}
	md, err := json.Marshal(&m)
	if err != nil {
		// Should be impossible. Explode loudly.
		go panic(fmt.Errorf("audit: couldn't marshal metadata %#v: %w", m, err))
	}
	var h userhash.Hash
	l.hash.Hash(&h, msg.User(), msg.ServerID())
	const insert = `INSERT INTO audit (time, server, user, grp, cmd, meta) VALUES (:time, :server, :user, :grp, :cmd, JSONB(CAST(:meta AS TEXT)))`
	opts := sqlitex.ExecOptions{
		Named: map[string]any{
			":time":   msg.Time().UnixNano(),
			":server": msg.ServerID(),
			":user":   h[:],
			":grp":    group,
			":cmd":    trigger,
			":meta":   md,
		},
	}
	if err := sqlitex.Execute(conn, insert, &opts); err != nil {
		return fmt.Errorf("couldn't record invocation: %w", err)
	}
	return nil
}

// Recent returns up to n of the most recent invocations in a server, newest
// first. The server is its platform-qualified ID.
func (l *Log) Recent(ctx context.Context, server string, n int) ([]Entry, error) {
	conn, err := l.db.Take(ctx)
	defer l.db.Put(conn)
	if err != nil {
		return nil, fmt.Errorf("couldn't get conn to read audit log: %w", err)
	}
	const sel = `SELECT time, user, grp, cmd, JSON(meta) FROM audit WHERE server = :server ORDER BY time DESC, rowid DESC LIMIT :n`
	var r []Entry
	opts := sqlitex.ExecOptions{
		Named: map[string]any{":server": server, ":n": int64(n)},
		ResultFunc: func(st *sqlite.Stmt) error {
			e := Entry{
				Time:    time.Unix(0, st.ColumnInt64(0)),
				Group:   st.ColumnText(2),
				Trigger: st.ColumnText(3),
			}
			st.ColumnBytes(1, e.User[:])
			var m meta
			if err := json.Unmarshal([]byte(st.ColumnText(4)), &m); err != nil {
				return fmt.Errorf("couldn't decode metadata: %w", err)
			}
			e.Platform = m.Platform
			r = append(r, e)
			return nil
		},
	}
	if err := sqlitex.Execute(conn, sel, &opts); err != nil {
		return nil, fmt.Errorf("couldn't read audit log: %w", err)
	}
	return r, nil
}
