package audit_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/tilde/audit"
	"github.com/zephyrtronium/tilde/message"
	"github.com/zephyrtronium/tilde/userhash"
)

var dbCount atomic.Int64

func testDB(t *testing.T) *sqlitex.Pool {
	ctx := context.Background()
	k := dbCount.Add(1)
	pool, err := sqlitex.NewPool(fmt.Sprintf("file:test-audit-%d.db?mode=memory&cache=shared", k), sqlitex.PoolOptions{Flags: sqlite.OpenReadWrite | sqlite.OpenCreate | sqlite.OpenMemory | sqlite.OpenSharedCache | sqlite.OpenURI, PoolSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pool.Close() })
	if err := audit.Init(ctx, pool); err != nil {
		t.Fatal(err)
	}
	return pool
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	hr := userhash.New([]byte("madoka"))
	l, err := audit.Open(ctx, db, hr)
	if err != nil {
		t.Fatal(err)
	}
	msgs := []*message.Received{
		{ID: "1", Platform: "discord", Server: "kessoku", Sender: "bocchi", Timestamp: 1000},
		{ID: "2", Platform: "discord", Server: "kessoku", Sender: "ryou", Timestamp: 2000},
		{ID: "3", Platform: "tmi", Server: "starry", Sender: "bocchi", Timestamp: 3000},
		{ID: "4", Platform: "discord", Server: "kessoku", Sender: "bocchi", Timestamp: 4000},
		// Same server name on another platform is a different server.
		{ID: "5", Platform: "api", Server: "kessoku", Sender: "bocchi", Timestamp: 5000},
	}
	cmds := [][2]string{{"text", "say"}, {"text", "flip"}, {"core", "help"}, {"discord:kessoku", "band"}, {"text", "say"}}
	for i, m := range msgs {
		if err := l.Record(ctx, m, cmds[i][0], cmds[i][1]); err != nil {
			t.Errorf("couldn't record %s: %v", m.ID, err)
		}
	}
	hash := func(user, server string) userhash.Hash {
		return *hr.Hash(new(userhash.Hash), user, server)
	}
	got, err := l.Recent(ctx, "discord:kessoku", 5)
	if err != nil {
		t.Fatalf("couldn't read log: %v", err)
	}
	want := []audit.Entry{
		{Time: time.UnixMilli(4000), User: hash("discord:bocchi", "discord:kessoku"), Group: "discord:kessoku", Trigger: "band", Platform: "discord"},
		{Time: time.UnixMilli(2000), User: hash("discord:ryou", "discord:kessoku"), Group: "text", Trigger: "flip", Platform: "discord"},
		{Time: time.UnixMilli(1000), User: hash("discord:bocchi", "discord:kessoku"), Group: "text", Trigger: "say", Platform: "discord"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong entries (+got/-want):\n%s", diff)
	}
	got, err = l.Recent(ctx, "discord:kessoku", 1)
	if err != nil {
		t.Fatalf("couldn't read log: %v", err)
	}
	if diff := cmp.Diff(want[:1], got); diff != "" {
		t.Errorf("wrong limited entries (+got/-want):\n%s", diff)
	}
	got, err = l.Recent(ctx, "api:kessoku", 5)
	if err != nil {
		t.Fatalf("couldn't read log: %v", err)
	}
	if len(got) != 1 || got[0].Platform != "api" {
		t.Errorf("wrong entries for api server: %+v", got)
	}
	got, err = l.Recent(ctx, "nothing", 5)
	if err != nil {
		t.Fatalf("couldn't read empty log: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("entries for server with no invocations: %v", got)
	}
}
