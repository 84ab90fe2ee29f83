package kvstore_test

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/zephyrtronium/tilde/settings"
	"github.com/zephyrtronium/tilde/settings/kvstore"
	"github.com/zephyrtronium/tilde/settings/settingstest"
)

func TestStore(t *testing.T) {
	settingstest.Test(context.Background(), t, func(ctx context.Context) settings.Store {
		db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { db.Close() })
		return kvstore.New(db)
	})
}
