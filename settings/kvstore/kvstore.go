// Package kvstore implements settings storage in a Badger database.
package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/zephyrtronium/tilde/settings"
)

/*
Key structure:
Kind × ID
- Kind is one byte, 's' for servers or 'u' for users, followed by \x00.
- ID is the raw server or user ID.

Values are the stored JSON configuration.
*/

const (
	serverKind = 's'
	userKind   = 'u'
)

func key(kind byte, id string) []byte {
	b := make([]byte, 0, 2+len(id))
	b = append(b, kind, 0)
	return append(b, id...)
}

// Store is a settings store backed by a Badger database.
type Store struct {
	db *badger.DB
}

var _ settings.Store = (*Store)(nil)

// New creates a store in a Badger database.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

func (s *Store) load(kind byte, id string) ([]byte, error) {
	var b []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(kind, id))
		if err != nil {
			return err
		}
		b, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, settings.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't load settings for %s: %w", id, err)
	}
	return b, nil
}

func (s *Store) save(kind byte, id string, b []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(kind, id), b)
	})
	if err != nil {
		return fmt.Errorf("couldn't save settings for %s: %w", id, err)
	}
	return nil
}

// Server loads a server's configuration.
func (s *Store) Server(ctx context.Context, id string) (*settings.Server, error) {
	b, err := s.load(serverKind, id)
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
	return s.save(serverKind, id, b)
}

// Servers lists the IDs of servers with saved configuration in key order.
func (s *Store) Servers(ctx context.Context) ([]string, error) {
	var r []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte{serverKind, 0}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			k := it.Item().Key()
			r = append(r, string(k[2:]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't list servers: %w", err)
	}
	return r, nil
}

// User loads a user's configuration.
func (s *Store) User(ctx context.Context, id string) (*settings.User, error) {
	b, err := s.load(userKind, id)
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
	return s.save(userKind, id, b)
}
