// Package settingstest provides integration testing facilities for settings
// stores.
package settingstest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/zephyrtronium/tilde/settings"
)

// Test runs the integration test suite against stores produced by new.
//
// If a store cannot be created without error, new should call t.Fatal.
func Test(ctx context.Context, t *testing.T, new func(context.Context) settings.Store) {
	t.Run("missing", testMissing(ctx, new(ctx)))
	t.Run("server", testServer(ctx, new(ctx)))
	t.Run("overwrite", testOverwrite(ctx, new(ctx)))
	t.Run("servers", testServers(ctx, new(ctx)))
	t.Run("user", testUser(ctx, new(ctx)))
	t.Run("concurrent", testConcurrent(ctx, new(ctx)))
}

func testMissing(ctx context.Context, s settings.Store) func(t *testing.T) {
	return func(t *testing.T) {
		if _, err := s.Server(ctx, "kessoku"); !errors.Is(err, settings.ErrNotFound) {
			t.Errorf("wrong error for missing server: want %v, got %v", settings.ErrNotFound, err)
		}
		if _, err := s.User(ctx, "discord:bocchi"); !errors.Is(err, settings.ErrNotFound) {
			t.Errorf("wrong error for missing user: want %v, got %v", settings.ErrNotFound, err)
		}
		ids, err := s.Servers(ctx)
		if err != nil {
			t.Errorf("couldn't list servers: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("empty store has servers %q", ids)
		}
	}
}

func testServer(ctx context.Context, s settings.Store) func(t *testing.T) {
	return func(t *testing.T) {
		want := &settings.Server{
			Prefix: "!",
			Addons: []string{"text", "custom"},
			Color:  0xf0a0c0,
		}
		if err := want.Set("custom", map[string]string{"hi": "hello {args}"}); err != nil {
			t.Fatal(err)
		}
		if err := s.SetServer(ctx, "kessoku", want); err != nil {
			t.Fatalf("couldn't save server: %v", err)
		}
		got, err := s.Server(ctx, "kessoku")
		if err != nil {
			t.Fatalf("couldn't load server: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("wrong server config (+got/-want):\n%s", diff)
		}
		var m map[string]string
		if ok, err := got.Get("custom", &m); !ok || err != nil {
			t.Errorf("couldn't decode addon settings: %t %v", ok, err)
		}
		if m["hi"] != "hello {args}" {
			t.Errorf("wrong addon settings: %v", m)
		}
	}
}

func testOverwrite(ctx context.Context, s settings.Store) func(t *testing.T) {
	return func(t *testing.T) {
		if err := s.SetServer(ctx, "kessoku", &settings.Server{Prefix: "~", Addons: []string{"text"}}); err != nil {
			t.Fatalf("couldn't save server: %v", err)
		}
		want := &settings.Server{Prefix: "$"}
		if err := s.SetServer(ctx, "kessoku", want); err != nil {
			t.Fatalf("couldn't overwrite server: %v", err)
		}
		got, err := s.Server(ctx, "kessoku")
		if err != nil {
			t.Fatalf("couldn't load server: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("wrong server config after overwrite (+got/-want):\n%s", diff)
		}
	}
}

func testServers(ctx context.Context, s settings.Store) func(t *testing.T) {
	return func(t *testing.T) {
		want := []string{"kessoku", "sick", "starry"}
		for _, id := range []string{"starry", "kessoku", "sick"} {
			if err := s.SetServer(ctx, id, &settings.Server{Prefix: "~"}); err != nil {
				t.Fatalf("couldn't save server %s: %v", id, err)
			}
		}
		if err := s.SetUser(ctx, "discord:bocchi", &settings.User{}); err != nil {
			t.Fatalf("couldn't save user: %v", err)
		}
		got, err := s.Servers(ctx)
		if err != nil {
			t.Fatalf("couldn't list servers: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("wrong servers (+got/-want):\n%s", diff)
		}
	}
}

func testUser(ctx context.Context, s settings.Store) func(t *testing.T) {
	return func(t *testing.T) {
		want := new(settings.User)
		if err := want.Set("text", map[string]int{"flips": 3}); err != nil {
			t.Fatal(err)
		}
		if err := s.SetUser(ctx, "discord:bocchi", want); err != nil {
			t.Fatalf("couldn't save user: %v", err)
		}
		got, err := s.User(ctx, "discord:bocchi")
		if err != nil {
			t.Fatalf("couldn't load user: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("wrong user config (+got/-want):\n%s", diff)
		}
		// Users and servers are separate namespaces.
		if _, err := s.Server(ctx, "discord:bocchi"); !errors.Is(err, settings.ErrNotFound) {
			t.Errorf("user leaked into servers: %v", err)
		}
	}
}

func testConcurrent(ctx context.Context, s settings.Store) func(t *testing.T) {
	return func(t *testing.T) {
		const n = 16
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := fmt.Sprint(i)
				cfg := &settings.Server{Prefix: id}
				if err := s.SetServer(ctx, id, cfg); err != nil {
					errs[i] = err
					return
				}
				got, err := s.Server(ctx, id)
				if err != nil {
					errs[i] = err
					return
				}
				if got.Prefix != id {
					errs[i] = fmt.Errorf("wrong prefix for %s: %q", id, got.Prefix)
				}
			}()
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				t.Error(err)
			}
		}
	}
}
