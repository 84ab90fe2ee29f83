package settings_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/zephyrtronium/tilde/settings"
)

func TestServerGroups(t *testing.T) {
	var s settings.Server
	if s.Enabled("text") {
		t.Errorf("empty config has text enabled")
	}
	if !s.Enable("text") {
		t.Errorf("couldn't enable text")
	}
	if s.Enable("text") {
		t.Errorf("enabled text twice")
	}
	if !s.Enable("fun") {
		t.Errorf("couldn't enable fun")
	}
	if diff := cmp.Diff([]string{"text", "fun"}, s.Addons); diff != "" {
		t.Errorf("wrong addons after enabling (+got/-want):\n%s", diff)
	}
	if !s.Disable("text") {
		t.Errorf("couldn't disable text")
	}
	if s.Disable("text") {
		t.Errorf("disabled text twice")
	}
	if diff := cmp.Diff([]string{"fun"}, s.Addons); diff != "" {
		t.Errorf("wrong addons after disabling (+got/-want):\n%s", diff)
	}
}

func TestSettingsBlobs(t *testing.T) {
	type blob struct {
		Commands map[string]string `json:"commands"`
	}
	var s settings.Server
	var got blob
	ok, err := s.Get("custom", &got)
	if ok || err != nil {
		t.Errorf("empty config has settings: %t %v", ok, err)
	}
	want := blob{Commands: map[string]string{"hi": "hello {args}"}}
	if err := s.Set("custom", want); err != nil {
		t.Fatalf("couldn't set settings: %v", err)
	}
	ok, err = s.Get("custom", &got)
	if !ok || err != nil {
		t.Fatalf("couldn't get settings: %t %v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong settings (+got/-want):\n%s", diff)
	}

	var u settings.User
	if err := u.Set("text", 7); err != nil {
		t.Fatalf("couldn't set user settings: %v", err)
	}
	var n int
	if ok, err := u.Get("text", &n); !ok || err != nil || n != 7 {
		t.Errorf("wrong user settings: %d %t %v", n, ok, err)
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := settings.NewMemory()
	if _, err := m.Server(ctx, "1"); !errors.Is(err, settings.ErrNotFound) {
		t.Errorf("wrong error for missing server: %v", err)
	}
	if _, err := m.User(ctx, "discord:1"); !errors.Is(err, settings.ErrNotFound) {
		t.Errorf("wrong error for missing user: %v", err)
	}
	cfg := &settings.Server{Prefix: "!", Addons: []string{"text"}, Color: 0xff00ff}
	if err := cfg.Set("custom", map[string]string{"a": "b"}); err != nil {
		t.Fatal(err)
	}
	if err := m.SetServer(ctx, "1", cfg); err != nil {
		t.Fatalf("couldn't save server: %v", err)
	}
	if err := m.SetServer(ctx, "0", &settings.Server{Prefix: "~"}); err != nil {
		t.Fatalf("couldn't save server: %v", err)
	}
	got, err := m.Server(ctx, "1")
	if err != nil {
		t.Fatalf("couldn't load server: %v", err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("wrong server (+got/-want):\n%s", diff)
	}
	// Loaded values must not alias saved ones.
	got.Enable("fun")
	again, _ := m.Server(ctx, "1")
	if again.Enabled("fun") {
		t.Errorf("modification of loaded config changed the store")
	}
	ids, err := m.Servers(ctx)
	if err != nil {
		t.Fatalf("couldn't list servers: %v", err)
	}
	if diff := cmp.Diff([]string{"0", "1"}, ids); diff != "" {
		t.Errorf("wrong servers (+got/-want):\n%s", diff)
	}
	u := new(settings.User)
	u.Set("text", "x")
	if err := m.SetUser(ctx, "discord:1", u); err != nil {
		t.Fatalf("couldn't save user: %v", err)
	}
	gu, err := m.User(ctx, "discord:1")
	if err != nil {
		t.Fatalf("couldn't load user: %v", err)
	}
	if diff := cmp.Diff(u, gu); diff != "" {
		t.Errorf("wrong user (+got/-want):\n%s", diff)
	}
}
