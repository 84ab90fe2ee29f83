package main_test

import (
	"context"
	_ "embed"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	main "github.com/zephyrtronium/tilde"
)

//go:embed example.toml
var exampleToml string

//go:embed example.json
var exampleJSON string

func eqcase[T comparable](t *testing.T, name string, val T, eq T) {
	t.Helper()
	if val != eq {
		t.Errorf("wrong %s: want %#v, got %#v", name, eq, val)
	}
}

func TestExampleConfig(t *testing.T) {
	t.Setenv("TILDE_DIR", "/var/tilde")
	t.Setenv("DISCORD_TOKEN", "kessoku")
	cfg, err := main.Load(context.Background(), "example.toml", strings.NewReader(exampleToml))
	if err != nil {
		t.Fatalf("failed to load example.toml: %v", err)
	}

	if diff := cmp.Diff([]string{"discord:140000000000000000", "tmi:zephyrtronium"}, cfg.Owners); diff != "" {
		t.Errorf("wrong owners (+got/-want):\n%s", diff)
	}
	eqcase(t, "SecretFile", cfg.SecretFile, "/var/tilde/key")
	eqcase(t, "DB.Settings", cfg.DB.Settings, "file:/var/tilde/tilde.db")
	eqcase(t, "DB.KVSettings", cfg.DB.KVSettings, "")
	eqcase(t, "DB.Privilege", cfg.DB.Privilege, "file:/var/tilde/tilde.db")
	eqcase(t, "DB.Audit", cfg.DB.Audit, "file:/var/tilde/audit.db")
	eqcase(t, "HTTP.Listen", cfg.HTTP.Listen, ":4959")
	eqcase(t, "Bot.Prefix", cfg.Bot.Prefix, "~")
	eqcase(t, "Bot.Color", cfg.Bot.Color, 0xe84a72)
	if diff := cmp.Diff([]string{"core"}, cfg.Bot.Addons); diff != "" {
		t.Errorf("wrong always-on addons (+got/-want):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"text"}, cfg.Bot.Default); diff != "" {
		t.Errorf("wrong default addons (+got/-want):\n%s", diff)
	}
	eqcase(t, "Rate.Every", cfg.Rate.Every, 2.5)
	eqcase(t, "Rate.Num", cfg.Rate.Num, 5)
	if cfg.Discord == nil {
		t.Fatal("no discord config")
	}
	eqcase(t, "Discord.Token", cfg.Discord.Token, "kessoku")
	if cfg.TMI == nil {
		t.Fatal("no tmi config")
	}
	eqcase(t, "TMI.Nick", cfg.TMI.Nick, "bocchi_bot")
	eqcase(t, "TMI.TokenFile", cfg.TMI.TokenFile, "/var/tilde/tmi_token")
	eqcase(t, "TMI.Rate.Every", cfg.TMI.Rate.Every, 30)
	eqcase(t, "TMI.Rate.Num", cfg.TMI.Rate.Num, 20)
	if diff := cmp.Diff([]string{"#kessoku", "starry"}, cfg.TMI.Channels); diff != "" {
		t.Errorf("wrong channels (+got/-want):\n%s", diff)
	}
}

func TestExampleJSONConfig(t *testing.T) {
	t.Setenv("TILDE_DIR", "/var/tilde")
	t.Setenv("DISCORD_TOKEN", "kessoku")
	cfg, err := main.Load(context.Background(), "bot.conf.json", strings.NewReader(exampleJSON))
	if err != nil {
		t.Fatalf("failed to load example.json: %v", err)
	}
	eqcase(t, "DB.Settings", cfg.DB.Settings, "")
	eqcase(t, "DB.KVSettings", cfg.DB.KVSettings, "/var/tilde/settings")
	eqcase(t, "DB.KVFlag", cfg.DB.KVFlag, "num_versions=1")
	eqcase(t, "DB.Privilege", cfg.DB.Privilege, "")
	eqcase(t, "HTTP.Listen", cfg.HTTP.Listen, "localhost:4959")
	eqcase(t, "Bot.Prefix", cfg.Bot.Prefix, "!")
	if diff := cmp.Diff([]string{"text", "custom"}, cfg.Bot.Default); diff != "" {
		t.Errorf("wrong default addons (+got/-want):\n%s", diff)
	}
	eqcase(t, "Rate.Every", cfg.Rate.Every, 1)
	eqcase(t, "Rate.Num", cfg.Rate.Num, 3)
	if cfg.Discord == nil || cfg.Discord.Token != "kessoku" {
		t.Errorf("wrong discord config %+v", cfg.Discord)
	}
	if cfg.TMI != nil {
		t.Errorf("tmi configured: %+v", cfg.TMI)
	}
}

func TestBadConfig(t *testing.T) {
	cases := []struct {
		name string
		file string
		in   string
	}{
		{"toml", "bot.toml", "owners = ["},
		{"json", "bot.conf.json", `{"owners": `},
		{"json-as-toml", "bot.TOML", `{"owners": []}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := main.Load(context.Background(), c.file, strings.NewReader(c.in))
			if err == nil {
				t.Errorf("no error loading %q as %s", c.in, c.file)
			}
		})
	}
}
