package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/go-json-experiment/json"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/tilde/userhash"
)

// Load loads a configuration. The format is TOML if name has a .toml
// extension and JSON otherwise.
func Load(ctx context.Context, name string, r io.Reader) (*Config, error) {
	var cfg Config
	if strings.EqualFold(filepath.Ext(name), ".toml") {
		if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("couldn't decode config: %w", err)
		}
	} else {
		if err := json.UnmarshalRead(r, &cfg); err != nil {
			return nil, fmt.Errorf("couldn't decode config: %w", err)
		}
	}
	expandcfg(&cfg, os.Getenv)
	return &cfg, nil
}

// Config is the marshaled structure of the bot's configuration.
type Config struct {
	// Owners are the platform-qualified IDs of users who have every
	// privilege everywhere, e.g. "discord:1234" or "tmi:51421897".
	Owners []string `toml:"owners" json:"owners"`
	// SecretFile is the path to a file containing a secret key used to
	// derive the key for hashing users in the audit log.
	SecretFile string `toml:"secret" json:"secret"`
	// DB is the table of database connection strings.
	DB DBCfg `toml:"db" json:"db"`
	// HTTP is the configuration of the HTTP API.
	HTTP HTTPCfg `toml:"http" json:"http"`
	// Bot is the table of command engine defaults.
	Bot BotCfg `toml:"bot" json:"bot"`
	// Rate is the per-server rate limit on replies.
	Rate Rate `toml:"rate" json:"rate"`
	// Discord is the configuration for connecting to Discord.
	// If nil, the bot does not connect to Discord.
	Discord *DiscordCfg `toml:"discord" json:"discord"`
	// TMI is the configuration for connecting to Twitch chat.
	// If nil, the bot does not connect to Twitch.
	TMI *TMICfg `toml:"tmi" json:"tmi"`
}

// DBCfg is the configuration of databases.
// Exactly one of Settings and KVSettings must be set.
type DBCfg struct {
	// Settings is the SQLite DSN for server and user settings.
	Settings string `toml:"settings" json:"settings"`
	// KVSettings is the Badger directory for server and user settings.
	KVSettings string `toml:"kvsettings" json:"kvsettings"`
	// KVFlag is a Badger superflag string applied to KVSettings.
	KVFlag string `toml:"kvflag" json:"kvflag"`
	// Privilege is the SQLite DSN for explicit privilege grants.
	// If empty, grants are disabled.
	Privilege string `toml:"privilege" json:"privilege"`
	// Audit is the SQLite DSN for the command audit log.
	// If empty, invocations are not recorded.
	Audit string `toml:"audit" json:"audit"`
}

// HTTPCfg is the configuration of the HTTP API.
type HTTPCfg struct {
	// Listen is the address to serve on. If empty, there is no API.
	Listen string `toml:"listen" json:"listen"`
}

// BotCfg is the configuration of command engine defaults.
type BotCfg struct {
	// Prefix is the command prefix for servers that haven't set one.
	Prefix string `toml:"prefix" json:"prefix"`
	// Addons are the groups visible everywhere.
	Addons []string `toml:"addons" json:"addons"`
	// Default are the groups enabled in servers with no configuration and
	// in private messages.
	Default []string `toml:"default" json:"default"`
	// Color is the default embed color as RGB.
	Color int `toml:"color" json:"color"`
}

// DiscordCfg is the configuration for connecting to Discord.
type DiscordCfg struct {
	// Token is the bot token.
	Token string `toml:"token" json:"token"`
}

// TMICfg is the configuration for connecting to Twitch chat.
type TMICfg struct {
	// Nick is the bot's login name.
	Nick string `toml:"nick" json:"nick"`
	// TokenFile is the path to a file containing the bot's access token.
	TokenFile string `toml:"token" json:"token"`
	// Channels are the channels to join.
	Channels []string `toml:"channels" json:"channels"`
	// Rate is the global rate limit on sent messages.
	Rate Rate `toml:"rate" json:"rate"`
}

// Rate is a rate limit configuration.
type Rate struct {
	// Every is the number of seconds to restore one token.
	Every float64 `toml:"every" json:"every"`
	// Num is the burst size.
	Num int `toml:"num" json:"num"`
}

func expandcfg(cfg *Config, expand func(s string) string) {
	fields := []*string{
		&cfg.SecretFile,
		&cfg.DB.Settings,
		&cfg.DB.KVSettings,
		&cfg.DB.KVFlag,
		&cfg.DB.Privilege,
		&cfg.DB.Audit,
		&cfg.HTTP.Listen,
		&cfg.Bot.Prefix,
	}
	if cfg.Discord != nil {
		fields = append(fields, &cfg.Discord.Token)
	}
	if cfg.TMI != nil {
		fields = append(fields, &cfg.TMI.Nick, &cfg.TMI.TokenFile)
		for i := range cfg.TMI.Channels {
			fields = append(fields, &cfg.TMI.Channels[i])
		}
	}
	for i := range cfg.Owners {
		fields = append(fields, &cfg.Owners[i])
	}
	for _, f := range fields {
		*f = os.Expand(*f, expand)
	}
}

// databases are the opened databases named in a DBCfg.
// Pools with the same DSN are shared.
type databases struct {
	kv        *badger.DB
	settings  *sqlitex.Pool
	privilege *sqlitex.Pool
	audit     *sqlitex.Pool
}

func loadDBs(ctx context.Context, cfg DBCfg) (*databases, error) {
	if cfg.KVSettings != "" && cfg.Settings != "" {
		return nil, errors.New("multiple settings backends requested; use exactly one")
	}
	if cfg.KVSettings == "" && cfg.Settings == "" {
		return nil, errors.New("no settings backends requested; use exactly one")
	}
	var dbs databases
	var err error
	if cfg.KVSettings != "" {
		slog.DebugContext(ctx, "using kvsettings", slog.String("path", cfg.KVSettings), slog.String("flags", cfg.KVFlag))
		opts := badger.DefaultOptions(cfg.KVSettings)
		opts = opts.WithLogger(nil)
		opts = opts.WithCompression(options.None)
		dbs.kv, err = badger.Open(opts.FromSuperFlag(cfg.KVFlag))
		if err != nil {
			return nil, fmt.Errorf("couldn't open kvsettings db: %w", err)
		}
	}
	pools := make(map[string]*sqlitex.Pool)
	open := func(what, dsn string) (*sqlitex.Pool, error) {
		if dsn == "" {
			return nil, nil
		}
		if p := pools[dsn]; p != nil {
			slog.DebugContext(ctx, "sharing db", slog.String("db", what), slog.String("path", dsn))
			return p, nil
		}
		slog.DebugContext(ctx, "using db", slog.String("db", what), slog.String("path", dsn))
		p, err := sqlitex.NewPool(dsn, sqlitex.PoolOptions{})
		if err != nil {
			return nil, fmt.Errorf("couldn't open %s db: %w", what, err)
		}
		pools[dsn] = p
		return p, nil
	}
	if dbs.settings, err = open("settings", cfg.Settings); err != nil {
		dbs.Close()
		return nil, err
	}
	if dbs.privilege, err = open("privilege", cfg.Privilege); err != nil {
		dbs.Close()
		return nil, err
	}
	if dbs.audit, err = open("audit", cfg.Audit); err != nil {
		dbs.Close()
		return nil, err
	}
	return &dbs, nil
}

// Close closes all opened databases.
func (dbs *databases) Close() error {
	var errs []error
	if dbs.kv != nil {
		errs = append(errs, dbs.kv.Close())
	}
	closed := make(map[*sqlitex.Pool]bool)
	for _, p := range []*sqlitex.Pool{dbs.settings, dbs.privilege, dbs.audit} {
		if p == nil || closed[p] {
			continue
		}
		closed[p] = true
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// loadSecret reads the secret key file and derives the audit hash key.
func loadSecret(file string) ([]byte, error) {
	if file == "" {
		return nil, errors.New("audit log requires a secret key file")
	}
	k, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("couldn't read secret key: %w", err)
	}
	return userhash.Derive(k, []byte("audit"))
}

func fseconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
