package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/zephyrtronium/tilde/message"
	"github.com/zephyrtronium/tilde/metrics"
	"github.com/zephyrtronium/tilde/settings"
	"github.com/zephyrtronium/tilde/syncmap"
)

// Grants looks up privilege levels granted explicitly to users.
type Grants interface {
	// Level returns the level granted to a platform-qualified user in a
	// server. The result is false if there is no grant.
	Level(ctx context.Context, server, user string) (Level, bool, error)
}

// Auditor records command invocations.
type Auditor interface {
	Record(ctx context.Context, msg *message.Received, group, trigger string) error
}

// Config is the configuration for a Bot.
type Config struct {
	// Log is the logger. If nil, slog.Default is used.
	Log *slog.Logger
	// Store persists server and user configuration. If nil, configuration
	// is held in memory only.
	Store settings.Store
	// Grants is an optional source of explicit privilege levels.
	Grants Grants
	// Audit optionally records every command invocation.
	Audit Auditor
	// Metrics receives bot metrics. If nil, nothing is observed.
	Metrics *metrics.Metrics
	// Owners are the platform-qualified IDs of users with Superuser level
	// everywhere, e.g. "discord:1234".
	Owners []string
	// Prefix is the command prefix for servers that haven't set one.
	Prefix string
	// Always are the groups visible in every context.
	Always []string
	// Defaults are the groups enabled for servers with no configuration and
	// in private messages.
	Defaults []string
	// Color is the embed color for servers that haven't set one.
	Color int
}

// DefaultPrefix is the command prefix used when none is configured.
const DefaultPrefix = "~"

// Bot is the runtime context of command evaluation: the installed addons,
// the command registry, and the configuration of servers and users.
type Bot struct {
	log      *slog.Logger
	store    settings.Store
	grants   Grants
	audit    Auditor
	metrics  *metrics.Metrics
	owners   map[string]bool
	prefix   string
	always   []string
	defaults []string
	color    int

	// servers and users cache the live configuration instances.
	servers syncmap.Map[string, *settings.Server]
	users   syncmap.Map[string, *settings.User]
	// cfgmu serializes changes to cached configuration with reads of it.
	cfgmu sync.RWMutex

	conns syncmap.Map[string, Connection]

	// reg is the live registry. staging is the registry under construction
	// during a reload.
	reg     atomic.Pointer[Registry]
	staging atomic.Pointer[Registry]
	// loadmu serializes reloads and guards loaded.
	loadmu sync.Mutex
	loaded bool
	// addmu guards addons.
	addmu  sync.Mutex
	addons []Addon
}

// New creates a new bot with no addons installed.
func New(cfg Config) *Bot {
	b := &Bot{
		log:      cfg.Log,
		store:    cfg.Store,
		grants:   cfg.Grants,
		audit:    cfg.Audit,
		metrics:  cfg.Metrics,
		owners:   make(map[string]bool, len(cfg.Owners)),
		prefix:   cfg.Prefix,
		always:   slices.Clone(cfg.Always),
		defaults: slices.Clone(cfg.Defaults),
		color:    cfg.Color,
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	if b.store == nil {
		b.store = settings.NewMemory()
	}
	if b.metrics == nil {
		b.metrics = metrics.Nop()
	}
	if b.prefix == "" {
		b.prefix = DefaultPrefix
	}
	for _, o := range cfg.Owners {
		b.owners[o] = true
	}
	b.reg.Store(NewRegistry())
	return b
}

// Log returns the bot's logger.
func (b *Bot) Log() *slog.Logger {
	return b.log
}

// Store returns the bot's configuration store.
func (b *Bot) Store() settings.Store {
	return b.store
}

// Registry returns the live command registry.
// The result changes when the bot reloads.
func (b *Bot) Registry() *Registry {
	return b.reg.Load()
}

// Attach adds a platform connection. Messages whose Platform is the
// connection's name use it for privilege levels and replies.
func (b *Bot) Attach(conn Connection) {
	b.conns.Store(conn.Name(), conn)
}

// Connection returns the connection for a platform, or nil if there is none.
func (b *Bot) Connection(platform string) Connection {
	c, _ := b.conns.Load(platform)
	return c
}

// Install adds addons to the bot. They are started on the next reload.
func (b *Bot) Install(addons ...Addon) {
	b.addmu.Lock()
	defer b.addmu.Unlock()
	b.addons = append(b.addons, addons...)
}

// Addons returns the installed addons in installation order.
func (b *Bot) Addons() []Addon {
	b.addmu.Lock()
	defer b.addmu.Unlock()
	return slices.Clone(b.addons)
}

// Addon returns the installed addon with the given ID, or nil if there is none.
func (b *Bot) Addon(id string) Addon {
	b.addmu.Lock()
	defer b.addmu.Unlock()
	for _, a := range b.addons {
		if a.ID() == id {
			return a
		}
	}
	return nil
}

// Reload stops all addons if they are running, then starts them again
// against a new registry. The new registry replaces the live one only once
// every addon has started, so evaluations in progress never see a partial
// registry. Addons that fail to start are skipped; their errors are joined
// in the result.
func (b *Bot) Reload(ctx context.Context) error {
	b.loadmu.Lock()
	defer b.loadmu.Unlock()
	addons := b.Addons()
	var errs []error
	if b.loaded {
		errs = append(errs, b.stop(ctx, addons))
	}
	next := NewRegistry()
	b.staging.Store(next)
	defer b.staging.Store(nil)
	for _, a := range addons {
		if err := a.Start(ctx, b); err != nil {
			b.log.ErrorContext(ctx, "addon failed to start", slog.String("addon", a.ID()), slog.Any("err", err))
			errs = append(errs, fmt.Errorf("couldn't start addon %s: %w", a.ID(), err))
			continue
		}
		b.log.InfoContext(ctx, "started addon", slog.String("addon", a.ID()), slog.String("name", a.Name()))
	}
	b.reg.Store(next)
	b.loaded = true
	b.metrics.ReloadCount.Observe(1)
	b.metrics.RegistrySize.Observe(float64(next.Len()))
	b.log.InfoContext(ctx, "loaded commands", slog.Int("commands", next.Len()), slog.Int("addons", len(addons)))
	return errors.Join(errs...)
}

// Exclusive calls fn while no reload is in progress. Commands that register
// commands and save them to configuration use it so that a concurrent reload
// sees either both or neither. fn must not reload the bot.
func (b *Bot) Exclusive(fn func() error) error {
	b.loadmu.Lock()
	defer b.loadmu.Unlock()
	return fn()
}

// Stop stops all addons.
func (b *Bot) Stop(ctx context.Context) error {
	b.loadmu.Lock()
	defer b.loadmu.Unlock()
	if !b.loaded {
		return nil
	}
	b.loaded = false
	return b.stop(ctx, b.Addons())
}

// stop stops addons in reverse order.
func (b *Bot) stop(ctx context.Context, addons []Addon) error {
	var errs []error
	for _, a := range slices.Backward(addons) {
		if err := a.Stop(ctx); err != nil {
			b.log.ErrorContext(ctx, "addon failed to stop", slog.String("addon", a.ID()), slog.Any("err", err))
			errs = append(errs, fmt.Errorf("couldn't stop addon %s: %w", a.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// target returns the registry commands should be added to.
func (b *Bot) target() *Registry {
	if r := b.staging.Load(); r != nil {
		return r
	}
	return b.reg.Load()
}

// ErrDuplicate is the error when a group adds two commands with the same
// trigger.
var ErrDuplicate = errors.New("group already has a command with that trigger")

// ErrNotOwner is the error when a group removes a command it doesn't own.
var ErrNotOwner = errors.New("command belongs to a different group")

// AddCommand registers a command. During a reload, it adds to the registry
// being built.
func (b *Bot) AddCommand(cmd *Command) error {
	switch {
	case cmd.Group == nil:
		return fmt.Errorf("command %q has no group", cmd.Trigger)
	case cmd.Fn == nil:
		return fmt.Errorf("command %s has no function", cmd.Qualified())
	case cmd.Trigger == "" || strings.ContainsFunc(cmd.Trigger, unicode.IsSpace) || strings.Contains(cmd.Trigger, "."):
		return fmt.Errorf("invalid trigger %q", cmd.Trigger)
	}
	if !b.target().Add(cmd) {
		return fmt.Errorf("couldn't add %s: %w", cmd.Qualified(), ErrDuplicate)
	}
	return nil
}

// RemoveCommand removes the command with cmd's trigger owned by cmd's group.
func (b *Bot) RemoveCommand(cmd *Command) error {
	if !b.target().Remove(cmd.Trigger, cmd.Group.ID()) {
		return fmt.Errorf("couldn't remove %s: %w", cmd.Qualified(), ErrNotOwner)
	}
	return nil
}

func serverKey(id string) string {
	if id == "" {
		return settings.Default
	}
	return id
}

// ServerConfig returns the live configuration of a server, named by its
// platform-qualified ID as from [message.Received.ServerID]. The empty server
// ID names the configuration used for private messages. A server with no
// saved configuration gets the bot defaults.
//
// Changes to the result are visible immediately but are not saved until
// SetServerConfig. Callers that may race with other changes should use
// EditServerConfig instead.
func (b *Bot) ServerConfig(ctx context.Context, id string) (*settings.Server, error) {
	k := serverKey(id)
	if s, ok := b.servers.Load(k); ok {
		return s, nil
	}
	s, err := b.store.Server(ctx, k)
	switch {
	case errors.Is(err, settings.ErrNotFound):
		s = &settings.Server{
			Prefix: b.prefix,
			Addons: slices.Clone(b.defaults),
		}
	case err != nil:
		return nil, fmt.Errorf("couldn't load config for server %s: %w", k, err)
	}
	s, _ = b.servers.LoadOrStore(k, s)
	return s, nil
}

// SetServerConfig saves a server's configuration and makes it live.
func (b *Bot) SetServerConfig(ctx context.Context, id string, cfg *settings.Server) error {
	k := serverKey(id)
	b.cfgmu.Lock()
	defer b.cfgmu.Unlock()
	if err := b.store.SetServer(ctx, k, cfg); err != nil {
		return fmt.Errorf("couldn't save config for server %s: %w", k, err)
	}
	if s, ok := b.servers.Load(k); ok && s != cfg {
		*s = *cfg
		return nil
	}
	b.servers.Store(k, cfg)
	return nil
}

// EditServerConfig applies edit to a copy of a server's configuration, then
// saves the copy and makes it live. If edit or saving fails, the live
// configuration is unchanged. Edit must not call other configuration
// methods of the bot.
func (b *Bot) EditServerConfig(ctx context.Context, id string, edit func(*settings.Server) error) error {
	s, err := b.ServerConfig(ctx, id)
	if err != nil {
		return err
	}
	b.cfgmu.Lock()
	defer b.cfgmu.Unlock()
	c := s.Clone()
	if err := edit(c); err != nil {
		return err
	}
	k := serverKey(id)
	if err := b.store.SetServer(ctx, k, c); err != nil {
		return fmt.Errorf("couldn't save config for server %s: %w", k, err)
	}
	*s = *c
	return nil
}

// ReadServerConfig calls read with a server's live configuration, excluding
// concurrent edits. Read must not modify the configuration or call other
// configuration methods of the bot.
func (b *Bot) ReadServerConfig(ctx context.Context, id string, read func(*settings.Server) error) error {
	s, err := b.ServerConfig(ctx, id)
	if err != nil {
		return err
	}
	b.cfgmu.RLock()
	defer b.cfgmu.RUnlock()
	return read(s)
}

// UserConfig returns the live configuration of a platform-qualified user.
func (b *Bot) UserConfig(ctx context.Context, id string) (*settings.User, error) {
	if u, ok := b.users.Load(id); ok {
		return u, nil
	}
	u, err := b.store.User(ctx, id)
	switch {
	case errors.Is(err, settings.ErrNotFound):
		u = new(settings.User)
	case err != nil:
		return nil, fmt.Errorf("couldn't load config for user %s: %w", id, err)
	}
	u, _ = b.users.LoadOrStore(id, u)
	return u, nil
}

// SetUserConfig saves a user's configuration and makes it live.
func (b *Bot) SetUserConfig(ctx context.Context, id string, cfg *settings.User) error {
	b.cfgmu.Lock()
	defer b.cfgmu.Unlock()
	if err := b.store.SetUser(ctx, id, cfg); err != nil {
		return fmt.Errorf("couldn't save config for user %s: %w", id, err)
	}
	if u, ok := b.users.Load(id); ok && u != cfg {
		*u = *cfg
		return nil
	}
	b.users.Store(id, cfg)
	return nil
}

// EditUserConfig applies edit to a copy of a user's configuration, then
// saves the copy and makes it live. Edit must not call other configuration
// methods of the bot.
func (b *Bot) EditUserConfig(ctx context.Context, id string, edit func(*settings.User) error) error {
	u, err := b.UserConfig(ctx, id)
	if err != nil {
		return err
	}
	b.cfgmu.Lock()
	defer b.cfgmu.Unlock()
	c := u.Clone()
	if err := edit(c); err != nil {
		return err
	}
	if err := b.store.SetUser(ctx, id, c); err != nil {
		return fmt.Errorf("couldn't save config for user %s: %w", id, err)
	}
	*u = *c
	return nil
}

// Color returns the embed color for a server.
func (b *Bot) Color(ctx context.Context, server string) int {
	s, err := b.ServerConfig(ctx, server)
	if err != nil {
		return b.color
	}
	b.cfgmu.RLock()
	defer b.cfgmu.RUnlock()
	if s.Color != 0 {
		return s.Color
	}
	return b.color
}

// Prefix returns the command prefix of a server.
func (b *Bot) Prefix(ctx context.Context, server string) (string, error) {
	p, _, err := b.view(ctx, server)
	return p, err
}

// Always returns the groups visible in every context.
func (b *Bot) Always() []string {
	return slices.Clone(b.always)
}

// view returns the prefix and opted-in groups of a server.
// A server with an empty saved prefix uses the bot's prefix.
func (b *Bot) view(ctx context.Context, server string) (string, []string, error) {
	s, err := b.ServerConfig(ctx, server)
	if err != nil {
		return "", nil, err
	}
	b.cfgmu.RLock()
	defer b.cfgmu.RUnlock()
	p := s.Prefix
	if p == "" {
		p = b.prefix
	}
	return p, slices.Clone(s.Addons), nil
}

// Visible returns the groups visible in a server: the groups visible
// everywhere, then the server's opted-in groups, then the server's own ID.
// The empty server ID names the context of private messages, which has no
// group of its own.
func (b *Bot) Visible(ctx context.Context, server string) ([]string, error) {
	_, addons, err := b.view(ctx, server)
	if err != nil {
		return nil, err
	}
	return b.visible(server, addons), nil
}

func (b *Bot) visible(server string, addons []string) []string {
	r := make([]string, 0, len(b.always)+len(addons)+1)
	r = append(r, b.always...)
	r = append(r, addons...)
	if server != "" {
		r = append(r, server)
	}
	return r
}

// Level returns the privilege level of the sender of a message.
// Owners are always Superuser. Otherwise, an explicit grant takes
// precedence over the level the platform reports.
func (b *Bot) Level(ctx context.Context, msg *message.Received) (Level, error) {
	if b.owners[msg.User()] {
		return Superuser, nil
	}
	if b.grants != nil {
		l, ok, err := b.grants.Level(ctx, msg.ServerID(), msg.User())
		if err != nil {
			return Disallowed, fmt.Errorf("couldn't get granted level: %w", err)
		}
		if ok {
			return l, nil
		}
	}
	conn := b.Connection(msg.Platform)
	if conn == nil {
		return Default, nil
	}
	l, err := conn.Level(ctx, msg)
	if err != nil {
		return Disallowed, fmt.Errorf("couldn't get level from %s: %w", msg.Platform, err)
	}
	return l, nil
}
