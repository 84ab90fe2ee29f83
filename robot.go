package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/zephyrtronium/tilde/addon/core"
	"github.com/zephyrtronium/tilde/addon/custom"
	"github.com/zephyrtronium/tilde/addon/text"
	"github.com/zephyrtronium/tilde/audit"
	"github.com/zephyrtronium/tilde/command"
	"github.com/zephyrtronium/tilde/message"
	"github.com/zephyrtronium/tilde/metrics"
	"github.com/zephyrtronium/tilde/privilege"
	"github.com/zephyrtronium/tilde/settings"
	"github.com/zephyrtronium/tilde/settings/kvstore"
	"github.com/zephyrtronium/tilde/settings/sqlstore"
	"github.com/zephyrtronium/tilde/userhash"
)

// runner is a connection that receives messages.
type runner interface {
	command.Connection
	// Run connects and delivers received messages to recv until the context
	// is canceled.
	Run(ctx context.Context, recv func(context.Context, *message.Received)) error
}

// Robot is the overall configuration for the bot.
type Robot struct {
	// bot is the command engine.
	bot *command.Bot
	// dbs are the opened databases.
	dbs *databases
	// conns are the connections to run.
	conns []runner
	// works is the pool handling received messages.
	works *pool
	// rate is the reply rate limit applied to connections.
	rate Rate
	// metrics are the bot's metrics.
	metrics *metrics.Metrics
}

// New creates a robot from its configuration. Addons are installed but
// not loaded.
func New(ctx context.Context, cfg *Config, m *metrics.Metrics) (*Robot, error) {
	dbs, err := loadDBs(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	robo := &Robot{
		dbs:     dbs,
		works:   newPool(runtime.GOMAXPROCS(0)),
		rate:    cfg.Rate,
		metrics: m,
	}
	var store settings.Store
	if dbs.kv != nil {
		store = kvstore.New(dbs.kv)
	} else {
		s, err := sqlstore.Open(ctx, dbs.settings)
		if err != nil {
			dbs.Close()
			return nil, fmt.Errorf("couldn't open settings: %w", err)
		}
		store = s
	}
	bc := command.Config{
		Log:      slog.Default(),
		Store:    store,
		Metrics:  m,
		Owners:   cfg.Owners,
		Prefix:   cfg.Bot.Prefix,
		Always:   cfg.Bot.Addons,
		Defaults: cfg.Bot.Default,
		Color:    cfg.Bot.Color,
	}
	var grants *privilege.List
	if dbs.privilege != nil {
		grants, err = privilege.Open(ctx, dbs.privilege)
		if err != nil {
			dbs.Close()
			return nil, fmt.Errorf("couldn't open privilege grants: %w", err)
		}
		bc.Grants = grants
	}
	var log *audit.Log
	if dbs.audit != nil {
		k, err := loadSecret(cfg.SecretFile)
		if err != nil {
			dbs.Close()
			return nil, err
		}
		log, err = audit.Open(ctx, dbs.audit, userhash.New(k))
		if err != nil {
			dbs.Close()
			return nil, fmt.Errorf("couldn't open audit log: %w", err)
		}
		bc.Audit = log
	}
	robo.bot = command.New(bc)
	robo.bot.Install(core.New(grants, log), text.New(), custom.New())
	return robo, nil
}

// Attach adds a connection to the robot.
func (robo *Robot) Attach(conn runner) {
	robo.conns = append(robo.conns, conn)
	robo.bot.Attach(limit(conn, robo.rate))
}

// receive handles a message on the worker pool.
func (robo *Robot) receive(ctx context.Context, msg *message.Received) {
	slog.DebugContext(ctx, "received",
		slog.String("trace", msg.ID),
		slog.String("in", msg.Server),
		slog.String("platform", msg.Platform),
	)
	robo.works.enqueue(ctx, func(ctx context.Context) { robo.bot.Handle(ctx, msg) })
}

// Run loads addons and runs all connections and the HTTP API until the
// context is canceled or one of them fails. listen is the API address; if
// it is empty, there is no API.
func (robo *Robot) Run(ctx context.Context, listen string) error {
	if err := robo.bot.Reload(ctx); err != nil {
		// Addons that failed to start are missing, but the rest work.
		slog.ErrorContext(ctx, "addons failed to load", slog.Any("err", err))
	}
	group, ctx := errgroup.WithContext(ctx)
	for _, c := range robo.conns {
		group.Go(func() error {
			slog.InfoContext(ctx, "connection start", slog.String("platform", c.Name()))
			err := c.Run(ctx, robo.receive)
			slog.InfoContext(ctx, "connection done", slog.String("platform", c.Name()), slog.Any("err", err))
			return err
		})
	}
	if listen != "" {
		var collectors []prometheus.Collector
		if robo.metrics != nil {
			collectors = robo.metrics.Collectors()
		}
		group.Go(func() error { return robo.api(ctx, listen, collectors) })
	}
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		// Canceled means we are shutting down normally in response to
		// a signal.
		err = nil
	}
	return err
}

// Close stops addons and closes databases.
func (robo *Robot) Close(ctx context.Context) error {
	return errors.Join(robo.bot.Stop(ctx), robo.dbs.Close())
}
