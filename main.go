package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/zephyrtronium/tilde/audit"
	"github.com/zephyrtronium/tilde/metrics"
	"github.com/zephyrtronium/tilde/privilege"
	"github.com/zephyrtronium/tilde/settings/sqlstore"
)

var app = cli.Command{
	Name:      "tilde",
	Usage:     "Recursive command chat bot",
	ArgsUsage: "[config]",

	Flags: []cli.Flag{
		&flagLog,
		&flagLogFormat,
	},
	Commands: []*cli.Command{
		{
			Name:      "init",
			Usage:     "Create database schemas",
			ArgsUsage: "[config]",
			Action:    cliInit,
		},
		{
			Name:      "console",
			Usage:     "Evaluate lines from standard input",
			ArgsUsage: "[config]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "server",
					Usage: "Server to evaluate in; empty for private",
					Value: "console",
				},
				&cli.StringFlag{
					Name:  "user",
					Usage: "User ID of the console operator",
					Value: "operator",
				},
			},
			Action: cliConsole,
		},
		{
			Name:      "commands",
			Usage:     "List registered commands",
			ArgsUsage: "[config]",
			Action:    cliCommands,
		},
	},
	Action: cliRun,

	Authors: []any{
		"Branden J Brown  @zephyrtronium",
	},
	Copyright: "Copyright 2024 Branden J Brown",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	go func() {
		<-ctx.Done()
		stop()
	}()
	err := app.Run(ctx, os.Args)
	if err != nil {
		fmt.Println(err)
	}
}

// defaultConfig is the config file used when none is named.
const defaultConfig = "bot.conf.json"

func loadConfig(ctx context.Context, cmd *cli.Command) (*Config, error) {
	name := cmd.Args().First()
	if name == "" {
		name = defaultConfig
	}
	r, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("couldn't open config file: %w", err)
	}
	defer r.Close()
	cfg, err := Load(ctx, name, r)
	if err != nil {
		return nil, fmt.Errorf("couldn't load config %s: %w", name, err)
	}
	return cfg, nil
}

func cliRun(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	robo, err := New(ctx, cfg, newMetrics())
	if err != nil {
		return err
	}
	defer func() {
		// The run context is done by now.
		if err := robo.Close(context.Background()); err != nil {
			slog.Error("couldn't shut down cleanly", slog.Any("err", err))
		}
	}()
	if cfg.Discord != nil {
		d, err := newDiscord(cfg.Discord.Token, robo.bot.Color)
		if err != nil {
			return err
		}
		robo.Attach(d)
	}
	if cfg.TMI != nil {
		t, err := newTwitch(cfg.TMI)
		if err != nil {
			return err
		}
		robo.Attach(t)
	}
	if len(robo.conns) == 0 {
		slog.WarnContext(ctx, "no connections configured")
	}
	return robo.Run(ctx, cfg.HTTP.Listen)
}

func cliInit(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	dbs, err := loadDBs(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer dbs.Close()
	if dbs.settings != nil {
		if err := sqlstore.Init(ctx, dbs.settings); err != nil {
			return err
		}
		slog.InfoContext(ctx, "initialized settings", slog.String("db", cfg.DB.Settings))
	}
	if dbs.privilege != nil {
		if err := privilege.Init(ctx, dbs.privilege); err != nil {
			return err
		}
		slog.InfoContext(ctx, "initialized privilege grants", slog.String("db", cfg.DB.Privilege))
	}
	if dbs.audit != nil {
		if err := audit.Init(ctx, dbs.audit); err != nil {
			return err
		}
		slog.InfoContext(ctx, "initialized audit log", slog.String("db", cfg.DB.Audit))
	}
	return nil
}

func cliConsole(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	robo, err := New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer robo.Close(context.Background())
	if err := robo.bot.Reload(ctx); err != nil {
		slog.ErrorContext(ctx, "addons failed to load", slog.Any("err", err))
	}
	c := &console{
		server: cmd.String("server"),
		user:   cmd.String("user"),
		in:     os.Stdin,
		out:    os.Stdout,
	}
	robo.bot.Attach(c)
	// Handle directly rather than through the pool so that replies are in
	// input order.
	err = c.Run(ctx, robo.bot.Handle)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func cliCommands(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}
	robo, err := New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer robo.Close(context.Background())
	if err := robo.bot.Reload(ctx); err != nil {
		slog.ErrorContext(ctx, "addons failed to load", slog.Any("err", err))
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "TRIGGER\tGROUP\tLEVEL\tHELP")
	for c := range robo.bot.Registry().All() {
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", c.Trigger, c.Group.ID(), c.Permission, c.Help)
	}
	return w.Flush()
}

var (
	flagLog = cli.StringFlag{
		Name:       "log",
		Usage:      "Logging level, one of debug, info, warn, error",
		Value:      "info",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			var l slog.Level
			return l.UnmarshalText([]byte(s))
		},
	}

	flagLogFormat = cli.StringFlag{
		Name:       "log-format",
		Usage:      "Logging format, either text or json",
		Value:      "text",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			switch strings.ToLower(s) {
			case "text", "json":
				return nil
			default:
				return errors.New("unknown logging format")
			}
		},
	}
)

func loggerFromFlags(cmd *cli.Command) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(cmd.String("log"))); err != nil {
		panic(err)
	}
	var h slog.Handler
	switch strings.ToLower(cmd.String("log-format")) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	case "json":
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	}
	return slog.New(h)
}

// metrics configuration
func newMetrics() *metrics.Metrics {
	latency := []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}
	return &metrics.Metrics{
		MessagesCount: metrics.NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "tilde",
					Subsystem: "bot",
					Name:      "messages",
					Help:      "Number of messages handled.",
				},
				[]string{"platform"},
			),
		),
		CommandCount: metrics.NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "tilde",
					Subsystem: "commands",
					Name:      "invocations",
					Help:      "Number of command invocations.",
				},
				[]string{"group", "trigger"},
			),
		),
		FailureCount: metrics.NewPromCounterVec(
			prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "tilde",
					Subsystem: "commands",
					Name:      "failures",
					Help:      "Number of failed evaluations by kind of failure.",
				},
				[]string{"kind"},
			),
		),
		EvalLatency: metrics.NewPromObserverVec(
			prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Buckets:   latency,
					Namespace: "tilde",
					Subsystem: "bot",
					Name:      "eval_latency",
					Help:      "How long it takes to evaluate a message in seconds",
				},
				[]string{"platform"},
			),
		),
		RegistrySize: metrics.NewPromGauge(
			prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "tilde",
					Subsystem: "commands",
					Name:      "registered",
					Help:      "Number of registered commands.",
				},
			),
		),
		ReloadCount: metrics.NewPromCounter(
			prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: "tilde",
					Subsystem: "addons",
					Name:      "reloads",
					Help:      "Number of addon reloads.",
				},
			),
		),
	}
}
