package main

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/zephyrtronium/tilde/command"
	"github.com/zephyrtronium/tilde/message"
	"github.com/zephyrtronium/tilde/syncmap"
)

// limited is a connection with a rate limit on replies in each server.
// Private replies are limited per user instead.
type limited struct {
	command.Connection
	every  rate.Limit
	num    int
	limits syncmap.Map[string, *rate.Limiter]
}

// limit wraps a connection with rate limits.
// If cfg allows no bursts, the connection is returned unchanged.
func limit(conn command.Connection, cfg Rate) command.Connection {
	if cfg.Num <= 0 {
		return conn
	}
	return &limited{
		Connection: conn,
		every:      rate.Every(fseconds(cfg.Every)),
		num:        cfg.Num,
	}
}

func (l *limited) Send(ctx context.Context, msg *message.Received, r *command.Result) error {
	key := msg.Server
	if msg.Private() {
		key = "@" + msg.Sender
	}
	lim, ok := l.limits.Load(key)
	if !ok {
		lim, _ = l.limits.LoadOrStore(key, rate.NewLimiter(l.every, l.num))
	}
	t := time.Now()
	res := lim.ReserveN(t, 1)
	if d := res.DelayFrom(t); d > 0 {
		slog.InfoContext(ctx, "rate limited",
			slog.String("in", key),
			slog.String("delay", d.String()),
		)
		res.CancelAt(t)
		return nil
	}
	return l.Connection.Send(ctx, msg, r)
}
