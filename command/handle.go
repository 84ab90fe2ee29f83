package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/zephyrtronium/tilde/message"
)

// Handle evaluates a message and sends the result through the connection
// the message came from. Nothing is sent for messages that invoke no
// commands. User-facing errors are sent privately to the sender; internal
// failures are only logged.
func (b *Bot) Handle(ctx context.Context, msg *message.Received) {
	log := b.log.With(
		slog.String("platform", msg.Platform),
		slog.String("server", msg.Server),
		slog.String("id", msg.ID),
	)
	conn := b.Connection(msg.Platform)
	if conn == nil {
		log.ErrorContext(ctx, "no connection for message")
		return
	}
	b.metrics.MessagesCount.Observe(1, msg.Platform)
	start := time.Now()
	r, ran, err := b.evaluate(ctx, msg)
	b.metrics.EvalLatency.Observe(time.Since(start).Seconds(), msg.Platform)
	if err != nil {
		kind := failureKind(err)
		b.metrics.FailureCount.Observe(1, kind)
		if IsFatal(err) {
			log.ErrorContext(ctx, "evaluation failed", slog.Any("err", err))
			return
		}
		log.InfoContext(ctx, "command failed", slog.String("kind", kind), slog.Any("err", err))
		r = &Result{Private: true}
		r.AddText(err.Error())
	}
	if ran == 0 && err == nil || r.Empty() {
		return
	}
	if err := conn.Send(ctx, msg, r); err != nil {
		log.ErrorContext(ctx, "couldn't send result", slog.Any("err", err))
	}
}
