package command

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/zephyrtronium/tilde/message"
)

// Evaluate evaluates the commands in a message.
// An error from any command aborts the evaluation; nothing of the partial
// result is returned.
func (b *Bot) Evaluate(ctx context.Context, msg *message.Received) (*Result, error) {
	r, _, err := b.evaluate(ctx, msg)
	return r, err
}

// evaluate evaluates a message and also reports how many commands ran.
func (b *Bot) evaluate(ctx context.Context, msg *message.Received) (*Result, int, error) {
	sc, err := b.scope(ctx, msg)
	if err != nil {
		return nil, 0, err
	}
	r, err := b.eval(ctx, sc, msg.Text)
	return r, sc.ran, err
}

// eval evaluates one frame. The first word that resolves to a command
// splits text. Text before it is literal, and text after it is the
// command's input, evaluated first as a frame of its own unless the command
// is raw.
func (b *Bot) eval(ctx context.Context, sc *scope, text string) (*Result, error) {
	r := new(Result)
	for start, end := range words(text) {
		cmd, err := b.resolve(ctx, sc, text[start:end])
		if err != nil {
			return nil, err
		}
		if cmd == nil {
			continue
		}
		r.AddText(text[:start])
		in := Input{
			Message: sc.msg,
			Command: cmd,
			Text:    strings.TrimSpace(text[end:]),
		}
		if !cmd.Raw {
			sub, err := b.eval(ctx, sc, in.Text)
			if err != nil {
				return nil, err
			}
			in.Text = sub.Text()
			r.attach(sub)
		}
		sc.ran++
		out, err := b.run(ctx, cmd, &in)
		if err != nil {
			return nil, err
		}
		r.Merge(out)
		return r, nil
	}
	r.AddText(text)
	return r, nil
}

// run invokes a command.
func (b *Bot) run(ctx context.Context, cmd *Command, in *Input) (r *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = Fatal(fmt.Errorf("command %s panicked: %v\n%s", cmd.Qualified(), p, debug.Stack()))
		}
	}()
	if b.audit != nil {
		if err := b.audit.Record(ctx, in.Message, cmd.Group.ID(), cmd.Trigger); err != nil {
			b.log.WarnContext(ctx, "couldn't record invocation", slog.String("command", cmd.Qualified()), slog.Any("err", err))
		}
	}
	b.metrics.CommandCount.Observe(1, cmd.Group.ID(), cmd.Trigger)
	b.log.DebugContext(ctx, "run command", slog.String("command", cmd.Qualified()), slog.String("input", in.Text))
	r, err = cmd.Fn(ctx, b, in)
	if err != nil {
		if failureKind(err) != "command" {
			// Already an engine error, e.g. from a nested evaluation.
			return nil, err
		}
		if _, ok := err.(*CommandError); ok {
			return nil, err
		}
		return nil, &CommandError{Command: cmd.Qualified(), Err: err}
	}
	return r, nil
}
