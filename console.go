package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zephyrtronium/tilde/command"
	"github.com/zephyrtronium/tilde/message"
)

// console is a connection reading messages from lines of input.
// The operator at the console is a superuser.
type console struct {
	server string
	user   string
	in     io.Reader

	mu  sync.Mutex
	out io.Writer
}

func (c *console) Name() string { return "console" }

func (c *console) Level(ctx context.Context, msg *message.Received) (command.Level, error) {
	return command.Superuser, nil
}

func (c *console) Send(ctx context.Context, msg *message.Received, r *command.Result) error {
	var lines []string
	if t := r.Text(); t != "" {
		lines = append(lines, t)
	}
	for _, e := range r.Embeds {
		lines = append(lines, fmt.Sprintf("[%s] %s", e.Title, e.Description))
		for _, f := range e.Fields {
			lines = append(lines, fmt.Sprintf("  %s: %s", f.Name, f.Value))
		}
		if e.Footer != "" {
			lines = append(lines, "  -- "+e.Footer)
		}
	}
	for _, react := range r.Reactions {
		lines = append(lines, "(reacted "+react+")")
	}
	if len(lines) == 0 {
		return nil
	}
	if r.Private {
		lines[0] = "(private) " + lines[0]
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, strings.Join(lines, "\n")+"\n")
	return err
}

// Run delivers each line of input to recv in order until input ends or the
// context is canceled.
func (c *console) Run(ctx context.Context, recv func(context.Context, *message.Received)) error {
	sc := bufio.NewScanner(c.in)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := message.Received{
			ID:        uuid.NewString(),
			Platform:  c.Name(),
			Server:    c.server,
			Channel:   "stdin",
			Sender:    c.user,
			Name:      c.user,
			Text:      sc.Text(),
			Timestamp: time.Now().UnixMilli(),
		}
		recv(ctx, &msg)
	}
	return sc.Err()
}
