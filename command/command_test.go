package command_test

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/zephyrtronium/tilde/command"
	"github.com/zephyrtronium/tilde/message"
)

// testConn is a connection that records what it sends.
type testConn struct {
	level command.Level

	mu   sync.Mutex
	sent []*command.Result
}

func (c *testConn) Name() string { return "test" }

func (c *testConn) Level(ctx context.Context, msg *message.Received) (command.Level, error) {
	return c.level, nil
}

func (c *testConn) Send(ctx context.Context, msg *message.Received, r *command.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, r)
	return nil
}

func (c *testConn) results() []*command.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.sent)
}

// testAddon is an addon that registers a fixed set of commands.
type testAddon struct {
	id   string
	cmds []*command.Command
	err  error

	starts, stops int
}

func (a *testAddon) ID() string   { return a.id }
func (a *testAddon) Name() string { return "test addon " + a.id }

func (a *testAddon) Start(ctx context.Context, bot *command.Bot) error {
	a.starts++
	if a.err != nil {
		return a.err
	}
	for _, c := range a.cmds {
		if err := bot.AddCommand(c); err != nil {
			return err
		}
	}
	return nil
}

func (a *testAddon) Stop(ctx context.Context) error {
	a.stops++
	return nil
}

// cmd creates a command in a group.
func cmd(group, trigger string, level command.Level, fn command.Func) *command.Command {
	return &command.Command{
		Trigger:    trigger,
		Group:      command.GroupID(group),
		Permission: level,
		Fn:         fn,
	}
}

// echo is a command that returns its input.
func echo(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	return command.Text(in.Text), nil
}

// literal creates a command function that returns fixed text.
func literal(s string) command.Func {
	return func(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
		return command.Text(s), nil
	}
}

// reverse is a command that reverses its input.
func reverse(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	r := []rune(in.Text)
	slices.Reverse(r)
	return command.Text(string(r)), nil
}

// newBot creates a loaded bot with a test connection attached.
// The core group is always visible; text is enabled by default.
func newBot(t *testing.T, level command.Level, addons ...command.Addon) (*command.Bot, *testConn) {
	t.Helper()
	bot := command.New(command.Config{
		Always:   []string{"core"},
		Defaults: []string{"text"},
	})
	conn := &testConn{level: level}
	bot.Attach(conn)
	bot.Install(addons...)
	if err := bot.Reload(context.Background()); err != nil {
		t.Fatalf("couldn't load addons: %v", err)
	}
	return bot, conn
}

func msg(server, text string) *message.Received {
	return &message.Received{
		ID:       "1",
		Platform: "test",
		Server:   server,
		Channel:  "#" + server,
		Sender:   "bocchi",
		Name:     "Bocchi",
		Text:     text,
	}
}

// sid is the ID of a server in messages from msg.
func sid(server string) string {
	return msg(server, "").ServerID()
}
