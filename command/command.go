// Package command implements command resolution and recursive evaluation of
// chat messages.
//
// A message is scanned word by word. The first word that resolves to a
// command splits the message: text before it is kept verbatim, and text after
// it becomes the command's input. Unless the command is raw, its input is
// evaluated the same way first, so commands compose right to left.
package command

import (
	"context"

	"github.com/zephyrtronium/tilde/message"
)

// Func executes a command.
// Returning an error aborts the whole evaluation.
type Func func(ctx context.Context, bot *Bot, in *Input) (*Result, error)

// HelpFunc produces dynamic help text for a command.
type HelpFunc func(ctx context.Context, bot *Bot, msg *message.Received) string

// Group is the owner of a set of commands.
// Addons are groups, and so are servers for their custom commands.
type Group interface {
	// ID returns the group's identifier. It must not contain whitespace.
	// A period separates a sub-namespace: enabling "fun" in a server also
	// makes "fun.games" visible there.
	ID() string
}

// GroupID is a Group that is only an identifier.
type GroupID string

// ID returns g.
func (g GroupID) ID() string {
	return string(g)
}

// Command is a named operation owned by a group.
// A Command must not be modified after it is added to a registry.
type Command struct {
	// Trigger is the name users invoke the command by.
	Trigger string
	// Group is the command's owner.
	Group Group
	// Permission is the minimum level required to invoke the command.
	Permission Level
	// Help is a short description of the command.
	Help string
	// HelpFunc, if not nil, overrides Help.
	HelpFunc HelpFunc
	// Raw commands receive their input unevaluated.
	Raw bool
	// Server commands cannot be used in private messages.
	Server bool
	// Fn runs the command.
	Fn Func
}

// Qualified returns the group-qualified name of the command.
func (c *Command) Qualified() string {
	return c.Group.ID() + "." + c.Trigger
}

// Describe returns the command's help text.
func (c *Command) Describe(ctx context.Context, bot *Bot, msg *message.Received) string {
	if c.HelpFunc != nil {
		return c.HelpFunc(ctx, bot, msg)
	}
	return c.Help
}

// Addon is a pluggable group of commands.
type Addon interface {
	Group
	// Name returns a human-readable name for the addon.
	Name() string
	// Start registers the addon's commands with the bot and acquires any
	// resources the addon needs. Start is called sequentially for all
	// addons on every load, in installation order.
	Start(ctx context.Context, bot *Bot) error
	// Stop releases the addon's resources. It is called before a reload
	// and when the bot shuts down.
	Stop(ctx context.Context) error
}

// Connection is a chat platform connection.
type Connection interface {
	// Name returns the platform name. Received messages name their
	// connection in their Platform field.
	Name() string
	// Level returns the platform-derived privilege level of the sender of
	// a message, e.g. from server roles.
	Level(ctx context.Context, msg *message.Received) (Level, error)
	// Send delivers a result in response to a message.
	Send(ctx context.Context, msg *message.Received, r *Result) error
}
