package command

import (
	"context"
	"strings"

	"github.com/zephyrtronium/tilde/message"
)

// scope is the resolution context of one message. It is shared by every
// frame of the message's evaluation.
type scope struct {
	msg *message.Received
	// server is the platform-qualified server ID, which is also the group
	// of the server's own commands.
	server  string
	prefix  string
	visible []string
	level   Level
	leveled bool
	// ran counts invoked commands.
	ran int
}

func (b *Bot) scope(ctx context.Context, msg *message.Received) (*scope, error) {
	server := msg.ServerID()
	prefix, addons, err := b.view(ctx, server)
	if err != nil {
		return nil, Fatal(err)
	}
	sc := scope{
		msg:     msg,
		server:  server,
		prefix:  prefix,
		visible: b.visible(server, addons),
	}
	return &sc, nil
}

// sees reports whether a group is visible in the scope, either directly or
// as a sub-namespace of a visible group.
func (sc *scope) sees(group string) bool {
	for _, v := range sc.visible {
		if group == v || strings.HasPrefix(group, v) && strings.HasPrefix(group[len(v):], ".") {
			return true
		}
	}
	return false
}

// userLevel resolves the sender's level once per scope.
func (b *Bot) userLevel(ctx context.Context, sc *scope) (Level, error) {
	if !sc.leveled {
		l, err := b.Level(ctx, sc.msg)
		if err != nil {
			return Disallowed, Fatal(err)
		}
		sc.level, sc.leveled = l, true
	}
	return sc.level, nil
}

// Resolve finds the command a word invokes in the context of a message.
// If the word does not begin with the server's prefix, or is only the
// prefix, the result is nil with no error.
//
// A word may qualify its trigger with a group, as in "~text.say". The
// qualifier "this" names the server's own group.
func (b *Bot) Resolve(ctx context.Context, word string, msg *message.Received) (*Command, error) {
	sc, err := b.scope(ctx, msg)
	if err != nil {
		return nil, err
	}
	return b.resolve(ctx, sc, word)
}

// Commands lists the commands the sender of a message can use in its
// context, in trigger order.
func (b *Bot) Commands(ctx context.Context, msg *message.Received) ([]*Command, error) {
	sc, err := b.scope(ctx, msg)
	if err != nil {
		return nil, err
	}
	l, err := b.userLevel(ctx, sc)
	if err != nil {
		return nil, err
	}
	var r []*Command
	for c := range b.Registry().All() {
		if !sc.sees(c.Group.ID()) || l < c.Permission || c.Server && msg.Private() {
			continue
		}
		r = append(r, c)
	}
	return r, nil
}

func (b *Bot) resolve(ctx context.Context, sc *scope, word string) (*Command, error) {
	name, ok := strings.CutPrefix(word, sc.prefix)
	if !ok || name == "" {
		return nil, nil
	}
	cmd, err := b.lookup(sc, name)
	if err != nil {
		return nil, err
	}
	l, err := b.userLevel(ctx, sc)
	if err != nil {
		return nil, err
	}
	if l < cmd.Permission {
		return nil, &PermissionError{Command: cmd.Qualified(), Need: cmd.Permission, Have: l}
	}
	if cmd.Server && sc.msg.Private() {
		return nil, &ServerOnlyError{Command: cmd.Qualified()}
	}
	return cmd, nil
}

// lookup finds the single command a prefix-stripped name refers to.
func (b *Bot) lookup(sc *scope, name string) (*Command, error) {
	reg := b.Registry()
	group, trigger := "", name
	if k := strings.LastIndexByte(name, '.'); k > 0 && k < len(name)-1 {
		group, trigger = name[:k], name[k+1:]
	}
	e := reg.Get(trigger)
	if e == nil {
		return nil, &UnknownCommandError{Trigger: name}
	}
	if group != "" {
		g := group
		if g == "this" {
			g = sc.server
		}
		if g == "" || !sc.sees(g) {
			return nil, &GroupNotEnabledError{Group: group}
		}
		for _, c := range e.Commands() {
			if c.Group.ID() == g {
				return c, nil
			}
		}
		return nil, &UnknownCommandError{Trigger: name}
	}
	switch e := e.(type) {
	case Single:
		if !sc.sees(e.Command.Group.ID()) {
			return nil, &GroupNotEnabledError{Group: e.Command.Group.ID()}
		}
		return e.Command, nil
	case Collision:
		var found []*Command
		for _, c := range e {
			if sc.sees(c.Group.ID()) {
				found = append(found, c)
			}
		}
		switch len(found) {
		case 0:
			return nil, &GroupNotEnabledError{Group: e[0].Group.ID()}
		case 1:
			return found[0], nil
		default:
			names := make([]string, len(found))
			for i, c := range found {
				names[i] = sc.prefix + c.Qualified()
				if c.Group.ID() == sc.server {
					names[i] = sc.prefix + "this." + c.Trigger
				}
			}
			return nil, &AmbiguousCommandError{Trigger: name, Candidates: names}
		}
	}
	panic("command: unreachable")
}
