// Package custom provides per-server custom commands.
//
// Custom commands belong to the group named by their server's
// platform-qualified ID, e.g. "discord:1234", so they are visible only in
// that server, and users can refer to them there as "this.trigger" when
// their triggers collide with other commands.
package custom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/zephyrtronium/tilde/command"
	"github.com/zephyrtronium/tilde/settings"
)

// Addon is the custom command addon.
type Addon struct{}

// New creates the custom command addon.
func New() *Addon {
	return &Addon{}
}

func (a *Addon) ID() string   { return "custom" }
func (a *Addon) Name() string { return "Custom Commands" }

// key is the settings key for custom commands.
const key = "custom"

// stored is the persisted form of a server's custom commands.
type stored struct {
	// Commands maps triggers to response templates.
	Commands map[string]string `json:"commands,omitzero"`
}

// Start registers the addon's commands along with every saved custom command.
func (a *Addon) Start(ctx context.Context, bot *command.Bot) error {
	cmds := []*command.Command{
		{Trigger: "add-command", Help: "Add a command here: add-command <trigger> <response>. {args} in the response is replaced with the command's input, and {user} with your name.", Permission: command.Trusted, Raw: true, Server: true, Fn: add},
		{Trigger: "remove-command", Help: "Remove a custom command: remove-command <trigger>", Permission: command.Trusted, Server: true, Fn: remove},
		{Trigger: "custom-commands", Help: "List the custom commands here.", Server: true, Fn: list},
	}
	var errs []error
	for _, c := range cmds {
		c.Group = a
		errs = append(errs, bot.AddCommand(c))
	}
	servers, err := bot.Store().Servers(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("couldn't list servers: %w", err))
	}
	n := 0
	for _, id := range servers {
		if id == settings.Default {
			continue
		}
		if bot.Addon(id) != nil {
			errs = append(errs, fmt.Errorf("server %s has the same ID as an addon", id))
			continue
		}
		var v stored
		err := bot.ReadServerConfig(ctx, id, func(s *settings.Server) error {
			_, err := s.Get(key, &v)
			return err
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for trigger, resp := range v.Commands {
			err := bot.AddCommand(custom(id, trigger, resp))
			if err != nil && !errors.Is(err, command.ErrDuplicate) {
				errs = append(errs, err)
				continue
			}
			n++
		}
	}
	bot.Log().InfoContext(ctx, "loaded custom commands", slog.Int("count", n), slog.Int("servers", len(servers)))
	return errors.Join(errs...)
}

// Stop is a no-op.
func (a *Addon) Stop(ctx context.Context) error {
	return nil
}

// custom creates a custom command.
func custom(server, trigger, resp string) *command.Command {
	return &command.Command{
		Trigger: trigger,
		Group:   command.GroupID(server),
		Help:    "Custom command.",
		Fn: func(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
			return command.Text(expand(resp, in)), nil
		},
	}
}

// expand fills a response template.
func expand(resp string, in *command.Input) string {
	name := in.Message.Name
	if name == "" {
		name = in.Message.Sender
	}
	return strings.NewReplacer("{args}", in.Text, "{user}", name).Replace(resp)
}

// trigger strips a prefix from a requested trigger.
func trigger(ctx context.Context, bot *command.Bot, in *command.Input, t string) (string, error) {
	p, err := bot.Prefix(ctx, in.Server())
	if err != nil {
		return "", command.Fatal(err)
	}
	return strings.TrimPrefix(t, p), nil
}

func add(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	t, resp := command.Cut(in.Text)
	t, err := trigger(ctx, bot, in, t)
	if err != nil {
		return nil, err
	}
	if t == "" || resp == "" {
		return nil, errors.New("Give a trigger and a response for the command.")
	}
	server := in.Server()
	if bot.Addon(server) != nil {
		return nil, errors.New("Custom commands can't be added here.")
	}
	cmd := custom(server, t, resp)
	var taken bool
	err = bot.Exclusive(func() error {
		if err := bot.AddCommand(cmd); err != nil {
			taken = errors.Is(err, command.ErrDuplicate)
			return err
		}
		err := bot.EditServerConfig(ctx, server, func(s *settings.Server) error {
			var v stored
			if _, err := s.Get(key, &v); err != nil {
				return err
			}
			if v.Commands == nil {
				v.Commands = make(map[string]string)
			}
			v.Commands[t] = resp
			return s.Set(key, &v)
		})
		if err != nil {
			if err := bot.RemoveCommand(cmd); err != nil {
				bot.Log().ErrorContext(ctx, "couldn't remove unsaved custom command", slog.String("command", cmd.Qualified()), slog.Any("err", err))
			}
			return command.Fatal(err)
		}
		return nil
	})
	switch {
	case err == nil: // do nothing
	case command.IsFatal(err):
		return nil, err
	case taken:
		return nil, fmt.Errorf("There's already a custom command called %s here.", t)
	default:
		return nil, fmt.Errorf("%s can't be a command name.", t)
	}
	return command.Textf("Added %s.", t), nil
}

func remove(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	t, _ := command.Cut(in.Text)
	t, err := trigger(ctx, bot, in, t)
	if err != nil {
		return nil, err
	}
	server := in.Server()
	var missing bool
	err = bot.Exclusive(func() error {
		err := bot.EditServerConfig(ctx, server, func(s *settings.Server) error {
			var v stored
			if _, err := s.Get(key, &v); err != nil {
				return err
			}
			if _, ok := v.Commands[t]; !ok {
				missing = true
				return errors.New("no such command")
			}
			delete(v.Commands, t)
			return s.Set(key, &v)
		})
		if err != nil {
			return err
		}
		return bot.RemoveCommand(&command.Command{Trigger: t, Group: command.GroupID(server)})
	})
	if missing {
		return nil, fmt.Errorf("There's no custom command called %s here.", t)
	}
	if err != nil {
		return nil, command.Fatal(err)
	}
	return command.Textf("Removed %s.", t), nil
}

func list(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	var v stored
	err := bot.ReadServerConfig(ctx, in.Server(), func(s *settings.Server) error {
		_, err := s.Get(key, &v)
		return err
	})
	if err != nil {
		return nil, command.Fatal(err)
	}
	if len(v.Commands) == 0 {
		return command.Text("There are no custom commands here."), nil
	}
	p, err := bot.Prefix(ctx, in.Server())
	if err != nil {
		return nil, command.Fatal(err)
	}
	names := slices.Sorted(maps.Keys(v.Commands))
	for i, n := range names {
		names[i] = p + n
	}
	return command.Textf("Custom commands: %s", strings.Join(names, ", ")), nil
}
