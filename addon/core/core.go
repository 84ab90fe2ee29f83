// Package core provides commands for managing the bot.
package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/zephyrtronium/tilde/audit"
	"github.com/zephyrtronium/tilde/command"
	"github.com/zephyrtronium/tilde/message"
	"github.com/zephyrtronium/tilde/privilege"
	"github.com/zephyrtronium/tilde/settings"
)

// Addon is the core addon.
type Addon struct {
	grants *privilege.List
	audit  *audit.Log
}

// New creates the core addon. Either of grants or log may be nil to disable
// the commands that use them.
func New(grants *privilege.List, log *audit.Log) *Addon {
	return &Addon{grants: grants, audit: log}
}

func (a *Addon) ID() string   { return "core" }
func (a *Addon) Name() string { return "Core" }

// Start registers the addon's commands.
func (a *Addon) Start(ctx context.Context, bot *command.Bot) error {
	cmds := []*command.Command{
		{Trigger: "help", Help: "List commands, or describe one: help [command]", Raw: true, Fn: help},
		{Trigger: "addons", Help: "List addons and whether they're enabled here.", Fn: addons},
		{Trigger: "enable-addon", Help: "Enable an addon here: enable-addon <id>", Permission: command.Admin, Server: true, Fn: enable},
		{Trigger: "disable-addon", Help: "Disable an addon here: disable-addon <id>", Permission: command.Admin, Server: true, Fn: disable},
		{Trigger: "prefix", Help: "Show the command prefix, or change it: prefix [new]", Fn: prefix},
		{Trigger: "level", Help: "Show your level, or the level granted to someone: level [user]", Fn: a.level},
		{Trigger: "reload", Help: "Restart all addons.", Permission: command.Superuser, Fn: reload},
		{Trigger: "private", Help: "Send the response privately.", Fn: private},
	}
	if a.grants != nil {
		cmds = append(cmds, &command.Command{
			Trigger:    "grant",
			HelpFunc:   grantHelp,
			Permission: command.Overlord,
			Server:     true,
			Fn:         a.grant,
		})
	}
	if a.audit != nil {
		cmds = append(cmds, &command.Command{
			Trigger:    "recent",
			Help:       "Show recently used commands here.",
			Permission: command.Admin,
			Server:     true,
			Fn:         a.recent,
		})
	}
	var errs []error
	for _, c := range cmds {
		c.Group = a
		errs = append(errs, bot.AddCommand(c))
	}
	return errors.Join(errs...)
}

// Stop is a no-op.
func (a *Addon) Stop(ctx context.Context) error {
	return nil
}

func help(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	p, err := bot.Prefix(ctx, in.Server())
	if err != nil {
		return nil, command.Fatal(err)
	}
	name, _ := command.Cut(in.Text)
	if name != "" {
		if !strings.HasPrefix(name, p) {
			name = p + name
		}
		cmd, err := bot.Resolve(ctx, name, in.Message)
		if err != nil {
			return nil, err
		}
		d := cmd.Describe(ctx, bot, in.Message)
		if d == "" {
			d = "No description."
		}
		if cmd.Permission > command.Default {
			return command.Textf("%s%s: %s (%s)", p, cmd.Trigger, d, cmd.Permission), nil
		}
		return command.Textf("%s%s: %s", p, cmd.Trigger, d), nil
	}
	cmds, err := bot.Commands(ctx, in.Message)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]int, len(cmds))
	for _, c := range cmds {
		seen[c.Trigger]++
	}
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		if seen[c.Trigger] > 1 {
			names = append(names, p+c.Qualified())
			continue
		}
		names = append(names, p+c.Trigger)
	}
	if len(names) == 0 {
		return command.Text("There are no commands you can use here."), nil
	}
	return command.Textf("Commands: %s", strings.Join(names, ", ")), nil
}

func addons(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	vis, err := bot.Visible(ctx, in.Server())
	if err != nil {
		return nil, command.Fatal(err)
	}
	always := bot.Always()
	var parts []string
	for _, a := range bot.Addons() {
		state := "disabled"
		switch {
		case slices.Contains(always, a.ID()):
			state = "always on"
		case slices.Contains(vis, a.ID()):
			state = "enabled"
		}
		parts = append(parts, fmt.Sprintf("%s (%s): %s", a.Name(), a.ID(), state))
	}
	if len(parts) == 0 {
		return command.Text("No addons are installed."), nil
	}
	return command.Text(strings.Join(parts, ", ")), nil
}

func enable(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	id, _ := command.Cut(in.Text)
	if bot.Addon(id) == nil {
		return nil, fmt.Errorf("There's no addon called %q.", id)
	}
	err := bot.EditServerConfig(ctx, in.Server(), func(s *settings.Server) error {
		if !s.Enable(id) {
			return fmt.Errorf("%s is already enabled.", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return command.Textf("Enabled %s.", id), nil
}

func disable(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	id, _ := command.Cut(in.Text)
	if slices.Contains(bot.Always(), id) {
		return nil, fmt.Errorf("%s can't be disabled.", id)
	}
	err := bot.EditServerConfig(ctx, in.Server(), func(s *settings.Server) error {
		if !s.Disable(id) {
			return fmt.Errorf("%s isn't enabled.", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return command.Textf("Disabled %s.", id), nil
}

// maxPrefix is the maximum length of a prefix in bytes.
const maxPrefix = 8

func prefix(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	p, _ := command.Cut(in.Text)
	if p == "" {
		cur, err := bot.Prefix(ctx, in.Server())
		if err != nil {
			return nil, command.Fatal(err)
		}
		return command.Textf("The command prefix here is %s", cur), nil
	}
	if in.Message.Private() {
		return nil, &command.ServerOnlyError{Command: in.Command.Qualified()}
	}
	l, err := bot.Level(ctx, in.Message)
	if err != nil {
		return nil, command.Fatal(err)
	}
	if l < command.Admin {
		return nil, &command.PermissionError{Command: in.Command.Qualified(), Need: command.Admin, Have: l}
	}
	if len(p) > maxPrefix || strings.ContainsFunc(p, unicode.IsSpace) {
		return nil, fmt.Errorf("A prefix can be at most %d characters with no spaces.", maxPrefix)
	}
	err = bot.EditServerConfig(ctx, in.Server(), func(s *settings.Server) error {
		s.Prefix = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return command.Textf("The command prefix is now %s", p), nil
}

// user converts a user mention into a platform-qualified user ID.
func user(platform, mention string) string {
	id := strings.TrimPrefix(mention, "@")
	if s, ok := strings.CutPrefix(mention, "<@"); ok {
		id = strings.TrimPrefix(strings.TrimSuffix(s, ">"), "!")
	}
	if platform == "tmi" {
		id = strings.ToLower(id)
	}
	return platform + ":" + id
}

func (a *Addon) level(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	who, _ := command.Cut(in.Text)
	if who == "" {
		l, err := bot.Level(ctx, in.Message)
		if err != nil {
			return nil, command.Fatal(err)
		}
		return command.Textf("Your level here is %s.", l), nil
	}
	if a.grants == nil {
		return nil, errors.New("Grants aren't available.")
	}
	l, ok, err := a.grants.Level(ctx, in.Server(), user(in.Message.Platform, who))
	if err != nil {
		return nil, command.Fatal(err)
	}
	if !ok {
		return command.Textf("%s has no granted level here.", who), nil
	}
	return command.Textf("%s has been granted %s here.", who, l), nil
}

func grantHelp(ctx context.Context, bot *command.Bot, msg *message.Received) string {
	levels := make([]string, 0, command.Superuser-command.Disallowed+1)
	for l := command.Disallowed; l <= command.Superuser; l++ {
		levels = append(levels, l.String())
	}
	return fmt.Sprintf("Grant a level to a user: grant <user> <%s|none>", strings.Join(levels, "|"))
}

func (a *Addon) grant(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	args := in.Args()
	if len(args) != 2 {
		return nil, errors.New("Give a user and a level to grant.")
	}
	who := user(in.Message.Platform, args[0])
	if strings.EqualFold(args[1], "none") {
		if err := a.grants.Remove(ctx, in.Server(), who); err != nil {
			return nil, command.Fatal(err)
		}
		return command.Textf("Removed the level granted to %s.", args[0]), nil
	}
	l, err := command.ParseLevel(args[1])
	if err != nil {
		return nil, fmt.Errorf("%q isn't a level.", args[1])
	}
	mine, err := bot.Level(ctx, in.Message)
	if err != nil {
		return nil, command.Fatal(err)
	}
	if l > mine {
		return nil, &command.PermissionError{Command: in.Command.Qualified(), Need: l, Have: mine}
	}
	if err := a.grants.Set(ctx, in.Server(), who, l); err != nil {
		return nil, command.Fatal(err)
	}
	return command.Textf("Granted %s to %s.", l, args[0]), nil
}

func reload(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	if err := bot.Reload(ctx); err != nil {
		return nil, err
	}
	return command.Textf("Reloaded %d commands.", bot.Registry().Len()), nil
}

func private(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	r := command.Text(in.Text)
	r.Private = true
	return r, nil
}

// recentCount is the number of invocations recent shows.
const recentCount = 5

func (a *Addon) recent(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	n := recentCount
	if arg, _ := command.Cut(in.Text); arg != "" {
		k, err := strconv.Atoi(arg)
		if err != nil || k < 1 || k > 20 {
			return nil, errors.New("Show between 1 and 20 commands.")
		}
		n = k
	}
	// The invocation of recent itself is usually the newest entry.
	entries, err := a.audit.Recent(ctx, in.Server(), n+1)
	if err != nil {
		return nil, command.Fatal(err)
	}
	if len(entries) > 0 && entries[0].Group == a.ID() && entries[0].Trigger == "recent" {
		entries = entries[1:]
	}
	entries = entries[:min(n, len(entries))]
	if len(entries) == 0 {
		return command.Text("No commands have been used here."), nil
	}
	now := in.Message.Time()
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%s.%s by %.7s %s ago", e.Group, e.Trigger, e.User, now.Sub(e.Time).Truncate(time.Second))
	}
	return command.Text(strings.Join(parts, "; ")), nil
}
