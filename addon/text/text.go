// Package text provides commands that transform text.
package text

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"

	"gitlab.com/zephyrtronium/pick"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/zephyrtronium/tilde/command"
)

// Addon is the text addon.
type Addon struct {
	// rand produces random values for picks.
	rand func() uint32
}

// New creates the text addon.
func New() *Addon {
	return &Addon{rand: rand.Uint32}
}

func (a *Addon) ID() string   { return "text" }
func (a *Addon) Name() string { return "Text" }

// Start registers the addon's commands.
func (a *Addon) Start(ctx context.Context, bot *command.Bot) error {
	cmds := []*command.Command{
		{Trigger: "say", Help: "Repeat text.", Fn: say},
		{Trigger: "flip", Help: "Reverse text.", Fn: flip},
		{Trigger: "upper", Help: "Make text uppercase.", Fn: mapper(func() cases.Caser { return cases.Upper(language.Und) })},
		{Trigger: "lower", Help: "Make text lowercase.", Fn: mapper(func() cases.Caser { return cases.Lower(language.Und) })},
		{Trigger: "title", Help: "Make text title case.", Fn: mapper(func() cases.Caser { return cases.Title(language.Und) })},
		{Trigger: "owo", Help: "OwO-ify text.", Fn: effect("owo")},
		{Trigger: "aaaaa", Help: "AAAAA.", Fn: effect("aaaaa")},
		{Trigger: "o", Help: "Replace vowels with o.", Fn: effect("o")},
		{Trigger: "dance", Help: "Dance.", Fn: a.dance},
		{Trigger: "8ball", Help: "Ask a question.", Fn: a.eightball},
		{Trigger: "choose", Help: "Choose one of several options. Quote options with spaces.", Fn: a.choose},
		{Trigger: "repeat", Help: "Repeat text up to 10 times: repeat <n> <text>", Fn: repeat},
		{Trigger: "wait", Help: "Wait up to a minute before responding: wait <seconds> <text>", Fn: wait},
		{Trigger: "raw", Help: "Repeat text without running commands in it.", Raw: true, Fn: say},
		{Trigger: "embed", Help: "Make an embed: embed <title> <text>", Fn: embed},
		{Trigger: "react", Help: "React to the message: react <emoji> [text]", Fn: react},
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

func say(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	return command.Text(in.Text), nil
}

func flip(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	r := []rune(in.Text)
	slices.Reverse(r)
	return command.Text(string(r)), nil
}

// mapper creates a command that applies a case mapping.
// Casers hold state, so each invocation gets its own.
func mapper(c func() cases.Caser) command.Func {
	return func(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
		m := c()
		return command.Text(m.String(in.Text)), nil
	}
}

func effect(name string) command.Func {
	return func(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
		return command.Text(Effect(name, in.Text)), nil
	}
}

var dances = pick.New([]pick.Case[string]{
	{E: "♪┏(・o･)┛♪┗ ( ･o･) ┓♪", W: 10},
	{E: "└|∵|┐♪└|∵|┘♪┌|∵|┘", W: 10},
	{E: "ᕕ( ᐛ )ᕗ", W: 10},
	{E: "(~‾▿‾)~", W: 5},
	{E: "💃", W: 1},
})

func (a *Addon) dance(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	return command.Text(dances.Pick(a.rand())), nil
}

var answers = pick.New([]pick.Case[string]{
	{E: "It is certain.", W: 10},
	{E: "Without a doubt.", W: 10},
	{E: "Most likely.", W: 10},
	{E: "Ask again later.", W: 5},
	{E: "Cannot predict now.", W: 5},
	{E: "Don't count on it.", W: 10},
	{E: "Very doubtful.", W: 10},
})

func (a *Addon) eightball(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	if in.Text == "" {
		return nil, errors.New("You need to ask a question.")
	}
	return command.Text(answers.Pick(a.rand())), nil
}

func (a *Addon) choose(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	args := in.Args()
	if len(args) == 0 {
		return nil, errors.New("There's nothing to choose from.")
	}
	return command.Text(args[a.rand()%uint32(len(args))]), nil
}

// maxRepeat is the most times repeat will repeat.
const maxRepeat = 10

func repeat(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	arg, text := command.Cut(in.Text)
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > maxRepeat {
		return nil, fmt.Errorf("The number of times to repeat must be from 1 to %d.", maxRepeat)
	}
	if text == "" {
		return nil, nil
	}
	return command.Text(strings.Repeat(text+" ", n)), nil
}

// maxWait is the longest wait will wait.
const maxWait = time.Minute

func wait(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	arg, text := command.Cut(in.Text)
	s, err := strconv.ParseFloat(arg, 64)
	d := time.Duration(s * float64(time.Second))
	if err != nil || d < 0 || d > maxWait {
		return nil, fmt.Errorf("The time to wait must be a number of seconds up to %v.", maxWait.Seconds())
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, command.Fatal(fmt.Errorf("wait interrupted: %w", ctx.Err()))
	case <-t.C:
	}
	return command.Text(text), nil
}

func embed(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	title, text := command.Cut(in.Text)
	if title == "" {
		return nil, errors.New("An embed needs a title.")
	}
	r := new(command.Result)
	r.AddEmbed(command.Embed{
		Title:       title,
		Description: text,
		Color:       bot.Color(ctx, in.Server()),
	})
	return r, nil
}

func react(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
	emoji, text := command.Cut(in.Text)
	if emoji == "" {
		return nil, errors.New("What should I react with?")
	}
	r := command.Text(text)
	r.AddReaction(emoji)
	return r, nil
}
