package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gitlab.com/zephyrtronium/tmi"
	"golang.org/x/time/rate"

	"github.com/zephyrtronium/tilde/command"
	"github.com/zephyrtronium/tilde/message"
)

// twitch is a connection to Twitch chat. Channels are servers. Twitch has
// no private messages for bots, so private results mention their recipient
// in the channel instead.
type twitch struct {
	nick     string
	pass     string
	channels []string
	rate     *rate.Limiter
	send     chan *tmi.Message
}

func newTwitch(cfg *TMICfg) (*twitch, error) {
	tok, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("couldn't read TMI token: %w", err)
	}
	pass := strings.TrimSpace(string(tok))
	if !strings.HasPrefix(pass, "oauth:") {
		pass = "oauth:" + pass
	}
	chans := make([]string, len(cfg.Channels))
	for i, c := range cfg.Channels {
		chans[i] = "#" + strings.ToLower(strings.TrimPrefix(c, "#"))
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.Rate.Num > 0 {
		lim = rate.NewLimiter(rate.Every(fseconds(cfg.Rate.Every)), cfg.Rate.Num)
	}
	t := twitch{
		nick:     strings.ToLower(cfg.Nick),
		pass:     pass,
		channels: chans,
		rate:     lim,
		send:     make(chan *tmi.Message, 1),
	}
	return &t, nil
}

func (t *twitch) Name() string { return "tmi" }

// Level gives the broadcaster overlord and moderators admin.
func (t *twitch) Level(ctx context.Context, msg *message.Received) (command.Level, error) {
	switch {
	case msg.IsOwner:
		return command.Overlord, nil
	case msg.IsModerator:
		return command.Admin, nil
	default:
		return command.Default, nil
	}
}

// Send sends a result to the channel a message came from after waiting for
// the global rate limit. Embeds become lines of text, and reactions are
// dropped.
func (t *twitch) Send(ctx context.Context, msg *message.Received, r *command.Result) error {
	text := tmiText(r)
	if text == "" {
		return nil
	}
	var s message.Sent
	if r.Private {
		s = message.Format("", msg.Channel, "@%s %s", msg.Name, text)
	} else {
		s = message.Format(msg.ID, msg.Channel, "%s", text)
	}
	if err := t.rate.Wait(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case t.send <- message.ToTMI(s):
		return nil
	}
}

// tmiText flattens a result into a single chat line.
func tmiText(r *command.Result) string {
	parts := []string{r.Text()}
	for _, e := range r.Embeds {
		parts = append(parts, e.Title+": "+e.Description)
	}
	return strings.TrimSpace(strings.Join(parts, " | "))
}

// Run connects to TMI and delivers messages until the context is canceled.
func (t *twitch) Run(ctx context.Context, recv func(context.Context, *message.Received)) error {
	cfg := tmi.ConnectConfig{
		Dial:         new(tls.Dialer).DialContext,
		RetryWait:    tmi.RetryList(true, 0, time.Second, time.Minute, 5*time.Minute),
		Nick:         t.nick,
		Pass:         t.pass,
		Capabilities: []string{"twitch.tv/commands", "twitch.tv/tags"},
		Timeout:      300 * time.Second,
	}
	recvc := make(chan *tmi.Message, 8) // 8 is enough for on-connect msgs
	go t.loop(ctx, recvc, recv)
	log := slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug)
	tmi.Connect(ctx, cfg, tmi.Log(log, false), t.send, recvc)
	return ctx.Err()
}

func (t *twitch) loop(ctx context.Context, recvc <-chan *tmi.Message, recv func(context.Context, *message.Received)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-recvc:
			if !ok {
				return
			}
			switch msg.Command {
			case "PRIVMSG":
				if msg.Nick == t.nick {
					continue
				}
				recv(ctx, message.FromTMI(msg))
			case "GLOBALUSERSTATE":
				slog.InfoContext(ctx, "connected to TMI", slog.String("GLOBALUSERSTATE", msg.Tags))
			case "366": // End NAMES
				if len(msg.Params) > 1 {
					slog.InfoContext(ctx, "joined channel", slog.String("channel", msg.Params[1]))
				}
			case "376": // End MOTD
				go t.join(ctx)
			}
		}
	}
}

func (t *twitch) join(ctx context.Context) {
	ls := t.channels
	burst := 20
	for len(ls) > 0 {
		l := ls[:min(burst, len(ls))]
		ls = ls[len(l):]
		msg := tmi.Message{
			Command: "JOIN",
			Params:  []string{strings.Join(l, ",")},
		}
		select {
		case <-ctx.Done():
			return
		case t.send <- &msg:
			// do nothing
		}
		if len(ls) > 0 {
			// Per https://dev.twitch.tv/docs/irc/#rate-limits we get 20 join
			// attempts per ten seconds. Use a slightly longer delay to ensure
			// we don't get globaled by clock drift.
			select {
			case <-ctx.Done():
				return
			case <-time.After(11 * time.Second):
			}
		}
	}
}
