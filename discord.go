package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/zephyrtronium/tilde/command"
	"github.com/zephyrtronium/tilde/message"
)

// discord is a connection to Discord. Guilds are servers, and direct
// messages are private.
type discord struct {
	session *discordgo.Session
	// color gives the embed color for a server.
	color func(ctx context.Context, server string) int
}

func newDiscord(token string, color func(ctx context.Context, server string) int) (*discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	return &discord{session: session, color: color}, nil
}

func (d *discord) Name() string { return "discord" }

// Level maps the sender's guild permissions to a level. The guild owner is
// an overlord, administrators are admins, and those who can manage messages
// are trusted.
func (d *discord) Level(ctx context.Context, msg *message.Received) (command.Level, error) {
	if msg.Private() {
		return command.Default, nil
	}
	g, err := d.session.State.Guild(msg.Server)
	if err != nil {
		g, err = d.session.Guild(msg.Server)
		if err != nil {
			return command.Default, fmt.Errorf("couldn't get guild: %w", err)
		}
	}
	if g.OwnerID == msg.Sender {
		return command.Overlord, nil
	}
	perms, err := d.session.UserChannelPermissions(msg.Sender, msg.Channel)
	if err != nil {
		return command.Default, fmt.Errorf("couldn't get permissions: %w", err)
	}
	switch {
	case perms&discordgo.PermissionAdministrator != 0:
		return command.Admin, nil
	case perms&discordgo.PermissionManageMessages != 0:
		return command.Trusted, nil
	default:
		return command.Default, nil
	}
}

// Send replies to a message. Private results go to the sender's direct
// messages. Reactions always go on the original message.
func (d *discord) Send(ctx context.Context, msg *message.Received, r *command.Result) error {
	for _, e := range r.Reactions {
		if err := d.session.MessageReactionAdd(msg.Channel, msg.ID, e); err != nil {
			slog.WarnContext(ctx, "couldn't react", slog.String("trace", msg.ID), slog.String("emoji", e), slog.Any("err", err))
		}
	}
	send := discordgo.MessageSend{
		Content:         r.Text(),
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	}
	for _, e := range r.Embeds {
		send.Embeds = append(send.Embeds, d.embed(ctx, msg.ServerID(), e))
	}
	if send.Content == "" && len(send.Embeds) == 0 {
		return nil
	}
	channel := msg.Channel
	if r.Private && !msg.Private() {
		ch, err := d.session.UserChannelCreate(msg.Sender)
		if err != nil {
			return fmt.Errorf("couldn't open direct message channel: %w", err)
		}
		channel = ch.ID
	} else {
		send.Reference = &discordgo.MessageReference{
			MessageID: msg.ID,
			ChannelID: msg.Channel,
			GuildID:   msg.Server,
		}
	}
	if _, err := d.session.ChannelMessageSendComplex(channel, &send); err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	return nil
}

func (d *discord) embed(ctx context.Context, server string, e command.Embed) *discordgo.MessageEmbed {
	r := discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		URL:         e.URL,
		Color:       e.Color,
	}
	if r.Color == 0 && d.color != nil {
		r.Color = d.color(ctx, server)
	}
	for _, f := range e.Fields {
		r.Fields = append(r.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.Footer != "" {
		r.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	return &r
}

// Run opens the Discord websocket connection and delivers messages until
// the context is canceled.
func (d *discord) Run(ctx context.Context, recv func(context.Context, *message.Received)) error {
	remove := d.session.AddHandler(func(s *discordgo.Session, ev *discordgo.MessageCreate) {
		// Ignore messages sent by bots, including ourselves.
		if ev.Author == nil || ev.Author.Bot {
			return
		}
		recv(ctx, message.FromDiscord(ev.Message))
	})
	defer remove()
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("couldn't open Discord connection: %w", err)
	}
	<-ctx.Done()
	if err := d.session.Close(); err != nil {
		return fmt.Errorf("couldn't close Discord connection: %w", err)
	}
	return ctx.Err()
}
