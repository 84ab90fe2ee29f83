package message_test

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"

	"github.com/zephyrtronium/tilde/message"
)

func TestFromDiscord(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	cases := []struct {
		name string
		msg  *discordgo.Message
		want message.Received
	}{
		{
			name: "guild",
			msg: &discordgo.Message{
				ID:        "1",
				ChannelID: "2",
				GuildID:   "3",
				Content:   "~say hi",
				Timestamp: ts,
				Author:    &discordgo.User{ID: "4", Username: "someone"},
			},
			want: message.Received{
				ID:        "1",
				Platform:  "discord",
				Server:    "3",
				Channel:   "2",
				Sender:    "4",
				Name:      "someone",
				Text:      "~say hi",
				Timestamp: 1700000000000,
			},
		},
		{
			name: "global-name",
			msg: &discordgo.Message{
				ID:        "1",
				ChannelID: "2",
				GuildID:   "3",
				Content:   "hi",
				Timestamp: ts,
				Author:    &discordgo.User{ID: "4", Username: "someone", GlobalName: "Someone"},
			},
			want: message.Received{
				ID:        "1",
				Platform:  "discord",
				Server:    "3",
				Channel:   "2",
				Sender:    "4",
				Name:      "Someone",
				Text:      "hi",
				Timestamp: 1700000000000,
			},
		},
		{
			name: "nick",
			msg: &discordgo.Message{
				ID:        "1",
				ChannelID: "2",
				GuildID:   "3",
				Content:   "hi",
				Timestamp: ts,
				Author:    &discordgo.User{ID: "4", Username: "someone", GlobalName: "Someone"},
				Member:    &discordgo.Member{Nick: "nick"},
			},
			want: message.Received{
				ID:        "1",
				Platform:  "discord",
				Server:    "3",
				Channel:   "2",
				Sender:    "4",
				Name:      "nick",
				Text:      "hi",
				Timestamp: 1700000000000,
			},
		},
		{
			name: "direct",
			msg: &discordgo.Message{
				ID:        "1",
				ChannelID: "2",
				Content:   "~help",
				Timestamp: ts,
				Author:    &discordgo.User{ID: "4", Username: "someone"},
			},
			want: message.Received{
				ID:        "1",
				Platform:  "discord",
				Channel:   "2",
				Sender:    "4",
				Name:      "someone",
				Text:      "~help",
				Timestamp: 1700000000000,
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := message.FromDiscord(c.msg)
			if diff := cmp.Diff(&c.want, got); diff != "" {
				t.Errorf("wrong message (+got/-want):\n%s", diff)
			}
			if got.Private() != (c.msg.GuildID == "") {
				t.Errorf("wrong privacy: got %t for guild %q", got.Private(), c.msg.GuildID)
			}
		})
	}
}
