package message

import (
	"strconv"
	"strings"

	"gitlab.com/zephyrtronium/tmi"
)

// FromTMI adapts a TMI IRC message.
// The server of a message is the channel name without its #. The sender is
// the user's login, the same name used to mention them in chat.
func FromTMI(m *tmi.Message) *Received {
	id, _ := m.Tag("id")
	ts, _ := m.Tag("tmi-sent-ts")
	u, _ := strconv.ParseInt(ts, 10, 64)
	to := m.To()
	r := Received{
		ID:          id,
		Platform:    "tmi",
		Server:      strings.TrimPrefix(to, "#"),
		Channel:     to,
		Sender:      strings.ToLower(m.Nick),
		Name:        m.DisplayName(),
		Text:        m.Trailing,
		Timestamp:   u,
		IsModerator: moderator(m),
		IsOwner:     broadcaster(m),
	}
	return &r
}

func moderator(m *tmi.Message) bool {
	t, _ := m.Tag("mod")
	if t == "1" {
		return true
	}
	// The broadcaster seems to get mod=0.
	return broadcaster(m)
}

func broadcaster(m *tmi.Message) bool {
	// The broadcaster's nick is equal to the channel name.
	to := m.To()
	return len(to) > 1 && to[0] == '#' && to[1:] == m.Nick
}

// ToTMI creates a message to send to TMI. If reply is not empty, then the
// result is a reply to the message with that ID.
func ToTMI(s Sent) *tmi.Message {
	r := tmi.Privmsg(s.To, s.Text)
	if s.Reply != "" {
		r.Tags = "reply-parent-msg-id=" + s.Reply
	}
	return r
}
