package message

import (
	"fmt"
	"strings"
	"time"
)

// Received is a message received from a chat platform.
type Received struct {
	// ID is the unique ID of the message.
	ID string
	// Platform is the name of the connection that received the message.
	Platform string
	// Server is the identifier of the server (guild, Twitch channel) where
	// the message was sent. It is empty for private messages.
	Server string
	// Channel is the room the message was sent to. Responses go here.
	Channel string
	// Sender is a unique identifier for the message sender on the platform.
	Sender string
	// Name is the display name of the message sender.
	Name string
	// Text is the text of the message.
	Text string
	// Timestamp is the timestamp of the message as milliseconds since the
	// Unix epoch.
	Timestamp int64
	// IsModerator indicates whether the sender can moderate the room to which
	// the message was sent.
	IsModerator bool
	// IsOwner indicates whether the sender owns the server.
	IsOwner bool
}

// Time returns the message timestamp.
func (m *Received) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Private reports whether the message was sent outside of any server.
func (m *Received) Private() bool {
	return m.Server == ""
}

// User returns the sender's identity qualified by platform,
// e.g. "discord:1234".
func (m *Received) User() string {
	return m.Platform + ":" + m.Sender
}

// ServerID returns the server qualified by platform, e.g. "discord:1234",
// or the empty string for private messages.
func (m *Received) ServerID() string {
	if m.Server == "" {
		return ""
	}
	return m.Platform + ":" + m.Server
}

// Sent is a text message to be sent to a platform.
type Sent struct {
	// Reply is a message to reply to. If empty, the message is not interpreted
	// as a reply.
	Reply string
	// To is the channel or user to whom the message is sent.
	To string
	// Text is the message text.
	Text string
}

// formatString is a type to prevent misuse of format strings passed to [Format].
type formatString string

// Format constructs a message to send from a format string literal and
// formatting arguments.
func Format(reply, to string, f formatString, args ...any) Sent {
	return Sent{
		Reply: reply,
		To:    to,
		Text:  strings.TrimSpace(fmt.Sprintf(string(f), args...)),
	}
}
