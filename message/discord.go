package message

import "github.com/bwmarrin/discordgo"

// FromDiscord adapts a Discord message.
// The server of a guild message is the guild ID. Direct messages have no
// server. Moderation status is not known from the message alone, so
// IsModerator and IsOwner are always false.
func FromDiscord(m *discordgo.Message) *Received {
	r := Received{
		ID:        m.ID,
		Platform:  "discord",
		Server:    m.GuildID,
		Channel:   m.ChannelID,
		Text:      m.Content,
		Timestamp: m.Timestamp.UnixMilli(),
	}
	if m.Author != nil {
		r.Sender = m.Author.ID
		r.Name = m.Author.Username
		if m.Author.GlobalName != "" {
			r.Name = m.Author.GlobalName
		}
	}
	if m.Member != nil && m.Member.Nick != "" {
		r.Name = m.Member.Nick
	}
	return &r
}
