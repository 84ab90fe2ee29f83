package command

import (
	"fmt"
	"strings"
)

// Result is the accumulated output of an evaluation.
// The zero value is an empty result ready to use.
type Result struct {
	text string
	// Embeds are rich content blocks to attach to the response.
	Embeds []Embed
	// Reactions are emoji to react to the triggering message with.
	Reactions []string
	// Private requests that the response be delivered privately to the
	// sender instead of in the channel the message came from.
	Private bool

	args   []string
	parsed bool
}

// Embed is a rich content block.
type Embed struct {
	Title       string
	Description string
	URL         string
	// Color is an RGB color. Zero means the server's color scheme.
	Color  int
	Fields []EmbedField
	Footer string
}

// EmbedField is a named field in an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Text creates a result with the given text.
func Text(s string) *Result {
	var r Result
	r.AddText(s)
	return &r
}

// Textf creates a result with formatted text.
func Textf(format string, args ...any) *Result {
	return Text(fmt.Sprintf(format, args...))
}

// AddText appends a fragment of text to the result, separated from any
// existing text by a single space. Empty fragments are ignored.
func (r *Result) AddText(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if r.text == "" {
		r.text = s
	} else {
		r.text += " " + s
	}
	r.parsed = false
}

// AddEmbed appends an embed.
func (r *Result) AddEmbed(e Embed) {
	r.Embeds = append(r.Embeds, e)
}

// AddReaction appends a reaction.
func (r *Result) AddReaction(emoji string) {
	r.Reactions = append(r.Reactions, emoji)
}

// Merge appends all of o's content to r. A nil o is empty.
func (r *Result) Merge(o *Result) {
	if o == nil {
		return
	}
	r.AddText(o.text)
	r.attach(o)
}

// attach appends o's embeds and reactions and its privacy, but not its text.
func (r *Result) attach(o *Result) {
	r.Embeds = append(r.Embeds, o.Embeds...)
	r.Reactions = append(r.Reactions, o.Reactions...)
	r.Private = r.Private || o.Private
}

// Text returns the accumulated text.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	return r.text
}

// Args returns the accumulated text split into tokens by Tokenize.
// The result must not be modified.
func (r *Result) Args() []string {
	if !r.parsed {
		r.args = Tokenize(r.text)
		r.parsed = true
	}
	return r.args
}

// Empty reports whether the result has nothing to send.
func (r *Result) Empty() bool {
	return r == nil || r.text == "" && len(r.Embeds) == 0 && len(r.Reactions) == 0
}
