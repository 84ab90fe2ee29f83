package command

import "github.com/zephyrtronium/tilde/message"

// Input is the input to a command invocation.
type Input struct {
	// Message is the message that triggered the invocation.
	// It must not be modified.
	Message *message.Received
	// Command is the command being invoked.
	Command *Command
	// Text is the command's input: the evaluated text following the
	// command's word, or the verbatim text if the command is raw.
	Text string

	args   []string
	parsed bool
}

// Args returns Text split into tokens by Tokenize.
// The result must not be modified.
func (in *Input) Args() []string {
	if !in.parsed {
		in.args = Tokenize(in.Text)
		in.parsed = true
	}
	return in.args
}

// Server returns the platform-qualified ID of the server the invocation
// happened in, or the empty string if it is private.
func (in *Input) Server() string {
	return in.Message.ServerID()
}
