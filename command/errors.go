package command

import (
	"errors"
	"fmt"
	"strings"
)

// Errors from the engine are user-facing. Their messages are meant to be
// shown to the person who sent the message.

// UnknownCommandError is the error when no visible group has a command with
// a trigger, or a qualified command does not exist.
type UnknownCommandError struct {
	Trigger string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("There's no command called %q.", e.Trigger)
}

// GroupNotEnabledError is the error when a qualified command names a group
// that is not visible in the server.
type GroupNotEnabledError struct {
	Group string
}

func (e *GroupNotEnabledError) Error() string {
	return fmt.Sprintf("%q isn't enabled here.", e.Group)
}

// AmbiguousCommandError is the error when several visible groups have a
// command with the same trigger.
type AmbiguousCommandError struct {
	Trigger string
	// Candidates are the qualified names of the matching commands.
	Candidates []string
}

func (e *AmbiguousCommandError) Error() string {
	return fmt.Sprintf("%q could mean %s. Use the full name to pick one.", e.Trigger, strings.Join(e.Candidates, ", "))
}

// PermissionError is the error when a user's level is below a command's.
type PermissionError struct {
	Command string
	Need    Level
	Have    Level
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("You need to be %s to use %s.", e.Need, e.Command)
}

// ServerOnlyError is the error when a server-only command is used in a
// private message.
type ServerOnlyError struct {
	Command string
}

func (e *ServerOnlyError) Error() string {
	return fmt.Sprintf("%s can only be used in a server.", e.Command)
}

// CommandError wraps an error returned by a command.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return e.Err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// fatal marks an internal failure.
type fatal struct {
	err error
}

func (e fatal) Error() string {
	return e.err.Error()
}

func (e fatal) Unwrap() error {
	return e.err
}

// Fatal marks err as an internal failure. Internal failures abort evaluation
// like any other error, but they are logged instead of shown to users.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return fatal{err}
}

// IsFatal reports whether err is or wraps an internal failure.
func IsFatal(err error) bool {
	var f fatal
	return errors.As(err, &f)
}

// failureKind names the kind of an evaluation error for metrics.
func failureKind(err error) string {
	var (
		unknown    *UnknownCommandError
		disabled   *GroupNotEnabledError
		ambiguous  *AmbiguousCommandError
		permission *PermissionError
		server     *ServerOnlyError
	)
	switch {
	case IsFatal(err):
		return "fatal"
	case errors.As(err, &unknown):
		return "unknown"
	case errors.As(err, &disabled):
		return "disabled"
	case errors.As(err, &ambiguous):
		return "ambiguous"
	case errors.As(err, &permission):
		return "permission"
	case errors.As(err, &server):
		return "server"
	default:
		return "command"
	}
}
