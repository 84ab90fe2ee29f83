package command

import (
	"fmt"
	"strings"
)

// Level is a privilege level. Levels are totally ordered; a user may invoke
// a command only if their level is at least the command's.
type Level int8

const (
	// Disallowed is the level of users who may not use any commands.
	Disallowed Level = iota
	// Default is the level of ordinary users.
	Default
	// Trusted is the level of users trusted with commands that can change
	// what other users see, like adding custom commands.
	Trusted
	// Admin is the level of server administrators and moderators.
	Admin
	// Overlord is the level of server owners.
	Overlord
	// Superuser is the level of bot owners. It applies on every server.
	Superuser
)

var levelNames = [...]string{
	Disallowed: "disallowed",
	Default:    "default",
	Trusted:    "trusted",
	Admin:      "admin",
	Overlord:   "overlord",
	Superuser:  "superuser",
}

// String returns the lowercase name of the level.
func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return fmt.Sprintf("Level(%d)", int8(l))
	}
	return levelNames[l]
}

// ParseLevel parses a level name. Names are not case sensitive.
func ParseLevel(s string) (Level, error) {
	for l, n := range levelNames {
		if strings.EqualFold(s, n) {
			return Level(l), nil
		}
	}
	return Disallowed, fmt.Errorf("unknown privilege level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if l < 0 || int(l) >= len(levelNames) {
		return nil, fmt.Errorf("invalid privilege level %d", int8(l))
	}
	return []byte(levelNames[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
