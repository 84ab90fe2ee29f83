package command

import (
	"iter"
	"slices"
	"sort"
	"sync"
)

// Entry is the registry entry for a trigger.
// It is either a Single or a Collision.
type Entry interface {
	// Commands returns the commands in the entry.
	// The result must not be modified.
	Commands() []*Command

	entry()
}

// Single is an entry for a trigger only one group uses.
type Single struct {
	Command *Command
}

// Collision is an entry for a trigger used by several groups, in the order
// they were added. A Collision always has at least two commands, no two of
// which belong to the same group.
type Collision []*Command

func (s Single) Commands() []*Command    { return []*Command{s.Command} }
func (c Collision) Commands() []*Command { return c }

func (Single) entry()    {}
func (Collision) entry() {}

// Registry maps triggers to commands.
// It is safe to use concurrently.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Entry
	n  int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Entry)}
}

// Add adds a command. It reports false without changing the registry if
// the command's group already has a command with the same trigger.
func (r *Registry) Add(cmd *Command) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch e := r.m[cmd.Trigger].(type) {
	case nil:
		r.m[cmd.Trigger] = Single{cmd}
	case Single:
		if e.Command.Group.ID() == cmd.Group.ID() {
			return false
		}
		r.m[cmd.Trigger] = Collision{e.Command, cmd}
	case Collision:
		if slices.ContainsFunc(e, func(c *Command) bool { return c.Group.ID() == cmd.Group.ID() }) {
			return false
		}
		// Entries are shared with readers, so never append in place.
		r.m[cmd.Trigger] = append(slices.Clip(e), cmd)
	}
	r.n++
	return true
}

// Remove removes the command with the given trigger owned by the given
// group. It reports false if the trigger belongs only to a different group,
// which indicates the caller is confused about what it owns. Otherwise it
// reports true, including when there is nothing to remove.
func (r *Registry) Remove(trigger, group string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch e := r.m[trigger].(type) {
	case Single:
		if e.Command.Group.ID() != group {
			return false
		}
		delete(r.m, trigger)
	case Collision:
		k := slices.IndexFunc(e, func(c *Command) bool { return c.Group.ID() == group })
		if k < 0 {
			return true
		}
		rest := slices.Delete(slices.Clone(e), k, k+1)
		if len(rest) == 1 {
			r.m[trigger] = Single{rest[0]}
		} else {
			r.m[trigger] = Collision(rest)
		}
	default:
		return true
	}
	r.n--
	return true
}

// Get returns the entry for a trigger, or nil if there is none.
func (r *Registry) Get(trigger string) Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.m[trigger]
}

// Find returns the command with the given trigger owned by the given group,
// or nil if there is none.
func (r *Registry) Find(trigger, group string) *Command {
	e := r.Get(trigger)
	if e == nil {
		return nil
	}
	for _, c := range e.Commands() {
		if c.Group.ID() == group {
			return c
		}
	}
	return nil
}

// Len returns the number of commands in the registry.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.n
}

// All iterates over a snapshot of all commands in the registry, sorted by
// trigger. Commands sharing a trigger are in the order they were added.
func (r *Registry) All() iter.Seq[*Command] {
	r.mu.RLock()
	keys := make([]string, 0, len(r.m))
	for k := range r.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]Entry, len(keys))
	for i, k := range keys {
		entries[i] = r.m[k]
	}
	r.mu.RUnlock()
	return func(yield func(*Command) bool) {
		for _, e := range entries {
			for _, c := range e.Commands() {
				if !yield(c) {
					return
				}
			}
		}
	}
}
