// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package nuclearbot

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// A Registry is a set of commands indexed by label. Labels are compared
// without regard to case. A zero Registry is ready for use. The methods of a
// Registry are safe for concurrent use, and each is atomic with respect to
// the others.
type Registry struct {
	μ     sync.Mutex
	cmds  map[string]*Command
	order []string // labels in registration order

	// If set, notify is called after each successful change, without the
	// lock held.
	notify func(Event)
}

// NewRegistry constructs a new empty registry.
func NewRegistry() *Registry { return new(Registry) }

// Register adds a command with the given label, usage string, and executor.
// It reports ErrDuplicateCommand if label is already registered.
func (r *Registry) Register(label, usage string, exec Executor) (*Command, error) {
	label = normalizeLabel(label)
	if label == "" {
		return nil, errors.New("empty command label")
	} else if strings.ContainsAny(label, " \t\r\n") {
		return nil, fmt.Errorf("invalid command label %q", label)
	} else if exec == nil {
		return nil, fmt.Errorf("register %q: nil executor", label)
	}
	cmd := &Command{label: label, usage: usage, exec: exec}

	r.μ.Lock()
	if _, ok := r.cmds[label]; ok {
		r.μ.Unlock()
		return nil, fmt.Errorf("register %q: %w", label, ErrDuplicateCommand)
	}
	if r.cmds == nil {
		r.cmds = make(map[string]*Command)
	}
	r.cmds[label] = cmd
	r.order = append(r.order, label)
	notify := r.notify
	r.μ.Unlock()

	if notify != nil {
		notify(Event{Type: EventCommandRegistered, Label: label, Command: cmd})
	}
	return cmd, nil
}

// Unregister removes the command with the given label. It reports
// ErrUnknownCommand if label is not registered.
func (r *Registry) Unregister(label string) error {
	label = normalizeLabel(label)

	r.μ.Lock()
	cmd, ok := r.cmds[label]
	if !ok {
		r.μ.Unlock()
		return fmt.Errorf("unregister %q: %w", label, ErrUnknownCommand)
	}
	delete(r.cmds, label)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == label })
	notify := r.notify
	r.μ.Unlock()

	if notify != nil {
		notify(Event{Type: EventCommandUnregistered, Label: label, Command: cmd})
	}
	return nil
}

// Lookup reports the command registered for label, if any.
func (r *Registry) Lookup(label string) (*Command, bool) {
	label = normalizeLabel(label)
	r.μ.Lock()
	defer r.μ.Unlock()
	cmd, ok := r.cmds[label]
	return cmd, ok
}

// Contains reports whether label is registered.
func (r *Registry) Contains(label string) bool {
	_, ok := r.Lookup(label)
	return ok
}

// Commands returns a snapshot of the registered commands in registration
// order.
func (r *Registry) Commands() []*Command {
	r.μ.Lock()
	defer r.μ.Unlock()
	out := make([]*Command, len(r.order))
	for i, label := range r.order {
		out[i] = r.cmds[label]
	}
	return out
}

// Labels returns a snapshot of the registered labels in registration order.
func (r *Registry) Labels() []string {
	r.μ.Lock()
	defer r.μ.Unlock()
	return slices.Clone(r.order)
}

// Len reports the number of registered commands.
func (r *Registry) Len() int {
	r.μ.Lock()
	defer r.μ.Unlock()
	return len(r.cmds)
}

// reset discards all registered commands without publishing events.
func (r *Registry) reset() {
	r.μ.Lock()
	defer r.μ.Unlock()
	clear(r.cmds)
	r.order = nil
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(label), CommandPrefix))
}
