// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package nuclearbot

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/creachadair/mds/mapset"
	"pkt.systems/pslog"
)

// EventType identifies the kind of an Event.
type EventType byte

const (
	EventConnected           EventType = 1 + iota // the client joined its channel
	EventDisconnected                             // a session ended
	EventMessage                                  // a chat message was received or sent
	EventCommandRegistered                        // a command was registered
	EventCommandUnregistered                      // a command was unregistered
)

var eventTypeStr = [...]string{
	EventConnected:           "Connected",
	EventDisconnected:        "Disconnected",
	EventMessage:             "Message",
	EventCommandRegistered:   "CommandRegistered",
	EventCommandUnregistered: "CommandUnregistered",
}

func (t EventType) String() string {
	if int(t) < len(eventTypeStr) && eventTypeStr[t] != "" {
		return eventTypeStr[t]
	}
	return fmt.Sprintf("EventType(%d)", byte(t))
}

// An Event is delivered to the listeners of a Bus.
type Event struct {
	Type   EventType
	Client *Client // the client the event concerns, if any

	// For EventMessage: the sender and text of the message. Messages sent by
	// the client itself carry the bot's own username.
	User string
	Text string

	// For EventCommandRegistered and EventCommandUnregistered.
	Label   string
	Command *Command
}

// A Listener receives events published on a Bus.
//
// Listeners are tracked by identity, so the concrete type of a Listener must
// be comparable. Pointer types are the usual choice.
type Listener interface {
	HandleEvent(Event)
}

// ListenerFunc returns a new Listener that calls f for each event. Each call
// to ListenerFunc returns a distinct listener.
func ListenerFunc(f func(Event)) Listener { return &funcListener{f: f} }

type funcListener struct{ f func(Event) }

func (l *funcListener) HandleEvent(e Event) { l.f(e) }

// A Bus delivers events to an ordered set of listeners. A listener may be
// subscribed at most once. The methods of a Bus are safe for concurrent use.
type Bus struct {
	μ     sync.Mutex
	log   pslog.Logger
	set   mapset.Set[Listener]
	order []Listener
}

// NewBus constructs a new empty bus that logs listener failures to log. If
// log == nil, the bus uses the default logger.
func NewBus(log pslog.Logger) *Bus {
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	return &Bus{log: log, set: mapset.New[Listener]()}
}

// Subscribe adds l to the bus. It reports ErrDuplicateListener if l is
// already subscribed.
func (b *Bus) Subscribe(l Listener) error {
	b.μ.Lock()
	defer b.μ.Unlock()
	if b.set.Has(l) {
		return ErrDuplicateListener
	} else if b.set == nil {
		b.set = mapset.New[Listener]()
	}
	b.set.Add(l)
	b.order = append(b.order, l)
	return nil
}

// Unsubscribe removes l from the bus. It reports ErrUnknownListener if l is
// not subscribed.
func (b *Bus) Unsubscribe(l Listener) error {
	b.μ.Lock()
	defer b.μ.Unlock()
	if !b.set.Has(l) {
		return ErrUnknownListener
	}
	b.set.Remove(l)
	b.order = slices.DeleteFunc(b.order, func(v Listener) bool { return v == l })
	return nil
}

// Clear removes all listeners from the bus.
func (b *Bus) Clear() {
	b.μ.Lock()
	defer b.μ.Unlock()
	b.set = mapset.New[Listener]()
	b.order = nil
}

// setLogger makes the bus log listener failures to log.
func (b *Bus) setLogger(log pslog.Logger) {
	b.μ.Lock()
	defer b.μ.Unlock()
	b.log = log
}

// Len reports the number of subscribed listeners.
func (b *Bus) Len() int {
	b.μ.Lock()
	defer b.μ.Unlock()
	return len(b.order)
}

// Publish delivers e to each listener subscribed at the time of the call, in
// subscription order, on the caller's goroutine. A listener that panics is
// logged and does not prevent delivery to the rest.
func (b *Bus) Publish(e Event) {
	b.μ.Lock()
	snap, log := slices.Clone(b.order), b.log
	b.μ.Unlock()

	for _, l := range snap {
		deliver(log, l, e)
	}
}

func deliver(log pslog.Logger, l Listener, e Event) {
	defer func() {
		if x := recover(); x != nil {
			log.Error("listener panicked (recovered)", "event", e.Type.String(), "panic", fmt.Sprint(x))
		}
	}()
	l.HandleEvent(e)
}
