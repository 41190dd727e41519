// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package nuclearbot

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateCommand is reported when registering a label that is
	// already registered.
	ErrDuplicateCommand = errors.New("command already registered")

	// ErrUnknownCommand is reported when unregistering a label that is not
	// registered.
	ErrUnknownCommand = errors.New("command not registered")

	// ErrDuplicateListener is reported when subscribing a listener twice.
	ErrDuplicateListener = errors.New("listener already subscribed")

	// ErrUnknownListener is reported when unsubscribing a listener that is
	// not subscribed.
	ErrUnknownListener = errors.New("listener not subscribed")

	// ErrAuthRejected is reported by Connect when the server rejects the
	// credentials. A rejected session is never reconnected.
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrNotConnected is reported when sending outside of a session.
	ErrNotConnected = errors.New("client is not connected")

	// ErrAlreadyRunning is reported by Connect if the client is already
	// running.
	ErrAlreadyRunning = errors.New("client is already running")
)

// ConnectionError is the concrete type of errors reported by Connect when
// the connection to the server cannot be opened or fails while in use.
// Connection errors are not retried by the client.
type ConnectionError struct {
	Op   string // "dial" or "read"
	Addr string // server address
	Err  error  // underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

// Unwrap reports the underlying error of e.
func (e *ConnectionError) Unwrap() error { return e.Err }
