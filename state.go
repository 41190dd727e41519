// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package nuclearbot

import "fmt"

// A State is a step of the client's connection state machine.
//
//	Idle → Connecting → Authenticating → Joining → Running → Closing
//	Closing → Connecting   (a reconnect was requested)
//	Closing → Terminated
//
// A session whose credentials are rejected moves from Authenticating straight
// to Closing. Terminated is the only terminal state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateAuthenticating
	StateJoining
	StateRunning
	StateClosing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateJoining:
		return "joining"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state:%d", int32(s))
	}
}
