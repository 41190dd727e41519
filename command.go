// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package nuclearbot

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// CommandPrefix is the prefix that marks a chat message as a command.
const CommandPrefix = "!"

// An Executor carries out a command issued by a chat user. An executor can
// obtain the client from its context argument using the ContextClient helper,
// or from the Client field of the call.
//
// An executor reports false if the call was malformed, in which case the
// client replies with the usage string of the command. An error (or a panic)
// is logged and no reply is sent.
type Executor func(ctx context.Context, call *Call) (bool, error)

// A Call describes a single invocation of a command.
type Call struct {
	Client  *Client  // the client that received the command
	User    string   // the lower-case name of the user who issued it
	Command *Command // the command being executed
	Label   string   // the lower-case label of the command, without prefix
	Args    []string // all tokens of the message, including "!label"
}

// Arg returns the i-th argument of the call, or "" if there are not that
// many. Arg(0) is the command token itself.
func (c *Call) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Reply sends text to the channel of the client that received the call.
func (c *Call) Reply(text string) error { return c.Client.SendMessage(text) }

// A Command is a registered chat command. The label and usage of a command
// are fixed at registration; the description may be updated at any time.
type Command struct {
	label string
	usage string
	exec  Executor

	μ    sync.Mutex
	desc string
}

// Label reports the lower-case label of c.
func (c *Command) Label() string { return c.label }

// Usage reports the usage string of c, for example "!req <url>".
func (c *Command) Usage() string { return c.usage }

// Description reports the current description of c.
func (c *Command) Description() string {
	c.μ.Lock()
	defer c.μ.Unlock()
	return c.desc
}

// Describe sets the description of c and returns c to permit chaining.
func (c *Command) Describe(text string) *Command {
	c.μ.Lock()
	defer c.μ.Unlock()
	c.desc = text
	return c
}

func (c *Command) String() string { return CommandPrefix + c.label }

// invoke calls the executor of c, turning a panic into an error.
func (c *Command) invoke(ctx context.Context, call *Call) (ok bool, err error) {
	defer func() {
		if x := recover(); x != nil && err == nil {
			ok, err = false, fmt.Errorf("command %q panicked (recovered): %v", c.label, x)
		}
	}()
	return c.exec(ctx, call)
}

// parseCommand splits a command message into its lower-case label and its
// argument tokens. It reports "" if text has no label.
func parseCommand(text string) (label string, args []string) {
	args = strings.Fields(text)
	if len(args) == 0 {
		return "", nil
	}
	label = strings.ToLower(strings.TrimPrefix(args[0], CommandPrefix))
	return label, args
}

type clientContextKey struct{}

// ContextClient returns the Client associated with the given context, or nil
// if none is defined. The context passed to an Executor has this value.
func ContextClient(ctx context.Context) *Client {
	if v := ctx.Value(clientContextKey{}); v != nil {
		return v.(*Client)
	}
	return nil
}
