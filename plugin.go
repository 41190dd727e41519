// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package nuclearbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/creachadair/mds/mapset"
)

// A Plugin is the application layer driven by a Client. Each hook is
// isolated: an error or panic is logged and does not disturb the session.
type Plugin interface {
	// OnLoad is called once per call to Connect, after the built-in
	// commands are registered and before the first session is opened.
	// Plugins register their commands here.
	OnLoad(ctx context.Context, c *Client) error

	// OnStart is called each time the client has joined its channel.
	OnStart(ctx context.Context, c *Client) error

	// OnMessage is called for each chat message that is not a command.
	OnMessage(ctx context.Context, c *Client, user, text string) error

	// OnStop is called when a session that reached the running state ends.
	OnStop(ctx context.Context, c *Client) error
}

// NopPlugin implements Plugin with hooks that do nothing. It can be embedded
// to implement only the hooks of interest.
type NopPlugin struct{}

func (NopPlugin) OnLoad(context.Context, *Client) error                    { return nil }
func (NopPlugin) OnStart(context.Context, *Client) error                   { return nil }
func (NopPlugin) OnMessage(context.Context, *Client, string, string) error { return nil }
func (NopPlugin) OnStop(context.Context, *Client) error                    { return nil }

// runHook calls f, logging and counting an error or panic.
func (c *Client) runHook(name string, f func() error) {
	err := func() (err error) {
		defer func() {
			if x := recover(); x != nil && err == nil {
				err = fmt.Errorf("hook panicked (recovered): %v", x)
			}
		}()
		return f()
	}()
	if err != nil {
		c.metrics.hookErr.Add(1)
		c.log.Error("plugin hook failed", "hook", name, "err", err)
	}
}

// An Authorizer decides which users may issue privileged commands.
type Authorizer interface {
	IsModerator(user string) bool
}

// Moderators is a set of user names that implements Authorizer. Names are
// compared without regard to case.
type Moderators mapset.Set[string]

// NewModerators returns a set containing the given names.
func NewModerators(names ...string) Moderators {
	m := mapset.New[string]()
	for _, name := range names {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			m.Add(name)
		}
	}
	return Moderators(m)
}

// ParseModerators parses a list of names separated by commas or spaces.
func ParseModerators(s string) Moderators {
	return NewModerators(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})...)
}

// IsModerator reports whether user is a member of m. It implements
// Authorizer.
func (m Moderators) IsModerator(user string) bool {
	return mapset.Set[string](m).Has(strings.ToLower(user))
}
