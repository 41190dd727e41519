// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package nuclearbot

import (
	"context"
	"strings"
)

// dispatch runs the command named by text on behalf of user. Unknown labels
// are logged and otherwise ignored. A failed executor is logged, and does
// not affect the session.
func (c *Client) dispatch(ctx context.Context, user, text string) {
	label, args := parseCommand(text)
	c.log.Info("command", "user", user, "args", strings.Join(args, " "))

	cmd, ok := c.commands.Lookup(label)
	if !ok {
		c.metrics.cmdUnknown.Add(1)
		c.log.Info("unknown command", "user", user, "label", label)
		return
	}
	c.metrics.cmdIn.Add(1)

	cctx := context.WithValue(ctx, clientContextKey{}, c)
	ok, err := cmd.invoke(cctx, &Call{
		Client:  c,
		User:    user,
		Command: cmd,
		Label:   label,
		Args:    args,
	})
	if err != nil {
		c.metrics.cmdErr.Add(1)
		c.log.Error("command failed", "user", user, "label", label, "err", err)
		return
	}
	if !ok {
		if err := c.SendMessage("Usage: " + cmd.Usage()); err != nil {
			c.log.Warn("usage reply failed", "label", label, "err", err)
		}
	}
}
