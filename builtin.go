// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package nuclearbot

import (
	"context"
	"strings"
)

// registerBuiltins registers the commands every client provides.
func (c *Client) registerBuiltins() error {
	for _, b := range []struct {
		label, usage, desc string
		exec               Executor
	}{
		{"restart", "!restart", "Soft-restarts the bot.", c.systemCall},
		{"stop", "!stop", "Stops the bot.", c.systemCall},
		{"help", "!help [command]", "Shows help, list of commands or detailed information.", c.help},
	} {
		cmd, err := c.commands.Register(b.label, b.usage, b.exec)
		if err != nil {
			return err
		}
		cmd.Describe(b.desc)
	}
	return nil
}

// systemCall implements the privileged restart and stop commands.
func (c *Client) systemCall(_ context.Context, call *Call) (bool, error) {
	if !c.auth.IsModerator(call.User) {
		c.log.Warn("unauthorized command", "user", call.User, "label", call.Label)
		return true, nil
	}
	switch call.Label {
	case "restart":
		c.log.Info("restart requested", "user", call.User)
		c.Restart()
	case "stop":
		c.log.Info("stop requested", "user", call.User)
		c.Stop()
	}
	return true, nil
}

// help replies with the list of commands, or with the usage and description
// of the command named by its argument.
func (c *Client) help(_ context.Context, call *Call) (bool, error) {
	var reply string
	if arg := call.Arg(1); arg == "" {
		labels := c.commands.Labels()
		if len(labels) == 0 {
			reply = "Commands: (empty)"
		} else {
			reply = "Commands: " + strings.Join(labels, ", ")
		}
	} else if cmd, ok := c.commands.Lookup(arg); ok {
		reply = "Usage: " + cmd.Usage() + " - " + cmd.Description()
	} else {
		reply = "Command does not exist."
	}
	return true, call.Reply(reply)
}
