// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package osu

import (
	"context"
	"errors"

	"github.com/creachadair/nuclearbot/channel"
	"github.com/creachadair/nuclearbot/message"
	"pkt.systems/pslog"
)

// A Notifier forwards beatmap requests to the player.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// LogNotifier is a Notifier that writes requests to the log of its context.
type LogNotifier struct{}

// Notify implements a method of the [Notifier] interface.
func (LogNotifier) Notify(ctx context.Context, text string) error {
	pslog.Ctx(ctx).Info("beatmap request", "text", text)
	return nil
}

// IRCNotifier is a Notifier that delivers requests as private messages over
// the in-game chat server. It opens a connection for each batch of messages.
type IRCNotifier struct {
	Dial     func(context.Context) (channel.Channel, error)
	User     string // login name of the sender
	Password string // server password of the sender
	Target   string // who receives the messages
}

// BanchoAddr is the address of the in-game chat server.
const BanchoAddr = "irc.ppy.sh:6667"

// Notify implements a method of the [Notifier] interface.
func (n IRCNotifier) Notify(ctx context.Context, text string) error {
	if n.Dial == nil {
		return errors.New("no dialer")
	}
	ch, err := n.Dial(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()
	for _, line := range []string{
		message.Pass(n.Password),
		message.Nick(n.User),
		message.Privmsg(n.Target, text),
		"QUIT",
	} {
		if err := ch.Send(line); err != nil {
			return err
		}
	}
	return nil
}
