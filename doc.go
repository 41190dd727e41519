// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package nuclearbot implements a chat bot client for Twitch chat.
//
// A bot holds a single authenticated session with the chat server, joins the
// channel named after its own user, and runs commands issued by chat users as
// messages starting with "!". Messages that are not commands are passed to the
// application layer, a [Plugin].
//
// # Clients
//
// The core type defined by this package is the [Client]. To create a client:
//
//	c := nuclearbot.New(nuclearbot.Options{
//	   Username:   "mybot",
//	   Token:      "oauth:0123456789abcdef",
//	   Moderators: nuclearbot.NewModerators("mybot", "alice"),
//	   Plugin:     myPlugin,
//	})
//
// To run the client, call [Client.Connect]. Connect blocks until the bot is
// stopped, the connection fails, or its context ends:
//
//	if err := c.Connect(ctx); err != nil {
//	   log.Fatalf("Bot failed: %v", err)
//	}
//
// Each session proceeds through the states connecting, authenticating,
// joining, running, and closing. When a session closes because a moderator
// issued "!restart" or the server asked the client to reconnect, the client
// opens a new session. Otherwise the client terminates. A connection error is
// reported to the caller and not retried.
//
// # Commands
//
// Commands are registered on the client's [Registry] under a label, which is
// compared without regard to case. The [Executor] for a command receives the
// tokens of the message. If it reports false, the client replies with the
// usage string of the command:
//
//	func roll(ctx context.Context, call *nuclearbot.Call) (bool, error) {
//	   n, err := strconv.Atoi(call.Arg(1))
//	   if err != nil || n < 1 {
//	      return false, nil // reply with usage
//	   }
//	   return true, call.Reply(fmt.Sprint(1 + rand.IntN(n)))
//	}
//
//	c.Commands().Register("roll", "!roll <sides>", roll)
//
// Every client provides the commands "help", and the moderator-only commands
// "restart" and "stop". The registry is reset when Connect begins, so
// plugins register their commands from [Plugin.OnLoad].
//
// An executor that reports an error or panics is logged, and the session
// continues. Commands with no registered label are ignored.
//
// # Events
//
// The client publishes an [Event] on its [Bus] when it joins its channel,
// when a session ends, when a chat message is received or sent, and when the
// set of commands changes. Use [Client.Listeners] to subscribe.
//
// # Metrics
//
// Clients maintain a collection of metrics while running. Use the
// [Client.Metrics] method to obtain an [expvar.Map] containing the metrics.
// Metrics are shared globally among all clients.
//
// The metrics currently exported by clients include:
//
//   - lines_received: counter of protocol lines received
//   - lines_sent: counter of protocol lines written
//   - lines_unknown: counter of lines received with no recognized shape
//   - write_errors: counter of lines that could not be written
//   - commands_dispatched: counter of commands passed to an executor
//   - commands_failed: counter of executors reporting an error
//   - commands_unknown: counter of commands with no registered label
//   - hooks_failed: counter of plugin hooks reporting an error
//   - sessions: counter of connections opened
//   - reconnects: counter of sessions restarted
package nuclearbot
