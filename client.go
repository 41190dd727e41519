// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package nuclearbot

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/creachadair/mds/value"
	"github.com/creachadair/nuclearbot/channel"
	"github.com/creachadair/nuclearbot/message"
	"github.com/creachadair/nuclearbot/output"
	"github.com/creachadair/taskgroup"
	"pkt.systems/pslog"
)

// DefaultAddr is the address of the Twitch chat server.
const DefaultAddr = "irc.chat.twitch.tv:6667"

// Default timing parameters for a Client.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultGraceDelay   = 800 * time.Millisecond
	DefaultFlushTimeout = 5 * time.Second
)

// Announcements sent to the channel as the bot starts and stops.
const (
	announceStart   = "Bot running..."
	announceRestart = "Restarting bot..."
	announceStop    = "Stopping bot..."
)

// Options are the settings for a Client.
type Options struct {
	// Username is the login name of the bot. It is lower-cased, and the bot
	// joins the channel of the same name.
	Username string

	// Token is the OAuth token sent as the connection password, for example
	// "oauth:abcdef".
	Token string

	// Addr is the address of the chat server. If empty, DefaultAddr is used.
	Addr string

	// Host is the host domain of chat users, used to recognize chat
	// messages. If empty, message.DefaultHost is used.
	Host string

	// Dial, if set, is called to open a connection for each session.
	// If nil, the client dials Addr over TCP.
	Dial func(context.Context) (channel.Channel, error)

	// Plugin is the application layer driven by the client. If nil, a
	// NopPlugin is used.
	Plugin Plugin

	// Moderators decides who may use the restart and stop commands. If nil,
	// no user may use them.
	Moderators Authorizer

	// Logger receives the client's log. If nil, the logger attached to the
	// context passed to Connect is used.
	Logger pslog.Logger

	// LogLines, if set, is called for each protocol line sent or received.
	LogLines LineLogger

	// PollInterval is how often the client checks for a stop request when
	// no input is available. If zero, DefaultPollInterval is used.
	PollInterval time.Duration

	// GraceDelay is how long the client pauses after its closing
	// announcement so it can reach the server. If zero, DefaultGraceDelay is
	// used; if negative, there is no pause.
	GraceDelay time.Duration

	// FlushTimeout bounds how long teardown waits for queued lines to be
	// written. If zero, DefaultFlushTimeout is used.
	FlushTimeout time.Duration

	// ReconnectDelay is how long the client waits before reconnecting.
	ReconnectDelay time.Duration

	// QueueSize is the capacity of the outbound line queue. If zero,
	// output.DefaultQueueSize is used.
	QueueSize int
}

// A LineLogger logs a protocol line exchanged with the server.
type LineLogger func(LineInfo)

// A LineInfo combines a protocol line and a flag indicating whether it was
// sent or received.
type LineInfo struct {
	Line string // the line, without its terminator
	Sent bool   // whether the line was sent (true) or received (false)
}

func (l LineInfo) dir() string {
	if l.Sent {
		return "send"
	}
	return "recv"
}

func (l LineInfo) String() string {
	line := l.Line
	if l.Sent && strings.HasPrefix(line, "PASS ") {
		line = "PASS ********"
	}
	return fmt.Sprintf("%v %v", l.dir(), line)
}

// A Client is a chat bot bound to one identity and one channel.
//
// Call Connect to run the client. Connect opens a session with the server,
// authenticates, joins the channel, and dispatches chat commands until the
// session is stopped, then reconnects if a restart was requested. Commands
// are registered on the Commands registry, typically from Plugin.OnLoad.
type Client struct {
	opts    Options
	user    string // lower-case
	channel string // "#" + user
	parser  *message.Parser
	auth    Authorizer
	plugin  Plugin

	commands  *Registry
	listeners *Bus
	metrics   *clientMetrics

	log    pslog.Logger
	state  atomic.Int32
	active atomic.Bool
	cur    atomic.Pointer[session]
}

// session is the state of one connection attempt.
type session struct {
	ch  channel.Channel
	out *output.Writer

	stop      atomic.Bool
	reconnect atomic.Bool

	running bool  // the session reached StateRunning
	readErr error // set by the line reader before it closes its channel
}

// New constructs a new idle client with the given options.
func New(opts Options) *Client {
	user := strings.ToLower(strings.TrimSpace(opts.Username))
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Host == "" {
		opts.Host = message.DefaultHost
	}
	if opts.Dial == nil {
		opts.Dial = channel.Dialer(opts.Addr)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.GraceDelay == 0 {
		opts.GraceDelay = DefaultGraceDelay
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = DefaultFlushTimeout
	}
	c := &Client{
		opts:    opts,
		user:    user,
		channel: "#" + user,
		parser:  message.NewParser(opts.Host),
		auth:    opts.Moderators,
		plugin:  opts.Plugin,
		metrics: rootMetrics,
		log:     value.Cond(opts.Logger != nil, opts.Logger, pslog.Ctx(context.Background())),
	}
	if c.auth == nil {
		c.auth = Moderators(nil)
	}
	if c.plugin == nil {
		c.plugin = NopPlugin{}
	}
	c.listeners = NewBus(opts.Logger)
	c.commands = &Registry{notify: func(e Event) {
		e.Client = c
		c.listeners.Publish(e)
	}}
	return c
}

// Username reports the lower-case login name of the bot.
func (c *Client) Username() string { return c.user }

// Channel reports the name of the channel the bot joins, including "#".
func (c *Client) Channel() string { return c.channel }

// Commands returns the command registry of c.
func (c *Client) Commands() *Registry { return c.commands }

// Listeners returns the event bus of c.
func (c *Client) Listeners() *Bus { return c.listeners }

// State reports the current state of c.
func (c *Client) State() State { return State(c.state.Load()) }

// Metrics returns a metrics map for the client. It is safe for the caller to
// add, modify, and remove metrics in the map. Metrics are shared globally
// among all clients.
func (c *Client) Metrics() *expvar.Map { return c.metrics.emap }

// SendMessage sends text as a chat message to the channel of c, and delivers
// a message event carrying the bot's own username. It reports
// ErrNotConnected if there is no active session.
func (c *Client) SendMessage(text string) error {
	if err := c.Send(message.Privmsg(c.channel, text)); err != nil {
		return err
	}
	c.listeners.Publish(Event{Type: EventMessage, Client: c, User: c.user, Text: text})
	return nil
}

// Send queues a raw protocol line to the server. It reports ErrNotConnected
// if there is no active session, or output.ErrClosed if the session is
// shutting down.
func (c *Client) Send(line string) error {
	s := c.cur.Load()
	if s == nil {
		return ErrNotConnected
	}
	return s.out.Send(line)
}

// Stop requests that the active session end without reconnecting. It is
// safe to call from any goroutine, and has no effect if there is no active
// session.
func (c *Client) Stop() {
	if s := c.cur.Load(); s != nil {
		s.reconnect.Store(false)
		s.stop.Store(true)
	}
}

// Restart requests that the active session end and a new one be opened. It
// is safe to call from any goroutine, and has no effect if there is no active
// session.
func (c *Client) Restart() {
	if s := c.cur.Load(); s != nil {
		s.reconnect.Store(true)
		s.stop.Store(true)
	}
}

// Connect runs the client until it terminates. It resets the command
// registry, registers the built-in commands, calls the plugin's OnLoad hook,
// and then runs sessions until one ends without a restart request.
//
// Connect reports nil when the bot was stopped or its credentials were
// rejected, a *ConnectionError if the connection could not be opened or was
// lost, or the error of ctx if ctx ended first.
func (c *Client) Connect(ctx context.Context) error {
	if !c.active.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.active.Store(false)
	if c.opts.Logger == nil {
		c.log = pslog.Ctx(ctx)
		c.listeners.setLogger(c.log)
	}
	c.setState(StateIdle)

	c.commands.reset()
	if err := c.registerBuiltins(); err != nil {
		return err
	}
	c.runHook("load", func() error { return c.plugin.OnLoad(ctx, c) })

	for {
		reconnect, err := c.runSession(ctx)
		if err != nil {
			c.setState(StateTerminated)
			return err
		} else if !reconnect || ctx.Err() != nil {
			break
		}
		c.metrics.reconnects.Add(1)
		c.log.Info("reconnecting")
		if !sleepCtx(ctx, c.opts.ReconnectDelay) {
			break
		}
	}
	c.setState(StateTerminated)
	if err := ctx.Err(); err != nil {
		return err
	}
	c.log.Info("client exited")
	return nil
}

// runSession runs a single session from dialing to teardown. It reports
// whether a reconnect was requested.
func (c *Client) runSession(ctx context.Context) (bool, error) {
	c.setState(StateConnecting)
	c.log.Info("connecting", "addr", c.opts.Addr)
	ch, err := c.opts.Dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, &ConnectionError{Op: "dial", Addr: c.opts.Addr, Err: err}
	}
	c.metrics.sessions.Add(1)

	s := &session{ch: ch}
	s.out = output.New(ch, &output.Options{
		QueueSize: c.opts.QueueSize,
		Logger:    c.log,
		OnSent: func(line string) {
			c.metrics.lineSent.Add(1)
			c.logLine(line, true)
		},
		OnError: func(string, error) { c.metrics.writeErr.Add(1) },
	})
	c.cur.Store(s)

	lines := make(chan string)
	done := make(chan struct{})
	g := taskgroup.New(nil)

	// Release the output and the connection as soon as ctx ends, without
	// waiting for the session loop.
	g.Go(func() error {
		select {
		case <-ctx.Done():
			c.log.Info("context ended, closing connection", "err", ctx.Err())
			s.out.Close(c.opts.FlushTimeout)
			s.ch.Close()
		case <-done:
		}
		return nil
	})

	// Forward lines from the connection to the session loop.
	g.Go(func() error {
		defer close(lines)
		for {
			line, err := s.ch.Recv()
			if err != nil {
				s.readErr = err
				return nil
			}
			select {
			case lines <- line:
			case <-done:
				return nil
			}
		}
	})

	err = c.session(ctx, s, lines)
	c.teardown(ctx, s)
	close(done)
	g.Wait()
	s.out.Wait()

	c.cur.CompareAndSwap(s, nil)
	c.listeners.Publish(Event{Type: EventDisconnected, Client: c})
	if err != nil || ctx.Err() != nil {
		return false, err
	}
	return s.reconnect.Load(), nil
}

// session runs the authenticate, join, and run steps of s.
func (c *Client) session(ctx context.Context, s *session, lines <-chan string) error {
	c.setState(StateAuthenticating)
	s.send(c, message.Pass(c.opts.Token))
	s.send(c, message.Nick(c.user))
	ok, err := c.authenticate(ctx, s, lines)
	if err != nil || !ok {
		return err
	}

	c.setState(StateJoining)
	s.send(c, message.CapReq(message.Capability))
	s.send(c, message.Join(c.channel))
	if err := c.SendMessage(announceStart); err != nil {
		c.log.Warn("announcement failed", "err", err)
	}
	s.running = true
	c.runHook("start", func() error { return c.plugin.OnStart(ctx, c) })
	c.listeners.Publish(Event{Type: EventConnected, Client: c})

	c.setState(StateRunning)
	c.log.Info("running", "channel", c.channel)
	return c.run(ctx, s, lines)
}

// authenticate reads lines until the server accepts or rejects the
// credentials. It reports false without error if the credentials were
// rejected or the session was stopped.
func (c *Client) authenticate(ctx context.Context, s *session, lines <-chan string) (bool, error) {
	tick := time.NewTicker(c.opts.PollInterval)
	defer tick.Stop()
	for !s.stop.Load() {
		select {
		case <-ctx.Done():
			return false, nil
		case <-tick.C:
		case line, ok := <-lines:
			if !ok {
				return false, c.readError(ctx, s)
			}
			c.received(line)
			switch m := c.parser.Classify(line); m.Kind {
			case message.KindEndOfMOTD:
				c.log.Info("authenticated", "user", c.user)
				return true, nil
			case message.KindAuthFailed:
				c.log.Error("authentication failed", "reason", m.Text, "err", ErrAuthRejected)
				return false, nil
			case message.KindPing:
				s.send(c, message.Pong(m.Token))
			default:
				c.log.Debug("auth line", "line", line)
			}
		}
	}
	return false, nil
}

// run is the main loop of a session. It handles lines until the session is
// stopped, ctx ends, or the connection fails.
func (c *Client) run(ctx context.Context, s *session, lines <-chan string) error {
	tick := time.NewTicker(c.opts.PollInterval)
	defer tick.Stop()
	for !s.stop.Load() {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		case line, ok := <-lines:
			if !ok {
				if s.stop.Load() {
					return nil
				}
				return c.readError(ctx, s)
			}
			c.received(line)
			c.handleLine(ctx, s, line)
		}
	}
	return nil
}

func (c *Client) handleLine(ctx context.Context, s *session, line string) {
	m := c.parser.Classify(line)
	switch m.Kind {
	case message.KindPing:
		s.send(c, message.Pong(m.Token))

	case message.KindReconnect:
		c.log.Info("server requested reconnect")
		s.reconnect.Store(true)
		s.stop.Store(true)

	case message.KindCapAck:
		c.log.Info("capability acknowledged", "line", line)

	case message.KindChat:
		if m.IsCommand() {
			c.dispatch(ctx, m.User, m.Text)
			return
		}
		c.log.Debug("chat message", "user", m.User, "text", m.Text)
		c.runHook("message", func() error { return c.plugin.OnMessage(ctx, c, m.User, m.Text) })
		c.listeners.Publish(Event{Type: EventMessage, Client: c, User: m.User, Text: m.Text})

	case message.KindIgnore:
		// membership and room state

	default:
		c.metrics.lineUnknown.Add(1)
		c.log.Debug("unknown line", "line", line)
	}
}

// teardown ends the session s: it calls the stop hook, announces the
// shutdown, and releases the output and the connection.
func (c *Client) teardown(ctx context.Context, s *session) {
	c.setState(StateClosing)
	if s.running {
		c.runHook("stop", func() error { return c.plugin.OnStop(ctx, c) })
		msg := value.Cond(s.reconnect.Load(), announceRestart, announceStop)
		if err := c.SendMessage(msg); err != nil {
			c.log.Debug("announcement not sent", "err", err)
		} else {
			sleepCtx(ctx, c.opts.GraceDelay)
		}
	}
	c.log.Info("closing connection")
	if err := s.out.Close(c.opts.FlushTimeout); err != nil && !errors.Is(err, output.ErrClosed) {
		c.log.Warn("output did not flush cleanly", "err", err)
	}
	if err := s.ch.Close(); err != nil {
		c.log.Debug("close connection", "err", err)
	}
}

// readError reports the connection error for a session whose line reader
// has stopped, or nil if the session was ended deliberately.
func (c *Client) readError(ctx context.Context, s *session) error {
	if ctx.Err() != nil {
		return nil
	}
	err := s.readErr
	if err == nil {
		err = io.EOF
	}
	c.log.Error("connection lost", "err", err)
	return &ConnectionError{Op: "read", Addr: c.opts.Addr, Err: err}
}

func (c *Client) received(line string) {
	c.metrics.lineRecv.Add(1)
	c.logLine(line, false)
}

func (c *Client) logLine(line string, sent bool) {
	if c.opts.LogLines != nil {
		c.opts.LogLines(LineInfo{Line: line, Sent: sent})
	}
}

func (c *Client) setState(st State) {
	if old := State(c.state.Swap(int32(st))); old != st {
		c.log.Trace("state changed", "from", old.String(), "to", st.String())
	}
}

// send queues line on the output of s, logging a failure.
func (s *session) send(c *Client, line string) {
	if err := s.out.Send(line); err != nil {
		c.log.Debug("send failed", "err", err)
	}
}

// sleepCtx waits for d or until ctx ends, and reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
