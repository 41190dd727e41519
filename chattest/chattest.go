// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package chattest provides an in-memory chat server for testing clients.
//
// A Server hands out connections through its Dial method, which has the
// signature expected by the Dial field of the client options. The test
// obtains the server side of each connection with Accept, and then plays
// the server's part of the conversation:
//
//	srv := chattest.NewServer("")
//	c := nuclearbot.New(nuclearbot.Options{Username: "bob", Dial: srv.Dial})
//	go c.Connect(ctx)
//
//	conn := srv.Accept(t)
//	conn.Login(t)
//	conn.Chat(t, "alice", "!help")
//	conn.Expect(t, "PRIVMSG #bob :Commands: restart, stop, help")
package chattest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creachadair/nuclearbot/channel"
	"github.com/creachadair/nuclearbot/message"
	"github.com/creachadair/taskgroup"
	"github.com/google/go-cmp/cmp"
)

// Timeout bounds how long the helpers wait for the client.
var Timeout = 5 * time.Second

// A Server is a fake chat server. Its methods are safe for concurrent use.
type Server struct {
	host  string
	conns chan *Conn
	dials atomic.Int64

	μ       sync.Mutex
	dialErr error
}

// NewServer constructs a server whose chat users belong to host. If host ==
// "", message.DefaultHost is used.
func NewServer(host string) *Server {
	if host == "" {
		host = message.DefaultHost
	}
	return &Server{host: host, conns: make(chan *Conn, 16)}
}

// Host reports the host domain of the server.
func (s *Server) Host() string { return s.host }

// Dials reports the number of times Dial has been called.
func (s *Server) Dials() int { return int(s.dials.Load()) }

// FailDial causes the next call to Dial to report err.
func (s *Server) FailDial(err error) {
	s.μ.Lock()
	defer s.μ.Unlock()
	s.dialErr = err
}

// Dial opens a new in-memory connection to the server. The server side of
// the connection is delivered by Accept.
func (s *Server) Dial(ctx context.Context) (channel.Channel, error) {
	s.dials.Add(1)
	s.μ.Lock()
	err := s.dialErr
	s.dialErr = nil
	s.μ.Unlock()
	if err != nil {
		return nil, err
	}

	cli, srv := channel.Direct()
	conn := newConn(s, srv)
	select {
	case s.conns <- conn:
		return cli, nil
	case <-ctx.Done():
		conn.Close()
		cli.Close()
		return nil, ctx.Err()
	}
}

// Serve accepts network connections from lst and delivers them through
// Accept, until ctx ends or lst is closed.
func (s *Server) Serve(ctx context.Context, lst net.Listener) error {
	ok := make(chan struct{})
	defer close(ok)
	taskgroup.Go(func() error {
		select {
		case <-ctx.Done():
			lst.Close()
		case <-ok:
		}
		return nil
	})
	for {
		nc, err := lst.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				err = nil
			}
			return err
		}
		s.dials.Add(1)
		conn := newConn(s, channel.IO(nc, nc))
		select {
		case s.conns <- conn:
		case <-ctx.Done():
			conn.Close()
			return nil
		}
	}
}

// Accept returns the server side of the next connection opened by the
// client, failing tb if none arrives in time.
func (s *Server) Accept(tb testing.TB) *Conn {
	tb.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(Timeout):
		tb.Fatalf("Accept: no connection after %v", Timeout)
		return nil
	}
}

// A Conn is the server side of a single client connection. The lines sent
// by the client are buffered, so the client never blocks on the server.
type Conn struct {
	srv   *Server
	ch    channel.Channel
	inbox chan string
	done  *taskgroup.Group
	sync  atomic.Int64

	μ    sync.Mutex
	user string // set by Login
}

func newConn(s *Server, ch channel.Channel) *Conn {
	c := &Conn{srv: s, ch: ch, inbox: make(chan string, 1024)}
	c.done = taskgroup.New(nil)
	c.done.Go(func() error {
		defer close(c.inbox)
		for {
			line, err := ch.Recv()
			if err != nil {
				return nil
			}
			c.inbox <- line
		}
	})
	return c
}

// Close closes the server side of the connection, as if the server hung up.
func (c *Conn) Close() error {
	err := c.ch.Close()
	c.done.Wait()
	return err
}

// Channel reports the name of the channel joined at Login, or "".
func (c *Conn) Channel() string {
	c.μ.Lock()
	defer c.μ.Unlock()
	if c.user == "" {
		return ""
	}
	return "#" + c.user
}

// Send sends lines to the client, failing tb if the connection is closed.
func (c *Conn) Send(tb testing.TB, lines ...string) {
	tb.Helper()
	for _, line := range lines {
		if err := c.ch.Send(line); err != nil {
			tb.Fatalf("Send %q: %v", line, err)
		}
	}
}

// Chat sends a chat message from user to the channel joined at Login.
func (c *Conn) Chat(tb testing.TB, user, text string) {
	tb.Helper()
	c.Send(tb, fmt.Sprintf(":%[1]s!%[1]s@%[1]s.%[2]s PRIVMSG %[3]s :%[4]s", user, c.srv.host, c.Channel(), text))
}

// Line returns the next line sent by the client, failing tb if the client
// closes the connection or sends nothing in time.
func (c *Conn) Line(tb testing.TB) string {
	tb.Helper()
	select {
	case line, ok := <-c.inbox:
		if !ok {
			tb.Fatal("Line: connection closed by client")
		}
		return line
	case <-time.After(Timeout):
		tb.Fatalf("Line: nothing received after %v", Timeout)
	}
	return ""
}

// Expect reads len(want) lines from the client and fails tb if they differ
// from want.
func (c *Conn) Expect(tb testing.TB, want ...string) {
	tb.Helper()
	got := make([]string, len(want))
	for i := range want {
		got[i] = c.Line(tb)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		tb.Errorf("Received lines (-want, +got):\n%s", diff)
	}
}

// Login plays the server's part of a successful login. It checks the
// credentials sent by the client, accepts them, and consumes the lines the
// client sends while joining its channel.
func (c *Conn) Login(tb testing.TB) {
	tb.Helper()
	user := c.credentials(tb)
	c.Send(tb,
		fmt.Sprintf(":%s 001 %s :Welcome, GLHF!", c.srv.host, user),
		fmt.Sprintf(":%s 372 %s :You are in a maze of twisty passages.", c.srv.host, user),
		fmt.Sprintf(":%s 376 %s :>", c.srv.host, user),
	)
	c.Expect(tb,
		message.CapReq(message.Capability),
		message.Join("#"+user),
		message.Privmsg("#"+user, "Bot running..."),
	)
}

// Reject plays the server's part of a failed login, giving reason.
func (c *Conn) Reject(tb testing.TB, reason string) {
	tb.Helper()
	c.credentials(tb)
	c.Send(tb, fmt.Sprintf(":%s NOTICE * :%s", c.srv.host, reason))
}

func (c *Conn) credentials(tb testing.TB) string {
	tb.Helper()
	if pass := c.Line(tb); !strings.HasPrefix(pass, "PASS ") {
		tb.Fatalf("Login: got %q, want PASS", pass)
	}
	nick := c.Line(tb)
	user, ok := strings.CutPrefix(nick, "NICK ")
	if !ok {
		tb.Fatalf("Login: got %q, want NICK", nick)
	}
	c.μ.Lock()
	c.user = user
	c.μ.Unlock()
	return user
}

// Sync sends a PING to the client and waits for the matching PONG. It
// returns the lines the client sent before the PONG. Since the client
// handles lines in order, these include every reply to lines sent before
// the call.
func (c *Conn) Sync(tb testing.TB) []string {
	tb.Helper()
	token := fmt.Sprintf(":sync-%d", c.sync.Add(1))
	c.Send(tb, "PING "+token)
	var out []string
	for {
		line := c.Line(tb)
		if line == "PONG "+token {
			return out
		}
		out = append(out, line)
	}
}

// Closed waits for the client to close the connection, and returns the lines
// it sent before doing so.
func (c *Conn) Closed(tb testing.TB) []string {
	tb.Helper()
	var out []string
	timeout := time.After(Timeout)
	for {
		select {
		case line, ok := <-c.inbox:
			if !ok {
				return out
			}
			out = append(out, line)
		case <-timeout:
			tb.Fatalf("Closed: connection still open after %v", Timeout)
		}
	}
}
