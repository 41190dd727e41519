// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package channel provides line-oriented transports for a chat session.
//
// A Channel carries protocol lines without their terminators. Implementations
// add the CRLF terminator on Send and strip it on Recv.
package channel

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"sync"
)

// A Channel is a reliable ordered stream of protocol lines shared by a client
// and a server.
//
// The methods of an implementation must be safe for concurrent use by one
// sender and one receiver. Close may be called concurrently with either.
type Channel interface {
	// Send the line to the receiver, followed by a line terminator.
	Send(line string) error

	// Receive the next available line from the channel, without its
	// terminator.
	Recv() (string, error)

	// Close the channel, causing any pending send or receive operations to
	// terminate and report an error. After a channel is closed, all further
	// operations on it must report an error.
	Close() error
}

// Direct constructs a connected pair of in-memory channels that pass lines
// directly without encoding. Lines sent to A are received by B and vice
// versa. Closing either end unblocks pending operations on both.
func Direct() (A, B Channel) {
	a2b := make(chan string)
	b2a := make(chan string)
	ea := &endpoint{closed: make(chan struct{})}
	eb := &endpoint{closed: make(chan struct{})}
	A = &direct{out: a2b, in: b2a, self: ea, peer: eb}
	B = &direct{out: b2a, in: a2b, self: eb, peer: ea}
	return
}

type endpoint struct {
	once   sync.Once
	closed chan struct{}
}

type direct struct {
	out        chan<- string
	in         <-chan string
	self, peer *endpoint
}

// Send implements a method of the [Channel] interface.
func (d *direct) Send(line string) error {
	select {
	case <-d.self.closed:
		return net.ErrClosed
	case <-d.peer.closed:
		return net.ErrClosed
	default:
	}
	select {
	case d.out <- line:
		return nil
	case <-d.self.closed:
		return net.ErrClosed
	case <-d.peer.closed:
		return net.ErrClosed
	}
}

// Recv implements a method of the [Channel] interface.
func (d *direct) Recv() (string, error) {
	select {
	case line := <-d.in:
		return line, nil
	case <-d.self.closed:
		return "", net.ErrClosed
	case <-d.peer.closed:
		return "", io.EOF
	}
}

// Close implements a method of the [Channel] interface.
func (d *direct) Close() error {
	err := net.ErrClosed
	d.self.once.Do(func() { close(d.self.closed); err = nil })
	return err
}

// IO constructs a channel that receives from r and sends to wc.
func IO(r io.Reader, wc io.WriteCloser) IOChannel {
	// N.B. The bufio package will reuse existing buffers if possible.
	return IOChannel{r: bufio.NewReader(r), w: bufio.NewWriter(wc), c: wc}
}

// An IOChannel sends and receives lines on a reader and a writer.
type IOChannel struct {
	r *bufio.Reader
	w *bufio.Writer
	c io.Closer
}

// Send implements a method of the [Channel] interface.
func (c IOChannel) Send(line string) error {
	if _, err := c.w.WriteString(line); err != nil {
		return err
	}
	if _, err := c.w.WriteString("\r\n"); err != nil {
		return err
	}
	return c.w.Flush()
}

// Recv implements a method of the [Channel] interface.
// A final line that is not terminated is reported before io.EOF.
func (c IOChannel) Recv() (string, error) {
	s, err := c.r.ReadString('\n')
	if err != nil && (s == "" || err != io.EOF) {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// Close implements a method of the [Channel] interface.
func (c IOChannel) Close() error { return c.c.Close() }

// Dial connects to the TCP address addr and returns a channel for it.
func Dial(ctx context.Context, addr string) (IOChannel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return IOChannel{}, err
	}
	return IO(conn, conn), nil
}

// Dialer returns a function that dials addr with [Dial], suitable for use as
// the Dial field of the client options.
func Dialer(addr string) func(context.Context) (Channel, error) {
	return func(ctx context.Context) (Channel, error) {
		ch, err := Dial(ctx, addr)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
}
