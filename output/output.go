// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package output implements an asynchronous, ordered writer for outbound
// protocol lines.
//
// A [Writer] decouples the goroutines that produce lines from the transport
// that carries them, so that a slow or congested connection does not stall
// the producers. Lines are delivered strictly in the order they were
// accepted, by a single drain goroutine.
//
// The queue is bounded: when it is full, [Writer.Send] blocks until space is
// available rather than dropping the line. Chat ordering and delivery matter
// more than producer latency.
package output

import (
	"errors"
	"sync"
	"time"

	"github.com/creachadair/taskgroup"
	"pkt.systems/pslog"
)

// ErrClosed is reported by Send after the writer has been closed.
var ErrClosed = errors.New("output channel is closed")

// ErrFlushTimeout is reported by Close if queued lines could not be written
// within the grace period.
var ErrFlushTimeout = errors.New("output flush timed out")

// DefaultQueueSize is the queue capacity used when Options.QueueSize is 0.
const DefaultQueueSize = 64

// A Sender delivers one line to the transport, adding the line terminator.
// The channel.Channel type satisfies this interface.
type Sender interface {
	Send(line string) error
}

// Options control the behaviour of a Writer. A nil *Options is ready for use
// and provides default values.
type Options struct {
	// The maximum number of lines that may be queued before Send blocks.
	// If zero, DefaultQueueSize is used.
	QueueSize int

	// Logger receives write failures. If nil, failures are not logged.
	Logger pslog.Logger

	// If set, OnSent is called after each line is successfully written.
	OnSent func(line string)

	// If set, OnError is called for each line that fails to write.
	OnError func(line string, err error)
}

func (o *Options) queueSize() int {
	if o == nil || o.QueueSize <= 0 {
		return DefaultQueueSize
	}
	return o.QueueSize
}

// A Writer is a bounded FIFO of outbound lines drained by a single goroutine.
// The Send method is safe for concurrent use by multiple goroutines.
type Writer struct {
	dst   Sender
	opts  Options
	queue chan string
	task  *taskgroup.Group
	done  chan struct{} // closed when the drain goroutine exits

	closing chan struct{} // closed when Close begins
	stop    sync.Once

	μ      sync.RWMutex
	closed bool // no more sends accepted; guarded by μ

	emu sync.Mutex
	err error // first write error; guarded by emu
}

// New constructs a Writer that delivers lines to dst and starts its drain
// goroutine. The caller must call Close when the writer is no longer needed.
func New(dst Sender, opts *Options) *Writer {
	w := &Writer{
		dst:     dst,
		queue:   make(chan string, opts.queueSize()),
		task:    taskgroup.New(nil),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	if opts != nil {
		w.opts = *opts
	}
	w.task.Go(func() error {
		defer close(w.done)
		for line := range w.queue {
			w.write(line)
		}
		return nil
	})
	return w
}

// Send enqueues line for delivery and returns without waiting for it to be
// written. If the queue is full, Send blocks until space is available or the
// writer is closed. After Close has begun, Send reports ErrClosed.
func (w *Writer) Send(line string) error {
	select {
	case <-w.closing:
		return ErrClosed
	default:
	}

	w.μ.RLock()
	defer w.μ.RUnlock()
	if w.closed {
		return ErrClosed
	}
	select {
	case w.queue <- line:
		return nil
	case <-w.closing:
		return ErrClosed
	}
}

// Close stops accepting new lines and waits up to grace for the lines already
// queued to be written. If grace ≤ 0, Close waits until the queue is drained.
// Close reports ErrFlushTimeout if the grace period expired, otherwise the
// first error reported by the transport, if any. It is safe to call Close
// more than once and from multiple goroutines.
//
// Close does not close the underlying transport.
func (w *Writer) Close(grace time.Duration) error {
	w.stop.Do(func() {
		close(w.closing) // release blocked senders

		// Wait for in-flight sends to finish before closing the queue, so that
		// no send can race with the close.
		w.μ.Lock()
		w.closed = true
		w.μ.Unlock()
		close(w.queue)
	})

	if grace <= 0 {
		<-w.done
	} else {
		t := time.NewTimer(grace)
		defer t.Stop()
		select {
		case <-w.done:
		case <-t.C:
			return ErrFlushTimeout
		}
	}
	return w.Err()
}

// Wait blocks until the drain goroutine has exited. It must be called only
// after Close.
func (w *Writer) Wait() { w.task.Wait() }

// Err reports the first error returned by the transport, or nil.
func (w *Writer) Err() error {
	w.emu.Lock()
	defer w.emu.Unlock()
	return w.err
}

func (w *Writer) write(line string) {
	if err := w.dst.Send(line); err != nil {
		w.emu.Lock()
		if w.err == nil {
			w.err = err
		}
		w.emu.Unlock()
		if w.opts.Logger != nil {
			w.opts.Logger.Warn("write failed", "bytes", len(line), "err", err)
		}
		if w.opts.OnError != nil {
			w.opts.OnError(line, err)
		}
		return
	}
	if w.opts.OnSent != nil {
		w.opts.OnSent(line)
	}
}
