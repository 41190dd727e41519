// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package channel_test

import (
	"errors"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/creachadair/nuclearbot/channel"
	"github.com/creachadair/taskgroup"
	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
)

func TestDirect(t *testing.T) {
	defer leaktest.Check(t)()

	c, s := channel.Direct()

	g := taskgroup.New(nil)
	g.Go(func() error {
		if err := c.Send("PING :x"); err != nil {
			t.Errorf("A Send: %v", err)
		}
		got, err := c.Recv()
		if err != nil {
			t.Errorf("A Recv: %v", err)
		}
		if got != "PONG :x" {
			t.Errorf("Line: got %q, want %q", got, "PONG :x")
		}
		return nil
	})
	g.Go(func() error {
		line, err := s.Recv()
		if err != nil {
			t.Errorf("B Recv: %v", err)
		}
		if err := s.Send(strings.Replace(line, "PING", "PONG", 1)); err != nil {
			t.Errorf("B Send: %v", err)
		}
		return nil
	})
	g.Wait()

	if err := c.Close(); err != nil {
		t.Errorf("c.Close: %v", err)
	}
	if err := c.Close(); !errors.Is(err, net.ErrClosed) {
		t.Errorf("c.Close again: got %v, want %v", err, net.ErrClosed)
	}

	if err := c.Send("x"); err == nil {
		t.Error("c.Send after close did not report an error")
	}
	if err := s.Send("x"); err == nil {
		t.Error("s.Send after peer close did not report an error")
	}
	if line, err := c.Recv(); err == nil {
		t.Errorf("c.Recv after close: got %q", line)
	}
	if line, err := s.Recv(); !errors.Is(err, io.EOF) {
		t.Errorf("s.Recv after peer close: got (%q, %v), want EOF", line, err)
	}
}

func TestDirectCloseUnblocksRecv(t *testing.T) {
	defer leaktest.Check(t)()

	c, _ := channel.Direct()
	done := taskgroup.Go(func() error {
		_, err := c.Recv()
		return err
	})
	c.Close()
	if err := done.Wait(); !errors.Is(err, net.ErrClosed) {
		t.Errorf("Recv: got %v, want %v", err, net.ErrClosed)
	}
}

func TestIO(t *testing.T) {
	defer leaktest.Check(t)()

	cc, sc := net.Pipe()
	c := channel.IO(cc, cc)
	defer c.Close()

	var got []string
	srv := taskgroup.Go(func() error {
		defer sc.Close()
		buf, err := io.ReadAll(io.LimitReader(sc, int64(len("NICK bob\r\nJOIN #bob\r\n"))))
		if err != nil {
			return err
		}
		got = strings.SplitAfter(string(buf), "\r\n")
		_, err = io.WriteString(sc, ":tmi PING\r\nlast")
		return err
	})

	for _, line := range []string{"NICK bob", "JOIN #bob"} {
		if err := c.Send(line); err != nil {
			t.Fatalf("Send %q: %v", line, err)
		}
	}

	var recv []string
	for {
		line, err := c.Recv()
		if err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		recv = append(recv, line)
	}
	if err := srv.Wait(); err != nil {
		t.Fatalf("Server: %v", err)
	}

	if diff := cmp.Diff([]string{"NICK bob\r\n", "JOIN #bob\r\n", ""}, got); diff != "" {
		t.Errorf("Sent lines (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{":tmi PING", "last"}, recv); diff != "" {
		t.Errorf("Received lines (-want, +got):\n%s", diff)
	}
}
