package nuclearbot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/creachadair/mds/mtest"
	"github.com/google/go-cmp/cmp"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		label string
		args  []string
	}{
		{"", "", nil},
		{"   ", "", nil},
		{"!help", "help", []string{"!help"}},
		{"!HeLp  stop ", "help", []string{"!HeLp", "stop"}},
		{"!req https://osu.ppy.sh/b/123 please", "req", []string{"!req", "https://osu.ppy.sh/b/123", "please"}},
		{"!", "", []string{"!"}},
	}
	for _, tc := range tests {
		label, args := parseCommand(tc.input)
		if label != tc.label {
			t.Errorf("parseCommand(%q) label: got %q, want %q", tc.input, label, tc.label)
		}
		if diff := cmp.Diff(tc.args, args); diff != "" {
			t.Errorf("parseCommand(%q) args (-want, +got):\n%s", tc.input, diff)
		}
	}
}

func TestInvokeRecovers(t *testing.T) {
	cmd := &Command{label: "boom", exec: func(context.Context, *Call) (bool, error) {
		panic("kaboom")
	}}
	ok, err := cmd.invoke(context.Background(), &Call{Command: cmd})
	if ok || err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("invoke: got (%v, %v), want (false, panic error)", ok, err)
	}
}

func TestRunHookRecovers(t *testing.T) {
	c := New(Options{Username: "bob"})
	before := c.metrics.hookErr.Value()
	c.runHook("test", func() error { panic("bad hook") })
	c.runHook("test", func() error { return errors.New("bad hook") })
	c.runHook("test", func() error { return nil })
	if got := c.metrics.hookErr.Value() - before; got != 2 {
		t.Errorf("Hook errors: got %d, want 2", got)
	}
}

func TestLineInfo(t *testing.T) {
	tests := []struct {
		info LineInfo
		want string
	}{
		{LineInfo{Line: "PASS oauth:secret", Sent: true}, "send PASS ********"},
		{LineInfo{Line: "PASS oauth:secret"}, "recv PASS oauth:secret"},
		{LineInfo{Line: "NICK bob", Sent: true}, "send NICK bob"},
		{LineInfo{Line: "PING :tmi.twitch.tv"}, "recv PING :tmi.twitch.tv"},
	}
	for _, tc := range tests {
		if got := tc.info.String(); got != tc.want {
			t.Errorf("String(%+v): got %q, want %q", tc.info, got, tc.want)
		}
	}
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if !sleepCtx(ctx, 0) {
		t.Error("sleepCtx(0): got false, want true")
	}
	if !sleepCtx(ctx, time.Millisecond) {
		t.Error("sleepCtx(1ms): got false, want true")
	}
	cancel()
	if sleepCtx(ctx, time.Hour) {
		t.Error("sleepCtx after cancel: got true, want false")
	}
}

func TestNames(t *testing.T) {
	if got := StateRunning.String(); got != "running" {
		t.Errorf("StateRunning: got %q", got)
	}
	if got := State(99).String(); got != "state:99" {
		t.Errorf("State(99): got %q", got)
	}
	if got := EventConnected.String(); got != "Connected" {
		t.Errorf("EventConnected: got %q", got)
	}
	if got := EventType(0).String(); got != "EventType(0)" {
		t.Errorf("EventType(0): got %q", got)
	}
}

func TestCallArg(t *testing.T) {
	call := &Call{Args: []string{"!req", "url"}}
	if got := call.Arg(1); got != "url" {
		t.Errorf("Arg(1): got %q, want url", got)
	}
	if got := call.Arg(2); got != "" {
		t.Errorf("Arg(2): got %q, want empty", got)
	}
	if got := call.Arg(-1); got != "" {
		t.Errorf("Arg(-1): got %q, want empty", got)
	}
}

type sliceListener []string

func (sliceListener) HandleEvent(Event) {}

func TestUncomparableListener(t *testing.T) {
	b := NewBus(nil)
	mtest.MustPanic(t, func() { b.Subscribe(sliceListener{"x"}) })
}
