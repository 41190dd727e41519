// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package osu_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/creachadair/nuclearbot"
	"github.com/creachadair/nuclearbot/chattest"
	"github.com/creachadair/nuclearbot/osu"
	"github.com/creachadair/taskgroup"
	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
	"pkt.systems/pslog"
)

var disco = &osu.Beatmap{
	ID:               75,
	SetID:            1,
	Artist:           "Kenji Ninuma",
	Title:            "DISCOPRINCE",
	Version:          "Normal",
	Creator:          "peppy",
	BPM:              119.999,
	DiffAR:           6,
	DifficultyRating: 2.4069,
}

type fakeFetcher struct {
	maps map[int]*osu.Beatmap
	sets map[int][]*osu.Beatmap
	err  error
}

func (f fakeFetcher) Beatmap(_ context.Context, id int) (*osu.Beatmap, error) {
	return f.maps[id], f.err
}

func (f fakeFetcher) Beatmapset(_ context.Context, id int) ([]*osu.Beatmap, error) {
	return f.sets[id], f.err
}

type recordNotifier struct {
	mu    sync.Mutex
	notes []string
}

func (r *recordNotifier) Notify(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, text)
	return nil
}

func (r *recordNotifier) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notes
	r.notes = nil
	return out
}

func TestRequest(t *testing.T) {
	defer leaktest.Check(t)()

	note := new(recordNotifier)
	fetch := &fakeFetcher{
		maps: map[int]*osu.Beatmap{75: disco},
		sets: map[int][]*osu.Beatmap{1: {disco, disco}},
	}
	srv := chattest.NewServer("")
	c := nuclearbot.New(nuclearbot.Options{
		Username:     "streamer",
		Dial:         srv.Dial,
		Plugin:       &osu.Plugin{Fetcher: fetch, Notifier: note},
		Moderators:   nuclearbot.NewModerators("streamer"),
		Logger:       pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true, DisableTimestamp: true}),
		PollInterval: 5 * time.Millisecond,
		GraceDelay:   time.Millisecond,
	})
	run := taskgroup.Go(func() error { return c.Connect(context.Background()) })
	conn := srv.Accept(t)
	conn.Login(t)

	tests := []struct {
		input string
		reply []string
		notes []string
	}{
		{"!req", []string{"Usage: !req <beatmap>"}, nil},
		{"!req https://osu.ppy.sh/b/75 please play",
			[]string{"Request: Kenji Ninuma - DISCOPRINCE [Normal] (creator peppy) ¦ BPM 120 ¦ AR 6.0 ¦ 2.41 stars"},
			[]string{
				"Request from alice: [https://osu.ppy.sh/b/75 Kenji Ninuma - DISCOPRINCE] ¦ BPM 120 ¦ AR 6.0 ¦ 2.41 stars",
				"(please play)",
			}},
		{"!req HTTP://OSU.PPY.SH/S/1",
			[]string{"Request: Kenji Ninuma - DISCOPRINCE (2 diffs)"},
			[]string{"Request from alice: [http://osu.ppy.sh/s/1 Kenji Ninuma - DISCOPRINCE] (2 diffs)"}},
		{"!req https://osu.ppy.sh/b/999", []string{"No beatmap found."}, nil},
		{"!req https://osu.ppy.sh/s/404", []string{"No beatmap found."}, nil},
		{"!req Freedom_Dive", []string{"Request: freedom_dive"}, []string{"Request from alice: freedom_dive"}},
		{"!help req", []string{"Usage: !req <beatmap> - Requests a beatmap to be played."}, nil},
	}
	for _, tc := range tests {
		conn.Chat(t, "alice", tc.input)
		var want []string
		for _, r := range tc.reply {
			want = append(want, "PRIVMSG #streamer :"+r)
		}
		if diff := cmp.Diff(want, conn.Sync(t)); diff != "" {
			t.Errorf("Reply to %q (-want, +got):\n%s", tc.input, diff)
		}
		if diff := cmp.Diff(tc.notes, note.take()); diff != "" {
			t.Errorf("Notes for %q (-want, +got):\n%s", tc.input, diff)
		}
	}

	// A lookup failure is not reported in chat.
	fetch.err = errors.New("service unavailable")
	conn.Chat(t, "alice", "!req https://osu.ppy.sh/b/75")
	if got := conn.Sync(t); len(got) != 0 {
		t.Errorf("Reply to failed lookup: got %q, want none", got)
	}

	c.Stop()
	conn.Closed(t)
	if err := run.Wait(); err != nil {
		t.Errorf("Connect: %v", err)
	}
}

func TestRequestNoFetcher(t *testing.T) {
	var p osu.Plugin
	call := &nuclearbot.Call{
		User:  "alice",
		Label: "req",
		Args:  []string{"!req", "https://osu.ppy.sh/b/75"},
	}
	ok, err := p.Request(context.Background(), call)
	if !ok || !errors.Is(err, osu.ErrNoFetcher) {
		t.Errorf("Request: got (%v, %v), want (true, %v)", ok, err, osu.ErrNoFetcher)
	}
}

func TestAPIFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/api/get_beatmaps" || q.Get("k") != "sekrit" {
			http.Error(w, "bad request", http.StatusForbidden)
			return
		}
		var out []map[string]string
		if q.Get("b") == "75" || q.Get("s") == "1" {
			out = append(out, map[string]string{
				"beatmap_id":       "75",
				"beatmapset_id":    "1",
				"artist":           "Kenji Ninuma",
				"title":            "DISCOPRINCE",
				"version":          "Normal",
				"creator":          "peppy",
				"bpm":              "119.999",
				"diff_approach":    "6",
				"difficultyrating": "2.4069",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	ctx := context.Background()
	f := osu.APIFetcher{Key: "sekrit", BaseURL: srv.URL + "/api/", Client: srv.Client()}

	bm, err := f.Beatmap(ctx, 75)
	if err != nil {
		t.Fatalf("Beatmap: unexpected error: %v", err)
	}
	if diff := cmp.Diff(disco, bm); diff != "" {
		t.Errorf("Beatmap (-want, +got):\n%s", diff)
	}
	if bm, err := f.Beatmap(ctx, 76); err != nil || bm != nil {
		t.Errorf("Beatmap(76): got (%v, %v), want (nil, nil)", bm, err)
	}
	set, err := f.Beatmapset(ctx, 1)
	if err != nil || len(set) != 1 {
		t.Errorf("Beatmapset(1): got (%v, %v), want 1 beatmap", set, err)
	}

	bad := osu.APIFetcher{Key: "wrong", BaseURL: srv.URL + "/api", Client: srv.Client()}
	if _, err := bad.Beatmap(ctx, 75); err == nil {
		t.Error("Beatmap with bad key: got nil, want error")
	}
	if _, err := (osu.APIFetcher{}).Beatmap(ctx, 75); err == nil {
		t.Error("Beatmap without key: got nil, want error")
	}
}

func TestIRCNotifier(t *testing.T) {
	defer leaktest.Check(t)()

	srv := chattest.NewServer("")
	n := osu.IRCNotifier{Dial: srv.Dial, User: "streamerbot", Password: "pw", Target: "streamer"}
	if err := n.Notify(context.Background(), "Request from alice: freedom_dive"); err != nil {
		t.Fatalf("Notify: unexpected error: %v", err)
	}
	conn := srv.Accept(t)
	if diff := cmp.Diff([]string{
		"PASS pw",
		"NICK streamerbot",
		"PRIVMSG streamer :Request from alice: freedom_dive",
		"QUIT",
	}, conn.Closed(t)); diff != "" {
		t.Errorf("Notification (-want, +got):\n%s", diff)
	}

	errDown := errors.New("server down")
	srv.FailDial(errDown)
	if err := n.Notify(context.Background(), "hello"); !errors.Is(err, errDown) {
		t.Errorf("Notify: got %v, want %v", err, errDown)
	}
}
