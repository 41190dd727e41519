// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/creachadair/nuclearbot"
	"github.com/creachadair/nuclearbot/config"
	"github.com/creachadair/nuclearbot/osu"
	"github.com/google/go-cmp/cmp"
	"pkt.systems/pslog"
)

func openStore(t *testing.T, body string) *config.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if body != "" {
		if err := os.WriteFile(path, []byte(body), 0600); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	st, err := config.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func TestClientOptions(t *testing.T) {
	log := pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true, DisableTimestamp: true})

	t.Run("Missing", func(t *testing.T) {
		st := openStore(t, "")
		if _, err := clientOptions(st, log); err == nil {
			t.Error("clientOptions: got nil, want error")
		}
		if diff := cmp.Diff([]string{
			config.KeyModerators, config.KeyHost, config.KeyToken, config.KeyServer, config.KeyUser,
		}, st.Keys()); diff != "" {
			t.Errorf("Defaulted keys (-want, +got):\n%s", diff)
		}
	})

	t.Run("Complete", func(t *testing.T) {
		st := openStore(t, `
twitch_user: NuclearBot
twitch_oauth_key: oauth:xyzzy
moderators: alice,bob
osu_user: player
osu_irc_password: hunter2
`)
		opts, err := clientOptions(st, log)
		if err != nil {
			t.Fatalf("clientOptions: %v", err)
		}
		if opts.Username != "NuclearBot" || opts.Token != "oauth:xyzzy" || opts.Addr != nuclearbot.DefaultAddr {
			t.Errorf("Options: got user %q, token %q, addr %q", opts.Username, opts.Token, opts.Addr)
		}
		if !opts.Moderators.IsModerator("Alice") || opts.Moderators.IsModerator("eve") {
			t.Error("Moderators were not loaded")
		}
		p, ok := opts.Plugin.(*osu.Plugin)
		if !ok {
			t.Fatalf("Plugin: got %T, want *osu.Plugin", opts.Plugin)
		}
		n, ok := p.Notifier.(osu.IRCNotifier)
		if !ok || n.User != "player" || n.Target != "player" || n.Password != "hunter2" {
			t.Errorf("Notifier: got %+v", p.Notifier)
		}
	})
}
