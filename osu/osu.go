// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package osu implements a bot plugin that takes beatmap requests from chat.
//
// The plugin registers the command "!req <url> [message]". A beatmap or
// beatmap set URL is looked up and announced in chat, and the request is
// forwarded to the player through a [Notifier]. Any other argument is
// announced and forwarded as given.
package osu

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/creachadair/nuclearbot"
	"pkt.systems/pslog"
)

// ErrNoFetcher is reported by a request for a beatmap URL when the plugin
// has no Fetcher.
var ErrNoFetcher = errors.New("osu: no beatmap fetcher configured")

var beatmapURL = regexp.MustCompile(`^https?://osu\.ppy\.sh/([bs])/([0-9]+)(&.*)?$`)

// A Plugin takes beatmap requests. It embeds a nuclearbot.NopPlugin, and
// only implements OnLoad.
type Plugin struct {
	nuclearbot.NopPlugin

	Fetcher  Fetcher  // required to look up beatmap URLs
	Notifier Notifier // if nil, LogNotifier is used
}

// OnLoad registers the request command on c.
func (p *Plugin) OnLoad(_ context.Context, c *nuclearbot.Client) error {
	cmd, err := c.Commands().Register("req", "!req <beatmap>", p.Request)
	if err != nil {
		return err
	}
	cmd.Describe("Requests a beatmap to be played.")
	return nil
}

// Request is the executor for the request command.
func (p *Plugin) Request(ctx context.Context, call *nuclearbot.Call) (bool, error) {
	if len(call.Args) < 2 {
		return false, nil
	}
	target := strings.ToLower(call.Args[1])

	var reply, note string
	if m := beatmapURL.FindStringSubmatch(target); m == nil {
		reply = "Request: " + target
		note = fmt.Sprintf("Request from %s: %s", call.User, target)
	} else if p.Fetcher == nil {
		return true, ErrNoFetcher
	} else if id, err := strconv.Atoi(m[2]); err != nil {
		return true, call.Reply("No beatmap found.")
	} else if m[1] == "s" {
		set, err := p.Fetcher.Beatmapset(ctx, id)
		if err != nil {
			return false, fmt.Errorf("fetch beatmap set %d: %w", id, err)
		} else if len(set) == 0 {
			return true, call.Reply("No beatmap found.")
		}
		bm := set[0]
		reply = fmt.Sprintf("Request: %s - %s (%d diffs)", bm.Artist, bm.Title, len(set))
		note = fmt.Sprintf("Request from %s: [%s %s - %s] (%d diffs)", call.User, target, bm.Artist, bm.Title, len(set))
	} else {
		bm, err := p.Fetcher.Beatmap(ctx, id)
		if err != nil {
			return false, fmt.Errorf("fetch beatmap %d: %w", id, err)
		} else if bm == nil {
			return true, call.Reply("No beatmap found.")
		}
		bpm := int(math.Round(bm.BPM))
		reply = fmt.Sprintf("Request: %s - %s [%s] (creator %s) ¦ BPM %d ¦ AR %.1f ¦ %.2f stars",
			bm.Artist, bm.Title, bm.Version, bm.Creator, bpm, bm.DiffAR, bm.DifficultyRating)
		note = fmt.Sprintf("Request from %s: [%s %s - %s] ¦ BPM %d ¦ AR %.1f ¦ %.2f stars",
			call.User, target, bm.Artist, bm.Title, bpm, bm.DiffAR, bm.DifficultyRating)
	}
	if err := call.Reply(reply); err != nil {
		return true, err
	}

	notes := []string{note}
	if len(call.Args) > 2 {
		notes = append(notes, "("+strings.Join(call.Args[2:], " ")+")")
	}
	var n Notifier = LogNotifier{}
	if p.Notifier != nil {
		n = p.Notifier
	}
	for _, text := range notes {
		if err := n.Notify(ctx, text); err != nil {
			pslog.Ctx(ctx).Warn("request notification failed", "user", call.User, "err", err)
			break
		}
	}
	return true, nil
}
