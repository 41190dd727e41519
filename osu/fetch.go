// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package osu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the base URL of the beatmap metadata API.
const DefaultBaseURL = "https://osu.ppy.sh/api/"

// A Beatmap is the metadata of a single beatmap difficulty.
type Beatmap struct {
	ID               int     `json:"beatmap_id,string"`
	SetID            int     `json:"beatmapset_id,string"`
	Artist           string  `json:"artist"`
	Title            string  `json:"title"`
	Version          string  `json:"version"`
	Creator          string  `json:"creator"`
	BPM              float64 `json:"bpm,string"`
	DiffAR           float64 `json:"diff_approach,string"`
	DifficultyRating float64 `json:"difficultyrating,string"`
}

// A Fetcher looks up beatmap metadata.
type Fetcher interface {
	// Beatmap returns the beatmap with the given ID, or nil if there is none.
	Beatmap(ctx context.Context, id int) (*Beatmap, error)

	// Beatmapset returns the beatmaps of the set with the given ID. The
	// result is empty if there is no such set.
	Beatmapset(ctx context.Context, id int) ([]*Beatmap, error)
}

// APIFetcher implements Fetcher using the osu! web API.
type APIFetcher struct {
	Key     string       // API key (required)
	BaseURL string       // if empty, DefaultBaseURL is used
	Client  *http.Client // if nil, a client with a 15-second timeout is used
}

// Beatmap implements a method of the [Fetcher] interface.
func (f APIFetcher) Beatmap(ctx context.Context, id int) (*Beatmap, error) {
	maps, err := f.getBeatmaps(ctx, "b", id)
	if err != nil || len(maps) == 0 {
		return nil, err
	}
	return maps[0], nil
}

// Beatmapset implements a method of the [Fetcher] interface.
func (f APIFetcher) Beatmapset(ctx context.Context, id int) ([]*Beatmap, error) {
	return f.getBeatmaps(ctx, "s", id)
}

func (f APIFetcher) getBeatmaps(ctx context.Context, kind string, id int) ([]*Beatmap, error) {
	if f.Key == "" {
		return nil, errors.New("missing API key")
	}
	base := f.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	query := url.Values{"k": {f.Key}, kind: {strconv.Itoa(id)}}
	target := strings.TrimRight(base, "/") + "/get_beatmaps?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	rsp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get beatmaps: %w", err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(rsp.Body, 4<<10))
		return nil, fmt.Errorf("get beatmaps failed: %s; body=%s", rsp.Status, strings.TrimSpace(string(body)))
	}
	var maps []*Beatmap
	if err := json.NewDecoder(rsp.Body).Decode(&maps); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return maps, nil
}
