// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package nuclearbot_test

import (
	"bytes"
	"encoding/json"
	"sync"

	"pkt.systems/pslog"
)

type logEntry struct {
	Level   string
	Message string
	Fields  map[string]any
}

// logCapture collects the structured log of a client.
type logCapture struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	lines []string
}

func newLogger() (pslog.Logger, *logCapture) {
	capture := new(logCapture)
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:             pslog.ModeStructured,
		NoColor:          true,
		VerboseFields:    true,
		MinLevel:         pslog.DebugLevel,
		DisableTimestamp: true,
	}), capture
}

func (c *logCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Write(p)
	for {
		data := c.buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx == -1 {
			break
		}
		c.lines = append(c.lines, string(data[:idx]))
		c.buf.Next(idx + 1)
	}
	return len(p), nil
}

func (c *logCapture) Entries() []logEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]logEntry, 0, len(c.lines))
	for _, line := range c.lines {
		payload := map[string]any{}
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			continue
		}
		var e logEntry
		if v, ok := payload["level"].(string); ok {
			e.Level = v
		} else if v, ok := payload["lvl"].(string); ok {
			e.Level = v
		}
		if v, ok := payload["message"].(string); ok {
			e.Message = v
		} else if v, ok := payload["msg"].(string); ok {
			e.Message = v
		}
		e.Fields = payload
		out = append(out, e)
	}
	return out
}

// Find returns the logged entries with the given message.
func (c *logCapture) Find(msg string) []logEntry {
	var out []logEntry
	for _, e := range c.Entries() {
		if e.Message == msg {
			out = append(out, e)
		}
	}
	return out
}
