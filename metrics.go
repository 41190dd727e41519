// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package nuclearbot

import "expvar"

// clientMetrics record client activity counters.
type clientMetrics struct {
	lineRecv    expvar.Int
	lineSent    expvar.Int
	lineUnknown expvar.Int // lines that did not match any known shape
	writeErr    expvar.Int // lines that failed to write
	cmdIn       expvar.Int // commands dispatched to an executor
	cmdErr      expvar.Int // executors reporting an error
	cmdUnknown  expvar.Int // commands with no registered label
	hookErr     expvar.Int // plugin hooks reporting an error
	sessions    expvar.Int // connections opened
	reconnects  expvar.Int

	emap *expvar.Map
}

var rootMetrics = newClientMetrics()

func newClientMetrics() *clientMetrics {
	cm := &clientMetrics{emap: new(expvar.Map)}
	cm.emap.Set("lines_received", &cm.lineRecv)
	cm.emap.Set("lines_sent", &cm.lineSent)
	cm.emap.Set("lines_unknown", &cm.lineUnknown)
	cm.emap.Set("write_errors", &cm.writeErr)
	cm.emap.Set("commands_dispatched", &cm.cmdIn)
	cm.emap.Set("commands_failed", &cm.cmdErr)
	cm.emap.Set("commands_unknown", &cm.cmdUnknown)
	cm.emap.Set("hooks_failed", &cm.hookErr)
	cm.emap.Set("sessions", &cm.sessions)
	cm.emap.Set("reconnects", &cm.reconnects)
	return cm
}
