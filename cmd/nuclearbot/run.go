// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package main

import (
	"context"
	"errors"
	"expvar"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/nuclearbot"
	"github.com/creachadair/nuclearbot/channel"
	"github.com/creachadair/nuclearbot/config"
	"github.com/creachadair/nuclearbot/message"
	"github.com/creachadair/nuclearbot/osu"
	"pkt.systems/pslog"
)

var runFlags struct {
	LogLines  bool          `flag:"log-lines,Log protocol lines at debug level"`
	Reconnect time.Duration `flag:"reconnect-delay,Pause before reconnecting"`
	NoOsu     bool          `flag:"no-osu,Do not load the beatmap request plugin"`
}

func runCommand() *command.C {
	return &command.C{
		Name:     "run",
		Help:     "Connect to chat and run the bot until it is stopped.",
		SetFlags: command.Flags(flax.MustBind, &runFlags),
		Run: func(env *command.Env) error {
			cfg := env.Config.(*settings)
			return runBot(cfg.ctx, cfg.store)
		},
	}
}

// clientOptions builds client options from the settings in st. Missing
// settings are populated with their defaults.
func clientOptions(st *config.Store, log pslog.Logger) (nuclearbot.Options, error) {
	opts := nuclearbot.Options{
		Username:       st.Get(config.KeyUser, ""),
		Token:          st.Get(config.KeyToken, ""),
		Addr:           st.Get(config.KeyServer, nuclearbot.DefaultAddr),
		Host:           st.Get(config.KeyHost, message.DefaultHost),
		Moderators:     nuclearbot.ParseModerators(st.Get(config.KeyModerators, "")),
		Logger:         log,
		ReconnectDelay: runFlags.Reconnect,
	}
	if opts.Username == "" || opts.Token == "" {
		return opts, errors.New("set " + config.KeyUser + " and " + config.KeyToken + " with the config command")
	}
	opts.Dial = channel.Dialer(opts.Addr)
	if runFlags.LogLines {
		opts.LogLines = func(li nuclearbot.LineInfo) { log.Debug(li.String()) }
	}
	if !runFlags.NoOsu {
		opts.Plugin = osuPlugin(st)
	}
	return opts, nil
}

// osuPlugin builds the beatmap request plugin from the settings in st.
func osuPlugin(st *config.Store) nuclearbot.Plugin {
	p := &osu.Plugin{Fetcher: osu.APIFetcher{Key: st.Get(config.KeyOsuAPIKey, "")}}
	user := st.Get(config.KeyOsuUser, "")
	if pass, ok := st.Lookup(config.KeyOsuIRCPass); ok && user != "" && pass != "" {
		p.Notifier = osu.IRCNotifier{
			Dial:     channel.Dialer(osu.BanchoAddr),
			User:     user,
			Password: pass,
			Target:   user,
		}
	}
	return p
}

func runBot(ctx context.Context, st *config.Store) error {
	log := pslog.Ctx(ctx)
	opts, err := clientOptions(st, log)
	if st.Dirty() {
		if serr := st.Save(); serr != nil {
			log.Warn("saving settings failed", "path", st.Path(), "err", serr)
		} else {
			log.Info("saved default settings", "path", st.Path())
		}
	}
	if err != nil {
		return err
	}

	c := nuclearbot.New(opts)
	expvar.Publish("nuclearbot", c.Metrics())
	log.Info("starting bot", "user", c.Username(), "addr", opts.Addr)

	err = c.Connect(ctx)
	log.Debug("client metrics", "metrics", c.Metrics().String())
	if errors.Is(err, context.Canceled) {
		log.Info("interrupted")
		return nil
	}
	return err
}
