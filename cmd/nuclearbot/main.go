// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Program nuclearbot runs a chat bot for a Twitch channel.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/nuclearbot/config"
	"pkt.systems/psi"
	"pkt.systems/pslog"
)

// settings are shared by all the subcommands.
type settings struct {
	ctx   context.Context
	store *config.Store

	Config string `flag:"config,Settings file path"`
}

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	cfg := &settings{ctx: ctx}
	if path, err := config.DefaultPath(); err == nil {
		cfg.Config = path
	}

	root := &command.C{
		Name:     filepath.Base(os.Args[0]),
		Help:     "Run a chat bot for a Twitch channel.",
		SetFlags: command.Flags(flax.MustBind, cfg),
		Init: func(env *command.Env) error {
			st, err := config.Open(cfg.Config)
			if err != nil {
				return err
			}
			cfg.store = st
			return nil
		},
		Commands: []*command.C{
			runCommand(),
			configCommand(),
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	if err := command.Run(root.NewEnv(cfg).MergeFlags(true), os.Args[1:]); err != nil {
		if errors.Is(err, command.ErrRequestHelp) {
			return 0
		}
		pslog.Ctx(ctx).Error("nuclearbot command failed", "err", err)
		return 1
	}
	return 0
}

func configCommand() *command.C {
	return &command.C{
		Name: "config",
		Help: "Read and update the settings file.",
		Commands: []*command.C{
			{
				Name:  "get",
				Usage: "<key>",
				Help:  "Print the value of a setting.",
				Run: func(env *command.Env) error {
					if len(env.Args) != 1 {
						return env.Usagef("Expected one key")
					}
					v, ok := env.Config.(*settings).store.Lookup(env.Args[0])
					if !ok {
						return fmt.Errorf("key %q is not set", env.Args[0])
					}
					fmt.Println(v)
					return nil
				},
			},
			{
				Name:  "set",
				Usage: "<key> <value>",
				Help:  "Update the value of a setting and save the file.",
				Run: func(env *command.Env) error {
					if len(env.Args) != 2 {
						return env.Usagef("Expected a key and a value")
					}
					st := env.Config.(*settings).store
					prev, ok := st.Set(env.Args[0], env.Args[1])
					if err := st.Save(); err != nil {
						return err
					}
					if ok {
						fmt.Fprintf(os.Stderr, "%s: was %q\n", env.Args[0], prev)
					}
					return nil
				},
			},
			{
				Name: "list",
				Help: "Print all settings, with secrets masked.",
				Run: func(env *command.Env) error {
					st := env.Config.(*settings).store
					out, err := st.Dump()
					if err != nil {
						return err
					}
					fmt.Printf("# %s\n%s", st.Path(), out)
					return nil
				},
			},
		},
	}
}
