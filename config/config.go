// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package config implements a flat key/value settings store persisted as a
// YAML file.
//
// Keys are compared without regard to case. Values are strings; values read
// from the file are converted to strings when they are fetched.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Keys used by the bot.
const (
	KeyUser       = "twitch_user"      // bot login name
	KeyToken      = "twitch_oauth_key" // OAuth token, "oauth:..."
	KeyServer     = "twitch_server"    // chat server address, host:port
	KeyHost       = "twitch_host"      // chat user host domain
	KeyModerators = "moderators"       // comma-separated user names
	KeyOsuAPIKey  = "osu_api_key"      // beatmap metadata API key
	KeyOsuUser    = "osu_user"         // who receives beatmap requests
	KeyOsuIRCPass = "osu_irc_password" // in-game chat server password
)

// A Store is a set of settings loaded from a file. A Store is safe for
// concurrent use by multiple goroutines.
type Store struct {
	path string

	μ     sync.Mutex
	v     *viper.Viper
	dirty bool // settings changed since the last load or save
}

// DefaultPath returns the default location of the settings file.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "nuclearbot", "config.yaml"), nil
}

// Open loads the settings file at path. A missing file is not an error; the
// store begins empty and the file is created by Save.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("empty config path")
	}
	v, err := load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, v: v}, nil
}

func load(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	return v, nil
}

// Path reports the location of the settings file.
func (s *Store) Path() string { return s.path }

// Get returns the value of key. If key is not set, it is set to def, which
// is returned.
func (s *Store) Get(key, def string) string {
	s.μ.Lock()
	defer s.μ.Unlock()
	if !s.v.IsSet(key) {
		s.v.Set(key, def)
		s.dirty = true
		return def
	}
	return s.v.GetString(key)
}

// Lookup reports the value of key, and whether it is set.
func (s *Store) Lookup(key string) (string, bool) {
	s.μ.Lock()
	defer s.μ.Unlock()
	if !s.v.IsSet(key) {
		return "", false
	}
	return s.v.GetString(key), true
}

// Set sets key to value. It returns the previous value of key, and whether
// key was previously set.
func (s *Store) Set(key, value string) (prev string, ok bool) {
	s.μ.Lock()
	defer s.μ.Unlock()
	if ok = s.v.IsSet(key); ok {
		prev = s.v.GetString(key)
	}
	s.v.Set(key, value)
	s.dirty = true
	return prev, ok
}

// Keys returns the keys that are set, in sorted order.
func (s *Store) Keys() []string {
	s.μ.Lock()
	defer s.μ.Unlock()
	keys := s.v.AllKeys()
	slices.Sort(keys)
	return keys
}

// Dirty reports whether the settings have changed since they were loaded or
// saved.
func (s *Store) Dirty() bool {
	s.μ.Lock()
	defer s.μ.Unlock()
	return s.dirty
}

// Save writes the settings to the file, creating it if necessary.
func (s *Store) Save() error {
	s.μ.Lock()
	defer s.μ.Unlock()

	data, err := yaml.Marshal(s.settings())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	s.dirty = false
	return nil
}

// Reload discards unsaved changes and reads the settings file again.
func (s *Store) Reload() error {
	v, err := load(s.path)
	if err != nil {
		return err
	}
	s.μ.Lock()
	defer s.μ.Unlock()
	s.v = v
	s.dirty = false
	return nil
}

// Dump renders the settings as YAML, masking secrets.
func (s *Store) Dump() (string, error) {
	s.μ.Lock()
	settings := s.settings()
	s.μ.Unlock()

	for key, val := range settings {
		if isSecret(key) && val != "" {
			settings[key] = "********"
		}
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// settings returns the values of all keys. The caller must hold s.μ.
func (s *Store) settings() map[string]string {
	out := make(map[string]string)
	for _, key := range s.v.AllKeys() {
		out[key] = s.v.GetString(key)
	}
	return out
}

func isSecret(key string) bool {
	return strings.Contains(key, "oauth") || strings.HasSuffix(key, "api_key") || strings.HasSuffix(key, "password")
}
