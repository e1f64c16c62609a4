// Package config reads the global ~/.wabridge/config.toml.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Defaults applied where config.toml is absent or silent.
const (
	DefaultListenAddr       = "127.0.0.1:3001"
	DefaultResolveWorkers   = 5
	DefaultMessageRetention = 500
)

// Config represents the global config file.
type Config struct {
	DefaultSession string `toml:"default_session"`

	// ListenAddr is the HTTP/WebSocket bind address.
	ListenAddr string `toml:"listen_addr"`

	// ResolveWorkers bounds concurrent contact lookups per batch.
	ResolveWorkers int `toml:"resolve_workers"`

	// MessageRetention caps retained messages per chat.
	MessageRetention int `toml:"message_retention"`
}

// Default returns a config with every field at its default.
func Default() *Config {
	return &Config{
		ListenAddr:       DefaultListenAddr,
		ResolveWorkers:   DefaultResolveWorkers,
		MessageRetention: DefaultMessageRetention,
	}
}

// Load reads config from the given path. A missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.ResolveWorkers <= 0 {
		c.ResolveWorkers = DefaultResolveWorkers
	}
	if c.MessageRetention <= 0 {
		c.MessageRetention = DefaultMessageRetention
	}
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
