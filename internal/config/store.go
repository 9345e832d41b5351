// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"path/filepath"
	"strings"
	"sync"
)

// Store is the persisted settings record. It supplies the API key to the
// chat controller and writes edits straight back to disk.
//
// Store is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	cfg  *Config
	path string

	// legacy is a data.json record read when path does not exist yet.
	legacy string
}

// NewStore wraps a loaded configuration that saves to path.
func NewStore(cfg *Config, path string) *Store {
	if cfg == nil {
		cfg = Default()
	}
	return &Store{cfg: cfg.Clone(), path: path}
}

// Open loads the configuration from path, or from ~/.coral when path is empty.
func Open(path string) (*Store, error) {
	if path == "" {
		cfg, savePath, err := Load()
		if err != nil {
			return nil, err
		}
		s := NewStore(cfg, savePath)
		s.legacy = PathJSON(filepath.Dir(savePath))
		return s, nil
	}
	cfg, err := LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	legacy := ""
	if strings.HasSuffix(path, ".json") {
		legacy = path
		path = strings.TrimSuffix(path, ".json") + ".toml"
	}
	s := NewStore(cfg, path)
	s.legacy = legacy
	return s, nil
}

// APIKey returns the current key.
func (s *Store) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.APIKey
}

// SetAPIKey updates the key and saves it. Only the settings read from disk
// are written back; environment overrides stay out of the file.
func (s *Store) SetAPIKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = strings.TrimSpace(key)
	file, err := s.loadFileLayer()
	if err != nil {
		return err
	}
	file.APIKey = key
	if err := SaveTOML(file, s.path); err != nil {
		return err
	}
	s.cfg.APIKey = key
	return nil
}

// loadFileLayer reads the saved settings without environment overrides.
func (s *Store) loadFileLayer() (*Config, error) {
	cfg := Default()
	switch {
	case fileExists(s.path):
		if err := LoadTOML(cfg, s.path); err != nil {
			return nil, err
		}
	case s.legacy != "" && fileExists(s.legacy):
		if err := LoadJSON(cfg, s.legacy); err != nil {
			return nil, err
		}
	}
	cfg.SetDefaults()
	return cfg, nil
}

// Config returns a copy of the current configuration.
func (s *Store) Config() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Path returns the file edits are saved to.
func (s *Store) Path() string {
	return s.path
}
