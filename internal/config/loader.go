// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses settings from the given HJSON path.
func (l *Loader) Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Parse HJSON to an intermediate map, then round-trip through JSON so the
	// strict Settings struct tags apply uniformly regardless of HJSON's
	// relaxed syntax (unquoted keys, comments, multiline strings).
	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(jsonData, &settings); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &settings, nil
}

// LoadWithDefaults loads settings and applies documented defaults.
func (l *Loader) LoadWithDefaults(path string) (*Settings, error) {
	settings, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(settings)
	return settings, nil
}

// FindConfig searches the current directory for a relay.hjson or relay.json
// config file, preferring the HJSON form.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{"relay.hjson", "relay.json"}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs, nil
			}
			return path, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for relay.hjson, relay.json)")
}
