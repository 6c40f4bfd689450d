// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromString(t *testing.T, content string) *Settings {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loader := NewLoader()
	cfg, err := loader.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestLoader_Load_ValidConfig(t *testing.T) {
	content := `{
		http_port: 8080
		https_port: 8443
		certificates_folder: "/etc/relay/certs"
		proxies: [
			{
				domain: "example.com"
				target: "http://127.0.0.1:9000/"
			}
		]
	}`

	cfg := loadFromString(t, content)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 8443, cfg.HTTPSPort)
	assert.Equal(t, "/etc/relay/certs", cfg.CertificatesFolder)
	require.Len(t, cfg.Proxies, 1)
	assert.Equal(t, "example.com", cfg.Proxies[0].Domain)
	assert.Equal(t, "http://127.0.0.1:9000/", cfg.Proxies[0].Target)
}

func TestLoader_Load_HJSONFeatures(t *testing.T) {
	// HJSON-specific syntax: comments, unquoted keys, trailing commas.
	content := `{
		// inline comment
		http_port: 80,
		proxies: [
			{
				domain: example.com,
				redirect_to_https: true,
			},
		],
	}`

	cfg := loadFromString(t, content)

	assert.Equal(t, 80, cfg.HTTPPort)
	require.Len(t, cfg.Proxies, 1)
	assert.True(t, cfg.Proxies[0].RedirectToHTTPS)
}

func TestLoader_Load_MissingFile(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load(filepath.Join(t.TempDir(), "missing.hjson"))
	assert.Error(t, err)
}

func TestLoader_Load_InvalidHJSON(t *testing.T) {
	_, err := loadFromStringErr(t, "{ not valid hjson ]")
	assert.Error(t, err)
}

func loadFromStringErr(t *testing.T, content string) (*Settings, error) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return NewLoader().Load(path)
}

func TestLoader_LoadWithDefaults(t *testing.T) {
	cfg := loadFromString(t, `{ https_port: 443 }`)
	ApplyDefaults(cfg)

	assert.Equal(t, defaultCertificateFile, cfg.CertificateFile)
	assert.Equal(t, defaultKeyFile, cfg.KeyFile)
	assert.Equal(t, defaultHost, cfg.Host)
	require.NotNil(t, cfg.CertWatch)
	assert.True(t, *cfg.CertWatch)
}

func TestLoader_LoadWithDefaults_CertWatchDisabledWithoutHTTPS(t *testing.T) {
	cfg := loadFromString(t, `{ http_port: 80 }`)
	ApplyDefaults(cfg)

	require.NotNil(t, cfg.CertWatch)
	assert.False(t, *cfg.CertWatch)
}

func TestLoader_FindConfig(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { require.NoError(t, os.Chdir(cwd)) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "relay.hjson"), []byte("{}"), 0o644))

	path, err := NewLoader().FindConfig()
	require.NoError(t, err)
	assert.Equal(t, "relay.hjson", filepath.Base(path))
}

func TestLoader_FindConfig_NotFound(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { require.NoError(t, os.Chdir(cwd)) }()

	_, err = NewLoader().FindConfig()
	assert.Error(t, err)
}
