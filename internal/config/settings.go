// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading for relay.
package config

import "net/http"

// Settings is the process-wide configuration for a relay server. It mirrors
// the recognized options of the dispatch engine: listener ports, the
// certificate filesystem layout, reload cadence, and the initial set of
// routing entries.
type Settings struct {
	// CertificatesFolder is the directory whose direct subdirectories are
	// domain names holding a certificate and key file.
	CertificatesFolder string `json:"certificates_folder"`

	// CertificateFile and KeyFile name the PEM files inside each domain
	// subdirectory. Defaulted by ApplyDefaults to fullchain.pem/privkey.pem.
	CertificateFile string `json:"certificate_file"`
	KeyFile         string `json:"key_file"`

	// HTTPPort and HTTPSPort are the two listener ports; 0 disables the
	// corresponding listener.
	HTTPPort  int `json:"http_port"`
	HTTPSPort int `json:"https_port"`

	// AutoReload is the number of milliseconds between certificate reloads;
	// 0 disables the timer.
	AutoReload int `json:"auto_reload"`

	// Host is the bind address for both listeners. Defaulted to "0.0.0.0".
	Host string `json:"host"`

	// AdminListen is the bind address for the optional diagnostics surface
	// (internal/admin). Empty disables it.
	AdminListen string `json:"admin_listen"`

	// TailscaleFallback enables falling back to Tailscale-issued certificates
	// (via tscert) when SNI lookup finds no filesystem-loaded certificate.
	TailscaleFallback bool `json:"tailscale_fallback"`

	// CertWatch enables an fsnotify-driven reload trigger in addition to the
	// AutoReload timer. Defaulted to true when HTTPSPort != 0.
	CertWatch *bool `json:"cert_watch"`

	// Debug records the debug setting from the config file or the -debug
	// flag. Nothing in relay reads it; it changes no log output.
	Debug bool `json:"debug"`

	// Proxies is the initial list of routing entries installed at Start.
	Proxies []EntryConfig `json:"proxies"`

	// Fallback is an optional handler invoked when no entry matches a
	// request. Not serializable; set programmatically by an embedder.
	Fallback http.Handler `json:"-"`
}

// EntryConfig is the on-disk / programmatic shape of a routing entry before
// it is compiled into a routing.Entry.
type EntryConfig struct {
	Domain           string `json:"domain"`
	Target           string `json:"target"`
	Path             string `json:"path"`
	Authorization    string `json:"authorization"`
	RedirectToHTTPS  bool   `json:"redirect_to_https"`
	RedirectToURL    string `json:"redirect_to_url"`
	RedirectToDomain string `json:"redirect_to_domain"`
	CORS             bool   `json:"cors"`
	Headers          string `json:"headers"`
	PreserveHost     bool   `json:"preserve_host"`
}

const (
	defaultCertificateFile = "fullchain.pem"
	defaultKeyFile         = "privkey.pem"
	defaultHost            = "0.0.0.0"
)

// ApplyDefaults fills in zero-valued fields with their documented defaults,
// mirroring internal/config's applyDefaults convention.
func ApplyDefaults(s *Settings) {
	if s.CertificateFile == "" {
		s.CertificateFile = defaultCertificateFile
	}
	if s.KeyFile == "" {
		s.KeyFile = defaultKeyFile
	}
	if s.Host == "" {
		s.Host = defaultHost
	}
	if s.CertWatch == nil {
		watch := s.HTTPSPort != 0
		s.CertWatch = &watch
	}
}
