// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package certstore implements the Certificate Store: an SNI-keyed,
// atomically-swapped map of TLS certificates loaded from a filesystem
// layout of {certificatesFolder}/{domain}/{certificateFile,keyFile},
// plus the scheduled and filesystem-triggered reload paths.
package certstore

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/tailscale/tscert"

	"github.com/wingedpig/relay/internal/observe"
)

const (
	defaultCertificateFile = "fullchain.pem"
	defaultKeyFile         = "privkey.pem"
)

// Store is the Certificate Store. The zero value is not usable; construct
// with New. A Store is safe for concurrent Lookup and Reload.
type Store struct {
	certificatesFolder string
	certificateFile    string
	keyFile            string
	tailscaleFallback  bool
	hooks              *observe.Hooks

	certs atomic.Pointer[map[string]*tls.Certificate]
}

// New creates a Store. certificateFile/keyFile default to
// "fullchain.pem"/"privkey.pem" when empty.
func New(certificatesFolder, certificateFile, keyFile string, tailscaleFallback bool, hooks *observe.Hooks) *Store {
	if certificateFile == "" {
		certificateFile = defaultCertificateFile
	}
	if keyFile == "" {
		keyFile = defaultKeyFile
	}
	s := &Store{
		certificatesFolder: certificatesFolder,
		certificateFile:    certificateFile,
		keyFile:            keyFile,
		tailscaleFallback:  tailscaleFallback,
		hooks:              hooks,
	}
	empty := map[string]*tls.Certificate{}
	s.certs.Store(&empty)
	return s
}

// Reload walks the direct subdirectories of certificatesFolder, loading one
// certificate per subdirectory name (the root domain), and atomically
// publishes the resulting map in a single assignment, so no lookup ever
// observes a partially constructed certificate map. A failure to
// load one domain's certificate is reported via hooks.Error and skipped;
// Reload continues for the remaining domains and only returns an error if
// the folder itself cannot be read.
func (s *Store) Reload() error {
	if s.certificatesFolder == "" {
		empty := map[string]*tls.Certificate{}
		s.certs.Store(&empty)
		return nil
	}

	entries, err := os.ReadDir(s.certificatesFolder)
	if err != nil {
		return fmt.Errorf("certstore: read %s: %w", s.certificatesFolder, err)
	}

	next := make(map[string]*tls.Certificate, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		domain := entry.Name()
		dir := filepath.Join(s.certificatesFolder, domain)
		certPath := filepath.Join(dir, s.certificateFile)
		keyPath := filepath.Join(dir, s.keyFile)

		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			s.hooks.Error(fmt.Errorf("certstore: load %s: %w", domain, err))
			continue
		}
		next[domain] = &cert
	}

	s.certs.Store(&next)
	return nil
}

// Lookup returns the certificate for the longest suffix of sni present in
// the store: sni itself, then its
// parent domain, and so on up to the root label. When no filesystem-loaded
// certificate matches and tailscaleFallback is enabled, it falls back to
// tscert.GetCertificate before failing.
func (s *Store) Lookup(sni string) (*tls.Certificate, error) {
	sni = strings.ToLower(sni)
	m := *s.certs.Load()

	for host := sni; host != ""; host = parent(host) {
		if cert, ok := m[host]; ok {
			s.hooks.SNI(host)
			return cert, nil
		}
	}

	if s.tailscaleFallback {
		cert, err := tscert.GetCertificate(&tls.ClientHelloInfo{ServerName: sni})
		if err == nil {
			s.hooks.SNI(sni)
			return cert, nil
		}
	}

	return nil, fmt.Errorf("certstore: no certificate for %q", sni)
}

// GetCertificate adapts Lookup to tls.Config's GetCertificate callback.
func (s *Store) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if hello.ServerName == "" {
		return nil, fmt.Errorf("certstore: no SNI presented")
	}
	return s.Lookup(hello.ServerName)
}

// parent strips the first dot-delimited label from host, or returns "" if
// host has no further parent (matches routing.parent's semantics).
func parent(host string) string {
	i := strings.IndexByte(host, '.')
	if i < 0 {
		return ""
	}
	return host[i+1:]
}

// readDirNames lists the direct entry names of dir, regardless of type.
func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
