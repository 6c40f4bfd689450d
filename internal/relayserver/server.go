// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package relayserver implements the Listener Pair: the two net.Listeners
// (plaintext and TLS) that drive a shared dispatch handler, plus the
// start/reset/reload/add lifecycle. Server
// also satisfies http.Handler directly, so it can be embedded in another
// listener's request handling — the upgrade tunnel
// dispatch is folded into the same ServeHTTP, since a
// Go http.ResponseWriter already exposes the http.Hijacker the tunnel
// needs.
package relayserver

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/wingedpig/relay/internal/certstore"
	"github.com/wingedpig/relay/internal/config"
	"github.com/wingedpig/relay/internal/forward"
	"github.com/wingedpig/relay/internal/observe"
	"github.com/wingedpig/relay/internal/policy"
	"github.com/wingedpig/relay/internal/routing"
	"github.com/wingedpig/relay/internal/upgrade"
)

// Server wires the Entry Table, Certificate Store, Policy Pipeline,
// Forwarder, and Upgrade Tunnel into a single dispatch surface with its own
// listener pair.
type Server struct {
	settings config.Settings
	hooks    *observe.Hooks

	table     *routing.Table
	certs     *certstore.Store
	scheduler *certstore.Scheduler
	pipeline  *policy.Pipeline
	tunnel    *upgrade.Tunnel

	mu            sync.Mutex
	started       bool
	httpListener  net.Listener
	httpsListener net.Listener
	httpServer    *http.Server
	httpsServer   *http.Server
}

// New constructs a Server from settings. Call Start to load certificates,
// install the initial entries, and open listeners.
func New(settings config.Settings, hooks *observe.Hooks) *Server {
	return &Server{
		settings: settings,
		hooks:    hooks,
		table:    routing.NewTable(),
	}
}

// Start loads certificates, installs the reload timer/watch, inserts the
// configured initial entries, and opens whichever of the HTTP/HTTPS
// listeners has a nonzero port; if a port is zero, the corresponding
// listener is not opened.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("relayserver: already started")
	}

	s.certs = certstore.New(s.settings.CertificatesFolder, s.settings.CertificateFile, s.settings.KeyFile, s.settings.TailscaleFallback, s.hooks)
	watch := s.settings.CertWatch != nil && *s.settings.CertWatch
	s.scheduler = certstore.NewScheduler(s.certs, time.Duration(s.settings.AutoReload)*time.Millisecond, watch, s.hooks)
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("relayserver: start certificate scheduler: %w", err)
	}

	s.pipeline = policy.New(forward.New(s.hooks))
	s.tunnel = upgrade.New(s.hooks)

	for _, cfg := range s.settings.Proxies {
		if err := s.addLocked(cfg); err != nil {
			return fmt.Errorf("relayserver: initial entry: %w", err)
		}
	}

	if s.settings.HTTPPort != 0 {
		addr := fmt.Sprintf("%s:%d", s.settings.Host, s.settings.HTTPPort)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("relayserver: listen http %s: %w", addr, err)
		}
		s.httpListener = ln
		s.httpServer = &http.Server{Handler: s}
		go s.serve(s.httpServer, ln)
	}

	if s.settings.HTTPSPort != 0 {
		addr := fmt.Sprintf("%s:%d", s.settings.Host, s.settings.HTTPSPort)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("relayserver: listen https %s: %w", addr, err)
		}
		tlsLn := tls.NewListener(ln, &tls.Config{GetCertificate: s.certs.GetCertificate})
		s.httpsListener = tlsLn
		s.httpsServer = &http.Server{Handler: s}
		go s.serve(s.httpsServer, tlsLn)
	}

	s.started = true
	return nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener) {
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		s.hooks.ProxyError(fmt.Errorf("relayserver: listener %s: %w", ln.Addr(), err))
	}
}

// Reset closes both listeners, clears all routing entries and certificates,
// and stops the reload scheduler. It is idempotent and safe to call
// concurrently with itself.
func (s *Server) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	var firstErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.httpsServer != nil {
		if err := s.httpsServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	s.table.Reset()
	s.certs = nil
	s.httpListener = nil
	s.httpsListener = nil
	s.httpServer = nil
	s.httpsServer = nil
	s.scheduler = nil
	s.started = false

	return firstErr
}

// Reload recomputes the certificate map on demand, outside the reload
// timer.
func (s *Server) Reload() error {
	s.mu.Lock()
	certs := s.certs
	s.mu.Unlock()
	if certs == nil {
		return fmt.Errorf("relayserver: not started")
	}
	return certs.Reload()
}

// Add compiles cfg and appends it to the entry table.
func (s *Server) Add(cfg config.EntryConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(cfg)
}

func (s *Server) addLocked(cfg config.EntryConfig) error {
	entry, err := routing.Compile(cfg)
	if err != nil {
		return err
	}
	s.table.Add(entry)
	return nil
}

// Entries returns a snapshot of the currently installed routing entries,
// for the admin surface.
func (s *Server) Entries() []routing.Entry {
	return s.table.Snapshot()
}

// ServeHTTP is the embeddable handler surface: find the matching entry (or
// invoke the fallback / answer 404), then route to the upgrade tunnel or
// the policy pipeline.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	entry, err := s.table.Find(r.Host, r.URL.Path)
	if err != nil {
		if s.settings.Fallback != nil {
			s.settings.Fallback.ServeHTTP(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if upgrade.IsUpgradeRequest(r) {
		s.tunnel.Handle(w, r, entry)
		return
	}

	s.pipeline.Dispatch(w, r, entry, r.TLS != nil)
}
