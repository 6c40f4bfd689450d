// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package routing implements the entry table: an ordered collection of
// routing entries matched by request host and path.
package routing

import (
	"fmt"
	"net/url"

	"github.com/wingedpig/relay/internal/config"
)

// Entry is an immutable routing rule: domain + optional path + action
// (forward or redirect) + modifiers (auth, CORS, headers, preserveHost).
type Entry struct {
	Domain           string
	Target           *url.URL
	Path             string
	Authorization    string
	RedirectToHTTPS  bool
	RedirectToURL    string
	RedirectToDomain string
	CORS             bool
	Headers          string
	PreserveHost     bool
}

// HasAction reports whether the entry can ever produce a successful
// response on its own.
func (e Entry) HasAction() bool {
	return e.Target != nil || e.RedirectToURL != "" || e.RedirectToDomain != "" || e.RedirectToHTTPS
}

// Compile builds an Entry from an EntryConfig, parsing the target URL.
// Implementers MAY reject at insertion an entry with no action; Compile is
// where relay does so.
func Compile(cfg config.EntryConfig) (Entry, error) {
	e := Entry{
		Domain:           cfg.Domain,
		Path:             cfg.Path,
		Authorization:    cfg.Authorization,
		RedirectToHTTPS:  cfg.RedirectToHTTPS,
		RedirectToURL:    cfg.RedirectToURL,
		RedirectToDomain: cfg.RedirectToDomain,
		CORS:             cfg.CORS,
		Headers:          cfg.Headers,
		PreserveHost:     cfg.PreserveHost,
	}

	if cfg.Domain == "" {
		return Entry{}, fmt.Errorf("routing: entry domain is required")
	}

	if cfg.Target != "" {
		target, err := url.Parse(cfg.Target)
		if err != nil {
			return Entry{}, fmt.Errorf("routing: invalid target %q: %w", cfg.Target, err)
		}
		e.Target = target
	}

	if !e.HasAction() {
		return Entry{}, fmt.Errorf("routing: entry for domain %q has no target or redirect action", cfg.Domain)
	}

	return e, nil
}
