// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package routing

import (
	"errors"
	"strings"
	"sync"
)

// ErrNoMatch is returned by Find when no entry matches the given host and
// path.
var ErrNoMatch = errors.New("routing: no matching entry")

// Table is an ordered collection of routing entries. Insertion order is
// preserved and is part of the tie-break policy; entries are never
// reduced to a single-slot-per-domain map, since multiple entries can
// legitimately share a domain distinguished only by path.
type Table struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewTable creates an empty entry table.
func NewTable() *Table {
	return &Table{}
}

// Add appends an entry, preserving insertion order.
func (t *Table) Add(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
}

// Reset removes all entries.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}

// Len returns the number of entries currently installed.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Snapshot returns a copy of the currently installed entries, in insertion
// order, for read-only inspection (e.g. by the admin surface).
func (t *Table) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Find returns at most one entry matching host and path, or ErrNoMatch.
// host may carry a trailing ":port", which is stripped before comparison;
// path is an absolute path (request.URL.Path).
func (t *Table) Find(host, path string) (Entry, error) {
	host = normalizeHost(host)

	t.mu.RLock()
	defer t.mu.RUnlock()

	// Stage 1: domain filter.
	var eligible []Entry
	for _, e := range t.entries {
		if domainMatches(e.Domain, host) {
			eligible = append(eligible, e)
		}
	}

	if len(eligible) == 0 {
		return Entry{}, ErrNoMatch
	}
	if len(eligible) == 1 {
		return eligible[0], nil
	}

	// Stage 2: disambiguation. First entry in insertion order whose path is
	// set and matches, else the first entry with no path, else NoMatch.
	for _, e := range eligible {
		if e.Path != "" && (path == e.Path || strings.HasPrefix(path, e.Path+"/")) {
			return e, nil
		}
	}
	for _, e := range eligible {
		if e.Path == "" {
			return e, nil
		}
	}

	return Entry{}, ErrNoMatch
}

// normalizeHost lowercases host and strips a trailing ":port".
func normalizeHost(host string) string {
	host = strings.ToLower(host)
	if i := strings.LastIndexByte(host, ':'); i != -1 {
		// Guard against stripping a literal IPv6 address's colons; relay
		// only ever sees Host header values, which net/http already leaves
		// IPv6 literals bracketed (e.g. "[::1]:8080"), so a bare trailing
		// ":port" split is safe here.
		if !strings.Contains(host[i:], "]") {
			host = host[:i]
		}
	}
	return host
}

// parent strips the first dot-separated label from h, e.g. "a.b.c" -> "b.c".
func parent(h string) string {
	if i := strings.IndexByte(h, '.'); i != -1 {
		return h[i+1:]
	}
	return ""
}

// domainMatches reports whether an entry is domain-eligible for host: its
// domain equals host, or it is a "*.example.com" wildcard whose
// suffix equals host or host's parent domain.
func domainMatches(entryDomain, host string) bool {
	if entryDomain == host {
		return true
	}
	if strings.HasPrefix(entryDomain, "*.") {
		suffix := entryDomain[2:]
		return suffix == host || suffix == parent(host)
	}
	return false
}
