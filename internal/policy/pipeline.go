// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package policy implements the per-entry decision sequence run once a
// routing entry has been matched: authorization, then the three redirect
// forms, then CORS preflight, then forward.
package policy

import (
	"net/http"
	"strings"

	"github.com/wingedpig/relay/internal/cors"
	"github.com/wingedpig/relay/internal/forward"
	"github.com/wingedpig/relay/internal/routing"
)

// Pipeline runs the fixed policy decision sequence for a matched entry.
type Pipeline struct {
	forwarder *forward.Forwarder
}

// New creates a Pipeline backed by the given Forwarder.
func New(forwarder *forward.Forwarder) *Pipeline {
	return &Pipeline{forwarder: forwarder}
}

// Dispatch runs the policy pipeline against a matched entry. isTLS
// indicates whether the incoming connection is plaintext or TLS.
func (p *Pipeline) Dispatch(w http.ResponseWriter, r *http.Request, e routing.Entry, isTLS bool) {
	if p.checkAuthorization(w, r, e) {
		return
	}
	if p.redirectToDomain(w, r, e) {
		return
	}
	if p.redirectToURL(w, r, e) {
		return
	}
	if p.redirectToHTTPS(w, r, e, isTLS) {
		return
	}
	if p.preflight(w, r, e) {
		return
	}
	p.forwarder.Forward(w, r, e, isTLS)
}

// checkAuthorization implements spec.md §4.2 step 1. Returns true if it
// produced a response (meaning the pipeline should stop).
func (p *Pipeline) checkAuthorization(w http.ResponseWriter, r *http.Request, e routing.Entry) bool {
	if e.Authorization == "" {
		return false
	}

	got := r.Header.Get("Authorization")
	got = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(got), "Basic"))
	got = strings.TrimSpace(got)

	if got != "" && got == e.Authorization {
		return false
	}

	w.Header().Set("WWW-Authenticate", `Basic realm="Y u no password"`)
	w.WriteHeader(http.StatusUnauthorized)
	return true
}

// redirectToDomain implements spec.md §4.2 step 2.
func (p *Pipeline) redirectToDomain(w http.ResponseWriter, r *http.Request, e routing.Entry) bool {
	if e.RedirectToDomain == "" {
		return false
	}
	location := "https://" + e.RedirectToDomain + r.URL.RequestURI()
	w.Header().Set("Location", location)
	http.Error(w, "Moved somewhere else", http.StatusFound)
	return true
}

// redirectToURL implements spec.md §4.2 step 3. The incoming path is NOT
// appended to the literal URL.
func (p *Pipeline) redirectToURL(w http.ResponseWriter, r *http.Request, e routing.Entry) bool {
	if e.RedirectToURL == "" {
		return false
	}
	w.Header().Set("Location", e.RedirectToURL)
	http.Error(w, "Moved somewhere else", http.StatusFound)
	return true
}

// redirectToHTTPS implements spec.md §4.2 step 4.
func (p *Pipeline) redirectToHTTPS(w http.ResponseWriter, r *http.Request, e routing.Entry, isTLS bool) bool {
	if !e.RedirectToHTTPS || isTLS {
		return false
	}
	location := "https://" + r.Host + r.URL.RequestURI()
	w.Header().Set("Location", location)
	http.Error(w, "HTTPS is better", http.StatusMovedPermanently)
	return true
}

// preflight implements spec.md §4.2 step 5 / §4.3.
func (p *Pipeline) preflight(w http.ResponseWriter, r *http.Request, e routing.Entry) bool {
	if !cors.IsPreflight(r, e.CORS) {
		return false
	}
	cors.ApplyHeaders(w, r)
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusNoContent)
	return true
}
