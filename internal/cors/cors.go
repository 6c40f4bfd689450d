// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package cors implements the CORS header rewriting shared by the policy
// pipeline's preflight branch and the forwarder's simple cross-origin
// response path.
package cors

import "net/http"

const defaultAllowedMethods = "GET,HEAD,PUT,PATCH,POST,DELETE"

// ApplyHeaders sets the CORS response headers on w for a request carrying
// an Origin header on a cors-enabled entry. It is the single source of
// truth for the five CORS headers, used both on preflight (204) responses
// and on simple cross-origin responses.
func ApplyHeaders(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")

	h := w.Header()
	h.Add("Vary", "Origin")
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Credentials", "true")

	if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
		h.Set("Access-Control-Allow-Headers", reqHeaders)
	} else {
		h.Set("Access-Control-Allow-Headers", "*")
	}

	if reqMethod := r.Header.Get("Access-Control-Request-Method"); reqMethod != "" {
		h.Set("Access-Control-Allow-Methods", reqMethod)
	} else {
		h.Set("Access-Control-Allow-Methods", defaultAllowedMethods)
	}
}

// IsPreflight reports whether r is a CORS preflight request: method
// OPTIONS, entry.CORS enabled, and an Origin header present.
func IsPreflight(r *http.Request, entryCORS bool) bool {
	return entryCORS && r.Method == http.MethodOptions && r.Header.Get("Origin") != ""
}

// IsSimpleCrossOrigin reports whether r qualifies for simple cross-origin
// response headers: method != OPTIONS, entry.CORS enabled,
// request has an Origin header.
func IsSimpleCrossOrigin(r *http.Request, entryCORS bool) bool {
	return entryCORS && r.Method != http.MethodOptions && r.Header.Get("Origin") != ""
}
