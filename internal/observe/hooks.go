// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package observe provides the optional observation interface described in
// spec.md §9: a small set of hooks replacing the source's event emitter, so
// callers can observe SNI selections, certificate load failures, and
// transport/upgrade errors without relay requiring a consumer.
package observe

// Hooks is the observation interface. Every method is optional: a nil Hooks
// value, or any nil field inside one, is always safe to invoke through the
// helper functions below.
type Hooks struct {
	// OnSNI is called with the root domain whose certificate was selected
	// during a TLS handshake.
	OnSNI func(rootDomain string)

	// OnProxyError is called with any transport or upgrade error observed
	// while forwarding a request or splicing an upgrade tunnel.
	OnProxyError func(err error)

	// OnError is called with a certificate-load failure for one domain
	// during a Certificate Store reload; the reload continues for other
	// domains.
	OnError func(err error)
}

// SNI invokes h.OnSNI if h and the field are both non-nil.
func (h *Hooks) SNI(rootDomain string) {
	if h != nil && h.OnSNI != nil {
		h.OnSNI(rootDomain)
	}
}

// ProxyError invokes h.OnProxyError if h and the field are both non-nil.
func (h *Hooks) ProxyError(err error) {
	if h != nil && h.OnProxyError != nil {
		h.OnProxyError(err)
	}
}

// Error invokes h.OnError if h and the field are both non-nil.
func (h *Hooks) Error(err error) {
	if h != nil && h.OnError != nil {
		h.OnError(err)
	}
}
