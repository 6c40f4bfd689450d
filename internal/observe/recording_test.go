// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package observe

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingHooks is a test double that captures every call made through
// Hooks, in the style of the teacher's middleware tests asserting on
// recorded state rather than side effects.
type recordingHooks struct {
	mu          sync.Mutex
	snis        []string
	proxyErrors []error
	errors      []error
}

func newRecordingHooks() (*Hooks, *recordingHooks) {
	r := &recordingHooks{}
	h := &Hooks{
		OnSNI:        func(domain string) { r.mu.Lock(); defer r.mu.Unlock(); r.snis = append(r.snis, domain) },
		OnProxyError: func(err error) { r.mu.Lock(); defer r.mu.Unlock(); r.proxyErrors = append(r.proxyErrors, err) },
		OnError:      func(err error) { r.mu.Lock(); defer r.mu.Unlock(); r.errors = append(r.errors, err) },
	}
	return h, r
}

func TestHooks_NilSafe(t *testing.T) {
	var h *Hooks
	assert.NotPanics(t, func() {
		h.SNI("example.com")
		h.ProxyError(errors.New("boom"))
		h.Error(errors.New("boom"))
	})

	empty := &Hooks{}
	assert.NotPanics(t, func() {
		empty.SNI("example.com")
		empty.ProxyError(errors.New("boom"))
		empty.Error(errors.New("boom"))
	})
}

func TestHooks_RecordsCalls(t *testing.T) {
	h, r := newRecordingHooks()

	h.SNI("example.com")
	h.ProxyError(errors.New("refused"))
	h.Error(errors.New("load failed"))

	assert.Equal(t, []string{"example.com"}, r.snis)
	assert.Len(t, r.proxyErrors, 1)
	assert.Len(t, r.errors, 1)
}
