// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package certstore

import (
	"sync"
	"time"
)

const defaultDebounceDuration = 250 * time.Millisecond

// debouncer collapses a burst of calls with the same key into a single
// call. The Scheduler debounces every certificate-folder event under one
// key, so a certbot renewal (which typically
// rewrites both fullchain.pem and privkey.pem) triggers one reload instead
// of two.
type debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	timers   map[string]*time.Timer
}

func newDebouncer(duration time.Duration) *debouncer {
	if duration <= 0 {
		duration = defaultDebounceDuration
	}
	return &debouncer{duration: duration, timers: make(map[string]*time.Timer)}
}

// debounce schedules fn to run after d's duration, keyed by key. A call
// with the same key before the duration elapses resets the timer instead
// of scheduling a second run.
func (d *debouncer) debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, exists := d.timers[key]; exists {
		timer.Stop()
	}
	d.timers[key] = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

// stop cancels every pending debounced call.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}
