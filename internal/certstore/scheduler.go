// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package certstore

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/wingedpig/relay/internal/observe"
)

const reloadKey = "reload"

// Scheduler drives Store.Reload on a timer and, optionally,
// on filesystem change notifications for certificatesFolder. A timer tick
// racing an fsnotify-triggered reload is collapsed into one in-flight
// Store.Reload call via singleflight, so no lock is held across the
// filesystem walk while concurrent reloads still serialize.
type Scheduler struct {
	store    *Store
	interval time.Duration
	watch    bool
	hooks    *observe.Hooks

	sf        singleflight.Group
	debouncer *debouncer
	fsWatcher *fsnotify.Watcher

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler for store. interval of 0 disables the
// timer. watch enables the fsnotify trigger.
func NewScheduler(store *Store, interval time.Duration, watch bool, hooks *observe.Hooks) *Scheduler {
	return &Scheduler{
		store:     store,
		interval:  interval,
		watch:     watch,
		hooks:     hooks,
		debouncer: newDebouncer(defaultDebounceDuration),
	}
}

// Start loads certificates once, then starts the timer and/or filesystem
// watch goroutines. Safe to call at most once per Scheduler; callers that
// need to restart should construct a new Scheduler rather than resume this
// one.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.store.Reload(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.interval > 0 {
		s.wg.Add(1)
		go s.runTicker(ctx)
	}

	if s.watch && s.store.certificatesFolder != "" {
		if err := s.startWatch(ctx); err != nil {
			s.hooks.Error(err)
		}
	}

	return nil
}

// Stop cancels the timer and filesystem watch and waits for both
// goroutines to exit. Idempotent and safe to call concurrently with itself.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.debouncer.stop()
	if s.fsWatcher != nil {
		_ = s.fsWatcher.Close()
	}
	s.wg.Wait()
}

func (s *Scheduler) runTicker(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reloadOnce()
		}
	}
}

// reloadOnce runs Store.Reload deduplicated against any concurrently
// in-flight reload, reporting failures via hooks.Error. A reload failure is
// never fatal to the scheduler.
func (s *Scheduler) reloadOnce() {
	_, err, _ := s.sf.Do(reloadKey, func() (interface{}, error) {
		return nil, s.store.Reload()
	})
	if err != nil {
		s.hooks.Error(err)
	}
}

func (s *Scheduler) startWatch(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.fsWatcher = fsWatcher

	if err := fsWatcher.Add(s.store.certificatesFolder); err != nil {
		return err
	}

	entries, err := readDirNames(s.store.certificatesFolder)
	if err == nil {
		for _, name := range entries {
			_ = fsWatcher.Add(filepath.Join(s.store.certificatesFolder, name))
		}
	}

	s.wg.Add(1)
	go s.processWatchEvents(ctx)
	return nil
}

func (s *Scheduler) processWatchEvents(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.fsWatcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s.debouncer.debounce(reloadKey, s.reloadOnce)
		case err, ok := <-s.fsWatcher.Errors:
			if !ok {
				return
			}
			s.hooks.Error(err)
		}
	}
}
