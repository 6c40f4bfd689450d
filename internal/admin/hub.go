// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"sync"
	"time"

	"github.com/wingedpig/relay/internal/observe"
)

// Event is one observation recorded for the /admin/events live tail.
type Event struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Hub fans out observe.Hooks callbacks to connected admin WebSocket
// clients. It never buffers unboundedly: a slow client drops events rather
// than blocking the proxy's own dispatch path.
type Hub struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan Event]struct{})}
}

// Broadcast delivers e to every currently subscribed client, dropping it
// for clients whose buffer is full.
func (h *Hub) Broadcast(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new client channel.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a client channel previously returned by
// Subscribe.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Hooks returns an observe.Hooks that broadcasts every callback to h,
// ready to be shared with relayserver.Server.
func (h *Hub) Hooks() *observe.Hooks {
	return &observe.Hooks{
		OnSNI: func(rootDomain string) {
			h.Broadcast(Event{Kind: "sni", Message: rootDomain, At: time.Now()})
		},
		OnProxyError: func(err error) {
			h.Broadcast(Event{Kind: "proxyerror", Message: err.Error(), At: time.Now()})
		},
		OnError: func(err error) {
			h.Broadcast(Event{Kind: "error", Message: err.Error(), At: time.Now()})
		},
	}
}
