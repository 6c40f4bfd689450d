// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wingedpig/relay/internal/routing"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// entrySummary is the no-secrets view of a routing.Entry exposed by
// GET /entries: Authorization is deliberately omitted.
type entrySummary struct {
	Domain           string `json:"domain"`
	Target           string `json:"target,omitempty"`
	Path             string `json:"path,omitempty"`
	RedirectToHTTPS  bool   `json:"redirect_to_https,omitempty"`
	RedirectToURL    string `json:"redirect_to_url,omitempty"`
	RedirectToDomain string `json:"redirect_to_domain,omitempty"`
	CORS             bool   `json:"cors,omitempty"`
	PreserveHost     bool   `json:"preserve_host,omitempty"`
	HasAuth          bool   `json:"has_auth"`
}

func summarize(e routing.Entry) entrySummary {
	s := entrySummary{
		Domain:           e.Domain,
		Path:             e.Path,
		RedirectToHTTPS:  e.RedirectToHTTPS,
		RedirectToURL:    e.RedirectToURL,
		RedirectToDomain: e.RedirectToDomain,
		CORS:             e.CORS,
		PreserveHost:     e.PreserveHost,
		HasAuth:          e.Authorization != "",
	}
	if e.Target != nil {
		s.Target = e.Target.String()
	}
	return s
}

// NewRouter builds the admin diagnostics router. entries is called on
// every request to GET /entries so the dump always reflects the live
// table; hub feeds the /admin/events WebSocket tail.
func NewRouter(entries func() []routing.Entry, hub *Hub) *mux.Router {
	r := mux.NewRouter()
	r.Use(logging)
	r.Use(recovery)

	r.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/entries", handleEntries(entries)).Methods(http.MethodGet)
	r.HandleFunc("/admin/events", handleEvents(hub)).Methods(http.MethodGet)

	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleEntries(entries func() []routing.Entry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		live := entries()
		out := make([]entrySummary, len(live))
		for i, e := range live {
			out[i] = summarize(e)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

func handleEvents(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		pingTicker := time.NewTicker(30 * time.Second)
		defer pingTicker.Stop()

		// Drain and discard client reads so pong frames are processed;
		// this handler never expects inbound application messages.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteJSON(event); err != nil {
					return
				}
			case <-pingTicker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
