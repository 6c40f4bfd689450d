// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/relay/internal/routing"
)

func TestRecovery_PanicReturnsJSONError(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	srv := httptest.NewServer(recovery(panicking))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "INTERNAL_ERROR", body["error"]["code"])
}

func TestHandleHealthz(t *testing.T) {
	r := NewRouter(func() []routing.Entry { return nil }, NewHub())
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleEntries_OmitsAuthorization(t *testing.T) {
	target, err := url.Parse("http://127.0.0.1:9000/")
	require.NoError(t, err)

	entries := func() []routing.Entry {
		return []routing.Entry{{Domain: "example.com", Target: target, Authorization: "dGVzdDp0ZXN0"}}
	}

	r := NewRouter(entries, NewHub())
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/entries")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var got []entrySummary
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "example.com", got[0].Domain)
	assert.True(t, got[0].HasAuth)
	assert.NotContains(t, string(raw), "dGVzdDp0ZXN0")
}

func TestHandleEvents_StreamsHubBroadcasts(t *testing.T) {
	hub := NewHub()
	r := NewRouter(func() []routing.Entry { return nil }, hub)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/admin/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		return n == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast(Event{Kind: "sni", Message: "example.com", At: time.Now()})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "sni", got.Kind)
	assert.Equal(t, "example.com", got.Message)
}

func TestHub_HooksWireUpBroadcast(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hooks := hub.Hooks()
	hooks.SNI("example.com")

	select {
	case e := <-ch:
		assert.Equal(t, "sni", e.Kind)
		assert.Equal(t, "example.com", e.Message)
	case <-time.After(time.Second):
		t.Fatal("expected broadcast event")
	}
}
