// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package upgrade implements the WebSocket upgrade tunnel: a byte-level
// splice between the client and the matched upstream after a successful 101
// handshake (spec.md §4.5). It reuses internal/forward's URL and header
// construction so the two paths never drift, and never parses WebSocket
// framing itself — only the handshake's HTTP envelope.
package upgrade

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/net/http/httpguts"

	"github.com/wingedpig/relay/internal/forward"
	"github.com/wingedpig/relay/internal/observe"
	"github.com/wingedpig/relay/internal/routing"
)

const spliceBufferSize = 32 * 1024

// Tunnel dials the matched upstream and splices raw bytes after a
// successful WebSocket handshake.
type Tunnel struct {
	dialer *net.Dialer
	hooks  *observe.Hooks
}

// New creates a Tunnel with a bounded upstream dial timeout.
func New(hooks *observe.Hooks) *Tunnel {
	return &Tunnel{
		dialer: &net.Dialer{Timeout: 10 * time.Second},
		hooks:  hooks,
	}
}

// IsUpgradeRequest reports whether r is an eligible WebSocket upgrade
// attempt: GET method and a case-insensitive, token-aware "websocket" value
// in the Upgrade header (spec.md §4.5's rejection conditions, inverted).
func IsUpgradeRequest(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	return httpguts.HeaderValuesContainsToken(r.Header["Upgrade"], "websocket")
}

// Handle validates and services one upgrade attempt against the matched
// entry e. It hijacks w's underlying connection; callers MUST NOT touch w
// or r after calling Handle. If e has no forwarding target, the hijacked
// connection is closed without a response, per spec.md §4.5/§7's "invalid
// upgrade attempt: socket destroyed, no response written". If w cannot be
// hijacked, Handle returns without writing or closing anything.
func (t *Tunnel) Handle(w http.ResponseWriter, r *http.Request, e routing.Entry) {
	if !IsUpgradeRequest(r) || e.Target == nil {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
			}
		}
		return
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		return
	}
	clientConn, clientBuf, err := hj.Hijack()
	if err != nil {
		return
	}

	targetURL := forward.BuildUpstreamURL(e, r.URL.Path, r.URL.RawQuery)

	upstreamConn, err := t.dialer.Dial("tcp", targetURL.Host)
	if err != nil {
		t.hooks.ProxyError(fmt.Errorf("upgrade: dial upstream: %w", err))
		clientConn.Close()
		return
	}

	tuneClientSocket(clientConn)

	upstreamReq, err := http.NewRequest(http.MethodGet, targetURL.String(), nil)
	if err != nil {
		t.hooks.ProxyError(fmt.Errorf("upgrade: build upstream request: %w", err))
		clientConn.Close()
		upstreamConn.Close()
		return
	}
	forward.RewriteHeaders(upstreamReq, r, e, r.TLS != nil)

	if err := upstreamReq.Write(upstreamConn); err != nil {
		t.hooks.ProxyError(fmt.Errorf("upgrade: write upstream request: %w", err))
		clientConn.Close()
		upstreamConn.Close()
		return
	}

	// Any bytes the server already read off the client socket belong ahead
	// of whatever the client sends next; push them onto the upstream side.
	if n := clientBuf.Reader.Buffered(); n > 0 {
		head := make([]byte, n)
		_, _ = io.ReadFull(clientBuf.Reader, head)
		if _, err := upstreamConn.Write(head); err != nil {
			t.hooks.ProxyError(fmt.Errorf("upgrade: replay client head: %w", err))
			clientConn.Close()
			upstreamConn.Close()
			return
		}
	}

	upstreamReader := bufio.NewReader(upstreamConn)
	resp, err := http.ReadResponse(upstreamReader, upstreamReq)
	if err != nil {
		t.hooks.ProxyError(fmt.Errorf("upgrade: read upstream handshake: %w", err))
		clientConn.Close()
		upstreamConn.Close()
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.hooks.ProxyError(fmt.Errorf("upgrade: upstream handshake status %d", resp.StatusCode))
		clientConn.Close()
		upstreamConn.Close()
		return
	}

	head := serializeSwitchingProtocolsHead(resp)
	if _, err := clientConn.Write(head); err != nil {
		t.hooks.ProxyError(fmt.Errorf("upgrade: write handshake to client: %w", err))
		clientConn.Close()
		upstreamConn.Close()
		return
	}

	// Mirror the client-side replay for bytes net/http's bufio.Reader
	// already pulled off the upstream socket while parsing the handshake.
	if n := upstreamReader.Buffered(); n > 0 {
		buffered := make([]byte, n)
		_, _ = io.ReadFull(upstreamReader, buffered)
		if _, err := clientConn.Write(buffered); err != nil {
			t.hooks.ProxyError(fmt.Errorf("upgrade: replay upstream head: %w", err))
			clientConn.Close()
			upstreamConn.Close()
			return
		}
	}

	t.splice(clientConn, upstreamConn)
}

// splice bidirectionally copies bytes between the client and upstream
// connections until either side closes or errors, per spec.md §4.5. An
// incoming-socket (client) error additionally closes the upstream side.
func (t *Tunnel) splice(clientConn, upstreamConn net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		buf := bytebufferpool.Get()
		defer bytebufferpool.Put(buf)
		scratch := growScratch(buf, spliceBufferSize)
		if _, err := io.CopyBuffer(upstreamConn, clientConn, scratch); err != nil {
			t.hooks.ProxyError(fmt.Errorf("upgrade: client->upstream: %w", err))
			upstreamConn.Close()
		}
		closeWrite(upstreamConn)
	}()

	go func() {
		defer wg.Done()
		buf := bytebufferpool.Get()
		defer bytebufferpool.Put(buf)
		scratch := growScratch(buf, spliceBufferSize)
		if _, err := io.CopyBuffer(clientConn, upstreamConn, scratch); err != nil {
			t.hooks.ProxyError(fmt.Errorf("upgrade: upstream->client: %w", err))
		}
		closeWrite(clientConn)
	}()

	wg.Wait()
	clientConn.Close()
	upstreamConn.Close()
}

func growScratch(buf *bytebufferpool.ByteBuffer, size int) []byte {
	if cap(buf.B) < size {
		buf.B = make([]byte, size)
	}
	return buf.B[:size]
}

// tuneClientSocket disables the idle timeout and enables TCP_NODELAY and
// keepalive on the hijacked client connection, per spec.md §4.5.
func tuneClientSocket(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	_ = tc.SetDeadline(time.Time{})
	_ = tc.SetNoDelay(true)
	_ = tc.SetKeepAlive(true)
	_ = tc.SetKeepAlivePeriod(30 * time.Second)
}

// closeWrite half-closes conn for writing when possible, so the peer
// observes EOF without losing any data it has already sent in the other
// direction; falls back to a full close for connection types that don't
// support CloseWrite.
func closeWrite(conn net.Conn) {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := conn.(writeCloser); ok {
		_ = wc.CloseWrite()
		return
	}
	conn.Close()
}

// serializeSwitchingProtocolsHead renders resp as a raw
// "HTTP/1.1 101 Switching Protocols" response head, with multi-valued
// headers emitted as one line per value, per spec.md §4.5.
func serializeSwitchingProtocolsHead(resp *http.Response) []byte {
	var b bytes.Buffer
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")

	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, v := range resp.Header[k] {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\r\n")
		}
	}
	b.WriteString("\r\n")
	return b.Bytes()
}
