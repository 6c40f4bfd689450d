// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package forward implements the streaming forward path: upstream URL
// construction, header rewriting, request/response streaming, and transport
// error mapping. Transport settings are grounded on
// go-core-stack/mcp-auth-proxy's pkg/proxy/proxy.go, the only other example
// repo in the retrieval pack that is itself an HTTP reverse proxy.
package forward

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/wingedpig/relay/internal/cors"
	"github.com/wingedpig/relay/internal/observe"
	"github.com/wingedpig/relay/internal/routing"
)

// copyBufferSize matches net/http's internal io.Copy default chunk size.
const copyBufferSize = 32 * 1024

// Forwarder builds and streams requests to upstream origins.
type Forwarder struct {
	client *http.Client
	hooks  *observe.Hooks
}

// New creates a Forwarder with connection pooling defaults modeled on
// mcp-auth-proxy's outbound transport (DialContext timeout/keepalive, idle
// conn reuse, TLS handshake timeout).
func New(hooks *observe.Hooks) *Forwarder {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Forwarder{
		client: &http.Client{
			Transport: transport,
			// No overall request timeout: upstream bodies may legitimately
			// stream for a long time, so only socket-level deadlines apply.
		},
		hooks: hooks,
	}
}

// BuildUpstreamURL resolves the incoming request path against entry.Target:
// the leading "/" is stripped, the remainder is appended
// to the target's own path (so the target's path is a prefix, not
// replaced), and entry.Path's first occurrence is then removed from the
// result if set.
func BuildUpstreamURL(e routing.Entry, requestPath, rawQuery string) *url.URL {
	resolved := *e.Target

	remainder := strings.TrimPrefix(requestPath, "/")
	basePath := e.Target.Path

	resolved.Path = basePath + remainder

	if e.Path != "" {
		resolved.Path = strings.Replace(resolved.Path, e.Path, "", 1)
	}

	resolved.RawQuery = rawQuery
	return &resolved
}

// RewriteHeaders copies incoming headers to the upstream request, applies
// entry.Headers overrides, and sets Host/X-Forwarded-*/Forwarded in that
// order so per-entry overrides can still be replaced by the forwarding
// headers below them.
func RewriteHeaders(upstream *http.Request, r *http.Request, e routing.Entry, isTLS bool) {
	for k, vv := range r.Header {
		for _, v := range vv {
			upstream.Header.Add(k, v)
		}
	}

	if e.Headers != "" {
		for _, part := range strings.Split(e.Headers, "|") {
			kv := strings.SplitN(part, ":", 2)
			if len(kv) != 2 {
				continue
			}
			key := strings.TrimSpace(kv[0])
			value := strings.TrimSpace(kv[1])
			if key == "" {
				continue
			}
			upstream.Header.Set(key, value)
		}
	}

	scheme := "http"
	if isTLS {
		scheme = "https"
	}

	incomingHost := r.Host
	if e.PreserveHost {
		upstream.Host = incomingHost
		upstream.Header.Set("Host", incomingHost)
	} else {
		upstream.Host = e.Target.Host
		upstream.Header.Set("Host", e.Target.Host)
	}

	upstream.Header.Set("X-Forwarded-For", incomingHost)
	upstream.Header.Set("X-Forwarded-Proto", scheme)
	upstream.Header.Set("Forwarded", "host="+incomingHost+";proto="+scheme)
}

// Forward builds the upstream request, streams the incoming body to it,
// streams the upstream response back to w, and maps transport errors to
// an HTTP status. An error after the response headers have been written
// aborts the response instead of writing a new status.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, e routing.Entry, isTLS bool) {
	if e.Target == nil {
		// A redirect-only entry (e.g. redirectToHttps with no target) that
		// reaches Forward means every policy step ahead of it declined to
		// produce a response — already-TLS on redirectToHttps, or a direct
		// HTTPS hit on a domain whose certificate happens to be loaded.
		// There is no upstream to build a request against.
		w.WriteHeader(http.StatusNotFound)
		return
	}

	targetURL := BuildUpstreamURL(e, r.URL.Path, r.URL.RawQuery)

	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, targetURL.String(), r.Body)
	if err != nil {
		f.hooks.ProxyError(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	upstreamReq.ContentLength = r.ContentLength

	RewriteHeaders(upstreamReq, r, e, isTLS)

	resp, err := f.client.Do(upstreamReq)
	if err != nil {
		f.hooks.ProxyError(err)
		w.WriteHeader(statusForTransportError(err))
		return
	}
	defer resp.Body.Close()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}

	if cors.IsSimpleCrossOrigin(r, e.CORS) {
		cors.ApplyHeaders(w, r)
	}

	w.WriteHeader(resp.StatusCode)

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if cap(buf.B) < copyBufferSize {
		buf.B = make([]byte, copyBufferSize)
	}
	scratch := buf.B[:copyBufferSize]

	if _, err := copyBuffer(w, resp.Body, scratch); err != nil {
		// Headers (and a status line) are already on the wire; there is no
		// status to rewrite. Tear the response down and report the error.
		f.hooks.ProxyError(err)
		panic(http.ErrAbortHandler)
	}
}

// copyBuffer streams src to dst using buf, flushing after each chunk when
// dst supports it so writer back-pressure is honored rather
// than buffering an unbounded response in memory.
func copyBuffer(dst http.ResponseWriter, src io.Reader, buf []byte) (int64, error) {
	flusher, _ := dst.(http.Flusher)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return written, nil
			}
			return written, rerr
		}
	}
}

// statusForTransportError maps a transport-level error observed before any
// response headers are written to an HTTP status:
// connection refused/reset map to 502, anything else to 500.
func statusForTransportError(err error) int {
	if isConnRefusedOrReset(err) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func isConnRefusedOrReset(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
