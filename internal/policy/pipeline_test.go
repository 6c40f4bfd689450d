// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/relay/internal/forward"
	"github.com/wingedpig/relay/internal/routing"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestPipeline_Authorization_MissingHeader(t *testing.T) {
	p := New(forward.New(nil))
	e := routing.Entry{Authorization: "dGVzdDp0ZXN0"}
	r := httptest.NewRequest("GET", "http://example.com/", nil)
	w := httptest.NewRecorder()

	p.Dispatch(w, r, e, false)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Basic realm="Y u no password"`, w.Header().Get("WWW-Authenticate"))
}

func TestPipeline_Authorization_Mismatch(t *testing.T) {
	p := New(forward.New(nil))
	e := routing.Entry{Authorization: "dGVzdDp0ZXN0"}
	r := httptest.NewRequest("GET", "http://example.com/", nil)
	r.Header.Set("Authorization", "Basic wrong")
	w := httptest.NewRecorder()

	p.Dispatch(w, r, e, false)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPipeline_Authorization_MatchProceedsToForward(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	p := New(forward.New(nil))
	e := routing.Entry{Authorization: "dGVzdDp0ZXN0", Target: mustURL(t, upstream.URL+"/")}
	r := httptest.NewRequest("GET", "http://example.com/", nil)
	r.Header.Set("Authorization", "Basic dGVzdDp0ZXN0")
	w := httptest.NewRecorder()

	p.Dispatch(w, r, e, false)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPipeline_RedirectToDomain(t *testing.T) {
	p := New(forward.New(nil))
	e := routing.Entry{RedirectToDomain: "redirect.com"}
	r := httptest.NewRequest("GET", "http://example.com/redirectDomain", nil)
	w := httptest.NewRecorder()

	p.Dispatch(w, r, e, false)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://redirect.com/redirectDomain", w.Header().Get("Location"))
}

func TestPipeline_RedirectToURL_DoesNotAppendPath(t *testing.T) {
	p := New(forward.New(nil))
	e := routing.Entry{RedirectToURL: "http://another.example.com/foo"}
	r := httptest.NewRequest("GET", "http://example.com/anything", nil)
	w := httptest.NewRecorder()

	p.Dispatch(w, r, e, false)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://another.example.com/foo", w.Header().Get("Location"))
}

func TestPipeline_RedirectToHTTPS(t *testing.T) {
	p := New(forward.New(nil))
	e := routing.Entry{RedirectToHTTPS: true}
	r := httptest.NewRequest("GET", "http://example.com/path?x=1", nil)
	r.Host = "example.com"
	w := httptest.NewRecorder()

	p.Dispatch(w, r, e, false)

	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "https://example.com/path?x=1", w.Header().Get("Location"))
}

func TestPipeline_RedirectToHTTPS_SkippedWhenAlreadyTLS(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	p := New(forward.New(nil))
	e := routing.Entry{RedirectToHTTPS: true, Target: mustURL(t, upstream.URL+"/")}
	r := httptest.NewRequest("GET", "http://example.com/path", nil)
	w := httptest.NewRecorder()

	p.Dispatch(w, r, e, true)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPipeline_RedirectToHTTPS_NoTargetOverTLSAnswers404(t *testing.T) {
	// spec.md §8 scenario 3's entry has no target at all. Matched directly
	// over TLS (redirectToHTTPS doesn't apply since the connection is
	// already TLS), the pipeline falls through to forward, which must not
	// panic on a nil Target.
	p := New(forward.New(nil))
	e := routing.Entry{RedirectToHTTPS: true}
	r := httptest.NewRequest("GET", "http://example.com/path", nil)
	w := httptest.NewRecorder()

	assert.NotPanics(t, func() {
		p.Dispatch(w, r, e, true)
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPipeline_CORSPreflight(t *testing.T) {
	p := New(forward.New(nil))
	e := routing.Entry{CORS: true, Target: mustURL(t, "http://127.0.0.1:1/")}
	r := httptest.NewRequest("OPTIONS", "http://example.com/cors", nil)
	r.Header.Set("Origin", "http://example.com/")
	w := httptest.NewRecorder()

	p.Dispatch(w, r, e, false)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "0", w.Header().Get("Content-Length"))
	assert.Equal(t, "http://example.com/", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPipeline_PolicyOrdering_AuthBeforeRedirect(t *testing.T) {
	p := New(forward.New(nil))
	e := routing.Entry{Authorization: "dGVzdDp0ZXN0", RedirectToHTTPS: true}
	r := httptest.NewRequest("GET", "http://example.com/", nil)
	w := httptest.NewRecorder()

	p.Dispatch(w, r, e, false)

	// Auth is checked first, so an unauthenticated request never reaches
	// the HTTPS redirect even though redirectToHttps is also set.
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPipeline_PolicyOrdering_RedirectBeforeCORS(t *testing.T) {
	p := New(forward.New(nil))
	e := routing.Entry{RedirectToHTTPS: true, CORS: true}
	r := httptest.NewRequest("OPTIONS", "http://example.com/", nil)
	r.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()

	p.Dispatch(w, r, e, false)

	assert.Equal(t, http.StatusMovedPermanently, w.Code)
}

func TestPipeline_NoEntry_404(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://example.com/notFound", nil)
	http.NotFound(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
