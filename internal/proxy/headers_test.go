package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://proxy.local/x", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	r.Header.Set("Connection", "keep-alive, X-Session")
	r.Header.Set("X-Session", "abc")
	r.Header.Set("Keep-Alive", "timeout=5")
	r.Header.Set("Accept-Encoding", "gzip")
	r.Header.Set("X-Forwarded-For", "192.0.2.1")
	r.Header.Set("Accept", "application/json")

	h := upstreamHeaders(r, "req-1", "secret", "requrl")

	assert.Empty(t, h.Get("Connection"))
	assert.Empty(t, h.Get("X-Session"))
	assert.Empty(t, h.Get("Keep-Alive"))
	assert.Empty(t, h.Get("Accept-Encoding"))
	assert.Equal(t, "application/json", h.Get("Accept"))
	assert.Equal(t, "Bearer secret", h.Get("Authorization"))
	assert.Equal(t, "requrl", h.Get("User-Agent"))
	assert.Equal(t, "192.0.2.1, 10.0.0.7", h.Get("X-Forwarded-For"))
	assert.Equal(t, "proxy.local", h.Get("X-Forwarded-Host"))
	assert.Equal(t, "http", h.Get("X-Forwarded-Proto"))
	assert.Equal(t, "req-1", h.Get(requestIDHeader))

	// the inbound request is left alone
	assert.Equal(t, "abc", r.Header.Get("X-Session"))
}

func TestUpstreamHeaders_KeepsCallerValues(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer caller")
	r.Header.Set("User-Agent", "curl/8")

	h := upstreamHeaders(r, "req-2", "secret", "requrl")

	assert.Equal(t, "Bearer caller", h.Get("Authorization"))
	assert.Equal(t, "curl/8", h.Get("User-Agent"))
}

func TestClientHeaders(t *testing.T) {
	upstream := http.Header{}
	upstream.Set("Content-Type", "text/plain")
	upstream.Set("Content-Encoding", "gzip")
	upstream.Set("Content-Length", "12")
	upstream.Set("Transfer-Encoding", "chunked")
	upstream.Add("Set-Cookie", "a=1")
	upstream.Add("Set-Cookie", "b=2")

	h := clientHeaders(upstream, "req-3")

	assert.Equal(t, "text/plain", h.Get("Content-Type"))
	assert.Equal(t, []string{"a=1", "b=2"}, h.Values("Set-Cookie"))
	assert.Empty(t, h.Get("Content-Encoding"))
	assert.Empty(t, h.Get("Content-Length"))
	assert.Empty(t, h.Get("Transfer-Encoding"))
	assert.Equal(t, "req-3", h.Get(requestIDHeader))
	assert.Equal(t, "gzip", upstream.Get("Content-Encoding"))
}
