package proxy

import (
	"net"
	"net/http"
	"strings"
)

const requestIDHeader = "X-Request-Id"

// Connection-scoped headers, never forwarded in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// stripHopByHop removes the fixed hop-by-hop set plus any header named in
// the Connection header.
func stripHopByHop(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, key := range hopByHopHeaders {
		h.Del(key)
	}
}

// upstreamHeaders builds the header sent upstream for r.
func upstreamHeaders(r *http.Request, requestID, apiKey, userAgent string) http.Header {
	h := r.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	stripHopByHop(h)
	h.Del("Host")

	if apiKey != "" && h.Get("Authorization") == "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}
	if userAgent != "" && h.Get("User-Agent") == "" {
		h.Set("User-Agent", userAgent)
	}

	// The transport negotiates compression itself and decodes the body.
	h.Del("Accept-Encoding")

	if clientIP, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if prior := h.Get("X-Forwarded-For"); prior != "" {
			clientIP = prior + ", " + clientIP
		}
		h.Set("X-Forwarded-For", clientIP)
	}
	h.Set("X-Forwarded-Host", r.Host)
	proto := "http"
	if r.TLS != nil {
		proto = "https"
	}
	h.Set("X-Forwarded-Proto", proto)
	h.Set(requestIDHeader, requestID)
	return h
}

// clientHeaders builds the response header relayed back to the caller.
func clientHeaders(upstream http.Header, requestID string) http.Header {
	h := upstream.Clone()
	if h == nil {
		h = make(http.Header)
	}
	stripHopByHop(h)
	h.Del("Content-Encoding")
	h.Del("Content-Length")
	h.Set(requestIDHeader, requestID)
	return h
}
