package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/namikmesic/requrl/internal/urlopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_NewRequest(t *testing.T) {
	c := New(
		WithBase(urlopts.Options{Origin: "https://api.example.com", SearchParams: urlopts.Params("key", "k")}),
		WithUserAgent("requrl-test"),
		WithHeader("X-Trace", "1"),
	)

	req, err := c.NewRequest(context.Background(), http.MethodGet, urlopts.Options{
		Pathname:     "/v1/items",
		SearchParams: urlopts.Params("page", "2"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/v1/items?key=k&page=2", req.URL.String())
	assert.Equal(t, "requrl-test", req.Header.Get("User-Agent"))
	assert.Equal(t, "1", req.Header.Get("X-Trace"))
}

func TestClient_NewRequest_ValidationError(t *testing.T) {
	c := New(WithBase(urlopts.Options{Origin: "https://api.example.com"}))

	_, err := c.NewRequest(context.Background(), http.MethodGet, urlopts.Options{Path: "/a", Pathname: "/b"}, nil)
	require.Error(t, err)

	var verr *urlopts.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, urlopts.KindMutuallyExclusive, verr.Kind)
}

func TestClient_URL(t *testing.T) {
	c := New()

	href, err := c.URL(urlopts.Options{Protocol: "https:", Host: "google.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://google.com/", href)

	_, err = c.URL(urlopts.Options{})
	assert.ErrorIs(t, err, urlopts.ErrMissingProtocol)
}

func TestClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/redirect":
			http.Redirect(w, r, "/target", http.StatusFound)
		default:
			io.WriteString(w, r.Method+" "+r.URL.RequestURI())
		}
	}))
	defer srv.Close()

	c := New(WithBase(urlopts.Options{Origin: srv.URL}), WithTimeout(5*time.Second))

	resp, err := c.Do(context.Background(), http.MethodGet, urlopts.Options{Path: "/x?a=1"}, nil)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "GET /x?a=1", string(body))

	resp, err = c.Do(context.Background(), http.MethodGet, urlopts.Options{Pathname: "/redirect"}, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode, "redirects are not followed by default")

	following := New(WithBase(urlopts.Options{Origin: srv.URL}), WithFollowRedirects(true))
	resp, err = following.Do(context.Background(), http.MethodGet, urlopts.Options{Pathname: "/redirect"}, nil)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "GET /target", string(body))
}

func TestClient_Do_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	c := New(WithBase(urlopts.Options{Origin: target}))
	_, err := c.Do(context.Background(), http.MethodGet, urlopts.Options{Pathname: "/"}, nil)
	require.Error(t, err)

	var verr *urlopts.ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestClient_Resolve(t *testing.T) {
	c := New(WithBase(urlopts.Options{Origin: "https://api.example.com:8443", Hash: "top"}))

	u, err := c.Resolve(urlopts.Options{Path: "/v1/items?page=2"})
	require.NoError(t, err)
	assert.Equal(t, "api.example.com", u.Hostname())
	assert.Equal(t, "8443", u.Port())
	assert.Equal(t, "https://api.example.com:8443/v1/items?page=2#top", u.Href(false))

	req, err := c.NewRequestURL(context.Background(), http.MethodDelete, u, nil)
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "https://api.example.com:8443/v1/items?page=2#top", req.URL.String())
}
