package proxy

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/requrl/internal/processor"
	"github.com/namikmesic/requrl/internal/urlopts"
	"github.com/rs/zerolog/log"
)

// handleForward relays the request to the configured upstream. The upstream
// URL is resolved from Options{Path: request URI} over the upstream origin.
func (h *Handler) handleForward(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New()
	start := time.Now()

	var reqBody []byte
	if r.Body != nil {
		var err error
		reqBody, err = io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			log.Error().Err(err).Msg("failed to read request body")
			http.Error(w, "failed to read request body", http.StatusBadGateway)
			return
		}
	}

	opts := urlopts.Options{Path: r.URL.RequestURI()}
	target, err := h.client.Resolve(opts)
	h.publish(processor.NewEvent(requestID, start, processor.SourceProxy, opts, target, err))
	if err != nil {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("cannot resolve upstream url")
		var verr *urlopts.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Message, http.StatusBadRequest)
			return
		}
		http.Error(w, "cannot resolve upstream url", http.StatusBadGateway)
		return
	}

	upstreamReq, err := h.client.NewRequestURL(r.Context(), r.Method, target, bytes.NewReader(reqBody))
	if err != nil {
		log.Error().Err(err).Msg("failed to create upstream request")
		http.Error(w, "failed to create upstream request", http.StatusBadGateway)
		return
	}

	upstreamReq.Header = upstreamHeaders(r, requestID.String(), h.cfg.UpstreamAPIKey, h.cfg.UserAgent)

	resp, err := h.client.Send(upstreamReq)
	if err != nil {
		log.Error().Err(err).Str("url", upstreamReq.URL.Redacted()).Msg("upstream request failed")
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vv := range clientHeaders(resp.Header, requestID.String()) {
		w.Header()[k] = vv
	}
	w.WriteHeader(resp.StatusCode)

	written := relayBody(w, resp.Body)

	log.Info().
		Str("request_id", requestID.String()).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("upstream", upstreamReq.URL.Redacted()).
		Int("status", resp.StatusCode).
		Int64("bytes", written).
		Dur("duration", time.Since(start)).
		Msg("proxied request")
}

// relayBody copies the upstream body, flushing after every read so streamed
// responses reach the client as they arrive.
func relayBody(w http.ResponseWriter, body io.Reader) int64 {
	flusher, canFlush := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	var written int64

	for {
		n, err := body.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if err != nil {
			return written
		}
	}
}
