package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/requrl/internal/processor"
	"github.com/namikmesic/requrl/internal/storage"
	"github.com/namikmesic/requrl/internal/stream"
	"github.com/namikmesic/requrl/internal/urlopts"
	"github.com/nlnwa/whatwg-url/url"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 8 << 20

// ResolvedURL is the component view of a converted URL.
type ResolvedURL struct {
	ID       string `json:"id"`
	Index    *int   `json:"index,omitempty"`
	Href     string `json:"href"`
	Origin   string `json:"origin"`
	Protocol string `json:"protocol"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Hostname string `json:"hostname"`
	Port     string `json:"port"`
	Pathname string `json:"pathname"`
	Search   string `json:"search"`
	Hash     string `json:"hash"`
}

// Rejection describes options that could not be converted.
type Rejection struct {
	ID    string    `json:"id"`
	Index *int      `json:"index,omitempty"`
	Error errorBody `json:"error"`
}

// BatchSummary is the payload of the final "done" event of a batch.
type BatchSummary struct {
	Count    int `json:"count"`
	Rejected int `json:"rejected"`
}

func newResolvedURL(id uuid.UUID, u *url.Url) ResolvedURL {
	return ResolvedURL{
		ID:       id.String(),
		Href:     u.Href(false),
		Origin:   origin(u),
		Protocol: u.Protocol(),
		Username: u.Username(),
		Password: u.Password(),
		Host:     u.Host(),
		Hostname: u.Hostname(),
		Port:     u.Port(),
		Pathname: u.Pathname(),
		Search:   u.Search(),
		Hash:     u.Hash(),
	}
}

// origin serializes the tuple origin; opaque origins serialize as "null".
func origin(u *url.Url) string {
	if !u.IsSpecialScheme() || u.Scheme() == "file" || u.Host() == "" {
		return "null"
	}
	return u.Protocol() + "//" + u.Host()
}

func newRejection(id uuid.UUID, err error) Rejection {
	body := errorBody{Kind: "internal", Message: err.Error()}
	var verr *urlopts.ValidationError
	if errors.As(err, &verr) {
		body = errorBody{Kind: verr.Kind.String(), Fields: verr.Fields, Message: verr.Message}
	}
	return Rejection{ID: id.String(), Error: body}
}

// resolve converts opts and publishes the outcome.
func (h *Handler) resolve(source string, opts urlopts.Options) (uuid.UUID, *url.Url, error) {
	id := uuid.New()
	u, err := urlopts.ToURL(opts)
	h.publish(processor.NewEvent(id, time.Now(), source, opts, u, err))
	return id, u, err
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	var opts urlopts.Options
	if err := decodeBody(r, &opts); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	id, u, err := h.resolve(processor.SourceAPI, opts)
	if err != nil {
		log.Debug().Err(err).Str("resolution_id", id.String()).Msg("options rejected")
		writeJSON(w, http.StatusUnprocessableEntity, newRejection(id, err))
		return
	}

	writeJSON(w, http.StatusOK, newResolvedURL(id, u))
}

func (h *Handler) handleResolveBatch(w http.ResponseWriter, r *http.Request) {
	var batch []urlopts.Options
	if err := decodeBody(r, &batch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if len(batch) > h.cfg.MaxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge, "batch_too_large",
			fmt.Sprintf("batch of %d exceeds the limit of %d", len(batch), h.cfg.MaxBatchSize))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	sse := stream.NewWriter(w)

	summary := BatchSummary{}
	for i, opts := range batch {
		if r.Context().Err() != nil {
			log.Debug().Int("sent", summary.Count).Msg("batch client went away")
			return
		}

		index := i
		id, u, err := h.resolve(processor.SourceBatch, opts)

		var event string
		var payload any
		if err != nil {
			rej := newRejection(id, err)
			rej.Index = &index
			event, payload = "rejected", rej
			summary.Rejected++
		} else {
			res := newResolvedURL(id, u)
			res.Index = &index
			event, payload = "resolved", res
		}
		summary.Count++

		if err := writeEvent(sse, event, payload); err != nil {
			log.Warn().Err(err).Msg("failed to stream batch result")
			return
		}
	}

	if err := writeEvent(sse, "done", summary); err != nil {
		log.Warn().Err(err).Msg("failed to finish batch stream")
	}

	log.Info().
		Int("count", summary.Count).
		Int("rejected", summary.Rejected).
		Msg("batch resolved")
}

func (h *Handler) handleGetResolution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "resolution id must be a UUID")
		return
	}
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "resolution storage is not configured")
		return
	}

	res, err := h.store.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Str("resolution_id", id.String()).Msg("failed to load resolution")
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to load resolution")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeEvent(sse *stream.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return sse.WriteEvent(event, data)
}
