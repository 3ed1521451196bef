package proxy

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/namikmesic/requrl/internal/client"
	"github.com/namikmesic/requrl/internal/config"
	"github.com/namikmesic/requrl/internal/jetstream"
	"github.com/namikmesic/requrl/internal/processor"
	"github.com/namikmesic/requrl/internal/storage"
	"github.com/namikmesic/requrl/internal/urlopts"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Publisher is the part of nats.JetStreamContext the handler needs.
type Publisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// ResolutionStore looks up stored resolutions.
type ResolutionStore interface {
	Get(ctx context.Context, id uuid.UUID) (*storage.Resolution, error)
}

// Handler serves the resolution API and forwards everything else upstream.
type Handler struct {
	cfg       *config.Config
	client    *client.Client
	store     ResolutionStore
	publisher Publisher
	mux       *http.ServeMux
}

func NewHandler(cfg *config.Config, store ResolutionStore, publisher Publisher) *Handler {
	h := &Handler{
		cfg: cfg,
		// No timeout: forwarded responses can be long-lived streams
		client: client.New(
			client.WithBase(urlopts.Options{Origin: cfg.UpstreamURL}),
			client.WithTimeout(0),
			client.WithFollowRedirects(false),
			client.WithLogger(log.Logger),
		),
		store:     store,
		publisher: publisher,
		mux:       http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /v1/resolve", h.handleResolve)
	h.mux.HandleFunc("POST /v1/resolve/batch", h.handleResolveBatch)
	h.mux.HandleFunc("GET /v1/resolutions/{id}", h.handleGetResolution)
	h.mux.HandleFunc("/", h.handleForward)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// publish records the outcome of a conversion. Failures are logged, never
// surfaced to the caller.
func (h *Handler) publish(ev processor.ResolutionEvent) {
	if h.publisher == nil {
		return
	}
	data, err := ev.Marshal()
	if err != nil {
		log.Error().Err(err).Msg("failed to encode resolution event")
		return
	}
	if _, err := h.publisher.Publish(jetstream.ResolutionSubject(ev.ID.String()), data); err != nil {
		log.Warn().Err(err).Str("resolution_id", ev.ID.String()).Msg("failed to publish resolution event")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

type errorBody struct {
	Kind    string   `json:"kind"`
	Fields  []string `json:"fields,omitempty"`
	Message string   `json:"message"`
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]errorBody{
		"error": {Kind: kind, Message: message},
	})
}
