package processor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/namikmesic/requrl/internal/jetstream"
	"github.com/namikmesic/requrl/internal/storage"
	nats "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const fetchBatch = 64

// ErrQueueFull means the storage writer rejected the job. The event is
// redelivered later.
var ErrQueueFull = errors.New("storage queue full")

// Enqueuer accepts storage jobs. *storage.BatchWriter satisfies it.
type Enqueuer interface {
	Enqueue(job storage.WriteJob) bool
}

// Processor moves resolution events from JetStream into storage.
type Processor struct {
	writer Enqueuer
}

func New(writer Enqueuer) *Processor {
	return &Processor{writer: writer}
}

// StartConsumer pulls resolution events until ctx is cancelled.
func (p *Processor) StartConsumer(ctx context.Context, js nats.JetStreamContext) {
	sub, err := js.PullSubscribe(jetstream.AllResolutions, jetstream.ConsumerName)
	if err != nil {
		log.Error().Err(err).Msg("failed to subscribe to resolution events")
		return
	}
	defer sub.Unsubscribe()

	log.Info().Str("subject", jetstream.AllResolutions).Msg("resolution consumer started")

	for ctx.Err() == nil {
		msgs, err := sub.Fetch(fetchBatch, nats.MaxWait(time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				log.Warn().Err(err).Msg("resolution consumer stopped")
				return
			}
			log.Error().Err(err).Msg("fetch resolution events")
			continue
		}

		for _, msg := range msgs {
			p.handle(msg)
		}
	}

	log.Info().Msg("resolution consumer stopped")
}

func (p *Processor) handle(msg *nats.Msg) {
	err := p.Process(msg.Data)
	if errors.Is(err, ErrQueueFull) {
		if nakErr := msg.NakWithDelay(time.Second); nakErr != nil {
			log.Error().Err(nakErr).Str("subject", msg.Subject).Msg("nak resolution event")
		}
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed resolution event")
		if termErr := msg.Term(); termErr != nil {
			log.Error().Err(termErr).Str("subject", msg.Subject).Msg("term resolution event")
		}
		return
	}
	if err := msg.Ack(); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("ack resolution event")
	}
}

// Process decodes one event and enqueues its storage job.
func (p *Processor) Process(data []byte) error {
	ev, err := UnmarshalEvent(data)
	if err != nil {
		return err
	}

	options, err := json.Marshal(ev.Options)
	if err != nil {
		return err
	}

	queued := p.writer.Enqueue(storage.InsertResolutionJob(&storage.Resolution{
		ID:           ev.ID,
		Timestamp:    ev.Timestamp,
		Source:       ev.Source,
		Options:      options,
		Href:         ev.Href,
		Hostname:     ev.Hostname,
		ErrorKind:    ev.ErrorKind,
		ErrorMessage: ev.ErrorMessage,
	}))
	if !queued {
		return ErrQueueFull
	}

	log.Debug().
		Str("resolution_id", ev.ID.String()).
		Str("source", ev.Source).
		Str("error_kind", ev.ErrorKind).
		Msg("resolution queued for storage")
	return nil
}
