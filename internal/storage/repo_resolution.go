package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("resolution not found")

// Resolution is the audit record of one options-to-URL conversion.
type Resolution struct {
	ID           uuid.UUID       `json:"id"`
	Timestamp    time.Time       `json:"ts"`
	Source       string          `json:"source"`
	Options      json.RawMessage `json:"options"`
	Href         string          `json:"href,omitempty"`
	Hostname     string          `json:"hostname,omitempty"`
	ErrorKind    string          `json:"error_kind,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

const insertResolutionSQL = `
	INSERT INTO resolutions (id, ts, source, options, href, hostname, error_kind, error_message)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id, ts) DO NOTHING`

// InsertResolutionJob stores r. Replayed events are ignored.
func InsertResolutionJob(r *Resolution) WriteJob {
	return WriteJobFunc(func(b *pgx.Batch) {
		b.Queue(insertResolutionSQL,
			r.ID, r.Timestamp, r.Source, optionsJSON(r.Options),
			nilIfEmpty(r.Href), nilIfEmpty(r.Hostname),
			nilIfEmpty(r.ErrorKind), nilIfEmpty(r.ErrorMessage),
		)
	})
}

// Resolutions reads audit records.
type Resolutions struct {
	pool *pgxpool.Pool
}

func NewResolutions(pool *pgxpool.Pool) *Resolutions {
	return &Resolutions{pool: pool}
}

// Get returns the latest record for id, or ErrNotFound.
func (r *Resolutions) Get(ctx context.Context, id uuid.UUID) (*Resolution, error) {
	var res Resolution
	var options []byte
	var href, hostname, errorKind, errorMessage *string
	err := r.pool.QueryRow(ctx, `
		SELECT id, ts, source, options, href, hostname, error_kind, error_message
		FROM resolutions
		WHERE id = $1
		ORDER BY ts DESC
		LIMIT 1`, id,
	).Scan(&res.ID, &res.Timestamp, &res.Source, &options, &href, &hostname, &errorKind, &errorMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query resolution %s: %w", id, err)
	}

	res.Options = options
	res.Href = derefString(href)
	res.Hostname = derefString(hostname)
	res.ErrorKind = derefString(errorKind)
	res.ErrorMessage = derefString(errorMessage)
	return &res, nil
}

func optionsJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
