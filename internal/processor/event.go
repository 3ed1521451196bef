package processor

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/requrl/internal/urlopts"
	"github.com/nlnwa/whatwg-url/url"
)

const redacted = "redacted"

// Sources of a resolution.
const (
	SourceAPI   = "api"
	SourceBatch = "batch"
	SourceProxy = "proxy"
)

// ResolutionEvent is published to JetStream for every conversion, successful
// or not. Credentials are redacted before the event leaves the process.
type ResolutionEvent struct {
	ID           uuid.UUID       `json:"id"`
	Timestamp    time.Time       `json:"ts"`
	Source       string          `json:"source"`
	Options      urlopts.Options `json:"options"`
	Href         string          `json:"href,omitempty"`
	Hostname     string          `json:"hostname,omitempty"`
	ErrorKind    string          `json:"error_kind,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// NewEvent describes the outcome of urlopts.ToURL. Exactly one of u and err
// is expected to be non-nil.
func NewEvent(id uuid.UUID, ts time.Time, source string, opts urlopts.Options, u *url.Url, err error) ResolutionEvent {
	ev := ResolutionEvent{
		ID:        id,
		Timestamp: ts,
		Source:    source,
		Options:   redactOptions(opts),
	}

	if err != nil {
		ev.ErrorKind = "internal"
		var verr *urlopts.ValidationError
		if errors.As(err, &verr) {
			ev.ErrorKind = verr.Kind.String()
		}
		ev.ErrorMessage = err.Error()
		return ev
	}

	if u != nil {
		ev.Hostname = u.Hostname()
		if u.Password() != "" {
			u = u.Clone()
			u.SetPassword(redacted)
		}
		ev.Href = u.Href(false)
	}
	return ev
}

func redactOptions(opts urlopts.Options) urlopts.Options {
	if opts.Password != "" {
		opts.Password = redacted
	}
	if opts.Auth != nil {
		r := redacted
		opts.Auth = &r
	}
	return opts
}

func (e ResolutionEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func UnmarshalEvent(data []byte) (ResolutionEvent, error) {
	var ev ResolutionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ResolutionEvent{}, err
	}
	if ev.ID == uuid.Nil {
		return ResolutionEvent{}, errors.New("resolution event without id")
	}
	return ev, nil
}
