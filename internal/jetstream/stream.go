package jetstream

import (
	"strings"
	"time"

	nats "github.com/nats-io/nats.go"
)

const (
	StreamName    = "REQURL"
	SubjectPrefix = "requrl.resolution."
	ConsumerName  = "requrl-processor"
)

// AllResolutions matches every resolution subject.
const AllResolutions = SubjectPrefix + "*"

func EnsureStream(js nats.JetStreamContext) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"requrl.>"},
		Storage:   nats.FileStorage,
		MaxAge:    24 * time.Hour,
		Retention: nats.WorkQueuePolicy,
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	return nil
}

func ResolutionSubject(id string) string {
	return SubjectPrefix + id
}
