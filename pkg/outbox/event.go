// Package outbox implements the transactional outbox: producers append an
// event row in the same transaction as their business mutation, and the
// relay drains committed rows to the broker. Rows are never deleted; the
// table doubles as an audit trail of everything announced.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle of an outbox row.
type Status string

const (
	// StatusNew marks a row awaiting publication. Failed publish attempts
	// leave the row NEW (with attempts bumped) so the next poll retries it.
	StatusNew Status = "NEW"
	// StatusPublished is terminal: the broker accepted the message.
	StatusPublished Status = "PUBLISHED"
	// StatusFailed is terminal: the attempt cap was reached. Operator
	// intervention is required to replay the row.
	StatusFailed Status = "FAILED"
)

// Message headers carried alongside the payload body.
const (
	HeaderEventID = "event_id"
	HeaderVersion = "version"
)

// Event is one outbox row. Payload is the serialized document published
// verbatim as the message body; EventType is the routing key.
type Event struct {
	ID          int64
	EventType   string
	EventID     uuid.UUID
	Version     int
	Payload     []byte
	Status      Status
	Attempts    int
	LastError   *string
	OccurredAt  time.Time
	PublishedAt *time.Time
}
