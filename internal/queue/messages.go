package queue

import (
	"time"

	"github.com/google/uuid"
)

// DetailMessage is a raw start/end call detail record as reported by the
// switch. ID may be zero, in which case the consumer assigns one.
type DetailMessage struct {
	ID          uuid.UUID `json:"id"`
	Kind        string    `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
	CallID      int64     `json:"call_id"`
	Source      string    `json:"source,omitempty"`
	Destination string    `json:"destination,omitempty"`
}

// RatedCallMessage announces that a call pair became complete and was priced.
type RatedCallMessage struct {
	CallID      int64     `json:"call_id"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	Duration    string    `json:"duration"`
	PriceCents  int64     `json:"price_cents"`
	RatedAt     time.Time `json:"rated_at"`
}
