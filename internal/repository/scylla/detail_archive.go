package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/acme/call-billing/internal/domain"
	"github.com/acme/call-billing/internal/repository"
)

// DetailArchive keeps an append-only log of detail events in Scylla, keyed by
// call id and day bucket. Rows are never mutated; retractions are recorded as
// their own entries, so the archive replays the full history of a call even
// after the relational state has been overwritten or deleted.
type DetailArchive struct {
	session *gocql.Session
}

// NewDetailArchive creates a new archive over the given session.
func NewDetailArchive(session *gocql.Session) *DetailArchive {
	return &DetailArchive{session: session}
}

// Append records one detail event with the action that produced it
// ("saved" or "deleted").
func (a *DetailArchive) Append(ctx context.Context, detail domain.CallDetail, action string) error {
	now := time.Now().UTC()
	if err := a.session.Query(`INSERT INTO detail_events_by_call (call_id, bucket, recorded_at, detail_id, kind, action, occurred_at, source, destination)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		detail.CallID, bucketDate(now), now, detail.ID.String(), string(detail.Kind), action,
		detail.Timestamp, detail.Source, detail.Destination,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("detail archive: insert detail_events_by_call: %w", err)
	}
	return nil
}

// ListByCall returns all archived events of a call in recording order.
func (a *DetailArchive) ListByCall(ctx context.Context, callID int64) ([]repository.ArchivedDetail, error) {
	iter := a.session.Query(`SELECT call_id, recorded_at, detail_id, kind, action, occurred_at, source, destination
		FROM detail_events_by_call WHERE call_id = ?`, callID).WithContext(ctx).Iter()

	var (
		results     []repository.ArchivedDetail
		id          int64
		recordedAt  time.Time
		detailIDStr string
		kind        string
		action      string
		occurredAt  time.Time
		source      string
		destination string
	)

	for iter.Scan(&id, &recordedAt, &detailIDStr, &kind, &action, &occurredAt, &source, &destination) {
		detailID, err := uuid.Parse(detailIDStr)
		if err != nil {
			iter.Close()
			return nil, fmt.Errorf("detail archive: parse detail_id: %w", err)
		}
		results = append(results, repository.ArchivedDetail{
			DetailID:    detailID,
			CallID:      id,
			Kind:        domain.DetailKind(kind),
			Action:      action,
			Timestamp:   occurredAt.UTC(),
			Source:      source,
			Destination: destination,
			RecordedAt:  recordedAt.UTC(),
		})
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("detail archive: iterate: %w", err)
	}
	return results, nil
}

func bucketDate(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
