package ingest

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/call-billing/internal/app"
	"github.com/acme/call-billing/internal/domain"
	"github.com/acme/call-billing/internal/queue"
	detailsvc "github.com/acme/call-billing/internal/service/detail"
	apperrors "github.com/acme/call-billing/pkg/errors"
	"github.com/acme/call-billing/pkg/logger"
)

// Worker consumes detail events from the switch feed and runs them through
// the same validated boundary the HTTP API uses.
type Worker struct {
	container *app.Container
}

// New creates a new ingest worker.
func New(container *app.Container) *Worker {
	return &Worker{container: container}
}

// Run processes detail events until the context is cancelled. Malformed or
// rejected messages are committed and logged; transient failures leave the
// offset uncommitted so the message is redelivered.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.container.Config
	groupID := cfg.Kafka.ConsumerGroupID + "-ingest"
	reader := w.container.Kafka.NewReader(cfg.Kafka.DetailTopic, groupID)
	defer reader.Close()

	details := w.container.Services().Details
	log := w.container.Logger.Named("ingest")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("ingest worker: fetch", zap.Error(err))
			continue
		}

		if w.handle(ctx, details, log, msg) {
			if err := reader.CommitMessages(ctx, msg); err != nil {
				log.Error("ingest worker: commit", zap.Error(err))
			}
		}
	}
}

// handle processes one message and reports whether its offset should be
// committed.
func (w *Worker) handle(ctx context.Context, details *detailsvc.Service, log *logger.Logger, msg kafka.Message) bool {
	var event queue.DetailMessage
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Error("ingest worker: unmarshal", zap.Error(err))
		return true
	}

	tracer := otel.Tracer("billing.ingestworker")
	sctx, span := tracer.Start(ctx, "detail.ingest", trace.WithAttributes(
		attribute.Int64("call.id", event.CallID),
		attribute.String("detail.kind", event.Kind),
	))
	defer span.End()

	id := event.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err := details.Create(sctx, detailsvc.Input{
		ID:          id,
		Kind:        domain.DetailKind(event.Kind),
		Timestamp:   event.Timestamp,
		CallID:      event.CallID,
		Source:      event.Source,
		Destination: event.Destination,
	})
	switch {
	case err == nil:
		return true
	case errors.Is(err, apperrors.ErrConflict):
		// Redelivery of an already accepted event.
		log.Debug("ingest worker: duplicate detail", zap.Int64("call_id", event.CallID), zap.String("kind", event.Kind))
		return true
	case errors.Is(err, apperrors.ErrValidation):
		span.RecordError(err)
		log.Warn("ingest worker: rejected detail", zap.Int64("call_id", event.CallID), zap.Error(err))
		return true
	default:
		span.RecordError(err)
		log.Error("ingest worker: create detail", zap.Int64("call_id", event.CallID), zap.Error(err))
		return false
	}
}
