package detail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/call-billing/internal/domain"
	"github.com/acme/call-billing/internal/queue"
	"github.com/acme/call-billing/internal/repository"
	apperrors "github.com/acme/call-billing/pkg/errors"
	"github.com/acme/call-billing/pkg/logger"
)

type memoryDetailRepo struct {
	details map[uuid.UUID]domain.CallDetail
}

func newMemoryDetailRepo() *memoryDetailRepo {
	return &memoryDetailRepo{details: make(map[uuid.UUID]domain.CallDetail)}
}

func (r *memoryDetailRepo) Create(_ context.Context, detail *domain.CallDetail) error {
	for _, d := range r.details {
		if d.CallID == detail.CallID && d.Kind == detail.Kind {
			return repository.ErrConflict
		}
	}
	r.details[detail.ID] = *detail
	return nil
}

func (r *memoryDetailRepo) Get(_ context.Context, id uuid.UUID) (*domain.CallDetail, error) {
	d, ok := r.details[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (r *memoryDetailRepo) GetByCallAndKind(_ context.Context, callID int64, kind domain.DetailKind) (*domain.CallDetail, error) {
	for _, d := range r.details {
		if d.CallID == callID && d.Kind == kind {
			detail := d
			return &detail, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryDetailRepo) Update(_ context.Context, detail *domain.CallDetail) error {
	if _, ok := r.details[detail.ID]; !ok {
		return repository.ErrNotFound
	}
	r.details[detail.ID] = *detail
	return nil
}

func (r *memoryDetailRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.details[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.details, id)
	return nil
}

func (r *memoryDetailRepo) List(_ context.Context, limit int) ([]domain.CallDetail, error) {
	out := make([]domain.CallDetail, 0, len(r.details))
	for _, d := range r.details {
		out = append(out, d)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type recordingAggregator struct {
	saved   []domain.CallDetail
	deleted []domain.CallDetail
	result  *domain.Call
	err     error
}

func (a *recordingAggregator) OnDetailSaved(_ context.Context, detail *domain.CallDetail) (*domain.Call, error) {
	a.saved = append(a.saved, *detail)
	return a.result, a.err
}

func (a *recordingAggregator) OnDetailDeleted(_ context.Context, detail *domain.CallDetail) (*domain.Call, error) {
	a.deleted = append(a.deleted, *detail)
	return a.result, a.err
}

type recordingArchive struct {
	actions []string
	err     error
}

func (a *recordingArchive) Append(_ context.Context, _ domain.CallDetail, action string) error {
	a.actions = append(a.actions, action)
	return a.err
}

func (a *recordingArchive) ListByCall(_ context.Context, _ int64) ([]repository.ArchivedDetail, error) {
	return nil, nil
}

type recordingPublisher struct {
	published []queue.RatedCallMessage
}

func (p *recordingPublisher) PublishRatedCall(_ context.Context, msg queue.RatedCallMessage) error {
	p.published = append(p.published, msg)
	return nil
}

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func startInput(callID int64) Input {
	return Input{
		Kind:        domain.DetailKindStart,
		Timestamp:   time.Date(2017, 12, 12, 15, 7, 13, 0, time.UTC),
		CallID:      callID,
		Source:      "99988526423",
		Destination: "9993468278",
	}
}

func endInput(callID int64) Input {
	return Input{
		Kind:      domain.DetailKindEnd,
		Timestamp: time.Date(2017, 12, 12, 15, 14, 56, 0, time.UTC),
		CallID:    callID,
	}
}

func TestCreatePersistsArchivesAndAggregates(t *testing.T) {
	repo := newMemoryDetailRepo()
	agg := &recordingAggregator{}
	archive := &recordingArchive{}
	svc := NewService(repo, archive, agg, nil, testLogger())

	detail, err := svc.Create(context.Background(), startInput(70))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if detail.ID == uuid.Nil {
		t.Error("expected a generated id")
	}
	if _, err := repo.Get(context.Background(), detail.ID); err != nil {
		t.Errorf("detail not persisted: %v", err)
	}
	if len(agg.saved) != 1 || agg.saved[0].CallID != 70 {
		t.Errorf("aggregator saw %+v, want one save for call 70", agg.saved)
	}
	if len(archive.actions) != 1 || archive.actions[0] != "saved" {
		t.Errorf("archive actions = %v, want [saved]", archive.actions)
	}
}

func TestCreateKeepsCallerAssignedID(t *testing.T) {
	repo := newMemoryDetailRepo()
	svc := NewService(repo, nil, &recordingAggregator{}, nil, testLogger())

	input := startInput(70)
	input.ID = uuid.New()

	detail, err := svc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if detail.ID != input.ID {
		t.Errorf("id = %s, want caller-assigned %s", detail.ID, input.ID)
	}
}

func TestCreateRejectsDuplicateKind(t *testing.T) {
	repo := newMemoryDetailRepo()
	svc := NewService(repo, nil, &recordingAggregator{}, nil, testLogger())

	if _, err := svc.Create(context.Background(), startInput(70)); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	dup := startInput(70)
	dup.Timestamp = dup.Timestamp.Add(time.Minute)
	if _, err := svc.Create(context.Background(), dup); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("duplicate start err = %v, want ErrConflict", err)
	}
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Input)
	}{
		{"unknown kind", func(in *Input) { in.Kind = "ring" }},
		{"zero timestamp", func(in *Input) { in.Timestamp = time.Time{} }},
		{"non-positive call id", func(in *Input) { in.CallID = 0 }},
		{"empty source", func(in *Input) { in.Source = "" }},
		{"source with letters", func(in *Input) { in.Source = "9998852642a" }},
		{"source too long", func(in *Input) { in.Source = "999885264231" }},
		{"destination with dash", func(in *Input) { in.Destination = "999-3468278" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(newMemoryDetailRepo(), nil, &recordingAggregator{}, nil, testLogger())
			input := startInput(70)
			tc.mutate(&input)
			if _, err := svc.Create(context.Background(), input); !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateRejectsPhoneNumbersOnEnd(t *testing.T) {
	svc := NewService(newMemoryDetailRepo(), nil, &recordingAggregator{}, nil, testLogger())

	input := endInput(70)
	input.Source = "99988526423"
	if _, err := svc.Create(context.Background(), input); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestCreateRejectsEndBeforeStart(t *testing.T) {
	repo := newMemoryDetailRepo()
	svc := NewService(repo, nil, &recordingAggregator{}, nil, testLogger())

	if _, err := svc.Create(context.Background(), startInput(70)); err != nil {
		t.Fatalf("Create start: %v", err)
	}

	end := endInput(70)
	end.Timestamp = time.Date(2017, 12, 12, 15, 0, 0, 0, time.UTC)
	if _, err := svc.Create(context.Background(), end); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestCreateRejectsStartAfterEnd(t *testing.T) {
	repo := newMemoryDetailRepo()
	svc := NewService(repo, nil, &recordingAggregator{}, nil, testLogger())

	if _, err := svc.Create(context.Background(), endInput(70)); err != nil {
		t.Fatalf("Create end: %v", err)
	}

	start := startInput(70)
	start.Timestamp = time.Date(2017, 12, 12, 16, 0, 0, 0, time.UTC)
	if _, err := svc.Create(context.Background(), start); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestCreatePublishesRatedCallWhenComplete(t *testing.T) {
	repo := newMemoryDetailRepo()
	start := &domain.CallDetail{
		ID:          uuid.New(),
		Kind:        domain.DetailKindStart,
		Timestamp:   time.Date(2017, 12, 12, 15, 7, 13, 0, time.UTC),
		CallID:      70,
		Source:      "99988526423",
		Destination: "9993468278",
	}
	end := &domain.CallDetail{
		ID:        uuid.New(),
		Kind:      domain.DetailKindEnd,
		Timestamp: time.Date(2017, 12, 12, 15, 14, 56, 0, time.UTC),
		CallID:    70,
	}
	agg := &recordingAggregator{result: &domain.Call{CallID: 70, Start: start, End: end, Price: 1116}}
	pub := &recordingPublisher{}
	svc := NewService(repo, nil, agg, pub, testLogger())

	if _, err := svc.Create(context.Background(), startInput(70)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if len(pub.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.published))
	}
	msg := pub.published[0]
	if msg.CallID != 70 || msg.PriceCents != 1116 {
		t.Errorf("message = %+v, want call 70 at 1116 cents", msg)
	}
	if msg.Duration != "0h7m43s" {
		t.Errorf("duration = %q, want 0h7m43s", msg.Duration)
	}
}

func TestCreateDoesNotPublishIncompleteCall(t *testing.T) {
	agg := &recordingAggregator{result: &domain.Call{CallID: 70}}
	pub := &recordingPublisher{}
	svc := NewService(newMemoryDetailRepo(), nil, agg, pub, testLogger())

	if _, err := svc.Create(context.Background(), startInput(70)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(pub.published) != 0 {
		t.Errorf("published %d messages, want 0", len(pub.published))
	}
}

func TestCreateSurvivesArchiveFailure(t *testing.T) {
	archive := &recordingArchive{err: errors.New("scylla down")}
	svc := NewService(newMemoryDetailRepo(), archive, &recordingAggregator{}, nil, testLogger())

	if _, err := svc.Create(context.Background(), startInput(70)); err != nil {
		t.Errorf("Create with failing archive: %v", err)
	}
}

func TestUpdateReplacesAndReaggregates(t *testing.T) {
	repo := newMemoryDetailRepo()
	agg := &recordingAggregator{}
	svc := NewService(repo, nil, agg, nil, testLogger())

	created, err := svc.Create(context.Background(), startInput(70))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	corrected := startInput(70)
	corrected.Timestamp = created.Timestamp.Add(-time.Minute)

	updated, err := svc.Update(context.Background(), created.ID, corrected)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.Timestamp.Equal(corrected.Timestamp) {
		t.Errorf("timestamp = %v, want %v", updated.Timestamp, corrected.Timestamp)
	}
	if len(agg.saved) != 2 {
		t.Errorf("aggregator saw %d saves, want 2", len(agg.saved))
	}
}

func TestUpdateRejectsKindChange(t *testing.T) {
	repo := newMemoryDetailRepo()
	svc := NewService(repo, nil, &recordingAggregator{}, nil, testLogger())

	created, err := svc.Create(context.Background(), startInput(70))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	changed := endInput(70)
	if _, err := svc.Update(context.Background(), created.ID, changed); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestUpdateAllowsOwnTimestampShift(t *testing.T) {
	repo := newMemoryDetailRepo()
	svc := NewService(repo, nil, &recordingAggregator{}, nil, testLogger())

	created, err := svc.Create(context.Background(), endInput(70))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The only end record for the call is the one being updated; it must not
	// trip the pairing check against itself.
	shifted := endInput(70)
	shifted.Timestamp = created.Timestamp.Add(time.Minute)
	if _, err := svc.Update(context.Background(), created.ID, shifted); err != nil {
		t.Errorf("Update: %v", err)
	}
}

func TestDeleteRemovesArchivesAndRetracts(t *testing.T) {
	repo := newMemoryDetailRepo()
	agg := &recordingAggregator{}
	archive := &recordingArchive{}
	svc := NewService(repo, archive, agg, nil, testLogger())

	created, err := svc.Create(context.Background(), startInput(70))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(context.Background(), created.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("detail still present after delete")
	}
	if len(agg.deleted) != 1 || agg.deleted[0].ID != created.ID {
		t.Errorf("aggregator retractions = %+v, want one for %s", agg.deleted, created.ID)
	}
	if len(archive.actions) != 2 || archive.actions[1] != "deleted" {
		t.Errorf("archive actions = %v, want [saved deleted]", archive.actions)
	}
}

func TestDeleteUnknownDetail(t *testing.T) {
	svc := NewService(newMemoryDetailRepo(), nil, &recordingAggregator{}, nil, testLogger())
	if err := svc.Delete(context.Background(), uuid.New()); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
