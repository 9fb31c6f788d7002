package usagearchive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/pkg/config"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
)

type fakeEventsRepo struct {
	pending  []models.UsageEvent
	archived [][]uuid.UUID
	listErr  error
	markErr  error
}

func (f *fakeEventsRepo) ListUnarchived(_ context.Context, limit int) ([]models.UsageEvent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	return f.pending[:limit], nil
}

func (f *fakeEventsRepo) MarkArchived(_ context.Context, ids []uuid.UUID, _ time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.archived = append(f.archived, ids)
	remaining := make([]models.UsageEvent, 0, len(f.pending))
	marked := map[uuid.UUID]bool{}
	for _, id := range ids {
		marked[id] = true
	}
	for _, event := range f.pending {
		if !marked[event.ID] {
			remaining = append(remaining, event)
		}
	}
	f.pending = remaining
	return nil
}

type fakeWarehouse struct {
	inserted  [][]any
	insertErr error
}

func (f *fakeWarehouse) UsageTable() string { return "usage_events" }

func (f *fakeWarehouse) InsertRows(_ context.Context, _ string, rows []any) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, rows)
	return nil
}

func seedEvents(n int) []models.UsageEvent {
	events := make([]models.UsageEvent, 0, n)
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < n; i++ {
		events = append(events, models.UsageEvent{
			ID:         uuid.New(),
			AccountID:  uuid.New(),
			TokenID:    uuid.New(),
			Endpoint:   "/public/v1/products/3400935955838",
			OccurredAt: base.Add(time.Duration(i) * time.Second),
			LatencyMS:  12,
			Success:    true,
		})
	}
	return events
}

func newArchiver(t *testing.T, repo *fakeEventsRepo, wh *fakeWarehouse, batchSize int) *Archiver {
	t.Helper()
	archiver, err := NewArchiver(ArchiverParams{
		Repo:      repo,
		Warehouse: wh,
		Config:    config.ArchiverConfig{BatchSize: batchSize, PollInterval: time.Minute},
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("setup archiver: %v", err)
	}
	return archiver
}

func TestArchiveBatch_MovesAndStamps(t *testing.T) {
	repo := &fakeEventsRepo{pending: seedEvents(3)}
	wh := &fakeWarehouse{}
	archiver := newArchiver(t, repo, wh, 10)

	n, err := archiver.ArchiveBatch(context.Background())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 archived, got %d", n)
	}
	if len(wh.inserted) != 1 || len(wh.inserted[0]) != 3 {
		t.Fatalf("unexpected inserts %v", wh.inserted)
	}
	row, ok := wh.inserted[0][0].(UsageRow)
	if !ok {
		t.Fatalf("unexpected row type %T", wh.inserted[0][0])
	}
	if row.Endpoint != "/public/v1/products/3400935955838" || !row.Success {
		t.Fatalf("unexpected row %+v", row)
	}
	if len(repo.archived) != 1 || len(repo.archived[0]) != 3 {
		t.Fatalf("expected all events stamped, got %v", repo.archived)
	}
	if len(repo.pending) != 0 {
		t.Fatal("expected no pending events left")
	}
}

func TestArchiveBatch_EmptyQueueIsANoop(t *testing.T) {
	repo := &fakeEventsRepo{}
	wh := &fakeWarehouse{}
	archiver := newArchiver(t, repo, wh, 10)

	n, err := archiver.ArchiveBatch(context.Background())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if n != 0 || len(wh.inserted) != 0 {
		t.Fatal("empty queue must not touch the warehouse")
	}
}

func TestArchiveBatch_InsertFailureLeavesEventsPending(t *testing.T) {
	repo := &fakeEventsRepo{pending: seedEvents(2)}
	wh := &fakeWarehouse{insertErr: errors.New("stream closed")}
	archiver := newArchiver(t, repo, wh, 10)

	if _, err := archiver.ArchiveBatch(context.Background()); err == nil {
		t.Fatal("expected insert failure to propagate")
	}
	if len(repo.archived) != 0 {
		t.Fatal("failed insert must not stamp events")
	}
	if len(repo.pending) != 2 {
		t.Fatal("events must stay pending for the next cycle")
	}
}

func TestRunCycle_DrainsInBatches(t *testing.T) {
	repo := &fakeEventsRepo{pending: seedEvents(5)}
	wh := &fakeWarehouse{}
	archiver := newArchiver(t, repo, wh, 2)

	if err := archiver.runCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(repo.pending) != 0 {
		t.Fatalf("expected full drain, %d left", len(repo.pending))
	}
	if len(wh.inserted) != 3 {
		t.Fatalf("expected 3 batches (2+2+1), got %d", len(wh.inserted))
	}
}
