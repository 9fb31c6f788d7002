package usagearchive

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/pkg/config"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/instance"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
	"github.com/pharmadata/pharmadata-backend/pkg/metrics"
)

type eventsRepository interface {
	ListUnarchived(ctx context.Context, limit int) ([]models.UsageEvent, error)
	MarkArchived(ctx context.Context, ids []uuid.UUID, archivedAt time.Time) error
}

type warehouse interface {
	UsageTable() string
	InsertRows(ctx context.Context, table string, rows []any) error
}

// UsageRow is the BigQuery shape of one archived usage event.
type UsageRow struct {
	EventID    string    `bigquery:"event_id"`
	AccountID  string    `bigquery:"account_id"`
	TokenID    string    `bigquery:"token_id"`
	Endpoint   string    `bigquery:"endpoint"`
	OccurredAt time.Time `bigquery:"occurred_at"`
	LatencyMS  int64     `bigquery:"latency_ms"`
	Success    bool      `bigquery:"success"`
	ProductID  string    `bigquery:"product_id"`
}

// ArchiverParams configure the usage archiver.
type ArchiverParams struct {
	Repo      eventsRepository
	Warehouse warehouse
	Config    config.ArchiverConfig
	Metrics   *metrics.ArchiverMetrics
	Logger    *logger.Logger
}

// Archiver copies usage events to BigQuery in batches and stamps them
// archived. Events are only stamped after a successful insert, so a failed
// batch is retried on the next cycle.
type Archiver struct {
	repo      eventsRepository
	warehouse warehouse
	cfg       config.ArchiverConfig
	metrics   *metrics.ArchiverMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewArchiver(params ArchiverParams) (*Archiver, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "events repository required")
	}
	if params.Warehouse == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "warehouse client required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	cfg := params.Config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	m := params.Metrics
	if m == nil {
		m = metrics.NewArchiverMetrics(nil)
	}
	return &Archiver{
		repo:      params.Repo,
		warehouse: params.Warehouse,
		cfg:       cfg,
		metrics:   m,
		logg:      params.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run polls until the context is canceled. Each cycle drains full batches
// before going back to sleep.
func (a *Archiver) Run(ctx context.Context) error {
	ctx = a.logg.WithField(ctx, "worker_id", instance.GetID())
	a.logg.Info(ctx, "usage archiver started")

	if err := a.runCycle(ctx); err != nil {
		a.logg.Error(ctx, "archival cycle failed", err)
	}
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logg.Info(ctx, "usage archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.runCycle(ctx); err != nil {
				a.logg.Error(ctx, "archival cycle failed", err)
			}
		}
	}
}

func (a *Archiver) runCycle(ctx context.Context) error {
	for {
		archived, err := a.ArchiveBatch(ctx)
		if err != nil {
			return err
		}
		if archived < a.cfg.BatchSize {
			return nil
		}
	}
}

// ArchiveBatch moves one batch and returns how many events it archived.
func (a *Archiver) ArchiveBatch(ctx context.Context) (int, error) {
	events, err := a.repo.ListUnarchived(ctx, a.cfg.BatchSize)
	if err != nil {
		a.metrics.IncFailure()
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list unarchived events")
	}
	if len(events) == 0 {
		return 0, nil
	}

	rows := make([]any, 0, len(events))
	ids := make([]uuid.UUID, 0, len(events))
	for _, event := range events {
		rows = append(rows, rowFromEvent(event))
		ids = append(ids, event.ID)
	}

	if err := a.warehouse.InsertRows(ctx, a.warehouse.UsageTable(), rows); err != nil {
		a.metrics.IncFailure()
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert usage rows")
	}
	if err := a.repo.MarkArchived(ctx, ids, a.now()); err != nil {
		a.metrics.IncFailure()
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark events archived")
	}

	a.metrics.IncBatch()
	a.metrics.AddArchived(len(events))
	return len(events), nil
}

func rowFromEvent(event models.UsageEvent) UsageRow {
	row := UsageRow{
		EventID:    event.ID.String(),
		AccountID:  event.AccountID.String(),
		TokenID:    event.TokenID.String(),
		Endpoint:   event.Endpoint,
		OccurredAt: event.OccurredAt,
		LatencyMS:  event.LatencyMS,
		Success:    event.Success,
	}
	if event.ProductID != nil {
		row.ProductID = event.ProductID.String()
	}
	return row
}
