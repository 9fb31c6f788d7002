package usage

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/pkg/config"
	"github.com/pharmadata/pharmadata-backend/pkg/db"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	dbtypes "github.com/pharmadata/pharmadata-backend/pkg/db/types"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
)

const (
	// latencySampleSize bounds how many recent events feed the percentile
	// estimates.
	latencySampleSize = 100

	maxDailyRangeDays = 90
)

type usageRepository interface {
	InsertEventWithTx(tx *gorm.DB, event *models.UsageEvent) error
	InsertProductViewWithTx(tx *gorm.DB, view *models.ProductView) error
	FindDailyRollupForUpdateWithTx(tx *gorm.DB, accountID uuid.UUID, day string) (*models.DailyUsageRollup, error)
	FindAccountRollupForUpdateWithTx(tx *gorm.DB, accountID uuid.UUID) (*models.AccountUsageRollup, error)
	CreateDailyRollupWithTx(tx *gorm.DB, rollup *models.DailyUsageRollup) error
	CreateAccountRollupWithTx(tx *gorm.DB, rollup *models.AccountUsageRollup) error
	SaveDailyRollupWithTx(tx *gorm.DB, rollup *models.DailyUsageRollup) error
	SaveAccountRollupWithTx(tx *gorm.DB, rollup *models.AccountUsageRollup) error
	CountSuccessfulEventsInWindow(ctx context.Context, accountID uuid.UUID, from, to time.Time) (int64, error)
	RecentLatencies(ctx context.Context, accountID uuid.UUID, limit int) ([]int64, error)
	FindAccountRollup(ctx context.Context, accountID uuid.UUID) (*models.AccountUsageRollup, error)
	ListDailyRollups(ctx context.Context, accountID uuid.UUID, fromDay, toDay string) ([]models.DailyUsageRollup, error)
}

type subscriptionsRepository interface {
	FindActiveByAccount(ctx context.Context, accountID uuid.UUID) (*models.Subscription, error)
}

type retryTxRunner interface {
	WithTxRetry(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RecordInput describes one metered call.
type RecordInput struct {
	AccountID  uuid.UUID
	TokenID    uuid.UUID
	Endpoint   string
	OccurredAt time.Time
	LatencyMS  int64
	Success    bool
	ProductID  *uuid.UUID
}

// RecordResult reports whether the call was metered. Repeat views of a
// product the account already consumed are free and leave no event.
type RecordResult struct {
	Metered bool
	EventID uuid.UUID
}

// Remaining is the quota snapshot for an account.
type Remaining struct {
	PlanName    string    `json:"plan_name"`
	Limit       int64     `json:"limit"`
	Used        int64     `json:"used"`
	Remaining   int64     `json:"remaining"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// Summary is the lifetime usage aggregate exposed to dashboards.
type Summary struct {
	TotalCalls      int64                    `json:"total_calls"`
	SuccessfulCalls int64                    `json:"successful_calls"`
	FailedCalls     int64                    `json:"failed_calls"`
	AvgLatencyMS    float64                  `json:"avg_latency_ms"`
	Endpoints       dbtypes.EndpointCounters `json:"endpoints"`
	FirstCallAt     *time.Time               `json:"first_call_at,omitempty"`
	LastCallAt      *time.Time               `json:"last_call_at,omitempty"`
}

// LatencyPercentiles summarizes the recent latency distribution.
type LatencyPercentiles struct {
	SampleSize int     `json:"sample_size"`
	P50        float64 `json:"p50"`
	P90        float64 `json:"p90"`
	P95        float64 `json:"p95"`
	P99        float64 `json:"p99"`
}

// EndpointStat is the windowed per-endpoint breakdown.
type EndpointStat struct {
	Endpoint  string  `json:"endpoint"`
	Calls     int64   `json:"calls"`
	Errors    int64   `json:"errors"`
	ErrorRate float64 `json:"error_rate"`
}

// DailyPoint is one day of the usage time series.
type DailyPoint struct {
	Day             string  `json:"day"`
	TotalCalls      int64   `json:"total_calls"`
	SuccessfulCalls int64   `json:"successful_calls"`
	FailedCalls     int64   `json:"failed_calls"`
	AvgLatencyMS    float64 `json:"avg_latency_ms"`
}

// Service records metered calls and answers quota and analytics reads.
type Service interface {
	Record(ctx context.Context, input RecordInput) (*RecordResult, error)
	GetRemaining(ctx context.Context, accountID uuid.UUID) (*Remaining, error)
	GetSummary(ctx context.Context, accountID uuid.UUID) (*Summary, error)
	GetLatencyPercentiles(ctx context.Context, accountID uuid.UUID) (*LatencyPercentiles, error)
	GetDailySeries(ctx context.Context, accountID uuid.UUID, days int) ([]DailyPoint, error)
	GetEndpointStats(ctx context.Context, accountID uuid.UUID, days int) ([]EndpointStat, error)
}

type service struct {
	repo     usageRepository
	subs     subscriptionsRepository
	txRunner retryTxRunner
	quota    config.QuotaConfig
	now      func() time.Time
}

// NewService wires usage dependencies.
func NewService(repo usageRepository, subs subscriptionsRepository, runner retryTxRunner, quota config.QuotaConfig) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "usage repository required")
	}
	if subs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscriptions repository required")
	}
	if runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	return &service{
		repo:     repo,
		subs:     subs,
		txRunner: runner,
		quota:    quota,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Record persists one metered call: the append-only event, the first-view
// marker when a product is involved, and both rollups, all in one retried
// transaction. A repeat product view short-circuits without writing.
func (s *service) Record(ctx context.Context, input RecordInput) (*RecordResult, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}
	if input.TokenID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "token id required")
	}
	if strings.TrimSpace(input.Endpoint) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "endpoint required")
	}
	if input.LatencyMS < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "latency must be non-negative")
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	occurredAt = occurredAt.UTC()

	event := &models.UsageEvent{
		ID:         uuid.New(),
		AccountID:  input.AccountID,
		TokenID:    input.TokenID,
		Endpoint:   strings.TrimSpace(input.Endpoint),
		OccurredAt: occurredAt,
		LatencyMS:  input.LatencyMS,
		Success:    input.Success,
		ProductID:  input.ProductID,
	}

	result := &RecordResult{}
	record := func(tx *gorm.DB) error {
		if input.ProductID != nil && *input.ProductID != uuid.Nil {
			view := &models.ProductView{
				ID:            uuid.New(),
				AccountID:     input.AccountID,
				ProductID:     *input.ProductID,
				FirstViewedAt: occurredAt,
			}
			if err := s.repo.InsertProductViewWithTx(tx, view); err != nil {
				if db.IsUniqueViolation(err) {
					// repeat view, the first event already counted it
					result.Metered = false
					return nil
				}
				return err
			}
		}

		if err := s.repo.InsertEventWithTx(tx, event); err != nil {
			return err
		}
		if err := s.bumpDailyRollup(tx, event); err != nil {
			return err
		}
		if err := s.bumpAccountRollup(tx, event); err != nil {
			return err
		}
		result.Metered = true
		result.EventID = event.ID
		return nil
	}

	txErr := s.txRunner.WithTxRetry(ctx, record)
	if txErr != nil && db.IsUniqueViolation(txErr) {
		// two first calls raced on rollup creation; the row exists now
		txErr = s.txRunner.WithTxRetry(ctx, record)
	}
	if txErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "record usage")
	}
	return result, nil
}

func (s *service) bumpDailyRollup(tx *gorm.DB, event *models.UsageEvent) error {
	day := models.RollupDay(event.OccurredAt)
	rollup, err := s.repo.FindDailyRollupForUpdateWithTx(tx, event.AccountID, day)
	if err != nil {
		if !db.IsNotFound(err) {
			return err
		}
		rollup = &models.DailyUsageRollup{
			ID:        uuid.New(),
			AccountID: event.AccountID,
			Day:       day,
			Endpoints: dbtypes.EndpointCounters{},
		}
		applyEvent(&rollup.TotalCalls, &rollup.SuccessfulCalls, &rollup.FailedCalls, &rollup.AvgLatencyMS, rollup.Endpoints, event)
		return s.repo.CreateDailyRollupWithTx(tx, rollup)
	}
	if rollup.Endpoints == nil {
		rollup.Endpoints = dbtypes.EndpointCounters{}
	}
	applyEvent(&rollup.TotalCalls, &rollup.SuccessfulCalls, &rollup.FailedCalls, &rollup.AvgLatencyMS, rollup.Endpoints, event)
	return s.repo.SaveDailyRollupWithTx(tx, rollup)
}

func (s *service) bumpAccountRollup(tx *gorm.DB, event *models.UsageEvent) error {
	rollup, err := s.repo.FindAccountRollupForUpdateWithTx(tx, event.AccountID)
	if err != nil {
		if !db.IsNotFound(err) {
			return err
		}
		firstCall := event.OccurredAt
		rollup = &models.AccountUsageRollup{
			ID:          uuid.New(),
			AccountID:   event.AccountID,
			Endpoints:   dbtypes.EndpointCounters{},
			FirstCallAt: &firstCall,
		}
		applyEvent(&rollup.TotalCalls, &rollup.SuccessfulCalls, &rollup.FailedCalls, &rollup.AvgLatencyMS, rollup.Endpoints, event)
		lastCall := event.OccurredAt
		rollup.LastCallAt = &lastCall
		return s.repo.CreateAccountRollupWithTx(tx, rollup)
	}
	if rollup.Endpoints == nil {
		rollup.Endpoints = dbtypes.EndpointCounters{}
	}
	applyEvent(&rollup.TotalCalls, &rollup.SuccessfulCalls, &rollup.FailedCalls, &rollup.AvgLatencyMS, rollup.Endpoints, event)
	if rollup.FirstCallAt == nil || event.OccurredAt.Before(*rollup.FirstCallAt) {
		first := event.OccurredAt
		rollup.FirstCallAt = &first
	}
	if rollup.LastCallAt == nil || event.OccurredAt.After(*rollup.LastCallAt) {
		last := event.OccurredAt
		rollup.LastCallAt = &last
	}
	return s.repo.SaveAccountRollupWithTx(tx, rollup)
}

// applyEvent folds one event into rollup counters. The running average is
// exact: newAvg = (oldAvg*oldTotal + latency) / (oldTotal + 1).
func applyEvent(total, successful, failed *int64, avg *float64, endpoints dbtypes.EndpointCounters, event *models.UsageEvent) {
	oldTotal := *total
	*avg = (*avg*float64(oldTotal) + float64(event.LatencyMS)) / float64(oldTotal+1)
	*total = oldTotal + 1
	if event.Success {
		*successful++
	} else {
		*failed++
	}
	endpoints.Bump(event.Endpoint, event.Success)
}

// GetRemaining answers the quota window for an account: the subscription
// window when one is active, the calendar-month free tier otherwise.
func (s *service) GetRemaining(ctx context.Context, accountID uuid.UUID) (*Remaining, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}

	now := s.now()
	var remaining Remaining

	sub, err := s.subs.FindActiveByAccount(ctx, accountID)
	switch {
	case err == nil:
		if now.Before(sub.CurrentPeriodStart) || !now.Before(sub.CurrentPeriodEnd) {
			return nil, pkgerrors.New(pkgerrors.CodeFailedPrecondition, "billing period out of date")
		}
		remaining = Remaining{
			PlanName:    sub.PlanName,
			Limit:       sub.RequestLimit,
			PeriodStart: sub.CurrentPeriodStart,
			PeriodEnd:   sub.CurrentPeriodEnd,
		}
	case db.IsNotFound(err):
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		remaining = Remaining{
			PlanName:    s.freeTierPlanName(),
			Limit:       s.freeTierLimit(),
			PeriodStart: start,
			PeriodEnd:   start.AddDate(0, 1, 0),
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}

	used, err := s.repo.CountSuccessfulEventsInWindow(ctx, accountID, remaining.PeriodStart, remaining.PeriodEnd)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count usage")
	}
	remaining.Used = used
	remaining.Remaining = remaining.Limit - used
	if remaining.Remaining < 0 {
		remaining.Remaining = 0
	}
	return &remaining, nil
}

func (s *service) GetSummary(ctx context.Context, accountID uuid.UUID) (*Summary, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}
	rollup, err := s.repo.FindAccountRollup(ctx, accountID)
	if err != nil {
		if db.IsNotFound(err) {
			return &Summary{Endpoints: dbtypes.EndpointCounters{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load usage rollup")
	}
	endpoints := rollup.Endpoints
	if endpoints == nil {
		endpoints = dbtypes.EndpointCounters{}
	}
	return &Summary{
		TotalCalls:      rollup.TotalCalls,
		SuccessfulCalls: rollup.SuccessfulCalls,
		FailedCalls:     rollup.FailedCalls,
		AvgLatencyMS:    rollup.AvgLatencyMS,
		Endpoints:       endpoints,
		FirstCallAt:     rollup.FirstCallAt,
		LastCallAt:      rollup.LastCallAt,
	}, nil
}

func (s *service) GetLatencyPercentiles(ctx context.Context, accountID uuid.UUID) (*LatencyPercentiles, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}
	latencies, err := s.repo.RecentLatencies(ctx, accountID, latencySampleSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latencies")
	}
	if len(latencies) == 0 {
		return &LatencyPercentiles{}, nil
	}
	sorted := make([]int64, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &LatencyPercentiles{
		SampleSize: len(sorted),
		P50:        percentile(sorted, 50),
		P90:        percentile(sorted, 90),
		P95:        percentile(sorted, 95),
		P99:        percentile(sorted, 99),
	}, nil
}

func (s *service) GetDailySeries(ctx context.Context, accountID uuid.UUID, days int) ([]DailyPoint, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}
	if days <= 0 {
		days = 30
	}
	if days > maxDailyRangeDays {
		days = maxDailyRangeDays
	}

	now := s.now()
	toDay := models.RollupDay(now)
	fromDay := models.RollupDay(now.AddDate(0, 0, -(days - 1)))

	rows, err := s.repo.ListDailyRollups(ctx, accountID, fromDay, toDay)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list daily rollups")
	}

	points := make([]DailyPoint, len(rows))
	for i, row := range rows {
		points[i] = DailyPoint{
			Day:             row.Day,
			TotalCalls:      row.TotalCalls,
			SuccessfulCalls: row.SuccessfulCalls,
			FailedCalls:     row.FailedCalls,
			AvgLatencyMS:    row.AvgLatencyMS,
		}
	}
	return points, nil
}

// GetEndpointStats folds the daily rollups of the last days into one
// per-endpoint breakdown, busiest endpoint first.
func (s *service) GetEndpointStats(ctx context.Context, accountID uuid.UUID, days int) ([]EndpointStat, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}
	if days <= 0 {
		days = 30
	}
	if days > maxDailyRangeDays {
		days = maxDailyRangeDays
	}

	now := s.now()
	toDay := models.RollupDay(now)
	fromDay := models.RollupDay(now.AddDate(0, 0, -(days - 1)))

	rows, err := s.repo.ListDailyRollups(ctx, accountID, fromDay, toDay)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list daily rollups")
	}

	totals := dbtypes.EndpointCounters{}
	for _, row := range rows {
		for endpoint, counter := range row.Endpoints {
			merged := totals[endpoint]
			merged.Calls += counter.Calls
			merged.Errors += counter.Errors
			totals[endpoint] = merged
		}
	}

	stats := make([]EndpointStat, 0, len(totals))
	for endpoint, counter := range totals {
		stat := EndpointStat{Endpoint: endpoint, Calls: counter.Calls, Errors: counter.Errors}
		if counter.Calls > 0 {
			stat.ErrorRate = float64(counter.Errors) / float64(counter.Calls)
		}
		stats = append(stats, stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Calls != stats[j].Calls {
			return stats[i].Calls > stats[j].Calls
		}
		return stats[i].Endpoint < stats[j].Endpoint
	})
	return stats, nil
}

func (s *service) freeTierPlanName() string {
	if s.quota.FreeTierPlanName != "" {
		return s.quota.FreeTierPlanName
	}
	return "Gratuit"
}

func (s *service) freeTierLimit() int64 {
	if s.quota.FreeTierLimit > 0 {
		return s.quota.FreeTierLimit
	}
	return 100
}

// percentile uses nearest-rank on an ascending sample.
func percentile(sorted []int64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return float64(sorted[rank-1])
}
