package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"spendsync/internal/core"
	"spendsync/internal/notify"
)

// Store is the ledger persistence capability. Ledger and cursor are
// independent keys with no cross-key transaction: a partial failure between
// the two writes is absorbed by the merge's idempotent dedup on the next run.
type Store interface {
	LoadLedger(ctx context.Context) (*core.Ledger, error)
	SaveLedger(ctx context.Context, l *core.Ledger) error
	LoadCursor(ctx context.Context) (*time.Time, error)
	SaveCursor(ctx context.Context, cursor time.Time) error
}

// Notifier publishes a spend digest after a successful cycle. Delivery
// failures are logged and never escalated.
type Notifier interface {
	PublishDigest(ctx context.Context, digest notify.Digest) error
}

// Service runs the full sync cycle against persistent state: load, fetch,
// merge, persist, analyze, notify.
type Service struct {
	store           Store
	fetcher         Fetcher
	creds           CredentialProvider
	notifier        Notifier
	opts            Options
	targetDailyRate decimal.Decimal
	defaultCurrency string
	now             func() time.Time
}

func NewService(store Store, fetcher Fetcher, creds CredentialProvider, notifier Notifier,
	opts Options, targetDailyRate decimal.Decimal, defaultCurrency string) *Service {
	return &Service{
		store:           store,
		fetcher:         fetcher,
		creds:           creds,
		notifier:        notifier,
		opts:            opts,
		targetDailyRate: targetDailyRate,
		defaultCurrency: defaultCurrency,
		now:             time.Now,
	}
}

// RunReport summarizes one completed cycle.
type RunReport struct {
	Fetched    int
	NewRecords int
	Analytics  core.Result
}

// Run executes one sync cycle. Manual entries, if any, are merged through the
// same path as fetched records. A failed cycle returns an error with no
// partial ledger corruption: nothing is persisted unless the fetch+merge
// succeeded, and a ledger write that lands without the cursor write only
// causes a redundant, idempotent re-merge next time.
func (s *Service) Run(ctx context.Context, manual []core.ExpenseRecord) (RunReport, error) {
	ledger, err := s.store.LoadLedger(ctx)
	if err != nil {
		return RunReport{}, fmt.Errorf("load ledger: %w", err)
	}
	cursor, err := s.store.LoadCursor(ctx)
	if err != nil {
		return RunReport{}, fmt.Errorf("load cursor: %w", err)
	}

	res, err := RunCycle(ctx, ledger, cursor, s.now().UTC(), s.fetcher, s.creds, manual, s.opts)
	if err != nil {
		return RunReport{}, err
	}

	if err := s.store.SaveLedger(ctx, res.Ledger); err != nil {
		return RunReport{}, fmt.Errorf("save ledger: %w", err)
	}
	if res.Cursor != nil && (cursor == nil || res.Cursor.After(*cursor)) {
		if err := s.store.SaveCursor(ctx, *res.Cursor); err != nil {
			return RunReport{}, fmt.Errorf("save cursor: %w", err)
		}
	}

	analytics := core.Analyze(res.Ledger, s.targetDailyRate, s.defaultCurrency)

	slog.InfoContext(ctx, "Sync cycle complete",
		"fetched", res.Fetched,
		"new_records", res.NewRecords,
		"total_amount", analytics.TotalAmount.String(),
		"daily_rate", analytics.DailyRate.StringFixed(2))

	s.publishDigest(ctx, analytics, res.Ledger, res.NewRecords)

	return RunReport{Fetched: res.Fetched, NewRecords: res.NewRecords, Analytics: analytics}, nil
}

// Analytics recomputes the analytics from the persisted ledger without
// performing any sync.
func (s *Service) Analytics(ctx context.Context) (core.Result, error) {
	return s.AnalyticsWithTarget(ctx, s.targetDailyRate)
}

// AnalyticsWithTarget is Analytics with a caller-supplied target rate.
func (s *Service) AnalyticsWithTarget(ctx context.Context, target decimal.Decimal) (core.Result, error) {
	ledger, err := s.store.LoadLedger(ctx)
	if err != nil {
		return core.Result{}, fmt.Errorf("load ledger: %w", err)
	}
	return core.Analyze(ledger, target, s.defaultCurrency), nil
}

// DailyTotals exposes the raw per-day series for charting consumers.
func (s *Service) DailyTotals(ctx context.Context) (map[string]decimal.Decimal, error) {
	ledger, err := s.store.LoadLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if ledger == nil {
		return map[string]decimal.Decimal{}, nil
	}
	return ledger.DailyTotals, nil
}

func (s *Service) publishDigest(ctx context.Context, analytics core.Result, ledger *core.Ledger, newRecords int) {
	if s.notifier == nil {
		slog.DebugContext(ctx, "Notifier not configured, skipping digest")
		return
	}
	digest := notify.NewDigest(analytics, ledger, newRecords)
	if err := s.notifier.PublishDigest(ctx, digest); err != nil {
		slog.ErrorContext(ctx, "Failed to publish digest", "error", err)
	}
}
