package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendsync/internal/core"
)

type fakeFetcher struct {
	records  []core.ExpenseRecord
	err      error
	calls    int
	lastFrom time.Time
	lastTo   time.Time
	lastCred string
}

func (f *fakeFetcher) Fetch(_ context.Context, from, to time.Time, credential string) ([]core.ExpenseRecord, error) {
	f.calls++
	f.lastFrom, f.lastTo, f.lastCred = from, to, credential
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type staticCreds string

func (c staticCreds) GetValid(context.Context) (string, error) { return string(c), nil }

type failingCreds struct{ err error }

func (c failingCreds) GetValid(context.Context) (string, error) { return "", c.err }

func feedRecord(id, day, amount string) core.ExpenseRecord {
	return core.ExpenseRecord{
		ID:          id,
		ExpenseDate: day,
		SpentAmount: core.SpentAmount{Amount: core.NewAmount(decimal.RequireFromString(amount)), Currency: "USD"},
	}
}

func dayOf(s string) time.Time {
	d, err := time.Parse(core.DayFormat, s)
	if err != nil {
		panic(err)
	}
	return d.UTC()
}

func TestWindow(t *testing.T) {
	today := dayOf("2025-06-30")
	tests := []struct {
		name     string
		cursor   *time.Time
		opts     Options
		wantFrom string
		wantTo   string
		wantOK   bool
	}{
		{
			name:     "no cursor defaults to 30-day lookback",
			cursor:   nil,
			wantFrom: "2025-05-31",
			wantTo:   "2025-06-30",
			wantOK:   true,
		},
		{
			name:     "custom lookback",
			cursor:   nil,
			opts:     Options{LookbackDays: 7},
			wantFrom: "2025-06-23",
			wantTo:   "2025-06-30",
			wantOK:   true,
		},
		{
			name:     "cursor resumes the day after",
			cursor:   ptr(dayOf("2025-06-20")),
			wantFrom: "2025-06-21",
			wantTo:   "2025-06-30",
			wantOK:   true,
		},
		{
			name:   "cursor at today means up to date",
			cursor: ptr(dayOf("2025-06-30")),
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, ok := Window(tt.cursor, today, tt.opts)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got := from.Format(core.DayFormat); got != tt.wantFrom {
				t.Errorf("from = %s, want %s", got, tt.wantFrom)
			}
			if got := to.Format(core.DayFormat); got != tt.wantTo {
				t.Errorf("to = %s, want %s", got, tt.wantTo)
			}
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestRunCycleAdvancesCursor(t *testing.T) {
	today := dayOf("2025-06-30")
	fetcher := &fakeFetcher{records: []core.ExpenseRecord{feedRecord("a", "2025-06-29", "10")}}

	res, err := RunCycle(context.Background(), core.NewLedger(), nil, today, fetcher, staticCreds("tok"), nil, Options{})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if fetcher.calls != 1 || fetcher.lastCred != "tok" {
		t.Fatalf("fetcher calls=%d cred=%q", fetcher.calls, fetcher.lastCred)
	}
	if res.Cursor == nil || !res.Cursor.Equal(today) {
		t.Fatalf("cursor = %v, want %s", res.Cursor, today)
	}
	if res.NewRecords != 1 || res.Fetched != 1 {
		t.Fatalf("new=%d fetched=%d, want 1/1", res.NewRecords, res.Fetched)
	}
}

// Empty-but-successful fetches still advance the cursor so empty ranges are
// not re-scanned on every invocation.
func TestRunCycleAdvancesOnEmptyFetch(t *testing.T) {
	today := dayOf("2025-06-30")
	cursor := ptr(dayOf("2025-06-25"))
	fetcher := &fakeFetcher{}

	res, err := RunCycle(context.Background(), core.NewLedger(), cursor, today, fetcher, staticCreds("tok"), nil, Options{})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.Cursor == nil || !res.Cursor.Equal(today) {
		t.Fatalf("cursor = %v, want advanced to %s", res.Cursor, today)
	}
	if res.Cursor.Before(*cursor) {
		t.Fatal("cursor moved backwards")
	}
}

func TestRunCycleUpToDateSkipsFetch(t *testing.T) {
	today := dayOf("2025-06-30")
	cursor := ptr(today)
	fetcher := &fakeFetcher{records: []core.ExpenseRecord{feedRecord("a", "2025-06-30", "10")}}

	entry, _ := core.NewManualEntry(decimal.NewFromInt(5), "USD", "Coffee", today)
	res, err := RunCycle(context.Background(), core.NewLedger(), cursor, today, fetcher, staticCreds("tok"),
		[]core.ExpenseRecord{entry}, Options{})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("fetcher called %d times while up to date", fetcher.calls)
	}
	if !res.Cursor.Equal(*cursor) {
		t.Fatalf("cursor changed without a fetch: %v", res.Cursor)
	}
	// Manual entries bypass the feed but still merge.
	if res.NewRecords != 1 {
		t.Fatalf("manual entry not merged: new=%d", res.NewRecords)
	}
}

func TestRunCycleFetchFailureLeavesStateUntouched(t *testing.T) {
	today := dayOf("2025-06-30")
	cursor := ptr(dayOf("2025-06-20"))
	fetcher := &fakeFetcher{err: errors.New("upstream 503")}

	_, err := RunCycle(context.Background(), core.NewLedger(), cursor, today, fetcher, staticCreds("tok"), nil, Options{})
	if err == nil {
		t.Fatal("expected fetch error to propagate")
	}
	// The failed window is retried on the next invocation.
	from, _, ok := Window(cursor, today, Options{})
	if !ok || from.Format(core.DayFormat) != "2025-06-21" {
		t.Fatalf("retry window broken: from=%s ok=%v", from.Format(core.DayFormat), ok)
	}
}

func TestRunCycleCredentialFailure(t *testing.T) {
	today := dayOf("2025-06-30")
	fetcher := &fakeFetcher{}
	_, err := RunCycle(context.Background(), core.NewLedger(), nil, today, fetcher,
		failingCreds{err: errors.New("refresh failed")}, nil, Options{})
	if err == nil {
		t.Fatal("expected credential error to propagate")
	}
	if fetcher.calls != 0 {
		t.Fatal("fetcher must not be called without a credential")
	}
}

func TestRunCycleRecheckToday(t *testing.T) {
	today := dayOf("2025-06-30")
	fetcher := &fakeFetcher{}

	res, err := RunCycle(context.Background(), core.NewLedger(), ptr(dayOf("2025-06-25")), today, fetcher,
		staticCreds("tok"), nil, Options{RecheckToday: true})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if got := res.Cursor.Format(core.DayFormat); got != "2025-06-29" {
		t.Fatalf("cursor = %s, want 2025-06-29 (today re-checked next cycle)", got)
	}
}

func TestRunCycleDedupAcrossRuns(t *testing.T) {
	today := dayOf("2025-06-30")
	fetcher := &fakeFetcher{records: []core.ExpenseRecord{feedRecord("dup", "2025-06-29", "10")}}

	first, err := RunCycle(context.Background(), core.NewLedger(), nil, today, fetcher, staticCreds("tok"), nil, Options{})
	if err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	// Simulate the cursor write being lost: same window re-fetched.
	second, err := RunCycle(context.Background(), first.Ledger, nil, today, fetcher, staticCreds("tok"), nil, Options{})
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if second.NewRecords != 0 {
		t.Fatalf("duplicate fetch double-counted: new=%d", second.NewRecords)
	}
	if !second.Ledger.DailyTotals["2025-06-29"].Equal(decimal.NewFromInt(10)) {
		t.Fatalf("total = %s, want 10", second.Ledger.DailyTotals["2025-06-29"])
	}
}
