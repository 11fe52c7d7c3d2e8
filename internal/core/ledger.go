package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Ledger is the append-only collection of all known expense records plus the
// per-day rolled-up totals kept consistent with them. It is persisted after
// every successful merge and only ever grows.
type Ledger struct {
	Records     []ExpenseRecord            `json:"records"`
	DailyTotals map[string]decimal.Decimal `json:"dailyTotals"`
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{DailyTotals: make(map[string]decimal.Decimal)}
}

// Clone returns a deep copy. Merge never mutates its input.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return NewLedger()
	}
	out := &Ledger{
		Records:     make([]ExpenseRecord, len(l.Records)),
		DailyTotals: make(map[string]decimal.Decimal, len(l.DailyTotals)),
	}
	copy(out.Records, l.Records)
	for k, v := range l.DailyTotals {
		out.DailyTotals[k] = v
	}
	return out
}

// Merge folds incoming records into the ledger and returns the new ledger
// plus the number of records actually added.
//
// The record id is the sole deduplication key: an id already present is a
// no-op, so re-merging a previously fetched window never double-counts.
// Records whose amount or date never parsed are appended to the raw list but
// excluded from the daily totals. Records without an id cannot be deduped and
// are dropped.
func Merge(l *Ledger, incoming []ExpenseRecord) (*Ledger, int) {
	merged := l.Clone()
	seen := make(map[string]struct{}, len(merged.Records))
	for _, r := range merged.Records {
		seen[r.ID] = struct{}{}
	}

	added := 0
	for _, rec := range incoming {
		if rec.ID == "" {
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		merged.Records = append(merged.Records, rec)
		added++

		amount, ok := rec.ValidAmount()
		if !ok {
			continue
		}
		day, _ := rec.AttributionDate()
		key := day.Format(DayFormat)
		merged.DailyTotals[key] = merged.DailyTotals[key].Add(amount)
	}
	return merged, added
}

// Currency returns the ledger-wide currency: the first valid record carrying
// a currency code, or the fallback for an empty ledger. Mixed-currency
// ledgers are not normalized; the first code wins.
func (l *Ledger) Currency(fallback string) string {
	if l == nil {
		return fallback
	}
	for _, r := range l.Records {
		if _, ok := r.ValidAmount(); ok && r.SpentAmount.Currency != "" {
			return r.SpentAmount.Currency
		}
	}
	return fallback
}

// SortedDays returns the distinct dates present in the daily totals in
// ascending order.
func (l *Ledger) SortedDays() []string {
	if l == nil {
		return nil
	}
	days := make([]string, 0, len(l.DailyTotals))
	for d := range l.DailyTotals {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}
