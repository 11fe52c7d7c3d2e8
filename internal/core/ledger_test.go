package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func feedRecord(id, day, amount string) ExpenseRecord {
	return ExpenseRecord{
		ID:          id,
		ExpenseDate: day,
		SpentAmount: SpentAmount{Amount: NewAmount(decimal.RequireFromString(amount)), Currency: "USD"},
	}
}

func totalsEqual(t *testing.T, got map[string]decimal.Decimal, want map[string]string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("daily totals size = %d, want %d (%v)", len(got), len(want), got)
	}
	for day, w := range want {
		if !got[day].Equal(decimal.RequireFromString(w)) {
			t.Errorf("total[%s] = %s, want %s", day, got[day], w)
		}
	}
}

func TestMergeIdempotent(t *testing.T) {
	batch := []ExpenseRecord{
		feedRecord("a", "2025-01-01", "50"),
		feedRecord("b", "2025-01-02", "70"),
	}
	once, added := Merge(NewLedger(), batch)
	if added != 2 {
		t.Fatalf("first merge added %d, want 2", added)
	}
	twice, added := Merge(once, batch)
	if added != 0 {
		t.Fatalf("re-merge added %d, want 0", added)
	}
	if len(twice.Records) != len(once.Records) {
		t.Fatalf("re-merge grew records: %d vs %d", len(twice.Records), len(once.Records))
	}
	totalsEqual(t, twice.DailyTotals, map[string]string{"2025-01-01": "50", "2025-01-02": "70"})
}

func TestMergeOrderIndependent(t *testing.T) {
	r1 := []ExpenseRecord{feedRecord("a", "2025-01-01", "10"), feedRecord("b", "2025-01-02", "20")}
	r2 := []ExpenseRecord{feedRecord("c", "2025-01-02", "5"), feedRecord("d", "2025-01-03", "7")}

	ab, _ := Merge(NewLedger(), r1)
	ab, _ = Merge(ab, r2)
	ba, _ := Merge(NewLedger(), r2)
	ba, _ = Merge(ba, r1)

	if len(ab.Records) != len(ba.Records) {
		t.Fatalf("record counts differ: %d vs %d", len(ab.Records), len(ba.Records))
	}
	want := map[string]string{"2025-01-01": "10", "2025-01-02": "25", "2025-01-03": "7"}
	totalsEqual(t, ab.DailyTotals, want)
	totalsEqual(t, ba.DailyTotals, want)
}

func TestMergeTotalConservation(t *testing.T) {
	batch := []ExpenseRecord{
		feedRecord("a", "2025-01-01", "12.30"),
		feedRecord("b", "2025-01-01", "-7.70"),
		feedRecord("c", "2025-02-10", "100"),
		{ID: "broken", ExpenseDate: "2025-02-11"}, // no amount
	}
	ledger, _ := Merge(NewLedger(), batch)

	sumTotals := decimal.Zero
	for _, v := range ledger.DailyTotals {
		sumTotals = sumTotals.Add(v)
	}
	sumValid := decimal.Zero
	for _, r := range ledger.Records {
		if amount, ok := r.ValidAmount(); ok {
			sumValid = sumValid.Add(amount)
		}
	}
	if !sumTotals.Equal(sumValid) {
		t.Fatalf("conservation broken: totals %s vs valid amounts %s", sumTotals, sumValid)
	}
	if !sumTotals.Equal(decimal.RequireFromString("120")) {
		t.Fatalf("total = %s, want 120", sumTotals)
	}
}

// Merging the same id twice with a different amount must keep the first-seen
// amount only.
func TestMergeDuplicateIDKeepsFirst(t *testing.T) {
	ledger, _ := Merge(NewLedger(), []ExpenseRecord{feedRecord("a", "2025-01-01", "50")})
	ledger, added := Merge(ledger, []ExpenseRecord{feedRecord("a", "2025-01-01", "999")})
	if added != 0 {
		t.Fatalf("duplicate id added %d records", added)
	}
	if len(ledger.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(ledger.Records))
	}
	totalsEqual(t, ledger.DailyTotals, map[string]string{"2025-01-01": "50"})
}

func TestMergeManualEntryIntoExistingDay(t *testing.T) {
	ledger, _ := Merge(NewLedger(), []ExpenseRecord{feedRecord("a", "2025-03-15", "40")})

	entry, err := NewManualEntry(decimal.RequireFromString("25.50"), "USD", "Groceries",
		time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewManualEntry: %v", err)
	}
	before := len(ledger.Records)
	ledger, added := Merge(ledger, []ExpenseRecord{entry})
	if added != 1 || len(ledger.Records) != before+1 {
		t.Fatalf("records grew by %d, want 1", len(ledger.Records)-before)
	}
	totalsEqual(t, ledger.DailyTotals, map[string]string{"2025-03-15": "65.5"})
}

func TestMergeRetainsInvalidRecordsOutsideTotals(t *testing.T) {
	batch := []ExpenseRecord{
		{ID: "no-amount", ExpenseDate: "2025-01-01"},
		{ID: "no-date", SpentAmount: SpentAmount{Amount: NewAmount(decimal.NewFromInt(3))}},
	}
	ledger, added := Merge(NewLedger(), batch)
	if added != 2 {
		t.Fatalf("added = %d, want 2 (invalid records stay in the raw list)", added)
	}
	if len(ledger.DailyTotals) != 0 {
		t.Fatalf("invalid records leaked into totals: %v", ledger.DailyTotals)
	}
}

func TestMergeEdgeCases(t *testing.T) {
	t.Run("nil ledger", func(t *testing.T) {
		ledger, added := Merge(nil, []ExpenseRecord{feedRecord("a", "2025-01-01", "1")})
		if added != 1 || len(ledger.Records) != 1 {
			t.Fatalf("merge into nil ledger: added=%d records=%d", added, len(ledger.Records))
		}
	})
	t.Run("empty incoming is a no-op", func(t *testing.T) {
		base, _ := Merge(NewLedger(), []ExpenseRecord{feedRecord("a", "2025-01-01", "1")})
		out, added := Merge(base, nil)
		if added != 0 || len(out.Records) != 1 {
			t.Fatalf("no-op merge changed ledger: added=%d records=%d", added, len(out.Records))
		}
	})
	t.Run("missing id dropped", func(t *testing.T) {
		ledger, added := Merge(NewLedger(), []ExpenseRecord{{ExpenseDate: "2025-01-01"}})
		if added != 0 || len(ledger.Records) != 0 {
			t.Fatalf("record without id must be dropped: added=%d", added)
		}
	})
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	base, _ := Merge(NewLedger(), []ExpenseRecord{feedRecord("a", "2025-01-01", "10")})
	_, _ = Merge(base, []ExpenseRecord{feedRecord("b", "2025-01-01", "5")})
	totalsEqual(t, base.DailyTotals, map[string]string{"2025-01-01": "10"})
	if len(base.Records) != 1 {
		t.Fatalf("input ledger mutated: %d records", len(base.Records))
	}
}

func TestLedgerCurrency(t *testing.T) {
	if got := NewLedger().Currency("EUR"); got != "EUR" {
		t.Errorf("empty ledger currency = %s, want fallback EUR", got)
	}
	ledger, _ := Merge(NewLedger(), []ExpenseRecord{
		{ID: "invalid", ExpenseDate: "2025-01-01", SpentAmount: SpentAmount{Currency: "GBP"}},
		feedRecord("a", "2025-01-02", "10"),
	})
	if got := ledger.Currency("EUR"); got != "USD" {
		t.Errorf("currency = %s, want USD from first valid record", got)
	}
}
