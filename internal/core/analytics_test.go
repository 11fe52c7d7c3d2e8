package core

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func decEqual(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func TestAnalyzeEmptyLedger(t *testing.T) {
	res := Analyze(NewLedger(), decimal.NewFromInt(150), "EUR")

	decEqual(t, "TotalAmount", res.TotalAmount, "0")
	decEqual(t, "DailyRate", res.DailyRate, "0")
	if res.PeriodDays != 1 {
		t.Errorf("PeriodDays = %d, want 1", res.PeriodDays)
	}
	decEqual(t, "TargetDeviation", res.TargetDeviation, "150")
	if res.Currency != "EUR" {
		t.Errorf("Currency = %s, want default EUR", res.Currency)
	}
	if len(res.TopCategories) != 0 {
		t.Errorf("TopCategories = %v, want empty", res.TopCategories)
	}
}

func TestAnalyzeThreeDayLedger(t *testing.T) {
	ledger, _ := Merge(NewLedger(), []ExpenseRecord{
		feedRecord("a", "2025-01-01", "50"),
		feedRecord("b", "2025-01-02", "70"),
		feedRecord("c", "2025-01-03", "30"),
	})
	res := Analyze(ledger, decimal.NewFromInt(50), "EUR")

	decEqual(t, "TotalAmount", res.TotalAmount, "150")
	if res.PeriodDays != 3 {
		t.Errorf("PeriodDays = %d, want 3", res.PeriodDays)
	}
	decEqual(t, "DailyRate", res.DailyRate, "50")
	decEqual(t, "TargetDeviation", res.TargetDeviation, "0")
	if res.Currency != "USD" {
		t.Errorf("Currency = %s, want USD from records", res.Currency)
	}
}

// The 7-day moving average uses the 7 most recent dates that have a recorded
// total, not a 7-calendar-day window: sparse history is not diluted by
// phantom zero-days.
func TestMovingAverageSparseDates(t *testing.T) {
	days := []string{
		"2025-01-01", "2025-01-03", "2025-01-07", "2025-01-08", "2025-01-15",
		"2025-02-01", "2025-02-09", "2025-02-20", "2025-03-01", "2025-03-19",
	}
	var batch []ExpenseRecord
	for i, d := range days {
		batch = append(batch, feedRecord(fmt.Sprintf("r%d", i), d, fmt.Sprintf("%d", (i+1)*10)))
	}
	ledger, _ := Merge(NewLedger(), batch)
	res := Analyze(ledger, decimal.Zero, "EUR")

	// Last 7 present dates carry 40+50+60+70+80+90+100 = 490.
	decEqual(t, "MovingAverage7", res.MovingAverage7, "70")
	// Only 10 dates exist, so the 30-day average divides by 10.
	decEqual(t, "MovingAverage30", res.MovingAverage30, "55")
}

func TestMovingAverageShortHistory(t *testing.T) {
	ledger, _ := Merge(NewLedger(), []ExpenseRecord{
		feedRecord("a", "2025-01-01", "10"),
		feedRecord("b", "2025-01-05", "30"),
	})
	res := Analyze(ledger, decimal.Zero, "EUR")
	decEqual(t, "MovingAverage7", res.MovingAverage7, "20")
}

func TestTargetDeviationNeverNegative(t *testing.T) {
	ledger, _ := Merge(NewLedger(), []ExpenseRecord{feedRecord("a", "2025-01-01", "1000")})
	res := Analyze(ledger, decimal.NewFromInt(10), "EUR")
	if res.TargetDeviation.IsNegative() {
		t.Fatalf("TargetDeviation = %s, must never be negative", res.TargetDeviation)
	}
	decEqual(t, "TargetDeviation", res.TargetDeviation, "0")
}

func TestTopCategories(t *testing.T) {
	var batch []ExpenseRecord
	categories := []string{"Food", "Transport", "Rent", "Fun", "Health", "Books", "Misc"}
	for i, cat := range categories {
		r := feedRecord(fmt.Sprintf("c%d", i), "2025-01-01", fmt.Sprintf("%d", (i+1)*100))
		r.Category = cat
		batch = append(batch, r)
	}
	ledger, _ := Merge(NewLedger(), batch)
	res := Analyze(ledger, decimal.Zero, "EUR")

	if len(res.TopCategories) != TopCategoryLimit {
		t.Fatalf("TopCategories = %d entries, want %d", len(res.TopCategories), TopCategoryLimit)
	}
	if res.TopCategories[0].Name != "Misc" {
		t.Errorf("top category = %s, want Misc", res.TopCategories[0].Name)
	}
	for i := 1; i < len(res.TopCategories); i++ {
		if res.TopCategories[i].Amount.GreaterThan(res.TopCategories[i-1].Amount) {
			t.Fatalf("categories not sorted descending at %d", i)
		}
	}
	// 700 of 2800 total.
	decEqual(t, "top share", res.TopCategories[0].Share, "25")
}

func TestTopCategoryShareOneDecimal(t *testing.T) {
	ledger, _ := Merge(NewLedger(), []ExpenseRecord{
		func() ExpenseRecord {
			r := feedRecord("a", "2025-01-01", "1")
			r.Category = "A"
			return r
		}(),
		func() ExpenseRecord {
			r := feedRecord("b", "2025-01-01", "2")
			r.Category = "B"
			return r
		}(),
	})
	res := Analyze(ledger, decimal.Zero, "EUR")
	decEqual(t, "B share", res.TopCategories[0].Share, "66.7")
	decEqual(t, "A share", res.TopCategories[1].Share, "33.3")
}

func TestAnalyzeNilLedger(t *testing.T) {
	res := Analyze(nil, decimal.NewFromInt(5), "EUR")
	if res.PeriodDays != 1 {
		t.Errorf("PeriodDays = %d, want 1", res.PeriodDays)
	}
	decEqual(t, "TargetDeviation", res.TargetDeviation, "5")
}
