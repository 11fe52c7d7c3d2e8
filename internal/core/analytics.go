package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TopCategoryLimit caps the ranked category breakdown.
const TopCategoryLimit = 5

// CategoryShare is one entry of the ranked category breakdown. Share is the
// percentage of the total, rounded to one decimal place.
type CategoryShare struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Share  decimal.Decimal `json:"share"`
}

// Result is the derived spend analytics for a ledger. It is recomputed from
// scratch on every call and never persisted.
type Result struct {
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	PeriodDays      int             `json:"periodDays"`
	DailyRate       decimal.Decimal `json:"dailyRate"`
	MovingAverage7  decimal.Decimal `json:"movingAverage7"`
	MovingAverage30 decimal.Decimal `json:"movingAverage30"`
	TopCategories   []CategoryShare `json:"topCategories"`
	Currency        string          `json:"currency"`
	TargetDeviation decimal.Decimal `json:"targetDeviation"`
}

// Analyze derives spend analytics from the ledger and a target daily rate.
// Pure and deterministic: no I/O, no clock, no mutation of the ledger.
//
// The observation period spans from the earliest to the latest valid record
// date, inclusive, never less than one day. An empty ledger yields a one-day
// period, so the target deviation of an empty ledger equals the target rate.
func Analyze(l *Ledger, targetDailyRate decimal.Decimal, defaultCurrency string) Result {
	var (
		minDay, maxDay time.Time
		hasValid       bool
		total          = decimal.Zero
		byCategory     = make(map[string]decimal.Decimal)
	)
	currency := defaultCurrency
	if l != nil {
		for _, r := range l.Records {
			amount, ok := r.ValidAmount()
			if !ok {
				continue
			}
			day, _ := r.AttributionDate()
			if !hasValid {
				minDay, maxDay = day, day
				hasValid = true
			} else {
				if day.Before(minDay) {
					minDay = day
				}
				if day.After(maxDay) {
					maxDay = day
				}
			}
			total = total.Add(amount)
			cat := r.ResolvedCategory()
			byCategory[cat] = byCategory[cat].Add(amount)
		}
		currency = l.Currency(defaultCurrency)
	}

	periodDays := 1
	if hasValid {
		periodDays = int(maxDay.Sub(minDay).Hours()/24) + 1
		if periodDays < 1 {
			periodDays = 1
		}
	}
	period := decimal.NewFromInt(int64(periodDays))

	deviation := targetDailyRate.Mul(period).Sub(total)
	if deviation.IsNegative() {
		deviation = decimal.Zero
	}

	return Result{
		TotalAmount:     total,
		PeriodDays:      periodDays,
		DailyRate:       total.Div(period),
		MovingAverage7:  movingAverage(l, 7),
		MovingAverage30: movingAverage(l, 30),
		TopCategories:   rankCategories(byCategory, total),
		Currency:        currency,
		TargetDeviation: deviation,
	}
}

// movingAverage averages the totals of the n most recent dates that have a
// recorded total. Dates with no entry are not imputed as zero: sparse history
// is not diluted by phantom zero-days, so the divisor is the count of present
// dates, capped at n.
func movingAverage(l *Ledger, n int) decimal.Decimal {
	if l == nil || len(l.DailyTotals) == 0 {
		return decimal.Zero
	}
	days := l.SortedDays()
	start := len(days) - n
	if start < 0 {
		start = 0
	}
	window := days[start:]
	sum := decimal.Zero
	for _, d := range window {
		sum = sum.Add(l.DailyTotals[d])
	}
	return sum.Div(decimal.NewFromInt(int64(len(window))))
}

func rankCategories(byCategory map[string]decimal.Decimal, total decimal.Decimal) []CategoryShare {
	ranked := make([]CategoryShare, 0, len(byCategory))
	hundred := decimal.NewFromInt(100)
	for name, amount := range byCategory {
		share := decimal.Zero
		if total.IsPositive() {
			share = amount.Div(total).Mul(hundred).Round(1)
		}
		ranked = append(ranked, CategoryShare{Name: name, Amount: amount, Share: share})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].Amount.Equal(ranked[j].Amount) {
			return ranked[i].Amount.GreaterThan(ranked[j].Amount)
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > TopCategoryLimit {
		ranked = ranked[:TopCategoryLimit]
	}
	return ranked
}
