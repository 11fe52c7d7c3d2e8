package notify

import (
	"fmt"
	"strings"
)

// FormatDigest renders a digest as a plain-text message. Chart rendering and
// bot-specific templating live with the delivery side; this is the neutral
// fallback representation.
func FormatDigest(d Digest) string {
	a := d.Analytics
	var b strings.Builder

	fmt.Fprintf(&b, "Spend digest for %s\n", d.GeneratedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "Total: %s %s over %d day(s)\n", a.TotalAmount.StringFixed(2), a.Currency, a.PeriodDays)
	fmt.Fprintf(&b, "Daily rate: %s %s\n", a.DailyRate.StringFixed(2), a.Currency)
	fmt.Fprintf(&b, "Moving averages: 7d %s, 30d %s\n",
		a.MovingAverage7.StringFixed(2), a.MovingAverage30.StringFixed(2))

	if a.TargetDeviation.IsPositive() {
		fmt.Fprintf(&b, "Shortfall vs target: %s %s\n", a.TargetDeviation.StringFixed(2), a.Currency)
	} else {
		b.WriteString("Target met.\n")
	}

	if len(a.TopCategories) > 0 {
		b.WriteString("Top categories:\n")
		for i, c := range a.TopCategories {
			fmt.Fprintf(&b, "  %d. %s: %s (%s%%)\n", i+1, c.Name, c.Amount.StringFixed(2), c.Share)
		}
	}

	if d.NewRecords > 0 {
		fmt.Fprintf(&b, "%d new record(s) this cycle.\n", d.NewRecords)
	}

	return b.String()
}
