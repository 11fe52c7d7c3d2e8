package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"spendsync/internal/core"
)

// Digest carries one cycle's analytics plus the raw daily-totals series the
// delivery side needs for charting. The ledger pipeline's success is
// independent of whether a digest was ever delivered.
type Digest struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	Analytics   core.Result                `json:"analytics"`
	DailyTotals map[string]decimal.Decimal `json:"daily_totals"`
	NewRecords  int                        `json:"new_records"`
}

// NewDigest builds a digest from an analytics result and the ledger it was
// derived from.
func NewDigest(analytics core.Result, ledger *core.Ledger, newRecords int) Digest {
	d := Digest{
		GeneratedAt: time.Now().UTC(),
		Analytics:   analytics,
		DailyTotals: make(map[string]decimal.Decimal),
		NewRecords:  newRecords,
	}
	if ledger != nil {
		for day, total := range ledger.DailyTotals {
			d.DailyTotals[day] = total
		}
	}
	return d
}

// ToJSON serializes the digest for transport.
func (d Digest) ToJSON() ([]byte, error) {
	return json.Marshal(d)
}

// DigestFromJSON deserializes a digest received from the queue.
func DigestFromJSON(data []byte) (*Digest, error) {
	var d Digest
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal digest: %w", err)
	}
	return &d, nil
}
