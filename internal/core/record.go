package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DayFormat is the calendar-date key format used throughout the ledger.
const DayFormat = "2006-01-02"

// UncategorizedLabel is the terminal fallback of category resolution.
const UncategorizedLabel = "Uncategorized"

// Origin values distinguish how a record entered the ledger.
const (
	OriginFeed   = "feed"
	OriginManual = "manual"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyCategory = errors.New("empty category")
	ErrInvalidDate   = errors.New("invalid date")
)

// Amount is a decimal spend magnitude with decode-time validity.
//
// The remote feed occasionally ships records whose amount is missing or not a
// number. Those records must survive the merge (they affect record counts) but
// must never contribute to daily totals, so decoding swallows the parse error
// and marks the amount invalid instead of failing the whole batch.
type Amount struct {
	Value decimal.Decimal
	Valid bool
}

// NewAmount wraps a decimal as a valid amount.
func NewAmount(v decimal.Decimal) Amount {
	return Amount{Value: v, Valid: true}
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*a = Amount{}
		return nil
	}
	v, err := decimal.NewFromString(strings.Trim(s, `"`))
	if err != nil {
		*a = Amount{}
		return nil
	}
	*a = Amount{Value: v, Valid: true}
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(a.Value.String()), nil
}

// SpentAmount is the feed's nested amount object.
type SpentAmount struct {
	Amount   Amount `json:"amount"`
	Currency string `json:"currency"`
}

// Merchant accepts both wire encodings: a plain string or an object carrying
// a merchant-level category.
type Merchant struct {
	Name     string
	Category string
}

func (m *Merchant) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*m = Merchant{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return fmt.Errorf("merchant string: %w", err)
		}
		*m = Merchant{Name: name}
		return nil
	}
	var obj struct {
		Name     string `json:"name"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("merchant object: %w", err)
	}
	*m = Merchant{Name: obj.Name, Category: obj.Category}
	return nil
}

func (m Merchant) MarshalJSON() ([]byte, error) {
	if m.Category == "" {
		return json.Marshal(m.Name)
	}
	return json.Marshal(struct {
		Name     string `json:"name,omitempty"`
		Category string `json:"category,omitempty"`
	}{Name: m.Name, Category: m.Category})
}

// ExpenseRecord is a single spend event, feed-sourced or manually entered.
// Field names match the persisted wire schema.
type ExpenseRecord struct {
	ID            string      `json:"id"`
	State         string      `json:"state,omitempty"`
	SpentAmount   SpentAmount `json:"spent_amount"`
	ExpenseDate   string      `json:"expense_date,omitempty"`
	CreatedAt     string      `json:"created_at,omitempty"`
	Category      string      `json:"category,omitempty"`
	Merchant      *Merchant   `json:"merchant,omitempty"`
	IsManualEntry bool        `json:"is_manual_entry,omitempty"`
}

// Origin reports whether the record came from the remote feed or was
// synthesized locally.
func (r ExpenseRecord) Origin() string {
	if r.IsManualEntry {
		return OriginManual
	}
	return OriginFeed
}

// ResolvedCategory applies the category fallback chain: merchant-level
// category, explicit category field, raw merchant string, Uncategorized.
func (r ExpenseRecord) ResolvedCategory() string {
	if r.Merchant != nil && strings.TrimSpace(r.Merchant.Category) != "" {
		return strings.TrimSpace(r.Merchant.Category)
	}
	if c := strings.TrimSpace(r.Category); c != "" {
		return c
	}
	if r.Merchant != nil && strings.TrimSpace(r.Merchant.Name) != "" {
		return strings.TrimSpace(r.Merchant.Name)
	}
	return UncategorizedLabel
}

// AttributionDate resolves the calendar date the spend belongs to: the
// explicit expense date when present, otherwise the creation timestamp's day.
// The second return is false when neither parses.
func (r ExpenseRecord) AttributionDate() (time.Time, bool) {
	if d, err := parseDay(r.ExpenseDate); err == nil {
		return d, true
	}
	if d, err := parseDay(r.CreatedAt); err == nil {
		return d, true
	}
	return time.Time{}, false
}

// ValidAmount returns the absolute spend magnitude. Refunds count as spend of
// equal magnitude: the ledger measures rate, not net cash flow. The second
// return is false when the amount never parsed or the record has no usable
// date, in which case the record is excluded from all totals.
func (r ExpenseRecord) ValidAmount() (decimal.Decimal, bool) {
	if !r.SpentAmount.Amount.Valid {
		return decimal.Decimal{}, false
	}
	if _, ok := r.AttributionDate(); !ok {
		return decimal.Decimal{}, false
	}
	return r.SpentAmount.Amount.Value.Abs(), true
}

func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if d, err := time.Parse(DayFormat, s); err == nil {
		return d.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, dd := ts.UTC().Date()
		return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, ErrInvalidDate
}

// NewManualEntry synthesizes a cash-entry record that flows through the same
// merge path as fetched records. The id combines a millisecond timestamp with
// a random suffix so concurrent entries never collide.
func NewManualEntry(amount decimal.Decimal, currency, category string, date time.Time) (ExpenseRecord, error) {
	if amount.IsZero() {
		return ExpenseRecord{}, ErrInvalidAmount
	}
	if strings.TrimSpace(category) == "" {
		return ExpenseRecord{}, ErrEmptyCategory
	}
	if date.IsZero() {
		return ExpenseRecord{}, ErrInvalidDate
	}
	id := fmt.Sprintf("manual-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	return ExpenseRecord{
		ID:            id,
		SpentAmount:   SpentAmount{Amount: NewAmount(amount.Abs()), Currency: currency},
		ExpenseDate:   date.Format(DayFormat),
		Category:      strings.TrimSpace(category),
		IsManualEntry: true,
	}, nil
}
