package sync

import (
	"context"
	"fmt"
	"time"

	"spendsync/internal/core"
)

// DefaultLookbackDays is the initial fetch window when no cursor exists yet.
const DefaultLookbackDays = 30

// Fetcher is the remote feed capability: fetch expense records in [from, to].
// Transport and authorization failures propagate unchanged; retries belong to
// the client or the caller, never to the coordinator.
type Fetcher interface {
	Fetch(ctx context.Context, from, to time.Time, credential string) ([]core.ExpenseRecord, error)
}

// CredentialProvider supplies a valid bearer credential, refreshing
// internally when the current one expired. Opaque to the coordinator.
type CredentialProvider interface {
	GetValid(ctx context.Context) (string, error)
}

// Options tune the coordinator's window behavior.
type Options struct {
	// LookbackDays is the initial window size when no cursor exists.
	// Zero means DefaultLookbackDays.
	LookbackDays int

	// RecheckToday advances the cursor only to the day before the window's
	// upper bound, so same-day late-arriving records are picked up on the
	// next cycle at the cost of re-fetching one day.
	RecheckToday bool
}

func (o Options) lookback() int {
	if o.LookbackDays > 0 {
		return o.LookbackDays
	}
	return DefaultLookbackDays
}

// Day truncates a timestamp to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Window computes the next fetch range. When the cursor already covers today
// the third return is false: nothing to fetch, cursor must not move.
func Window(cursor *time.Time, today time.Time, opts Options) (from, to time.Time, ok bool) {
	to = Day(today)
	if cursor != nil {
		from = Day(*cursor).AddDate(0, 0, 1)
	} else {
		from = to.AddDate(0, 0, -opts.lookback())
	}
	return from, to, !from.After(to)
}

// CycleResult is the outcome of one sync cycle. Ledger and Cursor replace the
// prior state; the inputs are never mutated.
type CycleResult struct {
	Ledger     *core.Ledger
	Cursor     *time.Time
	NewRecords int
	Fetched    int
}

// RunCycle performs one fetch+merge cycle as a pure function of the prior
// state. On a successful fetch, including an empty one, the cursor advances
// to the window's upper bound so already-covered empty ranges are not
// re-scanned forever. On any fetch or credential failure the error propagates
// and neither ledger nor cursor change, guaranteeing the failed window is
// retried on the next invocation. Manual entries bypass the fetch and are
// merged through the same dedup path.
func RunCycle(ctx context.Context, ledger *core.Ledger, cursor *time.Time, today time.Time,
	fetcher Fetcher, creds CredentialProvider, manual []core.ExpenseRecord, opts Options) (CycleResult, error) {

	from, to, ok := Window(cursor, today, opts)

	newCursor := cursor
	var fetched []core.ExpenseRecord
	if ok {
		credential, err := creds.GetValid(ctx)
		if err != nil {
			return CycleResult{}, fmt.Errorf("get credential: %w", err)
		}
		fetched, err = fetcher.Fetch(ctx, from, to, credential)
		if err != nil {
			return CycleResult{}, fmt.Errorf("fetch %s..%s: %w",
				from.Format(core.DayFormat), to.Format(core.DayFormat), err)
		}
		advance := to
		if opts.RecheckToday {
			advance = to.AddDate(0, 0, -1)
		}
		newCursor = &advance
	}

	incoming := make([]core.ExpenseRecord, 0, len(fetched)+len(manual))
	incoming = append(incoming, fetched...)
	incoming = append(incoming, manual...)
	merged, added := core.Merge(ledger, incoming)

	return CycleResult{
		Ledger:     merged,
		Cursor:     newCursor,
		NewRecords: added,
		Fetched:    len(fetched),
	}, nil
}
