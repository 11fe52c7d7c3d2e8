// Package feed implements the remote expense-provider client: fetch raw
// expense records in a date range using an opaque bearer credential.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spendsync/internal/core"
	applog "spendsync/internal/log"
)

const defaultTimeout = 30 * time.Second

// Client talks to the merchant-expense feed over HTTP. It performs no
// retries: a failed window is retried by the next sync cycle because the
// cursor never advances on failure.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a feed client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type expensesResponse struct {
	Expenses []core.ExpenseRecord `json:"expenses"`
}

// Fetch returns the raw expense records in [from, to], inclusive. Any non-2xx
// status is a transport failure and propagates to the caller.
func (c *Client) Fetch(ctx context.Context, from, to time.Time, credential string) ([]core.ExpenseRecord, error) {
	q := url.Values{}
	q.Set("from", from.Format(core.DayFormat))
	q.Set("to", to.Format(core.DayFormat))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/expenses?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out expensesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}

	fields := applog.NewFields().
		WithComponent(applog.ComponentFeed).
		WithOperation(applog.OpFetch).
		WithWindow(from.Format(core.DayFormat), to.Format(core.DayFormat))
	fields[applog.FieldRecordCount] = len(out.Expenses)
	slog.DebugContext(ctx, "Fetched expense records", fields.ToSlice()...)

	return out.Expenses, nil
}
