// Package http exposes the sync and analytics API.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendsync/internal/cache"
	"spendsync/internal/core"
	applog "spendsync/internal/log"
	syncer "spendsync/internal/sync"
)

// SyncService is the slice of the sync layer the API needs.
type SyncService interface {
	Run(ctx context.Context, manual []core.ExpenseRecord) (syncer.RunReport, error)
	AnalyticsWithTarget(ctx context.Context, target decimal.Decimal) (core.Result, error)
	DailyTotals(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Server wraps http.Server with the API routes and an analytics cache.
type Server struct {
	http.Server
	svc           SyncService
	defaultTarget decimal.Decimal

	// analyticsCache memoizes Result per target rate between syncs.
	analyticsCache *cache.LRU[core.Result]
}

// NewServer configures routes, returning a ready-to-run server.
func NewServer(addr string, svc SyncService, defaultTarget decimal.Decimal) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:           addr,
			Handler:        mux,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16, // 64KB
		},
		svc:            svc,
		defaultTarget:  defaultTarget,
		analyticsCache: cache.NewLRU[core.Result](32, 5*time.Minute),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/api/sync", s.withLogging(s.handleSync))
	mux.HandleFunc("/api/analytics", s.withLogging(s.handleAnalytics))
	mux.HandleFunc("/api/expenses", s.withLogging(s.handleCreateExpense))
	mux.HandleFunc("/api/daily-totals", s.withLogging(s.handleDailyTotals))

	return s
}

// withLogging records method, path, status, and duration for each request.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("X-Content-Type-Options", "nosniff")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(r.Context(), "Request completed",
			applog.FieldComponent, applog.ComponentHTTP,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds())
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleSync triggers one sync cycle and returns its report.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	report, err := s.svc.Run(r.Context(), nil)
	if err != nil {
		slog.ErrorContext(r.Context(), "Sync cycle failed", "error", err)
		writeError(w, http.StatusBadGateway, "sync failed")
		return
	}
	s.analyticsCache.Purge()

	writeJSON(w, http.StatusOK, map[string]any{
		"fetched":     report.Fetched,
		"new_records": report.NewRecords,
		"analytics":   report.Analytics,
	})
}

// handleAnalytics serves the analytics snapshot, optionally with a
// caller-supplied target daily rate. Results are cached per target until
// the next sync.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	target := s.defaultTarget
	if v := strings.TrimSpace(r.URL.Query().Get("target")); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil || parsed.IsNegative() {
			writeError(w, http.StatusBadRequest, "invalid target rate")
			return
		}
		target = parsed
	}

	key := target.String()
	if result, ok := s.analyticsCache.Get(key); ok {
		writeJSON(w, http.StatusOK, result)
		return
	}

	result, err := s.svc.AnalyticsWithTarget(r.Context(), target)
	if err != nil {
		slog.ErrorContext(r.Context(), "Analytics computation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "analytics unavailable")
		return
	}
	s.analyticsCache.Set(key, result)
	writeJSON(w, http.StatusOK, result)
}

type manualEntryRequest struct {
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
	Category string      `json:"category"`
	Date     string      `json:"date"`
}

// handleCreateExpense registers a manual entry and merges it through the
// regular sync cycle so it is deduplicated and totaled like any feed record.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req manualEntryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		date, err = time.Parse(core.DayFormat, req.Date)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
			return
		}
	}

	entry, err := core.NewManualEntry(amount, req.Currency, req.Category, date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	report, err := s.svc.Run(r.Context(), []core.ExpenseRecord{entry})
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to register manual entry",
			applog.FieldError, err.Error(), applog.FieldRecordID, entry.ID)
		writeError(w, http.StatusBadGateway, "failed to register expense")
		return
	}
	s.analyticsCache.Purge()

	slog.InfoContext(r.Context(), "Manual entry registered",
		applog.FieldRecordID, entry.ID,
		applog.FieldAmount, amount.String(),
		applog.FieldCategory, entry.ResolvedCategory())

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          entry.ID,
		"new_records": report.NewRecords,
	})
}

// handleDailyTotals exposes the per-day spend series.
func (s *Server) handleDailyTotals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	totals, err := s.svc.DailyTotals(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load daily totals", "error", err)
		writeError(w, http.StatusInternalServerError, "totals unavailable")
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
