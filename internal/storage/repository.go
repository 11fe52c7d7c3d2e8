package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"spendsync/internal/core"
)

// Keys in the sync_state table. Ledger and cursor are independent rows with
// no cross-key transaction; a partial failure between the two writes is
// absorbed by the idempotent re-merge on the next cycle.
const cursorKey = "last_processed_date"

// SQLiteRepository persists the ledger and the sync cursor in a local SQLite
// database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadLedger reconstructs the full ledger. A fresh database yields an empty
// ledger, never nil.
func (r *SQLiteRepository) LoadLedger(ctx context.Context) (*core.Ledger, error) {
	ledger := core.NewLedger()

	rows, err := r.db.QueryContext(ctx, `SELECT payload FROM expense_records ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query expense records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan expense record: %w", err)
		}
		var rec core.ExpenseRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal expense record: %w", err)
		}
		ledger.Records = append(ledger.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expense records: %w", err)
	}

	totals, err := r.db.QueryContext(ctx, `SELECT day, total FROM daily_totals`)
	if err != nil {
		return nil, fmt.Errorf("query daily totals: %w", err)
	}
	defer totals.Close()
	for totals.Next() {
		var day, total string
		if err := totals.Scan(&day, &total); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		v, err := decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("parse daily total for %s: %w", day, err)
		}
		ledger.DailyTotals[day] = v
	}
	if err := totals.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily totals: %w", err)
	}

	return ledger, nil
}

// SaveLedger persists the merged ledger. Records are append-only: an id
// already stored keeps its first-seen payload, matching the merge semantics.
// Daily totals are upserted.
func (r *SQLiteRepository) SaveLedger(ctx context.Context, l *core.Ledger) error {
	if l == nil {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertRecord, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO expense_records (id, payload) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare record insert: %w", err)
	}
	defer insertRecord.Close()

	for _, rec := range l.Records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", rec.ID, err)
		}
		if _, err := insertRecord.ExecContext(ctx, rec.ID, payload); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.ID, err)
		}
	}

	upsertTotal, err := tx.PrepareContext(ctx,
		`INSERT INTO daily_totals (day, total) VALUES (?, ?)
		 ON CONFLICT(day) DO UPDATE SET total = excluded.total`)
	if err != nil {
		return fmt.Errorf("prepare total upsert: %w", err)
	}
	defer upsertTotal.Close()

	for day, total := range l.DailyTotals {
		if _, err := upsertTotal.ExecContext(ctx, day, total.String()); err != nil {
			return fmt.Errorf("upsert total %s: %w", day, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}

	slog.DebugContext(ctx, "Ledger persisted",
		"records", len(l.Records),
		"days", len(l.DailyTotals))

	return nil
}

// LoadCursor returns the last-processed date, or nil when no sync has run yet.
func (r *SQLiteRepository) LoadCursor(ctx context.Context) (*time.Time, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM sync_state WHERE key = ?`, cursorKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cursor: %w", err)
	}
	cursor, err := time.Parse(core.DayFormat, value)
	if err != nil {
		return nil, fmt.Errorf("parse cursor %q: %w", value, err)
	}
	cursor = cursor.UTC()
	return &cursor, nil
}

// SaveCursor advances the last-processed date.
func (r *SQLiteRepository) SaveCursor(ctx context.Context, cursor time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		cursorKey, cursor.Format(core.DayFormat))
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
