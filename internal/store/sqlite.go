// Package store provides the SQLite-backed market data cache. It
// implements market.Provider from locally persisted data; fetching that
// data from a live backend is a separate concern.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"earnings-backtest/internal/models"
	"earnings-backtest/pkg/utils"
)

// SQLiteStore persists earnings events, daily bars, and fundamental
// ratios in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS earnings_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL,
		report_date TEXT NOT NULL,
		timing TEXT NOT NULL,
		eps_actual REAL,
		eps_estimate REAL,
		UNIQUE(code, report_date)
	);
	CREATE INDEX IF NOT EXISTS idx_events_date ON earnings_events(report_date);

	CREATE TABLE IF NOT EXISTS daily_bars (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		UNIQUE(symbol, date)
	);
	CREATE INDEX IF NOT EXISTS idx_bars_symbol_date ON daily_bars(symbol, date);

	CREATE TABLE IF NOT EXISTS fundamental_ratios (
		symbol TEXT PRIMARY KEY,
		ps REAL,
		pe REAL,
		profit_margin REAL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveEarningsEvents upserts a batch of earnings events.
func (s *SQLiteStore) SaveEarningsEvents(ctx context.Context, events []models.EarningsEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO earnings_events (code, report_date, timing, eps_actual, eps_estimate)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(code, report_date) DO UPDATE SET
			timing = excluded.timing,
			eps_actual = excluded.eps_actual,
			eps_estimate = excluded.eps_estimate`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		_, err := stmt.ExecContext(ctx,
			ev.Code,
			ev.ReportDate.Format(utils.DateLayout),
			string(ev.Timing),
			nullFloat(ev.EPSActual),
			nullFloat(ev.EPSEstimate),
		)
		if err != nil {
			return fmt.Errorf("saving event %s: %w", ev.Code, err)
		}
	}
	return tx.Commit()
}

// SaveDailyBars upserts a bar series for a symbol. The UNIQUE(symbol, date)
// constraint guarantees de-duplication per date.
func (s *SQLiteStore) SaveDailyBars(ctx context.Context, symbol string, bars []models.Bar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_bars (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, bar := range bars {
		_, err := stmt.ExecContext(ctx,
			symbol,
			bar.Date.Format(utils.DateLayout),
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		)
		if err != nil {
			return fmt.Errorf("saving bar %s %s: %w", symbol, bar.Date.Format(utils.DateLayout), err)
		}
	}
	return tx.Commit()
}

// SaveFundamentalRatios upserts the ratios for a symbol.
func (s *SQLiteStore) SaveFundamentalRatios(ctx context.Context, symbol string, ratios models.FundamentalRatios) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fundamental_ratios (symbol, ps, pe, profit_margin)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			ps = excluded.ps,
			pe = excluded.pe,
			profit_margin = excluded.profit_margin`,
		symbol,
		nullFloat(ratios.PS),
		nullFloat(ratios.PE),
		nullFloat(ratios.ProfitMargin),
	)
	return err
}

// EarningsEvents returns events with report_date in [start, end], ordered
// by report date then code.
func (s *SQLiteStore) EarningsEvents(ctx context.Context, start, end time.Time) ([]models.EarningsEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, report_date, timing, eps_actual, eps_estimate
		FROM earnings_events
		WHERE report_date >= ? AND report_date <= ?
		ORDER BY report_date, code`,
		start.Format(utils.DateLayout),
		end.Format(utils.DateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.EarningsEvent
	for rows.Next() {
		var (
			ev       models.EarningsEvent
			date     string
			timing   string
			actual   sql.NullFloat64
			estimate sql.NullFloat64
		)
		if err := rows.Scan(&ev.Code, &date, &timing, &actual, &estimate); err != nil {
			return nil, err
		}
		ev.ReportDate, err = utils.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parsing report_date %q: %w", date, err)
		}
		ev.Timing = parseTiming(timing)
		ev.EPSActual = floatPtr(actual)
		ev.EPSEstimate = floatPtr(estimate)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DailyBars returns the bars for symbol with date in [start, end],
// ascending by date.
func (s *SQLiteStore) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM daily_bars
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		symbol,
		start.Format(utils.DateLayout),
		end.Format(utils.DateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []models.Bar
	for rows.Next() {
		var (
			bar  models.Bar
			date string
		)
		if err := rows.Scan(&date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, err
		}
		bar.Date, err = utils.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parsing bar date %q: %w", date, err)
		}
		bars = append(bars, bar)
	}
	return bars, rows.Err()
}

// FundamentalRatios returns the stored ratios for symbol. A symbol with no
// stored row yields the zero value: every ratio missing.
func (s *SQLiteStore) FundamentalRatios(ctx context.Context, symbol string) (models.FundamentalRatios, error) {
	var (
		ratios models.FundamentalRatios
		ps     sql.NullFloat64
		pe     sql.NullFloat64
		pm     sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT ps, pe, profit_margin FROM fundamental_ratios WHERE symbol = ?`,
		symbol,
	).Scan(&ps, &pe, &pm)
	if err == sql.ErrNoRows {
		return ratios, nil
	}
	if err != nil {
		return ratios, err
	}
	ratios.PS = floatPtr(ps)
	ratios.PE = floatPtr(pe)
	ratios.ProfitMargin = floatPtr(pm)
	return ratios, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func parseTiming(v string) models.Timing {
	switch models.Timing(v) {
	case models.BeforeMarket, models.AfterMarket:
		return models.Timing(v)
	default:
		return models.TimingUnknown
	}
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
