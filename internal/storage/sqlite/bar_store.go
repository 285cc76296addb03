package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

// BarStore implements storage.BarStore on the SQLite cache. Dates are
// stored as ISO strings so the (code, date) primary key sorts
// chronologically.
type BarStore struct {
	db *DB
}

// NewBarStore creates a new BarStore.
func NewBarStore(db *DB) *BarStore {
	return &BarStore{db: db}
}

var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails the entire batch on a duplicate
// (code, date); the wrapping transaction rolls back any partial work.
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, b := range bars {
		if b == nil || b.Code == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO price_bars (code, date, open, high, low, close, volume)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.Code, domain.Day(b.Date).Format(dateLayout),
			b.Open, b.High, b.Low, b.Close, b.Volume,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert bar %s: %w", b.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByCode retrieves all bars for an instrument, ordered by date ASC.
func (s *BarStore) GetByCode(ctx context.Context, code string) ([]*domain.PriceBar, error) {
	return s.queryBars(ctx, `
		SELECT code, date, open, high, low, close, volume
		FROM price_bars WHERE code = ? ORDER BY date ASC
	`, code)
}

// GetByDateRange retrieves bars for an instrument within [start, end]
// (inclusive), ordered by date ASC.
func (s *BarStore) GetByDateRange(ctx context.Context, code string, start, end time.Time) ([]*domain.PriceBar, error) {
	return s.queryBars(ctx, `
		SELECT code, date, open, high, low, close, volume
		FROM price_bars WHERE code = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, code, domain.Day(start).Format(dateLayout), domain.Day(end).Format(dateLayout))
}

// GetDateRange returns the min and max bar dates across all data.
func (s *BarStore) GetDateRange(ctx context.Context) (min, max time.Time, err error) {
	var minStr, maxStr sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT min(date), max(date) FROM price_bars`,
	).Scan(&minStr, &maxStr)
	if err != nil {
		return min, max, fmt.Errorf("get date range: %w", err)
	}
	if !minStr.Valid || !maxStr.Valid {
		return min, max, nil
	}

	min, err = time.ParseInLocation(dateLayout, minStr.String, time.UTC)
	if err != nil {
		return min, max, fmt.Errorf("parse min date: %w", err)
	}
	max, err = time.ParseInLocation(dateLayout, maxStr.String, time.UTC)
	if err != nil {
		return min, max, fmt.Errorf("parse max date: %w", err)
	}
	return min, max, nil
}

func (s *BarStore) queryBars(ctx context.Context, query string, args ...any) ([]*domain.PriceBar, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var result []*domain.PriceBar
	for rows.Next() {
		var b domain.PriceBar
		var dateStr string
		if err := rows.Scan(&b.Code, &dateStr, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Date, err = time.ParseInLocation(dateLayout, dateStr, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse bar date: %w", err)
		}
		result = append(result, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bars: %w", err)
	}
	return result, nil
}
