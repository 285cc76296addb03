package clickhouse

import (
	"context"
	"fmt"
	"time"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse. The table is a
// ReplacingMergeTree keyed by (code, date); reads use FINAL so
// not-yet-merged duplicates never surface.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails the entire batch on a duplicate
// (code, date). MergeTree tables do not enforce uniqueness at insert
// time, so duplicates are checked explicitly before the batch is sent.
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		code string
		date time.Time
	}
	seen := make(map[key]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Code == "" {
			return storage.ErrInvalidInput
		}
		k := key{b.Code, domain.Day(b.Date)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, b := range bars {
		exists, err := s.exists(ctx, b.Code, domain.Day(b.Date))
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_bars (code, date, open, high, low, close, volume)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(b.Code, domain.Day(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// exists reports whether a bar for (code, date) is already stored.
func (s *BarStore) exists(ctx context.Context, code string, date time.Time) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count() FROM price_bars FINAL WHERE code = ? AND date = ?
	`, code, date).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetByCode retrieves all bars for an instrument, ordered by date ASC.
func (s *BarStore) GetByCode(ctx context.Context, code string) ([]*domain.PriceBar, error) {
	return s.queryBars(ctx, `
		SELECT code, date, open, high, low, close, volume
		FROM price_bars FINAL
		WHERE code = ?
		ORDER BY date ASC
	`, code)
}

// GetByDateRange retrieves bars for an instrument within [start, end]
// (inclusive), ordered by date ASC.
func (s *BarStore) GetByDateRange(ctx context.Context, code string, start, end time.Time) ([]*domain.PriceBar, error) {
	return s.queryBars(ctx, `
		SELECT code, date, open, high, low, close, volume
		FROM price_bars FINAL
		WHERE code = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, code, domain.Day(start), domain.Day(end))
}

// GetDateRange returns the min and max bar dates across all data.
func (s *BarStore) GetDateRange(ctx context.Context) (min, max time.Time, err error) {
	var count uint64
	if err = s.conn.QueryRow(ctx, `SELECT count() FROM price_bars`).Scan(&count); err != nil {
		return min, max, fmt.Errorf("count bars: %w", err)
	}
	if count == 0 {
		return min, max, nil
	}

	err = s.conn.QueryRow(ctx, `SELECT min(date), max(date) FROM price_bars`).Scan(&min, &max)
	if err != nil {
		return min, max, fmt.Errorf("get date range: %w", err)
	}
	return domain.Day(min), domain.Day(max), nil
}

func (s *BarStore) queryBars(ctx context.Context, query string, args ...any) ([]*domain.PriceBar, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var result []*domain.PriceBar
	for rows.Next() {
		var b domain.PriceBar
		if err := rows.Scan(&b.Code, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = domain.Day(b.Date)
		result = append(result, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bars: %w", err)
	}
	return result, nil
}
