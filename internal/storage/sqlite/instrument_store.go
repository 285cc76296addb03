package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"equity-backtest-lab/internal/domain"
	"equity-backtest-lab/internal/storage"
)

// InstrumentStore implements storage.InstrumentStore on the SQLite cache.
type InstrumentStore struct {
	db *DB
}

// NewInstrumentStore creates a new InstrumentStore.
func NewInstrumentStore(db *DB) *InstrumentStore {
	return &InstrumentStore{db: db}
}

var _ storage.InstrumentStore = (*InstrumentStore)(nil)

// Insert adds a new instrument. Returns ErrDuplicateKey if the code exists.
func (s *InstrumentStore) Insert(ctx context.Context, inst *domain.Instrument) error {
	if inst == nil || inst.Code == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO instruments (code, name, market_cap) VALUES (?, ?, ?)`,
		inst.Code, inst.Name, inst.MarketCap,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert instrument: %w", err)
	}
	return nil
}

// InsertBulk adds multiple instruments atomically. Fails the entire
// batch on any duplicate.
func (s *InstrumentStore) InsertBulk(ctx context.Context, instruments []*domain.Instrument) error {
	if len(instruments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, inst := range instruments {
		if inst == nil || inst.Code == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO instruments (code, name, market_cap) VALUES (?, ?, ?)`,
			inst.Code, inst.Name, inst.MarketCap,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert instrument %s: %w", inst.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByCode retrieves one instrument. Returns ErrNotFound if not present.
func (s *InstrumentStore) GetByCode(ctx context.Context, code string) (*domain.Instrument, error) {
	var inst domain.Instrument
	err := s.db.QueryRowContext(ctx,
		`SELECT code, name, market_cap FROM instruments WHERE code = ?`, code,
	).Scan(&inst.Code, &inst.Name, &inst.MarketCap)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get instrument: %w", err)
	}
	return &inst, nil
}

// GetAll retrieves the full universe, ordered by code ASC.
func (s *InstrumentStore) GetAll(ctx context.Context) ([]*domain.Instrument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, name, market_cap FROM instruments ORDER BY code ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("get all instruments: %w", err)
	}
	defer rows.Close()

	var result []*domain.Instrument
	for rows.Next() {
		var inst domain.Instrument
		if err := rows.Scan(&inst.Code, &inst.Name, &inst.MarketCap); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		result = append(result, &inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instruments: %w", err)
	}
	return result, nil
}
