package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"position-matcher/internal/types"
)

// Store is the SQLite persistence layer. It serves both sides of the matching
// core's contract: the fill stream in, the matched run out.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	// WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Run schema migration
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InsertFill records one executed fill. Ingestion collaborators seed the
// stream through this; re-inserting an already-known fill id is a no-op.
func (s *Store) InsertFill(ctx context.Context, f *types.Fill) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO fills (id, symbol, direction, quantity, price, fee,
			filled_at, is_option, multiplier)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Symbol, string(f.Direction), f.Quantity, f.Price.String(),
		f.Fee.String(), f.FilledAt.UTC(), f.IsOption, f.ContractMultiplier(),
	)
	return err
}

// LoadFills returns every fill ordered by fill time ascending, id as the
// tie-break. This ordering is what makes downstream FIFO matching correct.
func (s *Store) LoadFills(ctx context.Context) ([]types.Fill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, direction, quantity, price, fee, filled_at, is_option, multiplier
		FROM fills ORDER BY filled_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []types.Fill
	for rows.Next() {
		var f types.Fill
		var direction, price, fee string
		if err := rows.Scan(&f.ID, &f.Symbol, &direction, &f.Quantity, &price,
			&fee, &f.FilledAt, &f.IsOption, &f.Multiplier); err != nil {
			return nil, err
		}
		f.Direction = types.Direction(direction)
		if f.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("fill %s has malformed price %q: %w", f.ID, price, err)
		}
		if f.Fee, err = decimal.NewFromString(fee); err != nil {
			return nil, fmt.Errorf("fill %s has malformed fee %q: %w", f.ID, fee, err)
		}
		results = append(results, f)
	}
	return results, rows.Err()
}

// SaveRun applies one matching run in a single transaction: position inserts,
// fill back-references, and the run summary row. Any failure rolls the whole
// run back.
func (s *Store) SaveRun(ctx context.Context, result *types.MatchResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning run transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range result.Positions {
		p := &result.Positions[i]
		var closePrice, closeFill any
		var closeTime any
		if p.Status == types.StatusClosed {
			closePrice = p.ClosePrice.String()
			closeTime = p.CloseTime.UTC()
			closeFill = p.CloseFillID
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO positions (id, run_id, symbol, side, status, quantity,
				open_price, close_price, open_time, close_time, open_fee, close_fee,
				realized_pnl, net_pnl, holding_ns, open_fill_id, close_fill_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, result.RunID, p.Symbol, string(p.Side), string(p.Status), p.Quantity,
			p.OpenPrice.String(), closePrice, p.OpenTime.UTC(), closeTime,
			p.OpenFee.String(), p.CloseFee.String(), p.RealizedPnL.String(),
			p.NetPnL.String(), int64(p.HoldingPeriod), p.OpenFillID, closeFill,
		); err != nil {
			return fmt.Errorf("inserting position %s: %w", p.ID, err)
		}
	}

	for fillID, positionID := range result.FillPositions {
		if _, err := tx.ExecContext(ctx,
			"UPDATE fills SET position_id = ? WHERE id = ?", positionID, fillID); err != nil {
			return fmt.Errorf("updating fill %s back-reference: %w", fillID, err)
		}
	}

	warnings, err := json.Marshal(result.Summary.Warnings)
	if err != nil {
		return fmt.Errorf("marshaling run warnings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO match_runs (id, mode, ran_at, total_fills, positions_created,
			closed_count, open_count, symbols_processed, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, string(result.Mode), time.Now().UTC(),
		result.Summary.TotalFills, result.Summary.PositionsCreated,
		result.Summary.ClosedCount, result.Summary.OpenCount,
		result.Summary.SymbolsProcessed, string(warnings),
	); err != nil {
		return fmt.Errorf("inserting run summary: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

// Positions returns stored positions, newest run first, for inspection.
func (s *Store) Positions(ctx context.Context, limit int) ([]types.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, status, quantity, open_price, close_price,
			open_time, close_time, open_fee, close_fee, realized_pnl, net_pnl,
			holding_ns, open_fill_id, close_fill_id
		FROM positions ORDER BY open_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []types.Position
	for rows.Next() {
		var p types.Position
		var side, status string
		var closePrice, closeFill sql.NullString
		var closeTime sql.NullTime
		var openPrice, openFee, closeFee, realized, net string
		var holdingNS int64
		if err := rows.Scan(&p.ID, &p.Symbol, &side, &status, &p.Quantity,
			&openPrice, &closePrice, &p.OpenTime, &closeTime, &openFee, &closeFee,
			&realized, &net, &holdingNS, &p.OpenFillID, &closeFill); err != nil {
			return nil, err
		}
		p.Side = types.Side(side)
		p.Status = types.PositionStatus(status)
		p.HoldingPeriod = time.Duration(holdingNS)
		if p.OpenPrice, err = decimal.NewFromString(openPrice); err != nil {
			return nil, err
		}
		if closePrice.Valid {
			if p.ClosePrice, err = decimal.NewFromString(closePrice.String); err != nil {
				return nil, err
			}
		}
		if closeTime.Valid {
			p.CloseTime = closeTime.Time
		}
		if closeFill.Valid {
			p.CloseFillID = closeFill.String
		}
		if p.OpenFee, err = decimal.NewFromString(openFee); err != nil {
			return nil, err
		}
		if p.CloseFee, err = decimal.NewFromString(closeFee); err != nil {
			return nil, err
		}
		if p.RealizedPnL, err = decimal.NewFromString(realized); err != nil {
			return nil, err
		}
		if p.NetPnL, err = decimal.NewFromString(net); err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}
