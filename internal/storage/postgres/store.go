package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lpbacktest/internal/model"
)

// Store provides Postgres persistence for backtests and fee checkpoints.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutRows inserts or updates backtest rows.
func (s *Store) PutRows(ctx context.Context, rows []model.BacktestRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO backtest_rows (
				run_id, ts, block_number, close_price, active_ratio, fee0, fee1,
				fee_value, fee_usd, position_value, skipped, reason
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (run_id, ts)
			DO UPDATE SET
				block_number = EXCLUDED.block_number,
				close_price = EXCLUDED.close_price,
				active_ratio = EXCLUDED.active_ratio,
				fee0 = EXCLUDED.fee0,
				fee1 = EXCLUDED.fee1,
				fee_value = EXCLUDED.fee_value,
				fee_usd = EXCLUDED.fee_usd,
				position_value = EXCLUDED.position_value,
				skipped = EXCLUDED.skipped,
				reason = EXCLUDED.reason
		`,
			r.RunID,
			r.Timestamp,
			int64(r.Block),
			r.Close,
			r.ActiveRatio,
			r.Fee0,
			r.Fee1,
			r.FeeValue,
			r.FeeUSD,
			r.PositionValue,
			r.Skipped,
			r.Reason,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun inserts or updates a run summary.
func (s *Store) SaveRun(ctx context.Context, run model.BacktestRun) error {
	if run.RunID == "" {
		return fmt.Errorf("run id required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO backtest_runs (
			run_id, pool_address, price_lower, price_upper, capital, base, liquidity,
			start_ts, end_ts, days, row_count, skipped_rows, total_fee0, total_fee1,
			total_fee_value, total_fee_usd, return_pct, apr, unbounded_apr,
			impermanent_loss, pnl, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,now(),now())
		ON CONFLICT (run_id)
		DO UPDATE SET
			capital = EXCLUDED.capital,
			base = EXCLUDED.base,
			liquidity = EXCLUDED.liquidity,
			days = EXCLUDED.days,
			row_count = EXCLUDED.row_count,
			skipped_rows = EXCLUDED.skipped_rows,
			total_fee0 = EXCLUDED.total_fee0,
			total_fee1 = EXCLUDED.total_fee1,
			total_fee_value = EXCLUDED.total_fee_value,
			total_fee_usd = EXCLUDED.total_fee_usd,
			return_pct = EXCLUDED.return_pct,
			apr = EXCLUDED.apr,
			unbounded_apr = EXCLUDED.unbounded_apr,
			impermanent_loss = EXCLUDED.impermanent_loss,
			pnl = EXCLUDED.pnl,
			updated_at = now()
	`,
		run.RunID,
		run.Pool,
		run.PriceLower,
		run.PriceUpper,
		run.Capital,
		run.Base,
		run.Liquidity,
		run.Start,
		run.End,
		run.Days,
		run.Rows,
		run.SkippedRows,
		run.TotalFee0,
		run.TotalFee1,
		run.TotalFeeValue,
		run.TotalFeeUSD,
		run.ReturnPct,
		run.APR,
		run.UnboundedAPR,
		run.ImpermanentLoss,
		run.PNL,
	)
	return err
}

// LoadCheckpoint returns the fee checkpoint stored under key.
func (s *Store) LoadCheckpoint(ctx context.Context, key string) (model.FeeCheckpoint, bool, error) {
	if key == "" {
		return model.FeeCheckpoint{}, false, fmt.Errorf("checkpoint key required")
	}
	var (
		cp        model.FeeCheckpoint
		block     int64
		updatedAt string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT pool_address, tick_lower, tick_upper, aligned_tick_lower, aligned_tick_upper,
			liquidity::text, block_number,
			fee_growth_inside0_x128::text, fee_growth_inside1_x128::text,
			to_char(updated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
		FROM fee_checkpoints WHERE position_key=$1
	`, key)
	if err := row.Scan(&cp.Pool, &cp.TickLower, &cp.TickUpper, &cp.AlignedLower, &cp.AlignedUpper,
		&cp.Liquidity, &block,
		&cp.FeeGrowthInside0, &cp.FeeGrowthInside1, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.FeeCheckpoint{}, false, nil
		}
		return model.FeeCheckpoint{}, false, err
	}
	cp.Block = uint64(block)
	cp.UpdatedAt = updatedAt
	return cp, true, nil
}

// SaveCheckpoint upserts a fee checkpoint under its position key.
func (s *Store) SaveCheckpoint(ctx context.Context, cp model.FeeCheckpoint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fee_checkpoints (
			position_key, pool_address, tick_lower, tick_upper, aligned_tick_lower, aligned_tick_upper,
			liquidity, block_number, fee_growth_inside0_x128, fee_growth_inside1_x128, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9::numeric, $10::numeric, now())
		ON CONFLICT (position_key) DO UPDATE SET
			aligned_tick_lower = EXCLUDED.aligned_tick_lower,
			aligned_tick_upper = EXCLUDED.aligned_tick_upper,
			liquidity = EXCLUDED.liquidity,
			block_number = EXCLUDED.block_number,
			fee_growth_inside0_x128 = EXCLUDED.fee_growth_inside0_x128,
			fee_growth_inside1_x128 = EXCLUDED.fee_growth_inside1_x128,
			updated_at = now()
	`,
		cp.Key(),
		cp.Pool,
		cp.TickLower,
		cp.TickUpper,
		cp.AlignedLower,
		cp.AlignedUpper,
		cp.Liquidity,
		int64(cp.Block),
		cp.FeeGrowthInside0,
		cp.FeeGrowthInside1,
	)
	return err
}
