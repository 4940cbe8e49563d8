package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pairEngine/internal/model"
)

// Store provides Postgres persistence for pairs, their logs and metrics.
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

// Migrate creates the tables the store writes to.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// UpsertPairs inserts or updates pair metadata.
func (s *Store) UpsertPairs(ctx context.Context, pairs []model.Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pairs {
		batch.Queue(`
			INSERT INTO pairs (
				chain_id, pair_address, token0, token1, swap_fee_point, first_seen_block, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (chain_id, pair_address)
			DO UPDATE SET
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				swap_fee_point = EXCLUDED.swap_fee_point,
				first_seen_block = LEAST(pairs.first_seen_block, EXCLUDED.first_seen_block),
				updated_at = now()
		`,
			int64(p.ChainID),
			p.Address,
			p.Token0,
			p.Token1,
			int32(p.SwapFeePoint),
			int64(p.FirstSeenBlock),
		)
	}
	return s.sendBatch(ctx, batch)
}

// PutLogBatch stores raw pair logs. Replayed logs are ignored.
func (s *Store) PutLogBatch(ctx context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range logs {
		batch.Queue(`
			INSERT INTO pair_logs (
				chain_id, block_number, block_hash, tx_hash, tx_index, log_index,
				pair_address, topics, data, block_ts, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
			ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
		`,
			int64(l.ChainID),
			int64(l.BlockNumber),
			l.BlockHash,
			l.TxHash,
			int64(l.TxIndex),
			int64(l.LogIndex),
			l.Address,
			l.Topics,
			l.Data,
			int64(l.Timestamp),
		)
	}
	return s.sendBatch(ctx, batch)
}

// UpsertPairSnapshots inserts or replaces the state of a pair at a block.
func (s *Store) UpsertPairSnapshots(ctx context.Context, snapshots []model.PairSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO pair_snapshots (
				chain_id, pair_address, block_number, token0, token1, reserve0, reserve1,
				balance0, balance1, block_timestamp_last, price0_cumulative_last,
				price1_cumulative_last, k_last, total_supply, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())
			ON CONFLICT (chain_id, pair_address, block_number)
			DO UPDATE SET
				reserve0 = EXCLUDED.reserve0,
				reserve1 = EXCLUDED.reserve1,
				balance0 = EXCLUDED.balance0,
				balance1 = EXCLUDED.balance1,
				block_timestamp_last = EXCLUDED.block_timestamp_last,
				price0_cumulative_last = EXCLUDED.price0_cumulative_last,
				price1_cumulative_last = EXCLUDED.price1_cumulative_last,
				k_last = EXCLUDED.k_last,
				total_supply = EXCLUDED.total_supply,
				updated_at = now()
		`,
			int64(snap.ChainID),
			snap.Address,
			int64(snap.BlockNumber),
			snap.Token0,
			snap.Token1,
			snap.Reserve0,
			snap.Reserve1,
			snap.Balance0,
			snap.Balance1,
			int64(snap.BlockTimestampLast),
			snap.Price0CumulativeLast,
			snap.Price1CumulativeLast,
			snap.KLast,
			snap.TotalSupply,
		)
	}
	return s.sendBatch(ctx, batch)
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PairWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pair_window_metrics (
				chain_id, pair_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, volume0, volume1, fee0, fee1, fee_rate0, fee_rate1,
				reserve0, reserve1, apr, fee_method, reserve_method, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now(),now())
			ON CONFLICT (chain_id, pair_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				volume0 = EXCLUDED.volume0,
				volume1 = EXCLUDED.volume1,
				fee0 = EXCLUDED.fee0,
				fee1 = EXCLUDED.fee1,
				fee_rate0 = EXCLUDED.fee_rate0,
				fee_rate1 = EXCLUDED.fee_rate1,
				reserve0 = EXCLUDED.reserve0,
				reserve1 = EXCLUDED.reserve1,
				apr = EXCLUDED.apr,
				fee_method = EXCLUDED.fee_method,
				reserve_method = EXCLUDED.reserve_method,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.PairAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			m.Volume0,
			m.Volume1,
			m.Fee0,
			m.Fee1,
			m.FeeRate0,
			m.FeeRate1,
			m.Reserve0,
			m.Reserve1,
			m.APR,
			m.FeeMethod,
			m.ReserveMethod,
		)
	}
	return s.sendBatch(ctx, batch)
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM aggregate_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregate_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}
