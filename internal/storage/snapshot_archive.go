package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RealToken-Community/gainorloss/internal/errors"
	"github.com/RealToken-Community/gainorloss/internal/types"
)

// SnapshotArchive persists raw subgraph snapshots append-only, keyed by
// (address, position, timestamp). It is a replay source for when the
// subgraph is degraded — the daily series itself is never persisted, it is
// recomputed from raw snapshots on every request.
type SnapshotArchive struct {
	pool *pgxpool.Pool
}

// NewSnapshotArchive creates a snapshot archive backed by Postgres.
func NewSnapshotArchive(pool *pgxpool.Pool) *SnapshotArchive {
	return &SnapshotArchive{pool: pool}
}

// SaveBatch upserts a fetched snapshot batch. Amounts are stored as the
// decimal strings they arrived as; re-parsing happens on read, exactly like
// any other boundary crossing.
func (a *SnapshotArchive) SaveBatch(ctx context.Context, address string, key types.PositionKey, snapshots []types.SnapshotDTO) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range snapshots {
		batch.Queue(`
			INSERT INTO raw_snapshots (address, token, side, version, ts, raw_balance, scaled_balance, growth_index)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (address, token, side, version, ts) DO UPDATE SET
				raw_balance = EXCLUDED.raw_balance,
				scaled_balance = EXCLUDED.scaled_balance,
				growth_index = EXCLUDED.growth_index`,
			address, string(key.Token), string(key.Side), string(key.Version),
			s.Timestamp, s.RawBalance, s.ScaledBalance, s.Index,
		)
	}

	results := a.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range snapshots {
		if _, err := results.Exec(); err != nil {
			return errors.NewStorageError("snapshot archive insert", err)
		}
	}
	return nil
}

// GetByPosition returns every archived snapshot for one position, ordered
// by timestamp.
func (a *SnapshotArchive) GetByPosition(ctx context.Context, address string, key types.PositionKey) ([]types.SnapshotDTO, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT ts, raw_balance, scaled_balance, growth_index
		FROM raw_snapshots
		WHERE address = $1 AND token = $2 AND side = $3 AND version = $4
		ORDER BY ts ASC`,
		address, string(key.Token), string(key.Side), string(key.Version),
	)
	if err != nil {
		return nil, errors.NewStorageError("snapshot archive query", err)
	}
	defer rows.Close()

	var snapshots []types.SnapshotDTO
	for rows.Next() {
		var s types.SnapshotDTO
		if err := rows.Scan(&s.Timestamp, &s.RawBalance, &s.ScaledBalance, &s.Index); err != nil {
			return nil, errors.NewStorageError("snapshot archive scan", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("snapshot archive iterate", err)
	}
	return snapshots, nil
}

// CountByPosition returns the number of archived snapshots for a position.
func (a *SnapshotArchive) CountByPosition(ctx context.Context, address string, key types.PositionKey) (int64, error) {
	var count int64
	err := a.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM raw_snapshots
		WHERE address = $1 AND token = $2 AND side = $3 AND version = $4`,
		address, string(key.Token), string(key.Side), string(key.Version),
	).Scan(&count)
	if err != nil {
		return 0, errors.NewStorageError("snapshot archive count", err)
	}
	return count, nil
}
