package storage

import (
	"context"

	"github.com/RealToken-Community/gainorloss/internal/errors"
	"github.com/RealToken-Community/gainorloss/internal/types"
)

// PointSink streams computed daily points into ClickHouse for offline
// analytics. Writes are best effort: the request path logs and continues
// when the sink is down, it never fails a response over analytics.
type PointSink struct {
	db *ClickHouseDB
}

// NewPointSink creates an analytics sink over ClickHouse.
func NewPointSink(db *ClickHouseDB) *PointSink {
	return &PointSink{db: db}
}

// SaveSeries batch-inserts one position's daily points. Amounts go in as
// decimal strings; ClickHouse stores them as UInt256/Int256 columns and
// aggregation happens server side.
func (s *PointSink) SaveSeries(ctx context.Context, address string, key types.PositionKey, points []types.DailyPointDTO) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := s.db.Conn().PrepareBatch(ctx, `
		INSERT INTO daily_points
		(address, token, side, version, date, ts, balance, period_interest, total_interest, movement_amount, movement_type, source)`)
	if err != nil {
		return errors.NewStorageError("analytics batch prepare", err)
	}

	for _, p := range points {
		if err := batch.Append(
			address,
			string(key.Token),
			string(key.Side),
			string(key.Version),
			uint32(p.Date), // #nosec G115 - yyyymmdd dates fit in uint32
			p.Timestamp,
			p.Balance,
			p.PeriodInterest,
			p.TotalInterest,
			p.MovementAmount,
			string(p.MovementType),
			string(p.Source),
		); err != nil {
			return errors.NewStorageError("analytics batch append", err)
		}
	}

	if err := batch.Send(); err != nil {
		return errors.NewStorageError("analytics batch send", err)
	}
	return nil
}
