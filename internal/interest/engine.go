package interest

import (
	"math/big"

	"github.com/RealToken-Community/gainorloss/internal/logging"
	"github.com/RealToken-Community/gainorloss/internal/ray"
	"github.com/RealToken-Community/gainorloss/internal/types"
)

// DailyPoint is one day of the reconstructed series: the observed balance,
// the interest accrued since the previous point, the running total, and the
// principal movement detected at this point, if any.
type DailyPoint struct {
	Date           int // yyyymmdd, UTC
	Timestamp      int64
	Balance        *big.Int
	PeriodInterest *big.Int
	TotalInterest  *big.Int
	MovementAmount *big.Int // nil when no movement
	MovementType   types.MovementType
	Source         types.PointSource
}

// Engine walks the reduced per-day snapshots pairwise and produces the
// daily series. One engine serves both protocol versions; the side only
// determines how principal movements are labelled.
type Engine struct {
	increase types.MovementType
	decrease types.MovementType
	logger   *logging.Logger
}

// NewEngine creates an accrual engine for one position side.
func NewEngine(side types.Side, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{logger: logger}
	switch side {
	case types.SideDebt:
		e.increase = types.MovementBorrow
		e.decrease = types.MovementRepay
	default:
		e.increase = types.MovementSupply
		e.decrease = types.MovementWithdraw
	}
	return e
}

// ComputeSeries reduces the raw snapshots to one per day and fills in
// period interest, running totals and movements. The result is
// deterministic for a given snapshot set regardless of input order, and an
// empty input yields an empty series.
//
// A nonzero balance on the very first snapshot is recorded as an initial
// increase movement. That treats pre-window history as a single deposit or
// borrow at the first observation; it is a modeling assumption, not an
// on-chain fact.
func (e *Engine) ComputeSeries(snaps []Snapshot) []DailyPoint {
	reduced := ReduceDaily(snaps)
	if len(reduced) == 0 {
		return nil
	}

	points := make([]DailyPoint, 0, len(reduced))

	first := reduced[0]
	head := DailyPoint{
		Date:           DateOfUnix(first.Timestamp),
		Timestamp:      first.Timestamp,
		Balance:        new(big.Int).Set(first.RawBalance),
		PeriodInterest: new(big.Int),
		TotalInterest:  new(big.Int),
		Source:         types.SourceReal,
	}
	if first.RawBalance.Sign() > 0 {
		head.MovementAmount = new(big.Int).Set(first.RawBalance)
		head.MovementType = e.increase
	}
	points = append(points, head)

	for i := 1; i < len(reduced); i++ {
		prev, cur := reduced[i-1], reduced[i]

		point := DailyPoint{
			Date:      DateOfUnix(cur.Timestamp),
			Timestamp: cur.Timestamp,
			Balance:   new(big.Int).Set(cur.RawBalance),
			Source:    types.SourceReal,
		}

		// Principal movements are valued at the current index: the new
		// principal did not exist during the elapsed period, so it converts
		// at today's exchange rate.
		deltaScaled := new(big.Int).Sub(cur.ScaledBalance, prev.ScaledBalance)
		switch deltaScaled.Sign() {
		case 1:
			point.MovementAmount = ray.MulDiv(deltaScaled, cur.Index)
			point.MovementType = e.increase
		case -1:
			point.MovementAmount = ray.MulDiv(deltaScaled.Neg(deltaScaled), cur.Index)
			point.MovementType = e.decrease
		}

		// Interest accrues on the principal that was present for the whole
		// period: the previous scaled balance times the index growth.
		accrued := ray.Accrued(prev.ScaledBalance, prev.Index, cur.Index)
		if accrued.Sign() < 0 {
			e.logger.WithFields(map[string]interface{}{
				"date":        point.Date,
				"indexBefore": prev.Index.String(),
				"indexAfter":  cur.Index.String(),
			}).Warn("Growth index regressed between snapshots, clamping period interest to zero")
			accrued.SetInt64(0)
		}

		point.PeriodInterest = accrued
		point.TotalInterest = new(big.Int).Add(points[i-1].TotalInterest, accrued)
		points = append(points, point)
	}

	return points
}
