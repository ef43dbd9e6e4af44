package interest

import (
	"math/big"
	"time"

	"github.com/RealToken-Community/gainorloss/internal/types"
)

// ExtendToNow extends a computed series with a freshly read on-chain
// balance so it ends at the present moment. The input series is not
// mutated; points up to the last real on-chain snapshot keep their values.
//
// One policy is applied uniformly. The residual delta between the fresh
// balance and the last snapshot balance is distributed linearly across the
// calendar days missing between the last snapshot and today, as synthetic
// points tagged "interpolated"; the final point at now carries the integer
// remainder and is tagged "real" because its balance was read on-chain.
// With a gap of one day or less this degenerates to a single appended (or
// replaced, when the last point is already dated today) point carrying the
// whole residual.
//
// A negative residual means principal left the position since the last
// snapshot; it is never booked as negative interest, so the final point
// lands on the fresh balance with zero period interest.
func ExtendToNow(series []DailyPoint, balanceNow *big.Int, now time.Time) []DailyPoint {
	if len(series) == 0 || balanceNow == nil {
		return series
	}

	today := DateOfUnix(now.Unix())

	// Rebuild the synthetic tail: everything dated today or interpolated is
	// replaced by fresh extrapolation against the fresh balance.
	base := series
	for len(base) > 0 {
		last := base[len(base)-1]
		if last.Source == types.SourceInterpolated || last.Date >= today {
			base = base[:len(base)-1]
			continue
		}
		break
	}
	if len(base) == 0 {
		// The whole series was today's: collapse it to a single fresh point.
		anchor := DailyPoint{
			Date:           today,
			Timestamp:      now.Unix(),
			Balance:        new(big.Int).Set(balanceNow),
			PeriodInterest: new(big.Int),
			TotalInterest:  new(big.Int).Set(series[len(series)-1].TotalInterest),
			MovementAmount: copyAmount(series[len(series)-1].MovementAmount),
			MovementType:   series[len(series)-1].MovementType,
			Source:         types.SourceReal,
		}
		return []DailyPoint{anchor}
	}

	last := base[len(base)-1]
	out := make([]DailyPoint, len(base), len(base)+1)
	copy(out, base)

	residual := new(big.Int).Sub(balanceNow, last.Balance)
	if residual.Sign() < 0 {
		// Unindexed withdrawal or repay since the last snapshot.
		residual.SetInt64(0)
	}

	daysDiff := DaysBetween(last.Date, today)
	if daysDiff > 1 {
		out = appendInterpolated(out, last, residual, daysDiff)
	}

	prev := out[len(out)-1]
	distributed := new(big.Int).Sub(prev.TotalInterest, last.TotalInterest)
	finalInterest := new(big.Int).Sub(residual, distributed)
	out = append(out, DailyPoint{
		Date:           today,
		Timestamp:      now.Unix(),
		Balance:        new(big.Int).Set(balanceNow),
		PeriodInterest: finalInterest,
		TotalInterest:  new(big.Int).Add(prev.TotalInterest, finalInterest),
		Source:         types.SourceReal,
	})
	return out
}

// appendInterpolated fills the days strictly between the last snapshot and
// today with equal shares of the residual. The integer remainder of the
// division is left for the final real point.
func appendInterpolated(out []DailyPoint, last DailyPoint, residual *big.Int, daysDiff int) []DailyPoint {
	missing := daysDiff - 1
	share := new(big.Int).Quo(residual, big.NewInt(int64(daysDiff-1)))

	balance := new(big.Int).Set(last.Balance)
	total := new(big.Int).Set(last.TotalInterest)
	for k := 1; k <= missing; k++ {
		date := AddDays(last.Date, k)
		balance = new(big.Int).Add(balance, share)
		total = new(big.Int).Add(total, share)
		out = append(out, DailyPoint{
			Date:           date,
			Timestamp:      DayStartUnix(date),
			Balance:        new(big.Int).Set(balance),
			PeriodInterest: new(big.Int).Set(share),
			TotalInterest:  new(big.Int).Set(total),
			Source:         types.SourceInterpolated,
		})
	}
	return out
}

func copyAmount(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
