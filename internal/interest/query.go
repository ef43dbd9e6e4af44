package interest

import (
	"math/big"
	"sort"

	"github.com/RealToken-Community/gainorloss/internal/errors"
)

// BoundaryPoint is the resolved (possibly interpolated) state of a series
// at one query boundary.
type BoundaryPoint struct {
	Date          int
	Timestamp     int64
	Balance       *big.Int
	TotalInterest *big.Int
}

// RangeResult is the answer to a period query: the interest accrued inside
// [start, end] and the resolved boundary states.
type RangeResult struct {
	Interest *big.Int
	Start    BoundaryPoint
	End      BoundaryPoint
}

// PeriodInterest returns the interest accrued strictly within [startDate,
// endDate] (both yyyymmdd). Boundaries that fall between snapshot days are
// linearly interpolated by elapsed time; before the first point the series
// is zero, after the last it is clamped to the last point. The function is
// pure: it never mutates the series, so a UI can re-slice a cached series
// on every filter change without recomputation.
func PeriodInterest(series []DailyPoint, startDate, endDate int) (RangeResult, error) {
	if !ValidDate(startDate) {
		return RangeResult{}, errors.NewInvalidParameterError("start", "not a valid yyyymmdd date")
	}
	if !ValidDate(endDate) {
		return RangeResult{}, errors.NewInvalidParameterError("end", "not a valid yyyymmdd date")
	}
	if startDate > endDate {
		return RangeResult{}, errors.NewInvalidParameterError("start", "start date is after end date")
	}

	start := valueAt(series, startDate)
	end := valueAt(series, endDate)

	interest := new(big.Int).Sub(end.TotalInterest, start.TotalInterest)
	if interest.Sign() < 0 {
		interest.SetInt64(0)
	}

	return RangeResult{Interest: interest, Start: start, End: end}, nil
}

// valueAt resolves the balance and cumulative interest of the series at a
// target date.
func valueAt(series []DailyPoint, date int) BoundaryPoint {
	target := DayStartUnix(date)
	resolved := BoundaryPoint{
		Date:          date,
		Timestamp:     target,
		Balance:       new(big.Int),
		TotalInterest: new(big.Int),
	}
	if len(series) == 0 {
		return resolved
	}

	// First point at or after the target day.
	i := sort.Search(len(series), func(i int) bool {
		return series[i].Date >= date
	})

	if i < len(series) && series[i].Date == date {
		resolved.Timestamp = series[i].Timestamp
		resolved.Balance.Set(series[i].Balance)
		resolved.TotalInterest.Set(series[i].TotalInterest)
		return resolved
	}
	if i == 0 {
		// Before the first observation the position did not exist.
		return resolved
	}
	if i == len(series) {
		last := series[len(series)-1]
		resolved.Timestamp = last.Timestamp
		resolved.Balance.Set(last.Balance)
		resolved.TotalInterest.Set(last.TotalInterest)
		return resolved
	}

	before, after := series[i-1], series[i]
	resolved.Balance = lerp(before.Balance, after.Balance, before.Timestamp, after.Timestamp, target)
	resolved.TotalInterest = lerp(before.TotalInterest, after.TotalInterest, before.Timestamp, after.Timestamp, target)
	return resolved
}

// lerp linearly interpolates between two integer values weighted by elapsed
// time, entirely in integer arithmetic:
// v0 + (v1-v0) * (t-t0) / (t1-t0), truncating toward zero.
func lerp(v0, v1 *big.Int, t0, t1, t int64) *big.Int {
	if t1 <= t0 {
		return new(big.Int).Set(v0)
	}
	delta := new(big.Int).Sub(v1, v0)
	delta.Mul(delta, big.NewInt(t-t0))
	delta.Quo(delta, big.NewInt(t1-t0))
	return delta.Add(delta, v0)
}
