// Package interest reconstructs a lending position's daily interest series
// from indexed scaled-balance snapshots: it reduces raw snapshots to one
// point per calendar day, classifies principal movements, accrues interest
// from index growth, extends the series to the present moment, and answers
// arbitrary date-range queries against the result.
//
// All arithmetic is arbitrary-precision integer math on the 10^27 ray scale;
// the package never touches floating point. Computation is pure and
// request-scoped: the full series is rebuilt from scratch on every call and
// never shared between requests.
package interest

import (
	"math/big"
	"sort"

	"github.com/RealToken-Community/gainorloss/internal/errors"
	"github.com/RealToken-Community/gainorloss/internal/ray"
	"github.com/RealToken-Community/gainorloss/internal/types"
)

// Snapshot is one observation of a position in one reserve at one moment,
// parsed from the wire into big integers.
type Snapshot struct {
	Timestamp     int64
	RawBalance    *big.Int
	ScaledBalance *big.Int
	Index         *big.Int
}

// ParseSnapshots converts wire snapshots into core snapshots. A missing or
// non-numeric field rejects the whole batch: silently coercing a malformed
// amount to zero would corrupt every total downstream.
func ParseSnapshots(dtos []types.SnapshotDTO) ([]Snapshot, error) {
	snaps := make([]Snapshot, 0, len(dtos))
	for i, dto := range dtos {
		raw, err := ray.ParseUnsigned(dto.RawBalance)
		if err != nil {
			return nil, errors.NewMalformedSnapshotError(i, "rawBalance", err)
		}
		scaled, err := ray.ParseUnsigned(dto.ScaledBalance)
		if err != nil {
			return nil, errors.NewMalformedSnapshotError(i, "scaledBalance", err)
		}
		index, err := ray.ParseUnsigned(dto.Index)
		if err != nil {
			return nil, errors.NewMalformedSnapshotError(i, "index", err)
		}
		if index.Sign() == 0 {
			return nil, errors.NewMalformedSnapshotError(i, "index", errZeroIndex)
		}
		if dto.Timestamp <= 0 {
			return nil, errors.NewMalformedSnapshotError(i, "timestamp", errBadTimestamp)
		}
		snaps = append(snaps, Snapshot{
			Timestamp:     dto.Timestamp,
			RawBalance:    raw,
			ScaledBalance: scaled,
			Index:         index,
		})
	}
	return snaps, nil
}

// ReduceDaily collapses an unordered snapshot list into one snapshot per
// calendar day, sorted ascending. Within a day the snapshot with the
// greatest timestamp wins. The input slice is not modified.
func ReduceDaily(snaps []Snapshot) []Snapshot {
	if len(snaps) == 0 {
		return nil
	}

	sorted := make([]Snapshot, len(snaps))
	copy(sorted, snaps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	// Later snapshots overwrite earlier ones on the same day.
	reduced := sorted[:0:0]
	for _, s := range sorted {
		day := DateOfUnix(s.Timestamp)
		if n := len(reduced); n > 0 && DateOfUnix(reduced[n-1].Timestamp) == day {
			reduced[n-1] = s
			continue
		}
		reduced = append(reduced, s)
	}
	return reduced
}
