package interest

import (
	"github.com/RealToken-Community/gainorloss/internal/errors"
	"github.com/RealToken-Community/gainorloss/internal/ray"
	"github.com/RealToken-Community/gainorloss/internal/types"
)

// PointsToDTO renders a series in wire form. Amounts become decimal
// strings; an absent movement renders as an empty movement field.
func PointsToDTO(points []DailyPoint) []types.DailyPointDTO {
	out := make([]types.DailyPointDTO, 0, len(points))
	for _, p := range points {
		dto := types.DailyPointDTO{
			Date:           p.Date,
			Timestamp:      p.Timestamp,
			Balance:        ray.Format(p.Balance),
			PeriodInterest: ray.Format(p.PeriodInterest),
			TotalInterest:  ray.Format(p.TotalInterest),
			Source:         p.Source,
		}
		if p.MovementType != types.MovementNone && p.MovementAmount != nil {
			dto.MovementAmount = ray.Format(p.MovementAmount)
			dto.MovementType = p.MovementType
		}
		out = append(out, dto)
	}
	return out
}

// PointsFromDTO parses a wire series back into core points. Used when a
// cached series is re-sliced by the query layer.
func PointsFromDTO(dtos []types.DailyPointDTO) ([]DailyPoint, error) {
	out := make([]DailyPoint, 0, len(dtos))
	for i, dto := range dtos {
		balance, err := ray.ParseUnsigned(dto.Balance)
		if err != nil {
			return nil, errors.NewMalformedSnapshotError(i, "balance", err)
		}
		period, err := ray.Parse(dto.PeriodInterest)
		if err != nil {
			return nil, errors.NewMalformedSnapshotError(i, "periodInterest", err)
		}
		total, err := ray.Parse(dto.TotalInterest)
		if err != nil {
			return nil, errors.NewMalformedSnapshotError(i, "totalInterest", err)
		}
		p := DailyPoint{
			Date:           dto.Date,
			Timestamp:      dto.Timestamp,
			Balance:        balance,
			PeriodInterest: period,
			TotalInterest:  total,
			Source:         dto.Source,
		}
		if dto.MovementType != types.MovementNone && dto.MovementAmount != "" {
			amount, err := ray.ParseUnsigned(dto.MovementAmount)
			if err != nil {
				return nil, errors.NewMalformedSnapshotError(i, "movementAmount", err)
			}
			p.MovementAmount = amount
			p.MovementType = dto.MovementType
		}
		out = append(out, p)
	}
	return out, nil
}
