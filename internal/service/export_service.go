package service

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/RealToken-Community/gainorloss/internal/adapter"
	"github.com/RealToken-Community/gainorloss/internal/config"
	"github.com/RealToken-Community/gainorloss/internal/errors"
	"github.com/RealToken-Community/gainorloss/internal/interest"
	"github.com/RealToken-Community/gainorloss/internal/logging"
	"github.com/RealToken-Community/gainorloss/internal/types"
)

// ExportService renders a reconstructed series as CSV. Movement rows are
// annotated with the transaction hash of the matching same-day token
// transfer when the block explorer can provide one.
type ExportService struct {
	interest  *InterestService
	transfers TransferSource
	cfg       *config.Config
	logger    *logging.Logger
}

// NewExportService creates an export service. transfers may be nil, in
// which case the tx hash column stays empty.
func NewExportService(interestSvc *InterestService, transfers TransferSource, cfg *config.Config, logger *logging.Logger) *ExportService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ExportService{
		interest:  interestSvc,
		transfers: transfers,
		cfg:       cfg,
		logger:    logger,
	}
}

var csvHeader = []string{
	"date", "timestamp", "balance", "period_interest", "total_interest",
	"movement_type", "movement_amount", "source", "tx_hash",
}

// WriteCSV streams one position's series to w as CSV.
func (s *ExportService) WriteCSV(ctx context.Context, w io.Writer, address string, key types.PositionKey) error {
	series, err := s.interest.GetSeries(ctx, address, key)
	if err != nil {
		return err
	}

	hashes := s.movementHashes(ctx, address, key, series.Points)

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return errors.NewInternalError("failed to write CSV header", err)
	}

	for _, p := range series.Points {
		row := []string{
			strconv.Itoa(p.Date),
			strconv.FormatInt(p.Timestamp, 10),
			p.Balance,
			p.PeriodInterest,
			p.TotalInterest,
			string(p.MovementType),
			p.MovementAmount,
			string(p.Source),
			hashes[p.Date],
		}
		if err := writer.Write(row); err != nil {
			return errors.NewInternalError("failed to write CSV row", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.NewInternalError("failed to flush CSV", err)
	}
	return nil
}

// movementHashes maps movement days to the hash of a same-day transfer of
// the position's interest-bearing token. Annotation is best effort: an
// explorer failure leaves the column empty.
func (s *ExportService) movementHashes(ctx context.Context, address string, key types.PositionKey, points []types.DailyPointDTO) map[int]string {
	hashes := make(map[int]string)
	if s.transfers == nil {
		return hashes
	}

	hasMovement := false
	for _, p := range points {
		if p.MovementType != types.MovementNone {
			hasMovement = true
			break
		}
	}
	if !hasMovement {
		return hashes
	}

	reserve, ok := s.cfg.Reserve(key.Token, key.Version)
	if !ok {
		return hashes
	}
	contract := reserve.AToken
	if key.Side == types.SideDebt {
		contract = reserve.DebtToken
	}

	transfers, err := s.transfers.FetchTokenTransfers(ctx, address, contract)
	if err != nil {
		s.logger.WithError(err).WithField("position", key.String()).Warn("transfer annotation skipped")
		return hashes
	}

	byDay := make(map[int]adapter.TokenTransfer, len(transfers))
	for _, t := range transfers {
		day := interest.DateOfUnix(t.Timestamp)
		// First transfer of the day wins; multiple same-day transfers are
		// collapsed by the daily reducer anyway.
		if _, seen := byDay[day]; !seen {
			byDay[day] = t
		}
	}

	for _, p := range points {
		if p.MovementType == types.MovementNone {
			continue
		}
		if t, ok := byDay[p.Date]; ok {
			hashes[p.Date] = t.Hash
		}
	}
	return hashes
}
