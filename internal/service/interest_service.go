// Package service orchestrates snapshot fetching, series reconstruction and
// caching behind the HTTP handlers.
package service

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/RealToken-Community/gainorloss/internal/adapter"
	"github.com/RealToken-Community/gainorloss/internal/config"
	"github.com/RealToken-Community/gainorloss/internal/errors"
	"github.com/RealToken-Community/gainorloss/internal/interest"
	"github.com/RealToken-Community/gainorloss/internal/logging"
	"github.com/RealToken-Community/gainorloss/internal/retry"
	"github.com/RealToken-Community/gainorloss/internal/types"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Data source interfaces for dependency injection

// SnapshotSource fetches indexed scaled-balance history for one position.
type SnapshotSource interface {
	FetchSnapshots(ctx context.Context, address string, key types.PositionKey, reserve config.ReserveConfig) ([]types.SnapshotDTO, error)
}

// BalanceReader reads a present-moment token balance on chain.
type BalanceReader interface {
	TokenBalance(ctx context.Context, tokenAddress, userAddress string) (*big.Int, error)
}

// TransferSource fetches token transfer history from the block explorer.
type TransferSource interface {
	FetchTokenTransfers(ctx context.Context, address, contract string) ([]adapter.TokenTransfer, error)
}

// SeriesStore caches computed series and balance reads.
type SeriesStore interface {
	GetSeries(ctx context.Context, address string, key types.PositionKey) ([]types.DailyPointDTO, bool, error)
	PutSeries(ctx context.Context, address string, key types.PositionKey, points []types.DailyPointDTO) error
	InvalidateSeries(ctx context.Context, address string) error
	GetBalance(ctx context.Context, address, tokenAddress string) (string, bool, error)
	PutBalance(ctx context.Context, address, tokenAddress, balance string) error
}

// SnapshotStore archives raw snapshots and replays them when the subgraph
// is unavailable.
type SnapshotStore interface {
	SaveBatch(ctx context.Context, address string, key types.PositionKey, snapshots []types.SnapshotDTO) error
	GetByPosition(ctx context.Context, address string, key types.PositionKey) ([]types.SnapshotDTO, error)
}

// AnalyticsSink streams computed points to the analytics store.
type AnalyticsSink interface {
	SaveSeries(ctx context.Context, address string, key types.PositionKey, points []types.DailyPointDTO) error
}

// InterestService reconstructs per-position interest series on demand.
// There is no background indexer: every request recomputes from raw
// snapshots (or serves the short-lived cache), so results never go stale
// against the subgraph.
type InterestService struct {
	cfg       *config.Config
	snapshots SnapshotSource
	balances  BalanceReader
	cache     SeriesStore
	archive   SnapshotStore
	sink      AnalyticsSink
	logger    *logging.Logger
	retryCfg  *retry.Config
	now       func() time.Time
}

// NewInterestService creates an interest service. archive and sink may be
// nil when Postgres or ClickHouse is not deployed.
func NewInterestService(
	cfg *config.Config,
	snapshots SnapshotSource,
	balances BalanceReader,
	cache SeriesStore,
	archive SnapshotStore,
	sink AnalyticsSink,
	logger *logging.Logger,
) *InterestService {
	if logger == nil {
		logger = logging.Default()
	}
	return &InterestService{
		cfg:       cfg,
		snapshots: snapshots,
		balances:  balances,
		cache:     cache,
		archive:   archive,
		sink:      sink,
		logger:    logger,
		retryCfg:  retry.DefaultConfig(),
		now:       time.Now,
	}
}

// GetSeries returns the full reconstructed daily series for one position.
func (s *InterestService) GetSeries(ctx context.Context, address string, key types.PositionKey) (*types.SeriesDTO, error) {
	if !ethcommon.IsHexAddress(address) {
		return nil, errors.NewInvalidAddressError(address)
	}
	if !key.Valid() {
		return nil, errors.NewInvalidParameterError("position", "unknown token, side or version")
	}

	points, err := s.seriesPoints(ctx, address, key)
	if err != nil {
		return nil, err
	}

	return &types.SeriesDTO{
		Address: address,
		Key:     key,
		Points:  points,
	}, nil
}

// GetSummary returns the headline numbers for every position the address
// holds. Positions are computed concurrently; a position with no history
// simply does not appear in the result.
func (s *InterestService) GetSummary(ctx context.Context, address string) ([]types.PositionSummaryDTO, error) {
	if !ethcommon.IsHexAddress(address) {
		return nil, errors.NewInvalidAddressError(address)
	}

	keys := allPositionKeys()

	type result struct {
		summary types.PositionSummaryDTO
		err     error
	}
	results := make([]result, len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key types.PositionKey) {
			defer wg.Done()
			points, err := s.seriesPoints(ctx, address, key)
			if err != nil {
				results[i] = result{err: err}
				return
			}
			results[i] = result{summary: summarize(key, points)}
		}(i, key)
	}
	wg.Wait()

	summaries := make([]types.PositionSummaryDTO, 0, len(keys))
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		if r.summary.PointCount == 0 {
			continue
		}
		summaries = append(summaries, r.summary)
	}
	return summaries, nil
}

// QueryRange returns the interest accrued within [startDate, endDate], both
// yyyymmdd. The underlying series comes from cache when fresh; the range
// itself is re-sliced without recomputation.
func (s *InterestService) QueryRange(ctx context.Context, address string, key types.PositionKey, startDate, endDate int) (*RangeReport, error) {
	series, err := s.GetSeries(ctx, address, key)
	if err != nil {
		return nil, err
	}

	points, err := interest.PointsFromDTO(series.Points)
	if err != nil {
		return nil, err
	}

	res, err := interest.PeriodInterest(points, startDate, endDate)
	if err != nil {
		return nil, err
	}

	return &RangeReport{
		Address:       address,
		Key:           key,
		StartDate:     startDate,
		EndDate:       endDate,
		Interest:      res.Interest.String(),
		StartBalance:  res.Start.Balance.String(),
		EndBalance:    res.End.Balance.String(),
		StartInterest: res.Start.TotalInterest.String(),
		EndInterest:   res.End.TotalInterest.String(),
	}, nil
}

// RangeReport is the answer to a period query in wire form.
type RangeReport struct {
	Address       string            `json:"address"`
	Key           types.PositionKey `json:"position"`
	StartDate     int               `json:"startDate"`
	EndDate       int               `json:"endDate"`
	Interest      string            `json:"interest"`
	StartBalance  string            `json:"startBalance"`
	EndBalance    string            `json:"endBalance"`
	StartInterest string            `json:"startInterest"`
	EndInterest   string            `json:"endInterest"`
}

// AddressReport is one address's slice of a batch report.
type AddressReport struct {
	Address   string                     `json:"address"`
	Positions []types.PositionSummaryDTO `json:"positions,omitempty"`
	Error     *types.ServiceError        `json:"error,omitempty"`
}

// BatchReport aggregates summaries for a list of addresses.
type BatchReport struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Addresses   []AddressReport `json:"addresses"`
}

// BuildReport computes summaries for a batch of addresses. Addresses are
// isolated from each other: one failing address is reported inline and
// never aborts the rest of the batch.
func (s *InterestService) BuildReport(ctx context.Context, addresses []string) (*BatchReport, error) {
	if len(addresses) == 0 {
		return nil, errors.NewInvalidParameterError("addresses", "at least one address is required")
	}

	report := &BatchReport{
		GeneratedAt: s.now().UTC(),
		Addresses:   make([]AddressReport, len(addresses)),
	}

	var wg sync.WaitGroup
	for i, address := range addresses {
		wg.Add(1)
		go func(i int, address string) {
			defer wg.Done()
			entry := AddressReport{Address: address}
			summaries, err := s.GetSummary(ctx, address)
			if err != nil {
				entry.Error = errors.Categorize(err).ToServiceError()
				s.logger.WithError(err).WithField("address", address).Warn("report entry failed")
			} else {
				entry.Positions = summaries
			}
			report.Addresses[i] = entry
		}(i, address)
	}
	wg.Wait()

	return report, nil
}

// Invalidate drops every cached series for the address, forcing the next
// request to recompute from the subgraph.
func (s *InterestService) Invalidate(ctx context.Context, address string) error {
	if !ethcommon.IsHexAddress(address) {
		return errors.NewInvalidAddressError(address)
	}
	return s.cache.InvalidateSeries(ctx, address)
}

// seriesPoints is the cache-aside core: cached wire points when fresh,
// otherwise full recomputation from raw snapshots plus a live balance read.
func (s *InterestService) seriesPoints(ctx context.Context, address string, key types.PositionKey) ([]types.DailyPointDTO, error) {
	if cached, ok, err := s.cache.GetSeries(ctx, address, key); err == nil && ok {
		return cached, nil
	} else if err != nil {
		// A broken cache degrades to recomputation, it never fails a read.
		s.logger.WithError(err).WithField("position", key.String()).Warn("series cache read failed")
	}

	reserve, ok := s.cfg.Reserve(key.Token, key.Version)
	if !ok {
		return nil, errors.NewNotFoundError("reserve", key.String())
	}

	dtos, err := s.fetchSnapshots(ctx, address, key, reserve)
	if err != nil {
		return nil, err
	}

	snaps, err := interest.ParseSnapshots(dtos)
	if err != nil {
		return nil, err
	}

	engine := interest.NewEngine(key.Side, s.logger)
	series := engine.ComputeSeries(snaps)

	if len(series) > 0 {
		balance, err := s.liveBalance(ctx, address, key, reserve)
		if err != nil {
			// The anchored series is still correct up to its last snapshot;
			// extrapolation is skipped when the chain read fails.
			s.logger.WithError(err).WithField("position", key.String()).Warn("live balance read failed")
		} else {
			series = interest.ExtendToNow(series, balance, s.now().UTC())
		}
	}

	points := interest.PointsToDTO(series)

	if err := s.cache.PutSeries(ctx, address, key, points); err != nil {
		s.logger.WithError(err).WithField("position", key.String()).Warn("series cache write failed")
	}
	if s.sink != nil && len(points) > 0 {
		if err := s.sink.SaveSeries(ctx, address, key, points); err != nil {
			s.logger.WithError(err).WithField("position", key.String()).Warn("analytics sink write failed")
		}
	}

	return points, nil
}

// fetchSnapshots pulls snapshot history from the subgraph with retries,
// archives the batch, and falls back to the archive when the subgraph is
// down.
func (s *InterestService) fetchSnapshots(ctx context.Context, address string, key types.PositionKey, reserve config.ReserveConfig) ([]types.SnapshotDTO, error) {
	var dtos []types.SnapshotDTO
	err := retry.Do(ctx, s.retryCfg, func(ctx context.Context, attempt int) error {
		var fetchErr error
		dtos, fetchErr = s.snapshots.FetchSnapshots(ctx, address, key, reserve)
		return fetchErr
	})
	if err != nil {
		if s.archive == nil {
			return nil, err
		}
		archived, archiveErr := s.archive.GetByPosition(ctx, address, key)
		if archiveErr != nil || len(archived) == 0 {
			return nil, err
		}
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"address":  address,
			"position": key.String(),
		}).Warn("subgraph unavailable, replaying archived snapshots")
		return archived, nil
	}

	if s.archive != nil && len(dtos) > 0 {
		if err := s.archive.SaveBatch(ctx, address, key, dtos); err != nil {
			s.logger.WithError(err).WithField("position", key.String()).Warn("snapshot archive write failed")
		}
	}
	return dtos, nil
}

// liveBalance reads the interest-bearing token balance, via the short-lived
// balance cache. Supply positions read the aToken, debt positions the
// variable debt token.
func (s *InterestService) liveBalance(ctx context.Context, address string, key types.PositionKey, reserve config.ReserveConfig) (*big.Int, error) {
	tokenAddress := reserve.AToken
	if key.Side == types.SideDebt {
		tokenAddress = reserve.DebtToken
	}

	if cached, ok, err := s.cache.GetBalance(ctx, address, tokenAddress); err == nil && ok {
		if balance, ok := new(big.Int).SetString(cached, 10); ok {
			return balance, nil
		}
	}

	balance, err := s.balances.TokenBalance(ctx, tokenAddress, address)
	if err != nil {
		return nil, err
	}

	if err := s.cache.PutBalance(ctx, address, tokenAddress, balance.String()); err != nil {
		s.logger.WithError(err).Warn("balance cache write failed")
	}
	return balance, nil
}

// summarize reduces a wire series to its headline numbers. The last point
// carries the running totals.
func summarize(key types.PositionKey, points []types.DailyPointDTO) types.PositionSummaryDTO {
	summary := types.PositionSummaryDTO{
		Key:           key,
		Balance:       "0",
		TotalInterest: "0",
		PointCount:    len(points),
	}
	if len(points) > 0 {
		last := points[len(points)-1]
		summary.Balance = last.Balance
		summary.TotalInterest = last.TotalInterest
	}
	return summary
}

// allPositionKeys enumerates every (token, side, version) combination.
func allPositionKeys() []types.PositionKey {
	keys := make([]types.PositionKey, 0, 8)
	for _, token := range types.AllTokens() {
		for _, side := range types.AllSides() {
			for _, version := range types.AllVersions() {
				keys = append(keys, types.PositionKey{Token: token, Side: side, Version: version})
			}
		}
	}
	return keys
}
