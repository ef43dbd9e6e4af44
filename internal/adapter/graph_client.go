// Package adapter provides the clients for the three external data sources:
// the subgraph that indexes scaled-balance history, the block explorer, and
// the chain RPC used for present-moment balance reads.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/RealToken-Community/gainorloss/internal/config"
	"github.com/RealToken-Community/gainorloss/internal/errors"
	"github.com/RealToken-Community/gainorloss/internal/logging"
	"github.com/RealToken-Community/gainorloss/internal/types"
)

// GraphClient fetches scaled-balance snapshot history from the money
// market's subgraph, one endpoint per protocol version.
type GraphClient struct {
	urls       map[types.Version]string
	pageSize   int
	httpClient *http.Client
	breaker    *Breaker
	logger     *logging.Logger
}

// NewGraphClient creates a subgraph client.
func NewGraphClient(cfg *config.SubgraphConfig, logger *logging.Logger) *GraphClient {
	if logger == nil {
		logger = logging.Default()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &GraphClient{
		urls: map[types.Version]string{
			types.VersionV2: cfg.V2URL,
			types.VersionV3: cfg.V3URL,
		},
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    NewBreaker("subgraph", 5, 30*time.Second, logger),
		logger:     logger,
	}
}

const supplyHistoryQuery = `query($user: String!, $reserve: String!, $first: Int!, $skip: Int!) {
  items: atokenBalanceHistoryItems(
    first: $first, skip: $skip, orderBy: timestamp, orderDirection: asc,
    where: { userReserve_: { user: $user, reserve_: { underlyingAsset: $reserve } } }
  ) { timestamp currentATokenBalance scaledATokenBalance index }
}`

const debtHistoryQuery = `query($user: String!, $reserve: String!, $first: Int!, $skip: Int!) {
  items: vtokenBalanceHistoryItems(
    first: $first, skip: $skip, orderBy: timestamp, orderDirection: asc,
    where: { userReserve_: { user: $user, reserve_: { underlyingAsset: $reserve } } }
  ) { timestamp currentVariableDebt scaledVariableDebt index }
}`

type graphRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphHistoryItem struct {
	Timestamp int64 `json:"timestamp"`

	CurrentATokenBalance string `json:"currentATokenBalance"`
	ScaledATokenBalance  string `json:"scaledATokenBalance"`
	CurrentVariableDebt  string `json:"currentVariableDebt"`
	ScaledVariableDebt   string `json:"scaledVariableDebt"`

	Index string `json:"index"`
}

type graphResponse struct {
	Data struct {
		Items []graphHistoryItem `json:"items"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchSnapshots returns every indexed snapshot for one position, unsorted
// and possibly containing same-day duplicates; the core reducer owns
// ordering and deduplication. All amounts stay decimal strings on this
// boundary.
func (c *GraphClient) FetchSnapshots(ctx context.Context, address string, key types.PositionKey, reserve config.ReserveConfig) ([]types.SnapshotDTO, error) {
	url, ok := c.urls[key.Version]
	if !ok || url == "" {
		return nil, errors.NewProviderError("subgraph", fmt.Errorf("no endpoint configured for version %s", key.Version))
	}

	query := supplyHistoryQuery
	if key.Side == types.SideDebt {
		query = debtHistoryQuery
	}

	var all []types.SnapshotDTO
	skip := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		items, err := c.fetchPage(ctx, url, query, address, reserve.Underlying, skip)
		if err != nil {
			return nil, err
		}

		for i, item := range items {
			dto, err := historyItemToSnapshot(item, key.Side)
			if err != nil {
				return nil, errors.NewMalformedSnapshotError(skip+i, "amount", err)
			}
			all = append(all, dto)
		}

		if len(items) < c.pageSize {
			break
		}
		skip += c.pageSize
	}

	c.logger.WithFields(map[string]interface{}{
		"address":   address,
		"position":  key.String(),
		"snapshots": len(all),
	}).Debug("Fetched snapshot history from subgraph")

	return all, nil
}

// fetchPage executes one paginated GraphQL query under breaker protection.
func (c *GraphClient) fetchPage(ctx context.Context, url, query, user, reserve string, skip int) ([]graphHistoryItem, error) {
	payload, err := json.Marshal(graphRequest{
		Query: query,
		Variables: map[string]interface{}{
			"user":    strings.ToLower(user),
			"reserve": strings.ToLower(reserve),
			"first":   c.pageSize,
			"skip":    skip,
		},
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to encode subgraph query", err)
	}

	var items []graphHistoryItem
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return errors.NewInternalError("failed to create subgraph request", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isTimeout(err) {
				return errors.NewProviderTimeoutError("subgraph")
			}
			return errors.NewProviderError("subgraph", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return errors.NewProviderError("subgraph", err)
		}
		if resp.StatusCode != http.StatusOK {
			return errors.NewProviderError("subgraph",
				fmt.Errorf("status=%d body=%s", resp.StatusCode, truncateBody(body)))
		}

		var parsed graphResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return errors.NewProviderError("subgraph", fmt.Errorf("invalid response: %w", err))
		}
		if len(parsed.Errors) > 0 {
			return errors.NewProviderError("subgraph", fmt.Errorf("query error: %s", parsed.Errors[0].Message))
		}

		items = parsed.Data.Items
		return nil
	})
	return items, err
}

// historyItemToSnapshot picks the side-specific balance fields out of the
// subgraph row.
func historyItemToSnapshot(item graphHistoryItem, side types.Side) (types.SnapshotDTO, error) {
	dto := types.SnapshotDTO{
		Timestamp: item.Timestamp,
		Index:     item.Index,
	}
	switch side {
	case types.SideDebt:
		dto.RawBalance = item.CurrentVariableDebt
		dto.ScaledBalance = item.ScaledVariableDebt
	default:
		dto.RawBalance = item.CurrentATokenBalance
		dto.ScaledBalance = item.ScaledATokenBalance
	}
	if dto.RawBalance == "" || dto.ScaledBalance == "" || dto.Index == "" {
		return dto, fmt.Errorf("missing balance or index field at timestamp %d", item.Timestamp)
	}
	return dto, nil
}

// isTimeout reports whether an HTTP transport error was a timeout rather
// than an outright failure; timeouts map to 504 instead of 502.
func isTimeout(err error) bool {
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

func truncateBody(body []byte) string {
	const max = 256
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "... (" + strconv.Itoa(len(body)) + " bytes)"
}
