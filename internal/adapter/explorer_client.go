package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/RealToken-Community/gainorloss/internal/config"
	"github.com/RealToken-Community/gainorloss/internal/errors"
	"github.com/RealToken-Community/gainorloss/internal/logging"
)

// ExplorerClient fetches token transfer history from the Gnosisscan-style
// explorer API. Used to annotate detected principal movements with the
// transaction hashes that caused them.
type ExplorerClient struct {
	apiKey     string
	baseURL    string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *Breaker
	logger     *logging.Logger
}

// NewExplorerClient creates an explorer API client. The limiter holds the
// client under the explorer's free-tier request budget.
func NewExplorerClient(cfg *config.ExplorerConfig, logger *logging.Logger) *ExplorerClient {
	if logger == nil {
		logger = logging.Default()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &ExplorerClient{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		pageSize:   1000,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		breaker:    NewBreaker("explorer", 5, 30*time.Second, logger),
		logger:     logger,
	}
}

// TokenTransfer is one ERC20 transfer row from the explorer.
type TokenTransfer struct {
	Hash      string
	Timestamp int64
	From      string
	To        string
	Value     string // decimal string, token smallest unit
}

// explorerTransfer is the raw explorer row; every field arrives as a string.
type explorerTransfer struct {
	Hash      string `json:"hash"`
	TimeStamp string `json:"timeStamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
}

type explorerResponse struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Result  []explorerTransfer `json:"result"`
}

// FetchTokenTransfers fetches all transfers of one token contract touching
// the address, walking the explorer's page parameter until a short page.
func (c *ExplorerClient) FetchTokenTransfers(ctx context.Context, address, contract string) ([]TokenTransfer, error) {
	var all []TokenTransfer

	for page := 1; ; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		rows, err := c.fetchPage(ctx, address, contract, page)
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			ts, err := strconv.ParseInt(row.TimeStamp, 10, 64)
			if err != nil {
				return nil, errors.NewProviderError("explorer",
					fmt.Errorf("non-numeric timestamp %q in transfer %s", row.TimeStamp, row.Hash))
			}
			all = append(all, TokenTransfer{
				Hash:      row.Hash,
				Timestamp: ts,
				From:      strings.ToLower(row.From),
				To:        strings.ToLower(row.To),
				Value:     row.Value,
			})
		}

		if len(rows) < c.pageSize {
			break
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"address":   address,
		"contract":  contract,
		"transfers": len(all),
	}).Debug("Fetched token transfers from explorer")

	return all, nil
}

func (c *ExplorerClient) fetchPage(ctx context.Context, address, contract string, page int) ([]explorerTransfer, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "tokentx")
	params.Set("address", address)
	params.Set("contractaddress", contract)
	params.Set("page", strconv.Itoa(page))
	params.Set("offset", strconv.Itoa(c.pageSize))
	params.Set("sort", "asc")
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	var rows []explorerTransfer
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return errors.NewInternalError("failed to create explorer request", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isTimeout(err) {
				return errors.NewProviderTimeoutError("explorer")
			}
			return errors.NewProviderError("explorer", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return errors.NewProviderError("explorer", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return errors.NewProviderError("explorer", fmt.Errorf("rate limited by upstream"))
		}
		if resp.StatusCode != http.StatusOK {
			return errors.NewProviderError("explorer",
				fmt.Errorf("status=%d body=%s", resp.StatusCode, truncateBody(body)))
		}

		var parsed explorerResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return errors.NewProviderError("explorer", fmt.Errorf("invalid response: %w", err))
		}
		// The explorer reports "No transactions found" with status 0; that
		// is an empty result, not a failure.
		if parsed.Status != "1" && !strings.Contains(parsed.Message, "No transactions") {
			return errors.NewProviderError("explorer", fmt.Errorf("api error: %s", parsed.Message))
		}

		rows = parsed.Result
		return nil
	})
	return rows, err
}
