package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealToken-Community/gainorloss/internal/config"
)

func explorerConfig(url string) *config.ExplorerConfig {
	return &config.ExplorerConfig{
		BaseURL:           url,
		APIKey:            "test-key",
		RequestsPerSecond: 1000, // no throttling in tests
	}
}

func TestFetchTokenTransfers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "account", q.Get("module"))
		assert.Equal(t, "tokentx", q.Get("action"))
		assert.Equal(t, "test-key", q.Get("apikey"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "1",
			"message": "OK",
			"result": []map[string]string{
				{
					"hash":      "0xabc",
					"timeStamp": "1709294400",
					"from":      "0xAAAA000000000000000000000000000000000000",
					"to":        "0xBBBB000000000000000000000000000000000000",
					"value":     "1000000000000000000",
				},
			},
		})
	}))
	defer srv.Close()

	client := NewExplorerClient(explorerConfig(srv.URL), quietLogger())

	transfers, err := client.FetchTokenTransfers(context.Background(), "0x2222", "0x3333")
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "0xabc", transfers[0].Hash)
	assert.Equal(t, int64(1709294400), transfers[0].Timestamp)
	assert.Equal(t, "0xaaaa000000000000000000000000000000000000", transfers[0].From, "addresses are lowercased")
}

func TestFetchTokenTransfersPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		// First page comes back full, second short.
		count := 2
		if page == 1 {
			count = offset
		}
		rows := make([]map[string]string, 0, count)
		for i := 0; i < count; i++ {
			rows = append(rows, map[string]string{
				"hash":      fmt.Sprintf("0x%d_%d", page, i),
				"timeStamp": "1709294400",
				"from":      "0xaaaa",
				"to":        "0xbbbb",
				"value":     "1",
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "1", "message": "OK", "result": rows,
		})
	}))
	defer srv.Close()

	client := NewExplorerClient(explorerConfig(srv.URL), quietLogger())
	client.pageSize = 5

	transfers, err := client.FetchTokenTransfers(context.Background(), "0x2222", "0x3333")
	require.NoError(t, err)
	assert.Len(t, transfers, 7)
}

func TestFetchTokenTransfersEmptyResultIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "0",
			"message": "No transactions found",
			"result":  []map[string]string{},
		})
	}))
	defer srv.Close()

	client := NewExplorerClient(explorerConfig(srv.URL), quietLogger())

	transfers, err := client.FetchTokenTransfers(context.Background(), "0x2222", "0x3333")
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestFetchTokenTransfersAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "0",
			"message": "Invalid API Key",
			"result":  []map[string]string{},
		})
	}))
	defer srv.Close()

	client := NewExplorerClient(explorerConfig(srv.URL), quietLogger())

	_, err := client.FetchTokenTransfers(context.Background(), "0x2222", "0x3333")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API Key")
}

func TestFetchTokenTransfersBadTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "1", "message": "OK",
			"result": []map[string]string{
				{"hash": "0xabc", "timeStamp": "soon", "from": "0xa", "to": "0xb", "value": "1"},
			},
		})
	}))
	defer srv.Close()

	client := NewExplorerClient(explorerConfig(srv.URL), quietLogger())

	_, err := client.FetchTokenTransfers(context.Background(), "0x2222", "0x3333")
	assert.Error(t, err)
}
