package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealToken-Community/gainorloss/internal/errors"
	"github.com/RealToken-Community/gainorloss/internal/logging"
	"github.com/RealToken-Community/gainorloss/internal/service"
	"github.com/RealToken-Community/gainorloss/internal/types"
)

// Mock services

type mockInterestService struct {
	series    *types.SeriesDTO
	summaries []types.PositionSummaryDTO
	rangeRep  *service.RangeReport
	report    *service.BatchReport
	err       error

	lastAddress string
	lastKey     types.PositionKey
}

func (m *mockInterestService) GetSeries(ctx context.Context, address string, key types.PositionKey) (*types.SeriesDTO, error) {
	m.lastAddress, m.lastKey = address, key
	return m.series, m.err
}

func (m *mockInterestService) GetSummary(ctx context.Context, address string) ([]types.PositionSummaryDTO, error) {
	m.lastAddress = address
	return m.summaries, m.err
}

func (m *mockInterestService) QueryRange(ctx context.Context, address string, key types.PositionKey, startDate, endDate int) (*service.RangeReport, error) {
	m.lastAddress, m.lastKey = address, key
	return m.rangeRep, m.err
}

func (m *mockInterestService) BuildReport(ctx context.Context, addresses []string) (*service.BatchReport, error) {
	return m.report, m.err
}

func (m *mockInterestService) Invalidate(ctx context.Context, address string) error {
	m.lastAddress = address
	return m.err
}

type mockExportService struct {
	csv string
	err error
}

func (m *mockExportService) WriteCSV(ctx context.Context, w io.Writer, address string, key types.PositionKey) error {
	if m.err != nil {
		return m.err
	}
	_, err := io.WriteString(w, m.csv)
	return err
}

func newTestServer(interest *mockInterestService, export *mockExportService) *Server {
	logger := logging.NewWriter(logging.LevelFatal, logging.FormatText, io.Discard)
	return NewServer(
		&ServerConfig{
			Host:           "127.0.0.1",
			Port:           "0",
			ReadTimeout:    time.Second,
			WriteTimeout:   time.Second,
			IdleTimeout:    time.Second,
			RateLimitRPS:   1000,
			RateLimitBurst: 1000,
		},
		interest,
		export,
		nil,
		logger,
	)
}

func doRequest(t *testing.T, srv *Server, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "10.0.0.1:55555"
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

const apiTestAddress = "0x2222222222222222222222222222222222222222"

func TestHandleGetInterest(t *testing.T) {
	mock := &mockInterestService{series: &types.SeriesDTO{
		Address: apiTestAddress,
		Key:     types.PositionKey{Token: types.TokenWXDAI, Side: types.SideSupply, Version: types.VersionV3},
		Points: []types.DailyPointDTO{
			{Date: 20240301, Balance: "1000", PeriodInterest: "0", TotalInterest: "0", Source: types.SourceReal},
		},
	}}
	srv := newTestServer(mock, &mockExportService{})

	rec := doRequest(t, srv, http.MethodGet, "/api/addresses/"+apiTestAddress+"/interest?token=wxdai&side=supply&version=v3", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got types.SeriesDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, apiTestAddress, got.Address)
	require.Len(t, got.Points, 1)
	assert.Equal(t, 20240301, got.Points[0].Date)

	assert.Equal(t, apiTestAddress, mock.lastAddress)
	assert.Equal(t, types.TokenWXDAI, mock.lastKey.Token)
}

func TestHandleGetInterestDefaults(t *testing.T) {
	mock := &mockInterestService{series: &types.SeriesDTO{}}
	srv := newTestServer(mock, &mockExportService{})

	rec := doRequest(t, srv, http.MethodGet, "/api/addresses/"+apiTestAddress+"/interest?token=usdc", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, types.SideSupply, mock.lastKey.Side)
	assert.Equal(t, types.VersionV3, mock.lastKey.Version)
}

func TestHandleGetInterestRejectsBadParams(t *testing.T) {
	srv := newTestServer(&mockInterestService{}, &mockExportService{})

	tests := []struct {
		name  string
		query string
	}{
		{"missing token", ""},
		{"unknown token", "?token=doge"},
		{"unknown side", "?token=wxdai&side=short"},
		{"unknown version", "?token=wxdai&version=v9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodGet, "/api/addresses/"+apiTestAddress+"/interest"+tt.query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
		})
	}
}

func TestHandleGetInterestServiceErrorMapping(t *testing.T) {
	mock := &mockInterestService{err: errors.NewInvalidAddressError("nope")}
	srv := newTestServer(mock, &mockExportService{})

	rec := doRequest(t, srv, http.MethodGet, "/api/addresses/nope/interest?token=wxdai", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	mock.err = errors.NewProviderError("subgraph", io.ErrUnexpectedEOF)
	rec = doRequest(t, srv, http.MethodGet, "/api/addresses/"+apiTestAddress+"/interest?token=wxdai", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleGetSummary(t *testing.T) {
	mock := &mockInterestService{summaries: []types.PositionSummaryDTO{
		{
			Key:           types.PositionKey{Token: types.TokenWXDAI, Side: types.SideSupply, Version: types.VersionV3},
			Balance:       "1080",
			TotalInterest: "80",
			PointCount:    4,
		},
	}}
	srv := newTestServer(mock, &mockExportService{})

	rec := doRequest(t, srv, http.MethodGet, "/api/addresses/"+apiTestAddress+"/interest/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Address   string                     `json:"address"`
		Positions []types.PositionSummaryDTO `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apiTestAddress, resp.Address)
	require.Len(t, resp.Positions, 1)
	assert.Equal(t, "80", resp.Positions[0].TotalInterest)
}

func TestHandleGetRange(t *testing.T) {
	mock := &mockInterestService{rangeRep: &service.RangeReport{
		Address:   apiTestAddress,
		StartDate: 20240301,
		EndDate:   20240310,
		Interest:  "50",
	}}
	srv := newTestServer(mock, &mockExportService{})

	rec := doRequest(t, srv, http.MethodGet,
		"/api/addresses/"+apiTestAddress+"/interest/range?token=wxdai&start=20240301&end=20240310", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got service.RangeReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "50", got.Interest)
}

func TestHandleGetRangeMissingDates(t *testing.T) {
	srv := newTestServer(&mockInterestService{}, &mockExportService{})

	rec := doRequest(t, srv, http.MethodGet,
		"/api/addresses/"+apiTestAddress+"/interest/range?token=wxdai&start=20240301", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet,
		"/api/addresses/"+apiTestAddress+"/interest/range?token=wxdai&start=soon&end=20240310", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExport(t *testing.T) {
	export := &mockExportService{csv: "date,balance\n20240301,1000\n"}
	srv := newTestServer(&mockInterestService{}, export)

	rec := doRequest(t, srv, http.MethodGet,
		"/api/addresses/"+apiTestAddress+"/interest/export?token=wxdai&format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "date,balance"))
}

func TestHandleExportRejectsUnknownFormat(t *testing.T) {
	srv := newTestServer(&mockInterestService{}, &mockExportService{})

	rec := doRequest(t, srv, http.MethodGet,
		"/api/addresses/"+apiTestAddress+"/interest/export?token=wxdai&format=xlsx", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateReport(t *testing.T) {
	mock := &mockInterestService{report: &service.BatchReport{
		GeneratedAt: time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC),
		Addresses: []service.AddressReport{
			{Address: apiTestAddress},
		},
	}}
	srv := newTestServer(mock, &mockExportService{})

	body := bytes.NewBufferString(`{"addresses":["` + apiTestAddress + `"]}`)
	rec := doRequest(t, srv, http.MethodPost, "/api/reports", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var got service.BatchReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Addresses, 1)
}

func TestHandleCreateReportRejectsUnknownFields(t *testing.T) {
	srv := newTestServer(&mockInterestService{}, &mockExportService{})

	body := bytes.NewBufferString(`{"addrs":["0x1"]}`)
	rec := doRequest(t, srv, http.MethodPost, "/api/reports", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleInvalidateCache(t *testing.T) {
	mock := &mockInterestService{}
	srv := newTestServer(mock, &mockExportService{})

	rec := doRequest(t, srv, http.MethodDelete, "/api/addresses/"+apiTestAddress+"/cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, apiTestAddress, mock.lastAddress)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&mockInterestService{}, &mockExportService{})

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(&mockInterestService{}, &mockExportService{})

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	req.RemoteAddr = "10.0.0.1:55555"
	out := httptest.NewRecorder()
	srv.Router().ServeHTTP(out, req)
	assert.Equal(t, "fixed-id", out.Header().Get("X-Request-ID"))
}

func TestRateLimiting(t *testing.T) {
	srv := NewServer(
		&ServerConfig{
			Host: "127.0.0.1", Port: "0",
			ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second,
			RateLimitRPS: 1, RateLimitBurst: 2,
		},
		&mockInterestService{},
		&mockExportService{},
		nil,
		logging.NewWriter(logging.LevelFatal, logging.FormatText, io.Discard),
	)

	var last int
	for i := 0; i < 5; i++ {
		rec := doRequest(t, srv, http.MethodGet, "/health", nil)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last, "burst exhausted after repeated calls")
}
