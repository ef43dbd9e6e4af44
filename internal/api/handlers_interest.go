package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/RealToken-Community/gainorloss/internal/errors"
	"github.com/RealToken-Community/gainorloss/internal/types"
)

// positionKeyFromQuery reads the token/side/version query parameters. The
// token is required; side defaults to supply and version to v3.
func positionKeyFromQuery(r *http.Request) (types.PositionKey, error) {
	q := r.URL.Query()

	key := types.PositionKey{
		Token:   types.Token(q.Get("token")),
		Side:    types.SideSupply,
		Version: types.VersionV3,
	}
	if side := q.Get("side"); side != "" {
		key.Side = types.Side(side)
	}
	if version := q.Get("version"); version != "" {
		key.Version = types.Version(version)
	}

	if !types.ValidToken(key.Token) {
		return key, errors.NewInvalidParameterError("token", "must be one of: wxdai, usdc")
	}
	if !types.ValidSide(key.Side) {
		return key, errors.NewInvalidParameterError("side", "must be one of: supply, debt")
	}
	if !types.ValidVersion(key.Version) {
		return key, errors.NewInvalidParameterError("version", "must be one of: v2, v3")
	}
	return key, nil
}

// dateParam parses a required yyyymmdd query parameter.
func dateParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, errors.NewInvalidParameterError(name, "required, format yyyymmdd")
	}
	date, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewInvalidParameterError(name, "not a number, format yyyymmdd")
	}
	return date, nil
}

// handleGetInterest handles GET /api/addresses/:address/interest
func (s *Server) handleGetInterest(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	key, err := positionKeyFromQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}

	series, err := s.interestService.GetSeries(r.Context(), address, key)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, series)
}

// handleGetSummary handles GET /api/addresses/:address/interest/summary
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	summaries, err := s.interestService.GetSummary(r.Context(), address)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address":   address,
		"positions": summaries,
	})
}

// handleGetRange handles GET /api/addresses/:address/interest/range
func (s *Server) handleGetRange(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	key, err := positionKeyFromQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}
	start, err := dateParam(r, "start")
	if err != nil {
		respondError(w, err)
		return
	}
	end, err := dateParam(r, "end")
	if err != nil {
		respondError(w, err)
		return
	}

	report, err := s.interestService.QueryRange(r.Context(), address, key, start, end)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// handleExport handles GET /api/addresses/:address/interest/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	if format := r.URL.Query().Get("format"); format != "" && format != "csv" {
		respondError(w, errors.NewInvalidParameterError("format", "only csv is supported"))
		return
	}

	key, err := positionKeyFromQuery(r)
	if err != nil {
		respondError(w, err)
		return
	}

	filename := fmt.Sprintf("interest_%s_%s_%s_%s.csv", address, key.Token, key.Side, key.Version)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := s.exportService.WriteCSV(r.Context(), w, address, key); err != nil {
		// Headers may already be out; log and abort the stream.
		respondError(w, err)
		return
	}
}

// handleInvalidateCache handles DELETE /api/addresses/:address/cache
func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	if err := s.interestService.Invalidate(r.Context(), address); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"address": address,
		"status":  "invalidated",
	})
}

// CreateReportRequest is the body of POST /api/reports.
type CreateReportRequest struct {
	Addresses []string `json:"addresses"`
}

// handleCreateReport handles POST /api/reports
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req CreateReportRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return
	}

	report, err := s.interestService.BuildReport(r.Context(), req.Addresses)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}
