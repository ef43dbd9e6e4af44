// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/RealToken-Community/gainorloss/internal/logging"
	"github.com/RealToken-Community/gainorloss/internal/service"
	"github.com/RealToken-Community/gainorloss/internal/types"
)

// Service interfaces for dependency injection and testing

// InterestServiceInterface defines the interface for series operations
type InterestServiceInterface interface {
	GetSeries(ctx context.Context, address string, key types.PositionKey) (*types.SeriesDTO, error)
	GetSummary(ctx context.Context, address string) ([]types.PositionSummaryDTO, error)
	QueryRange(ctx context.Context, address string, key types.PositionKey, startDate, endDate int) (*service.RangeReport, error)
	BuildReport(ctx context.Context, addresses []string) (*service.BatchReport, error)
	Invalidate(ctx context.Context, address string) error
}

// ExportServiceInterface defines the interface for series export
type ExportServiceInterface interface {
	WriteCSV(ctx context.Context, w io.Writer, address string, key types.PositionKey) error
}

// HealthChecker reports whether one backing store is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	router          *mux.Router
	httpServer      *http.Server
	interestService InterestServiceInterface
	exportService   ExportServiceInterface
	healthChecks    map[string]HealthChecker
	config          *ServerConfig
	logger          *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
}

// NewServer creates a new API server instance. healthChecks entries show up
// in the /health body by name; a nil map reports process liveness only.
func NewServer(
	config *ServerConfig,
	interestService InterestServiceInterface,
	exportService ExportServiceInterface,
	healthChecks map[string]HealthChecker,
	logger *logging.Logger,
) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Server{
		router:          mux.NewRouter(),
		interestService: interestService,
		exportService:   exportService,
		healthChecks:    healthChecks,
		config:          config,
		logger:          logger,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)

	// Middleware order matters: request IDs first so every later stage logs
	// with one attached.
	s.router.Use(RequestIDMiddleware(s.logger))
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/addresses/{address}/interest", s.handleGetInterest).Methods("GET")
	api.HandleFunc("/addresses/{address}/interest/summary", s.handleGetSummary).Methods("GET")
	api.HandleFunc("/addresses/{address}/interest/range", s.handleGetRange).Methods("GET")
	api.HandleFunc("/addresses/{address}/interest/export", s.handleExport).Methods("GET")
	api.HandleFunc("/addresses/{address}/cache", s.handleInvalidateCache).Methods("DELETE")

	api.HandleFunc("/reports", s.handleCreateReport).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := map[string]string{
		"status":  "healthy",
		"service": "gainorloss",
	}
	for name, check := range s.healthChecks {
		if err := check.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body[name] = "unreachable"
		} else {
			body[name] = "ok"
		}
	}

	respondJSON(w, status, body)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the configured router. Used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}
