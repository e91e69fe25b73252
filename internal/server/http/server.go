// Package httpserver provides the HTTP REST API server for the
// pharmacovigilance service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/trialsignal/pharmacovigilance-service/internal/database"
	"github.com/trialsignal/pharmacovigilance-service/internal/domain"
	"github.com/trialsignal/pharmacovigilance-service/internal/repository"
	"github.com/trialsignal/pharmacovigilance-service/internal/vigilance"
)

// VigilanceService is the application surface the HTTP handlers call into.
// *vigilance.Service satisfies it.
type VigilanceService interface {
	CreateRule(ctx context.Context, rule *domain.SearchRule) error
	GetRule(ctx context.Context, id uuid.UUID) (*domain.SearchRule, error)
	UpdateRule(ctx context.Context, rule *domain.SearchRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	ListRules(ctx context.Context, filter repository.RuleFilter) ([]*domain.SearchRule, int64, error)
	RunRule(ctx context.Context, ruleID uuid.UUID, trigger string) (*vigilance.ScanSummary, error)

	GetResult(ctx context.Context, id uuid.UUID) (*domain.SearchResult, error)
	ListResults(ctx context.Context, filter repository.ResultFilter) ([]*domain.SearchResult, int64, error)
	ResultCounts(ctx context.Context, ruleID uuid.UUID) (map[domain.ReviewStatus]int64, error)
	ReviewResult(ctx context.Context, id uuid.UUID, status domain.ReviewStatus, notes string) (*domain.SearchResult, error)

	GetArticle(ctx context.Context, pmid string) (*domain.Article, error)
	ListArticles(ctx context.Context, filter repository.ArticleFilter) ([]*domain.Article, int64, error)

	ListTerms(ctx context.Context, category string) ([]*domain.AdverseEventTerm, error)
	CreateTerm(ctx context.Context, term *domain.AdverseEventTerm) error
	DeleteTerm(ctx context.Context, id uuid.UUID) error
}

// SchedulerClient is the subset of the workflow client the scheduler
// endpoints need. *temporal.ScanWorkflowClient satisfies it.
type SchedulerClient interface {
	Health(ctx context.Context) error
	SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error
	QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, result interface{}, args ...interface{}) error
}

// HealthChecker reports database connectivity. *database.DB satisfies it.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	service    VigilanceService
	scheduler  SchedulerClient
	db         HealthChecker
	validate   *validator.Validate
	logger     zerolog.Logger

	metricsEnabled bool
	metricsPath    string
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
	MetricsPath     string
}

// NewServer creates a new HTTP server with all dependencies. scheduler may
// be nil when the API runs without a Temporal connection; the scheduler
// endpoints then report 503.
func NewServer(
	cfg Config,
	service VigilanceService,
	scheduler SchedulerClient,
	db HealthChecker,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		service:        service,
		scheduler:      scheduler,
		db:             db,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		logger:         logger.With().Str("component", "http-server").Logger(),
		metricsEnabled: cfg.MetricsEnabled,
		metricsPath:    cfg.MetricsPath,
	}
	if s.metricsPath == "" {
		s.metricsPath = "/metrics"
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(jsonContentTypeMiddleware)

	// Health and metrics endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)
	if s.metricsEnabled {
		r.Handle(s.metricsPath, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/rules", func(r chi.Router) {
			r.Post("/", s.createRule)
			r.Get("/", s.listRules)
			r.Get("/{ruleID}", s.getRule)
			r.Put("/{ruleID}", s.updateRule)
			r.Delete("/{ruleID}", s.deleteRule)
			r.Post("/{ruleID}/run", s.runRule)
			r.Get("/{ruleID}/results", s.listRuleResults)
			r.Get("/{ruleID}/results/counts", s.getResultCounts)
		})

		r.Route("/results", func(r chi.Router) {
			r.Get("/", s.listResults)
			r.Get("/{resultID}", s.getResult)
			r.Post("/{resultID}/review", s.reviewResult)
		})

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", s.listArticles)
			r.Get("/{pmid}", s.getArticle)
		})

		r.Route("/terms", func(r chi.Router) {
			r.Get("/", s.listTerms)
			r.Post("/", s.createTerm)
			r.Delete("/{termID}", s.deleteTerm)
		})

		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/", s.getSchedulerState)
			r.Post("/run-now", s.triggerSchedulerPass)
		})
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying router, used by tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status including Temporal connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}

	temporalStatus := "disabled"
	if s.scheduler != nil {
		temporalStatus = "healthy"
		if err := s.scheduler.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "not_ready",
				"database": "healthy",
				"temporal": "unhealthy",
				"error":    err.Error(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
		"temporal": temporalStatus,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
