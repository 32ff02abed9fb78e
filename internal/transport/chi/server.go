// Package chi serves the recommendation API over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courserank/internal/domain"
	"github.com/kailas-cloud/courserank/internal/domain/course"
	"github.com/kailas-cloud/courserank/internal/domain/ranking"
	"github.com/kailas-cloud/courserank/internal/logger"
	healthuc "github.com/kailas-cloud/courserank/internal/usecase/health"
	usageuc "github.com/kailas-cloud/courserank/internal/usecase/usage"
)

// BannerMessage is the greeting returned by GET /.
const BannerMessage = "Course Recommendation API is running!"

// Recommender answers search queries.
type Recommender interface {
	Search(ctx context.Context, query string, preset ranking.PresetName) ([]course.Summary, error)
}

// HealthChecker produces a health report.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageReporter reports embedding token usage.
type UsageReporter interface {
	GetReport(ctx context.Context, period domain.BudgetPeriod) usageuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	recommender   Recommender
	health        HealthChecker
	usage         UsageReporter
	version       string
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(recommender Recommender, health HealthChecker, usage UsageReporter, version string) *Server {
	return &Server{
		recommender: recommender,
		health:      health,
		usage:       usage,
		version:     version,
		// Order matters: quota and open-circuit errors also match ErrEncodingFailure.
		errorHandlers: []errorHandler{
			sentinelHandler(domain.ErrInvalidPreset, http.StatusBadRequest, ErrorCodeInvalidPreset),
			sentinelHandler(domain.ErrInvalidPeriod, http.StatusBadRequest, ErrorCodeBadRequest),
			sentinelHandler(domain.ErrEmbeddingQuotaExceeded,
				http.StatusPaymentRequired, ErrorCodeEmbeddingQuotaExceeded),
			sentinelHandler(domain.ErrEmbeddingUnavailable,
				http.StatusServiceUnavailable, ErrorCodeEmbeddingUnavailable),
			sentinelHandler(domain.ErrEncodingFailure, http.StatusBadGateway, ErrorCodeEncodingFailure),
			sentinelHandler(domain.ErrCatalogUnavailable,
				http.StatusServiceUnavailable, ErrorCodeCatalogUnavailable),
		},
	}
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, BannerResponse{Message: BannerMessage, Version: s.version})
}

// Search handles GET /search?q=<text>&preset=<name>.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	preset := ranking.PresetName(params.Get("preset"))

	results, err := s.recommender.Search(r.Context(), params.Get("q"), preset)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, coursesToResponse(results))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthToResponse(report))
}

// GetUsage handles GET /usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domain.ParseBudgetPeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usageToResponse(s.usage.GetReport(r.Context(), period)))
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, ErrorCodeNotFound, "not found")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidPreset,
		domain.ErrInvalidPeriod,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingUnavailable,
		domain.ErrVectorDimMismatch,
		domain.ErrEncodingFailure,
		domain.ErrCatalogUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
