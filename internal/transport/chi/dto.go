package chi

import (
	"time"

	"github.com/kailas-cloud/courserank/internal/domain/course"
	healthuc "github.com/kailas-cloud/courserank/internal/usecase/health"
	usageuc "github.com/kailas-cloud/courserank/internal/usecase/usage"
)

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeUnauthorized           ErrorCode = "unauthorized"
	ErrorCodeInvalidPreset          ErrorCode = "invalid_preset"
	ErrorCodeRateLimited            ErrorCode = "rate_limited"
	ErrorCodeEmbeddingQuotaExceeded ErrorCode = "embedding_quota_exceeded"
	ErrorCodeEmbeddingUnavailable   ErrorCode = "embedding_unavailable"
	ErrorCodeEncodingFailure        ErrorCode = "encoding_failure"
	ErrorCodeCatalogUnavailable     ErrorCode = "catalog_unavailable"
	ErrorCodeNotFound               ErrorCode = "not_found"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// BannerResponse is returned by GET /.
type BannerResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// CourseResponse is one search result.
type CourseResponse struct {
	Title      string  `json:"title"`
	Rating     float64 `json:"rating"`
	NumReviews int     `json:"num_reviews"`
	IsPaid     bool    `json:"is_paid"`
	URL        string  `json:"url"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Courses int               `json:"courses"`
}

// UsageResponse is returned by GET /usage. Limit and remaining are omitted when unlimited.
type UsageResponse struct {
	Period          string    `json:"period"`
	PeriodStartAt   time.Time `json:"period_start_at"`
	PeriodEndAt     time.Time `json:"period_end_at"`
	TokensUsed      int64     `json:"tokens_used"`
	TokensLimit     *int64    `json:"tokens_limit,omitempty"`
	TokensRemaining *int64    `json:"tokens_remaining,omitempty"`
	IsExhausted     bool      `json:"is_exhausted"`
}

func coursesToResponse(items []course.Summary) []CourseResponse {
	out := make([]CourseResponse, len(items))
	for i, s := range items {
		out[i] = CourseResponse{
			Title:      s.Title,
			Rating:     s.Rating,
			NumReviews: s.NumReviews,
			IsPaid:     s.IsPaid,
			URL:        s.URL,
		}
	}
	return out
}

func healthToResponse(r healthuc.Report) HealthResponse {
	checks := make(map[string]string, len(r.Checks))
	for k, v := range r.Checks {
		checks[k] = string(v)
	}
	return HealthResponse{Status: string(r.Status), Checks: checks, Courses: r.Courses}
}

func usageToResponse(r usageuc.Report) UsageResponse {
	resp := UsageResponse{
		Period:        string(r.Period),
		PeriodStartAt: r.Start,
		PeriodEndAt:   r.End,
		TokensUsed:    r.Used,
		IsExhausted:   r.Exhausted,
	}
	if r.Limit > 0 {
		limit, remaining := r.Limit, r.Remaining
		resp.TokensLimit = &limit
		resp.TokensRemaining = &remaining
	}
	return resp
}
