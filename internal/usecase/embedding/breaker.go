package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/courserank/internal/domain"
	"github.com/kailas-cloud/courserank/internal/metrics"
)

// BreakerConfig tunes the provider circuit breaker.
type BreakerConfig struct {
	Provider         string
	MaxRequests      uint32        // probes allowed while half-open
	Interval         time.Duration // closed-state counter reset period; 0 = never
	Timeout          time.Duration // open-state duration before probing
	FailureThreshold uint32        // consecutive failures that trip the breaker
}

// BreakerEmbedder stops calling a failing provider for a cool-down period,
// so requests fail fast instead of waiting on a dead endpoint.
type BreakerEmbedder struct {
	inner domain.Embedder
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreakerEmbedder wraps inner with a circuit breaker.
func NewBreakerEmbedder(inner domain.Embedder, cfg BreakerConfig, logger *zap.Logger) *BreakerEmbedder {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        "embedding:" + cfg.Provider,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.EmbeddingBreakerState.WithLabelValues(cfg.Provider).Set(float64(to))
			logger.Warn("Embedding circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	metrics.EmbeddingBreakerState.WithLabelValues(cfg.Provider).Set(float64(gobreaker.StateClosed))
	return &BreakerEmbedder{inner: inner, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

// Embed calls the inner embedder unless the circuit is open.
func (b *BreakerEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.inner.Embed(ctx, text)
	})
	if err != nil {
		return domain.EmbeddingResult{}, breakerError(err)
	}
	return res.(domain.EmbeddingResult), nil //nolint:forcetypeassert // set by the closure above
}

// BatchEmbed calls the inner batch embedder unless the circuit is open.
func (b *BreakerEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	res, err := b.cb.Execute(func() (any, error) {
		if be, ok := b.inner.(domain.BatchEmbedder); ok {
			return be.BatchEmbed(ctx, texts)
		}
		return domain.BatchFallback(ctx, b.inner, texts)
	})
	if err != nil {
		return domain.BatchEmbeddingResult{}, breakerError(err)
	}
	return res.(domain.BatchEmbeddingResult), nil //nolint:forcetypeassert // set by the closure above
}

// State reports the breaker state name: closed, half-open or open.
func (b *BreakerEmbedder) State() string {
	return b.cb.State().String()
}

// countsAsSuccess keeps caller cancellations and budget rejections from tripping the breaker.
func countsAsSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, domain.ErrEmbeddingQuotaExceeded)
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return err
}
