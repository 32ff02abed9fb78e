package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courserank/internal/domain"
)

func newTestBreaker(inner domain.Embedder, threshold uint32, timeout time.Duration) *BreakerEmbedder {
	return NewBreakerEmbedder(inner, BreakerConfig{
		Provider:         "test",
		MaxRequests:      1,
		Timeout:          timeout,
		FailureThreshold: threshold,
	}, zap.NewNop())
}

func TestBreakerEmbedder_PassesThrough(t *testing.T) {
	inner := &fakeEmbedder{vec: []float32{1, 0}, tokens: 3}
	b := newTestBreaker(inner, 2, time.Minute)

	res, err := b.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != 2 || res.TotalTokens != 3 {
		t.Errorf("unexpected result: %+v", res)
	}

	batch, err := b.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Embeddings) != 2 {
		t.Errorf("expected 2 embeddings, got %d", len(batch.Embeddings))
	}
}

func TestBreakerEmbedder_OpensAfterFailures(t *testing.T) {
	inner := &fakeEmbedder{err: domain.ErrEmbeddingProviderError}
	b := newTestBreaker(inner, 2, time.Minute)

	for range 2 {
		if _, err := b.Embed(context.Background(), "x"); !errors.Is(err, domain.ErrEmbeddingProviderError) {
			t.Fatalf("expected provider error, got %v", err)
		}
	}
	if b.State() != "open" {
		t.Fatalf("expected open state, got %s", b.State())
	}

	_, err := b.Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if inner.embedCalls != 2 {
		t.Errorf("provider called %d times, want 2", inner.embedCalls)
	}
}

func TestBreakerEmbedder_RecoversAfterTimeout(t *testing.T) {
	inner := &fakeEmbedder{err: errors.New("down")}
	b := newTestBreaker(inner, 1, 50*time.Millisecond)

	_, _ = b.Embed(context.Background(), "x")
	if b.State() != "open" {
		t.Fatalf("expected open state, got %s", b.State())
	}

	time.Sleep(80 * time.Millisecond)
	inner.err = nil
	inner.vec = []float32{1}

	if _, err := b.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("expected half-open probe to succeed, got %v", err)
	}
	if b.State() != "closed" {
		t.Errorf("expected closed state, got %s", b.State())
	}
}

func TestBreakerEmbedder_IgnoresQuotaAndCancel(t *testing.T) {
	inner := &fakeEmbedder{err: domain.ErrEmbeddingQuotaExceeded}
	b := newTestBreaker(inner, 1, time.Minute)

	for range 3 {
		_, _ = b.Embed(context.Background(), "x")
	}
	inner.err = context.Canceled
	_, _ = b.Embed(context.Background(), "x")

	if b.State() != "closed" {
		t.Errorf("quota and cancellation must not trip the breaker, state=%s", b.State())
	}
}
