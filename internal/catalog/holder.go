package catalog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courserank/internal/domain/course"
	"github.com/kailas-cloud/courserank/internal/logger"
	"github.com/kailas-cloud/courserank/internal/metrics"
)

// LoadFunc builds a catalog from its source.
type LoadFunc func(ctx context.Context, src Source) (*course.Catalog, error)

// Holder publishes the live catalog. Readers take a snapshot with Current
// and never observe a partially loaded catalog.
type Holder struct {
	src  Source
	load LoadFunc
	cur  atomic.Pointer[course.Catalog]
	mu   sync.Mutex // serializes reloads
}

// NewHolder loads the initial catalog. It fails if the first load fails.
func NewHolder(ctx context.Context, src Source, load LoadFunc) (*Holder, error) {
	if load == nil {
		load = Load
	}
	h := &Holder{src: src, load: load}
	cat, err := load(ctx, src)
	if err != nil {
		return nil, err
	}
	h.publish(cat)
	return h, nil
}

// Current returns the catalog snapshot to use for one request.
func (h *Holder) Current() *course.Catalog {
	return h.cur.Load()
}

// Reload loads a fresh catalog and swaps it in. On failure the previous
// catalog stays live and the error is returned.
func (h *Holder) Reload(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cat, err := h.load(ctx, h.src)
	if err != nil {
		metrics.CatalogReloadsTotal.WithLabelValues("error").Inc()
		logger.FromContext(ctx).Error("catalog reload failed, keeping previous catalog", zap.Error(err))
		return fmt.Errorf("reload catalog: %w", err)
	}
	prev := h.cur.Load()
	h.publish(cat)
	metrics.CatalogReloadsTotal.WithLabelValues("ok").Inc()
	logger.FromContext(ctx).Info("catalog reloaded",
		zap.Int("previous_courses", prev.Len()),
		zap.Int("courses", cat.Len()),
	)
	return nil
}

// Len reports the size of the live catalog.
func (h *Holder) Len() int {
	return h.Current().Len()
}

func (h *Holder) publish(cat *course.Catalog) {
	h.cur.Store(cat)
	metrics.CatalogCourses.Set(float64(cat.Len()))
}
