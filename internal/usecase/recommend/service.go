// Package recommend answers free-text course queries with a ranked top-N list.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courserank/internal/domain"
	"github.com/kailas-cloud/courserank/internal/domain/constraint"
	"github.com/kailas-cloud/courserank/internal/domain/course"
	"github.com/kailas-cloud/courserank/internal/domain/ranking"
	"github.com/kailas-cloud/courserank/internal/logger"
	"github.com/kailas-cloud/courserank/internal/metrics"
)

// debugTop is how many ranked results are logged at debug level.
const debugTop = 3

// Service runs the retrieval and ranking pipeline.
type Service struct {
	encoder       QueryEncoder
	catalog       CatalogSource
	defaultPreset ranking.Preset
}

// New creates a Service. defaultPreset is used when a request names none.
func New(encoder QueryEncoder, catalog CatalogSource, defaultPreset ranking.PresetName) (*Service, error) {
	p, err := ranking.Lookup(defaultPreset)
	if err != nil {
		return nil, fmt.Errorf("default preset: %w", err)
	}
	return &Service{encoder: encoder, catalog: catalog, defaultPreset: p}, nil
}

// DefaultPreset returns the preset applied when none is requested.
func (s *Service) DefaultPreset() ranking.PresetName { return s.defaultPreset.Name() }

// Search returns at most preset.Limit() course summaries for query.
// A blank query yields an empty list without calling the encoder.
// An empty preset name selects the default preset.
func (s *Service) Search(ctx context.Context, query string, preset ranking.PresetName) ([]course.Summary, error) {
	p := s.defaultPreset
	if preset != "" {
		var err error
		if p, err = ranking.Lookup(preset); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	out, err := s.search(ctx, query, p)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SearchDuration.WithLabelValues(string(p.Name()), status).Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.SearchResults.WithLabelValues(string(p.Name())).Observe(float64(len(out)))
	}
	return out, err
}

func (s *Service) search(ctx context.Context, query string, p ranking.Preset) ([]course.Summary, error) {
	if strings.TrimSpace(query) == "" {
		return []course.Summary{}, nil
	}

	cat := s.catalog.Current()
	if cat == nil || cat.Len() == 0 {
		return []course.Summary{}, nil
	}

	constraints := constraint.Extract(query)
	for _, name := range constraints.Names() {
		metrics.ConstraintHitsTotal.WithLabelValues(name).Inc()
	}

	res, err := s.encoder.Embed(ctx, query)
	if err != nil {
		if !errors.Is(err, domain.ErrEncodingFailure) {
			err = fmt.Errorf("%w: %w", domain.ErrEncodingFailure, err)
		}
		return nil, fmt.Errorf("encode query: %w", err)
	}
	if len(res.Embedding) != cat.Dim() {
		return nil, fmt.Errorf("%w: %w: query has %d dimensions, catalog has %d",
			domain.ErrEncodingFailure, domain.ErrVectorDimMismatch, len(res.Embedding), cat.Dim())
	}

	ranked := ranking.Rank(cat, res.Embedding, constraints, p)
	logTop(ctx, cat, ranked, p, constraints)

	out := make([]course.Summary, len(ranked))
	for i, c := range ranked {
		out[i] = cat.At(c.Index).Summary()
	}
	return out, nil
}

func logTop(ctx context.Context, cat *course.Catalog, ranked []ranking.Candidate, p ranking.Preset, cs constraint.Set) {
	log := logger.FromContext(ctx)
	if ce := log.Check(zap.DebugLevel, "ranked results"); ce != nil {
		top := make([]string, 0, debugTop)
		for _, c := range ranked[:min(debugTop, len(ranked))] {
			top = append(top, fmt.Sprintf("%s sim=%.3f final=%.3f", cat.At(c.Index).Title(), c.Similarity, c.Final))
		}
		ce.Write(
			zap.String("preset", string(p.Name())),
			zap.Strings("constraints", cs.Names()),
			zap.Int("results", len(ranked)),
			zap.Strings("top", top),
		)
	}
}
