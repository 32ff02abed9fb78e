package ranking

import (
	"fmt"

	"github.com/kailas-cloud/courserank/internal/domain"
	"github.com/kailas-cloud/courserank/internal/domain/course"
)

// PresetName identifies a ranking preset.
type PresetName string

// Ranking preset names.
const (
	// Balanced blends relevance and quality over the whole catalog.
	Balanced PresetName = "balanced"
	// RelevanceFirst shortlists by similarity before quality acts as a tie-breaker.
	RelevanceFirst PresetName = "relevance_first"
)

// Ranking limits.
const (
	DefaultLimit     = 6
	DefaultShortlist = 50
)

// Weights are the coefficients of the final score.
type Weights struct {
	Similarity float64
	Rating     float64
	Reviews    float64
}

// Preset is a named configuration of scoring weights and filter stages.
type Preset struct {
	name      PresetName
	weights   Weights
	shortlist int // 0 disables the similarity pre-filter
	limit     int
}

// BalancedPreset scores the full catalog with 0.60/0.25/0.15 and keeps the top 6.
func BalancedPreset() Preset {
	return Preset{
		name:    Balanced,
		weights: Weights{Similarity: 0.60, Rating: 0.25, Reviews: 0.15},
		limit:   DefaultLimit,
	}
}

// RelevanceFirstPreset keeps the 50 most similar courses, scores them with
// 0.90/0.05/0.05 and keeps the top 6.
func RelevanceFirstPreset() Preset {
	return Preset{
		name:      RelevanceFirst,
		weights:   Weights{Similarity: 0.90, Rating: 0.05, Reviews: 0.05},
		shortlist: DefaultShortlist,
		limit:     DefaultLimit,
	}
}

// Lookup resolves a preset by name.
func Lookup(name PresetName) (Preset, error) {
	switch name {
	case Balanced:
		return BalancedPreset(), nil
	case RelevanceFirst:
		return RelevanceFirstPreset(), nil
	default:
		return Preset{}, fmt.Errorf("%w: %q", domain.ErrInvalidPreset, name)
	}
}

// IsValid checks if the name is one of the supported presets.
func (n PresetName) IsValid() bool {
	return n == Balanced || n == RelevanceFirst
}

// Name returns the preset name.
func (p Preset) Name() PresetName { return p.name }

// Weights returns the final-score coefficients.
func (p Preset) Weights() Weights { return p.weights }

// Shortlist returns the similarity pre-filter size (0 = none).
func (p Preset) Shortlist() int { return p.shortlist }

// Limit returns the maximum number of results.
func (p Preset) Limit() int { return p.limit }

// Combine merges similarity and quality into the final score.
func (p Preset) Combine(similarity float64, q course.Quality) float64 {
	return p.weights.Similarity*similarity +
		p.weights.Rating*q.RatingNorm +
		p.weights.Reviews*q.ReviewsNorm
}
