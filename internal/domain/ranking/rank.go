// Package ranking scores catalog courses against a query vector and selects the top results.
package ranking

import (
	"cmp"
	"slices"

	"github.com/kailas-cloud/courserank/internal/domain/constraint"
	"github.com/kailas-cloud/courserank/internal/domain/course"
)

// Candidate is a scored catalog entry, valid for a single request.
type Candidate struct {
	Index       int
	Similarity  float64
	RatingNorm  float64
	ReviewsNorm float64
	Final       float64
}

// Similarity returns the dot product of two vectors.
// For unit-norm inputs this is their cosine similarity.
func Similarity(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Rank applies constraints, scores every remaining course against query and
// returns at most p.Limit() candidates ordered by final score descending.
// Ties keep catalog order. query must have the catalog's dimensionality.
func Rank(cat *course.Catalog, query []float32, cs constraint.Set, p Preset) []Candidate {
	freeOnly := cs.Has(constraint.FreeOnly)

	cands := make([]Candidate, 0, cat.Len())
	for i := range cat.Len() {
		r := cat.At(i)
		if freeOnly && r.IsPaid() {
			continue
		}
		q := cat.Quality(i)
		cands = append(cands, Candidate{
			Index:       i,
			Similarity:  Similarity(r.Embedding(), query),
			RatingNorm:  q.RatingNorm,
			ReviewsNorm: q.ReviewsNorm,
		})
	}

	if p.shortlist > 0 && len(cands) > p.shortlist {
		slices.SortFunc(cands, bySimilarity)
		cands = cands[:p.shortlist]
	}

	for i := range cands {
		c := &cands[i]
		c.Final = p.Combine(c.Similarity, course.Quality{RatingNorm: c.RatingNorm, ReviewsNorm: c.ReviewsNorm})
	}
	slices.SortFunc(cands, byFinal)

	if len(cands) > p.limit {
		cands = cands[:p.limit]
	}
	return cands
}

func bySimilarity(a, b Candidate) int {
	if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

func byFinal(a, b Candidate) int {
	if c := cmp.Compare(b.Final, a.Final); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}
