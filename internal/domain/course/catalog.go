package course

import (
	"fmt"

	"github.com/kailas-cloud/courserank/internal/domain"
)

// Catalog is the ordered, read-only set of courses available for ranking.
// Quality signals are computed once at construction.
type Catalog struct {
	records []Record
	quality []Quality
	dim     int
}

// NewCatalog validates row alignment invariants and precomputes quality signals.
// Every embedding must be unit-norm and share one dimensionality.
func NewCatalog(records []Record) (*Catalog, error) {
	dim := 0
	quality := make([]Quality, len(records))
	for i := range records {
		r := &records[i]
		if r.id != i {
			return nil, fmt.Errorf("record at position %d has id %d", i, r.id)
		}
		if len(r.embedding) == 0 {
			return nil, fmt.Errorf("record %d has no embedding", i)
		}
		if dim == 0 {
			dim = len(r.embedding)
		}
		if len(r.embedding) != dim {
			return nil, fmt.Errorf("record %d has dimension %d, expected %d", i, len(r.embedding), dim)
		}
		if !domain.IsUnitNorm(r.embedding) {
			return nil, fmt.Errorf("record %d embedding is not unit-norm", i)
		}
		quality[i] = NormalizeQuality(r.attrs.Rating, r.attrs.NumReviews)
	}
	return &Catalog{records: records, quality: quality, dim: dim}, nil
}

// Len returns the number of records.
func (c *Catalog) Len() int { return len(c.records) }

// Dim returns the embedding dimensionality (0 for an empty catalog).
func (c *Catalog) Dim() int { return c.dim }

// At returns the record at position i.
func (c *Catalog) At(i int) *Record { return &c.records[i] }

// Quality returns the precomputed quality signals of record i.
func (c *Catalog) Quality(i int) Quality { return c.quality[i] }
