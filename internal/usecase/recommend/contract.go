package recommend

import (
	"context"

	"github.com/kailas-cloud/courserank/internal/domain"
	"github.com/kailas-cloud/courserank/internal/domain/course"
)

// QueryEncoder maps query text into the catalog's vector space.
// Implementations return unit-norm vectors.
type QueryEncoder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// CatalogSource yields the catalog snapshot for one request.
type CatalogSource interface {
	Current() *course.Catalog
}
