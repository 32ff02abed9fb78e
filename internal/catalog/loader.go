// Package catalog loads course catalogs from disk and serves the live snapshot.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courserank/internal/domain"
	"github.com/kailas-cloud/courserank/internal/domain/course"
	"github.com/kailas-cloud/courserank/internal/logger"
)

// Source names the two files a catalog is built from.
type Source struct {
	MetadataPath   string
	EmbeddingsPath string
}

// Load reads metadata and embeddings and assembles a validated catalog.
// Every failure is reported as a *domain.CatalogError.
func Load(ctx context.Context, src Source) (*course.Catalog, error) {
	log := logger.FromContext(ctx)

	rows, err := readMetadataFile(src.MetadataPath)
	if err != nil {
		return nil, domain.NewCatalogError(src.MetadataPath, err)
	}
	vectors, err := ReadEmbeddings(src.EmbeddingsPath)
	if err != nil {
		return nil, domain.NewCatalogError(src.EmbeddingsPath, err)
	}
	if len(vectors) != len(rows) {
		return nil, domain.NewCatalogError(src.EmbeddingsPath,
			fmt.Errorf("%d embeddings for %d metadata rows", len(vectors), len(rows)))
	}

	records := make([]course.Record, len(rows))
	for i, row := range rows {
		rec, err := course.New(i, row.Attrs, row.SemanticText, vectors[i])
		if err != nil {
			return nil, domain.NewCatalogError(src.MetadataPath, fmt.Errorf("row %d: %w", i, err))
		}
		records[i] = rec
	}

	cat, err := course.NewCatalog(records)
	if err != nil {
		return nil, domain.NewCatalogError(src.EmbeddingsPath, err)
	}

	log.Info("catalog loaded",
		zap.Int("courses", cat.Len()),
		zap.Int("dim", cat.Dim()),
		zap.String("metadata", src.MetadataPath),
		zap.String("embeddings", src.EmbeddingsPath),
	)
	return cat, nil
}

func readMetadataFile(path string) ([]Row, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadMetadata(f)
}
