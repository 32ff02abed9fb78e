package catalog

import (
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// embeddingRow is the on-disk layout of one catalog vector.
type embeddingRow struct {
	Row       int64     `parquet:"row"`
	Embedding []float32 `parquet:"embedding,list"`
}

// ReadEmbeddings loads the embedding matrix. Rows must be stored in order
// starting at 0 so that vector i belongs to metadata line i.
func ReadEmbeddings(path string) ([][]float32, error) {
	rows, err := parquet.ReadFile[embeddingRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	out := make([][]float32, len(rows))
	for i, r := range rows {
		if r.Row != int64(i) {
			return nil, fmt.Errorf("embedding at position %d is labeled row %d", i, r.Row)
		}
		out[i] = r.Embedding
	}
	return out, nil
}

// WriteEmbeddings persists vectors row-aligned with the metadata file.
func WriteEmbeddings(path string, vectors [][]float32) error {
	rows := make([]embeddingRow, len(vectors))
	for i, v := range vectors {
		rows[i] = embeddingRow{Row: int64(i), Embedding: v}
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return nil
}
