package health

import "context"

// Pinger checks availability of the key-value store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CatalogSizer reports the number of courses in the live catalog.
type CatalogSizer interface {
	Len() int
}
