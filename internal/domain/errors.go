package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCatalogUnavailable signals a missing, corrupt or misaligned catalog source.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrEncodingFailure signals that the query encoder could not produce a usable vector.
	ErrEncodingFailure = errors.New("encoding failure")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidPreset signals an unknown ranking preset name.
	ErrInvalidPreset = errors.New("invalid ranking preset")
	// ErrInvalidPeriod signals an unknown usage reporting period.
	ErrInvalidPeriod = errors.New("invalid usage period")

	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingUnavailable signals that the provider circuit is open.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
)

// CatalogError wraps ErrCatalogUnavailable with the source that failed to load.
type CatalogError struct {
	Source string
	Err    error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCatalogUnavailable.Error(), e.Source, e.Err)
}

// Is reports ErrCatalogUnavailable so callers can match on the sentinel.
func (e *CatalogError) Is(target error) bool { return target == ErrCatalogUnavailable }

func (e *CatalogError) Unwrap() error { return e.Err }

// NewCatalogError creates a catalog load error for the given source.
func NewCatalogError(source string, err error) error {
	return &CatalogError{Source: source, Err: err}
}
