package course

import (
	"fmt"
	"math"
	"strings"
)

// MaxRating is the upper bound of the rating scale.
const MaxRating = 5.0

// Attributes are the human-facing metadata columns of a course.
type Attributes struct {
	Title      string
	Headline   string
	Objectives string
	Curriculum string
	Level      string
	Category   string
	URL        string
	Rating     float64
	NumReviews int
	IsPaid     bool
}

// Record is one catalog entry (immutable value object).
type Record struct {
	id           int
	attrs        Attributes
	semanticText string
	embedding    []float32
}

// New validates and creates a Record.
// Title and URL must be non-blank, rating must lie in [0, 5], review count must be non-negative.
func New(id int, attrs Attributes, semanticText string, embedding []float32) (Record, error) {
	if strings.TrimSpace(attrs.Title) == "" {
		return Record{}, fmt.Errorf("title is required")
	}
	if strings.TrimSpace(attrs.URL) == "" {
		return Record{}, fmt.Errorf("url is required")
	}
	if math.IsNaN(attrs.Rating) || attrs.Rating < 0 || attrs.Rating > MaxRating {
		return Record{}, fmt.Errorf("rating must be between 0 and %.0f, got %v", MaxRating, attrs.Rating)
	}
	if attrs.NumReviews < 0 {
		return Record{}, fmt.Errorf("num_reviews must be non-negative, got %d", attrs.NumReviews)
	}
	return Record{id: id, attrs: attrs, semanticText: semanticText, embedding: embedding}, nil
}

// ID returns the row ordinal of the record.
func (r *Record) ID() int { return r.id }

// Attributes returns the metadata columns.
func (r *Record) Attributes() Attributes { return r.attrs }

// Title returns the course title.
func (r *Record) Title() string { return r.attrs.Title }

// URL returns the course link.
func (r *Record) URL() string { return r.attrs.URL }

// Rating returns the average rating (0-5).
func (r *Record) Rating() float64 { return r.attrs.Rating }

// NumReviews returns the review count.
func (r *Record) NumReviews() int { return r.attrs.NumReviews }

// IsPaid reports whether the course costs money.
func (r *Record) IsPaid() bool { return r.attrs.IsPaid }

// SemanticText returns the text the embedding was computed from.
func (r *Record) SemanticText() string { return r.semanticText }

// Embedding returns the unit-norm embedding vector.
func (r *Record) Embedding() []float32 { return r.embedding }

// Summary returns the client-facing projection of the record.
func (r *Record) Summary() Summary {
	return Summary{
		Title:      r.attrs.Title,
		Rating:     r.attrs.Rating,
		NumReviews: r.attrs.NumReviews,
		IsPaid:     r.attrs.IsPaid,
		URL:        r.attrs.URL,
	}
}

// Summary is a single recommendation returned to callers.
type Summary struct {
	Title      string
	Rating     float64
	NumReviews int
	IsPaid     bool
	URL        string
}
