package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kailas-cloud/courserank/internal/domain/course"
)

// Metadata CSV columns, in file order.
const (
	ColTitle        = "title"
	ColHeadline     = "headline"
	ColObjectives   = "objectives"
	ColCurriculum   = "curriculum"
	ColLevel        = "instructional_level"
	ColCategory     = "category"
	ColRating       = "rating"
	ColNumReviews   = "num_reviews"
	ColIsPaid       = "is_paid"
	ColURL          = "url"
	ColSemanticText = "semantic_text"
)

// RawColumns are the columns of an unprocessed course export.
var RawColumns = []string{
	ColTitle, ColHeadline, ColObjectives, ColCurriculum, ColLevel,
	ColCategory, ColRating, ColNumReviews, ColIsPaid, ColURL,
}

// MetadataColumns are the columns of a processed metadata file.
var MetadataColumns = append(append([]string{}, RawColumns...), ColSemanticText)

// Row is one metadata line: course attributes plus the text they were embedded from.
type Row struct {
	Attrs        course.Attributes
	SemanticText string
}

// Header maps column names to positions of a CSV header line.
type Header map[string]int

// ParseHeader indexes a header line and checks that every required column is present.
func ParseHeader(record []string, required []string) (Header, error) {
	h := make(Header, len(record))
	for i, name := range record {
		h[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range required {
		if _, ok := h[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return h, nil
}

// Get returns the trimmed value of a column, or "" if the line is short.
func (h Header) Get(record []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ParseAttributes converts one raw line into course attributes.
// Numeric and boolean columns must be well-formed.
func (h Header) ParseAttributes(record []string) (course.Attributes, error) {
	a := course.Attributes{
		Title:      h.Get(record, ColTitle),
		Headline:   h.Get(record, ColHeadline),
		Objectives: h.Get(record, ColObjectives),
		Curriculum: h.Get(record, ColCurriculum),
		Level:      h.Get(record, ColLevel),
		Category:   h.Get(record, ColCategory),
		URL:        h.Get(record, ColURL),
	}

	var err error
	if a.Rating, err = strconv.ParseFloat(h.Get(record, ColRating), 64); err != nil {
		return course.Attributes{}, fmt.Errorf("parse rating: %w", err)
	}
	reviews, err := strconv.ParseFloat(h.Get(record, ColNumReviews), 64)
	if err != nil {
		return course.Attributes{}, fmt.Errorf("parse num_reviews: %w", err)
	}
	if reviews != float64(int(reviews)) {
		return course.Attributes{}, fmt.Errorf("num_reviews must be a whole number, got %v", reviews)
	}
	a.NumReviews = int(reviews)
	if a.IsPaid, err = ParseBool(h.Get(record, ColIsPaid)); err != nil {
		return course.Attributes{}, fmt.Errorf("parse is_paid: %w", err)
	}
	return a, nil
}

// ParseBool accepts the spellings exported by spreadsheet and dataframe tools.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

// ReadMetadata reads a processed metadata CSV. Any malformed line fails the whole read.
func ReadMetadata(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	first, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty metadata file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	h, err := ParseHeader(first, MetadataColumns)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		attrs, err := h.ParseAttributes(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, Row{Attrs: attrs, SemanticText: h.Get(record, ColSemanticText)})
	}
	return rows, nil
}

// WriteMetadata writes rows in the processed metadata layout.
func WriteMetadata(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MetadataColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		a := row.Attrs
		record := []string{
			a.Title, a.Headline, a.Objectives, a.Curriculum, a.Level, a.Category,
			strconv.FormatFloat(a.Rating, 'f', -1, 64),
			strconv.Itoa(a.NumReviews),
			strconv.FormatBool(a.IsPaid),
			a.URL,
			row.SemanticText,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush metadata: %w", err)
	}
	return nil
}
