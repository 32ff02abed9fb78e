// Package constraint extracts explicit hard filters from raw query text.
package constraint

import (
	"maps"
	"slices"
	"strings"
)

// Constraint is a recognized hard filter tag.
type Constraint string

// FreeOnly excludes paid courses from consideration.
const FreeOnly Constraint = "free_only"

// vocabulary maps exact lower-case tokens to constraints.
// Matching is exact: no stemming, synonyms or negation ("not free" still triggers FreeOnly).
var vocabulary = map[string]Constraint{
	"free": FreeOnly,
}

// Set is a set of constraints extracted from one query.
type Set map[Constraint]struct{}

// Extract splits the query on whitespace, lower-cases each token and matches it against the vocabulary.
func Extract(query string) Set {
	set := Set{}
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if c, ok := vocabulary[tok]; ok {
			set[c] = struct{}{}
		}
	}
	return set
}

// Has reports whether c is in the set.
func (s Set) Has(c Constraint) bool {
	_, ok := s[c]
	return ok
}

// Names returns the sorted constraint names for logging.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for _, c := range slices.Sorted(maps.Keys(s)) {
		names = append(names, string(c))
	}
	return names
}
