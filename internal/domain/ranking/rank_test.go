package ranking

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/kailas-cloud/courserank/internal/domain"
	"github.com/kailas-cloud/courserank/internal/domain/constraint"
	"github.com/kailas-cloud/courserank/internal/domain/course"
)

// --- Helpers ---

type fixture struct {
	title   string
	rating  float64
	reviews int
	paid    bool
	vec     []float32
}

func angle(theta float64) []float32 {
	return []float32{float32(math.Cos(theta)), float32(math.Sin(theta))}
}

func buildCatalog(t *testing.T, fixtures []fixture) *course.Catalog {
	t.Helper()
	records := make([]course.Record, len(fixtures))
	for i, s := range fixtures {
		r, err := course.New(i, course.Attributes{
			Title:      s.title,
			URL:        "https://example.com/" + s.title,
			Rating:     s.rating,
			NumReviews: s.reviews,
			IsPaid:     s.paid,
		}, s.title, s.vec)
		if err != nil {
			t.Fatalf("course.New(%q): %v", s.title, err)
		}
		records[i] = r
	}
	cat, err := course.NewCatalog(records)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return cat
}

func titles(cat *course.Catalog, cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = cat.At(c.Index).Title()
	}
	return out
}

func randomCatalog(t *testing.T, n int, seed int64) (*course.Catalog, []float32) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	randUnit := func() []float32 {
		v := make([]float32, 8)
		for i := range v {
			v[i] = float32(rng.NormFloat64())
		}
		u, err := domain.Normalize(v)
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		return u
	}
	fixtures := make([]fixture, n)
	for i := range fixtures {
		fixtures[i] = fixture{
			title:   fmt.Sprintf("course-%d", i),
			rating:  math.Round(rng.Float64()*50) / 10,
			reviews: rng.Intn(100000),
			paid:    rng.Intn(2) == 0,
			vec:     randUnit(),
		}
	}
	return buildCatalog(t, fixtures), randUnit()
}

// --- Tests ---

func TestSimilarity_SelfIsOne(t *testing.T) {
	cat, _ := randomCatalog(t, 20, 1)
	for i := range cat.Len() {
		e := cat.At(i).Embedding()
		if got := Similarity(e, e); math.Abs(got-1) > 1e-5 {
			t.Errorf("record %d: self similarity = %v, want 1", i, got)
		}
	}
}

func TestSimilarity_Orthogonal(t *testing.T) {
	if got := Similarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := Similarity([]float32{1, 0}, []float32{-1, 0}); got != -1 {
		t.Errorf("expected -1, got %v", got)
	}
}

func TestRank_BalancedExactMatchFirst(t *testing.T) {
	a := []float32{1, 0}
	cat := buildCatalog(t, []fixture{
		{title: "Python Basics", rating: 4.5, reviews: 1000, vec: a},
		{title: "Advanced Python", rating: 4.8, reviews: 50, paid: true, vec: []float32{0, 1}},
	})

	got := Rank(cat, a, constraint.Set{}, BalancedPreset())
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if cat.At(got[0].Index).Title() != "Python Basics" {
		t.Errorf("expected Python Basics first, got %v", titles(cat, got))
	}
	want := 0.60*1 + 0.25*0.9 + 0.15*math.Log(1001)
	if math.Abs(got[0].Final-want) > 1e-6 {
		t.Errorf("final = %v, want %v", got[0].Final, want)
	}
}

func TestRank_HigherSimilarityWinsAllElseEqual(t *testing.T) {
	q := angle(0)
	cat := buildCatalog(t, []fixture{
		{title: "far", rating: 4, reviews: 100, vec: angle(1.0)},
		{title: "exact", rating: 4, reviews: 100, vec: angle(0)},
		{title: "near", rating: 4, reviews: 100, vec: angle(0.3)},
	})

	for _, p := range []Preset{BalancedPreset(), RelevanceFirstPreset()} {
		t.Run(string(p.Name()), func(t *testing.T) {
			got := titles(cat, Rank(cat, q, constraint.Set{}, p))
			want := []string{"exact", "near", "far"}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestRank_FreeOnlyExcludesPaid(t *testing.T) {
	q := angle(0)
	cat := buildCatalog(t, []fixture{
		{title: "Beginner Python (paid)", rating: 4.7, reviews: 5000, paid: true, vec: angle(0.01)},
		{title: "Beginner Python (free)", rating: 4.2, reviews: 800, vec: angle(0.02)},
		{title: "Cooking", rating: 4.9, reviews: 20000, paid: true, vec: angle(1.4)},
	})
	cs := constraint.Extract("free beginner python")

	for _, p := range []Preset{BalancedPreset(), RelevanceFirstPreset()} {
		t.Run(string(p.Name()), func(t *testing.T) {
			got := Rank(cat, q, cs, p)
			if len(got) != 1 {
				t.Fatalf("expected only the free course, got %v", titles(cat, got))
			}
			if cat.At(got[0].Index).IsPaid() {
				t.Error("returned a paid course under FreeOnly")
			}
		})
	}
}

func TestRank_FreeOnlyRandomCatalog(t *testing.T) {
	cat, q := randomCatalog(t, 200, 7)
	cs := constraint.Extract("free data science")
	for _, p := range []Preset{BalancedPreset(), RelevanceFirstPreset()} {
		for _, c := range Rank(cat, q, cs, p) {
			if cat.At(c.Index).IsPaid() {
				t.Fatalf("%s: paid course %d returned under FreeOnly", p.Name(), c.Index)
			}
		}
	}
}

func TestRank_LengthBounds(t *testing.T) {
	tests := []struct {
		name string
		size int
		want int
	}{
		{"empty catalog", 0, 0},
		{"smaller than limit", 3, 3},
		{"exactly limit", 6, 6},
		{"larger than limit", 120, 6},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cat, q := randomCatalog(t, tc.size, int64(tc.size)+11)
			for _, p := range []Preset{BalancedPreset(), RelevanceFirstPreset()} {
				got := Rank(cat, q, constraint.Set{}, p)
				if len(got) != tc.want {
					t.Errorf("%s: expected %d results, got %d", p.Name(), tc.want, len(got))
				}
			}
		})
	}
}

func TestRank_AllPaidWithFreeOnlyIsEmpty(t *testing.T) {
	cat := buildCatalog(t, []fixture{
		{title: "a", rating: 4, reviews: 1, paid: true, vec: angle(0)},
		{title: "b", rating: 4, reviews: 1, paid: true, vec: angle(0.1)},
	})
	got := Rank(cat, angle(0), constraint.Extract("free"), BalancedPreset())
	if len(got) != 0 {
		t.Errorf("expected no results, got %v", titles(cat, got))
	}
}

func TestRank_SortedAndNoBetterExcludedItem(t *testing.T) {
	cat, q := randomCatalog(t, 300, 42)
	p := BalancedPreset()
	got := Rank(cat, q, constraint.Set{}, p)

	for i := 1; i < len(got); i++ {
		if got[i].Final > got[i-1].Final {
			t.Fatalf("not sorted at %d: %v > %v", i, got[i].Final, got[i-1].Final)
		}
	}

	returned := make(map[int]bool, len(got))
	for _, c := range got {
		returned[c.Index] = true
	}
	lowest := got[len(got)-1].Final
	for i := range cat.Len() {
		if returned[i] {
			continue
		}
		sim := Similarity(cat.At(i).Embedding(), q)
		if f := p.Combine(sim, cat.Quality(i)); f > lowest {
			t.Fatalf("excluded course %d has final %v above returned minimum %v", i, f, lowest)
		}
	}
}

func TestRank_RelevanceFirstShortlistBlocksPopularMismatch(t *testing.T) {
	q := angle(0)
	fixtures := make([]fixture, 0, 56)
	for i := range 55 {
		fixtures = append(fixtures, fixture{
			title: fmt.Sprintf("relevant-%d", i), rating: 4.0, reviews: 10,
			vec: angle(0.001 * float64(i+1)),
		})
	}
	fixtures = append(fixtures, fixture{
		title: "viral", rating: 5.0, reviews: 1_000_000, vec: angle(math.Pi / 2),
	})
	cat := buildCatalog(t, fixtures)

	balanced := titles(cat, Rank(cat, q, constraint.Set{}, BalancedPreset()))
	if balanced[0] != "viral" {
		t.Fatalf("expected balanced preset to be dominated by popularity, got %v", balanced)
	}

	rf := Rank(cat, q, constraint.Set{}, RelevanceFirstPreset())
	for _, title := range titles(cat, rf) {
		if title == "viral" {
			t.Fatalf("relevance_first returned the popular off-topic course: %v", titles(cat, rf))
		}
	}
	want := []string{"relevant-0", "relevant-1", "relevant-2", "relevant-3", "relevant-4", "relevant-5"}
	if got := titles(cat, rf); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRank_TiesKeepCatalogOrder(t *testing.T) {
	v := angle(0.2)
	fixtures := make([]fixture, 60)
	for i := range fixtures {
		fixtures[i] = fixture{title: fmt.Sprintf("twin-%02d", i), rating: 4, reviews: 10, vec: v}
	}
	cat := buildCatalog(t, fixtures)

	for _, p := range []Preset{BalancedPreset(), RelevanceFirstPreset()} {
		got := Rank(cat, angle(0), constraint.Set{}, p)
		for i, c := range got {
			if c.Index != i {
				t.Fatalf("%s: expected catalog order, got index %d at position %d", p.Name(), c.Index, i)
			}
		}
	}
}

func TestRank_Idempotent(t *testing.T) {
	cat, q := randomCatalog(t, 150, 99)
	for _, p := range []Preset{BalancedPreset(), RelevanceFirstPreset()} {
		first := Rank(cat, q, constraint.Set{}, p)
		second := Rank(cat, q, constraint.Set{}, p)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("%s: results differ between identical calls", p.Name())
		}
	}
}

func TestLookup(t *testing.T) {
	p, err := Lookup(Balanced)
	if err != nil || p.Name() != Balanced {
		t.Fatalf("Lookup(balanced) = %v, %v", p.Name(), err)
	}
	p, err = Lookup(RelevanceFirst)
	if err != nil || p.Shortlist() != DefaultShortlist || p.Limit() != DefaultLimit {
		t.Fatalf("Lookup(relevance_first) = %+v, %v", p, err)
	}
	if _, err := Lookup("popular"); !errors.Is(err, domain.ErrInvalidPreset) {
		t.Errorf("expected ErrInvalidPreset, got %v", err)
	}
}

func TestPresetWeights(t *testing.T) {
	b := BalancedPreset().Weights()
	if b != (Weights{Similarity: 0.60, Rating: 0.25, Reviews: 0.15}) {
		t.Errorf("balanced weights = %+v", b)
	}
	r := RelevanceFirstPreset().Weights()
	if r != (Weights{Similarity: 0.90, Rating: 0.05, Reviews: 0.05}) {
		t.Errorf("relevance_first weights = %+v", r)
	}
	if BalancedPreset().Shortlist() != 0 {
		t.Error("balanced preset must not shortlist")
	}
}

func TestPresetName_IsValid(t *testing.T) {
	for _, n := range []PresetName{Balanced, RelevanceFirst} {
		if !n.IsValid() {
			t.Errorf("%q.IsValid() = false", n)
		}
	}
	for _, n := range []PresetName{"", "BALANCED", "relevance-first"} {
		if n.IsValid() {
			t.Errorf("%q.IsValid() = true", n)
		}
	}
}
