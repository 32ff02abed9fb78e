package builder

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/courserank/internal/catalog"
	"github.com/kailas-cloud/courserank/internal/domain"
)

const rawHeader = "title,headline,objectives,curriculum,instructional_level,category,rating,num_reviews,is_paid,url\n"

type fakeEmbedder struct {
	mu        sync.Mutex
	failFirst int32
	failures  atomic.Int32
	err       error
	calls     atomic.Int32
	sizes     []int
	onCall    func()
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: vectorFor(text), TotalTokens: 1}, nil
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.calls.Add(1)
	if f.onCall != nil {
		f.onCall()
	}
	f.mu.Lock()
	f.sizes = append(f.sizes, len(texts))
	f.mu.Unlock()
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	if f.failures.Add(1) <= f.failFirst {
		return domain.BatchEmbeddingResult{}, domain.ErrEmbeddingProviderError
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t)
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

// vectorFor is deterministic and deliberately not unit-norm.
func vectorFor(text string) []float32 {
	return []float32{float32(len(text)), 3, 4}
}

func testConfig() Config {
	return Config{BatchSize: 2, Workers: 3, MaxRetries: 3, RetryInitial: time.Millisecond}
}

func rawLine(title, rating, reviews, paid, url string) string {
	return title + ",head,obj,cur,Beginner,Development," + rating + "," + reviews + "," + paid + "," + url + "\n"
}

func TestPrepare_DropsInvalidRows(t *testing.T) {
	raw := rawHeader +
		rawLine("Go 101", "4.5", "120", "True", "https://x/go") +
		rawLine("", "4.0", "10", "False", "https://x/blank") +
		rawLine("No URL", "4.0", "10", "False", "") +
		rawLine("Bad rating", "excellent", "10", "False", "https://x/r") +
		rawLine("Out of range", "7", "10", "False", "https://x/o") +
		rawLine("Bad paid", "4.0", "10", "maybe", "https://x/p") +
		rawLine("Rust", "3.9", "8.0", "0", "https://x/rust")

	b := New(&fakeEmbedder{}, testConfig(), nil)
	rows, read, err := b.Prepare(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, 7, read)
	require.Len(t, rows, 2)
	assert.Equal(t, "Go 101", rows[0].Attrs.Title)
	assert.True(t, rows[0].Attrs.IsPaid)
	assert.Equal(t, "Go 101 head obj cur Level: Beginner Category: Development", rows[0].SemanticText)
	assert.Equal(t, "Rust", rows[1].Attrs.Title)
	assert.Equal(t, 8, rows[1].Attrs.NumReviews)
	assert.False(t, rows[1].Attrs.IsPaid)
}

func TestPrepare_TruncatesSemanticText(t *testing.T) {
	long := strings.Repeat("é", 40)
	cfg := testConfig()
	cfg.MaxSemanticChars = 10

	b := New(&fakeEmbedder{}, cfg, nil)
	rows, _, err := b.Prepare(strings.NewReader(rawHeader + rawLine(long, "4", "1", "true", "https://x/e")))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, strings.Repeat("é", 10), rows[0].SemanticText)
}

func TestPrepare_HeaderErrors(t *testing.T) {
	b := New(&fakeEmbedder{}, testConfig(), nil)

	_, _, err := b.Prepare(strings.NewReader(""))
	assert.Error(t, err)

	_, _, err = b.Prepare(strings.NewReader("title,url\nA,https://x\n"))
	assert.ErrorContains(t, err, "missing column")
}

func TestEmbed_PreservesOrderAndNormalizes(t *testing.T) {
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	emb := &fakeEmbedder{}
	b := New(emb, testConfig(), nil)

	vectors, tokens, err := b.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	assert.Equal(t, len(texts), tokens)
	assert.Equal(t, int32(3), emb.calls.Load())
	assert.ElementsMatch(t, []int{2, 2, 1}, emb.sizes)

	for i, v := range vectors {
		want, err := domain.Normalize(vectorFor(texts[i]))
		require.NoError(t, err)
		assert.InDeltaSlice(t, want, v, 1e-6, "row %d", i)
		assert.True(t, domain.IsUnitNorm(v))
	}
}

func TestEmbed_RetriesTransientFailures(t *testing.T) {
	emb := &fakeEmbedder{failFirst: 2}
	cfg := testConfig()
	cfg.Workers = 1
	b := New(emb, cfg, nil)

	vectors, _, err := b.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, int32(3), emb.calls.Load())
}

func TestEmbed_GivesUpAfterRetries(t *testing.T) {
	emb := &fakeEmbedder{failFirst: math.MaxInt32}
	cfg := testConfig()
	cfg.Workers = 1
	cfg.MaxRetries = 2
	b := New(emb, cfg, nil)

	_, _, err := b.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEncodingFailure)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProviderError)
	assert.Equal(t, int32(3), emb.calls.Load())
}

func TestEmbed_QuotaIsNotRetried(t *testing.T) {
	emb := &fakeEmbedder{err: domain.ErrEmbeddingQuotaExceeded}
	cfg := testConfig()
	cfg.Workers = 1
	b := New(emb, cfg, nil)

	_, _, err := b.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingQuotaExceeded)
	assert.Equal(t, int32(1), emb.calls.Load())
}

func TestRun_WritesLoadableCatalog(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.csv")
	content := rawHeader +
		rawLine("Go 101", "4.5", "120", "True", "https://x/go") +
		rawLine("", "4.0", "10", "False", "https://x/blank") +
		rawLine("Python Basics", "4.7", "5000", "False", "https://x/py") +
		rawLine("Rust", "3.9", "8", "False", "https://x/rust")
	require.NoError(t, os.WriteFile(raw, []byte(content), 0o600))

	paths := Paths{
		Raw:        raw,
		Metadata:   filepath.Join(dir, "out", "meta.csv"),
		Embeddings: filepath.Join(dir, "out", "emb.parquet"),
	}
	b := New(&fakeEmbedder{}, testConfig(), nil)
	rep, err := b.Run(context.Background(), paths)
	require.NoError(t, err)

	assert.Equal(t, 4, rep.Read)
	assert.Equal(t, 1, rep.Dropped)
	assert.Equal(t, 3, rep.Embedded)
	assert.Equal(t, 3, rep.Dim)

	cat, err := catalog.Load(context.Background(), catalog.Source{
		MetadataPath:   paths.Metadata,
		EmbeddingsPath: paths.Embeddings,
	})
	require.NoError(t, err)
	require.Equal(t, 3, cat.Len())
	assert.Equal(t, "Python Basics", cat.At(1).Title())
	assert.Equal(t, 3, cat.Dim())
}

func TestRun_NoValidRows(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.csv")
	require.NoError(t, os.WriteFile(raw, []byte(rawHeader+rawLine("", "4", "1", "true", "")), 0o600))

	b := New(&fakeEmbedder{}, testConfig(), nil)
	_, err := b.Run(context.Background(), Paths{
		Raw:        raw,
		Metadata:   filepath.Join(dir, "m.csv"),
		Embeddings: filepath.Join(dir, "e.parquet"),
	})
	assert.Error(t, err)
}

func TestRun_MissingInput(t *testing.T) {
	b := New(&fakeEmbedder{}, testConfig(), nil)
	_, err := b.Run(context.Background(), Paths{Raw: filepath.Join(t.TempDir(), "nope.csv")})
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestEmbed_CancelledMidBuild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emb := &fakeEmbedder{}
	var once sync.Once
	emb.onCall = func() { once.Do(cancel) }

	cfg := testConfig()
	cfg.Workers = 1
	cfg.BatchSize = 1
	b := New(emb, cfg, nil)

	vectors, _, err := b.Embed(ctx, []string{"a", "bb", "ccc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, vectors)
	assert.Equal(t, int32(1), emb.calls.Load())
}

func TestEmbed_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emb := &fakeEmbedder{}
	b := New(emb, testConfig(), nil)

	_, _, err := b.Embed(ctx, []string{"a", "bb", "ccc"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, emb.calls.Load())
}

func TestRun_FailureKeepsExistingCatalog(t *testing.T) {
	tests := []struct {
		name   string
		emb    func(cancel context.CancelFunc) *fakeEmbedder
		wantIs error
	}{
		{
			name:   "provider error",
			emb:    func(context.CancelFunc) *fakeEmbedder { return &fakeEmbedder{err: domain.ErrEmbeddingProviderError} },
			wantIs: domain.ErrEmbeddingProviderError,
		},
		{
			name: "cancelled",
			emb: func(cancel context.CancelFunc) *fakeEmbedder {
				var once sync.Once
				return &fakeEmbedder{onCall: func() { once.Do(cancel) }}
			},
			wantIs: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			raw := filepath.Join(dir, "raw.csv")
			content := rawHeader +
				rawLine("Go 101", "4.5", "120", "True", "https://x/go") +
				rawLine("Python Basics", "4.7", "5000", "False", "https://x/py") +
				rawLine("Rust", "3.9", "8", "False", "https://x/rust")
			require.NoError(t, os.WriteFile(raw, []byte(content), 0o600))

			paths := Paths{
				Raw:        raw,
				Metadata:   filepath.Join(dir, "meta.csv"),
				Embeddings: filepath.Join(dir, "emb.parquet"),
			}
			require.NoError(t, os.WriteFile(paths.Metadata, []byte("old metadata"), 0o600))
			require.NoError(t, os.WriteFile(paths.Embeddings, []byte("old embeddings"), 0o600))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			cfg := testConfig()
			cfg.Workers = 1
			cfg.BatchSize = 1
			cfg.MaxRetries = 1
			b := New(tt.emb(cancel), cfg, nil)

			_, err := b.Run(ctx, paths)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)

			meta, err := os.ReadFile(paths.Metadata)
			require.NoError(t, err)
			assert.Equal(t, "old metadata", string(meta))
			emb, err := os.ReadFile(paths.Embeddings)
			require.NoError(t, err)
			assert.Equal(t, "old embeddings", string(emb))

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, 3)
		})
	}
}

func TestRun_ReplacesExistingCatalog(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.csv")
	require.NoError(t, os.WriteFile(raw, []byte(rawHeader+rawLine("Go 101", "4.5", "120", "True", "https://x/go")), 0o600))

	paths := Paths{
		Raw:        raw,
		Metadata:   filepath.Join(dir, "meta.csv"),
		Embeddings: filepath.Join(dir, "emb.parquet"),
	}
	require.NoError(t, os.WriteFile(paths.Metadata, []byte("old metadata"), 0o600))
	require.NoError(t, os.WriteFile(paths.Embeddings, []byte("old embeddings"), 0o600))

	_, err := New(&fakeEmbedder{}, testConfig(), nil).Run(context.Background(), paths)
	require.NoError(t, err)

	cat, err := catalog.Load(context.Background(), catalog.Source{
		MetadataPath:   paths.Metadata,
		EmbeddingsPath: paths.Embeddings,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Len())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
