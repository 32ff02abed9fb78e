// Package builder turns a raw course export into the catalog files served by courserank:
// a metadata CSV and a row-aligned Parquet embeddings matrix.
package builder

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/courserank/internal/catalog"
	"github.com/kailas-cloud/courserank/internal/domain"
	"github.com/kailas-cloud/courserank/internal/domain/course"
)

// Defaults for Config.
const (
	DefaultBatchSize    = 64
	DefaultWorkers      = 4
	DefaultMaxRetries   = 3
	DefaultRetryInitial = 500 * time.Millisecond
)

// Config controls batching and retries of the embedding stage.
type Config struct {
	BatchSize        int
	Workers          int
	MaxRetries       uint64
	RetryInitial     time.Duration
	MaxSemanticChars int
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = DefaultRetryInitial
	}
	if c.MaxSemanticChars <= 0 {
		c.MaxSemanticChars = course.MaxSemanticChars
	}
}

// Paths locates the raw input and the two catalog outputs.
type Paths struct {
	Raw        string
	Metadata   string
	Embeddings string
}

// Report summarizes a build.
type Report struct {
	Read     int
	Dropped  int
	Embedded int
	Dim      int
	Tokens   int
	Duration time.Duration
}

// Builder runs the offline catalog build.
type Builder struct {
	embedder *domain.NormalizingEmbedder
	cfg      Config
	logger   *zap.Logger
}

// New creates a Builder. Vectors from embedder are normalized before they are stored.
func New(embedder domain.Embedder, cfg Config, logger *zap.Logger) *Builder {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		embedder: domain.NewNormalizingEmbedder(embedder),
		cfg:      cfg,
		logger:   logger,
	}
}

// Run reads the raw export, embeds every valid row and writes both catalog files.
func (b *Builder) Run(ctx context.Context, p Paths) (Report, error) {
	start := time.Now()

	f, err := os.Open(p.Raw)
	if err != nil {
		return Report{}, fmt.Errorf("open raw export: %w", err)
	}
	defer f.Close()

	rows, read, err := b.Prepare(f)
	if err != nil {
		return Report{}, err
	}
	b.logger.Info("semantic text prepared",
		zap.Int("read", read),
		zap.Int("kept", len(rows)),
		zap.Int("dropped", read-len(rows)),
	)
	if len(rows) == 0 {
		return Report{}, errors.New("no valid rows in raw export")
	}

	texts := make([]string, len(rows))
	for i, r := range rows {
		texts[i] = r.SemanticText
	}
	vectors, tokens, err := b.Embed(ctx, texts)
	if err != nil {
		return Report{}, err
	}

	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	if err := writeCatalog(p, rows, vectors); err != nil {
		return Report{}, err
	}

	rep := Report{
		Read:     read,
		Dropped:  read - len(rows),
		Embedded: len(vectors),
		Dim:      len(vectors[0]),
		Tokens:   tokens,
		Duration: time.Since(start),
	}
	b.logger.Info("catalog written",
		zap.String("metadata", p.Metadata),
		zap.String("embeddings", p.Embeddings),
		zap.Int("courses", rep.Embedded),
		zap.Int("dim", rep.Dim),
		zap.Int("tokens", rep.Tokens),
		zap.Duration("duration", rep.Duration),
	)
	return rep, nil
}

// Prepare parses the raw export and builds the semantic text of each row.
// Rows with a blank title or url, or malformed numeric fields, are dropped and logged.
// It returns the surviving rows and the number of data lines read.
func (b *Builder) Prepare(r io.Reader) ([]catalog.Row, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	first, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, errors.New("empty raw export")
		}
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	h, err := catalog.ParseHeader(first, catalog.RawColumns)
	if err != nil {
		return nil, 0, fmt.Errorf("raw export: %w", err)
	}

	var (
		rows []catalog.Row
		read int
	)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		read++
		if err != nil {
			b.drop(line, err)
			continue
		}
		attrs, err := h.ParseAttributes(record)
		if err != nil {
			b.drop(line, err)
			continue
		}
		text := course.SemanticText(attrs, b.cfg.MaxSemanticChars)
		if _, err := course.New(len(rows), attrs, text, nil); err != nil {
			b.drop(line, err)
			continue
		}
		rows = append(rows, catalog.Row{Attrs: attrs, SemanticText: text})
	}
	return rows, read, nil
}

func (b *Builder) drop(line int, err error) {
	b.logger.Warn("row dropped", zap.Int("line", line), zap.Error(err))
}

// Embed encodes texts in batches on a worker pool. Vectors keep the order of texts.
// The first batch that fails after retries cancels the rest.
func (b *Builder) Embed(ctx context.Context, texts []string) ([][]float32, int, error) {
	pool, err := ants.NewPool(b.cfg.Workers)
	if err != nil {
		return nil, 0, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		vectors  = make([][]float32, len(texts))
		tokens   atomic.Int64
		done     atomic.Int64
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	batches := (len(texts) + b.cfg.BatchSize - 1) / b.cfg.BatchSize
	b.logger.Info("generating embeddings",
		zap.Int("texts", len(texts)),
		zap.Int("batches", batches),
		zap.Int("workers", b.cfg.Workers),
	)

	for lo := 0; lo < len(texts); lo += b.cfg.BatchSize {
		hi := min(lo+b.cfg.BatchSize, len(texts))
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}
			res, err := b.embedBatch(ctx, texts[lo:hi])
			if err != nil {
				fail(fmt.Errorf("batch [%d:%d]: %w", lo, hi, err))
				return
			}
			copy(vectors[lo:hi], res.Embeddings)
			tokens.Add(int64(res.TotalTokens))
			n := done.Add(1)
			b.logger.Debug("batch embedded", zap.Int64("done", n), zap.Int("batches", batches))
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit batch: %w", submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, 0, firstErr
	}
	for i, v := range vectors {
		if v == nil {
			return nil, 0, fmt.Errorf("text %d was not embedded", i)
		}
	}
	return vectors, int(tokens.Load()), nil
}

// embedBatch retries transient failures with exponential backoff.
// Quota errors are not retried.
func (b *Builder) embedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.cfg.RetryInitial
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, b.cfg.MaxRetries), ctx)

	var res domain.BatchEmbeddingResult
	op := func() error {
		var err error
		res, err = b.embedder.BatchEmbed(ctx, texts)
		if errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		b.logger.Warn("embedding batch failed, retrying",
			zap.Int("size", len(texts)),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return res, nil
}

// writeCatalog writes both files next to their targets and renames them into place
// only after both writes succeeded, so a failed build keeps the previous catalog.
func writeCatalog(p Paths, rows []catalog.Row, vectors [][]float32) error {
	metaTmp, err := tempFile(p.Metadata)
	if err != nil {
		return err
	}
	defer os.Remove(metaTmp)
	embTmp, err := tempFile(p.Embeddings)
	if err != nil {
		return err
	}
	defer os.Remove(embTmp)

	if err := writeMetadataFile(metaTmp, rows); err != nil {
		return err
	}
	if err := catalog.WriteEmbeddings(embTmp, vectors); err != nil {
		return err
	}
	if err := os.Rename(embTmp, p.Embeddings); err != nil {
		return fmt.Errorf("install embeddings: %w", err)
	}
	if err := os.Rename(metaTmp, p.Metadata); err != nil {
		return fmt.Errorf("install metadata: %w", err)
	}
	return nil
}

// tempFile reserves an empty file in the directory of path.
func tempFile(path string) (string, error) {
	if err := ensureDir(path); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return name, nil
}

func writeMetadataFile(path string, rows []catalog.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metadata: %w", err)
	}
	if err := catalog.WriteMetadata(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close metadata: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}
