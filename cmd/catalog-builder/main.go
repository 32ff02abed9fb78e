// Command catalog-builder embeds a raw course export into the catalog files
// served by courserank.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/courserank/internal/builder"
	"github.com/kailas-cloud/courserank/internal/config"
	logpkg "github.com/kailas-cloud/courserank/internal/logger"
	openaiEmb "github.com/kailas-cloud/courserank/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/courserank/internal/usecase/embedding"
	"github.com/kailas-cloud/courserank/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "catalog-builder:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "catalog-builder",
		Usage:   "Build course metadata and embeddings from a raw export",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Config environment (reads config/<env>.yaml)",
				Value:   "local",
				EnvVars: []string{"ENV"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Explicit config file path (overrides --env lookup)",
				EnvVars: []string{"COURSERANK_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Raw course export CSV",
				Value:   "data/udemy_courses.csv",
				EnvVars: []string{"COURSERANK_RAW_CSV"},
			},
			&cli.StringFlag{
				Name:  "metadata",
				Usage: "Output metadata CSV (default: catalog.metadata_path from config)",
			},
			&cli.StringFlag{
				Name:  "embeddings",
				Usage: "Output embeddings Parquet file (default: catalog.embeddings_path from config)",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Texts per embedding request (default: embedding.batch_size from config)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent embedding requests",
				Value: builder.DefaultWorkers,
			},
			&cli.Uint64Flag{
				Name:  "max-retries",
				Usage: "Retries per failed batch",
				Value: builder.DefaultMaxRetries,
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Initial backoff between retries",
				Value: builder.DefaultRetryInitial,
			},
		},
		Action: build,
	}
}

func build(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := logpkg.NewLogger(c.String("env"), logLevel(c, cfg))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	paths := builder.Paths{
		Raw:        c.String("input"),
		Metadata:   orDefault(c.String("metadata"), cfg.Catalog.MetadataPath),
		Embeddings: orDefault(c.String("embeddings"), cfg.Catalog.EmbeddingsPath),
	}
	batchSize := c.Int("batch-size")
	if batchSize <= 0 {
		batchSize = cfg.Embedding.BatchSize
	}

	logger.Info("Starting catalog build",
		zap.String("version", version.String()),
		zap.String("input", paths.Raw),
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("batch_size", batchSize),
	)

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	embedder := embeddinguc.NewInstrumentedEmbedder(
		base, cfg.Embedding.Provider, cfg.Embedding.Model, nil, logger,
	).WithMaxBatch(batchSize)

	b := builder.New(embedder, builder.Config{
		BatchSize:    batchSize,
		Workers:      c.Int("workers"),
		MaxRetries:   c.Uint64("max-retries"),
		RetryInitial: c.Duration("retry-delay"),
	}, logger)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := b.Run(ctx, paths)
	if err != nil {
		logger.Error("Catalog build failed", zap.Error(err))
		return err
	}
	logger.Info("Catalog build finished",
		zap.Int("read", rep.Read),
		zap.Int("dropped", rep.Dropped),
		zap.Int("embedded", rep.Embedded),
		zap.Int("dim", rep.Dim),
		zap.Int("tokens", rep.Tokens),
		zap.Duration("duration", rep.Duration),
	)
	return nil
}

func loadConfig(c *cli.Context) (config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load(c.String("env"))
}

func logLevel(c *cli.Context, cfg config.Config) string {
	if lvl := c.String("log-level"); lvl != "" {
		return lvl
	}
	return cfg.Logging.Level
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
