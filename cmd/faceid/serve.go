package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"github.com/hupe1980/faceid"
	"github.com/hupe1980/faceid/archive"
	"github.com/hupe1980/faceid/codec"
	"github.com/hupe1980/faceid/embedding"
	"github.com/hupe1980/faceid/index"
	"github.com/hupe1980/faceid/index/exhaustive"
	"github.com/hupe1980/faceid/index/flatl2"
	"github.com/hupe1980/faceid/internal/server"
	"github.com/hupe1980/faceid/profile"
	"github.com/hupe1980/faceid/store"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		indexName  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the identity HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if indexName != "" {
				cfg.Index = indexName
			}

			return runServe(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&indexName, "index", "", "search strategy: exhaustive or flatl2 (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, cfg Config) error {
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	extractor, err := embedding.NewHTTPExtractor(cfg.Extractor.Endpoint, func(o *embedding.HTTPExtractorOptions) {
		if cfg.Extractor.Model != "" {
			o.ModelName = cfg.Extractor.Model
		}
		o.Dimension = cfg.Extractor.Dimension
	})
	if err != nil {
		return err
	}

	opts, err := serviceOptions(cfg, logger)
	if err != nil {
		return err
	}

	svc, err := faceid.New(extractor, opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	handler := server.New(svc, func(o *server.Options) {
		o.Logger = logger
		if cfg.Server.RateLimit > 0 {
			o.RateLimit = cfg.Server.RateLimit
		}
		if cfg.Server.RateBurst > 0 {
			o.RateBurst = cfg.Server.RateBurst
		}
		if cfg.Server.MaxConcurrentExtractions > 0 {
			o.MaxConcurrentExtractions = cfg.Server.MaxConcurrentExtractions
		}
		if cfg.Server.MaxUploadBytes > 0 {
			o.MaxUploadBytes = cfg.Server.MaxUploadBytes
		}
		if cfg.Server.SpoolDir != "" {
			o.SpoolDir = cfg.Server.SpoolDir
		}
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.InfoContext(ctx, "serving",
		"addr", cfg.Addr,
		"index", cfg.Index,
		"entries", svc.Count(),
	)

	return server.Run(ctx, cfg.Addr, handler)
}

func serviceOptions(cfg Config, logger *faceid.Logger) ([]faceid.Option, error) {
	idx, err := newIndex(cfg.Index)
	if err != nil {
		return nil, err
	}

	c, ok := codec.ByName(cfg.Codec)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", cfg.Codec)
	}

	compression := store.Compression(cfg.Compression)
	switch compression {
	case store.CompressionNone, store.CompressionZstd, store.CompressionLZ4:
	default:
		return nil, fmt.Errorf("unknown compression %q", cfg.Compression)
	}

	opts := []faceid.Option{
		faceid.WithIndex(idx),
		faceid.WithCodec(c),
		faceid.WithCompression(compression),
		faceid.WithSnapshotPath(cfg.SnapshotPath),
		faceid.WithDefaultK(cfg.DefaultK),
		faceid.WithLogger(logger),
		faceid.WithMetricsCollector(&faceid.BasicMetricsCollector{}),
	}

	if cfg.Index == "flatl2" && cfg.IndexSnapshotPath != "" {
		opts = append(opts, faceid.WithIndexSnapshotPath(cfg.IndexSnapshotPath))
	}

	if cfg.Directory.Endpoint != "" {
		opts = append(opts, faceid.WithEnricher(
			profile.NewHTTPEnricher(cfg.Directory.Endpoint, cfg.Directory.DeviceID),
		))
	}

	archiver, err := newArchiver(cfg.Archive)
	if err != nil {
		return nil, err
	}
	if archiver != nil {
		opts = append(opts, faceid.WithArchiver(archiver))
	}

	return opts, nil
}

func newIndex(name string) (index.Index, error) {
	switch name {
	case "exhaustive", "":
		return exhaustive.New(), nil
	case "flatl2":
		return flatl2.New(), nil
	default:
		return nil, fmt.Errorf("unknown index strategy %q", name)
	}
}

func newArchiver(cfg ArchiveConfig) (archive.Archiver, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "dir":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("archive type dir needs a dir")
		}
		return archive.NewDir(cfg.Dir), nil
	case "minio":
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return archive.NewMinIO(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown archive type %q", cfg.Type)
	}
}

func newLogger(cfg LogConfig) (*faceid.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return faceid.NewJSONLogger(level), nil
	case "text", "":
		return faceid.NewTextLogger(level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}
