package faceid

import (
	"github.com/hupe1980/faceid/archive"
	"github.com/hupe1980/faceid/codec"
	"github.com/hupe1980/faceid/index"
	"github.com/hupe1980/faceid/profile"
	"github.com/hupe1980/faceid/store"
)

// DefaultK is the number of matches Identify returns when the caller does
// not ask for a specific count.
const DefaultK = 10

type options struct {
	index             index.Index
	codec             codec.Codec
	compression       store.Compression
	snapshotPath      string
	indexSnapshotPath string
	defaultK          int
	enricher          profile.Enricher
	archiver          archive.Archiver
	metricsCollector  MetricsCollector
	logger            *Logger
}

// Option configures Service constructor behavior.
type Option func(*options)

// WithIndex configures the similarity index strategy. Defaults to the
// exhaustive scan; pass flatl2.New() for the indexed strategy.
func WithIndex(idx index.Index) Option {
	return func(o *options) {
		o.index = idx
	}
}

// WithCodec configures the codec used for record snapshot payloads.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures compression for record snapshot payloads.
func WithCompression(c store.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithSnapshotPath configures the path for record snapshots. When empty the
// service runs in memory only and nothing survives a restart.
func WithSnapshotPath(path string) Option {
	return func(o *options) {
		o.snapshotPath = path
	}
}

// WithIndexSnapshotPath configures the path for index snapshots. Only used
// by indexes that persist (flatl2). The index snapshot is a cache: a stale
// or corrupt file is discarded and the index rebuilt from the records.
func WithIndexSnapshotPath(path string) Option {
	return func(o *options) {
		o.indexSnapshotPath = path
	}
}

// WithDefaultK configures the match count used when Identify is called with
// k <= 0 left to the default. Defaults to DefaultK.
func WithDefaultK(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.defaultK = k
		}
	}
}

// WithEnricher configures a directory enricher consulted at registration
// time. Lookup failures are logged and ignored.
func WithEnricher(e profile.Enricher) Option {
	return func(o *options) {
		o.enricher = e
	}
}

// WithArchiver configures an off-box archiver for record snapshots.
// Uploads run in the background and failures are logged and ignored.
func WithArchiver(a archive.Archiver) Option {
	return func(o *options) {
		o.archiver = a
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(o *options) {
		if collector == nil {
			collector = NoopMetricsCollector{}
		}
		o.metricsCollector = collector
	}
}

// WithLogger configures structured logging. Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}
