package faceid

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/hupe1980/faceid/archive"
	"github.com/hupe1980/faceid/embedding"
	"github.com/hupe1980/faceid/index"
	"github.com/hupe1980/faceid/index/exhaustive"
	"github.com/hupe1980/faceid/index/flatl2"
	"github.com/hupe1980/faceid/persistence"
	"github.com/hupe1980/faceid/profile"
	"github.com/hupe1980/faceid/store"
)

// Identity is an enrolled identity without its vector.
type Identity struct {
	ID         string            `json:"id"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Match is a single ranked identification hit.
type Match struct {
	ID         string            `json:"id"`
	Score      float32           `json:"score"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// IdentifyResult is the outcome of one identification.
type IdentifyResult struct {
	Matches      []Match       `json:"matches"`
	TotalMatches int           `json:"total_matches"`
	TotalEntries int           `json:"total_entries"`
	TimeTaken    time.Duration `json:"time_taken"`
}

// indexSnapshotter is implemented by indexes that persist (flatl2).
type indexSnapshotter interface {
	SaveToFile(filename string, storeVersion uint64) error
	ReadFrom(r io.Reader, expectStoreVersion uint64) error
}

// Service is the biometric identity service: it enrolls face embeddings and
// answers top-k similarity queries over them.
//
// # Consistency
//
// A single RWMutex coordinates the record store and the similarity index.
// Mutations take the write lock, apply to the store first (the durable
// source of truth), then to the index; an index that cannot apply the change
// in place is rebuilt from the store under the same lock, so readers never
// observe the two components disagreeing.
type Service struct {
	mu sync.RWMutex

	store     *store.Store
	index     index.Index
	extractor embedding.Extractor

	snapshotPath      string
	indexSnapshotPath string
	defaultK          int

	enricher profile.Enricher
	archiver archive.Archiver

	metrics MetricsCollector
	logger  *Logger

	wg sync.WaitGroup
}

// New creates a Service around the given embedding extractor.
//
// When WithSnapshotPath points at an existing snapshot the records are
// loaded and the index is rebuilt (or, for flatl2 with
// WithIndexSnapshotPath, reloaded when its snapshot matches the store
// version).
func New(extractor embedding.Extractor, optFns ...Option) (*Service, error) {
	opts := options{
		index:            exhaustive.New(),
		compression:      store.CompressionZstd,
		defaultK:         DefaultK,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	st, err := store.Open(func(o *store.Options) {
		o.Path = opts.snapshotPath
		if opts.codec != nil {
			o.Codec = opts.codec
		}
		o.Compression = opts.compression
	})
	if err != nil {
		return nil, err
	}

	if d := st.Dimension(); d > 0 && d != extractor.Dimension() {
		return nil, &ErrDimensionMismatch{Expected: extractor.Dimension(), Actual: d}
	}

	s := &Service{
		store:             st,
		index:             opts.index,
		extractor:         extractor,
		snapshotPath:      opts.snapshotPath,
		indexSnapshotPath: opts.indexSnapshotPath,
		defaultK:          opts.defaultK,
		enricher:          opts.enricher,
		archiver:          opts.archiver,
		metrics:           opts.metricsCollector,
		logger:            opts.logger,
	}

	if err := s.initIndex(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// initIndex restores the index from its snapshot when possible, otherwise
// rebuilds it from the records.
func (s *Service) initIndex(ctx context.Context) error {
	if snap, ok := s.index.(indexSnapshotter); ok && s.indexSnapshotPath != "" {
		err := persistence.LoadFromFile(s.indexSnapshotPath, func(r io.Reader) error {
			return snap.ReadFrom(r, s.store.Version())
		})
		if err == nil {
			s.logger.InfoContext(ctx, "index snapshot loaded",
				"filename", s.indexSnapshotPath,
				"entries", s.index.Len(),
			)
			return nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.WarnContext(ctx, "index snapshot unusable, rebuilding",
				"filename", s.indexSnapshotPath,
				"error", err,
			)
		}
	}

	return s.rebuildLocked(ctx)
}

// rebuildLocked rebuilds the index from store contents. Callers must hold
// the write lock (or be the constructor).
func (s *Service) rebuildLocked(ctx context.Context) error {
	started := time.Now()

	records := s.store.All()
	entries := make([]index.Entry, len(records))
	for i, rec := range records {
		entries[i] = index.Entry{ID: rec.ID, Vector: rec.Vector}
	}

	err := s.index.Build(ctx, entries)
	s.metrics.RecordRebuild(len(entries), time.Since(started), err)
	s.logger.LogRebuild(ctx, len(entries), err)
	if err != nil {
		return translateError(err)
	}

	return nil
}

// Register enrolls (or re-enrolls) an identity from a face image.
//
// The embedding is extracted and the directory consulted before any lock is
// taken; only the store and index mutation is serialized. Directory and
// archive failures never fail the registration.
func (s *Service) Register(ctx context.Context, identityID string, image []byte) (*Identity, error) {
	started := time.Now()

	identity, err := s.register(ctx, identityID, image)

	s.metrics.RecordRegister(time.Since(started), err)
	s.logger.LogRegister(ctx, identityID, identity != nil && !identity.CreatedAt.Equal(identity.UpdatedAt), err)

	return identity, err
}

func (s *Service) register(ctx context.Context, identityID string, image []byte) (*Identity, error) {
	if identityID == "" {
		return nil, ErrEmptyIdentityID
	}

	vector, err := s.extract(ctx, image)
	if err != nil {
		return nil, err
	}

	attrs := s.enrich(ctx, identityID)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.getLocked(identityID)

	rec, err := s.store.Upsert(identityID, vector, attrs)
	if err != nil {
		return nil, translateError(err)
	}

	if existed {
		err = s.index.Replace(ctx, identityID, vector)
	} else {
		err = s.index.Add(ctx, identityID, vector)
	}
	if err != nil {
		// The store already holds the new record; restore agreement by
		// rebuilding the index from it.
		if rebuildErr := s.rebuildLocked(ctx); rebuildErr != nil {
			return nil, rebuildErr
		}
	}

	s.persistIndexLocked(ctx)
	s.archiveSnapshot(ctx)

	return &Identity{
		ID:         rec.ID,
		Attributes: rec.Attributes,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}, nil
}

// Identify ranks enrolled identities against a probe face image.
//
// k <= 0 selects the configured default. Matches come back sorted by
// descending score with each identity appearing at most once.
func (s *Service) Identify(ctx context.Context, image []byte, k int) (*IdentifyResult, error) {
	started := time.Now()

	if k <= 0 {
		k = s.defaultK
	}

	result, err := s.identify(ctx, image, k)

	s.metrics.RecordIdentify(k, time.Since(started), err)
	matches := 0
	if result != nil {
		matches = result.TotalMatches
		result.TimeTaken = time.Since(started)
	}
	s.logger.LogIdentify(ctx, k, matches, err)

	return result, err
}

func (s *Service) identify(ctx context.Context, image []byte, k int) (*IdentifyResult, error) {
	vector, err := s.extract(ctx, image)
	if err != nil {
		return nil, err
	}

	if err := s.repairIndex(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.store.Count()
	if total == 0 {
		return nil, ErrEmptyDatabase
	}

	hits, err := s.index.Search(ctx, vector, k)
	if err != nil {
		return nil, translateError(err)
	}

	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		match := Match{ID: hit.ID, Score: hit.Score}
		if rec, ok := s.getLocked(hit.ID); ok {
			match.Attributes = rec.Attributes
		}
		matches = append(matches, match)
	}

	return &IdentifyResult{
		Matches:      matches,
		TotalMatches: len(matches),
		TotalEntries: total,
	}, nil
}

// Identities returns all enrolled identities, without vectors, in
// enrollment order.
func (s *Service) Identities(ctx context.Context) ([]Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.store.All()
	identities := make([]Identity, len(records))
	for i, rec := range records {
		identities[i] = Identity{
			ID:         rec.ID,
			Attributes: rec.Attributes,
			CreatedAt:  rec.CreatedAt,
			UpdatedAt:  rec.UpdatedAt,
		}
	}

	return identities, nil
}

// Count returns the number of enrolled identities.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.store.Count()
}

// Healthy reports whether the service accepts mutations. It turns false
// after a snapshot persistence failure and true again after Reload.
func (s *Service) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.store.Healthy()
}

// Reload discards in-memory state, reloads the last durable snapshot and
// rebuilds the index. It clears the health latch.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Reload(); err != nil {
		return translateError(err)
	}

	return s.rebuildLocked(ctx)
}

// Close waits for background archive uploads to finish.
func (s *Service) Close() error {
	s.wg.Wait()
	return nil
}

func (s *Service) extract(ctx context.Context, image []byte) ([]float32, error) {
	started := time.Now()

	vector, err := s.extractor.Extract(ctx, image)
	s.metrics.RecordExtract(time.Since(started), err)
	if err != nil {
		return nil, translateError(err)
	}

	if len(vector) != s.extractor.Dimension() {
		return nil, &ErrDimensionMismatch{Expected: s.extractor.Dimension(), Actual: len(vector)}
	}

	return vector, nil
}

func (s *Service) enrich(ctx context.Context, identityID string) map[string]string {
	if s.enricher == nil {
		return nil
	}

	attrs, err := s.enricher.Lookup(ctx, identityID)
	s.logger.LogEnrich(ctx, identityID, len(attrs), err)
	if err != nil {
		return nil
	}

	return attrs
}

// repairIndex restores store/index agreement before a search. The index is
// a cache over the store; when their entry counts diverge (a lost update, a
// failed rebuild) the index is rebuilt from the store rather than serving
// results missing enrolled identities.
func (s *Service) repairIndex(ctx context.Context) error {
	s.mu.RLock()
	diverged := s.index.Len() != s.store.Count()
	s.mu.RUnlock()

	if !diverged {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check: a concurrent repair may have won.
	if s.index.Len() == s.store.Count() {
		return nil
	}

	return s.rebuildLocked(ctx)
}

func (s *Service) getLocked(id string) (*store.Record, bool) {
	rec, err := s.store.Get(id)
	if err != nil {
		return nil, false
	}
	return rec, true
}

// persistIndexLocked saves the index snapshot when the index supports it.
// The snapshot is a cache keyed to the store version; a failed save only
// costs a rebuild on the next start.
func (s *Service) persistIndexLocked(ctx context.Context) {
	snap, ok := s.index.(indexSnapshotter)
	if !ok || s.indexSnapshotPath == "" {
		return
	}

	started := time.Now()
	err := snap.SaveToFile(s.indexSnapshotPath, s.store.Version())
	s.metrics.RecordSnapshot(time.Since(started), err)
	s.logger.LogSnapshot(ctx, s.indexSnapshotPath, err)
}

// archiveSnapshot uploads the current record snapshot in the background.
func (s *Service) archiveSnapshot(ctx context.Context) {
	if s.archiver == nil || s.snapshotPath == "" {
		return
	}

	name := "snapshots/records.bin"
	path := s.snapshotPath
	bg := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.archiver.PutFile(bg, name, path)
		s.logger.LogArchive(bg, name, err)
	}()
}

// compile-time checks
var _ indexSnapshotter = (*flatl2.Flat)(nil)
