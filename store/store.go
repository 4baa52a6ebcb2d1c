// Package store provides the vector record store: the durable, authoritative
// mapping from identity record id to (vector, attributes).
//
// The store owns the canonical copy of every enrolled vector. Records are
// kept in insertion order; every mutation durably persists a full snapshot
// before returning (write-ahead: an unsaved mutation is never visible). Any
// similarity index is a derived cache and can always be rebuilt from here.
package store

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/hupe1980/faceid/codec"
)

var (
	// ErrEmptyVector is returned when a record is upserted with no vector.
	ErrEmptyVector = errors.New("empty vector")

	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("record not found")

	// ErrUnhealthy is returned for mutations after a durable write failed.
	// The store refuses further mutations until Reload verifies the on-disk
	// snapshot again.
	ErrUnhealthy = errors.New("store unhealthy: last durable write failed")

	// ErrPersist wraps failures of the durable snapshot write.
	ErrPersist = errors.New("snapshot persist failed")
)

// ErrDimensionMismatch indicates a vector whose length differs from the
// store's fixed dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Record is a stored identity record.
type Record struct {
	ID         string            `json:"id" yaml:"id"`
	Vector     []float32         `json:"vector" yaml:"vector"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" yaml:"updated_at"`
}

// Options contains configuration options for the store.
type Options struct {
	// Path is the snapshot file. Empty means in-memory only (tests).
	Path string

	// Codec marshals the record sequence inside the snapshot container.
	Codec codec.Codec

	// Compression names the snapshot payload compression.
	Compression Compression
}

// DefaultOptions contains the default configuration options for the store.
var DefaultOptions = Options{
	Codec:       codec.Default,
	Compression: CompressionZstd,
}

// Store is the vector record store.
//
// The store serializes its own operations, but cross-component consistency
// (store + index) is the service's mutation lock, not this one.
type Store struct {
	opts Options

	records   []*Record
	byID      map[string]int
	version   uint64
	dimension int
	healthy   bool
	now       func() time.Time
}

// Open creates a store and, when a snapshot file exists at the configured
// path, loads it fully into memory.
func Open(optFns ...func(o *Options)) (*Store, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.Compression == "" {
		opts.Compression = CompressionZstd
	}

	s := &Store{
		opts:    opts,
		byID:    make(map[string]int),
		healthy: true,
		now:     time.Now,
	}

	if opts.Path != "" {
		if err := s.load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	return s, nil
}

// Upsert inserts a new record or replaces the record matched by id.
//
// The mutation is applied in memory, then the full snapshot is durably
// persisted before Upsert returns. If the durable write fails the in-memory
// mutation is rolled back and the store trips its health latch.
func (s *Store) Upsert(id string, vector []float32, attributes map[string]string) (*Record, error) {
	if !s.healthy {
		return nil, ErrUnhealthy
	}
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}
	if s.dimension > 0 && len(vector) != s.dimension {
		return nil, &ErrDimensionMismatch{Expected: s.dimension, Actual: len(vector)}
	}

	now := s.now()
	rec := &Record{
		ID:         id,
		Vector:     slices.Clone(vector),
		Attributes: maps.Clone(attributes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Apply in memory, remembering how to roll back.
	pos, replace := s.byID[id]
	var prev *Record
	if replace {
		prev = s.records[pos]
		rec.CreatedAt = prev.CreatedAt
		s.records[pos] = rec
	} else {
		pos = len(s.records)
		s.records = append(s.records, rec)
		s.byID[id] = pos
	}
	prevDimension := s.dimension
	if s.dimension == 0 {
		s.dimension = len(vector)
	}
	s.version++

	if err := s.persist(); err != nil {
		// Roll back so memory still mirrors the last durable snapshot.
		if replace {
			s.records[pos] = prev
		} else {
			s.records = s.records[:pos]
			delete(s.byID, id)
		}
		s.dimension = prevDimension
		s.version--
		s.healthy = false
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	return rec.clone(), nil
}

// Get returns the record for id, or ErrNotFound.
func (s *Store) Get(id string) (*Record, error) {
	pos, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.records[pos].clone(), nil
}

// All returns every record in insertion order. Used for full index rebuilds.
func (s *Store) All() []*Record {
	out := make([]*Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.clone()
	}
	return out
}

// Count returns the number of records.
func (s *Store) Count() int { return len(s.records) }

// Version returns the store version, incremented on every mutation.
// A freshly opened empty store has version 0.
func (s *Store) Version() uint64 { return s.version }

// Dimension returns the fixed vector dimension, or 0 while the store is
// empty. It is established by the first inserted record and immutable
// thereafter.
func (s *Store) Dimension() int { return s.dimension }

// Healthy reports whether the store accepts mutations.
func (s *Store) Healthy() bool { return s.healthy }

// Reload re-reads the on-disk snapshot, replacing the in-memory state and
// clearing the health latch on success.
func (s *Store) Reload() error {
	if s.opts.Path == "" {
		s.healthy = true
		return nil
	}
	if err := s.load(); err != nil {
		return err
	}
	s.healthy = true
	return nil
}

func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Vector = slices.Clone(r.Vector)
	c.Attributes = maps.Clone(r.Attributes)
	return &c
}
