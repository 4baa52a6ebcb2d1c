package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/faceid/codec"
	"github.com/hupe1980/faceid/persistence"
)

// Snapshot container. Self-describing: the header names the codec and the
// compression, so files written under one configuration load under another.
//
// Layout, little-endian:
//
//	[0:4]   magic "FID1"
//	[4:6]   format version
//	[6:7]   codec name length
//	[7:8]   compression name length
//	[8:16]  store version
//	codec name, compression name
//	[..+8]  payload length
//	payload: compressed codec-marshaled record sequence
//	footer:  CRC32 (IEEE) of the compressed payload
var (
	snapshotMagic         = [4]byte{'F', 'I', 'D', '1'}
	snapshotFormatVersion = uint16(1)
)

// ErrCorruptSnapshot is returned when a snapshot fails validation.
var ErrCorruptSnapshot = errors.New("store: snapshot corrupt")

// Compression names the snapshot payload compression.
type Compression string

// Supported snapshot compressions.
const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

func compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		var buf bytes.Buffer
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(data); err != nil {
			_ = zw.Close()
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		lw := lz4.NewWriter(&buf)
		if _, err := lw.Write(data); err != nil {
			_ = lw.Close()
			return nil, err
		}
		if err := lw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("store: unknown compression %q", c)
	}
}

func decompress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case CompressionLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	default:
		return nil, fmt.Errorf("store: unknown compression %q", c)
	}
}

// EncodeSnapshot writes the current state as a snapshot container to w.
func (s *Store) EncodeSnapshot(w io.Writer) error {
	raw, err := s.opts.Codec.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("store: marshal records: %w", err)
	}
	payload, err := compress(s.opts.Compression, raw)
	if err != nil {
		return err
	}

	codecName := s.opts.Codec.Name()
	compName := string(s.opts.Compression)
	if len(codecName) > 0xFF || len(compName) > 0xFF {
		return fmt.Errorf("store: codec/compression name too long")
	}

	var hdr [16]byte
	copy(hdr[0:4], snapshotMagic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], snapshotFormatVersion)
	hdr[6] = byte(len(codecName))
	hdr[7] = byte(len(compName))
	binary.LittleEndian.PutUint64(hdr[8:16], s.version)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, codecName); err != nil {
		return err
	}
	if _, err := io.WriteString(w, compName); err != nil {
		return err
	}

	var plen [8]byte
	binary.LittleEndian.PutUint64(plen[:], uint64(len(payload)))
	if _, err := w.Write(plen[:]); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}

	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], persistence.Checksum(payload))
	_, err = w.Write(footer[:])
	return err
}

// SnapshotInfo describes a validated snapshot file.
type SnapshotInfo struct {
	FormatVersion uint16
	Codec         string
	Compression   Compression
	StoreVersion  uint64
	PayloadBytes  int
	Records       int
	Dimension     int
}

func readSnapshot(r io.Reader) (*SnapshotInfo, []*Record, error) {
	var hdr [16]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if [4]byte(hdr[0:4]) != snapshotMagic {
		return nil, nil, fmt.Errorf("%w: bad magic", ErrCorruptSnapshot)
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != snapshotFormatVersion {
		return nil, nil, fmt.Errorf("%w: unsupported format version %d", ErrCorruptSnapshot, v)
	}
	version := binary.LittleEndian.Uint64(hdr[8:16])

	names := make([]byte, int(hdr[6])+int(hdr[7]))
	if _, err := io.ReadFull(r, names); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	codecName := string(names[:hdr[6]])
	compName := Compression(names[hdr[6]:])

	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown codec %q", ErrCorruptSnapshot, codecName)
	}

	var plen [8]byte
	if _, err := io.ReadFull(r, plen[:]); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	payload := make([]byte, binary.LittleEndian.Uint64(plen[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	var footer [4]byte
	if _, err := io.ReadFull(r, footer[:]); err != nil {
		return nil, nil, fmt.Errorf("%w: missing checksum: %v", ErrCorruptSnapshot, err)
	}
	if binary.LittleEndian.Uint32(footer[:]) != persistence.Checksum(payload) {
		return nil, nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}

	raw, err := decompress(compName, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	var records []*Record
	if err := c.Unmarshal(raw, &records); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	info := &SnapshotInfo{
		FormatVersion: snapshotFormatVersion,
		Codec:         codecName,
		Compression:   compName,
		StoreVersion:  version,
		PayloadBytes:  len(payload),
		Records:       len(records),
	}
	if len(records) > 0 {
		info.Dimension = len(records[0].Vector)
	}

	return info, records, nil
}

func decodeSnapshot(r io.Reader) ([]*Record, uint64, error) {
	info, records, err := readSnapshot(r)
	if err != nil {
		return nil, 0, err
	}
	return records, info.StoreVersion, nil
}

// InspectSnapshot reads and fully validates the snapshot at path, reporting
// its header and contents without opening a store around it.
func InspectSnapshot(path string) (*SnapshotInfo, error) {
	var info *SnapshotInfo
	err := persistence.LoadFromFile(path, func(r io.Reader) error {
		var err error
		info, _, err = readSnapshot(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// persist durably writes the full snapshot, or is a no-op without a path.
func (s *Store) persist() error {
	if s.opts.Path == "" {
		return nil
	}
	return persistence.SaveToFile(s.opts.Path, s.EncodeSnapshot)
}

// load replaces the in-memory state from the snapshot file.
func (s *Store) load() error {
	var (
		records []*Record
		version uint64
	)
	err := persistence.LoadFromFile(s.opts.Path, func(r io.Reader) error {
		var err error
		records, version, err = decodeSnapshot(r)
		return err
	})
	if err != nil {
		return err
	}

	byID := make(map[string]int, len(records))
	dimension := 0
	for i, rec := range records {
		if _, dup := byID[rec.ID]; dup {
			return fmt.Errorf("%w: duplicate record id %q", ErrCorruptSnapshot, rec.ID)
		}
		byID[rec.ID] = i
		if dimension == 0 {
			dimension = len(rec.Vector)
		}
	}

	s.records = records
	s.byID = byID
	s.version = version
	s.dimension = dimension
	return nil
}
