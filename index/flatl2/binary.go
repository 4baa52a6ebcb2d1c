package flatl2

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/faceid/persistence"
)

// Persisted flat index snapshot. The file is purely an optimization: it is
// tagged with the store version it was built from and is ignored (and the
// index rebuilt from the store) whenever the versions disagree.
//
// Layout, little-endian:
//
//	[0:4]   magic "FIX1"
//	[4:6]   format version
//	[6:8]   reserved
//	[8:16]  store version
//	[16:20] vector dimension
//	[20:24] live entry count
//	entries: idLen uint16, id bytes, zeroFlag uint8, dimension float32s
//	footer:  CRC32 (IEEE) of all preceding bytes
//
// Retired slots are compacted away on write; relative slot order (and with
// it the tie-break order) is preserved.

var (
	indexMagic         = [4]byte{'F', 'I', 'X', '1'}
	indexFormatVersion = uint16(1)
)

var (
	// ErrStaleSnapshot is returned when the persisted index was built from a
	// different store version than the caller expects.
	ErrStaleSnapshot = errors.New("flatl2: index snapshot stale")

	// ErrCorruptSnapshot is returned when the persisted index fails
	// validation (bad magic, short read, checksum mismatch).
	ErrCorruptSnapshot = errors.New("flatl2: index snapshot corrupt")
)

// WriteTo writes the index tagged with storeVersion to w.
func (f *Flat) WriteTo(w io.Writer, storeVersion uint64) error {
	cw := persistence.NewChecksumWriter(w)

	var hdr [24]byte
	copy(hdr[0:4], indexMagic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], indexFormatVersion)
	binary.LittleEndian.PutUint64(hdr[8:16], storeVersion)
	binary.LittleEndian.PutUint32(hdr[16:20], uint32(f.dimension))
	binary.LittleEndian.PutUint32(hdr[20:24], uint32(f.Len()))
	if _, err := cw.Write(hdr[:]); err != nil {
		return err
	}

	vecBuf := make([]byte, 4*f.dimension)
	it := f.live.Iterator()
	for it.HasNext() {
		slot := it.Next()
		id := f.ids[slot]
		if len(id) > math.MaxUint16 {
			return fmt.Errorf("flatl2: record id too long: %d bytes", len(id))
		}

		var idLen [2]byte
		binary.LittleEndian.PutUint16(idLen[:], uint16(len(id)))
		if _, err := cw.Write(idLen[:]); err != nil {
			return err
		}
		if _, err := cw.Write([]byte(id)); err != nil {
			return err
		}

		var zeroFlag [1]byte
		if f.zero.Contains(slot) {
			zeroFlag[0] = 1
		}
		if _, err := cw.Write(zeroFlag[:]); err != nil {
			return err
		}

		for i, x := range f.vectors[slot] {
			binary.LittleEndian.PutUint32(vecBuf[4*i:], math.Float32bits(x))
		}
		if _, err := cw.Write(vecBuf); err != nil {
			return err
		}
	}

	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], cw.Sum())
	_, err := w.Write(footer[:])
	return err
}

// ReadFrom replaces the index contents from r. The snapshot must carry
// exactly expectStoreVersion, otherwise ErrStaleSnapshot is returned and the
// caller should rebuild from the store.
func (f *Flat) ReadFrom(r io.Reader, expectStoreVersion uint64) error {
	br := bufio.NewReader(r)
	cr := persistence.NewChecksumReader(br)

	var hdr [24]byte
	if _, err := io.ReadFull(cr, hdr[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if [4]byte(hdr[0:4]) != indexMagic {
		return fmt.Errorf("%w: bad magic", ErrCorruptSnapshot)
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != indexFormatVersion {
		return fmt.Errorf("%w: unsupported format version %d", ErrCorruptSnapshot, v)
	}
	if sv := binary.LittleEndian.Uint64(hdr[8:16]); sv != expectStoreVersion {
		return fmt.Errorf("%w: built from store version %d, want %d", ErrStaleSnapshot, sv, expectStoreVersion)
	}

	dimension := int(binary.LittleEndian.Uint32(hdr[16:20]))
	count := int(binary.LittleEndian.Uint32(hdr[20:24]))

	next := New()
	next.dimension = dimension

	vecBuf := make([]byte, 4*dimension)
	for slot := 0; slot < count; slot++ {
		var idLen [2]byte
		if _, err := io.ReadFull(cr, idLen[:]); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		idBuf := make([]byte, binary.LittleEndian.Uint16(idLen[:]))
		if _, err := io.ReadFull(cr, idBuf); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}

		var zeroFlag [1]byte
		if _, err := io.ReadFull(cr, zeroFlag[:]); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}

		if _, err := io.ReadFull(cr, vecBuf); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		vec := make([]float32, dimension)
		for i := range vec {
			vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(vecBuf[4*i:]))
		}

		id := string(idBuf)
		next.ids = append(next.ids, id)
		next.vectors = append(next.vectors, vec)
		next.slots[id] = uint32(slot)
		next.live.Add(uint32(slot))
		if zeroFlag[0] == 1 {
			next.zero.Add(uint32(slot))
		}
	}

	sum := cr.Sum()

	// Footer is read outside the checksummed region.
	var footer [4]byte
	if _, err := io.ReadFull(br, footer[:]); err != nil {
		return fmt.Errorf("%w: missing checksum: %v", ErrCorruptSnapshot, err)
	}
	if binary.LittleEndian.Uint32(footer[:]) != sum {
		return fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}

	*f = *next
	return nil
}

// SaveToFile atomically persists the index to filename.
func (f *Flat) SaveToFile(filename string, storeVersion uint64) error {
	return persistence.SaveToFile(filename, func(w io.Writer) error {
		return f.WriteTo(w, storeVersion)
	})
}

// LoadFromFile loads a persisted index, validating it against
// expectStoreVersion.
func LoadFromFile(filename string, expectStoreVersion uint64) (*Flat, error) {
	f := New()
	err := persistence.LoadFromFile(filename, func(r io.Reader) error {
		return f.ReadFrom(r, expectStoreVersion)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}
