// Package codec centralizes record payload encoding.
//
// Codec selection is a breaking-change boundary: persisted snapshots record
// the codec name in their header, and a snapshot written by one codec is
// decoded by selecting the same codec by name on load.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
//
// This is used for self-describing persistence formats that store the codec
// name in their header.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "yaml":
		return YAML{}, true
	default:
		return nil, false
	}
}

// Default is the default codec used by the library.
//
// Persisted snapshots are self-describing (they store the codec name in
// their header), so changing the default never breaks existing files.
var Default Codec = JSON{}
