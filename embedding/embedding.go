// Package embedding defines the face embedding collaborator contract.
//
// The embedding model is an external dependency (an ONNX runtime, a DeepFace
// sidecar, a hosted API). The core never inspects model internals; it only
// relies on the extractor producing vectors of one fixed dimension per
// configured model.
package embedding

import (
	"context"
	"fmt"
)

// Error is an extraction failure carrying the model's reason, e.g. "no face
// detected". Extraction failures are terminal for the request: they surface
// to the client and are never retried internally.
type Error struct {
	Reason string
	cause  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("embedding failed: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError creates an extraction failure with a reason and optional cause.
func NewError(reason string, cause error) *Error {
	return &Error{Reason: reason, cause: cause}
}

// Extractor computes a face embedding vector from raw image bytes.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the service runs
// extraction outside its locks and multiple requests may extract at once.
type Extractor interface {
	// Extract computes an embedding from an encoded image (JPEG/PNG).
	// Returns a float32 vector of length Dimension(). Failures should be
	// (or wrap) *Error so the reason reaches the client.
	Extract(ctx context.Context, image []byte) ([]float32, error)

	// Dimension returns the dimensionality of vectors produced by Extract.
	// Deterministic per configured model (e.g. 128 for Facenet, 512 for
	// Facenet512).
	Dimension() int
}
