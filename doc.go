// Package faceid provides an embedded biometric identity service for Go.
//
// Identities are enrolled from face images: an embedding extractor turns the
// image into a fixed-dimension vector, which is stored durably alongside
// string attributes and indexed for top-k cosine similarity search.
//
// # Quick Start
//
//	extractor, err := embedding.NewHTTPExtractor("http://localhost:5000/represent")
//	if err != nil {
//	    panic(err)
//	}
//
//	svc, err := faceid.New(extractor,
//	    faceid.WithSnapshotPath("./data/records.bin"),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer svc.Close()
//
//	identity, err := svc.Register(ctx, "21117001", imageBytes)
//	result, err := svc.Identify(ctx, probeBytes, 10)
//
// # Search Strategies
//
// Two interchangeable index strategies rank candidates. Both score with
// cosine similarity in [-1, 1] and produce identical rankings:
//
//   - exhaustive: brute-force cosine scan, no extra state (default)
//   - flatl2: normalized vectors in a flat slab searched by squared L2
//     distance, persisted next to the record snapshot
//
// Select with WithIndex:
//
//	svc, err := faceid.New(extractor,
//	    faceid.WithIndex(flatl2.New()),
//	    faceid.WithSnapshotPath("./data/records.bin"),
//	    faceid.WithIndexSnapshotPath("./data/index.bin"),
//	)
//
// # Durability
//
// The record store is the source of truth: every mutation is applied in
// memory and then persisted as a full atomic snapshot before the call
// returns. The index is a rebuildable cache; its optional snapshot is
// validated against the store version and discarded when stale.
package faceid
