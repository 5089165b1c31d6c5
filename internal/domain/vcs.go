package domain

import "context"

// VersionControl commits serialized snapshots to a source-control backend.
// Writes to the same path are serialized by the caller; the client itself
// only guarantees the optimistic-concurrency retry described on Commit.
type VersionControl interface {
	// ReadFile returns the current content of path on the configured
	// branch, or a KindNotFound error if the path does not exist.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// Commit writes content to path and returns the new commit ref. If
	// the underlying ref moved since the read, the client re-reads and
	// retries once before surfacing KindConcurrentModification.
	Commit(ctx context.Context, path string, content []byte, message string) (string, error)
}
