package domain

import "context"

// ArchiveTarget mirrors committed snapshot payloads to offsite storage.
// Targets are best effort: a failed mirror never fails the backup itself.
type ArchiveTarget interface {
	Upload(ctx context.Context, localPath string, remoteName string) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, remoteName string) error
}
