package usecase

import (
	"context"
	"sync"

	"github.com/rolandhq/flowvault/internal/store"
)

// Cleanup prunes archived snapshot payloads beyond the retention count,
// locally and on every offsite mirror. The ledger and the version-control
// history are never rewritten; retention only reclaims payload storage.
type Cleanup struct {
	store          *store.Store
	archives       []ArchiveTarget
	logger         Logger
	workflowIDs    []string
	retentionCount int
}

func NewCleanup(
	st *store.Store,
	archives []ArchiveTarget,
	logger Logger,
	workflowIDs []string,
	retentionCount int,
) *Cleanup {
	return &Cleanup{
		store:          st,
		archives:       archives,
		logger:         logger,
		workflowIDs:    workflowIDs,
		retentionCount: retentionCount,
	}
}

func (uc *Cleanup) Execute(ctx context.Context) error {
	uc.logger.Infof("Starting retention sweep, keeping %d snapshot(s) per workflow", uc.retentionCount)

	for _, workflowID := range uc.workflowIDs {
		deleted, err := uc.store.PruneSnapshots(workflowID, uc.retentionCount)
		if err != nil {
			uc.logger.Errorf("[%s] Retention sweep failed: %v", workflowID, err)
			continue
		}
		if len(deleted) == 0 {
			continue
		}

		uc.logger.Infof("[%s] Pruned %d archived snapshot(s)", workflowID, len(deleted))
		uc.pruneArchives(ctx, deleted)
	}

	uc.logger.Infof("Retention sweep completed")
	return nil
}

// pruneArchives deletes the same archive names from every offsite target
// concurrently. Failures are logged, never fatal.
func (uc *Cleanup) pruneArchives(ctx context.Context, names []string) {
	var wg sync.WaitGroup

	for _, target := range uc.archives {
		wg.Add(1)
		go func(t ArchiveTarget) {
			defer wg.Done()

			for _, name := range names {
				if err := t.Storage.Delete(ctx, name); err != nil {
					uc.logger.Errorf("Failed to delete %s from %s: %v", name, t.Name, err)
				}
			}
		}(target)
	}

	wg.Wait()
}
