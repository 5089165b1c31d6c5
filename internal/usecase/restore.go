package usecase

import (
	"context"
	"fmt"

	"github.com/rolandhq/flowvault/internal/domain"
)

// Restore pushes an archived snapshot back to the remote system and then
// runs a regular backup cycle, so the restored state becomes a new
// forward version instead of rolling the ledger back. The append-only,
// non-decreasing version invariant holds across restores.
type Restore struct {
	backup *Backup
	remote domain.WorkflowClient
	logger Logger
}

func NewRestore(backup *Backup, remote domain.WorkflowClient, logger Logger) *Restore {
	return &Restore{backup: backup, remote: remote, logger: logger}
}

// Run restores workflowID to the state captured in version. The returned
// record is the forward backup that captured the restored state; its
// outcome is unchanged when the remote already matched the snapshot.
func (uc *Restore) Run(ctx context.Context, workflowID string, version domain.Version) (domain.BackupRecord, error) {
	snap, err := uc.backup.Show(workflowID, version)
	if err != nil {
		return domain.BackupRecord{}, fmt.Errorf("load snapshot for restore: %w", err)
	}

	uc.logger.Infof("[%s] Restoring snapshot %s to remote", workflowID, version)
	if err := uc.remote.PushWorkflow(ctx, workflowID, snap.Payload); err != nil {
		return domain.BackupRecord{}, fmt.Errorf("push restored workflow: %w", err)
	}

	record, err := uc.backup.Run(ctx, workflowID, BackupOptions{})
	if err != nil {
		return record, fmt.Errorf("record restored state: %w", err)
	}

	uc.logger.Infof("[%s] Restore of %s recorded as %s (%s)", workflowID, version, record.Version, record.Outcome)
	return record, nil
}
