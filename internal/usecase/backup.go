package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rolandhq/flowvault/internal/domain"
	"github.com/rolandhq/flowvault/internal/store"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Debugf(template string, args ...interface{})
}

// ArchiveTarget names an offsite mirror for snapshot payloads.
type ArchiveTarget struct {
	Name    string
	Storage domain.ArchiveTarget
}

// BackupOptions tunes a single backup run.
type BackupOptions struct {
	// DryRun stops after validation and reports what would change. No
	// commit happens and nothing is recorded in the ledger.
	DryRun bool
	// Bump selects the version component to increment. Defaults to patch.
	Bump domain.Bump
}

// Backup drives one workflow backup through the
// export -> validate -> commit -> record pipeline. At most one backup per
// workflow id runs at a time; concurrent calls for the same id fail fast
// with BackupInProgress while distinct ids proceed in parallel.
type Backup struct {
	remote     domain.WorkflowClient
	vcs        domain.VersionControl
	store      *store.Store
	archives   []ArchiveTarget
	notifier   domain.Notifier
	logger     Logger
	locks      *lockArena
	pathPrefix string
	now        func() time.Time
}

func NewBackup(
	remote domain.WorkflowClient,
	vcs domain.VersionControl,
	st *store.Store,
	archives []ArchiveTarget,
	notifier domain.Notifier,
	logger Logger,
	pathPrefix string,
) *Backup {
	return &Backup{
		remote:     remote,
		vcs:        vcs,
		store:      st,
		archives:   archives,
		notifier:   notifier,
		logger:     logger,
		locks:      newLockArena(),
		pathPrefix: pathPrefix,
		now:        time.Now,
	}
}

// Run performs one backup attempt for workflowID. On any real run the
// attempt is recorded in the ledger regardless of outcome, including
// cancellations; only dry runs and BackupInProgress rejections leave no
// trace.
func (uc *Backup) Run(ctx context.Context, workflowID string, opts BackupOptions) (domain.BackupRecord, error) {
	if opts.Bump == "" {
		opts.Bump = domain.BumpPatch
	}

	if !uc.locks.TryAcquire(workflowID) {
		return domain.BackupRecord{}, &domain.Error{
			Kind:       domain.KindBackupInProgress,
			WorkflowID: workflowID,
			Message:    "another backup for this workflow is still running",
		}
	}
	defer uc.locks.Release(workflowID)

	record := domain.BackupRecord{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		StartedAt:  uc.now().UTC(),
	}

	uc.logger.Infof("[%s] Starting backup (dry_run=%v)", workflowID, opts.DryRun)

	payload, err := uc.remote.FetchWorkflow(ctx, workflowID)
	if err != nil {
		return uc.fail(record, domain.PhaseExporting, err)
	}

	plan, err := uc.store.Evaluate(workflowID, payload, opts.Bump)
	if err != nil {
		return uc.fail(record, domain.PhaseValidating, err)
	}

	record.Version = plan.NextVersion
	record.ContentHash = plan.ContentHash

	if opts.DryRun {
		record.Outcome = domain.OutcomeDryRun
		record.FinishedAt = uc.now().UTC()
		if plan.Unchanged {
			uc.logger.Infof("[%s] Dry run: no upstream change, %s stays current", workflowID, plan.NextVersion)
		} else {
			uc.logger.Infof("[%s] Dry run: would commit version %s", workflowID, plan.NextVersion)
		}
		return record, nil
	}

	if plan.Unchanged {
		record.Outcome = domain.OutcomeUnchanged
		record.CommitRef = plan.PrevCommitRef
		record.FinishedAt = uc.now().UTC()
		if err := uc.store.Append(record); err != nil {
			return uc.fail(record, domain.PhaseRecording, err)
		}
		uc.logger.Infof("[%s] No upstream change, recorded audit entry for %s", workflowID, plan.NextVersion)
		return record, nil
	}

	if err := ctx.Err(); err != nil {
		return uc.fail(record, domain.PhaseCommitting, domain.NewError(domain.KindCancelled, "backup cancelled", err))
	}

	path := fmt.Sprintf("%s/%s.json", uc.pathPrefix, workflowID)
	message := fmt.Sprintf("Backup workflow %s v%s", workflowID, plan.NextVersion)

	commitRef, err := uc.vcs.Commit(ctx, path, payload, message)
	if err != nil {
		return uc.fail(record, domain.PhaseCommitting, err)
	}
	record.CommitRef = commitRef

	snap := domain.WorkflowSnapshot{
		ID:          workflowID,
		Version:     plan.NextVersion,
		Payload:     payload,
		ContentHash: plan.ContentHash,
		CreatedAt:   uc.now().UTC(),
		CommitRef:   commitRef,
	}
	if err := uc.store.SaveSnapshot(snap); err != nil {
		return uc.fail(record, domain.PhaseRecording, err)
	}

	record.Outcome = domain.OutcomeCommitted
	record.FinishedAt = uc.now().UTC()
	if err := uc.store.Append(record); err != nil {
		return uc.fail(record, domain.PhaseRecording, err)
	}

	uc.mirrorToArchives(ctx, snap)
	uc.notify(fmt.Sprintf("Backed up workflow %s as v%s (commit %s)", workflowID, plan.NextVersion, commitRef))

	uc.logger.Infof("[%s] Backup committed: version %s, commit %s", workflowID, plan.NextVersion, commitRef)
	return record, nil
}

// fail closes out a failed or cancelled attempt. The record always lands
// in the ledger; a ledger write failure on top is logged and the original
// error still surfaces.
func (uc *Backup) fail(record domain.BackupRecord, phase domain.Phase, err error) (domain.BackupRecord, error) {
	record.Phase = phase
	record.Error = err.Error()
	record.FinishedAt = uc.now().UTC()

	if domain.IsKind(err, domain.KindCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		record.Outcome = domain.OutcomeCancelled
	} else {
		record.Outcome = domain.OutcomeFailed
	}

	if appendErr := uc.store.Append(record); appendErr != nil {
		uc.logger.Errorf("[%s] Failed to record %s attempt: %v", record.WorkflowID, record.Outcome, appendErr)
	}

	var kinded *domain.Error
	if errors.As(err, &kinded) {
		if kinded.WorkflowID == "" {
			kinded.WorkflowID = record.WorkflowID
		}
		if kinded.Phase == "" {
			kinded.Phase = phase
		}
	} else {
		err = fmt.Errorf("backup of workflow %s failed during %s: %w", record.WorkflowID, phase, err)
	}

	uc.logger.Errorf("[%s] Backup %s during %s: %v", record.WorkflowID, record.Outcome, phase, err)
	uc.notify(fmt.Sprintf("Backup of workflow %s %s: %v", record.WorkflowID, record.Outcome, err))
	return record, err
}

// mirrorToArchives uploads the committed snapshot payload to every
// offsite target. Failures are logged, never fatal.
func (uc *Backup) mirrorToArchives(ctx context.Context, snap domain.WorkflowSnapshot) {
	if len(uc.archives) == 0 {
		return
	}

	localPath := uc.store.SnapshotFilePath(snap.ID, snap.Version)
	remoteName := uc.store.ArchiveName(snap.ID, snap.Version)

	var wg sync.WaitGroup
	for _, target := range uc.archives {
		wg.Add(1)
		go func(t ArchiveTarget) {
			defer wg.Done()
			if err := t.Storage.Upload(ctx, localPath, remoteName); err != nil {
				uc.logger.Errorf("[%s] Failed to mirror snapshot to %s: %v", snap.ID, t.Name, err)
			} else {
				uc.logger.Infof("[%s] Mirrored snapshot %s to %s", snap.ID, snap.Version, t.Name)
			}
		}(target)
	}
	wg.Wait()
}

func (uc *Backup) notify(message string) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Notify(message); err != nil {
		uc.logger.Warnf("Failed to send notification: %v", err)
	}
}

// List returns every ledger record, oldest first.
func (uc *Backup) List() ([]domain.BackupRecord, error) {
	return uc.store.List()
}

// Show loads one snapshot, payload included, by workflow id and version.
func (uc *Backup) Show(workflowID string, version domain.Version) (domain.WorkflowSnapshot, error) {
	return uc.store.LoadSnapshot(workflowID, version)
}
