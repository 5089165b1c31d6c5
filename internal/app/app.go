package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rolandhq/flowvault/internal/adapter/compressor"
	"github.com/rolandhq/flowvault/internal/adapter/github"
	"github.com/rolandhq/flowvault/internal/adapter/n8n"
	"github.com/rolandhq/flowvault/internal/adapter/notify"
	"github.com/rolandhq/flowvault/internal/adapter/storage"
	"github.com/rolandhq/flowvault/internal/config"
	"github.com/rolandhq/flowvault/internal/domain"
	"github.com/rolandhq/flowvault/internal/infrastructure/logger"
	"github.com/rolandhq/flowvault/internal/infrastructure/retry"
	"github.com/rolandhq/flowvault/internal/infrastructure/scheduler"
	"github.com/rolandhq/flowvault/internal/probe"
	"github.com/rolandhq/flowvault/internal/store"
	"github.com/rolandhq/flowvault/internal/usecase"
)

// App wires the core components for one process invocation. The config
// is loaded once and treated as immutable from here on.
type App struct {
	config      *config.Config
	logger      *logger.Logger
	scheduler   *scheduler.Scheduler
	store       *store.Store
	remote      domain.WorkflowClient
	vcs         domain.VersionControl
	backupUC    *usecase.Backup
	restoreUC   *usecase.Restore
	cleanupUC   *usecase.Cleanup
	diagnostics *usecase.Diagnostics
}

func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s", cfg.App.Name)

	var comp domain.Compressor
	if cfg.Backup.Compress {
		comp = compressor.NewGzip()
	}

	st, err := store.New(cfg.Backup.LocalPath, comp)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
	}

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
	}

	remote := n8n.New(cfg.Remote.BaseURL, cfg.Remote.APIKeyHeader, cfg.Remote.APIKey,
		policy, log.Named("n8n"))

	vcs, err := github.New(cfg.VCS.RepoURL, cfg.VCS.APIBaseURL, cfg.VCS.Branch,
		cfg.VCS.Token, log.Named("github"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize version-control client: %w", err)
	}

	archives := initializeArchiveTargets(cfg, log)

	var notifier domain.Notifier
	if cfg.Backup.Notify.Telegram.Enabled {
		notifier, err = notify.NewTelegram(&cfg.Backup.Notify.Telegram)
		if err != nil {
			log.Errorf("Failed to initialize Telegram notifier: %v", err)
			notifier = nil
		} else {
			log.Infof("Telegram notifications enabled")
		}
	}

	backupUC := usecase.NewBackup(remote, vcs, st, archives, notifier, log, cfg.VCS.PathPrefix)
	restoreUC := usecase.NewRestore(backupUC, remote, log)

	workflowIDs := make([]string, 0, len(cfg.Remote.Workflows))
	for _, wf := range cfg.Remote.Workflows {
		workflowIDs = append(workflowIDs, wf.ID)
	}
	cleanupUC := usecase.NewCleanup(st, archives, log, workflowIDs, cfg.Backup.RetentionCount)

	remedies, err := probe.LoadRemedies(cfg.Diagnostics.RemediesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load remediation hints: %w", err)
	}

	probes := []domain.Probe{
		&probe.Remote{Client: remote, Remedies: remedies},
		&probe.VCS{Client: vcs, Path: cfg.VCS.PathPrefix + "/.flowvault", Remedies: remedies},
		&probe.Ledger{Store: st, Remedies: remedies},
		&probe.Environment{
			RemoteAPIKeySet: cfg.Remote.APIKey != "",
			VCSTokenSet:     cfg.VCS.Token != "",
			Remedies:        remedies,
		},
	}
	diagnostics := usecase.NewDiagnostics(probes,
		time.Duration(cfg.Diagnostics.ProbeTimeoutMs)*time.Millisecond, log)

	sched := scheduler.New()
	sched.OnError(func(err error) {
		log.Errorf("Scheduled job failed: %v", err)
	})

	return &App{
		config:      cfg,
		logger:      log,
		scheduler:   sched,
		store:       st,
		remote:      remote,
		vcs:         vcs,
		backupUC:    backupUC,
		restoreUC:   restoreUC,
		cleanupUC:   cleanupUC,
		diagnostics: diagnostics,
	}, nil
}

func initializeArchiveTargets(cfg *config.Config, log *logger.Logger) []usecase.ArchiveTarget {
	var targets []usecase.ArchiveTarget

	for _, targetCfg := range cfg.GetEnabledArchiveTargets() {
		var archive domain.ArchiveTarget
		var err error

		switch targetCfg.Type {
		case "local":
			archive, err = storage.NewLocal(targetCfg.Path)
			if err != nil {
				log.Errorf("Failed to initialize local mirror: %v", err)
				continue
			}
			log.Infof("Local archive mirror enabled (%s)", targetCfg.Path)

		case "s3":
			archive, err = storage.NewS3(&targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize S3 mirror: %v", err)
				continue
			}
			log.Infof("S3 archive mirror enabled (bucket: %s)", targetCfg.Bucket)

		default:
			log.Warnf("Unknown archive target type: %s", targetCfg.Type)
			continue
		}

		targets = append(targets, usecase.ArchiveTarget{
			Name:    targetCfg.Type,
			Storage: archive,
		})
	}

	return targets
}

// BackupNow runs one backup for a workflow id. An empty id falls back to
// the first configured workflow.
func (a *App) BackupNow(ctx context.Context, workflowID string, opts usecase.BackupOptions) (domain.BackupRecord, error) {
	id, err := a.resolveWorkflowID(workflowID)
	if err != nil {
		return domain.BackupRecord{}, err
	}
	return a.backupUC.Run(ctx, id, opts)
}

// ListBackups returns the full ledger, oldest first.
func (a *App) ListBackups() ([]domain.BackupRecord, error) {
	return a.backupUC.List()
}

// ShowBackup loads one snapshot, payload included.
func (a *App) ShowBackup(workflowID string, version domain.Version) (domain.WorkflowSnapshot, error) {
	id, err := a.resolveWorkflowID(workflowID)
	if err != nil {
		return domain.WorkflowSnapshot{}, err
	}
	return a.backupUC.Show(id, version)
}

// Restore pushes an archived snapshot back to the remote as a new
// forward version.
func (a *App) Restore(ctx context.Context, workflowID string, version domain.Version) (domain.BackupRecord, error) {
	id, err := a.resolveWorkflowID(workflowID)
	if err != nil {
		return domain.BackupRecord{}, err
	}
	return a.restoreUC.Run(ctx, id, version)
}

// Status runs the diagnostics pipeline.
func (a *App) Status(ctx context.Context) domain.DiagnosticReport {
	return a.diagnostics.Run(ctx)
}

// ListWorkflows queries the remote for all visible workflows.
func (a *App) ListWorkflows(ctx context.Context) ([]domain.WorkflowSummary, error) {
	return a.remote.ListWorkflows(ctx)
}

func (a *App) resolveWorkflowID(workflowID string) (string, error) {
	if workflowID != "" {
		return workflowID, nil
	}
	if len(a.config.Remote.Workflows) == 0 {
		return "", fmt.Errorf("no workflow id given and none configured")
	}
	return a.config.Remote.Workflows[0].ID, nil
}

// Run starts daemon mode: every workflow with a schedule gets a cron
// job, plus a daily retention sweep. Blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	scheduled := 0
	for _, wf := range a.config.Remote.Workflows {
		if wf.Schedule == "" {
			continue
		}

		workflowID := wf.ID
		if err := a.scheduler.AddJob(wf.Schedule, func(jobCtx context.Context) error {
			a.logger.Infof("=== Triggered scheduled backup for %s ===", workflowID)
			_, err := a.backupUC.Run(jobCtx, workflowID, usecase.BackupOptions{})
			return err
		}); err != nil {
			return fmt.Errorf("failed to schedule backup for %s: %w", workflowID, err)
		}

		a.logger.Infof("Scheduled backup for %s: %s", workflowID, wf.Schedule)
		scheduled++
	}

	if scheduled == 0 {
		return fmt.Errorf("daemon mode needs at least one workflow with a schedule")
	}

	cleanupSchedule := "0 0 3 * * *"
	if err := a.scheduler.AddJob(cleanupSchedule, a.cleanupUC.Execute); err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started with %d backup job(s)", scheduled)

	<-ctx.Done()
	return nil
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down...")
	a.scheduler.Stop()
	a.logger.Close()
}
