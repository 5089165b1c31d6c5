package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rolandhq/flowvault/internal/app"
	"github.com/rolandhq/flowvault/internal/config"
	"github.com/rolandhq/flowvault/internal/domain"
	"github.com/rolandhq/flowvault/internal/usecase"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// The command layer stays thin: it parses flags and calls core
// operations, nothing else.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "flowvault",
		Short:         "Versioned workflow backups with health diagnostics",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config file")

	newApp := func() (*app.App, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return app.New(cfg)
	}

	root.AddCommand(
		newBackupCmd(newApp),
		newWorkflowCmd(newApp),
		newStatusCmd(newApp),
		newRunCmd(newApp),
	)
	return root
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newBackupCmd(newApp func() (*app.App, error)) *cobra.Command {
	backup := &cobra.Command{
		Use:   "backup",
		Short: "Backup operations and history",
	}

	var workflowID string
	backup.PersistentFlags().StringVar(&workflowID, "workflow", "", "workflow id (defaults to the first configured)")

	var dryRun bool
	var bump string
	now := &cobra.Command{
		Use:   "now",
		Short: "Export, validate, version and commit one backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			defer application.Shutdown()

			ctx, cancel := signalContext()
			defer cancel()

			record, err := application.BackupNow(ctx, workflowID, usecase.BackupOptions{
				DryRun: dryRun,
				Bump:   domain.Bump(bump),
			})
			if err != nil {
				return err
			}
			printRecord(record)
			return nil
		},
	}
	now.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without committing")
	now.Flags().StringVar(&bump, "bump", "patch", "version component to bump: patch, minor or major")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the backup ledger, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			defer application.Shutdown()

			records, err := application.ListBackups()
			if err != nil {
				return err
			}
			for _, record := range records {
				printRecord(record)
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <version>",
		Short: "Print an archived snapshot payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapVersion, err := domain.ParseVersion(args[0])
			if err != nil {
				return err
			}

			application, err := newApp()
			if err != nil {
				return err
			}
			defer application.Shutdown()

			snap, err := application.ShowBackup(workflowID, snapVersion)
			if err != nil {
				return err
			}
			fmt.Printf("workflow %s v%s (commit %s, hash %s)\n",
				snap.ID, snap.Version, snap.CommitRef, snap.ContentHash)
			fmt.Println(string(snap.Payload))
			return nil
		},
	}

	restore := &cobra.Command{
		Use:   "restore <version>",
		Short: "Push an archived snapshot back to the remote as a new version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapVersion, err := domain.ParseVersion(args[0])
			if err != nil {
				return err
			}

			application, err := newApp()
			if err != nil {
				return err
			}
			defer application.Shutdown()

			ctx, cancel := signalContext()
			defer cancel()

			record, err := application.Restore(ctx, workflowID, snapVersion)
			if err != nil {
				return err
			}
			printRecord(record)
			return nil
		},
	}

	backup.AddCommand(now, list, show, restore)
	return backup
}

func newWorkflowCmd(newApp func() (*app.App, error)) *cobra.Command {
	workflow := &cobra.Command{
		Use:   "workflow",
		Short: "Remote workflow operations",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List workflows visible on the remote",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			defer application.Shutdown()

			ctx, cancel := signalContext()
			defer cancel()

			workflows, err := application.ListWorkflows(ctx)
			if err != nil {
				return err
			}
			for _, wf := range workflows {
				state := "inactive"
				if wf.Active {
					state = "active"
				}
				fmt.Printf("%-20s %-10s %s\n", wf.ID, state, wf.Name)
			}
			return nil
		},
	}

	workflow.AddCommand(list)
	return workflow
}

func newStatusCmd(newApp func() (*app.App, error)) *cobra.Command {
	var asJSON bool

	status := &cobra.Command{
		Use:   "status",
		Short: "Run all health probes and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			defer application.Shutdown()

			ctx, cancel := signalContext()
			defer cancel()

			report := application.Status(ctx)
			if asJSON {
				out, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
			} else {
				fmt.Printf("overall: %s\n", report.Overall)
				for _, result := range report.Probes {
					fmt.Printf("  %-20s %-9s %s\n", result.Name, result.Status, result.Message)
					if result.Remediation != "" {
						fmt.Printf("  %-20s %-9s hint: %s\n", "", "", result.Remediation)
					}
				}
			}

			if report.Overall == domain.StatusFailing {
				return fmt.Errorf("system status is failing")
			}
			return nil
		},
	}
	status.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return status
}

func newRunCmd(newApp func() (*app.App, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run as a daemon, backing up on the configured schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			defer application.Shutdown()

			ctx, cancel := signalContext()
			defer cancel()

			return application.Run(ctx)
		},
	}
}

func printRecord(record domain.BackupRecord) {
	switch record.Outcome {
	case domain.OutcomeCommitted:
		fmt.Printf("%s  %s  v%-10s commit %s\n",
			record.FinishedAt.Format("2006-01-02 15:04:05"), record.WorkflowID, record.Version, record.CommitRef)
	case domain.OutcomeUnchanged:
		fmt.Printf("%s  %s  v%-10s unchanged\n",
			record.FinishedAt.Format("2006-01-02 15:04:05"), record.WorkflowID, record.Version)
	case domain.OutcomeDryRun:
		fmt.Printf("dry run: %s would become v%s (hash %s)\n",
			record.WorkflowID, record.Version, record.ContentHash)
	default:
		fmt.Printf("%s  %s  %s during %s: %s\n",
			record.FinishedAt.Format("2006-01-02 15:04:05"), record.WorkflowID, record.Outcome, record.Phase, record.Error)
	}
}
