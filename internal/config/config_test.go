package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/multierr"
)

const minimalConfig = `
remote:
  base_url: "http://localhost:5678"
  api_key: "n8n-key"
  workflows:
    - id: "wf-orders"
      schedule: "0 0 2 * * *"
vcs:
  repo_url: "https://github.com/acme/workflow-backups.git"
  token: "ghp_test"
backup:
  local_path: "/var/lib/flowvault"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given a minimal config file", t, func() {
		path := writeConfig(t, minimalConfig)

		Convey("Load fills in the defaults", func() {
			cfg, err := Load(path)
			So(err, ShouldBeNil)
			So(cfg.App.Name, ShouldEqual, "flowvault")
			So(cfg.Remote.APIKeyHeader, ShouldEqual, "X-N8N-API-KEY")
			So(cfg.VCS.Branch, ShouldEqual, "main")
			So(cfg.VCS.PathPrefix, ShouldEqual, "workflows")
			So(cfg.VCS.APIBaseURL, ShouldEqual, "https://api.github.com")
			So(cfg.Retry.MaxAttempts, ShouldEqual, 3)
			So(cfg.Retry.BaseDelayMs, ShouldEqual, 500)
			So(cfg.Backup.RetentionCount, ShouldEqual, 30)
			So(cfg.Backup.Compress, ShouldBeTrue)
			So(cfg.Diagnostics.ProbeTimeoutMs, ShouldEqual, 5000)
		})

		Convey("Environment variables override file values", func() {
			os.Setenv("FLOWVAULT_REMOTE_API_KEY", "from-env")
			defer os.Unsetenv("FLOWVAULT_REMOTE_API_KEY")

			cfg, err := Load(path)
			So(err, ShouldBeNil)
			So(cfg.Remote.APIKey, ShouldEqual, "from-env")
		})

		Convey("A missing file surfaces an error", func() {
			_, err := Load(filepath.Join(filepath.Dir(path), "missing.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given an invalid configuration", t, func() {
		Convey("Every violation is reported at once", func() {
			path := writeConfig(t, `
remote:
  base_url: ""
vcs:
  repo_url: ""
retry:
  max_attempts: 0
backup:
  local_path: ""
`)
			_, err := Load(path)
			So(err, ShouldNotBeNil)

			msg := err.Error()
			So(msg, ShouldContainSubstring, "remote.base_url is required")
			So(msg, ShouldContainSubstring, "remote.api_key is required")
			So(msg, ShouldContainSubstring, "vcs.repo_url is required")
			So(msg, ShouldContainSubstring, "vcs.token is required")
			So(msg, ShouldContainSubstring, "retry.max_attempts must be at least 1")
			So(msg, ShouldContainSubstring, "backup.local_path is required")
		})

		Convey("An enabled archive target needs its backend settings", func() {
			cfg := validConfig()
			cfg.Backup.ArchiveTargets = []ArchiveTarget{
				{Type: "s3", Enabled: true},
				{Type: "tape", Enabled: true},
				{Type: "local", Enabled: false},
			}

			err := cfg.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "bucket is required for s3")
			So(err.Error(), ShouldContainSubstring, "region is required for s3")
			So(err.Error(), ShouldContainSubstring, `unknown type "tape"`)
			So(len(multierr.Errors(err)), ShouldEqual, 3)
		})

		Convey("Enabled Telegram notification needs both token and chat id", func() {
			cfg := validConfig()
			cfg.Backup.Notify.Telegram.Enabled = true

			err := cfg.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "bot_token is required")
			So(err.Error(), ShouldContainSubstring, "chat_id is required")
		})
	})

	Convey("Given a complete configuration", t, func() {
		Convey("Validate passes and target filtering works", func() {
			cfg := validConfig()
			cfg.Backup.ArchiveTargets = []ArchiveTarget{
				{Type: "local", Enabled: true, Path: "/mnt/mirror"},
				{Type: "s3", Enabled: false},
			}

			So(cfg.Validate(), ShouldBeNil)
			So(len(cfg.GetEnabledArchiveTargets()), ShouldEqual, 1)
			So(cfg.GetEnabledArchiveTargets()[0].Type, ShouldEqual, "local")
		})
	})
}

func validConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			BaseURL:      "http://localhost:5678",
			APIKey:       "key",
			APIKeyHeader: "X-N8N-API-KEY",
			Workflows:    []WorkflowConfig{{ID: "wf-orders"}},
		},
		VCS: VCSConfig{
			RepoURL: "https://github.com/acme/workflow-backups.git",
			Token:   "ghp_test",
			Branch:  "main",
		},
		Retry:  RetryConfig{MaxAttempts: 3, BaseDelayMs: 500, MaxDelayMs: 15000},
		Backup: BackupConfig{LocalPath: "/var/lib/flowvault", RetentionCount: 30},
	}
}
