// Package probe holds the individual health checks feeding the
// diagnostics engine, plus the remediation hint mapping. The mapping is
// data, not logic: operators extend it through a YAML file without
// touching the engine.
package probe

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/rolandhq/flowvault/internal/domain"
)

// NoKnownRemediation marks failures the mapping has no answer for; it is
// surfaced verbatim instead of a fabricated suggestion.
const NoKnownRemediation = "no known remediation"

// Remedies maps failure signatures (domain error kinds and probe-specific
// keys) to human-readable fixes.
type Remedies struct {
	hints map[string]string
}

func defaultHints() map[string]string {
	return map[string]string{
		string(domain.KindRemoteAuthFailed): "The remote rejected the API key. Check FLOWVAULT_REMOTE_API_KEY and confirm remote.api_key_header matches what the server expects (n8n uses X-N8N-API-KEY, not a bearer token).",
		string(domain.KindRemoteUnavailable): "The remote did not respond within the retry budget. Verify remote.base_url is reachable and the service is up.",
		string(domain.KindRemoteRejected): "The remote rejected the request. Check that the workflow id exists on the server.",
		string(domain.KindConcurrentModification): "Someone else is committing to the same repository path. Re-run the backup; if it persists, check for a second flowvault instance pointed at the same repository.",
		string(domain.KindBackupInProgress): "Wait for the running backup of this workflow to finish, then retry.",
		"vcs_token_rejected": "The version-control backend rejected the token. Check FLOWVAULT_VCS_TOKEN and its repository permissions.",
		"ledger_corrupt":     "The local ledger has an unreadable entry. Move the ledger file aside and re-run a backup to start a fresh history; keep the old file for audit.",
		"ledger_empty":       "No backups recorded yet. Run `flowvault backup now` to create the first snapshot.",
	}
}

// DefaultRemedies returns the built-in mapping.
func DefaultRemedies() *Remedies {
	return &Remedies{hints: defaultHints()}
}

// LoadRemedies overlays the built-in mapping with entries from a YAML
// file of signature: hint pairs. An empty path yields the defaults.
func LoadRemedies(path string) (*Remedies, error) {
	hints := defaultHints()
	if path == "" {
		return &Remedies{hints: hints}, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read remedies file: %w", err)
	}

	for signature, hint := range v.AllSettings() {
		if s, ok := hint.(string); ok {
			hints[signature] = s
		}
	}
	return &Remedies{hints: hints}, nil
}

// Hint returns the remediation for a signature, or NoKnownRemediation.
func (r *Remedies) Hint(signature string) string {
	if hint, ok := r.hints[signature]; ok {
		return hint
	}
	return NoKnownRemediation
}

// HintForError resolves a hint from a kinded core error.
func (r *Remedies) HintForError(err error) string {
	if kind := domain.KindOf(err); kind != "" {
		return r.Hint(string(kind))
	}
	return NoKnownRemediation
}
