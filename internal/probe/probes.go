package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/rolandhq/flowvault/internal/domain"
	"github.com/rolandhq/flowvault/internal/store"
)

// degradedLatency is the round-trip above which a reachable remote is
// reported degraded rather than healthy.
const degradedLatency = 2 * time.Second

// Remote checks connectivity to the workflow API. Read-only.
type Remote struct {
	Client   domain.WorkflowClient
	Remedies *Remedies
}

func (p *Remote) Name() string { return "remote_connectivity" }

func (p *Remote) Check(ctx context.Context) domain.ProbeResult {
	start := time.Now()
	workflows, err := p.Client.ListWorkflows(ctx)
	if err != nil {
		return domain.ProbeResult{
			Name:        p.Name(),
			Status:      domain.StatusFailing,
			Message:     fmt.Sprintf("workflow API unreachable: %v", err),
			Remediation: p.Remedies.HintForError(err),
		}
	}

	elapsed := time.Since(start)
	if elapsed > degradedLatency {
		return domain.ProbeResult{
			Name:    p.Name(),
			Status:  domain.StatusDegraded,
			Message: fmt.Sprintf("workflow API responded slowly (%s)", elapsed.Round(time.Millisecond)),
		}
	}

	return domain.ProbeResult{
		Name:    p.Name(),
		Status:  domain.StatusHealthy,
		Message: fmt.Sprintf("workflow API reachable, %d workflow(s) visible", len(workflows)),
	}
}

// VCS checks that the version-control backend accepts our token. Reading
// a path that does not exist yet still proves reachability. Read-only.
type VCS struct {
	Client   domain.VersionControl
	Path     string
	Remedies *Remedies
}

func (p *VCS) Name() string { return "vcs_reachability" }

func (p *VCS) Check(ctx context.Context) domain.ProbeResult {
	_, err := p.Client.ReadFile(ctx, p.Path)
	switch {
	case err == nil, domain.IsKind(err, domain.KindNotFound):
		return domain.ProbeResult{
			Name:    p.Name(),
			Status:  domain.StatusHealthy,
			Message: "repository reachable",
		}
	case domain.IsKind(err, domain.KindRemoteAuthFailed):
		return domain.ProbeResult{
			Name:        p.Name(),
			Status:      domain.StatusFailing,
			Message:     "repository rejected the token",
			Remediation: p.Remedies.Hint("vcs_token_rejected"),
		}
	default:
		return domain.ProbeResult{
			Name:        p.Name(),
			Status:      domain.StatusFailing,
			Message:     fmt.Sprintf("repository unreachable: %v", err),
			Remediation: p.Remedies.HintForError(err),
		}
	}
}

// Ledger checks the local backup history. Read-only.
type Ledger struct {
	Store    *store.Store
	Remedies *Remedies
}

func (p *Ledger) Name() string { return "local_ledger" }

func (p *Ledger) Check(ctx context.Context) domain.ProbeResult {
	records, err := p.Store.List()
	if err != nil {
		return domain.ProbeResult{
			Name:        p.Name(),
			Status:      domain.StatusFailing,
			Message:     fmt.Sprintf("cannot read ledger: %v", err),
			Remediation: p.Remedies.Hint("ledger_corrupt"),
		}
	}
	if len(records) == 0 {
		return domain.ProbeResult{
			Name:        p.Name(),
			Status:      domain.StatusDegraded,
			Message:     "ledger is empty",
			Remediation: p.Remedies.Hint("ledger_empty"),
		}
	}

	last := records[len(records)-1]
	return domain.ProbeResult{
		Name:   p.Name(),
		Status: domain.StatusHealthy,
		Message: fmt.Sprintf("%d record(s), last attempt %s at %s",
			len(records), last.Outcome, last.FinishedAt.Format(time.RFC3339)),
	}
}

// Environment checks that required settings and secrets are present.
// Configuration is validated at load time too; this probe re-checks the
// live process so stale daemons report drift after credential rotation.
type Environment struct {
	RemoteAPIKeySet bool
	VCSTokenSet     bool
	Remedies        *Remedies
}

func (p *Environment) Name() string { return "environment" }

func (p *Environment) Check(ctx context.Context) domain.ProbeResult {
	switch {
	case !p.RemoteAPIKeySet:
		return domain.ProbeResult{
			Name:        p.Name(),
			Status:      domain.StatusFailing,
			Message:     "remote API key is not set",
			Remediation: p.Remedies.Hint(string(domain.KindRemoteAuthFailed)),
		}
	case !p.VCSTokenSet:
		return domain.ProbeResult{
			Name:        p.Name(),
			Status:      domain.StatusFailing,
			Message:     "version-control token is not set",
			Remediation: p.Remedies.Hint("vcs_token_rejected"),
		}
	default:
		return domain.ProbeResult{
			Name:    p.Name(),
			Status:  domain.StatusHealthy,
			Message: "required settings present",
		}
	}
}
