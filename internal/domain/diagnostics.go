package domain

import (
	"context"
	"time"
)

// ProbeStatus is the health classification of a single probe.
type ProbeStatus string

const (
	StatusHealthy  ProbeStatus = "healthy"
	StatusDegraded ProbeStatus = "degraded"
	StatusFailing  ProbeStatus = "failing"
)

// severity order for aggregation: failing > degraded > healthy.
func (s ProbeStatus) severity() int {
	switch s {
	case StatusFailing:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Worse returns the more severe of the two statuses.
func (s ProbeStatus) Worse(o ProbeStatus) ProbeStatus {
	if o.severity() > s.severity() {
		return o
	}
	return s
}

// ProbeResult is one probe's contribution to a diagnostic report.
type ProbeResult struct {
	Name        string        `json:"name"`
	Status      ProbeStatus   `json:"status"`
	Message     string        `json:"message"`
	Remediation string        `json:"remediation,omitempty"`
	CheckedAt   time.Time     `json:"checked_at"`
	Duration    time.Duration `json:"duration"`
}

// DiagnosticReport aggregates probe results. Overall is the worst status
// among the probes. Reports are ephemeral unless explicitly exported.
type DiagnosticReport struct {
	Overall   ProbeStatus   `json:"overall"`
	Probes    []ProbeResult `json:"probes"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Probe is one independent health check. Probes must be read-only; they
// run concurrently with each other and with in-flight backups.
type Probe interface {
	Name() string
	Check(ctx context.Context) ProbeResult
}
