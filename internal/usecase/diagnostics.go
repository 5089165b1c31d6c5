package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rolandhq/flowvault/internal/domain"
)

// Diagnostics runs all health probes concurrently and aggregates their
// results. Probes are isolated: one failing or hanging probe never aborts
// the others, and a probe exceeding its timeout is reported as failing
// with a timeout message instead of stalling the report.
type Diagnostics struct {
	probes  []domain.Probe
	timeout time.Duration
	logger  Logger
}

func NewDiagnostics(probes []domain.Probe, timeout time.Duration, logger Logger) *Diagnostics {
	return &Diagnostics{probes: probes, timeout: timeout, logger: logger}
}

// Run produces one diagnostic report. The overall status is the worst
// status among the probes.
func (uc *Diagnostics) Run(ctx context.Context) domain.DiagnosticReport {
	results := make([]domain.ProbeResult, len(uc.probes))

	var wg sync.WaitGroup
	for i, probe := range uc.probes {
		wg.Add(1)
		go func(i int, probe domain.Probe) {
			defer wg.Done()
			results[i] = uc.runProbe(ctx, probe)
		}(i, probe)
	}
	wg.Wait()

	report := domain.DiagnosticReport{
		Overall:   domain.StatusHealthy,
		Probes:    results,
		CheckedAt: time.Now().UTC(),
	}
	for _, result := range results {
		report.Overall = report.Overall.Worse(result.Status)
	}

	uc.logger.Infof("Diagnostics completed: %s (%d probes)", report.Overall, len(results))
	return report
}

func (uc *Diagnostics) runProbe(ctx context.Context, probe domain.Probe) domain.ProbeResult {
	probeCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan domain.ProbeResult, 1)
	go func() {
		done <- probe.Check(probeCtx)
	}()

	select {
	case result := <-done:
		result.CheckedAt = start.UTC()
		result.Duration = time.Since(start)
		return result
	case <-probeCtx.Done():
		return domain.ProbeResult{
			Name:      probe.Name(),
			Status:    domain.StatusFailing,
			Message:   "probe timeout",
			CheckedAt: start.UTC(),
			Duration:  time.Since(start),
		}
	}
}
