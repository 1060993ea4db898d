package probes

import (
	"context"
	"fmt"
	"strings"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
)

const backupStatusSuccess = "success"

// BackupsProbe checks backup recency and success rate within the configured window.
type BackupsProbe struct {
	base
}

func NewBackupsProbe(store ports.MonitoredStore, cfg Config, opts ...Option) BackupsProbe {
	return BackupsProbe{base: newBase(store, cfg, opts...)}
}

func (p BackupsProbe) Name() model.ProbeName {
	return model.ProbeBackups
}

func (p BackupsProbe) Execute(ctx context.Context) (model.ProbeResult, error) {
	metrics := model.Metrics{}
	now := p.now()
	since := now.Add(-p.cfg.BackupWindow)

	total, err := p.store.Count(ctx, ports.CollectionBackups, ports.CountFilter{Since: since})
	if err != nil {
		return p.failure(p.Name(), metrics, "failed to count backups: %v", err), nil
	}

	successFilter := ports.CountFilter{
		Equals: map[string]string{"status": backupStatusSuccess},
		Since:  since,
	}

	succeeded, err := p.store.Count(ctx, ports.CollectionBackups, successFilter)
	if err != nil {
		return p.failure(p.Name(), metrics, "failed to count successful backups: %v", err), nil
	}

	latest, err := p.store.LatestTimestamp(ctx, ports.CollectionBackups, ports.CountFilter{
		Equals: successFilter.Equals,
	})
	if err != nil {
		return p.failure(p.Name(), metrics, "failed to find latest backup: %v", err), nil
	}

	metrics["backups.total"] = total

	if total == 0 {
		return p.result(p.Name(), model.ProbeStatusError,
			fmt.Sprintf("no backups recorded in the last %s", p.cfg.BackupWindow), metrics), nil
	}

	rate := percentage(succeeded, total)
	metrics["backups.success_rate"] = rate

	if latest.IsZero() {
		return p.result(p.Name(), model.ProbeStatusError, "no successful backup recorded", metrics), nil
	}

	age := now.Sub(latest)
	metrics["backups.last_age_hours"] = round2(age.Hours())

	if rate < p.cfg.BackupErrorRate {
		return p.result(p.Name(), model.ProbeStatusError,
			fmt.Sprintf("backup success rate %.2f%% is below %.2f%%", rate, p.cfg.BackupErrorRate), metrics), nil
	}

	problems := make([]string, 0, 2)

	if rate < p.cfg.BackupWarningRate {
		problems = append(problems, fmt.Sprintf("backup success rate %.2f%% is below %.2f%%", rate, p.cfg.BackupWarningRate))
	}

	if age > p.cfg.BackupStaleAfter {
		problems = append(problems, fmt.Sprintf("latest successful backup is %.1f hours old", age.Hours()))
	}

	if len(problems) > 0 {
		return p.result(p.Name(), model.ProbeStatusWarning, strings.Join(problems, "; "), metrics), nil
	}

	return p.result(p.Name(), model.ProbeStatusHealthy,
		fmt.Sprintf("%d backups, %.2f%% successful, latest %.1f hours ago", total, rate, age.Hours()), metrics), nil
}
