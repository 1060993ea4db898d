package probes

import (
	"context"
	"fmt"
	"strings"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
)

const (
	logLevelError   = "error"
	logCategoryAuth = "auth"
)

// LogsProbe measures the error rate of the audit log and flags clustered authentication errors.
type LogsProbe struct {
	base
}

func NewLogsProbe(store ports.MonitoredStore, cfg Config, opts ...Option) LogsProbe {
	return LogsProbe{base: newBase(store, cfg, opts...)}
}

func (p LogsProbe) Name() model.ProbeName {
	return model.ProbeLogs
}

func (p LogsProbe) Execute(ctx context.Context) (model.ProbeResult, error) {
	metrics := model.Metrics{}
	since := p.now().Add(-p.cfg.LogWindow)

	total, err := p.store.Count(ctx, ports.CollectionAuditLogs, ports.CountFilter{Since: since})
	if err != nil {
		return p.failure(p.Name(), metrics, "failed to count log entries: %v", err), nil
	}

	errs, err := p.store.Count(ctx, ports.CollectionAuditLogs, ports.CountFilter{
		Equals: map[string]string{"level": logLevelError},
		Since:  since,
	})
	if err != nil {
		return p.failure(p.Name(), metrics, "failed to count error entries: %v", err), nil
	}

	authErrs, err := p.store.Count(ctx, ports.CollectionAuditLogs, ports.CountFilter{
		Equals: map[string]string{"level": logLevelError, "category": logCategoryAuth},
		Since:  since,
	})
	if err != nil {
		return p.failure(p.Name(), metrics, "failed to count authentication errors: %v", err), nil
	}

	rate := percentage(errs, total)

	metrics["logs.total"] = total
	metrics["logs.errors"] = errs
	metrics["logs.error_rate"] = rate
	metrics["logs.auth_errors"] = authErrs

	if rate > p.cfg.LogErrorRate {
		return p.result(p.Name(), model.ProbeStatusError,
			fmt.Sprintf("error rate %.2f%% exceeds %.2f%%", rate, p.cfg.LogErrorRate), metrics), nil
	}

	problems := make([]string, 0, 2)

	if rate > p.cfg.LogWarningRate {
		problems = append(problems, fmt.Sprintf("error rate %.2f%% exceeds %.2f%%", rate, p.cfg.LogWarningRate))
	}

	if p.cfg.AuthErrorClusterThreshold > 0 && authErrs >= p.cfg.AuthErrorClusterThreshold {
		problems = append(problems, fmt.Sprintf("%d authentication errors in the last %s", authErrs, p.cfg.LogWindow))
	}

	if len(problems) > 0 {
		return p.result(p.Name(), model.ProbeStatusWarning, strings.Join(problems, "; "), metrics), nil
	}

	return p.result(p.Name(), model.ProbeStatusHealthy,
		fmt.Sprintf("%d entries, error rate %.2f%%", total, rate), metrics), nil
}
