package probes

import (
	"context"
	"fmt"
	"strings"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
)

type SecurityProbe struct {
	base
}

func NewSecurityProbe(store ports.MonitoredStore, cfg Config, opts ...Option) SecurityProbe {
	return SecurityProbe{base: newBase(store, cfg, opts...)}
}

func (p SecurityProbe) Name() model.ProbeName {
	return model.ProbeSecurity
}

func (p SecurityProbe) Execute(ctx context.Context) (model.ProbeResult, error) {
	metrics := model.Metrics{}

	missing := make([]string, 0)

	for _, kind := range p.cfg.RequiredPolicies {
		count, err := p.store.Count(ctx, ports.CollectionSecurityPolicies, ports.CountFilter{
			Equals: map[string]string{"kind": kind},
		})
		if err != nil {
			return p.failure(p.Name(), metrics, "failed to look up %s policy: %v", kind, err), nil
		}

		if count == 0 {
			missing = append(missing, kind)
		}
	}

	required := len(p.cfg.RequiredPolicies)
	present := required - len(missing)

	metrics["security.policies_required"] = required
	metrics["security.policies_present"] = present

	switch {
	case required > 0 && present == 0:
		return p.result(p.Name(), model.ProbeStatusError, "no required security policies configured", metrics), nil
	case len(missing) > 0:
		return p.result(p.Name(), model.ProbeStatusWarning,
			fmt.Sprintf("missing security policies: %s", strings.Join(missing, ", ")), metrics), nil
	default:
		return p.result(p.Name(), model.ProbeStatusHealthy,
			fmt.Sprintf("all %d required security policies present", required), metrics), nil
	}
}
