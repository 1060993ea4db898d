package probes

import (
	"context"
	"fmt"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
)

// AuthenticationProbe checks that administrators exist and that users still sign in.
type AuthenticationProbe struct {
	base
}

func NewAuthenticationProbe(store ports.MonitoredStore, cfg Config, opts ...Option) AuthenticationProbe {
	return AuthenticationProbe{base: newBase(store, cfg, opts...)}
}

func (p AuthenticationProbe) Name() model.ProbeName {
	return model.ProbeAuthentication
}

func (p AuthenticationProbe) Execute(ctx context.Context) (model.ProbeResult, error) {
	metrics := model.Metrics{}

	users, err := p.store.Count(ctx, ports.CollectionUsers, ports.CountFilter{})
	if err != nil {
		return p.failure(p.Name(), metrics, "failed to count users: %v", err), nil
	}

	admins, err := p.store.Count(ctx, ports.CollectionUsers, ports.CountFilter{
		Equals: map[string]string{"role": model.RoleAdmin},
	})
	if err != nil {
		return p.failure(p.Name(), metrics, "failed to count administrators: %v", err), nil
	}

	active, err := p.store.Count(ctx, ports.CollectionUsers, ports.CountFilter{
		Since:      p.now().Add(-p.cfg.InactivityWindow),
		SinceField: "last_login_at",
	})
	if err != nil {
		return p.failure(p.Name(), metrics, "failed to count active users: %v", err), nil
	}

	metrics["auth.users"] = users
	metrics["auth.admins"] = admins
	metrics["auth.active_users_7d"] = active

	if admins == 0 {
		return p.result(p.Name(), model.ProbeStatusError, "no administrator accounts configured", metrics), nil
	}

	if users > 0 && active == 0 {
		return p.result(p.Name(), model.ProbeStatusWarning,
			fmt.Sprintf("no user logins in the last %s", p.cfg.InactivityWindow), metrics), nil
	}

	return p.result(p.Name(), model.ProbeStatusHealthy,
		fmt.Sprintf("%d administrators, %d of %d users active", admins, active, users), metrics), nil
}
