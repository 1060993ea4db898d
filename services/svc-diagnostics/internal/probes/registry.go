package probes

import (
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
)

// Registry holds one probe per canonical name and hands out the enabled subset in canonical order.
type Registry struct {
	probes map[model.ProbeName]ports.Probe
}

// NewRegistry registers the given probes. A later probe replaces an earlier one with the same name.
func NewRegistry(probes ...ports.Probe) *Registry {
	r := &Registry{probes: make(map[model.ProbeName]ports.Probe, len(probes))}

	for _, p := range probes {
		r.probes[p.Name()] = p
	}

	return r
}

// NewDefaultRegistry wires the seven standard probes against the monitored store.
func NewDefaultRegistry(store ports.MonitoredStore, cfg Config, opts ...Option) *Registry {
	return NewRegistry(
		NewDatabaseProbe(store, cfg, opts...),
		NewAuthenticationProbe(store, cfg, opts...),
		NewStorageProbe(store, cfg, opts...),
		NewPerformanceProbe(store, cfg, opts...),
		NewSecurityProbe(store, cfg, opts...),
		NewBackupsProbe(store, cfg, opts...),
		NewLogsProbe(store, cfg, opts...),
	)
}

// Build returns the enabled probes in canonical order. Unregistered names are skipped.
func (r *Registry) Build(settings model.RunSettings) []ports.Probe {
	enabled := make([]ports.Probe, 0, len(model.CanonicalProbeOrder))

	for _, name := range settings.EnabledProbes() {
		if p, ok := r.probes[name]; ok {
			enabled = append(enabled, p)
		}
	}

	return enabled
}
