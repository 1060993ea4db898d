package probes

import (
	"context"
	"fmt"

	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
)

type StorageProbe struct {
	base
}

func NewStorageProbe(store ports.MonitoredStore, cfg Config, opts ...Option) StorageProbe {
	return StorageProbe{base: newBase(store, cfg, opts...)}
}

func (p StorageProbe) Name() model.ProbeName {
	return model.ProbeStorage
}

func (p StorageProbe) Execute(ctx context.Context) (model.ProbeResult, error) {
	metrics := model.Metrics{}

	var totalBytes, totalDocuments int64

	for _, collection := range ports.MonitoredCollections {
		count, err := p.store.Count(ctx, collection, ports.CountFilter{})
		if err != nil {
			return p.failure(p.Name(), metrics, "failed to count %s: %v", collection, err), nil
		}

		size, err := p.store.EstimateSize(ctx, collection)
		if err != nil {
			return p.failure(p.Name(), metrics, "failed to size %s: %v", collection, err), nil
		}

		metrics[fmt.Sprintf("storage.%s.documents", collection)] = count
		metrics[fmt.Sprintf("storage.%s.bytes", collection)] = size

		totalDocuments += count
		totalBytes += size
	}

	metrics["storage.total_documents"] = totalDocuments
	metrics["storage.total_bytes"] = totalBytes

	if p.cfg.StorageSoftLimitBytes > 0 && totalBytes > p.cfg.StorageSoftLimitBytes {
		return p.result(p.Name(), model.ProbeStatusWarning,
			fmt.Sprintf("estimated storage %d bytes exceeds soft limit of %d bytes", totalBytes, p.cfg.StorageSoftLimitBytes),
			metrics), nil
	}

	return p.result(p.Name(), model.ProbeStatusHealthy,
		fmt.Sprintf("%d documents using an estimated %d bytes", totalDocuments, totalBytes), metrics), nil
}
