package decorator

import (
	"context"
	"strings"
	"time"

	"github.com/architeacher/diagnostics/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
)

type (
	commandMetricsDecorator[C Command, R any] struct {
		base   CommandHandler[C, R]
		client metrics.Client
	}

	queryMetricsDecorator[Q Query, R Result] struct {
		base   QueryHandler[Q, R]
		client metrics.Client
	}
)

func (d commandMetricsDecorator[C, R]) Handle(ctx context.Context, cmd C) (result R, err error) {
	defer func(start time.Time) {
		recordOutcome(ctx, d.client, "commands", generateActionName(cmd), start, err)
	}(time.Now())

	return d.base.Handle(ctx, cmd)
}

func (d queryMetricsDecorator[Q, R]) Execute(ctx context.Context, query Q) (result R, err error) {
	defer func(start time.Time) {
		recordOutcome(ctx, d.client, "queries", generateActionName(query), start, err)
	}(time.Now())

	return d.base.Execute(ctx, query)
}

func recordOutcome(ctx context.Context, client metrics.Client, kind, action string, start time.Time, err error) {
	if client == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	attrs := []attribute.KeyValue{
		attribute.String("action", strings.ToLower(action)),
		attribute.String("outcome", outcome),
	}

	client.Inc(ctx, "diagnostics."+kind+".duration_ms", time.Since(start).Milliseconds(), attrs...)
	client.Inc(ctx, "diagnostics."+kind+".total", 1, attrs...)
}
