package repos

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
)

const defaultSinceField = "created_at"

// filterableColumns is the allowlist of columns a CountFilter may reference.
var filterableColumns = map[ports.Collection][]string{
	ports.CollectionUsers:            {"role", "created_at", "last_login_at"},
	ports.CollectionSessions:         {"created_at"},
	ports.CollectionCompanies:        {"created_at"},
	ports.CollectionAuditLogs:        {"level", "category", "created_at"},
	ports.CollectionBackups:          {"status", "created_at"},
	ports.CollectionSecurityPolicies: {"kind", "created_at"},
}

// MonitoredStore reads the application tables that probes inspect.
type MonitoredStore struct {
	pool   PoolOps
	logger logger.Logger
}

var _ ports.MonitoredStore = (*MonitoredStore)(nil)

func NewMonitoredStore(pool PoolOps, log logger.Logger) *MonitoredStore {
	return &MonitoredStore{
		pool:   pool,
		logger: log,
	}
}

func (s *MonitoredStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", model.ErrDatabaseConnection, err)
	}

	return nil
}

func (s *MonitoredStore) Count(ctx context.Context, collection ports.Collection, filter ports.CountFilter) (int64, error) {
	where, err := buildFilter(collection, filter)
	if err != nil {
		return 0, err
	}

	builder := psql.Select("COUNT(*)").From(string(collection))
	for _, cond := range where {
		builder = builder.Where(cond)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}

	return count, nil
}

func (s *MonitoredStore) EstimateSize(ctx context.Context, collection ports.Collection) (int64, error) {
	if _, ok := filterableColumns[collection]; !ok {
		return 0, fmt.Errorf("%w: %s", model.ErrUnknownCollection, collection)
	}

	query, args, err := psql.Select().
		Column(sq.Expr("pg_total_relation_size(?::regclass)", string(collection))).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build size query: %w", err)
	}

	var size int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&size); err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}

	return size, nil
}

func (s *MonitoredStore) LatestTimestamp(ctx context.Context, collection ports.Collection, filter ports.CountFilter) (time.Time, error) {
	where, err := buildFilter(collection, filter)
	if err != nil {
		return time.Time{}, err
	}

	builder := psql.Select("MAX(created_at)").From(string(collection))
	for _, cond := range where {
		builder = builder.Where(cond)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to build latest query: %w", err)
	}

	var latest *time.Time
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}

	if latest == nil {
		return time.Time{}, nil
	}

	return latest.UTC(), nil
}

// buildFilter validates the filter against the allowlist and returns its conditions in a stable order.
func buildFilter(collection ports.Collection, filter ports.CountFilter) ([]sq.Sqlizer, error) {
	allowed, ok := filterableColumns[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownCollection, collection)
	}

	where := make([]sq.Sqlizer, 0, len(filter.Equals)+1)

	fields := make([]string, 0, len(filter.Equals))
	for field := range filter.Equals {
		fields = append(fields, field)
	}

	sort.Strings(fields)

	for _, field := range fields {
		if !slices.Contains(allowed, field) {
			return nil, fmt.Errorf("%w: %s.%s", model.ErrUnknownCollection, collection, field)
		}

		where = append(where, sq.Eq{field: filter.Equals[field]})
	}

	if !filter.Since.IsZero() {
		field := filter.SinceField
		if field == "" {
			field = defaultSinceField
		}

		if !slices.Contains(allowed, field) {
			return nil, fmt.Errorf("%w: %s.%s", model.ErrUnknownCollection, collection, field)
		}

		where = append(where, sq.GtOrEq{field: filter.Since})
	}

	return where, nil
}
