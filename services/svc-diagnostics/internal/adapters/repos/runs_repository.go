package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const runsTable = "system_health_checks"

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	runColumns = []string{
		"id", "created_at", "completed_at", "created_by", "settings", "status", "progress",
		"current_probe", "results", "issues", "warnings", "metrics", "overall_health", "duration_ms", "error",
	}

	terminalStatuses = []string{string(model.RunStatusCompleted), string(model.RunStatusFailed)}
)

type (
	// PoolOps defines the subset of pgxpool.Pool used by the repositories.
	PoolOps interface {
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
		Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
		Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
		Ping(ctx context.Context) error
	}

	// Scanner maps result rows onto db-tagged structs.
	Scanner interface {
		ScanAll(dst any, rows pgx.Rows) error
		ScanOne(dst any, rows pgx.Rows) error
		IsNotFound(err error) bool
	}

	// PgxScanner is the scany backed Scanner.
	PgxScanner struct{}

	// RunsRepository persists health check runs in Postgres.
	RunsRepository struct {
		pool    PoolOps
		scanner Scanner
		logger  logger.Logger
	}

	runRow struct {
		ID            string     `db:"id"`
		CreatedAt     time.Time  `db:"created_at"`
		CompletedAt   *time.Time `db:"completed_at"`
		CreatedBy     string     `db:"created_by"`
		Settings      []byte     `db:"settings"`
		Status        string     `db:"status"`
		Progress      int        `db:"progress"`
		CurrentProbe  string     `db:"current_probe"`
		Results       []byte     `db:"results"`
		Issues        []byte     `db:"issues"`
		Warnings      []byte     `db:"warnings"`
		Metrics       []byte     `db:"metrics"`
		OverallHealth string     `db:"overall_health"`
		DurationMs    *int64     `db:"duration_ms"`
		Error         string     `db:"error"`
	}
)

var _ ports.RunRepository = (*RunsRepository)(nil)

func NewPgxScanner() PgxScanner {
	return PgxScanner{}
}

func (PgxScanner) ScanAll(dst any, rows pgx.Rows) error { return pgxscan.ScanAll(dst, rows) }

func (PgxScanner) ScanOne(dst any, rows pgx.Rows) error { return pgxscan.ScanOne(dst, rows) }

func (PgxScanner) IsNotFound(err error) bool { return pgxscan.NotFound(err) }

func NewRunsRepository(pool PoolOps, scanner Scanner, log logger.Logger) *RunsRepository {
	return &RunsRepository{
		pool:    pool,
		scanner: scanner,
		logger:  log,
	}
}

func (r *RunsRepository) Create(ctx context.Context, run *model.HealthCheckRun) error {
	doc := toRunDocument(run)

	settings, results, issues, warnings, metrics, err := marshalDocumentParts(doc)
	if err != nil {
		return err
	}

	query, args, err := psql.Insert(runsTable).
		Columns(runColumns...).
		Values(
			doc.ID,
			doc.CreatedAt,
			doc.CompletedAt,
			doc.CreatedBy,
			settings,
			doc.Status,
			doc.Progress,
			doc.CurrentProbe,
			results,
			issues,
			warnings,
			metrics,
			doc.OverallHealth,
			doc.DurationMs,
			doc.Error,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return storeError(err)
	}

	return nil
}

// Update applies only the fields present in the update, in a single statement.
// Terminal rows are excluded by the WHERE clause.
func (r *RunsRepository) Update(ctx context.Context, id model.RunID, update model.RunUpdate) error {
	builder := psql.Update(runsTable)

	builder, changed, err := applyRunUpdate(builder, update)
	if err != nil {
		return err
	}

	if !changed {
		return nil
	}

	query, args, err := builder.
		Where(sq.Eq{"id": id.String()}).
		Where(sq.NotEq{"status": terminalStatuses}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return storeError(err)
	}

	if result.RowsAffected() > 0 {
		return nil
	}

	return r.explainMissedUpdate(ctx, id)
}

func (r *RunsRepository) FetchByID(ctx context.Context, id model.RunID) (*model.HealthCheckRun, error) {
	query, args, err := psql.Select(runColumns...).
		From(runsTable).
		Where(sq.Eq{"id": id.String()}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError(err)
	}
	defer rows.Close()

	var row runRow
	if err := r.scanner.ScanOne(&row, rows); err != nil {
		if r.scanner.IsNotFound(err) {
			return nil, model.ErrRunNotFound
		}

		return nil, storeError(err)
	}

	return r.convertRowToRun(row)
}

func (r *RunsRepository) ListRecent(ctx context.Context, limit uint) ([]*model.HealthCheckRun, error) {
	query, args, err := psql.Select(runColumns...).
		From(runsTable).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError(err)
	}
	defer rows.Close()

	var runRows []runRow
	if err := r.scanner.ScanAll(&runRows, rows); err != nil {
		return nil, storeError(err)
	}

	runs := make([]*model.HealthCheckRun, 0, len(runRows))

	for index := range runRows {
		run, err := r.convertRowToRun(runRows[index])
		if err != nil {
			r.logger.Warn().Err(err).Str("run_id", runRows[index].ID).Msg("skipping unreadable health check run")

			continue
		}

		runs = append(runs, run)
	}

	return runs, nil
}

func (r *RunsRepository) Delete(ctx context.Context, id model.RunID) error {
	query, args, err := psql.Delete(runsTable).
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return storeError(err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrRunNotFound
	}

	return nil
}

func (r *RunsRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}

	return nil
}

func (r *RunsRepository) explainMissedUpdate(ctx context.Context, id model.RunID) error {
	query, args, err := psql.Select("status").
		From(runsTable).
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build select query: %w", err)
	}

	var status string
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrRunNotFound
		}

		return storeError(err)
	}

	return model.ErrRunTerminal
}

func (r *RunsRepository) convertRowToRun(row runRow) (*model.HealthCheckRun, error) {
	doc := runDocument{
		ID:            row.ID,
		CreatedAt:     row.CreatedAt,
		CompletedAt:   row.CompletedAt,
		CreatedBy:     row.CreatedBy,
		Status:        row.Status,
		Progress:      row.Progress,
		CurrentProbe:  row.CurrentProbe,
		OverallHealth: row.OverallHealth,
		DurationMs:    row.DurationMs,
		Error:         row.Error,
	}

	parts := []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"settings", row.Settings, &doc.Settings},
		{"results", row.Results, &doc.Results},
		{"issues", row.Issues, &doc.Issues},
		{"warnings", row.Warnings, &doc.Warnings},
		{"metrics", row.Metrics, &doc.Metrics},
	}

	for _, part := range parts {
		if len(part.raw) == 0 {
			continue
		}

		if err := json.Unmarshal(part.raw, part.dst); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", part.name, err)
		}
	}

	return doc.toDomain()
}

func applyRunUpdate(builder sq.UpdateBuilder, u model.RunUpdate) (sq.UpdateBuilder, bool, error) {
	changed := false

	set := func(column string, value any) {
		builder = builder.Set(column, value)
		changed = true
	}

	if u.Status != nil {
		set("status", string(*u.Status))
	}

	if u.Progress != nil {
		set("progress", *u.Progress)
	}

	if u.CurrentProbe != nil {
		set("current_probe", string(*u.CurrentProbe))
	}

	if u.AppendResult != nil {
		raw, err := json.Marshal([]resultDocument{toResultDocument(*u.AppendResult)})
		if err != nil {
			return builder, false, fmt.Errorf("failed to encode result: %w", err)
		}

		set("results", sq.Expr("results || ?::jsonb", string(raw)))
	}

	jsonColumns := []struct {
		column  string
		present bool
		value   any
	}{
		{"issues", u.Issues != nil, toFindingDocuments(u.Issues)},
		{"warnings", u.Warnings != nil, toFindingDocuments(u.Warnings)},
		{"metrics", u.Metrics != nil, metricsOrEmpty(u.Metrics)},
	}

	for _, c := range jsonColumns {
		if !c.present {
			continue
		}

		raw, err := json.Marshal(c.value)
		if err != nil {
			return builder, false, fmt.Errorf("failed to encode %s: %w", c.column, err)
		}

		set(c.column, string(raw))
	}

	if u.OverallHealth != nil {
		set("overall_health", string(*u.OverallHealth))
	}

	if u.CompletedAt != nil {
		set("completed_at", *u.CompletedAt)
	}

	if u.DurationMs != nil {
		set("duration_ms", *u.DurationMs)
	}

	if u.Error != nil {
		set("error", strings.TrimSpace(*u.Error))
	}

	return builder, changed, nil
}

func marshalDocumentParts(doc runDocument) (settings, results, issues, warnings, metrics string, err error) {
	encoded := make([]string, 0, 5)

	for _, v := range []any{doc.Settings, doc.Results, doc.Issues, doc.Warnings, doc.Metrics} {
		raw, mErr := json.Marshal(v)
		if mErr != nil {
			return "", "", "", "", "", fmt.Errorf("failed to encode run document: %w", mErr)
		}

		encoded = append(encoded, string(raw))
	}

	return encoded[0], encoded[1], encoded[2], encoded[3], encoded[4], nil
}

// storeError reports connection-level failures as ErrStoreUnavailable so callers can answer 503.
func storeError(err error) error {
	var (
		connectErr *pgconn.ConnectError
		netErr     net.Error
	)

	switch {
	case errors.As(err, &connectErr),
		errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded),
		pgconn.Timeout(err),
		pgconn.SafeToRetry(err):
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}
}
