package repos_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/repos"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

const (
	insertRunSQL = `INSERT INTO system_health_checks (id,created_at,completed_at,created_by,settings,status,progress,current_probe,results,issues,warnings,metrics,overall_health,duration_ms,error) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	selectRunSQL = `SELECT id, created_at, completed_at, created_by, settings, status, progress, current_probe, results, issues, warnings, metrics, overall_health, duration_ms, error FROM system_health_checks`
)

var runRowColumns = []string{
	"id", "created_at", "completed_at", "created_by", "settings", "status", "progress",
	"current_probe", "results", "issues", "warnings", "metrics", "overall_health", "duration_ms", "error",
}

func runRunsRepoTest(
	t *testing.T,
	setupMock func(pgxmock.PgxPoolIface),
	testFn func(*testing.T, *repos.RunsRepository, *bytes.Buffer),
) {
	t.Helper()
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	setupMock(mock)

	logBuffer := &bytes.Buffer{}
	repo := repos.NewRunsRepository(mock, repos.NewPgxScanner(), logger.NewBufferedTestLogger(logBuffer))
	testFn(t, repo, logBuffer)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsRepository_Create(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		run         *model.HealthCheckRun
		execErr     error
		expectedErr error
	}{
		{
			name: "inserts a pending run",
			run:  model.NewHealthCheckRun(model.DefaultRunSettings(), "admin-1"),
		},
		{
			name:        "query error is wrapped",
			run:         model.NewHealthCheckRun(model.Only(model.ProbeDatabase), "admin-1"),
			execErr:     errors.New("duplicate key value violates unique constraint"),
			expectedErr: model.ErrDatabaseQuery,
		},
		{
			name: "refused connection reports the store unavailable",
			run:  model.NewHealthCheckRun(model.Only(model.ProbeDatabase), "admin-1"),
			execErr: &net.OpError{
				Op:  "dial",
				Net: "tcp",
				Err: errors.New("connect: connection refused"),
			},
			expectedErr: model.ErrStoreUnavailable,
		},
		{
			name:        "expired deadline reports the store unavailable",
			run:         model.NewHealthCheckRun(model.Only(model.ProbeDatabase), "admin-1"),
			execErr:     fmt.Errorf("acquire connection: %w", context.DeadlineExceeded),
			expectedErr: model.ErrStoreUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runRunsRepoTest(t,
				func(mock pgxmock.PgxPoolIface) {
					exp := mock.ExpectExec(regexp.QuoteMeta(insertRunSQL)).
						WithArgs(
							tc.run.ID.String(),
							tc.run.CreatedAt,
							tc.run.CompletedAt,
							tc.run.CreatedBy,
							pgxmock.AnyArg(),
							string(model.RunStatusPending),
							0,
							"",
							"[]",
							"[]",
							"[]",
							"{}",
							string(model.OverallHealthUnknown),
							tc.run.DurationMs,
							"",
						)

					if tc.execErr != nil {
						exp.WillReturnError(tc.execErr)

						return
					}

					exp.WillReturnResult(pgxmock.NewResult("INSERT", 1))
				},
				func(t *testing.T, repo *repos.RunsRepository, _ *bytes.Buffer) {
					err := repo.Create(t.Context(), tc.run)

					if tc.expectedErr != nil {
						require.ErrorIs(t, err, tc.expectedErr)

						return
					}

					require.NoError(t, err)
				},
			)
		})
	}
}

func TestRunsRepository_Update(t *testing.T) {
	t.Parallel()

	id := model.NewRunID()

	t.Run("sets only the provided columns and guards terminal rows", func(t *testing.T) {
		runRunsRepoTest(t,
			func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(regexp.QuoteMeta(
					`UPDATE system_health_checks SET progress = $1, current_probe = $2 WHERE id = $3 AND status NOT IN ($4,$5)`,
				)).
					WithArgs(43, "storage", id.String(), "completed", "failed").
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
			func(t *testing.T, repo *repos.RunsRepository, _ *bytes.Buffer) {
				err := repo.Update(t.Context(), id, model.RunUpdate{
					Progress:     model.Ptr(43),
					CurrentProbe: model.Ptr(model.ProbeStorage),
				})
				require.NoError(t, err)
			},
		)
	})

	t.Run("appends a result with a jsonb concatenation", func(t *testing.T) {
		runRunsRepoTest(t,
			func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(regexp.QuoteMeta(
					`UPDATE system_health_checks SET results = results || $1::jsonb WHERE id = $2 AND status NOT IN ($3,$4)`,
				)).
					WithArgs(pgxmock.AnyArg(), id.String(), "completed", "failed").
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
			func(t *testing.T, repo *repos.RunsRepository, _ *bytes.Buffer) {
				result := model.NewProbeResult(model.ProbeLogs, model.ProbeStatusHealthy, "ok", nil)

				require.NoError(t, repo.Update(t.Context(), id, model.RunUpdate{AppendResult: &result}))
			},
		)
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		runRunsRepoTest(t,
			func(pgxmock.PgxPoolIface) {},
			func(t *testing.T, repo *repos.RunsRepository, _ *bytes.Buffer) {
				require.NoError(t, repo.Update(t.Context(), id, model.RunUpdate{}))
			},
		)
	})

	t.Run("terminal row rejects the write", func(t *testing.T) {
		runRunsRepoTest(t,
			func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE system_health_checks SET progress = $1`)).
					WithArgs(50, id.String(), "completed", "failed").
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM system_health_checks WHERE id = $1`)).
					WithArgs(id.String()).
					WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("completed"))
			},
			func(t *testing.T, repo *repos.RunsRepository, _ *bytes.Buffer) {
				err := repo.Update(t.Context(), id, model.RunUpdate{Progress: model.Ptr(50)})
				require.ErrorIs(t, err, model.ErrRunTerminal)
			},
		)
	})

	t.Run("missing row reports not found", func(t *testing.T) {
		runRunsRepoTest(t,
			func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE system_health_checks SET progress = $1`)).
					WithArgs(50, id.String(), "completed", "failed").
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM system_health_checks WHERE id = $1`)).
					WithArgs(id.String()).
					WillReturnRows(pgxmock.NewRows([]string{"status"}))
			},
			func(t *testing.T, repo *repos.RunsRepository, _ *bytes.Buffer) {
				err := repo.Update(t.Context(), id, model.RunUpdate{Progress: model.Ptr(50)})
				require.ErrorIs(t, err, model.ErrRunNotFound)
			},
		)
	})
}

func TestRunsRepository_FetchByID(t *testing.T) {
	t.Parallel()

	id := model.NewRunID()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	t.Run("decodes json columns", func(t *testing.T) {
		runRunsRepoTest(t,
			func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(runRowColumns).AddRow(
					id.String(),
					now,
					&now,
					"admin-1",
					[]byte(`{"checkDatabase":true,"includeMetrics":true}`),
					"completed",
					100,
					"",
					[]byte(`[{"name":"database","status":"healthy","details":"ok","metrics":{"database.ping_ms":3},"timestamp":"2026-01-10T12:00:00Z"}]`),
					[]byte(`[]`),
					[]byte(`[]`),
					[]byte(`{"database.ping_ms":3}`),
					"healthy",
					model.Ptr(int64(120)),
					"",
				)

				mock.ExpectQuery(regexp.QuoteMeta(selectRunSQL + ` WHERE id = $1 LIMIT 1`)).
					WithArgs(id.String()).
					WillReturnRows(rows)
			},
			func(t *testing.T, repo *repos.RunsRepository, _ *bytes.Buffer) {
				run, err := repo.FetchByID(t.Context(), id)
				require.NoError(t, err)

				require.Equal(t, id, run.ID)
				require.Equal(t, model.RunStatusCompleted, run.Status)
				require.Equal(t, model.OverallHealthHealthy, run.OverallHealth)
				require.True(t, run.Settings.CheckDatabase)
				require.False(t, run.Settings.CheckLogs)
				require.Len(t, run.Results, 1)
				require.Equal(t, model.ProbeDatabase, run.Results[0].Name)
				require.Equal(t, int64(120), *run.DurationMs)
				require.Contains(t, run.Metrics, "database.ping_ms")
			},
		)
	})

	t.Run("missing row reports not found", func(t *testing.T) {
		runRunsRepoTest(t,
			func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(selectRunSQL + ` WHERE id = $1 LIMIT 1`)).
					WithArgs(id.String()).
					WillReturnRows(pgxmock.NewRows(runRowColumns))
			},
			func(t *testing.T, repo *repos.RunsRepository, _ *bytes.Buffer) {
				_, err := repo.FetchByID(t.Context(), id)
				require.ErrorIs(t, err, model.ErrRunNotFound)
			},
		)
	})
}

func TestRunsRepository_ListRecent(t *testing.T) {

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	runRunsRepoTest(t,
		func(mock pgxmock.PgxPoolIface) {
			rows := pgxmock.NewRows(runRowColumns).
				AddRow(model.NewRunID().String(), now, (*time.Time)(nil), "admin-1", []byte(`{}`), "in_progress", 43,
					"storage", []byte(`[]`), []byte(`[]`), []byte(`[]`), []byte(`{}`), "unknown", (*int64)(nil), "").
				AddRow("not-a-uuid", now, (*time.Time)(nil), "admin-1", []byte(`{}`), "pending", 0,
					"", []byte(`[]`), []byte(`[]`), []byte(`[]`), []byte(`{}`), "unknown", (*int64)(nil), "")

			mock.ExpectQuery(regexp.QuoteMeta(selectRunSQL + ` ORDER BY created_at DESC, id DESC LIMIT 5`)).
				WillReturnRows(rows)
		},
		func(t *testing.T, repo *repos.RunsRepository, logs *bytes.Buffer) {
			runs, err := repo.ListRecent(t.Context(), 5)
			require.NoError(t, err)
			require.Len(t, runs, 1)
			require.Equal(t, 43, runs[0].Progress)
			require.Nil(t, runs[0].CompletedAt)
			require.Contains(t, logs.String(), "skipping unreadable health check run")
		},
	)
}

func TestRunsRepository_Delete(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		affected    int64
		expectedErr error
	}{
		{name: "deletes an existing run", affected: 1},
		{name: "missing run reports not found", affected: 0, expectedErr: model.ErrRunNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := model.NewRunID()

			runRunsRepoTest(t,
				func(mock pgxmock.PgxPoolIface) {
					mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM system_health_checks WHERE id = $1`)).
						WithArgs(id.String()).
						WillReturnResult(pgxmock.NewResult("DELETE", tc.affected))
				},
				func(t *testing.T, repo *repos.RunsRepository, _ *bytes.Buffer) {
					err := repo.Delete(t.Context(), id)

					if tc.expectedErr != nil {
						require.ErrorIs(t, err, tc.expectedErr)

						return
					}

					require.NoError(t, err)
				},
			)
		})
	}
}
