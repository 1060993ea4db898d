package repos_test

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/repos"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func newMonitoredStore(t *testing.T) (*repos.MonitoredStore, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})

	return repos.NewMonitoredStore(mock, logger.NewTestLogger()), mock
}

func TestMonitoredStore_Count(t *testing.T) {
	t.Parallel()

	since := time.Date(2026, 1, 3, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		collection ports.Collection
		filter     ports.CountFilter
		query      string
		args       []any
	}{
		{
			name:       "unfiltered",
			collection: ports.CollectionSessions,
			query:      `SELECT COUNT(*) FROM sessions`,
		},
		{
			name:       "equality filters in field order",
			collection: ports.CollectionAuditLogs,
			filter:     ports.CountFilter{Equals: map[string]string{"level": "error", "category": "auth"}},
			query:      `SELECT COUNT(*) FROM audit_logs WHERE category = $1 AND level = $2`,
			args:       []any{"auth", "error"},
		},
		{
			name:       "since defaults to created_at",
			collection: ports.CollectionBackups,
			filter:     ports.CountFilter{Since: since},
			query:      `SELECT COUNT(*) FROM backups WHERE created_at >= $1`,
			args:       []any{since},
		},
		{
			name:       "since on a custom field",
			collection: ports.CollectionUsers,
			filter:     ports.CountFilter{Since: since, SinceField: "last_login_at"},
			query:      `SELECT COUNT(*) FROM users WHERE last_login_at >= $1`,
			args:       []any{since},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store, mock := newMonitoredStore(t)

			mock.ExpectQuery(regexp.QuoteMeta(tc.query)).
				WithArgs(tc.args...).
				WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

			count, err := store.Count(t.Context(), tc.collection, tc.filter)
			require.NoError(t, err)
			require.Equal(t, int64(7), count)
		})
	}
}

func TestMonitoredStore_RejectsUnknownTargets(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		collection ports.Collection
		filter     ports.CountFilter
	}{
		{name: "unknown collection", collection: "pg_authid"},
		{
			name:       "column outside the allowlist",
			collection: ports.CollectionUsers,
			filter:     ports.CountFilter{Equals: map[string]string{"password_hash": "x"}},
		},
		{
			name:       "since field outside the allowlist",
			collection: ports.CollectionBackups,
			filter:     ports.CountFilter{Since: time.Now(), SinceField: "last_login_at"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store, _ := newMonitoredStore(t)

			_, err := store.Count(t.Context(), tc.collection, tc.filter)
			require.ErrorIs(t, err, model.ErrUnknownCollection)
		})
	}
}

func TestMonitoredStore_EstimateSize(t *testing.T) {
	t.Parallel()

	store, mock := newMonitoredStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT pg_total_relation_size($1::regclass)`)).
		WithArgs("companies").
		WillReturnRows(pgxmock.NewRows([]string{"size"}).AddRow(int64(8192)))

	size, err := store.EstimateSize(t.Context(), ports.CollectionCompanies)
	require.NoError(t, err)
	require.Equal(t, int64(8192), size)
}

func TestMonitoredStore_LatestTimestamp(t *testing.T) {
	t.Parallel()

	latest := time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC)

	t.Run("returns the newest match", func(t *testing.T) {
		t.Parallel()

		store, mock := newMonitoredStore(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX(created_at) FROM backups WHERE status = $1`)).
			WithArgs("success").
			WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(&latest))

		got, err := store.LatestTimestamp(t.Context(), ports.CollectionBackups, ports.CountFilter{
			Equals: map[string]string{"status": "success"},
		})
		require.NoError(t, err)
		require.Equal(t, latest, got)
	})

	t.Run("empty collection yields the zero time", func(t *testing.T) {
		t.Parallel()

		store, mock := newMonitoredStore(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX(created_at) FROM backups`)).
			WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow((*time.Time)(nil)))

		got, err := store.LatestTimestamp(t.Context(), ports.CollectionBackups, ports.CountFilter{})
		require.NoError(t, err)
		require.True(t, got.IsZero())
	})
}

func TestMonitoredStore_Ping(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := repos.NewMonitoredStore(mock, logger.NewTestLogger())

	mock.ExpectPing().WillReturnError(errors.New("dial tcp: refused"))

	require.ErrorIs(t, store.Ping(t.Context()), model.ErrDatabaseConnection)
	require.NoError(t, mock.ExpectationsWereMet())
}
