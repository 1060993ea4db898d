//go:build integration

package itest

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage    = "postgres:18-alpine"
	postgresDatabase = "diagnostics_test"
	postgresUsername = "test"
	postgresPassword = "test"
	migrateImage     = "migrate/migrate:v4.19.1"
)

var monitoredTables = []string{"users", "sessions", "companies", "audit_logs", "backups", "security_policies"}

// PostgresSuite starts a migrated Postgres container shared by every test of the suite.
type PostgresSuite struct {
	suite.Suite
	suiteCtx    context.Context
	suiteCancel context.CancelFunc
	container   *postgres.PostgresContainer
	pool        *pgxpool.Pool
}

func (s *PostgresSuite) SetupSuite() {
	s.suiteCtx, s.suiteCancel = context.WithTimeout(context.Background(), 5*time.Minute)

	container, err := postgres.Run(s.suiteCtx,
		postgresImage,
		postgres.WithDatabase(postgresDatabase),
		postgres.WithUsername(postgresUsername),
		postgres.WithPassword(postgresPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.suiteCtx, "sslmode=disable")
	s.Require().NoError(err)

	pool, err := pgxpool.New(s.suiteCtx, connStr)
	s.Require().NoError(err)
	s.pool = pool

	s.runMigrations()
}

func (s *PostgresSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}

	if s.container != nil {
		_ = s.container.Terminate(s.suiteCtx)
	}

	if s.suiteCancel != nil {
		s.suiteCancel()
	}
}

func (s *PostgresSuite) SetupTest() {
	tables := append([]string{"system_health_checks"}, monitoredTables...)

	for _, table := range tables {
		_, err := s.pool.Exec(s.T().Context(), "TRUNCATE TABLE "+table)
		s.Require().NoError(err)
	}
}

func (s *PostgresSuite) exec(sql string, args ...any) {
	_, err := s.pool.Exec(s.T().Context(), sql, args...)
	s.Require().NoError(err)
}

func (s *PostgresSuite) runMigrations() {
	postgresPort, err := s.container.MappedPort(s.suiteCtx, "5432/tcp")
	s.Require().NoError(err)

	dbURL := fmt.Sprintf(
		"postgres://%s:%s@host.docker.internal:%s/%s?sslmode=disable",
		postgresUsername,
		postgresPassword,
		postgresPort.Port(),
		postgresDatabase,
	)

	migrationsPath, err := getMigrationsPath()
	s.Require().NoError(err)

	migrateContainer, err := testcontainers.GenericContainer(s.suiteCtx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: migrateImage,
			Cmd: []string{
				"-path", "/migrations",
				"-database", dbURL,
				"up",
			},
			Mounts: testcontainers.Mounts(
				testcontainers.BindMount(migrationsPath, "/migrations"),
			),
			WaitingFor: wait.ForExit().WithExitTimeout(30 * time.Second),
		},
		Started: true,
	})
	s.Require().NoError(err)
	defer migrateContainer.Terminate(s.suiteCtx)

	state, err := migrateContainer.State(s.suiteCtx)
	s.Require().NoError(err)
	s.Require().Equal(0, state.ExitCode, "migrations failed")
}

func getMigrationsPath() (string, error) {
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get current file path")
	}

	return filepath.Join(filepath.Dir(filepath.Dir(currentFile)), "migrations"), nil
}
