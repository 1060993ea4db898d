package repos_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/adapters/repos"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/infrastructure"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/ports"
	"github.com/stretchr/testify/suite"
	"github.com/throttled/throttled/v2"
)

type IdempotencyRepositoryTestSuite struct {
	suite.Suite
	miniRedis   *miniredis.Miniredis
	keydbClient *infrastructure.KeydbClient
	repo        *repos.IdempotencyRepository
}

func TestIdempotencyRepositoryTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(IdempotencyRepositoryTestSuite))
}

func (s *IdempotencyRepositoryTestSuite) SetupTest() {
	var err error
	s.miniRedis, err = miniredis.Run()
	s.Require().NoError(err)

	s.keydbClient = infrastructure.NewKeyDBClient(newTestCacheConfig(s.miniRedis), logger.NewTestLogger())
	s.repo = repos.NewIdempotencyRepository(s.keydbClient)
}

func (s *IdempotencyRepositoryTestSuite) TearDownTest() {
	_ = s.keydbClient.Close()
	s.miniRedis.Close()
}

func (s *IdempotencyRepositoryTestSuite) TestGet_Miss() {
	response, err := s.repo.Get(context.Background(), "missing")

	s.Require().NoError(err)
	s.Require().Nil(response)
}

func (s *IdempotencyRepositoryTestSuite) TestSetAndGet() {
	ctx := context.Background()
	stored := &ports.CachedResponse{
		StatusCode: http.StatusAccepted,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(`{"runId":"2f1f1b8e-1c1e-4c7b-9d7e-0a5d2b0c1e11"}`),
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}

	s.Require().NoError(s.repo.Set(ctx, "key", stored, time.Hour))

	response, err := s.repo.Get(ctx, "key")
	s.Require().NoError(err)
	s.Require().Equal(stored.StatusCode, response.StatusCode)
	s.Require().Equal(stored.Headers, response.Headers)
	s.Require().Equal(stored.Body, response.Body)
	s.Require().True(stored.CreatedAt.Equal(response.CreatedAt))
}

func (s *IdempotencyRepositoryTestSuite) TestGet_CorruptedPayload() {
	s.Require().NoError(s.miniRedis.Set("key", "garbage"))

	_, err := s.repo.Get(context.Background(), "key")
	s.Require().ErrorContains(err, "unmarshalling cached response")
}

func (s *IdempotencyRepositoryTestSuite) TestLockLifecycle() {
	ctx := context.Background()

	acquired, err := s.repo.SetLock(ctx, "key", time.Minute)
	s.Require().NoError(err)
	s.Require().True(acquired)
	s.Require().True(s.miniRedis.Exists("key:lock"))

	acquired, err = s.repo.SetLock(ctx, "key", time.Minute)
	s.Require().NoError(err)
	s.Require().False(acquired)

	s.Require().NoError(s.repo.ReleaseLock(ctx, "key"))
	s.Require().False(s.miniRedis.Exists("key:lock"))
}

type RateLimitStoreTestSuite struct {
	suite.Suite
	miniRedis   *miniredis.Miniredis
	keydbClient *infrastructure.KeydbClient
	store       *repos.RateLimitStore
}

func TestRateLimitStoreTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(RateLimitStoreTestSuite))
}

func (s *RateLimitStoreTestSuite) SetupTest() {
	var err error
	s.miniRedis, err = miniredis.Run()
	s.Require().NoError(err)

	s.keydbClient = infrastructure.NewKeyDBClient(newTestCacheConfig(s.miniRedis), logger.NewTestLogger())
	s.store = repos.NewRateLimitStore(s.keydbClient)
}

func (s *RateLimitStoreTestSuite) TearDownTest() {
	_ = s.keydbClient.Close()
	s.miniRedis.Close()
}

func (s *RateLimitStoreTestSuite) TestGCRALimitsBurst() {
	limiter, err := throttled.NewGCRARateLimiterCtx(s.store, throttled.RateQuota{
		MaxRate:  throttled.PerMin(1),
		MaxBurst: 1,
	})
	s.Require().NoError(err)

	ctx := context.Background()

	for i := range 2 {
		limited, _, err := limiter.RateLimitCtx(ctx, "admin", 1)
		s.Require().NoError(err)
		s.Require().False(limited, "request %d should pass", i)
	}

	limited, result, err := limiter.RateLimitCtx(ctx, "admin", 1)
	s.Require().NoError(err)
	s.Require().True(limited)
	s.Require().Positive(result.RetryAfter)

	s.Require().True(s.miniRedis.Exists("diagnostics:ratelimit:admin"))
}
