//go:build integration

package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"ftledger/internal/token/state"
	id "ftledger/pkg/domain"
	"ftledger/pkg/platform/sentinel"
	"ftledger/pkg/testutil/containers"
)

type RedisStoreIntegrationSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
	ctx   context.Context
}

func TestRedisStoreIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreIntegrationSuite))
}

func (s *RedisStoreIntegrationSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = NewRedisStore(s.redis.Client)
	s.ctx = context.Background()
}

func (s *RedisStoreIntegrationSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisStoreIntegrationSuite) TestRoundTripAndVersionGuard() {
	_, err := s.store.Load(s.ctx)
	s.True(errors.Is(err, sentinel.ErrNotFound))

	s.Require().NoError(s.store.Save(s.ctx, sampleSnapshot(s.T(), 7)))
	s.Require().NoError(s.store.Save(s.ctx, sampleSnapshot(s.T(), 3)))

	loaded, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(7), loaded.Version)

	restored, err := state.Restore(loaded)
	s.Require().NoError(err)
	s.Equal(id.NewAmount(250), restored.Ledger.BalanceOf(alice))
	s.Equal(id.NewAmount(10), restored.Allowances.Allowance(alice, root))
}

type PostgresStoreIntegrationSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
	ctx   context.Context
}

func TestPostgresStoreIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreIntegrationSuite))
}

func (s *PostgresStoreIntegrationSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgresStore(s.pg.DB, WithRetain(2))
	s.ctx = context.Background()
	s.Require().NoError(s.store.EnsureSchema(s.ctx))
}

func (s *PostgresStoreIntegrationSuite) SetupTest() {
	_, err := s.pg.DB.ExecContext(s.ctx, "TRUNCATE ledger_snapshots")
	s.Require().NoError(err)
}

func (s *PostgresStoreIntegrationSuite) TestSaveKeepsNewestVersions() {
	_, err := s.store.Load(s.ctx)
	s.True(errors.Is(err, sentinel.ErrNotFound))

	for v := uint64(1); v <= 4; v++ {
		s.Require().NoError(s.store.Save(s.ctx, sampleSnapshot(s.T(), v)))
	}

	versions, err := s.store.Versions(s.ctx)
	s.Require().NoError(err)
	s.ElementsMatch([]uint64{3, 4}, versions)

	loaded, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(4), loaded.Version)
	s.Equal([]id.ActorID{root}, loaded.Admins)

	restored, err := state.Restore(loaded)
	s.Require().NoError(err)
	s.Equal(id.NewAmount(1_000), restored.Ledger.TotalSupply())
}

func (s *PostgresStoreIntegrationSuite) TestSaveIsIdempotentPerVersion() {
	snap := sampleSnapshot(s.T(), 9)
	s.Require().NoError(s.store.Save(s.ctx, snap))
	s.Require().NoError(s.store.Save(s.ctx, snap))

	versions, err := s.store.Versions(s.ctx)
	s.Require().NoError(err)
	s.Equal([]uint64{9}, versions)
}
