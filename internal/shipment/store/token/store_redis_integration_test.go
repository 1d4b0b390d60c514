//go:build integration

package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"preclear/internal/shipment/store/token"
	id "preclear/pkg/domain"
	"preclear/pkg/platform/sentinel"
	"preclear/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *token.Redis
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = token.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestConsumeOnce() {
	ctx := context.Background()
	shipmentID := id.NewShipmentID()
	tok := token.New()

	s.Require().NoError(s.store.Save(ctx, tok, shipmentID, time.Minute))

	got, err := s.store.Consume(ctx, tok)
	s.Require().NoError(err)
	s.Equal(shipmentID, got)

	_, err = s.store.Consume(ctx, tok)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestUnknownToken() {
	_, err := s.store.Consume(context.Background(), token.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestExpiry() {
	ctx := context.Background()
	tok := token.New()
	s.Require().NoError(s.store.Save(ctx, tok, id.NewShipmentID(), 50*time.Millisecond))

	time.Sleep(150 * time.Millisecond)

	_, err := s.store.Consume(ctx, tok)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
