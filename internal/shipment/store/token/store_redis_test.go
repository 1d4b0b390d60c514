package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	id "preclear/pkg/domain"
	"preclear/pkg/platform/sentinel"
)

type RedisTokenSuite struct {
	suite.Suite
	redis *miniredis.Miniredis
	store *Redis
	ctx   context.Context
}

func TestRedisTokenSuite(t *testing.T) {
	suite.Run(t, new(RedisTokenSuite))
}

func (s *RedisTokenSuite) SetupTest() {
	s.redis = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.redis.Addr()})
	s.store = NewRedis(client)
	s.ctx = context.Background()
}

// TestConsume verifies single-use semantics: a token verifies once and is
// gone afterwards.
func (s *RedisTokenSuite) TestConsume() {
	shipmentID := id.ShipmentID(uuid.New())
	tok := New()

	s.Run("saved token resolves to its shipment", func() {
		s.Require().NoError(s.store.Save(s.ctx, tok, shipmentID, time.Hour))

		got, err := s.store.Consume(s.ctx, tok)
		s.Require().NoError(err)
		s.Equal(shipmentID, got)
	})

	s.Run("second consume fails", func() {
		_, err := s.store.Consume(s.ctx, tok)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown token fails", func() {
		_, err := s.store.Consume(s.ctx, New())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestPeek verifies verification without removal.
func (s *RedisTokenSuite) TestPeek() {
	shipmentID := id.ShipmentID(uuid.New())
	tok := New()
	s.Require().NoError(s.store.Save(s.ctx, tok, shipmentID, time.Hour))

	s.Run("peek does not retire the token", func() {
		got, err := s.store.Peek(s.ctx, tok)
		s.Require().NoError(err)
		s.Equal(shipmentID, got)

		got, err = s.store.Peek(s.ctx, tok)
		s.Require().NoError(err)
		s.Equal(shipmentID, got)
	})

	s.Run("consume after peek still works once", func() {
		got, err := s.store.Consume(s.ctx, tok)
		s.Require().NoError(err)
		s.Equal(shipmentID, got)

		_, err = s.store.Peek(s.ctx, tok)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestExpiry verifies redis TTL enforcement.
func (s *RedisTokenSuite) TestExpiry() {
	shipmentID := id.ShipmentID(uuid.New())
	tok := New()
	s.Require().NoError(s.store.Save(s.ctx, tok, shipmentID, time.Minute))

	s.redis.FastForward(2 * time.Minute)

	_, err := s.store.Consume(s.ctx, tok)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
