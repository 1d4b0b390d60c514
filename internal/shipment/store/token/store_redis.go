package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id "preclear/pkg/domain"
	"preclear/pkg/platform/sentinel"
)

const keyPrefix = "preclear:token:"

// Redis stores tokens as short-lived keys; redis expiry enforces the TTL so
// no sweeper is needed.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Save(ctx context.Context, token string, shipmentID id.ShipmentID, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+token, shipmentID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("save preclear token: %w", err)
	}
	return nil
}

func (s *Redis) Peek(ctx context.Context, token string) (id.ShipmentID, error) {
	value, err := s.client.Get(ctx, keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return id.ShipmentID{}, sentinel.ErrNotFound
	}
	if err != nil {
		return id.ShipmentID{}, fmt.Errorf("peek preclear token: %w", err)
	}
	return parseShipmentID(value)
}

func (s *Redis) Consume(ctx context.Context, token string) (id.ShipmentID, error) {
	value, err := s.client.GetDel(ctx, keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return id.ShipmentID{}, sentinel.ErrNotFound
	}
	if err != nil {
		return id.ShipmentID{}, fmt.Errorf("consume preclear token: %w", err)
	}
	return parseShipmentID(value)
}

func parseShipmentID(value string) (id.ShipmentID, error) {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return id.ShipmentID{}, fmt.Errorf("stored token value is not a shipment id: %w", err)
	}
	return id.ShipmentID(parsed), nil
}
