// Package redisstore keeps staged orders in Redis, relying on key expiry for the TTL.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

const defaultPrefix = "staged:"

// StagedOrders implements repositories.StagedOrderRepository.
type StagedOrders struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ repositories.StagedOrderRepository = (*StagedOrders)(nil)

// Option customises StagedOrders.
type Option func(*StagedOrders)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *StagedOrders) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock injects the clock used to derive key TTLs.
func WithClock(clock func() time.Time) Option {
	return func(s *StagedOrders) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewStagedOrders constructs the Redis staged order store.
func NewStagedOrders(client redis.UniversalClient, opts ...Option) *StagedOrders {
	s := &StagedOrders{client: client, prefix: defaultPrefix, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *StagedOrders) Save(ctx context.Context, order domain.PreparedOrder) error {
	ttl := order.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return repositories.NewStoreError("staged_orders.save", repositories.KindConflict,
			fmt.Errorf("staged order %s already expired", order.TempOrderNumber))
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return repositories.NewStoreError("staged_orders.save", repositories.KindUnknown, err)
	}
	if err := s.client.Set(ctx, s.key(order.TempOrderNumber), payload, ttl).Err(); err != nil {
		return wrapErr("staged_orders.save", err)
	}
	return nil
}

func (s *StagedOrders) Get(ctx context.Context, tempOrderNumber string) (domain.PreparedOrder, error) {
	raw, err := s.client.Get(ctx, s.key(tempOrderNumber)).Bytes()
	if err != nil {
		return domain.PreparedOrder{}, wrapErr("staged_orders.get", err)
	}
	var order domain.PreparedOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return domain.PreparedOrder{}, repositories.NewStoreError("staged_orders.get", repositories.KindUnknown, err)
	}
	return order, nil
}

func (s *StagedOrders) Delete(ctx context.Context, tempOrderNumber string) error {
	if err := s.client.Del(ctx, s.key(tempOrderNumber)).Err(); err != nil {
		return wrapErr("staged_orders.delete", err)
	}
	return nil
}

// PurgeExpired is a no-op; Redis expires staged keys itself.
func (s *StagedOrders) PurgeExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

// Ping reports Redis reachability for readiness checks.
func (s *StagedOrders) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *StagedOrders) key(tempOrderNumber string) string {
	return s.prefix + tempOrderNumber
}

func wrapErr(op string, err error) error {
	if errors.Is(err, redis.Nil) {
		return repositories.NewStoreError(op, repositories.KindNotFound, err)
	}
	return repositories.NewStoreError(op, repositories.KindUnavailable, err)
}
