// Package firestore keeps staged orders in a Firestore collection.
package firestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	pfirestore "github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/firestore"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

const stagedOrdersCollection = "staged_orders"

// stagedOrderDocument stores the prepared order as JSON so money keeps its decimal encoding;
// expiresAt is a native timestamp for range queries and a Firestore TTL policy.
type stagedOrderDocument struct {
	Payload   string    `firestore:"payload"`
	CreatedAt time.Time `firestore:"createdAt"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}

// StagedOrderRepository implements repositories.StagedOrderRepository on Firestore.
type StagedOrderRepository struct {
	docs *pfirestore.Collection[stagedOrderDocument]
	now  func() time.Time
}

var _ repositories.StagedOrderRepository = (*StagedOrderRepository)(nil)

// NewStagedOrderRepository binds the repository to the provider.
func NewStagedOrderRepository(provider *pfirestore.Provider, clock func() time.Time) (*StagedOrderRepository, error) {
	if provider == nil {
		return nil, fmt.Errorf("staged order repository: firestore provider is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &StagedOrderRepository{
		docs: pfirestore.NewCollection[stagedOrderDocument](provider, stagedOrdersCollection),
		now:  clock,
	}, nil
}

func (r *StagedOrderRepository) Save(ctx context.Context, order domain.PreparedOrder) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("staged order repository: encode: %w", err)
	}
	_, err = r.docs.Set(ctx, order.TempOrderNumber, stagedOrderDocument{
		Payload:   string(payload),
		CreatedAt: order.CreatedAt.UTC(),
		ExpiresAt: order.ExpiresAt.UTC(),
	})
	return err
}

// Get treats documents past expiresAt as missing; Firestore TTL deletion is not immediate.
func (r *StagedOrderRepository) Get(ctx context.Context, tempOrderNumber string) (domain.PreparedOrder, error) {
	doc, err := r.docs.Get(ctx, tempOrderNumber)
	if err != nil {
		return domain.PreparedOrder{}, err
	}
	if !r.now().Before(doc.Data.ExpiresAt) {
		return domain.PreparedOrder{}, repositories.NotFound("staged_orders.get", "staged order %s expired", tempOrderNumber)
	}
	var order domain.PreparedOrder
	if err := json.Unmarshal([]byte(doc.Data.Payload), &order); err != nil {
		return domain.PreparedOrder{}, fmt.Errorf("staged order repository: decode: %w", err)
	}
	return order, nil
}

func (r *StagedOrderRepository) Delete(ctx context.Context, tempOrderNumber string) error {
	return r.docs.Delete(ctx, tempOrderNumber)
}

func (r *StagedOrderRepository) PurgeExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	cutoff := now.UTC()
	return r.docs.DeleteWhere(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("expiresAt", "<=", cutoff).OrderBy("expiresAt", firestore.Asc)
	}, func(doc stagedOrderDocument) bool {
		return !doc.ExpiresAt.After(cutoff)
	}, limit)
}
