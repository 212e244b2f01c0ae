package repositories

import (
	"context"
	"time"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists paid orders. Orders are unique on (payment provider, payment reference)
// and on the temp order number of the prepared order they came from.
type OrderRepository interface {
	// CreateIfAbsent inserts order unless an order already exists for its payment. The returned
	// order is the stored row and created reports whether this call inserted it. When a different
	// payment already holds the temp order number it fails with IsConflict wrapping
	// ErrPreparedOrderPaid.
	CreateIfAbsent(ctx context.Context, order domain.Order) (domain.Order, bool, error)
	// FindByPayment returns a RepositoryError with IsNotFound when no order matches.
	FindByPayment(ctx context.Context, provider, reference string) (domain.Order, error)
	Get(ctx context.Context, orderID string) (domain.Order, error)
	// UpdateStatus moves the order from `from` to `to`; a concurrent change yields IsConflict.
	UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, at time.Time) (domain.Order, error)
}

// StagedOrderRepository holds prepared orders until they are confirmed or expire.
type StagedOrderRepository interface {
	Save(ctx context.Context, order domain.PreparedOrder) error
	// Get returns IsNotFound for unknown or already-expired entries.
	Get(ctx context.Context, tempOrderNumber string) (domain.PreparedOrder, error)
	Delete(ctx context.Context, tempOrderNumber string) error
	PurgeExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// SettingsRepository stores checkout settings edited by staff.
type SettingsRepository interface {
	// DeliveryFees returns IsNotFound when no table has been saved yet.
	DeliveryFees(ctx context.Context) (domain.DeliveryFeeTable, error)
	SaveDeliveryFees(ctx context.Context, fees domain.DeliveryFeeTable, at time.Time) error
	// VAT returns IsNotFound when no configuration has been saved yet.
	VAT(ctx context.Context) (domain.VATConfig, error)
	SaveVAT(ctx context.Context, vat domain.VATConfig, at time.Time) error
}

// CounterRepository issues monotonically increasing sequence values.
type CounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}
