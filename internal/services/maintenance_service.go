package services

import (
	"context"
	"errors"
	"time"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

const (
	defaultPurgeLimit = 500
	maxPurgeLimit     = 5000
)

// MaintenanceServiceDeps bundles collaborators for housekeeping tasks.
type MaintenanceServiceDeps struct {
	Staged repositories.StagedOrderRepository
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type maintenanceService struct {
	staged repositories.StagedOrderRepository
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewMaintenanceService constructs the housekeeping service.
func NewMaintenanceService(deps MaintenanceServiceDeps) (MaintenanceService, error) {
	if deps.Staged == nil {
		return nil, errors.New("maintenance service: staged order repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &maintenanceService{
		staged: deps.Staged,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// PurgeStagedOrders removes staged orders whose TTL elapsed. Backends with native expiry report zero.
func (s *maintenanceService) PurgeStagedOrders(ctx context.Context, cmd PurgeStagedOrdersCommand) (PurgeStagedOrdersResult, error) {
	limit := cmd.Limit
	switch {
	case limit <= 0:
		limit = defaultPurgeLimit
	case limit > maxPurgeLimit:
		limit = maxPurgeLimit
	}
	now := s.clock()
	removed, err := s.staged.PurgeExpired(ctx, now, limit)
	if err != nil {
		return PurgeStagedOrdersResult{}, translateRepoError(err)
	}
	s.logger(ctx, "maintenance.staged_orders.purged", map[string]any{
		"removed": removed,
		"limit":   limit,
	})
	return PurgeStagedOrdersResult{Removed: removed, RanAt: now}, nil
}
