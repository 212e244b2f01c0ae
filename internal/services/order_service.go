package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

// OrderServiceDeps bundles collaborators for the order service.
type OrderServiceDeps struct {
	Orders repositories.OrderRepository
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders repositories.OrderRepository
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewOrderService constructs the order read and status transition service.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderService{
		orders: deps.Orders,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, newValidationError("order id is required", "orderId")
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return Order{}, translateRepoError(err)
	}
	return order, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	target, ok := domain.ParseOrderStatus(cmd.TargetStatus)
	if !ok {
		return Order{}, newValidationError("unknown order status", "status")
	}
	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if raw := strings.TrimSpace(cmd.ExpectedStatus); raw != "" {
		expected, ok := domain.ParseOrderStatus(raw)
		if !ok {
			return Order{}, newValidationError("unknown order status", "expectedStatus")
		}
		if expected != order.Status {
			return Order{}, fmt.Errorf("%w: order is %s, expected %s", ErrInvalidState, order.Status, expected)
		}
	}
	if !order.Status.CanTransitionTo(target) {
		return Order{}, fmt.Errorf("%w: cannot move order from %s to %s", ErrInvalidState, order.Status, target)
	}

	updated, err := s.orders.UpdateStatus(ctx, order.ID, order.Status, target, s.clock())
	if err != nil {
		return Order{}, translateRepoError(err)
	}
	s.logger(ctx, "order.status.changed", map[string]any{
		"orderId": order.ID,
		"from":    string(order.Status),
		"to":      string(target),
		"actorId": cmd.ActorID,
	})
	return updated, nil
}
