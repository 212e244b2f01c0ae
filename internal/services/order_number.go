package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

// DefaultOrderNumberPrefix prefixes every order number, e.g. SP-2025-000042.
const DefaultOrderNumberPrefix = "SP"

// CounterOrderNumberDeps bundles collaborators for the counter-backed generator.
type CounterOrderNumberDeps struct {
	Counters repositories.CounterRepository
	Prefix   string
}

type counterOrderNumbers struct {
	counters repositories.CounterRepository
	prefix   string
}

// NewCounterOrderNumbers issues PREFIX-YYYY-NNNNNN numbers from a per-year counter.
func NewCounterOrderNumbers(deps CounterOrderNumberDeps) (OrderNumberGenerator, error) {
	if deps.Counters == nil {
		return nil, errors.New("order numbers: counter repository is required")
	}
	prefix := strings.ToUpper(strings.TrimSpace(deps.Prefix))
	if prefix == "" {
		prefix = DefaultOrderNumberPrefix
	}
	return &counterOrderNumbers{counters: deps.Counters, prefix: prefix}, nil
}

func (g *counterOrderNumbers) NextOrderNumber(ctx context.Context, at time.Time) (string, error) {
	year := at.UTC().Year()
	value, err := g.counters.Next(ctx, fmt.Sprintf("orders:%d", year))
	if err != nil {
		return "", fmt.Errorf("next order number: %w", err)
	}
	return fmt.Sprintf("%s-%d-%06d", g.prefix, year, value), nil
}
