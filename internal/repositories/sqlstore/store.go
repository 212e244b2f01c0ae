// Package sqlstore implements the repositories on MySQL or SQLite through sqlx.
package sqlstore

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/sqldb"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

// Store bundles the SQL-backed repositories over one connection pool.
type Store struct {
	db *sqlx.DB
}

// New wraps an open database. Migrations must already be applied.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Orders returns the order repository.
func (s *Store) Orders() repositories.OrderRepository { return &orderRepository{db: s.db} }

// StagedOrders returns the staged order repository.
func (s *Store) StagedOrders() repositories.StagedOrderRepository {
	return &stagedOrderRepository{db: s.db}
}

// Settings returns the settings repository.
func (s *Store) Settings() repositories.SettingsRepository { return &settingsRepository{db: s.db} }

// Counters returns the counter repository.
func (s *Store) Counters() repositories.CounterRepository { return &counterRepository{db: s.db} }

func wrapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return repositories.NewStoreError(op, repositories.KindNotFound, err)
	case sqldb.IsUniqueViolation(err):
		return repositories.NewStoreError(op, repositories.KindConflict, err)
	case sqldb.IsTransient(err):
		return repositories.NewStoreError(op, repositories.KindUnavailable, err)
	default:
		return repositories.NewStoreError(op, repositories.KindUnknown, err)
	}
}
