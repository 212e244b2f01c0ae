package sqlstore

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/sqldb"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

type counterRepository struct {
	db *sqlx.DB
}

// Next increments the named counter inside a transaction and returns the new value.
func (r *counterRepository) Next(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, repositories.NewStoreError("counters.next", repositories.KindUnknown, errors.New("counter name is required"))
	}
	upsert := `INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1`
	if r.db.DriverName() == sqldb.DriverMySQL {
		upsert = `INSERT INTO counters (name, value) VALUES (?, 1)
		ON DUPLICATE KEY UPDATE value = value + 1`
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, wrapErr("counters.next", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, upsert, name); err != nil {
		return 0, wrapErr("counters.next", err)
	}
	var value int64
	if err := tx.GetContext(ctx, &value, `SELECT value FROM counters WHERE name = ?`, name); err != nil {
		return 0, wrapErr("counters.next", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, wrapErr("counters.next", err)
	}
	return value, nil
}
