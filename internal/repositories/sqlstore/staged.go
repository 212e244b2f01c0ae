package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/sqldb"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

type stagedOrderRepository struct {
	db *sqlx.DB
}

func (r *stagedOrderRepository) Save(ctx context.Context, order domain.PreparedOrder) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return wrapErr("staged_orders.save", fmt.Errorf("encode: %w", err))
	}
	query := `INSERT INTO staged_orders (temp_order_number, payload, created_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (temp_order_number) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`
	if r.db.DriverName() == sqldb.DriverMySQL {
		query = `INSERT INTO staged_orders (temp_order_number, payload, created_at, expires_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE payload = VALUES(payload), expires_at = VALUES(expires_at)`
	}
	_, err = r.db.ExecContext(ctx, query, order.TempOrderNumber, string(payload), order.CreatedAt.UTC(), order.ExpiresAt.UTC())
	return wrapErr("staged_orders.save", err)
}

func (r *stagedOrderRepository) Get(ctx context.Context, tempOrderNumber string) (domain.PreparedOrder, error) {
	var payload []byte
	if err := r.db.GetContext(ctx, &payload, `SELECT payload FROM staged_orders WHERE temp_order_number = ?`, tempOrderNumber); err != nil {
		return domain.PreparedOrder{}, wrapErr("staged_orders.get", err)
	}
	var order domain.PreparedOrder
	if err := json.Unmarshal(payload, &order); err != nil {
		return domain.PreparedOrder{}, wrapErr("staged_orders.get", fmt.Errorf("decode: %w", err))
	}
	return order, nil
}

func (r *stagedOrderRepository) Delete(ctx context.Context, tempOrderNumber string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM staged_orders WHERE temp_order_number = ?`, tempOrderNumber)
	return wrapErr("staged_orders.delete", err)
}

func (r *stagedOrderRepository) PurgeExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT temp_order_number FROM staged_orders WHERE expires_at <= ? ORDER BY expires_at LIMIT ?`,
		now.UTC(), limit); err != nil {
		return 0, wrapErr("staged_orders.purge", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM staged_orders WHERE temp_order_number IN (?)`, ids)
	if err != nil {
		return 0, wrapErr("staged_orders.purge", err)
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, wrapErr("staged_orders.purge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr("staged_orders.purge", err)
	}
	return int(n), nil
}

var _ repositories.StagedOrderRepository = (*stagedOrderRepository)(nil)
