package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/sqldb"
)

const (
	settingDeliveryFees = "delivery_fees"
	settingVAT          = "vat"
)

type settingsRepository struct {
	db *sqlx.DB
}

func (r *settingsRepository) DeliveryFees(ctx context.Context) (domain.DeliveryFeeTable, error) {
	var fees domain.DeliveryFeeTable
	err := r.load(ctx, settingDeliveryFees, &fees)
	return fees, err
}

func (r *settingsRepository) SaveDeliveryFees(ctx context.Context, fees domain.DeliveryFeeTable, at time.Time) error {
	return r.save(ctx, settingDeliveryFees, fees, at)
}

func (r *settingsRepository) VAT(ctx context.Context) (domain.VATConfig, error) {
	var vat domain.VATConfig
	err := r.load(ctx, settingVAT, &vat)
	return vat, err
}

func (r *settingsRepository) SaveVAT(ctx context.Context, vat domain.VATConfig, at time.Time) error {
	return r.save(ctx, settingVAT, vat, at)
}

func (r *settingsRepository) load(ctx context.Context, name string, target any) error {
	op := "settings.get_" + name
	var value []byte
	if err := r.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE name = ?`, name); err != nil {
		return wrapErr(op, err)
	}
	if err := json.Unmarshal(value, target); err != nil {
		return wrapErr(op, fmt.Errorf("decode: %w", err))
	}
	return nil
}

func (r *settingsRepository) save(ctx context.Context, name string, value any, at time.Time) error {
	op := "settings.save_" + name
	payload, err := json.Marshal(value)
	if err != nil {
		return wrapErr(op, fmt.Errorf("encode: %w", err))
	}
	query := `INSERT INTO settings (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if r.db.DriverName() == sqldb.DriverMySQL {
		query = `INSERT INTO settings (name, value, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`
	}
	_, err = r.db.ExecContext(ctx, query, name, string(payload), at.UTC())
	return wrapErr(op, err)
}
