package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/sqldb"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

const orderColumns = `id, order_number, status, customer_name, customer_email, customer_phone,
	delivery_json, items_json, subtotal, delivery_fee, vat_rate, vat_amount, total, currency,
	payment_method, payment_provider, payment_reference, temp_order_number, created_at, updated_at, paid_at`

type orderRow struct {
	ID               string       `db:"id"`
	OrderNumber      string       `db:"order_number"`
	Status           string       `db:"status"`
	CustomerName     string       `db:"customer_name"`
	CustomerEmail    string       `db:"customer_email"`
	CustomerPhone    string       `db:"customer_phone"`
	DeliveryJSON     []byte       `db:"delivery_json"`
	ItemsJSON        []byte       `db:"items_json"`
	Subtotal         int64        `db:"subtotal"`
	DeliveryFee      int64        `db:"delivery_fee"`
	VATRate          string       `db:"vat_rate"`
	VATAmount        int64        `db:"vat_amount"`
	Total            int64        `db:"total"`
	Currency         string       `db:"currency"`
	PaymentMethod    string       `db:"payment_method"`
	PaymentProvider  string       `db:"payment_provider"`
	PaymentReference string       `db:"payment_reference"`
	TempOrderNumber  string       `db:"temp_order_number"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
	PaidAt           sql.NullTime `db:"paid_at"`
}

func toOrderRow(order domain.Order) (orderRow, error) {
	delivery, err := json.Marshal(order.Delivery)
	if err != nil {
		return orderRow{}, fmt.Errorf("encode delivery: %w", err)
	}
	items, err := json.Marshal(order.Items)
	if err != nil {
		return orderRow{}, fmt.Errorf("encode items: %w", err)
	}
	row := orderRow{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		Status:           string(order.Status),
		CustomerName:     order.CustomerName,
		CustomerEmail:    order.Delivery.Email,
		CustomerPhone:    order.Delivery.Phone,
		DeliveryJSON:     delivery,
		ItemsJSON:        items,
		Subtotal:         int64(order.Pricing.Subtotal),
		DeliveryFee:      int64(order.Pricing.DeliveryFee),
		VATRate:          order.Pricing.VATRate.String(),
		VATAmount:        int64(order.Pricing.VATAmount),
		Total:            int64(order.Pricing.Total),
		Currency:         order.Currency,
		PaymentMethod:    string(order.PaymentMethod),
		PaymentProvider:  order.PaymentProvider,
		PaymentReference: order.PaymentReference,
		TempOrderNumber:  order.TempOrderNumber,
		CreatedAt:        order.CreatedAt.UTC(),
		UpdatedAt:        order.UpdatedAt.UTC(),
	}
	if order.PaidAt != nil {
		row.PaidAt = sql.NullTime{Time: order.PaidAt.UTC(), Valid: true}
	}
	return row, nil
}

func (r orderRow) toDomain() (domain.Order, error) {
	order := domain.Order{
		ID:               r.ID,
		OrderNumber:      r.OrderNumber,
		Status:           domain.OrderStatus(r.Status),
		CustomerName:     r.CustomerName,
		Currency:         r.Currency,
		PaymentMethod:    domain.PaymentMethod(r.PaymentMethod),
		PaymentProvider:  r.PaymentProvider,
		PaymentReference: r.PaymentReference,
		TempOrderNumber:  r.TempOrderNumber,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
		Pricing: domain.PricingSnapshot{
			Subtotal:    domain.Money(r.Subtotal),
			DeliveryFee: domain.Money(r.DeliveryFee),
			VATAmount:   domain.Money(r.VATAmount),
			Total:       domain.Money(r.Total),
		},
	}
	rate, err := domain.ParseRate(r.VATRate)
	if err != nil {
		return domain.Order{}, fmt.Errorf("decode vat rate: %w", err)
	}
	order.Pricing.VATRate = rate
	if err := json.Unmarshal(r.DeliveryJSON, &order.Delivery); err != nil {
		return domain.Order{}, fmt.Errorf("decode delivery: %w", err)
	}
	if err := json.Unmarshal(r.ItemsJSON, &order.Items); err != nil {
		return domain.Order{}, fmt.Errorf("decode items: %w", err)
	}
	if r.PaidAt.Valid {
		paid := r.PaidAt.Time.UTC()
		order.PaidAt = &paid
	}
	return order, nil
}

type orderRepository struct {
	db *sqlx.DB
}

func (r *orderRepository) CreateIfAbsent(ctx context.Context, order domain.Order) (domain.Order, bool, error) {
	row, err := toOrderRow(order)
	if err != nil {
		return domain.Order{}, false, wrapErr("orders.create", err)
	}
	_, err = r.db.NamedExecContext(ctx, `INSERT INTO orders (`+orderColumns+`) VALUES (
		:id, :order_number, :status, :customer_name, :customer_email, :customer_phone,
		:delivery_json, :items_json, :subtotal, :delivery_fee, :vat_rate, :vat_amount, :total, :currency,
		:payment_method, :payment_provider, :payment_reference, :temp_order_number, :created_at, :updated_at, :paid_at)`, row)
	if err == nil {
		return order, true, nil
	}
	if !sqldb.IsUniqueViolation(err) {
		return domain.Order{}, false, wrapErr("orders.create", err)
	}

	existing, findErr := r.FindByPayment(ctx, order.PaymentProvider, order.PaymentReference)
	if findErr == nil {
		return existing, false, nil
	}
	if !repositories.IsNotFound(findErr) {
		return domain.Order{}, false, findErr
	}

	prior, priorErr := r.findByTempOrderNumber(ctx, order.TempOrderNumber)
	switch {
	case priorErr == nil:
		return domain.Order{}, false, repositories.NewStoreError("orders.create", repositories.KindConflict,
			fmt.Errorf("%w: %s is order %s paid by %s/%s", repositories.ErrPreparedOrderPaid,
				order.TempOrderNumber, prior.ID, prior.PaymentProvider, prior.PaymentReference))
	case !repositories.IsNotFound(priorErr):
		return domain.Order{}, false, priorErr
	}
	// Neither payment nor prepared order collided, so the order number did.
	return domain.Order{}, false, wrapErr("orders.create", err)
}

func (r *orderRepository) findByTempOrderNumber(ctx context.Context, tempOrderNumber string) (domain.Order, error) {
	var row orderRow
	err := r.db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE temp_order_number = ?`, tempOrderNumber)
	if err != nil {
		return domain.Order{}, wrapErr("orders.find_by_temp_number", err)
	}
	order, err := row.toDomain()
	return order, wrapErr("orders.find_by_temp_number", err)
}

func (r *orderRepository) FindByPayment(ctx context.Context, provider, reference string) (domain.Order, error) {
	var row orderRow
	err := r.db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders
		WHERE payment_provider = ? AND payment_reference = ?`, provider, reference)
	if err != nil {
		return domain.Order{}, wrapErr("orders.find_by_payment", err)
	}
	order, err := row.toDomain()
	return order, wrapErr("orders.find_by_payment", err)
}

func (r *orderRepository) Get(ctx context.Context, orderID string) (domain.Order, error) {
	var row orderRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID); err != nil {
		return domain.Order{}, wrapErr("orders.get", err)
	}
	order, err := row.toDomain()
	return order, wrapErr("orders.get", err)
}

func (r *orderRepository) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, at time.Time) (domain.Order, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), at.UTC(), orderID, string(from))
	if err != nil {
		return domain.Order{}, wrapErr("orders.update_status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, wrapErr("orders.update_status", err)
	}
	if affected == 0 {
		if _, err := r.Get(ctx, orderID); err != nil {
			return domain.Order{}, err
		}
		return domain.Order{}, repositories.NewStoreError("orders.update_status", repositories.KindConflict,
			fmt.Errorf("order %s is no longer %s", orderID, from))
	}
	return r.Get(ctx, orderID)
}
