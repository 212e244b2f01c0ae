package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/payments"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/config"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/sqldb"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories/redisstore"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories/sqlstore"
)

func openSQLiteStore(t *testing.T) (*sqlstore.Store, *sqlx.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqldb.Open(context.Background(), config.DatabaseConfig{Driver: sqldb.DriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqldb.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sqlstore.New(db), db
}

// customisedPrepareCommand carries a line with a variant, grouped extras and a measurement.
func customisedPrepareCommand() PrepareOrderCommand {
	cmd := validPrepareCommand()
	variant := domain.MustParseMoney("16.00")
	cmd.Items = []CartLine{{
		ItemID:       "grilled-fish",
		Name:         "Grilled Fish",
		UnitPrice:    domain.MustParseMoney("14.00"),
		VariantName:  "Large",
		VariantPrice: &variant,
		Quantity:     2,
		Extras: []domain.CartExtra{
			{ID: "plantain", Name: "Fried Plantain", Price: domain.MustParseMoney("2.50"), GroupName: "Sides"},
			{ID: "pepper", Name: "Pepper Sauce", Price: domain.MustParseMoney("1.50"), GroupName: "Sauces"},
		},
		Measurement: "1 plate",
	}}
	cmd.Pricing = &PricingSnapshot{
		Subtotal:    domain.MustParseMoney("40.00"),
		DeliveryFee: domain.MustParseMoney("3.00"),
		VATRate:     domain.MustParseRate("7.5"),
		VATAmount:   domain.MustParseMoney("3.00"),
		Total:       domain.MustParseMoney("46.00"),
	}
	return cmd
}

func succeededPayment(prepared PreparedOrder) func(context.Context, string, payments.VerifyRequest) (payments.PaymentDetails, error) {
	return func(_ context.Context, provider string, req payments.VerifyRequest) (payments.PaymentDetails, error) {
		return payments.PaymentDetails{
			Provider:  provider,
			Reference: req.Reference,
			Status:    payments.StatusSucceeded,
			Amount:    int64(prepared.Pricing.Total),
			Currency:  "NGN",
			Metadata:  map[string]string{payments.MetadataTempOrderNumber: prepared.TempOrderNumber},
		}, nil
	}
}

func newStoreConfirmation(t *testing.T, store *sqlstore.Store, staged repositories.StagedOrderRepository, gateway *stubGateway) OrderConfirmationService {
	t.Helper()
	numbers, err := NewCounterOrderNumbers(CounterOrderNumberDeps{Counters: store.Counters()})
	if err != nil {
		t.Fatalf("NewCounterOrderNumbers: %v", err)
	}
	svc, err := NewConfirmationService(ConfirmationServiceDeps{
		Orders:       store.Orders(),
		Staged:       staged,
		Gateway:      gateway,
		OrderNumbers: numbers,
		Clock:        fixedClock(prepNow.Add(5 * time.Minute)),
	})
	if err != nil {
		t.Fatalf("NewConfirmationService: %v", err)
	}
	return svc
}

func countOrdersFor(t *testing.T, db *sqlx.DB, tempNumber string) int {
	t.Helper()
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM orders WHERE temp_order_number = ?`, tempNumber); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	return n
}

func TestConfirmedOrderKeepsStagedLines(t *testing.T) {
	backends := map[string]func(t *testing.T, store *sqlstore.Store) repositories.StagedOrderRepository{
		"sql": func(_ *testing.T, store *sqlstore.Store) repositories.StagedOrderRepository {
			return store.StagedOrders()
		},
		"redis": func(t *testing.T, _ *sqlstore.Store) repositories.StagedOrderRepository {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return redisstore.NewStagedOrders(client, redisstore.WithClock(fixedClock(prepNow)))
		},
	}
	for name, newStaged := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, _ := openSQLiteStore(t)
			staged := newStaged(t, store)

			prepared, err := newTestPreparation(t, staged, "1000.00").Prepare(ctx, customisedPrepareCommand())
			if err != nil {
				t.Fatalf("Prepare: %v", err)
			}
			reloaded, err := staged.Get(ctx, prepared.TempOrderNumber)
			if err != nil {
				t.Fatalf("staged Get: %v", err)
			}
			if !reflect.DeepEqual(prepared.Items, reloaded.Items) {
				t.Fatalf("staged lines changed:\nwant %+v\ngot  %+v", prepared.Items, reloaded.Items)
			}

			gateway := newStubGateway()
			gateway.verifyFn = succeededPayment(prepared)
			result, err := newStoreConfirmation(t, store, staged, gateway).Confirm(ctx, ConfirmOrderCommand{
				Provider:  payments.ProviderPaystack,
				Reference: "TMP-TEST-ref-1",
				OrderData: ConfirmOrderData{TempOrderNumber: prepared.TempOrderNumber},
			})
			if err != nil {
				t.Fatalf("Confirm: %v", err)
			}

			order, err := store.Orders().FindByPayment(ctx, payments.ProviderPaystack, "TMP-TEST-ref-1")
			if err != nil {
				t.Fatalf("FindByPayment: %v", err)
			}
			if order.ID != result.OrderID {
				t.Fatalf("found order %s, confirmed %s", order.ID, result.OrderID)
			}
			if !reflect.DeepEqual(prepared.Items, order.Items) {
				t.Fatalf("order lines differ from staged lines:\nwant %+v\ngot  %+v", prepared.Items, order.Items)
			}
			if order.Items[0].VariantPrice == nil || *order.Items[0].VariantPrice != domain.MustParseMoney("16.00") {
				t.Fatalf("variant price lost: %+v", order.Items[0])
			}
			if !reflect.DeepEqual(prepared.Delivery, order.Delivery) {
				t.Fatalf("delivery changed: %+v", order.Delivery)
			}
			if order.Pricing.Total != domain.MustParseMoney("46.00") || !order.Pricing.Balanced() {
				t.Fatalf("unexpected pricing %+v", order.Pricing)
			}
			if _, err := staged.Get(ctx, prepared.TempOrderNumber); !repositories.IsNotFound(err) {
				t.Fatalf("staged order should be removed after confirmation, got %v", err)
			}
		})
	}
}

func TestConcurrentPaymentsForOnePreparedOrderPersistOnce(t *testing.T) {
	ctx := context.Background()
	store, db := openSQLiteStore(t)
	staged := store.StagedOrders()

	prepared, err := newTestPreparation(t, staged, "1000.00").Prepare(ctx, validPrepareCommand())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	// Both attempts pass verification before either one persists.
	var atVerify sync.WaitGroup
	atVerify.Add(2)
	verified := succeededPayment(prepared)
	gateway := newStubGateway()
	gateway.verifyFn = func(ctx context.Context, provider string, req payments.VerifyRequest) (payments.PaymentDetails, error) {
		atVerify.Done()
		atVerify.Wait()
		return verified(ctx, provider, req)
	}
	svc := newStoreConfirmation(t, store, staged, gateway)

	var (
		wg      sync.WaitGroup
		results [2]ConfirmationResult
		errs    [2]error
	)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = svc.Confirm(ctx, ConfirmOrderCommand{
				Provider:  payments.ProviderPaystack,
				Reference: fmt.Sprintf("TMP-TEST-attempt-%d", i+1),
				OrderData: ConfirmOrderData{TempOrderNumber: prepared.TempOrderNumber},
			})
		}()
	}
	wg.Wait()

	var succeeded, paidTwice int
	for i, err := range errs {
		switch {
		case err == nil:
			succeeded++
			if results[i].Duplicate {
				t.Fatalf("a different payment reference must not be reported as a duplicate: %+v", results[i])
			}
		case errors.Is(err, ErrConfirmationFailed) && errors.Is(err, repositories.ErrPreparedOrderPaid):
			paidTwice++
			var confirmErr *ConfirmationError
			if !errors.As(err, &confirmErr) || confirmErr.Reference == "" {
				t.Fatalf("expected reconciliation details, got %v", err)
			}
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 || paidTwice != 1 {
		t.Fatalf("expected one order and one paid duplicate, got %d and %d (errs=%v)", succeeded, paidTwice, errs)
	}
	if n := countOrdersFor(t, db, prepared.TempOrderNumber); n != 1 {
		t.Fatalf("expected one persisted order for %s, got %d", prepared.TempOrderNumber, n)
	}
}

type undeletableStaged struct {
	repositories.StagedOrderRepository
}

func (undeletableStaged) Delete(context.Context, string) error {
	return repositories.NewStoreError("staged_orders.delete", repositories.KindUnavailable, errors.New("connection reset"))
}

func TestSecondPaymentAfterFailedStagedCleanupIsRejected(t *testing.T) {
	ctx := context.Background()
	store, db := openSQLiteStore(t)
	staged := undeletableStaged{store.StagedOrders()}

	prepared, err := newTestPreparation(t, staged, "1000.00").Prepare(ctx, validPrepareCommand())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	gateway := newStubGateway()
	gateway.verifyFn = succeededPayment(prepared)
	svc := newStoreConfirmation(t, store, staged, gateway)

	first, err := svc.Confirm(ctx, ConfirmOrderCommand{
		Provider:  payments.ProviderPaystack,
		Reference: "TMP-TEST-first",
		OrderData: ConfirmOrderData{TempOrderNumber: prepared.TempOrderNumber},
	})
	if err != nil {
		t.Fatalf("first Confirm: %v", err)
	}

	_, err = svc.Confirm(ctx, ConfirmOrderCommand{
		Provider:  payments.ProviderPaystack,
		Reference: "TMP-TEST-second",
		OrderData: ConfirmOrderData{TempOrderNumber: prepared.TempOrderNumber},
	})
	if !errors.Is(err, ErrConfirmationFailed) || !errors.Is(err, repositories.ErrPreparedOrderPaid) {
		t.Fatalf("expected paid duplicate failure, got %v", err)
	}

	replay, err := svc.Confirm(ctx, ConfirmOrderCommand{
		Provider:  payments.ProviderPaystack,
		Reference: "TMP-TEST-first",
		OrderData: ConfirmOrderData{TempOrderNumber: prepared.TempOrderNumber},
	})
	if err != nil || !replay.Duplicate || replay.OrderID != first.OrderID {
		t.Fatalf("retrying the winning payment must return its order, got %+v, %v", replay, err)
	}
	if n := countOrdersFor(t, db, prepared.TempOrderNumber); n != 1 {
		t.Fatalf("expected one persisted order, got %d", n)
	}
}
