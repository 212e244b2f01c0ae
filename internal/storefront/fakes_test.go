package storefront

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/payments"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

var fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu         sync.Mutex
	fees       domain.DeliveryFeeTable
	vat        domain.VATConfig
	prepareErr error
	prepared   []OrderData
	initiated  []domain.PaymentMethod
	initErr    map[domain.PaymentMethod]error
	confirms   []ConfirmRequest
	confirmErr []error
	// confirmHook runs inside Confirm before it returns.
	confirmHook func()
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{fees: testFees, initErr: map[domain.PaymentMethod]error{}}
}

func (a *fakeAPI) DeliveryFees(context.Context) (domain.DeliveryFeeTable, error) {
	return a.fees, nil
}

func (a *fakeAPI) VAT(context.Context) (domain.VATConfig, error) {
	return a.vat, nil
}

func (a *fakeAPI) Prepare(_ context.Context, data OrderData) (PrepareResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.prepareErr != nil {
		return PrepareResult{}, a.prepareErr
	}
	a.prepared = append(a.prepared, data)
	return PrepareResult{
		TempOrderNumber: "TMP-1",
		ExpiresAt:       fixedNow.Add(45 * time.Minute),
		PaymentMethod:   domain.PaymentMethod(data.PaymentMethod),
		Currency:        "NGN",
		Pricing:         data.Pricing(),
	}, nil
}

func (a *fakeAPI) InitiatePayment(_ context.Context, temp string, method domain.PaymentMethod) (services.PaymentInitiation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initiated = append(a.initiated, method)
	if err := a.initErr[method]; err != nil {
		return services.PaymentInitiation{}, err
	}
	if method == domain.PaymentCardGateway {
		return services.PaymentInitiation{
			Provider:      payments.ProviderStripe,
			PaymentMethod: method,
			Reference:     "pi_123",
			ClientSecret:  "pi_123_secret",
		}, nil
	}
	return services.PaymentInitiation{
		Provider:         payments.ProviderPaystack,
		PaymentMethod:    method,
		Reference:        temp + "-ps",
		AuthorizationURL: "https://checkout.paystack.test/abc",
	}, nil
}

func (a *fakeAPI) Confirm(_ context.Context, req ConfirmRequest) (Confirmation, error) {
	if a.confirmHook != nil {
		a.confirmHook()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.confirms = append(a.confirms, req)
	if len(a.confirmErr) > 0 {
		err := a.confirmErr[0]
		a.confirmErr = a.confirmErr[1:]
		if err != nil {
			return Confirmation{}, err
		}
	}
	return Confirmation{OrderID: "ord_1", OrderNumber: "SP-2025-000001", Provider: req.Provider, Reference: req.Reference}, nil
}

func (a *fakeAPI) confirmCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.confirms)
}

type approvingCard struct {
	calls int
	err   error
}

func (c *approvingCard) ConfirmCardPayment(_ context.Context, clientSecret string, _ PaymentInput) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return "pi_123", nil
}

type flowFixture struct {
	storage Storage
	api     *fakeAPI
	card    *approvingCard
	flow    *Flow
}

func newFlowFixture(t *testing.T, lines ...domain.CartLine) *flowFixture {
	t.Helper()
	fx := &flowFixture{storage: NewMemoryStorage(), api: newFakeAPI(), card: &approvingCard{}}
	cart, err := NewCartStore(fx.storage)
	require.NoError(t, err)
	for _, line := range lines {
		require.NoError(t, cart.Add(line))
	}
	fx.flow = fx.reopen(t)
	return fx
}

// reopen builds a fresh Flow over the same storage, as after a full page navigation.
func (fx *flowFixture) reopen(t *testing.T) *Flow {
	t.Helper()
	cart, err := NewCartStore(fx.storage)
	require.NoError(t, err)
	flow, err := NewFlow(FlowDeps{
		Cart:          cart,
		Pending:       NewPendingStore(fx.storage, func() time.Time { return fixedNow }),
		API:           fx.api,
		CardConfirmer: fx.card,
		Policy:        payments.Policy{Minimum: domain.MustParseMoney("1000.00")},
		Currency:      "NGN",
	})
	require.NoError(t, err)
	return flow
}

// toPayment drives the flow through account and delivery.
func (fx *flowFixture) toPayment(t *testing.T) {
	t.Helper()
	require.NoError(t, fx.flow.SubmitAccount(Account{Name: "Ada Obi", Email: "ada@example.com", Phone: "+2348000000000"}))
	require.NoError(t, fx.flow.SubmitDelivery(context.Background(), testDelivery()))
}

func testDelivery() domain.DeliveryInfo {
	return domain.DeliveryInfo{
		FirstName:      "Ada",
		LastName:       "Obi",
		Email:          "ada@example.com",
		Phone:          "+2348000000000",
		Address:        "12 Admiralty Way",
		City:           "Lagos",
		DeliveryMethod: domain.DeliveryStandard,
	}
}

func pricedLine(price string, qty int) domain.CartLine {
	return domain.CartLine{ItemID: "platter", Name: "Party Platter", UnitPrice: domain.MustParseMoney(price), Quantity: qty}
}
