package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/payments"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/observability"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

// CheckoutAPI is the server surface the flow depends on. *Client implements it.
type CheckoutAPI interface {
	PaymentAPI
	DeliveryFees(ctx context.Context) (domain.DeliveryFeeTable, error)
	VAT(ctx context.Context) (domain.VATConfig, error)
	Prepare(ctx context.Context, data OrderData) (PrepareResult, error)
	Confirm(ctx context.Context, req ConfirmRequest) (Confirmation, error)
}

// FlowDeps wires a Flow.
type FlowDeps struct {
	Cart    *CartStore
	Pending *PendingStore
	API     CheckoutAPI
	// Adapters defaults to a CardGateway and an Aggregator built from API.
	Adapters      []PaymentAdapter
	CardConfirmer CardConfirmer
	Policy        payments.Policy
	Currency      string
	Logger        *zap.Logger
	Clock         func() time.Time
}

// Flow drives one customer's checkout: Account → Delivery → Payment → Confirmation.
type Flow struct {
	cart     *CartStore
	pending  *PendingStore
	api      CheckoutAPI
	adapters map[domain.PaymentMethod]PaymentAdapter
	order    []PaymentAdapter
	policy   payments.Policy
	logger   *zap.Logger
	now      func() time.Time
	recovery *RecoveryHandler

	mu      sync.Mutex
	session CheckoutSession
}

// NewFlow validates deps and starts a session on the account step.
func NewFlow(deps FlowDeps) (*Flow, error) {
	if deps.Cart == nil || deps.Pending == nil || deps.API == nil {
		return nil, errors.New("storefront: cart, pending store and api are required")
	}
	if deps.Policy.Minimum <= 0 {
		deps.Policy.Minimum = payments.DefaultCardMinimum
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	adapters := deps.Adapters
	if len(adapters) == 0 {
		adapters = []PaymentAdapter{
			NewCardGateway(deps.API, deps.CardConfirmer, deps.Policy.Minimum, deps.Currency),
			NewAggregator(deps.API, deps.Currency),
		}
	}
	f := &Flow{
		cart:     deps.Cart,
		pending:  deps.Pending,
		api:      deps.API,
		adapters: make(map[domain.PaymentMethod]PaymentAdapter, len(adapters)),
		order:    adapters,
		policy:   deps.Policy,
		logger:   deps.Logger.Named("checkout"),
		now:      deps.Clock,
		session:  CheckoutSession{Step: StepAccount, Method: domain.PaymentCardGateway},
	}
	for _, a := range adapters {
		f.adapters[a.Kind()] = a
	}
	f.recovery = newRecoveryHandler(f)
	return f, nil
}

// Session returns a copy of the current session.
func (f *Flow) Session() CheckoutSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session.clone()
}

// Recovery returns the redirect recovery handler bound to this flow.
func (f *Flow) Recovery() *RecoveryHandler {
	return f.recovery
}

// SubmitAccount records contact details and moves to the delivery step.
func (f *Flow) SubmitAccount(account Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session.Step != StepAccount {
		return ErrInvalidStep
	}
	if f.cart.Empty() {
		return ErrEmptyCart
	}
	account = Account{
		Name:  strings.TrimSpace(account.Name),
		Email: strings.TrimSpace(account.Email),
		Phone: strings.TrimSpace(account.Phone),
	}
	var fields []string
	if account.Name == "" {
		fields = append(fields, "name")
	}
	if _, err := mail.ParseAddress(account.Email); err != nil {
		fields = append(fields, "email")
	}
	if account.Phone == "" {
		fields = append(fields, "phone")
	}
	if len(fields) > 0 {
		err := newValidationError("contact details are incomplete", fields...)
		f.session.LastError = err
		return err
	}
	f.session.Account = account
	f.session.LastError = nil
	f.session.Step = StepDelivery
	return nil
}

// SubmitDelivery validates delivery details, prices the cart, stages the order on the server and
// persists the pending record. Only then does the session move to the payment step.
func (f *Flow) SubmitDelivery(ctx context.Context, delivery domain.DeliveryInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session.Step != StepDelivery {
		return ErrInvalidStep
	}
	if f.cart.Empty() {
		return ErrEmptyCart
	}
	if delivery.Email == "" {
		delivery.Email = f.session.Account.Email
	}
	if delivery.Phone == "" {
		delivery.Phone = f.session.Account.Phone
	}
	if err := validateDelivery(delivery); err != nil {
		f.session.LastError = err
		return err
	}

	fees, err := f.api.DeliveryFees(ctx)
	if err != nil {
		return f.fail(fmt.Errorf("load delivery fees: %w", err))
	}
	vat, err := f.api.VAT(ctx)
	if err != nil {
		return f.fail(fmt.Errorf("load vat settings: %w", err))
	}
	snapshot, err := f.cart.Totals(delivery.DeliveryMethod, fees, vat)
	if err != nil {
		return f.fail(err)
	}

	method := f.policy.Select(f.session.Method, snapshot.Total)
	data := NewOrderData(f.session.Account, delivery, f.cart.Lines(), snapshot, method)
	prepared, err := f.api.Prepare(ctx, data)
	if err != nil {
		return f.fail(err)
	}
	if prepared.PaymentMethod.Valid() {
		method = prepared.PaymentMethod
		data.PaymentMethod = string(method)
	}
	if prepared.Pricing.Total > 0 {
		snapshot = prepared.Pricing
	}

	record, err := f.pending.Save(PendingCheckout{OrderData: data, TempOrderNumber: prepared.TempOrderNumber})
	if err != nil {
		return f.fail(fmt.Errorf("persist pending checkout: %w", err))
	}

	f.session.Delivery = delivery
	f.session.Pricing = &snapshot
	f.session.Pending = &record
	f.session.Method = method
	f.session.AwaitingRedirect = false
	f.session.LastError = nil
	f.session.Step = StepPayment
	f.logger.Info("order staged",
		zap.String("temp_order_number", record.TempOrderNumber),
		zap.String("payment_method", string(method)),
		zap.String("total", snapshot.Total.String()),
		zap.String("email", observability.MaskEmail(delivery.Email)),
	)
	return nil
}

// SelectPaymentMethod switches adapters on the payment step. The card gateway is refused below
// the minimum with a rejection naming the aggregator as fallback.
func (f *Flow) SelectPaymentMethod(method domain.PaymentMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session.Step != StepPayment || f.session.Pending == nil {
		return ErrInvalidStep
	}
	method = domain.NormalizePaymentMethod(string(method))
	if _, ok := f.adapters[method]; !ok {
		return newValidationError("unsupported payment method", "paymentMethod")
	}
	if !f.policy.Eligible(method, f.session.Pending.OrderData.Total) {
		err := providerRejected("total is below the card minimum", domain.PaymentAggregator)
		f.session.LastError = err
		return err
	}
	return f.switchMethodLocked(method)
}

// View renders the active payment adapter, failing over to the aggregator when the card gateway
// rejects the total.
func (f *Flow) View(ctx context.Context) (View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session.Step != StepPayment || f.session.Pending == nil {
		return View{}, ErrInvalidStep
	}
	adapter, err := f.adapterLocked()
	if err != nil {
		return View{}, err
	}
	view, err := adapter.Render(ctx, *f.session.Pending)
	if f.shouldFailOver(adapter, err) {
		if adapter, err = f.failOverLocked(err); err != nil {
			return View{}, err
		}
		view, err = adapter.Render(ctx, *f.session.Pending)
	}
	return view, err
}

// Pay runs one payment attempt with the selected adapter. A card rejection fails over to the
// aggregator without re-preparing the order. Failures leave the session on the payment step so
// the customer can try again.
func (f *Flow) Pay(ctx context.Context, input PaymentInput) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session.Step != StepPayment || f.session.Pending == nil {
		return Failure(ErrInvalidStep)
	}
	if f.session.Fatal != nil {
		return Failure(f.session.Fatal.Err)
	}
	if a := f.session.Attempt; a != nil {
		return Failure(fmt.Errorf("%w: payment %s is awaiting confirmation", services.ErrInvalidState, a.Reference))
	}
	adapter, err := f.adapterLocked()
	if err != nil {
		return Failure(err)
	}
	pending := *f.session.Pending

	if _, err := adapter.Render(ctx, pending); err != nil {
		if !f.shouldFailOver(adapter, err) {
			f.session.LastError = err
			return Failure(err)
		}
		if adapter, err = f.failOverLocked(err); err != nil {
			return Failure(err)
		}
		pending = *f.session.Pending
	}

	result := adapter.Submit(ctx, pending, input)
	if result.Kind == ResultFailure && f.shouldFailOver(adapter, result.Err) {
		if adapter, err = f.failOverLocked(result.Err); err != nil {
			return Failure(err)
		}
		result = adapter.Submit(ctx, *f.session.Pending, input)
	}
	return f.applyLocked(ctx, result)
}

// HandleRedirect runs redirect recovery for a page load at u.
func (f *Flow) HandleRedirect(ctx context.Context, u *url.URL) (RecoveryOutcome, error) {
	return f.recovery.Recover(ctx, u)
}

// RetryConfirmation re-sends confirmation for a payment that succeeded but could not be
// confirmed because the API was unreachable. The payment is not collected again.
func (f *Flow) RetryConfirmation(ctx context.Context) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	attempt := f.session.Attempt
	if attempt == nil || f.session.Pending == nil || f.session.Confirmed() {
		return Failure(ErrInvalidStep)
	}
	return f.finishLocked(ctx, attempt.Provider, attempt.Reference)
}

// Back returns to the previous step. Leaving the payment step abandons the staged order.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.session.Step {
	case StepDelivery:
		f.session.Step = StepAccount
	case StepPayment:
		if f.session.Attempt != nil || f.session.Fatal != nil {
			return ErrInvalidStep
		}
		if err := f.pending.Clear(); err != nil {
			f.logger.Warn("clear pending checkout", zap.Error(err))
		}
		f.session.Pending = nil
		f.session.Pricing = nil
		f.session.AwaitingRedirect = false
		f.session.Step = StepDelivery
	default:
		return ErrInvalidStep
	}
	f.session.LastError = nil
	return nil
}

func (f *Flow) applyLocked(ctx context.Context, result Result) Result {
	switch result.Kind {
	case ResultSuccess:
		return f.finishLocked(ctx, result.Provider, result.Reference)
	case ResultRedirect:
		f.session.AwaitingRedirect = true
		f.session.LastError = nil
		f.logger.Info("redirecting to hosted payment page",
			zap.String("provider", result.Provider),
			zap.String("reference", result.Reference),
		)
		return result
	default:
		if result.Err == nil {
			result.Err = services.ErrProviderError
		}
		f.session.AwaitingRedirect = false
		f.session.LastError = result.Err
		f.logger.Warn("payment attempt failed", zap.Error(result.Err))
		return result
	}
}

// finishLocked confirms a successful payment. A confirmation failure is terminal and keeps the
// payment reference for support.
func (f *Flow) finishLocked(ctx context.Context, provider, reference string) Result {
	pending := f.session.Pending
	total := pending.OrderData.Total
	f.session.Attempt = &domain.PaymentAttempt{Provider: provider, Reference: reference, Status: "succeeded"}
	f.session.AwaitingRedirect = false

	confirmation, err := f.api.Confirm(ctx, ConfirmRequest{
		Provider:        provider,
		Reference:       reference,
		TempOrderNumber: pending.TempOrderNumber,
		Total:           &total,
	})
	if err != nil {
		if errors.Is(err, services.ErrConfirmationFailed) {
			ref := PaymentReferenceOf(err)
			if ref == "" {
				ref = reference
			}
			f.session.Fatal = &FatalState{Provider: provider, Reference: ref, Err: err}
			f.logger.Error("payment confirmed by provider but order not recorded",
				zap.String("provider", provider),
				zap.String("reference", ref),
				zap.Error(err),
			)
		} else {
			f.logger.Warn("order confirmation failed",
				zap.String("provider", provider),
				zap.String("reference", reference),
				zap.Error(err),
			)
		}
		if !errors.Is(err, services.ErrUnavailable) {
			// Only an unreachable API leaves the attempt open for RetryConfirmation.
			f.session.Attempt = nil
		}
		f.session.LastError = err
		return Result{Kind: ResultFailure, Provider: provider, Reference: reference, Err: err}
	}

	if err := f.cart.Clear(); err != nil {
		f.logger.Warn("clear cart after confirmation", zap.Error(err))
	}
	if err := f.pending.Clear(); err != nil {
		f.logger.Warn("clear pending checkout after confirmation", zap.Error(err))
	}
	f.session.Confirmation = &confirmation
	f.session.Attempt = nil
	f.session.LastError = nil
	f.session.Step = StepConfirmation
	f.logger.Info("order confirmed",
		zap.String("order_id", confirmation.OrderID),
		zap.String("order_number", confirmation.OrderNumber),
		zap.String("provider", provider),
	)
	return Success(provider, reference)
}

// restoreLocked rebuilds the session from the durable pending record after a redirect.
func (f *Flow) restoreLocked() error {
	if f.session.Pending != nil {
		return nil
	}
	record, ok, err := f.pending.Load()
	if err != nil {
		return err
	}
	if !ok {
		return ErrStaleRedirect
	}
	pricing := record.OrderData.Pricing()
	f.session.Account = Account{
		Name:  record.OrderData.CustomerName,
		Email: record.OrderData.CustomerEmail,
		Phone: record.OrderData.CustomerPhone,
	}
	f.session.Delivery = record.OrderData.Delivery()
	f.session.Pricing = &pricing
	f.session.Pending = &record
	f.session.Method = record.Method()
	f.session.Step = StepPayment
	return nil
}

func (f *Flow) adapterLocked() (PaymentAdapter, error) {
	adapter, ok := f.adapters[f.session.Method]
	if !ok {
		return nil, newValidationError("unsupported payment method", "paymentMethod")
	}
	return adapter, nil
}

func (f *Flow) shouldFailOver(adapter PaymentAdapter, err error) bool {
	if err == nil || adapter.Kind() != domain.PaymentCardGateway {
		return false
	}
	if !errors.Is(err, services.ErrProviderRejected) {
		return false
	}
	_, ok := f.adapters[domain.PaymentAggregator]
	return ok
}

func (f *Flow) failOverLocked(cause error) (PaymentAdapter, error) {
	f.logger.Info("card gateway rejected payment, switching to aggregator", zap.Error(cause))
	if err := f.switchMethodLocked(domain.PaymentAggregator); err != nil {
		return nil, err
	}
	return f.adapters[domain.PaymentAggregator], nil
}

func (f *Flow) switchMethodLocked(method domain.PaymentMethod) error {
	if f.session.Method == method && f.session.Pending.Method() == method {
		return nil
	}
	record := *f.session.Pending
	record.OrderData.PaymentMethod = string(method)
	saved, err := f.pending.Save(record)
	if err != nil {
		return f.fail(fmt.Errorf("persist pending checkout: %w", err))
	}
	f.session.Pending = &saved
	f.session.Method = method
	f.session.LastError = nil
	return nil
}

func (f *Flow) fail(err error) error {
	f.session.LastError = err
	return err
}

func validateDelivery(d domain.DeliveryInfo) error {
	var fields []string
	required := []struct {
		name  string
		value string
	}{
		{"firstName", d.FirstName},
		{"lastName", d.LastName},
		{"email", d.Email},
		{"phone", d.Phone},
		{"address", d.Address},
		{"city", d.City},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			fields = append(fields, r.name)
		}
	}
	if email := strings.TrimSpace(d.Email); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			fields = append(fields, "email")
		}
	}
	if !d.DeliveryMethod.Valid() {
		fields = append(fields, "deliveryMethod")
	}
	if len(fields) > 0 {
		return newValidationError("delivery details are incomplete", fields...)
	}
	return nil
}
