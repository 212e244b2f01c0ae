package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/notify"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/payments"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

type stubStagedRepo struct {
	mu       sync.Mutex
	orders   map[string]domain.PreparedOrder
	saveErr  error
	getErr   error
	deleted  []string
	purgeFn  func(context.Context, time.Time, int) (int, error)
	saveCall int
}

func newStubStagedRepo(orders ...domain.PreparedOrder) *stubStagedRepo {
	repo := &stubStagedRepo{orders: map[string]domain.PreparedOrder{}}
	for _, o := range orders {
		repo.orders[o.TempOrderNumber] = o
	}
	return repo
}

func (s *stubStagedRepo) Save(_ context.Context, order domain.PreparedOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCall++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.orders[order.TempOrderNumber] = order
	return nil
}

func (s *stubStagedRepo) Get(_ context.Context, temp string) (domain.PreparedOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return domain.PreparedOrder{}, s.getErr
	}
	order, ok := s.orders[temp]
	if !ok {
		return domain.PreparedOrder{}, repositories.NotFound("staged.get", "staged order %s not found", temp)
	}
	return order, nil
}

func (s *stubStagedRepo) Delete(_ context.Context, temp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, temp)
	delete(s.orders, temp)
	return nil
}

func (s *stubStagedRepo) PurgeExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if s.purgeFn != nil {
		return s.purgeFn(ctx, now, limit)
	}
	return 0, nil
}

type stubOrderRepo struct {
	createFn   func(context.Context, domain.Order) (domain.Order, bool, error)
	findPayFn  func(context.Context, string, string) (domain.Order, error)
	getFn      func(context.Context, string) (domain.Order, error)
	updateFn   func(context.Context, string, domain.OrderStatus, domain.OrderStatus, time.Time) (domain.Order, error)
	created    []domain.Order
	createLock sync.Mutex
}

func (s *stubOrderRepo) CreateIfAbsent(ctx context.Context, order domain.Order) (domain.Order, bool, error) {
	s.createLock.Lock()
	s.created = append(s.created, order)
	s.createLock.Unlock()
	if s.createFn != nil {
		return s.createFn(ctx, order)
	}
	return order, true, nil
}

func (s *stubOrderRepo) FindByPayment(ctx context.Context, provider, reference string) (domain.Order, error) {
	if s.findPayFn != nil {
		return s.findPayFn(ctx, provider, reference)
	}
	return domain.Order{}, repositories.NotFound("orders.find", "no order for %s/%s", provider, reference)
}

func (s *stubOrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return domain.Order{}, repositories.NotFound("orders.get", "order %s not found", id)
}

func (s *stubOrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (domain.Order, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, id, from, to, at)
	}
	return domain.Order{}, errors.New("not implemented")
}

type stubSettingsRepo struct {
	fees    *domain.DeliveryFeeTable
	vat     *domain.VATConfig
	err     error
	savedAt time.Time
}

func (s *stubSettingsRepo) DeliveryFees(context.Context) (domain.DeliveryFeeTable, error) {
	if s.err != nil {
		return domain.DeliveryFeeTable{}, s.err
	}
	if s.fees == nil {
		return domain.DeliveryFeeTable{}, repositories.NotFound("settings.fees", "not saved")
	}
	return *s.fees, nil
}

func (s *stubSettingsRepo) SaveDeliveryFees(_ context.Context, fees domain.DeliveryFeeTable, at time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.fees = &fees
	s.savedAt = at
	return nil
}

func (s *stubSettingsRepo) VAT(context.Context) (domain.VATConfig, error) {
	if s.err != nil {
		return domain.VATConfig{}, s.err
	}
	if s.vat == nil {
		return domain.VATConfig{}, repositories.NotFound("settings.vat", "not saved")
	}
	return *s.vat, nil
}

func (s *stubSettingsRepo) SaveVAT(_ context.Context, vat domain.VATConfig, at time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.vat = &vat
	s.savedAt = at
	return nil
}

type stubCounterRepo struct {
	nextFn func(context.Context, string) (int64, error)
	names  []string
}

func (s *stubCounterRepo) Next(ctx context.Context, name string) (int64, error) {
	s.names = append(s.names, name)
	if s.nextFn != nil {
		return s.nextFn(ctx, name)
	}
	return int64(len(s.names)), nil
}

type stubGateway struct {
	mu         sync.Mutex
	providers  map[string]bool
	initiateFn func(context.Context, domain.PaymentMethod, payments.InitiateRequest) (payments.Initiation, error)
	verifyFn   func(context.Context, string, payments.VerifyRequest) (payments.PaymentDetails, error)
	webhookFn  func(string, []byte, http.Header) (payments.WebhookEvent, error)
	verifies   int
}

func newStubGateway() *stubGateway {
	return &stubGateway{providers: map[string]bool{payments.ProviderStripe: true, payments.ProviderPaystack: true}}
}

func (s *stubGateway) Has(provider string) bool { return s.providers[provider] }

func (s *stubGateway) Initiate(ctx context.Context, method domain.PaymentMethod, req payments.InitiateRequest) (payments.Initiation, error) {
	if s.initiateFn != nil {
		return s.initiateFn(ctx, method, req)
	}
	return payments.Initiation{}, errors.New("not implemented")
}

func (s *stubGateway) Verify(ctx context.Context, provider string, req payments.VerifyRequest) (payments.PaymentDetails, error) {
	s.mu.Lock()
	s.verifies++
	s.mu.Unlock()
	if s.verifyFn != nil {
		return s.verifyFn(ctx, provider, req)
	}
	return payments.PaymentDetails{}, errors.New("not implemented")
}

func (s *stubGateway) ParseWebhook(provider string, payload []byte, header http.Header) (payments.WebhookEvent, error) {
	if s.webhookFn != nil {
		return s.webhookFn(provider, payload, header)
	}
	return payments.WebhookEvent{}, payments.ErrInvalidWebhook
}

type stubPublisher struct {
	mu     sync.Mutex
	events []OrderConfirmedEvent
	err    error
}

func (s *stubPublisher) PublishOrderConfirmed(_ context.Context, event OrderConfirmedEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return "msg-1", s.err
}

type stubNotifications struct {
	mu     sync.Mutex
	orders []Order
}

func (s *stubNotifications) NotifyOrderConfirmed(_ context.Context, order Order) NotificationReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, order)
	return NotificationReport{}
}

type stubTemplates struct {
	invoiceErr error
}

func (stubTemplates) CustomerEmail(order Order) (notify.Email, error) {
	return notify.Email{To: []string{order.Delivery.Email}, Subject: "receipt " + order.OrderNumber}, nil
}

func (stubTemplates) AdminEmail(order Order, recipients []string, invoiceURL string) (notify.Email, error) {
	return notify.Email{To: recipients, Subject: "new order " + order.OrderNumber, HTML: invoiceURL}, nil
}

func (s stubTemplates) Invoice(order Order) (string, error) {
	if s.invoiceErr != nil {
		return "", s.invoiceErr
	}
	return "<h1>" + order.OrderNumber + "</h1>", nil
}

func (stubTemplates) AdminSMS(order Order) string { return "new order " + order.OrderNumber }

type stubMailer struct {
	mu     sync.Mutex
	sent   []notify.Email
	failTo string
}

func (s *stubMailer) Send(_ context.Context, email notify.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(email.To) > 0 && email.To[0] == s.failTo {
		return errors.New("smtp down")
	}
	s.sent = append(s.sent, email)
	return nil
}

func (s *stubMailer) bySubjectPrefix(prefix string) (notify.Email, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.sent {
		if len(e.Subject) >= len(prefix) && e.Subject[:len(prefix)] == prefix {
			return e, true
		}
	}
	return notify.Email{}, false
}

type stubSMS struct {
	to   []string
	body string
	err  error
}

func (s *stubSMS) SendSMS(_ context.Context, to []string, body string) error {
	s.to, s.body = to, body
	return s.err
}

type stubRenderer struct {
	pdf []byte
	err error
}

func (s stubRenderer) RenderPDF(context.Context, string) ([]byte, error) { return s.pdf, s.err }

type stubInvoiceStore struct {
	url string
	err error
}

func (s stubInvoiceStore) UploadInvoice(context.Context, string, []byte) (string, error) {
	return s.url, s.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func ptrMoney(v string) *domain.Money {
	m := domain.MustParseMoney(v)
	return &m
}
