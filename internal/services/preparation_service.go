package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/payments"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/observability"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/pricing"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

const (
	// DefaultStagedOrderTTL bounds how long a prepared order can be paid for.
	DefaultStagedOrderTTL = 45 * time.Minute
	// DefaultSupportedCity is the only delivery city accepted unless configured otherwise.
	DefaultSupportedCity = "Lagos"
	// DefaultCurrency is the ISO currency charged by both providers.
	DefaultCurrency = "NGN"

	tempOrderPrefix = "TMP-"
)

// PreparationServiceDeps bundles collaborators for the preparation service.
type PreparationServiceDeps struct {
	Staged        repositories.StagedOrderRepository
	Settings      SettingsService
	Policy        payments.Policy
	Currency      string
	SupportedCity string
	TTL           time.Duration
	Metrics       *observability.CheckoutMetrics
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type preparationService struct {
	staged   repositories.StagedOrderRepository
	settings SettingsService
	policy   payments.Policy
	currency string
	city     string
	ttl      time.Duration
	metrics  *observability.CheckoutMetrics
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewPreparationService wires dependencies into an OrderPreparationService.
func NewPreparationService(deps PreparationServiceDeps) (OrderPreparationService, error) {
	if deps.Staged == nil {
		return nil, errors.New("preparation service: staged order repository is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("preparation service: settings service is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return tempOrderPrefix + strings.ToUpper(uuid.NewString())
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	policy := deps.Policy
	if policy.Minimum == 0 {
		policy.Minimum = payments.DefaultCardMinimum
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	city := strings.TrimSpace(deps.SupportedCity)
	if city == "" {
		city = DefaultSupportedCity
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultStagedOrderTTL
	}

	return &preparationService{
		staged:   deps.Staged,
		settings: deps.Settings,
		policy:   policy,
		currency: currency,
		city:     city,
		ttl:      ttl,
		metrics:  deps.Metrics,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *preparationService) Prepare(ctx context.Context, cmd PrepareOrderCommand) (PreparedOrder, error) {
	method, err := s.validate(cmd)
	if err != nil {
		return PreparedOrder{}, err
	}

	fees, err := s.settings.DeliveryFees(ctx)
	if err != nil {
		return PreparedOrder{}, err
	}
	vat, err := s.settings.VAT(ctx)
	if err != nil {
		return PreparedOrder{}, err
	}
	computed, err := pricing.ComputeTotals(cmd.Items, cmd.Delivery.DeliveryMethod, fees, vat)
	if err != nil {
		return PreparedOrder{}, newValidationError(err.Error(), "items")
	}
	if mismatched := pricing.Mismatches(*cmd.Pricing, computed); len(mismatched) > 0 {
		fields := make([]string, len(mismatched))
		for i, name := range mismatched {
			fields[i] = "pricing." + name
		}
		s.logger(ctx, "checkout.prepare.rejected", map[string]any{
			"fields":        fields,
			"claimedTotal":  cmd.Pricing.Total.String(),
			"computedTotal": computed.Total.String(),
		})
		return PreparedOrder{}, newValidationError("pricing does not match current settings", fields...)
	}

	selected := s.policy.Select(method, computed.Total)

	customerName := strings.TrimSpace(cmd.CustomerName)
	if customerName == "" {
		customerName = cmd.Delivery.FullName()
	}

	now := s.clock()
	order := PreparedOrder{
		TempOrderNumber: s.newID(),
		CustomerName:    customerName,
		Delivery:        normalizeDelivery(cmd.Delivery),
		Items:           append([]CartLine(nil), cmd.Items...),
		Pricing:         computed,
		Currency:        s.currency,
		PaymentMethod:   selected,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
	}
	if err := s.staged.Save(ctx, order); err != nil {
		return PreparedOrder{}, fmt.Errorf("stage order: %w", translateRepoError(err))
	}

	s.metrics.OrderPrepared(ctx, string(selected))
	fields := map[string]any{
		"tempOrderNumber": order.TempOrderNumber,
		"paymentMethod":   string(selected),
		"total":           computed.Total.String(),
	}
	if selected != method {
		fields["requestedMethod"] = string(method)
	}
	s.logger(ctx, "checkout.order.prepared", fields)
	return order, nil
}

func (s *preparationService) validate(cmd PrepareOrderCommand) (domain.PaymentMethod, error) {
	var fields []string
	add := func(field string) { fields = append(fields, field) }

	if len(cmd.Items) == 0 {
		add("items")
	}
	for i, item := range cmd.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		if strings.TrimSpace(item.ItemID) == "" {
			add(prefix + "itemId")
		}
		if strings.TrimSpace(item.Name) == "" {
			add(prefix + "name")
		}
		if item.Quantity < 1 {
			add(prefix + "quantity")
		}
		if item.UnitPrice.IsNegative() {
			add(prefix + "unitPrice")
		}
		if item.VariantPrice != nil && item.VariantPrice.IsNegative() {
			add(prefix + "variantPrice")
		}
		for j, extra := range item.Extras {
			if extra.Price.IsNegative() {
				add(fmt.Sprintf("%sextras[%d].price", prefix, j))
			}
		}
	}

	d := cmd.Delivery
	required := []struct {
		name  string
		value string
	}{
		{"delivery.firstName", d.FirstName},
		{"delivery.lastName", d.LastName},
		{"delivery.email", d.Email},
		{"delivery.phone", d.Phone},
		{"delivery.address", d.Address},
		{"delivery.city", d.City},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			add(r.name)
		}
	}
	if email := strings.TrimSpace(d.Email); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			add("delivery.email")
		}
	}
	if city := strings.TrimSpace(d.City); city != "" && !strings.EqualFold(city, s.city) {
		add("delivery.city")
	}
	if !d.DeliveryMethod.Valid() {
		add("delivery.deliveryMethod")
	}

	method := domain.PaymentCardGateway
	if raw := strings.TrimSpace(cmd.PaymentMethod); raw != "" {
		method = domain.NormalizePaymentMethod(raw)
		if !method.Valid() {
			add("paymentMethod")
		}
	}

	if cmd.Pricing == nil {
		add("pricing")
	} else {
		p := cmd.Pricing
		for _, f := range []struct {
			name  string
			value Money
		}{
			{"pricing.subtotal", p.Subtotal},
			{"pricing.deliveryFee", p.DeliveryFee},
			{"pricing.vatAmount", p.VATAmount},
			{"pricing.total", p.Total},
		} {
			if f.value.IsNegative() {
				add(f.name)
			}
		}
		if p.VATRate.Decimal().IsNegative() {
			add("pricing.vatRate")
		}
	}

	if len(fields) > 0 {
		return "", newValidationError("order payload is incomplete or invalid", dedupe(fields)...)
	}
	return method, nil
}

func normalizeDelivery(d DeliveryInfo) DeliveryInfo {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Phone = strings.TrimSpace(d.Phone)
	d.Address = strings.TrimSpace(d.Address)
	d.City = strings.TrimSpace(d.City)
	d.SpecialInstructions = strings.TrimSpace(d.SpecialInstructions)
	return d
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
