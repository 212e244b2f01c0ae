package storefront

import (
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
)

// Step is a checkout step.
type Step int

const (
	StepAccount Step = iota
	StepDelivery
	StepPayment
	StepConfirmation
)

func (s Step) String() string {
	switch s {
	case StepAccount:
		return "account"
	case StepDelivery:
		return "delivery"
	case StepPayment:
		return "payment"
	case StepConfirmation:
		return "confirmation"
	default:
		return "unknown"
	}
}

// Account holds the contact details captured on the first step.
type Account struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Confirmation identifies the persisted order.
type Confirmation struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Provider    string `json:"provider"`
	Reference   string `json:"reference"`
}

// ResultKind tags a payment Result.
type ResultKind int

const (
	ResultFailure ResultKind = iota
	ResultSuccess
	ResultRedirect
)

// Result is the single terminal outcome of a payment attempt.
type Result struct {
	Kind        ResultKind
	Provider    string
	Reference   string
	RedirectURL string
	Err         error
}

// Success builds a successful result.
func Success(provider, reference string) Result {
	return Result{Kind: ResultSuccess, Provider: provider, Reference: reference}
}

// Failure builds a failed result.
func Failure(err error) Result {
	return Result{Kind: ResultFailure, Err: err}
}

// Redirect builds a hosted-page hand-off.
func Redirect(provider, reference, url string) Result {
	return Result{Kind: ResultRedirect, Provider: provider, Reference: reference, RedirectURL: url}
}

// CheckoutSession is the state carried through the flow.
type CheckoutSession struct {
	Step     Step
	Account  Account
	Delivery domain.DeliveryInfo
	Pricing  *domain.PricingSnapshot
	Pending  *PendingCheckout
	Method   domain.PaymentMethod
	// AwaitingRedirect is set while the customer is on the hosted payment page.
	AwaitingRedirect bool
	LastError        error
	// Attempt is a provider-approved payment whose confirmation has not succeeded yet.
	Attempt      *domain.PaymentAttempt
	Confirmation *Confirmation
	// Fatal is set when a paid order could not be recorded. The session stops there.
	Fatal *FatalState
}

// FatalState keeps the payment identifiers the customer needs when contacting support.
type FatalState struct {
	Provider  string
	Reference string
	Err       error
}

// Confirmed reports whether an order was recorded in this session.
func (s CheckoutSession) Confirmed() bool {
	return s.Confirmation != nil
}

func (s CheckoutSession) clone() CheckoutSession {
	out := s
	if s.Pricing != nil {
		p := *s.Pricing
		out.Pricing = &p
	}
	if s.Pending != nil {
		p := *s.Pending
		p.OrderData.Items = append([]domain.CartLine(nil), s.Pending.OrderData.Items...)
		out.Pending = &p
	}
	if s.Confirmation != nil {
		c := *s.Confirmation
		out.Confirmation = &c
	}
	if s.Attempt != nil {
		a := *s.Attempt
		out.Attempt = &a
	}
	if s.Fatal != nil {
		f := *s.Fatal
		out.Fatal = &f
	}
	return out
}
