package storefront

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestRecoveryConfirmsAfterPageReload(t *testing.T) {
	fx := newFlowFixture(t, jollof(2))
	fx.toPayment(t)

	result := fx.flow.Pay(context.Background(), PaymentInput{})
	require.Equal(t, ResultRedirect, result.Kind, "err: %v", result.Err)

	// The browser leaves for the hosted page and comes back to a fresh checkout.
	reloaded := fx.reopen(t)
	outcome, err := reloaded.HandleRedirect(context.Background(), mustURL(t, "https://southplace.test/checkout?trxref=TMP-1-ps&reference=TMP-1-ps"))
	require.NoError(t, err)
	assert.Equal(t, RecoveryConfirmed, outcome)

	session := reloaded.Session()
	assert.Equal(t, StepConfirmation, session.Step)
	assert.Equal(t, "Ada Obi", session.Account.Name)
	assert.Equal(t, domain.PaymentAggregator, session.Method)
	require.NotNil(t, session.Confirmation)
	assert.Equal(t, "ord_1", session.Confirmation.OrderID)

	require.Len(t, fx.api.confirms, 1)
	assert.Equal(t, "paystack", fx.api.confirms[0].Provider)
	assert.Equal(t, "TMP-1-ps", fx.api.confirms[0].Reference)
	assert.Equal(t, domain.MustParseMoney("33.00"), *fx.api.confirms[0].Total)

	// Back-navigation to the same URL does nothing.
	outcome, err = reloaded.HandleRedirect(context.Background(), mustURL(t, "https://southplace.test/checkout?reference=TMP-1-ps"))
	require.NoError(t, err)
	assert.Equal(t, RecoveryIgnored, outcome)
	assert.Equal(t, 1, fx.api.confirmCount())
}

func TestRecoveryIgnoresPlainPageLoad(t *testing.T) {
	fx := newFlowFixture(t, jollof(2))

	outcome, err := fx.flow.HandleRedirect(context.Background(), mustURL(t, "https://southplace.test/checkout?step=delivery"))
	require.NoError(t, err)
	assert.Equal(t, RecoveryIgnored, outcome)

	outcome, err = fx.flow.HandleRedirect(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, RecoveryIgnored, outcome)
	assert.Zero(t, fx.api.confirmCount())
}

func TestRecoveryStaleRedirect(t *testing.T) {
	fx := newFlowFixture(t, jollof(2))

	outcome, err := fx.flow.HandleRedirect(context.Background(), mustURL(t, "https://southplace.test/checkout?reference=unknown"))
	require.ErrorIs(t, err, ErrStaleRedirect)
	assert.Equal(t, RecoveryFailed, outcome)
	assert.Zero(t, fx.api.confirmCount())
	assert.Equal(t, StepAccount, fx.flow.Session().Step)
}

func TestRecoverySuppressesConcurrentTrigger(t *testing.T) {
	fx := newFlowFixture(t, jollof(2))
	fx.toPayment(t)
	require.Equal(t, ResultRedirect, fx.flow.Pay(context.Background(), PaymentInput{}).Kind)

	reloaded := fx.reopen(t)
	redirect := mustURL(t, "https://southplace.test/checkout?reference=TMP-1-ps")

	var nested RecoveryOutcome
	fx.api.confirmHook = func() {
		assert.True(t, reloaded.Recovery().Recovering())
		nested, _ = reloaded.HandleRedirect(context.Background(), redirect)
	}

	outcome, err := reloaded.HandleRedirect(context.Background(), redirect)
	require.NoError(t, err)
	assert.Equal(t, RecoveryConfirmed, outcome)
	assert.Equal(t, RecoverySuppressed, nested)
	assert.Equal(t, 1, fx.api.confirmCount())
	assert.False(t, reloaded.Recovery().Recovering())
}

func TestRecoveryConfirmationFailureKeepsReference(t *testing.T) {
	fx := newFlowFixture(t, jollof(2))
	fx.toPayment(t)
	require.Equal(t, ResultRedirect, fx.flow.Pay(context.Background(), PaymentInput{}).Kind)
	fx.api.confirmErr = []error{&APIError{Status: 500, Code: "confirmation_failed", PaymentReference: "TMP-1-ps", Provider: "paystack"}}

	reloaded := fx.reopen(t)
	outcome, err := reloaded.HandleRedirect(context.Background(), mustURL(t, "https://southplace.test/checkout?trxref=TMP-1-ps"))
	require.ErrorIs(t, err, services.ErrConfirmationFailed)
	assert.Equal(t, RecoveryFailed, outcome)
	assert.Equal(t, "TMP-1-ps", PaymentReferenceOf(err))

	session := reloaded.Session()
	require.NotNil(t, session.Fatal)
	assert.Equal(t, "TMP-1-ps", session.Fatal.Reference)

	outcome, err = reloaded.HandleRedirect(context.Background(), mustURL(t, "https://southplace.test/checkout?trxref=TMP-1-ps"))
	assert.Equal(t, RecoveryFailed, outcome)
	assert.ErrorIs(t, err, services.ErrConfirmationFailed)
	assert.Equal(t, 1, fx.api.confirmCount())
}

func TestRecoveryOutcomeString(t *testing.T) {
	assert.Equal(t, "suppressed", RecoverySuppressed.String())
	assert.Equal(t, "unknown", RecoveryOutcome(42).String())
}
