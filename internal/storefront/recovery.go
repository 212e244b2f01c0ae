package storefront

import (
	"context"
	"errors"
	"net/url"
	"sync/atomic"

	"go.uber.org/zap"
)

// RecoveryOutcome reports what a redirect recovery did.
type RecoveryOutcome int

const (
	// RecoveryIgnored means the URL carried no payment reference or the order was already confirmed.
	RecoveryIgnored RecoveryOutcome = iota
	// RecoverySuppressed means another recovery was already in flight.
	RecoverySuppressed
	// RecoveryConfirmed means the order was confirmed.
	RecoveryConfirmed
	// RecoveryFailed means recovery ran and ended in an error.
	RecoveryFailed
)

func (o RecoveryOutcome) String() string {
	switch o {
	case RecoveryIgnored:
		return "ignored"
	case RecoverySuppressed:
		return "suppressed"
	case RecoveryConfirmed:
		return "confirmed"
	case RecoveryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	recoveryIdle int32 = iota
	recoveryRunning
)

// RecoveryHandler re-enters checkout at confirmation after a provider redirect. At most one
// recovery runs at a time.
type RecoveryHandler struct {
	flow  *Flow
	state atomic.Int32
}

func newRecoveryHandler(flow *Flow) *RecoveryHandler {
	return &RecoveryHandler{flow: flow}
}

// Recovering reports whether a recovery is in flight.
func (h *RecoveryHandler) Recovering() bool {
	return h.state.Load() == recoveryRunning
}

// Recover inspects a checkout page URL for a provider payment reference and confirms the order
// it belongs to.
func (h *RecoveryHandler) Recover(ctx context.Context, u *url.URL) (RecoveryOutcome, error) {
	if u == nil {
		return RecoveryIgnored, nil
	}
	result, ok := h.flow.redirectResult(u.Query())
	if !ok {
		return RecoveryIgnored, nil
	}
	if !h.state.CompareAndSwap(recoveryIdle, recoveryRunning) {
		return RecoverySuppressed, nil
	}
	defer h.state.Store(recoveryIdle)

	f := h.flow
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session.Confirmed() {
		return RecoveryIgnored, nil
	}
	logger := f.logger.With(zap.String("provider", result.Provider), zap.String("reference", result.Reference))

	if err := f.restoreLocked(); err != nil {
		if errors.Is(err, ErrStaleRedirect) {
			logger.Warn("payment redirect has no pending checkout")
		} else {
			logger.Error("restore pending checkout", zap.Error(err))
		}
		f.session.LastError = err
		return RecoveryFailed, err
	}
	if f.session.Fatal != nil {
		return RecoveryFailed, f.session.Fatal.Err
	}

	logger.Info("recovering checkout after payment redirect",
		zap.String("temp_order_number", f.session.Pending.TempOrderNumber))
	final := f.applyLocked(ctx, result)
	if final.Kind != ResultSuccess {
		return RecoveryFailed, final.Err
	}
	return RecoveryConfirmed, nil
}

func (f *Flow) redirectResult(query url.Values) (Result, bool) {
	for _, adapter := range f.order {
		if result, ok := adapter.OnRedirectReturn(query); ok {
			return result, true
		}
	}
	return Result{}, false
}
