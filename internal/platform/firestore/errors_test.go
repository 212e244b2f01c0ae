package firestore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

func TestWrapErrorClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		code        codes.Code
		notFound    bool
		conflict    bool
		unavailable bool
	}{
		{code: codes.NotFound, notFound: true},
		{code: codes.AlreadyExists, conflict: true},
		{code: codes.Aborted, conflict: true},
		{code: codes.Unavailable, unavailable: true},
		{code: codes.DeadlineExceeded, unavailable: true},
		{code: codes.PermissionDenied},
	}
	for _, tc := range cases {
		t.Run(tc.code.String(), func(t *testing.T) {
			err := WrapError("staged_orders.get", status.Error(tc.code, "boom"))
			assert.Equal(t, tc.notFound, repositories.IsNotFound(err))
			assert.Equal(t, tc.conflict, repositories.IsConflict(err))
			assert.Equal(t, tc.unavailable, repositories.IsUnavailable(err))
			assert.Contains(t, err.Error(), "staged_orders.get")
		})
	}
}

func TestWrapErrorPassesThroughCancellationAndStoreErrors(t *testing.T) {
	assert.NoError(t, WrapError("op", nil))
	assert.ErrorIs(t, WrapError("op", status.Error(codes.Canceled, "client went away")), context.Canceled)
	assert.ErrorIs(t, WrapError("op", fmt.Errorf("tx: %w", context.DeadlineExceeded)), context.DeadlineExceeded)

	inner := repositories.NotFound("idempotency.get", "missing")
	assert.Same(t, inner, WrapError("outer", inner))

	sentinel := errors.New("fingerprint mismatch")
	wrapped := WrapError("idempotency_keys.mutate", sentinel)
	assert.ErrorIs(t, wrapped, sentinel)
	assert.False(t, repositories.IsConflict(wrapped))
}
