package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

// WrapError turns a Firestore failure into a repositories.StoreError so callers classify it the
// same way as SQL and Redis failures. Cancellation of the caller's context is returned as is.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var storeErr *repositories.StoreError
	if errors.As(err, &storeErr) {
		return err
	}

	code := status.Code(err)
	if code == codes.Canceled {
		return context.Canceled
	}
	return repositories.NewStoreError(op, kindOf(code), err)
}

func kindOf(code codes.Code) repositories.Kind {
	switch code {
	case codes.NotFound:
		return repositories.KindNotFound
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		return repositories.KindConflict
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return repositories.KindUnavailable
	default:
		return repositories.KindUnknown
	}
}
