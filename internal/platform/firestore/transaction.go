package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Write is the change a MutateFunc asks Mutate to commit.
type Write int

const (
	// WriteKeep leaves the document as it is.
	WriteKeep Write = iota
	// WritePut stores the returned value.
	WritePut
	// WriteRemove deletes the document.
	WriteRemove
)

const (
	mutateAttempts = 5
	mutateTimeout  = 15 * time.Second
)

// MutateFunc decides the next state of a document from its current one. found is false when the
// document does not exist. Firestore may call it more than once when the transaction is retried.
type MutateFunc[T any] func(current T, found bool) (T, Write, error)

// Mutate reads the document id and commits fn's decision in the same transaction. It returns the
// write that was committed; removing a missing document reports WriteKeep.
func (c *Collection[T]) Mutate(ctx context.Context, id string, fn MutateFunc[T]) (Write, error) {
	if fn == nil {
		return WriteKeep, WrapError(c.op("mutate"), errors.New("firestore: mutate function is nil"))
	}
	ref, err := c.DocumentRef(ctx, id)
	if err != nil {
		return WriteKeep, err
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return WriteKeep, err
	}

	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > mutateTimeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, mutateTimeout)
		defer cancel()
	}

	var committed Write
	err = client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		committed = WriteKeep
		var current T
		found := true
		snapshot, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			found = false
		case err != nil:
			return err
		default:
			if err := snapshot.DataTo(&current); err != nil {
				return fmt.Errorf("firestore: decode document %s: %w", id, err)
			}
		}

		next, write, err := fn(current, found)
		if err != nil {
			return err
		}
		switch write {
		case WritePut:
			committed = WritePut
			return tx.Set(ref, next)
		case WriteRemove:
			if !found {
				return nil
			}
			committed = WriteRemove
			return tx.Delete(ref)
		}
		return nil
	}, firestore.MaxAttempts(mutateAttempts))
	if err != nil {
		return WriteKeep, WrapError(c.op("mutate"), err)
	}
	return committed, nil
}
