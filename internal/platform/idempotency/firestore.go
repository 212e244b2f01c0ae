package idempotency

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/firestore"
)

const defaultCollection = "idempotency_keys"

// FirestoreStore implements Store backed by Firestore, reserving keys inside a transaction.
type FirestoreStore struct {
	records *pfirestore.Collection[firestoreRecord]
}

// NewFirestoreStore constructs a Firestore-backed idempotency store. An empty collection
// selects "idempotency_keys".
func NewFirestoreStore(provider *pfirestore.Provider, collection string) *FirestoreStore {
	if collection == "" {
		collection = defaultCollection
	}
	return &FirestoreStore{records: pfirestore.NewCollection[firestoreRecord](provider, collection)}
}

// Reserve implements Store.
func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now = now.UTC()

	var result Reservation
	_, err := s.records.Mutate(ctx, recordID(key), func(existing firestoreRecord, found bool) (firestoreRecord, pfirestore.Write, error) {
		if found && now.Before(existing.ExpiresAt) {
			reservation, err := reservationFor(existing.toRecord(), fingerprint)
			result = reservation
			return existing, pfirestore.WriteKeep, err
		}
		record := pendingRecord(key, fingerprint, now, ttl)
		result = Reservation{State: ReservationStateNew, Record: record}
		return fromRecord(record), pfirestore.WritePut, nil
	})
	if err != nil {
		return Reservation{}, err
	}
	return result, nil
}

// SaveResponse implements Store.
func (s *FirestoreStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	_, err := s.records.Mutate(ctx, recordID(key), func(existing firestoreRecord, found bool) (firestoreRecord, pfirestore.Write, error) {
		record := Record{Key: key, Fingerprint: fingerprint}
		if found {
			if existing.Fingerprint != fingerprint {
				return existing, pfirestore.WriteKeep, ErrFingerprintMismatch
			}
			record = existing.toRecord()
		}
		return fromRecord(complete(record, resp, now.UTC(), ttl)), pfirestore.WritePut, nil
	})
	return err
}

// CleanupExpired removes up to limit records whose expiry has passed.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := now.UTC()
	return s.records.DeleteWhere(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("expires_at", "<=", cutoff)
	}, func(record firestoreRecord) bool {
		return !record.ExpiresAt.After(cutoff)
	}, limit)
}

// Release removes the reservation to allow callers to retry.
func (s *FirestoreStore) Release(ctx context.Context, key, _ string) error {
	return s.records.Delete(ctx, recordID(key))
}

type firestoreRecord struct {
	Key             string              `firestore:"key"`
	Fingerprint     string              `firestore:"fingerprint"`
	Status          string              `firestore:"status"`
	ResponseStatus  int                 `firestore:"response_status"`
	ResponseHeaders map[string][]string `firestore:"response_headers"`
	ResponseBody    []byte              `firestore:"response_body"`
	CreatedAt       time.Time           `firestore:"created_at"`
	UpdatedAt       time.Time           `firestore:"updated_at"`
	ExpiresAt       time.Time           `firestore:"expires_at"`
}

func fromRecord(r Record) firestoreRecord {
	return firestoreRecord{
		Key:             r.Key,
		Fingerprint:     r.Fingerprint,
		Status:          string(r.Status),
		ResponseStatus:  r.ResponseStatus,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}

func (r firestoreRecord) toRecord() Record {
	return Record{
		Key:             r.Key,
		Fingerprint:     r.Fingerprint,
		Status:          Status(r.Status),
		ResponseStatus:  r.ResponseStatus,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}
