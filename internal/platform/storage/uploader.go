package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/auth"
)

const invoiceContentType = "application/pdf"

// InvoiceStoreConfig configures invoice persistence.
type InvoiceStoreConfig struct {
	Bucket       string
	URLExpiry    time.Duration
	CacheControl string
}

// ObjectWrite describes a single object upload.
type ObjectWrite struct {
	Bucket       string
	Object       string
	ContentType  string
	CacheControl string
	Metadata     map[string]string
	Data         []byte
}

// WriteFunc persists one object. The GCS-backed implementation is used unless overridden.
type WriteFunc func(ctx context.Context, req ObjectWrite) error

// InvoiceStore uploads rendered invoices and hands out signed download links.
type InvoiceStore struct {
	bucket       string
	expiry       time.Duration
	cacheControl string
	signer       *URLSigner
	write        WriteFunc
}

// InvoiceStoreOption customises the store.
type InvoiceStoreOption func(*InvoiceStore)

// WithWriteFunc replaces the object writer.
func WithWriteFunc(fn WriteFunc) InvoiceStoreOption {
	return func(s *InvoiceStore) {
		if fn != nil {
			s.write = fn
		}
	}
}

// NewInvoiceStore wires a GCS client and a URL signer. client may be nil when a WriteFunc is supplied.
func NewInvoiceStore(client *gcs.Client, signer *URLSigner, cfg InvoiceStoreConfig, opts ...InvoiceStoreOption) (*InvoiceStore, error) {
	if signer == nil {
		return nil, errNoSigner
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = defaultDownloadExpiry
	}
	if expiry > maxDownloadExpiry {
		return nil, errExpiryTooLong
	}
	cacheControl := strings.TrimSpace(cfg.CacheControl)
	if cacheControl == "" {
		cacheControl = "private, max-age=0"
	}
	store := &InvoiceStore{
		bucket:       bucket,
		expiry:       expiry,
		cacheControl: cacheControl,
		signer:       signer,
	}
	if client != nil {
		store.write = gcsWriter(client)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.write == nil {
		return nil, errors.New("storage: gcs client or write func is required")
	}
	return store, nil
}

// UploadInvoice stores the PDF and returns a signed link valid for the configured expiry.
func (s *InvoiceStore) UploadInvoice(ctx context.Context, orderNumber string, pdf []byte) (string, error) {
	if len(pdf) == 0 {
		return "", errors.New("storage: invoice pdf is empty")
	}
	object, err := InvoiceObjectPath(orderNumber)
	if err != nil {
		return "", err
	}
	if err := s.write(ctx, ObjectWrite{
		Bucket:       s.bucket,
		Object:       object,
		ContentType:  invoiceContentType,
		CacheControl: s.cacheControl,
		Metadata:     map[string]string{"orderNumber": strings.TrimSpace(orderNumber)},
		Data:         pdf,
	}); err != nil {
		return "", fmt.Errorf("storage: upload invoice %s: %w", object, err)
	}
	signed, err := s.signer.SignDownload(ctx, s.bucket, object, DownloadOptions{
		ExpiresIn:    s.expiry,
		ResponseType: invoiceContentType,
		AllowSystem:  true,
	})
	if err != nil {
		return "", err
	}
	return signed.URL, nil
}

// InvoiceURL re-signs an existing invoice for a staff member.
func (s *InvoiceStore) InvoiceURL(ctx context.Context, orderNumber string, identity *auth.Identity) (SignedURL, error) {
	object, err := InvoiceObjectPath(orderNumber)
	if err != nil {
		return SignedURL{}, err
	}
	return s.signer.SignDownload(ctx, s.bucket, object, DownloadOptions{
		ExpiresIn:    s.expiry,
		ResponseType: invoiceContentType,
		Disposition:  fmt.Sprintf("inline; filename=%q", strings.TrimSpace(orderNumber)+".pdf"),
		Identity:     identity,
	})
}

func gcsWriter(client *gcs.Client) WriteFunc {
	return func(ctx context.Context, req ObjectWrite) error {
		w := client.Bucket(req.Bucket).Object(req.Object).NewWriter(ctx)
		w.ContentType = req.ContentType
		w.CacheControl = req.CacheControl
		w.Metadata = req.Metadata
		if _, err := w.Write(req.Data); err != nil {
			_ = w.Close()
			return err
		}
		return w.Close()
	}
}
