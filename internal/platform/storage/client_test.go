package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/auth"
)

type fakeSigner struct {
	email    string
	payloads [][]byte
	err      error
}

func (f *fakeSigner) Email() string {
	return f.email
}

func (f *fakeSigner) SignBytes(_ context.Context, payload []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, append([]byte(nil), payload...))
	return []byte("signed"), nil
}

var signerNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestURLSigner(t *testing.T, signer *fakeSigner) *URLSigner {
	t.Helper()
	s, err := NewURLSigner(signer, WithClock(func() time.Time { return signerNow }))
	if err != nil {
		t.Fatalf("unexpected error creating signer: %v", err)
	}
	return s
}

func TestSignDownloadForStaff(t *testing.T) {
	signer := &fakeSigner{email: "invoices@example.iam.gserviceaccount.com"}
	s := newTestURLSigner(t, signer)

	res, err := s.SignDownload(context.Background(), "bucket", "invoices/2025/SP-2025-000001.pdf", DownloadOptions{
		ExpiresIn:    time.Hour,
		ResponseType: "application/pdf",
		Disposition:  "inline",
		Identity:     &auth.Identity{UID: "staff-1", Roles: []string{auth.RoleStaff}},
	})
	if err != nil {
		t.Fatalf("SignDownload returned error: %v", err)
	}
	if res.Method != httpMethodGet {
		t.Fatalf("expected GET, got %s", res.Method)
	}
	if !res.ExpiresAt.Equal(signerNow.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", res.ExpiresAt)
	}
	parsed, err := url.Parse(res.URL)
	if err != nil {
		t.Fatalf("failed to parse signed URL: %v", err)
	}
	query := parsed.Query()
	if query.Get("response-content-type") != "application/pdf" {
		t.Fatalf("expected response content type, got %s", parsed.RawQuery)
	}
	if !strings.Contains(parsed.RawQuery, "X-Goog-Signature=") {
		t.Fatalf("expected signature in query: %s", parsed.RawQuery)
	}
	if len(signer.payloads) != 1 {
		t.Fatalf("expected one signing call, got %d", len(signer.payloads))
	}
}

func TestSignDownloadRejectsCustomers(t *testing.T) {
	s := newTestURLSigner(t, &fakeSigner{email: "svc@example.com"})
	_, err := s.SignDownload(context.Background(), "bucket", "invoices/x.pdf", DownloadOptions{
		Identity: &auth.Identity{UID: "user-1", Roles: []string{auth.RoleUser}},
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := s.SignDownload(context.Background(), "bucket", "invoices/x.pdf", DownloadOptions{}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied without identity, got %v", err)
	}
}

func TestSignDownloadValidatesInput(t *testing.T) {
	s := newTestURLSigner(t, &fakeSigner{email: "svc@example.com"})
	ctx := context.Background()

	if _, err := s.SignDownload(ctx, " ", "obj", DownloadOptions{AllowSystem: true}); !errors.Is(err, errInvalidBucket) {
		t.Fatalf("expected bucket error, got %v", err)
	}
	if _, err := s.SignDownload(ctx, "bucket", "", DownloadOptions{AllowSystem: true}); !errors.Is(err, errInvalidObject) {
		t.Fatalf("expected object error, got %v", err)
	}
	if _, err := s.SignDownload(ctx, "bucket", "obj", DownloadOptions{AllowSystem: true, Method: "PUT"}); !errors.Is(err, errMethodNotAllowed) {
		t.Fatalf("expected method error, got %v", err)
	}
	if _, err := s.SignDownload(ctx, "bucket", "obj", DownloadOptions{AllowSystem: true, ExpiresIn: 8 * 24 * time.Hour}); !errors.Is(err, errExpiryTooLong) {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestSignDownloadPropagatesSignerError(t *testing.T) {
	s := newTestURLSigner(t, &fakeSigner{email: "svc@example.com", err: errors.New("kms down")})
	if _, err := s.SignDownload(context.Background(), "bucket", "obj", DownloadOptions{AllowSystem: true}); err == nil {
		t.Fatal("expected signer error")
	}
}

func TestNewURLSignerRequiresEmail(t *testing.T) {
	if _, err := NewURLSigner(&fakeSigner{}); !errors.Is(err, errNoSigner) {
		t.Fatalf("expected errNoSigner, got %v", err)
	}
}
