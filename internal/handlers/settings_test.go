package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

func newSettingsRouter(svc services.SettingsService) chi.Router {
	router := chi.NewRouter()
	router.Route("/api", NewSettingsHandlers(newTestAuthenticator(), svc).Routes)
	return router
}

func TestSettingsHandlersPublicReads(t *testing.T) {
	svc := &stubSettingsService{
		fees: domain.DeliveryFeeTable{Standard: domain.MustParseMoney("1500.00"), Express: domain.MustParseMoney("3000.00")},
		vat:  domain.VATConfig{Enabled: true, Rate: domain.MustParseRate("7.5")},
	}
	router := newSettingsRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/settings/delivery-fee", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeEnvelope(t, rr)
	if body["standard"] != 1500.0 || body["express"] != 3000.0 {
		t.Fatalf("unexpected fees %v", body)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/settings/vat", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body = decodeEnvelope(t, rr)
	if body["enabled"] != true || body["rate"] != 7.5 {
		t.Fatalf("unexpected vat %v", body)
	}
}

func TestSettingsHandlersWritesRequireAdmin(t *testing.T) {
	svc := &stubSettingsService{}
	router := newSettingsRouter(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/settings/vat", strings.NewReader(`{"enabled":true,"rate":7.5}`))
	req.Header.Set("Authorization", "Bearer staff-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/admin/settings/vat", strings.NewReader(`{"enabled":true,"rate":7.5}`))
	req.Header.Set("Authorization", "Bearer admin-token")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rr.Code, rr.Body.String())
	}
	if !svc.vat.Enabled || !svc.vat.Rate.Equal(domain.MustParseRate("7.5")) || svc.updatedBy != "admin-1" {
		t.Fatalf("unexpected update %+v by %s", svc.vat, svc.updatedBy)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/admin/settings/delivery-fee", strings.NewReader(`{"standard":"1200.00","express":2500}`))
	req.Header.Set("Authorization", "Bearer admin-token")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.fees.Standard != domain.MustParseMoney("1200.00") || svc.fees.Express != domain.MustParseMoney("2500.00") {
		t.Fatalf("unexpected fees %+v", svc.fees)
	}
}

func TestSettingsHandlersValidationError(t *testing.T) {
	svc := &stubSettingsService{err: &services.ValidationError{Fields: []string{"standard"}, Reason: "fees must not be negative"}}
	router := newSettingsRouter(svc)
	req := httptest.NewRequest(http.MethodPut, "/api/admin/settings/delivery-fee", strings.NewReader(`{"standard":-1,"express":1}`))
	req.Header.Set("Authorization", "Bearer admin-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if msg := decodeEnvelope(t, rr)["message"]; msg != "fees must not be negative" {
		t.Fatalf("unexpected message %v", msg)
	}
}
