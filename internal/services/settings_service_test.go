package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

func TestSettingsFallBackToDefaults(t *testing.T) {
	svc, err := NewSettingsService(SettingsServiceDeps{Repository: &stubSettingsRepo{}})
	if err != nil {
		t.Fatalf("NewSettingsService: %v", err)
	}
	fees, err := svc.DeliveryFees(context.Background())
	if err != nil {
		t.Fatalf("DeliveryFees: %v", err)
	}
	if fees != DefaultDeliveryFees {
		t.Fatalf("expected default fees, got %+v", fees)
	}
	vat, err := svc.VAT(context.Background())
	if err != nil {
		t.Fatalf("VAT: %v", err)
	}
	if vat.Enabled || !vat.Rate.Equal(DefaultVAT.Rate) {
		t.Fatalf("expected default vat, got %+v", vat)
	}
}

func TestSettingsUpdateRoundTrip(t *testing.T) {
	repo := &stubSettingsRepo{}
	svc, err := NewSettingsService(SettingsServiceDeps{Repository: repo, Clock: fixedClock(prepNow)})
	if err != nil {
		t.Fatalf("NewSettingsService: %v", err)
	}
	fees := domain.DeliveryFeeTable{Standard: domain.MustParseMoney("2.50"), Express: domain.MustParseMoney("5.00")}
	if _, err := svc.UpdateDeliveryFees(context.Background(), UpdateDeliveryFeesCommand{Fees: fees, ActorID: "staff-1"}); err != nil {
		t.Fatalf("UpdateDeliveryFees: %v", err)
	}
	got, err := svc.DeliveryFees(context.Background())
	if err != nil || got != fees {
		t.Fatalf("expected saved fees, got %+v (%v)", got, err)
	}
	if !repo.savedAt.Equal(prepNow) {
		t.Fatalf("expected clock timestamp, got %s", repo.savedAt)
	}

	vat := domain.VATConfig{Enabled: true, Rate: domain.MustParseRate("7.5")}
	if _, err := svc.UpdateVAT(context.Background(), UpdateVATCommand{VAT: vat}); err != nil {
		t.Fatalf("UpdateVAT: %v", err)
	}
	gotVAT, _ := svc.VAT(context.Background())
	if !gotVAT.Enabled || !gotVAT.Rate.Equal(vat.Rate) {
		t.Fatalf("unexpected vat %+v", gotVAT)
	}
}

func TestSettingsUpdateValidation(t *testing.T) {
	svc, _ := NewSettingsService(SettingsServiceDeps{Repository: &stubSettingsRepo{}})

	_, err := svc.UpdateDeliveryFees(context.Background(), UpdateDeliveryFeesCommand{Fees: domain.DeliveryFeeTable{Standard: -1}})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	_, err = svc.UpdateVAT(context.Background(), UpdateVATCommand{VAT: domain.VATConfig{Enabled: true, Rate: domain.MustParseRate("150")}})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestSettingsSurfaceStoreOutage(t *testing.T) {
	repo := &stubSettingsRepo{err: repositories.NewStoreError("settings", repositories.KindUnavailable, errors.New("down"))}
	svc, _ := NewSettingsService(SettingsServiceDeps{Repository: repo})

	if _, err := svc.DeliveryFees(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
