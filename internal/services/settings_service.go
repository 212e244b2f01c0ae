package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

// DefaultDeliveryFees applies until staff save a fee table.
var DefaultDeliveryFees = DeliveryFeeTable{
	Standard: domain.MustParseMoney("1500.00"),
	Express:  domain.MustParseMoney("3000.00"),
}

// DefaultVAT applies until staff save a VAT configuration.
var DefaultVAT = VATConfig{Enabled: false, Rate: domain.MustParseRate("7.5")}

var maxVATRate = decimal.NewFromInt(100)

// SettingsServiceDeps bundles collaborators for the settings service.
type SettingsServiceDeps struct {
	Repository  repositories.SettingsRepository
	DefaultFees *DeliveryFeeTable
	DefaultVAT  *VATConfig
	Clock       func() time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type settingsService struct {
	repo        repositories.SettingsRepository
	defaultFees DeliveryFeeTable
	defaultVAT  VATConfig
	clock       func() time.Time
	logger      func(context.Context, string, map[string]any)
}

// NewSettingsService constructs the settings service. Missing settings fall back to defaults.
func NewSettingsService(deps SettingsServiceDeps) (SettingsService, error) {
	if deps.Repository == nil {
		return nil, errors.New("settings service: repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	fees := DefaultDeliveryFees
	if deps.DefaultFees != nil {
		fees = *deps.DefaultFees
	}
	vat := DefaultVAT
	if deps.DefaultVAT != nil {
		vat = *deps.DefaultVAT
	}
	return &settingsService{
		repo:        deps.Repository,
		defaultFees: fees,
		defaultVAT:  vat,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *settingsService) DeliveryFees(ctx context.Context) (DeliveryFeeTable, error) {
	fees, err := s.repo.DeliveryFees(ctx)
	if err != nil {
		if isRepoNotFound(err) {
			return s.defaultFees, nil
		}
		return DeliveryFeeTable{}, translateRepoError(err)
	}
	return fees, nil
}

func (s *settingsService) UpdateDeliveryFees(ctx context.Context, cmd UpdateDeliveryFeesCommand) (DeliveryFeeTable, error) {
	var fields []string
	if cmd.Fees.Standard.IsNegative() {
		fields = append(fields, "standard")
	}
	if cmd.Fees.Express.IsNegative() {
		fields = append(fields, "express")
	}
	if len(fields) > 0 {
		return DeliveryFeeTable{}, newValidationError("delivery fees must not be negative", fields...)
	}
	if err := s.repo.SaveDeliveryFees(ctx, cmd.Fees, s.clock()); err != nil {
		return DeliveryFeeTable{}, translateRepoError(err)
	}
	s.logger(ctx, "settings.delivery_fees.updated", map[string]any{
		"actorId":  cmd.ActorID,
		"standard": cmd.Fees.Standard.String(),
		"express":  cmd.Fees.Express.String(),
	})
	return cmd.Fees, nil
}

func (s *settingsService) VAT(ctx context.Context) (VATConfig, error) {
	vat, err := s.repo.VAT(ctx)
	if err != nil {
		if isRepoNotFound(err) {
			return s.defaultVAT, nil
		}
		return VATConfig{}, translateRepoError(err)
	}
	return vat, nil
}

func (s *settingsService) UpdateVAT(ctx context.Context, cmd UpdateVATCommand) (VATConfig, error) {
	rate := cmd.VAT.Rate.Decimal()
	if rate.IsNegative() || rate.GreaterThan(maxVATRate) {
		return VATConfig{}, newValidationError("vat rate must be between 0 and 100", "rate")
	}
	if err := s.repo.SaveVAT(ctx, cmd.VAT, s.clock()); err != nil {
		return VATConfig{}, translateRepoError(err)
	}
	s.logger(ctx, "settings.vat.updated", map[string]any{
		"actorId": cmd.ActorID,
		"enabled": cmd.VAT.Enabled,
		"rate":    cmd.VAT.Rate.String(),
	})
	return cmd.VAT, nil
}
