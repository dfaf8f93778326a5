package fbfunnels

import (
	"context"
	"strings"

	"funnelboard/internal/models/fberrors"
	"funnelboard/internal/models/fbmoney"

	"gorm.io/datatypes"
)

const (
	DefaultCurrency      = "BRL"
	DefaultPaymentMethod = "pix"
)

type CheckoutInput struct {
	ProductName    string         `json:"product_name"`
	ProductPrice   *fbmoney.Money `json:"product_price"`
	Currency       string         `json:"currency"`
	PaymentMethods []string       `json:"payment_methods"`
	FieldsConfig   map[string]any `json:"fields_config"`
	DesignConfig   map[string]any `json:"design_config"`
	UpsellConfig   map[string]any `json:"upsell_config"`
}

// CheckoutPreview is a checkout config together with its step, whose
// content body is rendered to HTML.
type CheckoutPreview struct {
	Checkout *CheckoutConfig `json:"checkout"`
	Step     *FunnelStep     `json:"step"`
	Content  map[string]any  `json:"content"`
}

func (s *Service) GetCheckout(ctx context.Context, funnelID, stepID uint) (*CheckoutConfig, error) {
	var cfg CheckoutConfig
	err := s.db.WithContext(ctx).
		Where("funnel_id = ? AND step_id = ?", funnelID, stepID).
		First(&cfg).Error
	if err != nil {
		return nil, fberrors.FromDB("checkout config", err)
	}
	return &cfg, nil
}

func (s *Service) CreateCheckout(ctx context.Context, funnelID, stepID uint, in CheckoutInput) (*CheckoutConfig, error) {
	if _, err := s.GetFunnel(ctx, funnelID); err != nil {
		return nil, err
	}
	if _, err := s.GetStep(ctx, funnelID, stepID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ProductName) == "" || in.ProductPrice == nil {
		return nil, fberrors.Validation("product_name and product_price are required")
	}
	if *in.ProductPrice < 0 {
		return nil, fberrors.Validation("product_price cannot be negative")
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&CheckoutConfig{}).Where("funnel_id = ? AND step_id = ?", funnelID, stepID).Count(&count).Error; err != nil {
		return nil, fberrors.Internal("checkout lookup", err)
	}
	if count > 0 {
		return nil, fberrors.Conflict("checkout config already exists for this step")
	}

	cfg := &CheckoutConfig{
		FunnelID:       funnelID,
		StepID:         stepID,
		ProductName:    strings.TrimSpace(in.ProductName),
		ProductPrice:   *in.ProductPrice,
		Currency:       in.Currency,
		PaymentMethods: datatypes.JSONSlice[string](in.PaymentMethods),
		FieldsConfig:   toMap(in.FieldsConfig),
		DesignConfig:   toMap(in.DesignConfig),
		UpsellConfig:   toMap(in.UpsellConfig),
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if len(cfg.PaymentMethods) == 0 {
		cfg.PaymentMethods = datatypes.JSONSlice[string]{DefaultPaymentMethod}
	}

	if err := db.Create(cfg).Error; err != nil {
		return nil, fberrors.FromDB("checkout config", err)
	}
	return cfg, nil
}

// UpdateCheckout changes the fields present in the input. Maps and the
// method list are replaced when given.
func (s *Service) UpdateCheckout(ctx context.Context, funnelID, stepID uint, in CheckoutInput) (*CheckoutConfig, error) {
	cfg, err := s.GetCheckout(ctx, funnelID, stepID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.ProductName); name != "" {
		cfg.ProductName = name
	}
	if in.ProductPrice != nil {
		if *in.ProductPrice < 0 {
			return nil, fberrors.Validation("product_price cannot be negative")
		}
		cfg.ProductPrice = *in.ProductPrice
	}
	if in.Currency != "" {
		cfg.Currency = in.Currency
	}
	if in.PaymentMethods != nil {
		cfg.PaymentMethods = datatypes.JSONSlice[string](append([]string(nil), in.PaymentMethods...))
	}
	if in.FieldsConfig != nil {
		cfg.FieldsConfig = toMap(in.FieldsConfig)
	}
	if in.DesignConfig != nil {
		cfg.DesignConfig = toMap(in.DesignConfig)
	}
	if in.UpsellConfig != nil {
		cfg.UpsellConfig = toMap(in.UpsellConfig)
	}

	if err := s.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return nil, fberrors.FromDB("checkout config", err)
	}
	return cfg, nil
}

func (s *Service) DeleteCheckout(ctx context.Context, funnelID, stepID uint) error {
	cfg, err := s.GetCheckout(ctx, funnelID, stepID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(cfg).Error; err != nil {
		return fberrors.Internal("delete checkout config", err)
	}
	return nil
}

// Preview returns the checkout config with its step. render turns the
// markdown body of the step content into HTML; it may be nil.
func (s *Service) Preview(ctx context.Context, funnelID, stepID uint, render func(string) string) (*CheckoutPreview, error) {
	cfg, err := s.GetCheckout(ctx, funnelID, stepID)
	if err != nil {
		return nil, err
	}
	step, err := s.GetStep(ctx, funnelID, stepID)
	if err != nil {
		return nil, err
	}

	content := map[string]any(copyMap(step.Content))
	if body, ok := content["body"].(string); ok && render != nil {
		content["body_html"] = render(body)
	}
	return &CheckoutPreview{Checkout: cfg, Step: step, Content: content}, nil
}
