package fbfunnels

import (
	"time"

	"funnelboard/internal/models/fbmoney"

	"gorm.io/datatypes"
)

type StepType string

const (
	StepCapture  StepType = "capture"
	StepVSL      StepType = "vsl"
	StepCheckout StepType = "checkout"
	StepUpsell   StepType = "upsell"
	StepThankYou StepType = "thankyou"
)

func (t StepType) Valid() bool {
	switch t {
	case StepCapture, StepVSL, StepCheckout, StepUpsell, StepThankYou:
		return true
	}
	return false
}

// Funnel is an ordered sequence of steps identified by a global slug.
type Funnel struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"size:255;not null" json:"name"`
	Slug        string            `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Description string            `gorm:"type:text" json:"description"`
	Niche       string            `gorm:"size:100" json:"niche"`
	IsActive    bool              `gorm:"not null" json:"is_active"`
	Settings    datatypes.JSONMap `json:"settings"`
	CreatedBy   *uint             `gorm:"index" json:"created_by"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// FunnelStep is one page of a funnel. Slugs are unique within the funnel.
type FunnelStep struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	FunnelID   uint              `gorm:"not null;uniqueIndex:idx_step_funnel_slug;index" json:"funnel_id"`
	Name       string            `gorm:"size:255;not null" json:"name"`
	Slug       string            `gorm:"size:255;not null;uniqueIndex:idx_step_funnel_slug" json:"slug"`
	StepType   StepType          `gorm:"size:50;not null" json:"step_type"`
	OrderIndex int               `gorm:"not null" json:"order_index"`
	IsActive   bool              `gorm:"not null" json:"is_active"`
	Settings   datatypes.JSONMap `json:"settings"`
	Content    datatypes.JSONMap `json:"content"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// CheckoutConfig is the product and form configuration of a checkout
// step. There is at most one per (funnel, step).
type CheckoutConfig struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	FunnelID       uint                        `gorm:"not null;uniqueIndex:idx_checkout_funnel_step" json:"funnel_id"`
	StepID         uint                        `gorm:"not null;uniqueIndex:idx_checkout_funnel_step" json:"step_id"`
	ProductName    string                      `gorm:"size:255;not null" json:"product_name"`
	ProductPrice   fbmoney.Money               `gorm:"not null" json:"product_price"`
	Currency       string                      `gorm:"size:3;not null" json:"currency"`
	PaymentMethods datatypes.JSONSlice[string] `json:"payment_methods"`
	FieldsConfig   datatypes.JSONMap           `json:"fields_config"`
	DesignConfig   datatypes.JSONMap           `json:"design_config"`
	UpsellConfig   datatypes.JSONMap           `json:"upsell_config"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

type PixelType string

const (
	PixelFacebook PixelType = "facebook"
	PixelGoogle   PixelType = "google"
	PixelTikTok   PixelType = "tiktok"
	PixelCustom   PixelType = "custom"
)

func (t PixelType) Valid() bool {
	switch t {
	case PixelFacebook, PixelGoogle, PixelTikTok, PixelCustom:
		return true
	}
	return false
}

// TrackingPixel is an ad pixel attached to a funnel, or to one step of it
// when StepID is set.
type TrackingPixel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FunnelID  uint      `gorm:"not null;index" json:"funnel_id"`
	StepID    *uint     `gorm:"index" json:"step_id"`
	PixelType PixelType `gorm:"size:50;not null" json:"pixel_type"`
	PixelID   string    `gorm:"size:255;not null" json:"pixel_id"`
	EventName string    `gorm:"size:100" json:"event_name"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Models lists the tables owned by this package.
func Models() []any {
	return []any{&Funnel{}, &FunnelStep{}, &CheckoutConfig{}, &TrackingPixel{}}
}
