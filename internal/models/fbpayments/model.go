package fbpayments

import (
	"time"

	"funnelboard/internal/models/fbmoney"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is accepted. Pending is
// the only open state.
func (s Status) Terminal() bool {
	return s != StatusPending
}

type Payment struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	VisitorID       *uint             `gorm:"index" json:"visitor_id"`
	FunnelID        *uint             `gorm:"index" json:"funnel_id"`
	StepID          *uint             `gorm:"index" json:"step_id"`
	ExternalID      string            `gorm:"size:255;index" json:"external_id"`
	Amount          fbmoney.Money     `gorm:"not null" json:"amount"`
	Currency        string            `gorm:"size:3;not null" json:"currency"`
	Status          Status            `gorm:"size:50;not null;index" json:"status"`
	PaymentMethod   string            `gorm:"size:50;not null" json:"payment_method"`
	CustomerData    datatypes.JSONMap `json:"customer_data"`
	GatewayResponse datatypes.JSONMap `json:"gateway_response"`
	CreatedAt       time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func Models() []any {
	return []any{&Payment{}}
}
