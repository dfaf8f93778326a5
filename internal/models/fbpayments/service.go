package fbpayments

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"funnelboard/internal/models/fbcredentials"
	"funnelboard/internal/models/fbdb"
	"funnelboard/internal/models/fberrors"
	"funnelboard/internal/models/fbfunnels"
	"funnelboard/internal/models/fbvisitors"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db          *gorm.DB
	funnels     *fbfunnels.Service
	credentials *fbcredentials.Service
	gateway     Gateway
	Now         func() time.Time
}

func NewService(db *gorm.DB, funnels *fbfunnels.Service, credentials *fbcredentials.Service, gateway Gateway) *Service {
	return &Service{
		db:          db,
		funnels:     funnels,
		credentials: credentials,
		gateway:     gateway,
		Now:         fbdb.Now,
	}
}

type CreateRequest struct {
	VisitorID    uint           `json:"visitor_id"`
	FunnelID     uint           `json:"funnel_id"`
	StepID       uint           `json:"step_id"`
	CustomerData map[string]any `json:"customer_data"`
}

func (s *Service) GetPayment(ctx context.Context, id uint) (*Payment, error) {
	var p Payment
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, fberrors.FromDB("payment", err)
	}
	return &p, nil
}

// CreatePayment charges the checkout price of a step through the gateway
// and records the pending payment with a payment_init event.
func (s *Service) CreatePayment(ctx context.Context, req CreateRequest) (*Payment, error) {
	if req.VisitorID == 0 || req.FunnelID == 0 || req.StepID == 0 || len(req.CustomerData) == 0 {
		return nil, fberrors.Validation("visitor_id, funnel_id, step_id and customer_data are required")
	}

	db := s.db.WithContext(ctx)
	var visitor fbvisitors.Visitor
	if err := db.First(&visitor, req.VisitorID).Error; err != nil {
		return nil, fberrors.FromDB("visitor", err)
	}
	if _, err := s.funnels.GetFunnel(ctx, req.FunnelID); err != nil {
		return nil, err
	}
	if _, err := s.funnels.GetStep(ctx, req.FunnelID, req.StepID); err != nil {
		return nil, err
	}
	checkout, err := s.funnels.GetCheckout(ctx, req.FunnelID, req.StepID)
	if err != nil {
		return nil, err
	}

	cred, err := s.credentials.ActiveByService(ctx, fbcredentials.ServiceSkalePay)
	if errors.Is(err, fberrors.ErrNotFound) {
		return nil, fberrors.Upstream("skalepay credentials not configured")
	}
	if err != nil {
		return nil, err
	}

	charge, err := s.gateway.CreateCharge(ctx, cred, ChargeRequest{
		Amount:      checkout.ProductPrice.Cents(),
		Currency:    checkout.Currency,
		Customer:    customerFrom(req.CustomerData),
		Description: "Payment for " + checkout.ProductName,
		CallbackURL: cred.APIURL + "/webhook",
		ReferenceID: fmt.Sprintf("funnel_%d_step_%d_visitor_%d", req.FunnelID, req.StepID, req.VisitorID),
	})
	if err != nil {
		log.Error().Err(err).Uint("funnel_id", req.FunnelID).Msg("gateway charge failed")
		return nil, fberrors.Upstream("payment gateway: %v", err)
	}

	p := &Payment{
		VisitorID:       &req.VisitorID,
		FunnelID:        &req.FunnelID,
		StepID:          &req.StepID,
		ExternalID:      charge.ID,
		Amount:          checkout.ProductPrice,
		Currency:        checkout.Currency,
		Status:          charge.Status,
		PaymentMethod:   fbfunnels.DefaultPaymentMethod,
		CustomerData:    datatypes.JSONMap(maps.Clone(req.CustomerData)),
		GatewayResponse: datatypes.JSONMap(charge.Raw),
	}
	if p.GatewayResponse == nil {
		p.GatewayResponse = datatypes.JSONMap{}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		_, err := fbvisitors.AppendEvent(tx, &visitor, fbvisitors.EventPaymentInit, &req.StepID, map[string]any{
			"payment_id": p.ID,
			"amount":     p.Amount.Float(),
		}, s.Now())
		return err
	})
	if err != nil {
		return nil, fberrors.Internal("create payment", err)
	}

	log.Info().Uint("payment_id", p.ID).Str("external_id", p.ExternalID).Str("amount", p.Amount.String()).Msg("payment created")
	return p, nil
}

func customerFrom(data map[string]any) Customer {
	str := func(k string) string {
		v, _ := data[k].(string)
		return v
	}
	return Customer{
		Name:     str("name"),
		Email:    str("email"),
		Document: str("cpf"),
		Phone:    str("phone"),
	}
}

// UpdateStatus moves a pending payment to a new status. It reports whether
// anything changed: a repeated status, or any transition out of a
// terminal state, is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, p *Payment, newStatus Status, gatewayData map[string]any) (bool, error) {
	if !newStatus.Valid() {
		return false, fberrors.Validation("unknown status %q", newStatus)
	}
	if newStatus == p.Status {
		return false, nil
	}
	if p.Status.Terminal() {
		log.Warn().Uint("payment_id", p.ID).Str("status", string(p.Status)).Str("requested", string(newStatus)).Msg("transition from terminal status ignored")
		return false, nil
	}

	old := p.Status
	now := s.Now()
	merged := datatypes.JSONMap{}
	maps.Copy(merged, p.GatewayResponse)
	maps.Copy(merged, gatewayData)

	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Payment{}).
			Where("id = ? AND status = ?", p.ID, old).
			Updates(map[string]any{
				"status":           newStatus,
				"gateway_response": merged,
				"updated_at":       now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// a concurrent delivery already moved it
			return nil
		}
		changed = true

		if p.VisitorID == nil {
			return nil
		}
		var visitor fbvisitors.Visitor
		err := tx.First(&visitor, *p.VisitorID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		_, err = fbvisitors.AppendEvent(tx, &visitor, fbvisitors.EventPaymentStatusChange, p.StepID, map[string]any{
			"payment_id": p.ID,
			"old_status": string(old),
			"new_status": string(newStatus),
			"amount":     p.Amount.Float(),
		}, now)
		if err != nil {
			return err
		}
		if newStatus == StatusPaid {
			_, err = fbvisitors.AppendEvent(tx, &visitor, fbvisitors.EventPaymentComplete, p.StepID, map[string]any{
				"payment_id": p.ID,
				"amount":     p.Amount.Float(),
			}, now)
		}
		return err
	})
	if err != nil {
		return false, fberrors.Internal("update payment status", err)
	}

	if changed {
		p.Status = newStatus
		p.GatewayResponse = merged
		p.UpdatedAt = now
		log.Info().Uint("payment_id", p.ID).Str("old_status", string(old)).Str("new_status", string(newStatus)).Msg("payment status changed")
	}
	return changed, nil
}

// HandleWebhook applies a gateway callback. The gateway redelivers on
// error, nothing is retried here.
func (s *Service) HandleWebhook(ctx context.Context, externalID string, status Status, payload map[string]any) (*Payment, bool, error) {
	if externalID == "" || status == "" {
		return nil, false, fberrors.Validation("id and status are required")
	}

	var p Payment
	if err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&p).Error; err != nil {
		return nil, false, fberrors.FromDB("payment", err)
	}

	changed, err := s.UpdateStatus(ctx, &p, status, payload)
	if err != nil {
		return nil, false, err
	}
	return &p, changed, nil
}
