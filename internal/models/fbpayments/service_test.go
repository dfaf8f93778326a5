package fbpayments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"funnelboard/internal/models/fbcredentials"
	"funnelboard/internal/models/fbdb"
	"funnelboard/internal/models/fberrors"
	"funnelboard/internal/models/fbfunnels"
	"funnelboard/internal/models/fbmoney"
	"funnelboard/internal/models/fbvisitors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubGateway struct {
	charge *Charge
	err    error
	calls  []ChargeRequest
}

func (g *stubGateway) CreateCharge(_ context.Context, _ *fbcredentials.Credential, req ChargeRequest) (*Charge, error) {
	g.calls = append(g.calls, req)
	return g.charge, g.err
}

type fixture struct {
	db       *gorm.DB
	payments *Service
	visitors *fbvisitors.Service
	creds    *fbcredentials.Service
	gateway  *stubGateway
	visitor  *fbvisitors.Visitor
	funnel   *fbfunnels.Funnel
	step     *fbfunnels.FunnelStep
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := fbdb.OpenInMemory()
	require.NoError(t, err)
	var models []any
	models = append(models, fbfunnels.Models()...)
	models = append(models, fbvisitors.Models()...)
	models = append(models, fbcredentials.Models()...)
	models = append(models, Models()...)
	require.NoError(t, fbdb.Migrate(db, models...))

	funnels := fbfunnels.NewService(db)
	f, err := funnels.CreateFunnel(ctx, fbfunnels.FunnelInput{Name: "F", Slug: "f"}, nil)
	require.NoError(t, err)
	order := 1
	step, err := funnels.CreateStep(ctx, f.ID, fbfunnels.StepInput{Name: "Checkout", Slug: "checkout", StepType: fbfunnels.StepCheckout, OrderIndex: &order})
	require.NoError(t, err)
	price := fbmoney.FromFloat(97)
	_, err = funnels.CreateCheckout(ctx, f.ID, step.ID, fbfunnels.CheckoutInput{ProductName: "Course", ProductPrice: &price})
	require.NoError(t, err)

	visitors := fbvisitors.NewService(db, nil)
	v, _, err := visitors.Track(ctx, fbvisitors.TrackRequest{SessionID: "s1", EventType: fbvisitors.EventPageView})
	require.NoError(t, err)

	creds := fbcredentials.NewService(db)
	gw := &stubGateway{charge: &Charge{ID: "ext-1", Status: StatusPending, Raw: map[string]any{"id": "ext-1"}}}
	return &fixture{
		db:       db,
		payments: NewService(db, funnels, creds, gw),
		visitors: visitors,
		creds:    creds,
		gateway:  gw,
		visitor:  v,
		funnel:   f,
		step:     step,
	}
}

func (fx *fixture) addCredential(t *testing.T) {
	t.Helper()
	_, err := fx.creds.Create(context.Background(), fbcredentials.Input{Name: "gw", Service: fbcredentials.ServiceSkalePay, APIKey: "k", APIURL: "https://gw.example"}, nil)
	require.NoError(t, err)
}

func (fx *fixture) request() CreateRequest {
	return CreateRequest{
		VisitorID:    fx.visitor.ID,
		FunnelID:     fx.funnel.ID,
		StepID:       fx.step.ID,
		CustomerData: map[string]any{"name": "Ana", "email": "ana@example.com", "cpf": "123"},
	}
}

func eventTypes(t *testing.T, fx *fixture) []string {
	t.Helper()
	events, err := fx.visitors.Events(context.Background(), fx.visitor.ID)
	require.NoError(t, err)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventType
	}
	return out
}

func TestCreatePayment(t *testing.T) {
	fx := setup(t)
	fx.addCredential(t)

	p, err := fx.payments.CreatePayment(context.Background(), fx.request())
	require.NoError(t, err)
	assert.Equal(t, "ext-1", p.ExternalID)
	assert.Equal(t, fbmoney.Money(9700), p.Amount)
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, "BRL", p.Currency)
	assert.Equal(t, "pix", p.PaymentMethod)

	require.Len(t, fx.gateway.calls, 1)
	call := fx.gateway.calls[0]
	assert.Equal(t, int64(9700), call.Amount)
	assert.Equal(t, "123", call.Customer.Document)
	assert.Equal(t, "Payment for Course", call.Description)
	assert.Contains(t, call.ReferenceID, "funnel_")

	assert.Equal(t, []string{fbvisitors.EventPageView, fbvisitors.EventPaymentInit}, eventTypes(t, fx))
}

func TestCreatePaymentErrors(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()

	_, err := fx.payments.CreatePayment(ctx, CreateRequest{VisitorID: fx.visitor.ID})
	assert.ErrorIs(t, err, fberrors.ErrValidation)

	req := fx.request()
	req.VisitorID = 999
	_, err = fx.payments.CreatePayment(ctx, req)
	assert.ErrorIs(t, err, fberrors.ErrNotFound)

	_, err = fx.payments.CreatePayment(ctx, fx.request())
	assert.ErrorIs(t, err, fberrors.ErrUpstream, "no active credential")

	fx.addCredential(t)
	fx.gateway.err = errors.New("connection refused")
	_, err = fx.payments.CreatePayment(ctx, fx.request())
	assert.ErrorIs(t, err, fberrors.ErrUpstream)

	var count int64
	require.NoError(t, fx.db.Model(&Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWebhookIdempotent(t *testing.T) {
	fx := setup(t)
	fx.addCredential(t)
	ctx := context.Background()
	p, err := fx.payments.CreatePayment(ctx, fx.request())
	require.NoError(t, err)

	// same status as stored: nothing happens
	_, changed, err := fx.payments.HandleWebhook(ctx, "ext-1", StatusPending, map[string]any{"x": 1})
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := fx.payments.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(p.UpdatedAt))
	assert.Len(t, eventTypes(t, fx), 2)

	fx.payments.Now = func() time.Time { return fbdb.Now().Add(time.Minute) }
	paid, changed, err := fx.payments.HandleWebhook(ctx, "ext-1", StatusPaid, map[string]any{"paid_at": "now"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusPaid, paid.Status)
	assert.Equal(t, "now", paid.GatewayResponse["paid_at"])
	assert.Equal(t, "ext-1", paid.GatewayResponse["id"], "gateway data is merged")

	types := eventTypes(t, fx)
	assert.Equal(t, []string{
		fbvisitors.EventPageView,
		fbvisitors.EventPaymentInit,
		fbvisitors.EventPaymentStatusChange,
		fbvisitors.EventPaymentComplete,
	}, types)

	events, err := fx.visitors.Events(ctx, fx.visitor.ID)
	require.NoError(t, err)
	change := events[2].EventData
	assert.Equal(t, "pending", change["old_status"])
	assert.Equal(t, "paid", change["new_status"])
	assert.Equal(t, json.Number("97"), change["amount"])

	// redelivery of paid is a no-op
	_, changed, err = fx.payments.HandleWebhook(ctx, "ext-1", StatusPaid, nil)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, eventTypes(t, fx), 4)

	// terminal state ignores later transitions
	after, changed, err := fx.payments.HandleWebhook(ctx, "ext-1", StatusCancelled, nil)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, StatusPaid, after.Status)
}

func TestWebhookErrors(t *testing.T) {
	fx := setup(t)
	fx.addCredential(t)
	ctx := context.Background()
	_, err := fx.payments.CreatePayment(ctx, fx.request())
	require.NoError(t, err)

	_, _, err = fx.payments.HandleWebhook(ctx, "unknown", StatusPaid, nil)
	assert.ErrorIs(t, err, fberrors.ErrNotFound)

	_, _, err = fx.payments.HandleWebhook(ctx, "ext-1", Status("refunded"), nil)
	assert.ErrorIs(t, err, fberrors.ErrValidation)

	_, _, err = fx.payments.HandleWebhook(ctx, "", StatusPaid, nil)
	assert.ErrorIs(t, err, fberrors.ErrValidation)
}

func TestUpdateStatusWithoutVisitor(t *testing.T) {
	fx := setup(t)
	ctx := context.Background()
	p := &Payment{ExternalID: "manual", Amount: 500, Currency: "BRL", Status: StatusPending, PaymentMethod: "pix"}
	require.NoError(t, fx.db.Create(p).Error)

	changed, err := fx.payments.UpdateStatus(ctx, p, StatusFailed, nil)
	require.NoError(t, err)
	assert.True(t, changed)

	stored, err := fx.payments.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
}
