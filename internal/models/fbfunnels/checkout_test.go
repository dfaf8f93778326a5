package fbfunnels

import (
	"context"
	"strings"
	"testing"

	"funnelboard/internal/models/fberrors"
	"funnelboard/internal/models/fbmoney"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutLifecycle(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()
	f := mustFunnel(t, s, "f")
	st := mustStep(t, s, f.ID, "checkout", 1, true)

	_, err := s.CreateCheckout(ctx, f.ID, st.ID, CheckoutInput{ProductName: "P"})
	assert.ErrorIs(t, err, fberrors.ErrValidation)
	_, err = s.CreateCheckout(ctx, f.ID, 999, CheckoutInput{ProductName: "P", ProductPrice: ptr(fbmoney.Money(1))})
	assert.ErrorIs(t, err, fberrors.ErrNotFound)

	cfg, err := s.CreateCheckout(ctx, f.ID, st.ID, CheckoutInput{ProductName: "Course", ProductPrice: ptr(fbmoney.FromFloat(49.9))})
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrency, cfg.Currency)
	assert.Equal(t, []string{"pix"}, []string(cfg.PaymentMethods))

	_, err = s.CreateCheckout(ctx, f.ID, st.ID, CheckoutInput{ProductName: "Again", ProductPrice: ptr(fbmoney.Money(1))})
	assert.ErrorIs(t, err, fberrors.ErrConflict)

	up, err := s.UpdateCheckout(ctx, f.ID, st.ID, CheckoutInput{ProductPrice: ptr(fbmoney.Money(2990)), PaymentMethods: []string{"pix", "boleto"}})
	require.NoError(t, err)
	assert.Equal(t, "Course", up.ProductName)
	assert.Equal(t, fbmoney.Money(2990), up.ProductPrice)

	got, err := s.GetCheckout(ctx, f.ID, st.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"pix", "boleto"}, []string(got.PaymentMethods))

	require.NoError(t, s.DeleteCheckout(ctx, f.ID, st.ID))
	_, err = s.GetCheckout(ctx, f.ID, st.ID)
	assert.ErrorIs(t, err, fberrors.ErrNotFound)
}

func TestCheckoutPreview(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()
	f := mustFunnel(t, s, "f")
	st := mustStep(t, s, f.ID, "checkout", 1, true)
	_, err := s.UpdateStep(ctx, f.ID, st.ID, StepPatch{Content: map[string]any{"body": "# Offer", "title": "Buy"}})
	require.NoError(t, err)
	_, err = s.CreateCheckout(ctx, f.ID, st.ID, CheckoutInput{ProductName: "P", ProductPrice: ptr(fbmoney.Money(100))})
	require.NoError(t, err)

	preview, err := s.Preview(ctx, f.ID, st.ID, strings.ToUpper)
	require.NoError(t, err)
	assert.Equal(t, "# OFFER", preview.Content["body_html"])
	assert.Equal(t, "Buy", preview.Content["title"])
	assert.Equal(t, "P", preview.Checkout.ProductName)
}
