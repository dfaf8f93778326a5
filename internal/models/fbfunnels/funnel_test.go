package fbfunnels

import (
	"context"
	"testing"

	"funnelboard/internal/models/fbdb"
	"funnelboard/internal/models/fberrors"
	"funnelboard/internal/models/fbmoney"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := fbdb.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, fbdb.Migrate(db, Models()...))
	return NewService(db), db
}

func ptr[T any](v T) *T { return &v }

func mustFunnel(t *testing.T, s *Service, slug string) *Funnel {
	t.Helper()
	f, err := s.CreateFunnel(context.Background(), FunnelInput{Name: "Funnel " + slug, Slug: slug}, nil)
	require.NoError(t, err)
	return f
}

func mustStep(t *testing.T, s *Service, funnelID uint, slug string, order int, active bool) *FunnelStep {
	t.Helper()
	st, err := s.CreateStep(context.Background(), funnelID, StepInput{
		Name:       "Step " + slug,
		Slug:       slug,
		StepType:   StepCapture,
		OrderIndex: ptr(order),
		IsActive:   ptr(active),
	})
	require.NoError(t, err)
	return st
}

func TestCreateFunnel(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()

	f, err := s.CreateFunnel(ctx, FunnelInput{
		Name:        "Launch",
		Slug:        "launch",
		Description: "**Big** launch",
		Settings:    map[string]any{"theme": "dark"},
	}, ptr(uint(1)))
	require.NoError(t, err)
	assert.True(t, f.IsActive)
	assert.Equal(t, "dark", f.Settings["theme"])

	_, err = s.CreateFunnel(ctx, FunnelInput{Name: "Other", Slug: "launch"}, nil)
	assert.ErrorIs(t, err, fberrors.ErrConflict)

	_, err = s.CreateFunnel(ctx, FunnelInput{Name: "", Slug: "x"}, nil)
	assert.ErrorIs(t, err, fberrors.ErrValidation)

	inactive, err := s.CreateFunnel(ctx, FunnelInput{Name: "Off", Slug: "off", IsActive: ptr(false)}, nil)
	require.NoError(t, err)
	got, err := s.GetFunnel(ctx, inactive.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestFunnelView(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()

	f, err := s.CreateFunnel(ctx, FunnelInput{Name: "Launch", Slug: "launch", Description: "# Title\n\nSome *bold* text"}, nil)
	require.NoError(t, err)
	mustStep(t, s, f.ID, "a", 1, true)
	mustStep(t, s, f.ID, "b", 2, false)

	v, err := s.View(ctx, f, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.StepsCount)
	assert.Equal(t, int64(1), v.ActiveStepsCount)
	assert.Len(t, v.Steps, 2)
	assert.NotContains(t, v.Summary, "#")
	assert.NotContains(t, v.Summary, "*")
	assert.Contains(t, v.Summary, "bold")

	list, err := s.ListFunnels(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Steps)
}

func TestUpdateFunnel(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()
	a := mustFunnel(t, s, "a")
	mustFunnel(t, s, "b")

	_, err := s.UpdateFunnel(ctx, a.ID, FunnelPatch{Slug: ptr("b")})
	assert.ErrorIs(t, err, fberrors.ErrConflict)

	up, err := s.UpdateFunnel(ctx, a.ID, FunnelPatch{Name: ptr("Renamed"), IsActive: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", up.Name)
	assert.False(t, up.IsActive)
	assert.Equal(t, "a", up.Slug)

	_, err = s.UpdateFunnel(ctx, 999, FunnelPatch{})
	assert.ErrorIs(t, err, fberrors.ErrNotFound)
}

func TestDeleteFunnelRemovesChildren(t *testing.T) {
	s, db := setupService(t)
	ctx := context.Background()
	f := mustFunnel(t, s, "f")
	st := mustStep(t, s, f.ID, "s", 1, true)
	_, err := s.CreateCheckout(ctx, f.ID, st.ID, CheckoutInput{ProductName: "P", ProductPrice: ptr(fbmoney.Money(100))})
	require.NoError(t, err)
	_, err = s.CreatePixel(ctx, PixelInput{FunnelID: f.ID, PixelType: PixelCustom, PixelID: "x"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteFunnel(ctx, f.ID))

	for _, m := range Models() {
		var n int64
		require.NoError(t, db.Model(m).Count(&n).Error)
		assert.Zero(t, n)
	}
	assert.ErrorIs(t, s.DeleteFunnel(ctx, f.ID), fberrors.ErrNotFound)
}

func TestSummaryTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "word "
	}
	sum := Summary(long)
	assert.LessOrEqual(t, len([]rune(sum)), summaryLength+3)
	assert.True(t, len(sum) > 0)
	assert.Equal(t, "plain", Summary("plain"))
}
