package fbfunnels

import (
	"context"
	"errors"
	"strings"

	"funnelboard/internal/models/fberrors"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Clone copies a funnel with all its steps, checkout configs and pixels
// under a new name and slug. Everything is written in one transaction,
// nothing is left behind on failure.
func (s *Service) Clone(ctx context.Context, srcID uint, name, slug string, owner *uint) (*Funnel, error) {
	name, slug = strings.TrimSpace(name), strings.TrimSpace(slug)
	if name == "" || slug == "" {
		return nil, fberrors.Validation("name and slug are required")
	}

	src, err := s.GetFunnel(ctx, srcID)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if err := ensureSlugFree(db, slug); err != nil {
		return nil, err
	}

	var clone *Funnel
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		clone, err = cloneGraph(tx, src, name, slug, owner)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fberrors.Conflict("slug %q already exists", slug)
		}
		return nil, fberrors.Internal("clone funnel", err)
	}

	log.Info().Uint("source_id", src.ID).Uint("funnel_id", clone.ID).Str("slug", slug).Msg("funnel cloned")
	return clone, nil
}

func cloneGraph(tx *gorm.DB, src *Funnel, name, slug string, owner *uint) (*Funnel, error) {
	clone := &Funnel{
		Name:      name,
		Slug:      slug,
		Niche:     src.Niche,
		IsActive:  true,
		Settings:  copyMap(src.Settings),
		CreatedBy: owner,
	}
	if src.Description != "" {
		clone.Description = "Copy of " + src.Description
	}
	if err := tx.Create(clone).Error; err != nil {
		return nil, err
	}

	var steps []FunnelStep
	if err := tx.Where("funnel_id = ?", src.ID).Order("order_index ASC, id ASC").Find(&steps).Error; err != nil {
		return nil, err
	}
	stepMap := make(map[uint]uint, len(steps))
	for _, st := range steps {
		ns := FunnelStep{
			FunnelID:   clone.ID,
			Name:       st.Name,
			Slug:       st.Slug,
			StepType:   st.StepType,
			OrderIndex: st.OrderIndex,
			IsActive:   st.IsActive,
			Settings:   copyMap(st.Settings),
			Content:    copyMap(st.Content),
		}
		if err := tx.Create(&ns).Error; err != nil {
			return nil, err
		}
		stepMap[st.ID] = ns.ID
	}

	var checkouts []CheckoutConfig
	if err := tx.Where("funnel_id = ?", src.ID).Order("id ASC").Find(&checkouts).Error; err != nil {
		return nil, err
	}
	for _, co := range checkouts {
		stepID := co.StepID
		if mapped, ok := stepMap[co.StepID]; ok {
			stepID = mapped
		}
		nc := CheckoutConfig{
			FunnelID:       clone.ID,
			StepID:         stepID,
			ProductName:    co.ProductName,
			ProductPrice:   co.ProductPrice,
			Currency:       co.Currency,
			PaymentMethods: datatypes.JSONSlice[string](append([]string{}, co.PaymentMethods...)),
			FieldsConfig:   copyMap(co.FieldsConfig),
			DesignConfig:   copyMap(co.DesignConfig),
			UpsellConfig:   copyMap(co.UpsellConfig),
		}
		if err := tx.Create(&nc).Error; err != nil {
			return nil, err
		}
	}

	var pixels []TrackingPixel
	if err := tx.Where("funnel_id = ?", src.ID).Order("id ASC").Find(&pixels).Error; err != nil {
		return nil, err
	}
	for _, px := range pixels {
		np := TrackingPixel{
			FunnelID:  clone.ID,
			StepID:    relinkStep(px.StepID, stepMap),
			PixelType: px.PixelType,
			PixelID:   px.PixelID,
			EventName: px.EventName,
			IsActive:  px.IsActive,
		}
		if err := tx.Create(&np).Error; err != nil {
			return nil, err
		}
	}

	return clone, nil
}

// relinkStep maps an old step id to its clone. A nil step stays nil and a
// step that was not cloned keeps its id.
func relinkStep(id *uint, stepMap map[uint]uint) *uint {
	if id == nil {
		return nil
	}
	v := *id
	if mapped, ok := stepMap[v]; ok {
		v = mapped
	}
	return &v
}
