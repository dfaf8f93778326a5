package fbfunnels

import (
	"context"
	"encoding/json"
	"strings"

	"funnelboard/internal/models/fberrors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type StepInput struct {
	Name       string         `json:"name"`
	Slug       string         `json:"slug"`
	StepType   StepType       `json:"step_type"`
	OrderIndex *int           `json:"order_index"`
	IsActive   *bool          `json:"is_active"`
	Settings   map[string]any `json:"settings"`
	Content    map[string]any `json:"content"`
}

type StepPatch struct {
	Name       *string        `json:"name"`
	Slug       *string        `json:"slug"`
	StepType   *StepType      `json:"step_type"`
	OrderIndex *int           `json:"order_index"`
	IsActive   *bool          `json:"is_active"`
	Settings   map[string]any `json:"settings"`
	Content    map[string]any `json:"content"`
}

// StepOrder assigns a new order index to one step. The step is read from
// "step_id", or from "id" as dashboard clients send it.
type StepOrder struct {
	StepID     uint `json:"step_id"`
	OrderIndex int  `json:"order_index"`
}

func (o *StepOrder) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         *uint `json:"id"`
		StepID     *uint `json:"step_id"`
		OrderIndex int   `json:"order_index"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = StepOrder{OrderIndex: raw.OrderIndex}
	switch {
	case raw.StepID != nil:
		o.StepID = *raw.StepID
	case raw.ID != nil:
		o.StepID = *raw.ID
	}
	return nil
}

// GetSteps returns the steps of a funnel sorted by order index, ties by id.
func (s *Service) GetSteps(ctx context.Context, funnelID uint) ([]FunnelStep, error) {
	steps := []FunnelStep{}
	err := s.db.WithContext(ctx).
		Where("funnel_id = ?", funnelID).
		Order("order_index ASC, id ASC").
		Find(&steps).Error
	if err != nil {
		return nil, fberrors.Internal("list steps", err)
	}
	return steps, nil
}

// GetStep returns a step only when it belongs to the funnel.
func (s *Service) GetStep(ctx context.Context, funnelID, stepID uint) (*FunnelStep, error) {
	var step FunnelStep
	err := s.db.WithContext(ctx).
		Where("id = ? AND funnel_id = ?", stepID, funnelID).
		First(&step).Error
	if err != nil {
		return nil, fberrors.FromDB("step", err)
	}
	return &step, nil
}

func (s *Service) CreateStep(ctx context.Context, funnelID uint, in StepInput) (*FunnelStep, error) {
	if _, err := s.GetFunnel(ctx, funnelID); err != nil {
		return nil, err
	}

	name, slug := strings.TrimSpace(in.Name), strings.TrimSpace(in.Slug)
	if name == "" || slug == "" || in.StepType == "" || in.OrderIndex == nil {
		return nil, fberrors.Validation("name, slug, step_type and order_index are required")
	}
	if !in.StepType.Valid() {
		return nil, fberrors.Validation("invalid step_type %q", in.StepType)
	}

	db := s.db.WithContext(ctx)
	if err := ensureStepSlugFree(db, funnelID, slug); err != nil {
		return nil, err
	}

	step := &FunnelStep{
		FunnelID:   funnelID,
		Name:       name,
		Slug:       slug,
		StepType:   in.StepType,
		OrderIndex: *in.OrderIndex,
		IsActive:   in.IsActive == nil || *in.IsActive,
		Settings:   toMap(in.Settings),
		Content:    toMap(in.Content),
	}
	if err := db.Create(step).Error; err != nil {
		return nil, fberrors.FromDB("step", err)
	}

	log.Info().Uint("funnel_id", funnelID).Uint("step_id", step.ID).Str("type", string(step.StepType)).Msg("step created")
	return step, nil
}

func ensureStepSlugFree(db *gorm.DB, funnelID uint, slug string) error {
	var count int64
	err := db.Model(&FunnelStep{}).Where("funnel_id = ? AND slug = ?", funnelID, slug).Count(&count).Error
	if err != nil {
		return fberrors.Internal("step slug lookup", err)
	}
	if count > 0 {
		return fberrors.Conflict("step slug %q already exists in this funnel", slug)
	}
	return nil
}

func (s *Service) UpdateStep(ctx context.Context, funnelID, stepID uint, p StepPatch) (*FunnelStep, error) {
	step, err := s.GetStep(ctx, funnelID, stepID)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return nil, fberrors.Validation("name cannot be empty")
		}
		step.Name = strings.TrimSpace(*p.Name)
	}
	if p.Slug != nil {
		slug := strings.TrimSpace(*p.Slug)
		if slug == "" {
			return nil, fberrors.Validation("slug cannot be empty")
		}
		if slug != step.Slug {
			if err := ensureStepSlugFree(db, funnelID, slug); err != nil {
				return nil, err
			}
			step.Slug = slug
		}
	}
	if p.StepType != nil {
		if !p.StepType.Valid() {
			return nil, fberrors.Validation("invalid step_type %q", *p.StepType)
		}
		step.StepType = *p.StepType
	}
	if p.OrderIndex != nil {
		step.OrderIndex = *p.OrderIndex
	}
	if p.IsActive != nil {
		step.IsActive = *p.IsActive
	}
	if p.Settings != nil {
		step.Settings = toMap(p.Settings)
	}
	if p.Content != nil {
		step.Content = toMap(p.Content)
	}

	if err := db.Save(step).Error; err != nil {
		return nil, fberrors.FromDB("step", err)
	}
	return step, nil
}

// DeleteStep removes the step with its checkout configs and pixels.
func (s *Service) DeleteStep(ctx context.Context, funnelID, stepID uint) error {
	if _, err := s.GetStep(ctx, funnelID, stepID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("step_id = ?", stepID).Delete(&TrackingPixel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("step_id = ?", stepID).Delete(&CheckoutConfig{}).Error; err != nil {
			return err
		}
		return tx.Delete(&FunnelStep{}, stepID).Error
	})
	if err != nil {
		return fberrors.Internal("delete step", err)
	}
	return nil
}

// Reorder applies the new order indexes in one transaction. Pairs whose
// step does not belong to the funnel are skipped. Indexes are stored as
// given, gaps and duplicates included. It returns the number of steps
// updated.
func (s *Service) Reorder(ctx context.Context, funnelID uint, orders []StepOrder) (int, error) {
	if _, err := s.GetFunnel(ctx, funnelID); err != nil {
		return 0, err
	}

	updated := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range orders {
			res := tx.Model(&FunnelStep{}).
				Where("id = ? AND funnel_id = ?", o.StepID, funnelID).
				Update("order_index", o.OrderIndex)
			if res.Error != nil {
				return res.Error
			}
			updated += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, fberrors.Internal("reorder steps", err)
	}
	return updated, nil
}

// NextStep returns the active step of the same funnel with the smallest
// order index greater than the step's, or nil.
func (s *Service) NextStep(ctx context.Context, step *FunnelStep) (*FunnelStep, error) {
	return s.neighbor(ctx, step, "order_index > ?", "order_index ASC, id ASC")
}

// PreviousStep returns the active step of the same funnel with the greatest
// order index smaller than the step's, or nil.
func (s *Service) PreviousStep(ctx context.Context, step *FunnelStep) (*FunnelStep, error) {
	return s.neighbor(ctx, step, "order_index < ?", "order_index DESC, id DESC")
}

func (s *Service) neighbor(ctx context.Context, step *FunnelStep, cond, order string) (*FunnelStep, error) {
	var found []FunnelStep
	err := s.db.WithContext(ctx).
		Where("funnel_id = ? AND is_active = ?", step.FunnelID, true).
		Where(cond, step.OrderIndex).
		Order(order).
		Limit(1).
		Find(&found).Error
	if err != nil {
		return nil, fberrors.Internal("neighbor step", err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}
