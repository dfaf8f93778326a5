package fbfunnels

import (
	"context"
	"strings"

	"funnelboard/internal/models/fberrors"
)

type PixelInput struct {
	FunnelID  uint      `json:"funnel_id"`
	StepID    *uint     `json:"step_id"`
	PixelType PixelType `json:"pixel_type"`
	PixelID   string    `json:"pixel_id"`
	EventName string    `json:"event_name"`
	IsActive  *bool     `json:"is_active"`
}

type PixelPatch struct {
	PixelType *PixelType `json:"pixel_type"`
	PixelID   *string    `json:"pixel_id"`
	EventName *string    `json:"event_name"`
	IsActive  *bool      `json:"is_active"`
}

// PixelFilter selects pixels for listing. With a step, the active pixels
// of that step plus the funnel-wide ones are returned. With only a funnel,
// its funnel-wide pixels. With nothing, every pixel.
type PixelFilter struct {
	FunnelID *uint
	StepID   *uint
}

func (s *Service) ListPixels(ctx context.Context, f PixelFilter) ([]TrackingPixel, error) {
	if f.FunnelID != nil {
		return s.FunnelPixels(ctx, *f.FunnelID, f.StepID)
	}

	pixels := []TrackingPixel{}
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&pixels).Error; err != nil {
		return nil, fberrors.Internal("list pixels", err)
	}
	return pixels, nil
}

// FunnelPixels returns the active pixels that apply to a funnel page: the
// funnel-wide ones, plus those of the step when one is given.
func (s *Service) FunnelPixels(ctx context.Context, funnelID uint, stepID *uint) ([]TrackingPixel, error) {
	q := s.db.WithContext(ctx).Where("funnel_id = ? AND is_active = ?", funnelID, true)
	if stepID != nil {
		q = q.Where("step_id IS NULL OR step_id = ?", *stepID)
	} else {
		q = q.Where("step_id IS NULL")
	}

	pixels := []TrackingPixel{}
	if err := q.Order("id ASC").Find(&pixels).Error; err != nil {
		return nil, fberrors.Internal("funnel pixels", err)
	}
	return pixels, nil
}

func (s *Service) GetPixel(ctx context.Context, id uint) (*TrackingPixel, error) {
	var p TrackingPixel
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, fberrors.FromDB("pixel", err)
	}
	return &p, nil
}

func (s *Service) CreatePixel(ctx context.Context, in PixelInput) (*TrackingPixel, error) {
	if in.FunnelID == 0 || in.PixelType == "" || strings.TrimSpace(in.PixelID) == "" {
		return nil, fberrors.Validation("funnel_id, pixel_type and pixel_id are required")
	}
	if !in.PixelType.Valid() {
		return nil, fberrors.Validation("invalid pixel_type %q", in.PixelType)
	}
	if _, err := s.GetFunnel(ctx, in.FunnelID); err != nil {
		return nil, err
	}
	if in.StepID != nil {
		if _, err := s.GetStep(ctx, in.FunnelID, *in.StepID); err != nil {
			return nil, err
		}
	}

	p := &TrackingPixel{
		FunnelID:  in.FunnelID,
		StepID:    in.StepID,
		PixelType: in.PixelType,
		PixelID:   strings.TrimSpace(in.PixelID),
		EventName: in.EventName,
		IsActive:  in.IsActive == nil || *in.IsActive,
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fberrors.FromDB("pixel", err)
	}
	return p, nil
}

func (s *Service) UpdatePixel(ctx context.Context, id uint, patch PixelPatch) (*TrackingPixel, error) {
	p, err := s.GetPixel(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.PixelType != nil {
		if !patch.PixelType.Valid() {
			return nil, fberrors.Validation("invalid pixel_type %q", *patch.PixelType)
		}
		p.PixelType = *patch.PixelType
	}
	if patch.PixelID != nil {
		if strings.TrimSpace(*patch.PixelID) == "" {
			return nil, fberrors.Validation("pixel_id cannot be empty")
		}
		p.PixelID = strings.TrimSpace(*patch.PixelID)
	}
	if patch.EventName != nil {
		p.EventName = *patch.EventName
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}

	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, fberrors.FromDB("pixel", err)
	}
	return p, nil
}

func (s *Service) DeletePixel(ctx context.Context, id uint) error {
	p, err := s.GetPixel(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(p).Error; err != nil {
		return fberrors.Internal("delete pixel", err)
	}
	return nil
}
