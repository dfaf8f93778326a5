package fbfunnels

import (
	"context"
	"strings"

	"funnelboard/internal/models/fberrors"

	"github.com/rs/zerolog/log"
	stripmd "github.com/writeas/go-strip-markdown"
	"gorm.io/gorm"
)

const summaryLength = 160

// Service owns funnels, their steps, checkout configs and pixels.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type FunnelInput struct {
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Description string         `json:"description"`
	Niche       string         `json:"niche"`
	IsActive    *bool          `json:"is_active"`
	Settings    map[string]any `json:"settings"`
}

// FunnelPatch carries the fields to change; nil fields are left alone.
type FunnelPatch struct {
	Name        *string        `json:"name"`
	Slug        *string        `json:"slug"`
	Description *string        `json:"description"`
	Niche       *string        `json:"niche"`
	IsActive    *bool          `json:"is_active"`
	Settings    map[string]any `json:"settings"`
}

// FunnelView is the API representation of a funnel.
type FunnelView struct {
	Funnel
	StepsCount       int64        `json:"steps_count"`
	ActiveStepsCount int64        `json:"active_steps_count"`
	Summary          string       `json:"summary"`
	Steps            []FunnelStep `json:"steps,omitempty"`
}

// Summary is the description as plain text, cut to a preview length.
func Summary(description string) string {
	plain := strings.TrimSpace(stripmd.Strip(description))
	runes := []rune(plain)
	if len(runes) <= summaryLength {
		return plain
	}
	return strings.TrimSpace(string(runes[:summaryLength])) + "..."
}

func (s *Service) CreateFunnel(ctx context.Context, in FunnelInput, owner *uint) (*Funnel, error) {
	name, slug := strings.TrimSpace(in.Name), strings.TrimSpace(in.Slug)
	if name == "" || slug == "" {
		return nil, fberrors.Validation("name and slug are required")
	}

	db := s.db.WithContext(ctx)
	if err := ensureSlugFree(db, slug); err != nil {
		return nil, err
	}

	f := &Funnel{
		Name:        name,
		Slug:        slug,
		Description: in.Description,
		Niche:       in.Niche,
		IsActive:    in.IsActive == nil || *in.IsActive,
		Settings:    toMap(in.Settings),
		CreatedBy:   owner,
	}
	if err := db.Create(f).Error; err != nil {
		return nil, fberrors.FromDB("funnel", err)
	}

	log.Info().Uint("funnel_id", f.ID).Str("slug", f.Slug).Msg("funnel created")
	return f, nil
}

func ensureSlugFree(db *gorm.DB, slug string) error {
	var count int64
	if err := db.Model(&Funnel{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return fberrors.Internal("funnel slug lookup", err)
	}
	if count > 0 {
		return fberrors.Conflict("slug %q already exists", slug)
	}
	return nil
}

func (s *Service) GetFunnel(ctx context.Context, id uint) (*Funnel, error) {
	var f Funnel
	if err := s.db.WithContext(ctx).First(&f, id).Error; err != nil {
		return nil, fberrors.FromDB("funnel", err)
	}
	return &f, nil
}

// View decorates a funnel with its step counts and summary, and with its
// ordered steps when withSteps is set.
func (s *Service) View(ctx context.Context, f *Funnel, withSteps bool) (*FunnelView, error) {
	db := s.db.WithContext(ctx)
	v := &FunnelView{Funnel: *f, Summary: Summary(f.Description)}

	if err := db.Model(&FunnelStep{}).Where("funnel_id = ?", f.ID).Count(&v.StepsCount).Error; err != nil {
		return nil, fberrors.Internal("count steps", err)
	}
	if err := db.Model(&FunnelStep{}).Where("funnel_id = ? AND is_active = ?", f.ID, true).Count(&v.ActiveStepsCount).Error; err != nil {
		return nil, fberrors.Internal("count active steps", err)
	}
	if withSteps {
		steps, err := s.GetSteps(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		v.Steps = steps
	}
	return v, nil
}

// ListFunnels returns every funnel, newest first.
func (s *Service) ListFunnels(ctx context.Context) ([]FunnelView, error) {
	var funnels []Funnel
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&funnels).Error; err != nil {
		return nil, fberrors.Internal("list funnels", err)
	}

	views := make([]FunnelView, 0, len(funnels))
	for i := range funnels {
		v, err := s.View(ctx, &funnels[i], false)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func (s *Service) CountFunnels(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Funnel{}).Count(&n).Error; err != nil {
		return 0, fberrors.Internal("count funnels", err)
	}
	return n, nil
}

func (s *Service) UpdateFunnel(ctx context.Context, id uint, p FunnelPatch) (*Funnel, error) {
	f, err := s.GetFunnel(ctx, id)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return nil, fberrors.Validation("name cannot be empty")
		}
		f.Name = strings.TrimSpace(*p.Name)
	}
	if p.Slug != nil {
		slug := strings.TrimSpace(*p.Slug)
		if slug == "" {
			return nil, fberrors.Validation("slug cannot be empty")
		}
		if slug != f.Slug {
			if err := ensureSlugFree(db, slug); err != nil {
				return nil, err
			}
			f.Slug = slug
		}
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.Niche != nil {
		f.Niche = *p.Niche
	}
	if p.IsActive != nil {
		f.IsActive = *p.IsActive
	}
	if p.Settings != nil {
		f.Settings = toMap(p.Settings)
	}

	if err := db.Save(f).Error; err != nil {
		return nil, fberrors.FromDB("funnel", err)
	}
	return f, nil
}

// DeleteFunnel removes the funnel with its steps, checkout configs and
// pixels in one transaction.
func (s *Service) DeleteFunnel(ctx context.Context, id uint) error {
	if _, err := s.GetFunnel(ctx, id); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("funnel_id = ?", id).Delete(&TrackingPixel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("funnel_id = ?", id).Delete(&CheckoutConfig{}).Error; err != nil {
			return err
		}
		if err := tx.Where("funnel_id = ?", id).Delete(&FunnelStep{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Funnel{}, id).Error
	})
	if err != nil {
		return fberrors.Internal("delete funnel", err)
	}

	log.Info().Uint("funnel_id", id).Msg("funnel deleted")
	return nil
}
