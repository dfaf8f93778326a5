package fbvisitors

import (
	"context"
	"errors"
	"strings"
	"time"

	"funnelboard/internal/models/fbdb"
	"funnelboard/internal/models/fberrors"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const cleanupBatch = 500

// CountryResolver maps an IP address to an ISO country code, or "".
type CountryResolver interface {
	Country(ip string) string
}

type Service struct {
	db  *gorm.DB
	geo CountryResolver
	Now func() time.Time
}

// NewService builds the tracking service. geo may be nil.
func NewService(db *gorm.DB, geo CountryResolver) *Service {
	return &Service{db: db, geo: geo, Now: fbdb.Now}
}

// TrackRequest is one event sent by a funnel page.
type TrackRequest struct {
	SessionID   string         `json:"session_id"`
	EventType   string         `json:"event_type"`
	FunnelID    *uint          `json:"funnel_id"`
	StepID      *uint          `json:"step_id"`
	EventData   map[string]any `json:"event_data"`
	UTMSource   string         `json:"utm_source"`
	UTMMedium   string         `json:"utm_medium"`
	UTMCampaign string         `json:"utm_campaign"`
	UTMTerm     string         `json:"utm_term"`
	UTMContent  string         `json:"utm_content"`
	IPAddress   string         `json:"-"`
	UserAgent   string         `json:"-"`
}

func (s *Service) GetVisitor(ctx context.Context, id uint) (*Visitor, error) {
	var v Visitor
	if err := s.db.WithContext(ctx).First(&v, id).Error; err != nil {
		return nil, fberrors.FromDB("visitor", err)
	}
	return &v, nil
}

func (s *Service) CountVisitors(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Visitor{}).Count(&n).Error; err != nil {
		return 0, fberrors.Internal("count visitors", err)
	}
	return n, nil
}

// UpdateActivity marks the visitor active now. The current step changes
// only when stepID is given and differs.
func (s *Service) UpdateActivity(ctx context.Context, v *Visitor, stepID *uint) error {
	if err := touch(s.db.WithContext(ctx), v, stepID, s.Now()); err != nil {
		return fberrors.Internal("update activity", err)
	}
	return nil
}

func touch(db *gorm.DB, v *Visitor, stepID *uint, now time.Time) error {
	updates := map[string]any{
		"last_activity": now,
		"is_online":     true,
	}
	changeStep := stepID != nil && (v.CurrentStepID == nil || *v.CurrentStepID != *stepID)
	if changeStep {
		updates["current_step_id"] = *stepID
	}
	if err := db.Model(&Visitor{}).Where("id = ?", v.ID).Updates(updates).Error; err != nil {
		return err
	}

	v.LastActivity = now
	v.IsOnline = true
	if changeStep {
		id := *stepID
		v.CurrentStepID = &id
	}
	return nil
}

// AddEvent appends an event and refreshes the visitor activity with the
// same timestamp, in one transaction.
func (s *Service) AddEvent(ctx context.Context, v *Visitor, eventType string, stepID *uint, data map[string]any) (*VisitorEvent, error) {
	if strings.TrimSpace(eventType) == "" {
		return nil, fberrors.Validation("event_type is required")
	}

	var ev *VisitorEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ev, err = AppendEvent(tx, v, eventType, stepID, data, s.Now())
		return err
	})
	if err != nil {
		return nil, fberrors.Internal("add event", err)
	}
	return ev, nil
}

// AppendEvent writes an event and the matching activity update on db,
// which is expected to be a transaction owned by the caller.
func AppendEvent(db *gorm.DB, v *Visitor, eventType string, stepID *uint, data map[string]any, now time.Time) (*VisitorEvent, error) {
	ev := &VisitorEvent{
		VisitorID: v.ID,
		EventType: eventType,
		StepID:    stepID,
		EventData: datatypes.JSONMap(data),
		CreatedAt: now,
	}
	if ev.EventData == nil {
		ev.EventData = datatypes.JSONMap{}
	}
	if err := db.Create(ev).Error; err != nil {
		return nil, err
	}
	if err := touch(db, v, stepID, now); err != nil {
		return nil, err
	}
	return ev, nil
}

// MarkOffline clears the online flag and nothing else.
func (s *Service) MarkOffline(ctx context.Context, v *Visitor) error {
	err := s.db.WithContext(ctx).Model(&Visitor{}).Where("id = ?", v.ID).Update("is_online", false).Error
	if err != nil {
		return fberrors.Internal("mark offline", err)
	}
	v.IsOnline = false
	return nil
}

// OnlineVisitors returns visitors flagged online and active within the
// window, most recent first.
func (s *Service) OnlineVisitors(ctx context.Context, funnelID *uint) ([]Visitor, error) {
	q := s.db.WithContext(ctx).
		Where("is_online = ? AND last_activity >= ?", true, s.Now().Add(-OnlineWindow))
	if funnelID != nil {
		q = q.Where("funnel_id = ?", *funnelID)
	}

	visitors := []Visitor{}
	if err := q.Order("last_activity DESC").Find(&visitors).Error; err != nil {
		return nil, fberrors.Internal("online visitors", err)
	}
	return visitors, nil
}

// MarkInactiveOffline flips the online flag of visitors idle for longer
// than the window and returns how many changed.
func (s *Service) MarkInactiveOffline(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Visitor{}).
		Where("is_online = ? AND last_activity < ?", true, s.Now().Add(-OnlineWindow)).
		Update("is_online", false)
	if res.Error != nil {
		return 0, fberrors.Internal("mark inactive offline", res.Error)
	}
	return res.RowsAffected, nil
}

// CleanupOldVisitors deletes visitors idle for more than days, and their
// events, in one transaction. It returns the number of visitors removed.
func (s *Service) CleanupOldVisitors(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fberrors.Validation("days must be positive")
	}
	cutoff := s.Now().AddDate(0, 0, -days)

	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&Visitor{}).Where("last_activity < ?", cutoff).Pluck("id", &ids).Error; err != nil {
			return err
		}
		for start := 0; start < len(ids); start += cleanupBatch {
			end := min(start+cleanupBatch, len(ids))
			batch := ids[start:end]
			if err := tx.Where("visitor_id IN ?", batch).Delete(&VisitorEvent{}).Error; err != nil {
				return err
			}
			res := tx.Where("id IN ?", batch).Delete(&Visitor{})
			if res.Error != nil {
				return res.Error
			}
			removed += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, fberrors.Internal("cleanup visitors", err)
	}
	return removed, nil
}

// Events returns the events of a visitor in chronological order.
func (s *Service) Events(ctx context.Context, visitorID uint) ([]VisitorEvent, error) {
	if _, err := s.GetVisitor(ctx, visitorID); err != nil {
		return nil, err
	}

	events := []VisitorEvent{}
	err := s.db.WithContext(ctx).
		Where("visitor_id = ?", visitorID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fberrors.Internal("visitor events", err)
	}
	return events, nil
}

// Track resolves the visitor of the request by session id, creating it on
// first sight, and records the event.
func (s *Service) Track(ctx context.Context, req TrackRequest) (*Visitor, *VisitorEvent, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, nil, fberrors.Validation("session_id is required")
	}
	if strings.TrimSpace(req.EventType) == "" {
		return nil, nil, fberrors.Validation("event_type is required")
	}

	v, err := s.resolve(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	ev, err := s.AddEvent(ctx, v, req.EventType, req.StepID, req.EventData)
	if err != nil {
		return nil, nil, err
	}
	return v, ev, nil
}

func (s *Service) resolve(ctx context.Context, req TrackRequest) (*Visitor, error) {
	db := s.db.WithContext(ctx)

	var v Visitor
	err := db.Where("session_id = ?", req.SessionID).First(&v).Error
	switch {
	case err == nil:
		if v.FunnelID == nil && req.FunnelID != nil {
			if err := db.Model(&v).Update("funnel_id", *req.FunnelID).Error; err != nil {
				return nil, fberrors.Internal("visitor funnel", err)
			}
		}
		return &v, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fberrors.Internal("visitor lookup", err)
	}

	now := s.Now()
	v = Visitor{
		SessionID:     req.SessionID,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		FunnelID:      req.FunnelID,
		CurrentStepID: req.StepID,
		UTMSource:     req.UTMSource,
		UTMMedium:     req.UTMMedium,
		UTMCampaign:   req.UTMCampaign,
		UTMTerm:       req.UTMTerm,
		UTMContent:    req.UTMContent,
		FirstVisit:    now,
		LastActivity:  now,
		IsOnline:      true,
	}
	if s.geo != nil && req.IPAddress != "" {
		v.Country = s.geo.Country(req.IPAddress)
	}

	if err := db.Create(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// another request created the same session first
			var existing Visitor
			if err := db.Where("session_id = ?", req.SessionID).First(&existing).Error; err == nil {
				return &existing, nil
			}
		}
		return nil, fberrors.Internal("create visitor", err)
	}

	log.Debug().Uint("visitor_id", v.ID).Str("country", v.Country).Msg("new visitor")
	return &v, nil
}
