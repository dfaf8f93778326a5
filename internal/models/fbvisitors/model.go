package fbvisitors

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// OnlineWindow is how recent the last activity must be for a visitor to
// count as online.
const OnlineWindow = 5 * time.Minute

const (
	EventPageView            = "page_view"
	EventFormSubmit          = "form_submit"
	EventPaymentInit         = "payment_init"
	EventPaymentComplete     = "payment_complete"
	EventPaymentStatusChange = "payment_status_change"
)

// Visitor is one browser session moving through funnels.
type Visitor struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SessionID     string    `gorm:"size:255;uniqueIndex;not null" json:"session_id"`
	IPAddress     string    `gorm:"size:45" json:"ip_address"`
	UserAgent     string    `gorm:"type:text" json:"user_agent"`
	Country       string    `gorm:"size:2" json:"country"`
	FunnelID      *uint     `gorm:"index" json:"funnel_id"`
	CurrentStepID *uint     `json:"current_step_id"`
	UTMSource     string    `gorm:"size:255" json:"utm_source"`
	UTMMedium     string    `gorm:"size:255" json:"utm_medium"`
	UTMCampaign   string    `gorm:"size:255" json:"utm_campaign"`
	UTMTerm       string    `gorm:"size:255" json:"utm_term"`
	UTMContent    string    `gorm:"size:255" json:"utm_content"`
	FirstVisit    time.Time `gorm:"not null" json:"first_visit"`
	LastActivity  time.Time `gorm:"not null;index" json:"last_activity"`
	IsOnline      bool      `gorm:"not null;index" json:"is_online"`
}

// VisitorEvent is an append-only record of something a visitor did.
type VisitorEvent struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	VisitorID uint              `gorm:"not null;index" json:"visitor_id"`
	EventType string            `gorm:"size:100;not null;index" json:"event_type"`
	StepID    *uint             `gorm:"index" json:"step_id"`
	EventData datatypes.JSONMap `json:"event_data"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}

func Models() []any {
	return []any{&Visitor{}, &VisitorEvent{}}
}

// OnlineAt reports whether the visitor is flagged online and was active
// within OnlineWindow before now.
func (v *Visitor) OnlineAt(now time.Time) bool {
	return v.IsOnline && !v.LastActivity.Before(now.Add(-OnlineWindow))
}

// TimeOnSite is the time between the first visit and the last activity.
func (v *Visitor) TimeOnSite() time.Duration {
	d := v.LastActivity.Sub(v.FirstVisit)
	if d < 0 {
		return 0
	}
	return d
}

// FormatDuration renders a duration as 45s, 3m 20s or 2h 5m.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%dh %dm", secs/3600, (secs%3600)/60)
	}
}

// VisitorView is the API representation of a visitor.
type VisitorView struct {
	Visitor
	Online              bool   `json:"online"`
	TimeOnSite          int64  `json:"time_on_site"`
	TimeOnSiteFormatted string `json:"time_on_site_formatted"`
}

func (v *Visitor) View(now time.Time) VisitorView {
	tos := v.TimeOnSite()
	return VisitorView{
		Visitor:             *v,
		Online:              v.OnlineAt(now),
		TimeOnSite:          int64(tos / time.Second),
		TimeOnSiteFormatted: FormatDuration(tos),
	}
}
