package fbvisitors

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"funnelboard/internal/models/fbdb"
	"funnelboard/internal/models/fberrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixedGeo map[string]string

func (g fixedGeo) Country(ip string) string { return g[ip] }

type clock struct{ t time.Time }

func (c *clock) Now() time.Time           { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setup(t *testing.T) (*Service, *gorm.DB, *clock) {
	t.Helper()
	db, err := fbdb.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, fbdb.Migrate(db, Models()...))

	c := &clock{t: time.Date(2024, 11, 29, 12, 0, 0, 0, time.UTC)}
	s := NewService(db, fixedGeo{"203.0.113.7": "BR"})
	s.Now = c.Now
	return s, db, c
}

func ptr[T any](v T) *T { return &v }

func newVisitor(t *testing.T, s *Service, session string) *Visitor {
	t.Helper()
	v, _, err := s.Track(context.Background(), TrackRequest{SessionID: session, EventType: EventPageView})
	require.NoError(t, err)
	return v
}

func TestOnlineAt(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	stale := Visitor{IsOnline: true, LastActivity: now.Add(-6 * time.Minute)}
	fresh := Visitor{IsOnline: true, LastActivity: now.Add(-time.Minute)}
	flaggedOff := Visitor{IsOnline: false, LastActivity: now}

	assert.False(t, stale.OnlineAt(now))
	assert.True(t, fresh.OnlineAt(now))
	assert.False(t, flaggedOff.OnlineAt(now))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", FormatDuration(0))
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "3m 20s", FormatDuration(200*time.Second))
	assert.Equal(t, "2h 5m", FormatDuration(2*time.Hour+5*time.Minute+9*time.Second))
}

func TestViewTimeOnSite(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	v := Visitor{FirstVisit: start, LastActivity: start.Add(200 * time.Second), IsOnline: true}
	view := v.View(start.Add(201 * time.Second))
	assert.Equal(t, int64(200), view.TimeOnSite)
	assert.Equal(t, "3m 20s", view.TimeOnSiteFormatted)
	assert.True(t, view.Online)
}

func TestTrackCreatesThenReuses(t *testing.T) {
	s, _, c := setup(t)
	ctx := context.Background()

	v, ev, err := s.Track(ctx, TrackRequest{
		SessionID: "sess-1",
		EventType: EventPageView,
		FunnelID:  ptr(uint(3)),
		StepID:    ptr(uint(10)),
		UTMSource: "facebook",
		IPAddress: "203.0.113.7",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	assert.Equal(t, "BR", v.Country)
	assert.Equal(t, "facebook", v.UTMSource)
	assert.Equal(t, uint(10), *v.CurrentStepID)
	assert.Equal(t, c.Now(), ev.CreatedAt)

	c.Advance(time.Minute)
	again, _, err := s.Track(ctx, TrackRequest{SessionID: "sess-1", EventType: EventFormSubmit, StepID: ptr(uint(11))})
	require.NoError(t, err)
	assert.Equal(t, v.ID, again.ID)
	assert.Equal(t, uint(11), *again.CurrentStepID)
	assert.Equal(t, c.Now(), again.LastActivity)

	n, err := s.CountVisitors(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, _, err = s.Track(ctx, TrackRequest{SessionID: "sess-1"})
	assert.ErrorIs(t, err, fberrors.ErrValidation)
}

func TestAddEventStampsSameTime(t *testing.T) {
	s, _, c := setup(t)
	ctx := context.Background()
	v := newVisitor(t, s, "a")

	c.Advance(90 * time.Second)
	ev, err := s.AddEvent(ctx, v, "video_play", nil, map[string]any{"position": 12.0})
	require.NoError(t, err)

	stored, err := s.GetVisitor(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, ev.CreatedAt.Equal(stored.LastActivity))
	assert.Nil(t, stored.CurrentStepID, "no step given, current step unchanged")

	events, err := s.Events(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventPageView, events[0].EventType)
	assert.Equal(t, "video_play", events[1].EventType)
	assert.Equal(t, json.Number("12"), events[1].EventData["position"])

	_, err = s.Events(ctx, 999)
	assert.ErrorIs(t, err, fberrors.ErrNotFound)
}

func TestOnlineVisitorsAndSweep(t *testing.T) {
	s, _, c := setup(t)
	ctx := context.Background()

	stale := newVisitor(t, s, "stale")
	c.Advance(6 * time.Minute)
	fresh := newVisitor(t, s, "fresh")
	c.Advance(time.Minute)

	online, err := s.OnlineVisitors(ctx, nil)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, fresh.ID, online[0].ID)

	n, err := s.MarkInactiveOffline(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetVisitor(ctx, stale.ID)
	require.NoError(t, err)
	assert.False(t, got.IsOnline)

	n, err = s.MarkInactiveOffline(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOnlineVisitorsByFunnel(t *testing.T) {
	s, _, _ := setup(t)
	ctx := context.Background()
	_, _, err := s.Track(ctx, TrackRequest{SessionID: "a", EventType: EventPageView, FunnelID: ptr(uint(1))})
	require.NoError(t, err)
	_, _, err = s.Track(ctx, TrackRequest{SessionID: "b", EventType: EventPageView, FunnelID: ptr(uint(2))})
	require.NoError(t, err)

	online, err := s.OnlineVisitors(ctx, ptr(uint(2)))
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, "b", online[0].SessionID)
}

func TestMarkOffline(t *testing.T) {
	s, _, _ := setup(t)
	ctx := context.Background()
	v := newVisitor(t, s, "a")
	before := v.LastActivity

	require.NoError(t, s.MarkOffline(ctx, v))
	got, err := s.GetVisitor(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, got.IsOnline)
	assert.True(t, before.Equal(got.LastActivity))
}

func TestCleanupOldVisitors(t *testing.T) {
	s, db, c := setup(t)
	ctx := context.Background()

	old := newVisitor(t, s, "old")
	_, err := s.AddEvent(ctx, old, EventFormSubmit, nil, nil)
	require.NoError(t, err)
	c.Advance(31 * 24 * time.Hour)
	recent := newVisitor(t, s, "recent")

	n, err := s.CleanupOldVisitors(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetVisitor(ctx, old.ID)
	assert.ErrorIs(t, err, fberrors.ErrNotFound)
	_, err = s.GetVisitor(ctx, recent.ID)
	assert.NoError(t, err)

	var orphans int64
	require.NoError(t, db.Model(&VisitorEvent{}).Where("visitor_id = ?", old.ID).Count(&orphans).Error)
	assert.Zero(t, orphans)

	_, err = s.CleanupOldVisitors(ctx, 0)
	assert.ErrorIs(t, err, fberrors.ErrValidation)
}

func TestAddEventBringsVisitorBackOnline(t *testing.T) {
	s, _, c := setup(t)
	ctx := context.Background()
	v := newVisitor(t, s, "back")
	require.NoError(t, s.MarkOffline(ctx, v))

	c.Advance(10 * time.Minute)
	ev, err := s.AddEvent(ctx, v, EventPageView, ptr(uint(5)), nil)
	require.NoError(t, err)

	got, err := s.GetVisitor(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOnline)
	assert.True(t, got.LastActivity.Equal(ev.CreatedAt))
	assert.Equal(t, uint(5), *got.CurrentStepID)
}
