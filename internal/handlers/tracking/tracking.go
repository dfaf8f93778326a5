package handlers_tracking

import (
	"net/http"
	"strings"

	"funnelboard/internal/handlers"
	"funnelboard/internal/models/fbanalytics"
	"funnelboard/internal/models/fberrors"
	"funnelboard/internal/models/fbfunnels"
	"funnelboard/internal/models/fbmetrics"
	"funnelboard/internal/models/fbvisitors"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const sessionKey = "session_id"

type TrackingHandler struct {
	funnels  *fbfunnels.Service
	visitors *fbvisitors.Service
	scripts  *fbfunnels.ScriptRenderer
	realtime *fbanalytics.RealtimeCounter
	metrics  *fbmetrics.Metrics
}

// NewTrackingHandler builds the handler. realtime and metrics may be nil.
func NewTrackingHandler(funnels *fbfunnels.Service, visitors *fbvisitors.Service, scripts *fbfunnels.ScriptRenderer,
	realtime *fbanalytics.RealtimeCounter, metrics *fbmetrics.Metrics) *TrackingHandler {
	return &TrackingHandler{
		funnels:  funnels,
		visitors: visitors,
		scripts:  scripts,
		realtime: realtime,
		metrics:  metrics,
	}
}

func (th *TrackingHandler) ListPixels(c *gin.Context) {
	funnelID, ok := handlers.QueryID(c, "funnel_id")
	if !ok {
		return
	}
	stepID, ok := handlers.QueryID(c, "step_id")
	if !ok {
		return
	}
	pixels, err := th.funnels.ListPixels(c.Request.Context(), fbfunnels.PixelFilter{FunnelID: funnelID, StepID: stepID})
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, pixels)
}

func (th *TrackingHandler) CreatePixel(c *gin.Context) {
	var in fbfunnels.PixelInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	p, err := th.funnels.CreatePixel(c.Request.Context(), in)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (th *TrackingHandler) UpdatePixel(c *gin.Context) {
	id, ok := handlers.ParamID(c, "id")
	if !ok {
		return
	}
	var patch fbfunnels.PixelPatch
	if !handlers.BindJSON(c, &patch) {
		return
	}
	p, err := th.funnels.UpdatePixel(c.Request.Context(), id, patch)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (th *TrackingHandler) DeletePixel(c *gin.Context) {
	id, ok := handlers.ParamID(c, "id")
	if !ok {
		return
	}
	if err := th.funnels.DeletePixel(c.Request.Context(), id); err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RenderPixels returns the pixel snippets of a funnel page as HTML.
func (th *TrackingHandler) RenderPixels(c *gin.Context) {
	funnelID, ok := handlers.ParamID(c, "funnel_id")
	if !ok {
		return
	}
	stepID, ok := handlers.ParamID(c, "step_id")
	if !ok {
		return
	}
	pixels, err := th.funnels.FunnelPixels(c.Request.Context(), funnelID, &stepID)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(th.scripts.Render(pixels)))
}

// TrackEvent records an event sent by a funnel page. The session id comes
// from the body, then from the visitor cookie, and is generated otherwise.
func (th *TrackingHandler) TrackEvent(c *gin.Context) {
	var req fbvisitors.TrackRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	session := sessions.Default(c)
	if strings.TrimSpace(req.SessionID) == "" {
		if sid, ok := session.Get(sessionKey).(string); ok {
			req.SessionID = sid
		} else {
			req.SessionID = uuid.NewString()
		}
	}
	req.IPAddress = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	v, ev, err := th.visitors.Track(c.Request.Context(), req)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}

	if session.Get(sessionKey) != v.SessionID {
		session.Set(sessionKey, v.SessionID)
		if err := session.Save(); err != nil {
			log.Warn().Err(err).Msg("visitor session not saved")
		}
	}
	th.realtime.Record(c.Request.Context(), v.FunnelID, v.SessionID, ev.EventType, ev.CreatedAt)
	th.metrics.Event(ev.EventType)

	c.JSON(http.StatusCreated, gin.H{
		"visitor_id": v.ID,
		"event_id":   ev.ID,
		"session_id": v.SessionID,
	})
}

// MarkOffline is called by the visitor's own page on unload: the visitor
// cookie session must carry the session id of the visitor.
func (th *TrackingHandler) MarkOffline(c *gin.Context) {
	id, ok := handlers.ParamID(c, "id")
	if !ok {
		return
	}
	sid, _ := sessions.Default(c).Get(sessionKey).(string)
	if sid == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "visitor session required"})
		return
	}
	v, err := th.visitors.GetVisitor(c.Request.Context(), id)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	if v.SessionID != sid {
		c.JSON(http.StatusForbidden, gin.H{"error": "visitor session mismatch"})
		return
	}
	if err := th.visitors.MarkOffline(c.Request.Context(), v); err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "visitor marked offline"})
}
