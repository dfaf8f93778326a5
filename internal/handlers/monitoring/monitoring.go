package handlers_monitoring

import (
	"net/http"

	"funnelboard/internal/handlers"
	"funnelboard/internal/models/fbanalytics"
	"funnelboard/internal/models/fberrors"
	"funnelboard/internal/models/fbvisitors"

	"github.com/gin-gonic/gin"
)

type MonitoringHandler struct {
	visitors  *fbvisitors.Service
	analytics *fbanalytics.AnalyticsService
}

func NewMonitoringHandler(visitors *fbvisitors.Service, analytics *fbanalytics.AnalyticsService) *MonitoringHandler {
	return &MonitoringHandler{visitors: visitors, analytics: analytics}
}

func (mh *MonitoringHandler) OnlineVisitors(c *gin.Context) {
	funnelID, ok := handlers.QueryID(c, "funnel_id")
	if !ok {
		return
	}
	online, err := mh.visitors.OnlineVisitors(c.Request.Context(), funnelID)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	now := mh.visitors.Now()
	views := make([]fbvisitors.VisitorView, 0, len(online))
	for i := range online {
		views = append(views, online[i].View(now))
	}
	c.JSON(http.StatusOK, views)
}

func (mh *MonitoringHandler) VisitorEvents(c *gin.Context) {
	id, ok := handlers.ParamID(c, "id")
	if !ok {
		return
	}
	events, err := mh.visitors.Events(c.Request.Context(), id)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (mh *MonitoringHandler) Dashboard(c *gin.Context) {
	funnelID, ok := handlers.QueryID(c, "funnel_id")
	if !ok {
		return
	}
	d, err := mh.analytics.Dashboard(c.Request.Context(), funnelID)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Hourly defaults to the current UTC day.
func (mh *MonitoringHandler) Hourly(c *gin.Context) {
	funnelID, ok := handlers.QueryID(c, "funnel_id")
	if !ok {
		return
	}
	day, ok := handlers.QueryDate(c, "date")
	if !ok {
		return
	}
	when := mh.analytics.Now()
	if day != nil {
		when = *day
	}
	stats, err := mh.analytics.HourlyStats(c.Request.Context(), when, funnelID)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
