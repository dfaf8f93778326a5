package handlers_payments

import (
	"errors"
	"net/http"
	"strconv"

	"funnelboard/internal/handlers"
	"funnelboard/internal/models/fbanalytics"
	"funnelboard/internal/models/fberrors"
	"funnelboard/internal/models/fbfunnels"
	"funnelboard/internal/models/fbmetrics"
	"funnelboard/internal/models/fbpayments"

	"github.com/gin-gonic/gin"
)

const defaultDays = 7

type PaymentsHandler struct {
	payments  *fbpayments.Service
	analytics *fbanalytics.AnalyticsService
	metrics   *fbmetrics.Metrics
}

func NewPaymentsHandler(payments *fbpayments.Service, analytics *fbanalytics.AnalyticsService, metrics *fbmetrics.Metrics) *PaymentsHandler {
	return &PaymentsHandler{payments: payments, analytics: analytics, metrics: metrics}
}

func (ph *PaymentsHandler) Create(c *gin.Context) {
	var req fbpayments.CreateRequest
	if !handlers.BindJSON(c, &req) {
		return
	}
	p, err := ph.payments.CreatePayment(c.Request.Context(), req)
	ph.metrics.Payment(fbfunnels.DefaultPaymentMethod, err == nil)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (ph *PaymentsHandler) Status(c *gin.Context) {
	id, ok := handlers.ParamID(c, "id")
	if !ok {
		return
	}
	p, err := ph.payments.GetPayment(c.Request.Context(), id)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Webhook applies a gateway callback {"id": external id, "status": ...}.
// The whole payload is merged into the stored gateway response.
func (ph *PaymentsHandler) Webhook(c *gin.Context) {
	var payload map[string]any
	if !handlers.BindJSON(c, &payload) {
		return
	}
	externalID, _ := payload["id"].(string)
	status, _ := payload["status"].(string)

	p, changed, err := ph.payments.HandleWebhook(c.Request.Context(), externalID, fbpayments.Status(status), payload)
	if err != nil {
		if errors.Is(err, fberrors.ErrNotFound) {
			ph.metrics.Webhook("not_found")
		} else {
			ph.metrics.Webhook("error")
		}
		fberrors.Abort(c, err)
		return
	}

	outcome := "ignored"
	if changed {
		outcome = "changed"
	}
	ph.metrics.Webhook(outcome)
	c.JSON(http.StatusOK, gin.H{
		"message":    "webhook processed",
		"payment_id": p.ID,
		"status":     p.Status,
		"changed":    changed,
	})
}

func (ph *PaymentsHandler) Analytics(c *gin.Context) {
	funnelID, ok := handlers.QueryID(c, "funnel_id")
	if !ok {
		return
	}
	start, end, ok := handlers.QueryRange(c)
	if !ok {
		return
	}
	days := defaultDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			fberrors.Abort(c, fberrors.Validation("days must be a positive integer"))
			return
		}
		days = n
	}

	out, err := ph.analytics.PaymentAnalytics(c.Request.Context(), fbanalytics.Filter{FunnelID: funnelID, Start: start, End: end}, days)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
