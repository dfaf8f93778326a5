package handlers_checkout

import (
	"net/http"

	"funnelboard/internal/handlers"
	"funnelboard/internal/models/fberrors"
	"funnelboard/internal/models/fbfunnels"
	"funnelboard/internal/models/fbmarkdown"

	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	service  *fbfunnels.Service
	markdown *fbmarkdown.Renderer
}

func NewCheckoutHandler(service *fbfunnels.Service, markdown *fbmarkdown.Renderer) *CheckoutHandler {
	return &CheckoutHandler{service: service, markdown: markdown}
}

func params(c *gin.Context) (funnelID, stepID uint, ok bool) {
	if funnelID, ok = handlers.ParamID(c, "funnel_id"); !ok {
		return 0, 0, false
	}
	if stepID, ok = handlers.ParamID(c, "step_id"); !ok {
		return 0, 0, false
	}
	return funnelID, stepID, true
}

func (ch *CheckoutHandler) Get(c *gin.Context) {
	funnelID, stepID, ok := params(c)
	if !ok {
		return
	}
	cfg, err := ch.service.GetCheckout(c.Request.Context(), funnelID, stepID)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (ch *CheckoutHandler) Create(c *gin.Context) {
	funnelID, stepID, ok := params(c)
	if !ok {
		return
	}
	var in fbfunnels.CheckoutInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	cfg, err := ch.service.CreateCheckout(c.Request.Context(), funnelID, stepID, in)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

func (ch *CheckoutHandler) Update(c *gin.Context) {
	funnelID, stepID, ok := params(c)
	if !ok {
		return
	}
	var in fbfunnels.CheckoutInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	cfg, err := ch.service.UpdateCheckout(c.Request.Context(), funnelID, stepID, in)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (ch *CheckoutHandler) Delete(c *gin.Context) {
	funnelID, stepID, ok := params(c)
	if !ok {
		return
	}
	if err := ch.service.DeleteCheckout(c.Request.Context(), funnelID, stepID); err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ch *CheckoutHandler) Preview(c *gin.Context) {
	funnelID, stepID, ok := params(c)
	if !ok {
		return
	}
	var render func(string) string
	if ch.markdown != nil {
		render = ch.markdown.ToHTML
	}
	preview, err := ch.service.Preview(c.Request.Context(), funnelID, stepID, render)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}
