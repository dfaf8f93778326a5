package handlers_funnels

import (
	"context"
	"net/http"

	"funnelboard/internal/fbmiddleware"
	"funnelboard/internal/handlers"
	"funnelboard/internal/models/fbanalytics"
	"funnelboard/internal/models/fberrors"
	"funnelboard/internal/models/fbfunnels"

	"github.com/gin-gonic/gin"
)

type FunnelsHandler struct {
	service   *fbfunnels.Service
	analytics *fbanalytics.AnalyticsService
}

func NewFunnelsHandler(service *fbfunnels.Service, analytics *fbanalytics.AnalyticsService) *FunnelsHandler {
	return &FunnelsHandler{service: service, analytics: analytics}
}

type cloneRequest struct {
	NewName string `json:"new_name"`
	NewSlug string `json:"new_slug"`
}

type reorderRequest struct {
	StepOrders []fbfunnels.StepOrder `json:"step_orders"`
}

func (fh *FunnelsHandler) respondView(c *gin.Context, status int, f *fbfunnels.Funnel, withSteps bool) {
	v, err := fh.service.View(c.Request.Context(), f, withSteps)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(status, v)
}

func (fh *FunnelsHandler) List(c *gin.Context) {
	views, err := fh.service.ListFunnels(c.Request.Context())
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (fh *FunnelsHandler) Create(c *gin.Context) {
	var in fbfunnels.FunnelInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	f, err := fh.service.CreateFunnel(c.Request.Context(), in, fbmiddleware.UserID(c))
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	fh.respondView(c, http.StatusCreated, f, false)
}

func (fh *FunnelsHandler) Get(c *gin.Context) {
	id, ok := handlers.ParamID(c, "id")
	if !ok {
		return
	}
	f, err := fh.service.GetFunnel(c.Request.Context(), id)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	fh.respondView(c, http.StatusOK, f, true)
}

func (fh *FunnelsHandler) Update(c *gin.Context) {
	id, ok := handlers.ParamID(c, "id")
	if !ok {
		return
	}
	var p fbfunnels.FunnelPatch
	if !handlers.BindJSON(c, &p) {
		return
	}
	f, err := fh.service.UpdateFunnel(c.Request.Context(), id, p)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	fh.respondView(c, http.StatusOK, f, false)
}

func (fh *FunnelsHandler) Delete(c *gin.Context) {
	id, ok := handlers.ParamID(c, "id")
	if !ok {
		return
	}
	if err := fh.service.DeleteFunnel(c.Request.Context(), id); err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (fh *FunnelsHandler) Clone(c *gin.Context) {
	id, ok := handlers.ParamID(c, "id")
	if !ok {
		return
	}
	var req cloneRequest
	if !handlers.BindJSON(c, &req) {
		return
	}
	f, err := fh.service.Clone(c.Request.Context(), id, req.NewName, req.NewSlug, fbmiddleware.UserID(c))
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	fh.respondView(c, http.StatusCreated, f, true)
}

func (fh *FunnelsHandler) Steps(c *gin.Context) {
	id, ok := handlers.ParamID(c, "id")
	if !ok {
		return
	}
	if _, err := fh.service.GetFunnel(c.Request.Context(), id); err != nil {
		fberrors.Abort(c, err)
		return
	}
	steps, err := fh.service.GetSteps(c.Request.Context(), id)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, steps)
}

func (fh *FunnelsHandler) CreateStep(c *gin.Context) {
	id, ok := handlers.ParamID(c, "id")
	if !ok {
		return
	}
	var in fbfunnels.StepInput
	if !handlers.BindJSON(c, &in) {
		return
	}
	step, err := fh.service.CreateStep(c.Request.Context(), id, in)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, step)
}

func (fh *FunnelsHandler) UpdateStep(c *gin.Context) {
	funnelID, stepID, ok := stepParams(c)
	if !ok {
		return
	}
	var p fbfunnels.StepPatch
	if !handlers.BindJSON(c, &p) {
		return
	}
	step, err := fh.service.UpdateStep(c.Request.Context(), funnelID, stepID, p)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

func (fh *FunnelsHandler) DeleteStep(c *gin.Context) {
	funnelID, stepID, ok := stepParams(c)
	if !ok {
		return
	}
	if err := fh.service.DeleteStep(c.Request.Context(), funnelID, stepID); err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (fh *FunnelsHandler) Reorder(c *gin.Context) {
	id, ok := handlers.ParamID(c, "id")
	if !ok {
		return
	}
	var req reorderRequest
	if !handlers.BindJSON(c, &req) {
		return
	}
	if req.StepOrders == nil {
		fberrors.Abort(c, fberrors.Validation("step_orders must be a list"))
		return
	}
	n, err := fh.service.Reorder(c.Request.Context(), id, req.StepOrders)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "steps reordered", "updated": n})
}

// Next answers {"step": null} when the step is the last active one.
func (fh *FunnelsHandler) Next(c *gin.Context) {
	fh.neighbor(c, fh.service.NextStep)
}

func (fh *FunnelsHandler) Previous(c *gin.Context) {
	fh.neighbor(c, fh.service.PreviousStep)
}

func (fh *FunnelsHandler) neighbor(c *gin.Context, find func(ctx context.Context, s *fbfunnels.FunnelStep) (*fbfunnels.FunnelStep, error)) {
	funnelID, stepID, ok := stepParams(c)
	if !ok {
		return
	}
	step, err := fh.service.GetStep(c.Request.Context(), funnelID, stepID)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	other, err := find(c.Request.Context(), step)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": other})
}

func (fh *FunnelsHandler) Conversion(c *gin.Context) {
	id, ok := handlers.ParamID(c, "id")
	if !ok {
		return
	}
	start, end, ok := handlers.QueryRange(c)
	if !ok {
		return
	}
	if _, err := fh.service.GetFunnel(c.Request.Context(), id); err != nil {
		fberrors.Abort(c, err)
		return
	}
	rows, err := fh.analytics.ConversionFunnel(c.Request.Context(), id, start, end)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func stepParams(c *gin.Context) (funnelID, stepID uint, ok bool) {
	if funnelID, ok = handlers.ParamID(c, "id"); !ok {
		return 0, 0, false
	}
	if stepID, ok = handlers.ParamID(c, "step_id"); !ok {
		return 0, 0, false
	}
	return funnelID, stepID, true
}
