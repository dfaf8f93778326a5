package handlers_credentials

import (
	"net/http"

	"funnelboard/internal/fbmiddleware"
	"funnelboard/internal/handlers"
	"funnelboard/internal/models/fbcredentials"
	"funnelboard/internal/models/fberrors"

	"github.com/gin-gonic/gin"
)

type CredentialsHandler struct {
	service *fbcredentials.Service
}

func NewCredentialsHandler(service *fbcredentials.Service) *CredentialsHandler {
	return &CredentialsHandler{service: service}
}

func (ch *CredentialsHandler) List(c *gin.Context) {
	creds, err := ch.service.List(c.Request.Context())
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, creds)
}

func (ch *CredentialsHandler) Create(c *gin.Context) {
	var in fbcredentials.Input
	if !handlers.BindJSON(c, &in) {
		return
	}
	cred, err := ch.service.Create(c.Request.Context(), in, fbmiddleware.UserID(c))
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, cred)
}

func (ch *CredentialsHandler) Update(c *gin.Context) {
	id, ok := handlers.ParamID(c, "id")
	if !ok {
		return
	}
	var p fbcredentials.Patch
	if !handlers.BindJSON(c, &p) {
		return
	}
	cred, err := ch.service.Update(c.Request.Context(), id, p)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}

func (ch *CredentialsHandler) Delete(c *gin.Context) {
	id, ok := handlers.ParamID(c, "id")
	if !ok {
		return
	}
	if err := ch.service.Delete(c.Request.Context(), id); err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
