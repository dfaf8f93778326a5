package handlers_auth

import (
	"errors"
	"net/http"

	"funnelboard/internal/fbmiddleware"
	"funnelboard/internal/handlers"
	"funnelboard/internal/models/fbauth"
	"funnelboard/internal/models/fbcaptchas"
	"funnelboard/internal/models/fberrors"
	"funnelboard/internal/models/fbusers"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type AuthHandler struct {
	users      *fbusers.Service
	issuer     *fbauth.Issuer
	captchas   *fbcaptchas.Captchas
	production bool
}

// NewAuthHandler builds the handler. captchas is nil when registration
// does not require one.
func NewAuthHandler(users *fbusers.Service, issuer *fbauth.Issuer, captchas *fbcaptchas.Captchas, production bool) *AuthHandler {
	return &AuthHandler{users: users, issuer: issuer, captchas: captchas, production: production}
}

type registerRequest struct {
	fbusers.RegisterInput
	CaptchaID     string `json:"captcha_id"`
	CaptchaAnswer string `json:"captcha_answer"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (ah *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	if ah.captchas != nil {
		if err := ah.captchas.Verify(req.CaptchaID, req.CaptchaAnswer); err != nil {
			fberrors.Abort(c, fberrors.Validation("%s", err.Error()))
			return
		}
	}

	u, err := ah.users.Register(c.Request.Context(), req.RegisterInput)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "user created", "user": u})
}

func (ah *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !handlers.BindJSON(c, &req) {
		return
	}

	u, err := ah.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, fbusers.ErrBadCredentials) {
		log.Warn().Str("email", req.Email).Str("ip", c.ClientIP()).Msg("failed login")
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		fberrors.Abort(c, err)
		return
	}

	tok, err := ah.issuer.Issue(u.ID)
	if err != nil {
		fberrors.Abort(c, fberrors.Internal("issue token", err))
		return
	}
	log.Info().Uint("user_id", u.ID).Str("ip", c.ClientIP()).Msg("login")
	c.JSON(http.StatusOK, tok)
}

// Logout only acknowledges: tokens are stateless and expire on their own.
func (ah *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "logout successful"})
}

func (ah *AuthHandler) Me(c *gin.Context) {
	id := fbmiddleware.UserID(c)
	if id == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	u, err := ah.users.Get(c.Request.Context(), *id)
	if err != nil {
		fberrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (ah *AuthHandler) Captcha(c *gin.Context) {
	if ah.captchas == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "captcha disabled"})
		return
	}
	ch, err := ah.captchas.Generate(ah.production)
	if err != nil {
		fberrors.Abort(c, fberrors.Internal("captcha", err))
		return
	}
	c.JSON(http.StatusOK, ch)
}
