package fbapp

import (
	"net/http"

	"funnelboard/internal/fbmiddleware"
	handlers_auth "funnelboard/internal/handlers/auth"
	handlers_checkout "funnelboard/internal/handlers/checkout"
	handlers_credentials "funnelboard/internal/handlers/credentials"
	handlers_funnels "funnelboard/internal/handlers/funnels"
	handlers_monitoring "funnelboard/internal/handlers/monitoring"
	handlers_payments "funnelboard/internal/handlers/payments"
	handlers_tracking "funnelboard/internal/handlers/tracking"

	"github.com/gin-gonic/gin"
)

// Router builds the gin engine with the middlewares and every /api route.
func (fb *Funnelboard) Router() (*gin.Engine, error) {
	r := gin.New()
	fbmiddleware.InitMiddleware(r, fb.Configuration.CORS.Origins, fb.Metrics)

	limit, err := fbmiddleware.NewLimiter(fb.Configuration.Tracking.RateLimit, fb.Redis)
	if err != nil {
		return nil, err
	}
	auth := fbmiddleware.AuthRequired(fb.Issuer)
	production := fb.Configuration.Production
	// one store, so a generated key is shared by every visitor route
	visitorSession := fbmiddleware.NewSession(fb.Configuration.Tracking.CookieSecret, production)

	authHandler := handlers_auth.NewAuthHandler(fb.Users, fb.Issuer, fb.Captcha, production)
	credentialsHandler := handlers_credentials.NewCredentialsHandler(fb.Credentials)
	funnelsHandler := handlers_funnels.NewFunnelsHandler(fb.Funnels, fb.Analytics)
	checkoutHandler := handlers_checkout.NewCheckoutHandler(fb.Funnels, fb.Markdown)
	trackingHandler := handlers_tracking.NewTrackingHandler(fb.Funnels, fb.Visitors, fb.Scripts, fb.Realtime, fb.Metrics)
	monitoringHandler := handlers_monitoring.NewMonitoringHandler(fb.Visitors, fb.Analytics)
	paymentsHandler := handlers_payments.NewPaymentsHandler(fb.Payments, fb.Analytics, fb.Metrics)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": fb.Version})
	})

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", limit, authHandler.Register)
		authGroup.POST("/login", limit, authHandler.Login)
		authGroup.GET("/captcha", authHandler.Captcha)
		authGroup.POST("/logout", auth, authHandler.Logout)
		authGroup.GET("/me", auth, authHandler.Me)
	}

	credentials := api.Group("/credentials", auth)
	{
		credentials.GET("", credentialsHandler.List)
		credentials.POST("", credentialsHandler.Create)
		credentials.PUT("/:id", credentialsHandler.Update)
		credentials.DELETE("/:id", credentialsHandler.Delete)
	}

	funnels := api.Group("/funnels", auth)
	{
		funnels.GET("", funnelsHandler.List)
		funnels.POST("", funnelsHandler.Create)
		funnels.GET("/:id", funnelsHandler.Get)
		funnels.PUT("/:id", funnelsHandler.Update)
		funnels.DELETE("/:id", funnelsHandler.Delete)
		funnels.POST("/:id/clone", funnelsHandler.Clone)
		funnels.GET("/:id/conversion", funnelsHandler.Conversion)
		funnels.GET("/:id/steps", funnelsHandler.Steps)
		funnels.POST("/:id/steps", funnelsHandler.CreateStep)
		funnels.PUT("/:id/steps/reorder", funnelsHandler.Reorder)
		funnels.PUT("/:id/steps/:step_id", funnelsHandler.UpdateStep)
		funnels.DELETE("/:id/steps/:step_id", funnelsHandler.DeleteStep)
		funnels.GET("/:id/steps/:step_id/next", funnelsHandler.Next)
		funnels.GET("/:id/steps/:step_id/previous", funnelsHandler.Previous)
	}

	checkout := api.Group("/checkout/:funnel_id/:step_id", auth)
	{
		checkout.GET("", checkoutHandler.Get)
		checkout.POST("", checkoutHandler.Create)
		checkout.PUT("", checkoutHandler.Update)
		checkout.DELETE("", checkoutHandler.Delete)
		checkout.GET("/preview", checkoutHandler.Preview)
	}

	tracking := api.Group("/tracking")
	{
		tracking.GET("/pixels", auth, trackingHandler.ListPixels)
		tracking.POST("/pixels", auth, trackingHandler.CreatePixel)
		tracking.PUT("/pixels/:id", auth, trackingHandler.UpdatePixel)
		tracking.DELETE("/pixels/:id", auth, trackingHandler.DeletePixel)
		tracking.GET("/pixels/:funnel_id/:step_id/render", trackingHandler.RenderPixels)
		tracking.POST("/events", limit, visitorSession, trackingHandler.TrackEvent)
		tracking.POST("/visitors/:id/offline", limit, visitorSession, trackingHandler.MarkOffline)
	}

	monitoring := api.Group("/monitoring", auth)
	{
		monitoring.GET("/visitors", monitoringHandler.OnlineVisitors)
		monitoring.GET("/visitors/:id/events", monitoringHandler.VisitorEvents)
		monitoring.GET("/analytics/dashboard", monitoringHandler.Dashboard)
		monitoring.GET("/analytics/hourly", monitoringHandler.Hourly)
	}

	payments := api.Group("/payments")
	{
		payments.POST("/create", paymentsHandler.Create)
		payments.POST("/webhook", paymentsHandler.Webhook)
		payments.GET("/analytics", auth, paymentsHandler.Analytics)
		payments.GET("/:id/status", auth, paymentsHandler.Status)
	}

	return r, nil
}
