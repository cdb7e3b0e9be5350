package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GuiSantosdev/clivus-dev-sub001/controllers"
	"github.com/GuiSantosdev/clivus-dev-sub001/middleware"
)

func Register(r *gin.Engine, cc *controllers.CheckoutController, wc *controllers.WebhookController) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := r.Group("/")
	authed.Use(middleware.AuthMiddleware())
	authed.POST("/checkout", cc.InitiateCheckout)
	authed.GET("/payments/:id", cc.CheckPayment)

	// Provider webhooks authenticate via signature, not session.
	r.POST("/webhooks/:gateway", wc.HandleWebhook)
}
