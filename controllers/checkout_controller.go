package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GuiSantosdev/clivus-dev-sub001/middleware"
	"github.com/GuiSantosdev/clivus-dev-sub001/models"
	"github.com/GuiSantosdev/clivus-dev-sub001/services"
)

// CheckoutOrchestrator is the slice of CheckoutService the controller
// depends on.
type CheckoutOrchestrator interface {
	InitiateCheckout(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutResult, error)
	CheckPayment(ctx context.Context, userID, paymentID uuid.UUID) (*services.PaymentStatusResult, error)
}

type CheckoutController struct {
	Checkout CheckoutOrchestrator
	Logger   *zap.Logger
}

// InitiateCheckout creates an external charge for a plan and returns the
// payment instructions.
func (cc *CheckoutController) InitiateCheckout(c *gin.Context) {
	var req struct {
		PlanSlug   string `json:"plan_slug" binding:"required"`
		Gateway    string `json:"gateway" binding:"required"`
		MethodHint string `json:"method_hint"`
		CardToken  string `json:"card_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := uuid.Parse(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
		return
	}

	result, err := cc.Checkout.InitiateCheckout(c.Request.Context(), services.CheckoutRequest{
		UserID:     userID,
		PlanSlug:   req.PlanSlug,
		Gateway:    models.GatewayName(req.Gateway),
		MethodHint: req.MethodHint,
		CardToken:  req.CardToken,
	})
	if err != nil {
		cc.respondCheckoutError(c, err)
		return
	}

	resp := gin.H{
		"payment_id": result.PaymentID.String(),
		"gateway":    string(result.Gateway),
	}
	if result.RedirectURL != "" {
		resp["redirect_url"] = result.RedirectURL
	}
	if result.QRCode != "" {
		resp["qr_code"] = result.QRCode
		resp["qr_code_text"] = result.QRCodeText
	}
	if result.BoletoURL != "" {
		resp["boleto_url"] = result.BoletoURL
	}
	c.JSON(http.StatusOK, resp)
}

// CheckPayment returns the payment status for its owner, refreshing
// pending payments against the gateway.
func (cc *CheckoutController) CheckPayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	userID, err := uuid.Parse(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
		return
	}

	result, err := cc.Checkout.CheckPayment(c.Request.Context(), userID, paymentID)
	if err != nil {
		cc.respondCheckoutError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_id":         result.PaymentID.String(),
		"status":             string(result.Status),
		"gateway_raw_status": result.RawStatus,
		"amount_cents":       result.AmountCents,
		"currency":           result.Currency,
		"gateway":            string(result.Gateway),
		"plan_name":          result.PlanName,
		"stale":              result.Stale,
	})
}
