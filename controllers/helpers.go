package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GuiSantosdev/clivus-dev-sub001/gateways"
	"github.com/GuiSantosdev/clivus-dev-sub001/services"
)

// respondCheckoutError maps service and gateway errors onto HTTP codes.
func (cc *CheckoutController) respondCheckoutError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found or inactive"})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, services.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
	case errors.Is(err, services.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "payment belongs to another user"})
	case errors.Is(err, gateways.ErrInvalidTaxID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tax id"})
	case errors.Is(err, gateways.ErrGatewayRejected):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, gateways.ErrGatewayDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "gateway unavailable"})
	case errors.Is(err, gateways.ErrGatewayAuth):
		cc.Logger.Error("Gateway credentials rejected", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "gateway misconfigured"})
	case errors.Is(err, gateways.ErrGatewayUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "gateway temporarily unavailable"})
	default:
		cc.Logger.Error("Checkout request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
