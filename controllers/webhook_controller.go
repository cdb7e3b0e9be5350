package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/GuiSantosdev/clivus-dev-sub001/gateways"
	"github.com/GuiSantosdev/clivus-dev-sub001/models"
	"github.com/GuiSantosdev/clivus-dev-sub001/repository"
	"github.com/GuiSantosdev/clivus-dev-sub001/services"
)

// PaymentReconciler is the slice of the reconciler the webhook layer
// needs.
type PaymentReconciler interface {
	Reconcile(ctx context.Context, paymentID uuid.UUID, newStatus models.PaymentStatus, rawStatus string, eventPayload *string) (services.TransitionOutcome, error)
}

type WebhookController struct {
	Registry   *gateways.Registry
	Payments   repository.PaymentRepository
	Reconciler PaymentReconciler
	Logger     *zap.Logger
}

// HandleWebhook ingests one provider notification. The body is read as
// raw bytes and verified against the provider's signing scheme before any
// parsing; unsigned providers get their status re-fetched instead of
// trusted. Providers retry on non-2xx, so every handled-or-ignored event
// is acknowledged with 200.
func (wc *WebhookController) HandleWebhook(c *gin.Context) {
	gatewayName := models.GatewayName(c.Param("gateway"))
	gw, err := wc.Registry.Lookup(gatewayName)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown gateway"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	trusted := true
	signature := ""
	if h := gw.SignatureHeader(); h != "" {
		signature = c.GetHeader(h)
	}
	switch verifyErr := gw.VerifyWebhook(signature, body); {
	case verifyErr == nil:
	case errors.Is(verifyErr, gateways.ErrWebhookUnsigned):
		trusted = false
	default:
		wc.Logger.Warn("Webhook signature verification failed",
			zap.String("gateway", string(gatewayName)),
			zap.Error(verifyErr),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	event, err := gw.ParseWebhook(body)
	if err != nil {
		wc.Logger.Warn("Malformed webhook payload",
			zap.String("gateway", string(gatewayName)),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	if event.ExternalID == "" && event.Reference == "" {
		// Event types that carry no charge reference are acknowledged and
		// dropped.
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	payment, err := wc.lookupPayment(c.Request.Context(), gatewayName, event)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No speculative rows for unknown charges.
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown payment"})
			return
		}
		wc.Logger.Error("Webhook payment lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	rawStatus := event.RawStatus
	if !trusted {
		// The payload is only a hint; fetch the authoritative status.
		if payment.ExternalID == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		rawStatus, err = gw.GetStatus(c.Request.Context(), *payment.ExternalID)
		if err != nil {
			wc.Logger.Warn("Status re-fetch for unsigned webhook failed",
				zap.String("payment_id", payment.ID.String()),
				zap.Error(err),
			)
			// Non-2xx so the provider redelivers once the gateway recovers.
			c.JSON(http.StatusBadGateway, gin.H{"error": "status fetch failed"})
			return
		}
	}

	payloadStr := string(body)
	outcome, err := wc.Reconciler.Reconcile(c.Request.Context(), payment.ID, gw.MapStatus(rawStatus), rawStatus, &payloadStr)
	if err != nil {
		wc.Logger.Error("Webhook reconcile failed",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "received",
		"transitioned": outcome.DidTransition,
	})
}

// lookupPayment resolves the event to a payment row, first by the
// provider's charge id, then by our own reference echoed back by the
// provider.
func (wc *WebhookController) lookupPayment(ctx context.Context, gateway models.GatewayName, event *gateways.WebhookEvent) (*models.Payment, error) {
	if event.ExternalID != "" {
		payment, err := wc.Payments.GetByGatewayExternalID(ctx, gateway, event.ExternalID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if event.Reference != "" {
		id, err := uuid.Parse(event.Reference)
		if err != nil {
			return nil, gorm.ErrRecordNotFound
		}
		payment, err := wc.Payments.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if payment.Gateway != gateway {
			return nil, gorm.ErrRecordNotFound
		}
		return payment, nil
	}

	return nil, gorm.ErrRecordNotFound
}
