package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"

	"github.com/GuiSantosdev/clivus-dev-sub001/models"
)

// StripeGateway creates hosted Checkout Sessions and verifies webhook
// deliveries with the Stripe SDK.
type StripeGateway struct {
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripeGateway(secretKey, webhookSecret, successURL, cancelURL string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
}

func (g *StripeGateway) Name() models.GatewayName { return models.GatewayStripe }

func (g *StripeGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount", ErrGatewayRejected)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(g.successURL),
		CancelURL:     stripe.String(g.cancelURL),
		CustomerEmail: stripe.String(req.Customer.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		// Copy our reference onto the PaymentIntent so charge.* events
		// can be traced back to the payment row.
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"reference": req.Reference},
		},
	}
	params.Context = ctx
	params.AddMetadata("reference", req.Reference)
	params.SetIdempotencyKey(req.Reference)

	sess, err := session.New(params)
	if err != nil {
		return nil, mapStripeErr(err)
	}

	return &ChargeResult{
		ExternalID:  sess.ID,
		RawStatus:   string(sess.Status),
		RedirectURL: sess.URL,
	}, nil
}

func (g *StripeGateway) GetStatus(ctx context.Context, externalID string) (string, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := session.Get(externalID, params)
	if err != nil {
		return "", mapStripeErr(err)
	}
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		return "paid", nil
	}
	return string(sess.Status), nil
}

func (g *StripeGateway) MapStatus(raw string) models.PaymentStatus {
	switch raw {
	case "paid", "succeeded":
		return models.StatusCompleted
	case "canceled", "expired", "payment_failed":
		return models.StatusFailed
	case "refunded", "charge.refunded":
		return models.StatusRefunded
	default:
		// created, open, processing, pending and anything unknown
		return models.StatusPending
	}
}

func (g *StripeGateway) SignatureHeader() string { return "Stripe-Signature" }

func (g *StripeGateway) VerifyWebhook(signature string, body []byte) error {
	if _, err := webhook.ConstructEvent(body, signature, g.webhookSecret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

func (g *StripeGateway) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("malformed stripe event: %w", err)
	}

	out := &WebhookEvent{EventType: string(event.Type)}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed", "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("malformed checkout session payload: %w", err)
		}
		out.ExternalID = sess.ID
		out.Reference = sess.Metadata["reference"]
		switch {
		case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
			out.RawStatus = "paid"
		case event.Type == "checkout.session.async_payment_failed":
			out.RawStatus = "payment_failed"
		case event.Type == "checkout.session.expired":
			out.RawStatus = "expired"
		default:
			out.RawStatus = string(sess.Status)
		}
	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("malformed charge payload: %w", err)
		}
		out.Reference = ch.Metadata["reference"]
		out.RawStatus = "charge.refunded"
	default:
		// Unhandled event types carry no charge reference; the caller
		// acknowledges and ignores them.
	}

	return out, nil
}

func mapStripeErr(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.HTTPStatusCode {
		case 401, 403:
			return fmt.Errorf("%w: %v", ErrGatewayAuth, stripeErr.Msg)
		case 404:
			return ErrChargeNotFound
		default:
			if stripeErr.HTTPStatusCode >= 500 {
				return fmt.Errorf("%w: %v", ErrGatewayUnavailable, stripeErr.Msg)
			}
			return fmt.Errorf("%w: %v", ErrGatewayRejected, stripeErr.Msg)
		}
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}
