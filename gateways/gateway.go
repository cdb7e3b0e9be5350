package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/GuiSantosdev/clivus-dev-sub001/models"
)

// Gateway error taxonomy. Adapters translate every provider failure into
// one of these sentinels so callers never branch on provider detail.
var (
	// ErrGatewayAuth means the configured credentials were rejected.
	ErrGatewayAuth = errors.New("gateway authentication failed")
	// ErrGatewayRejected means the provider declined the request content.
	ErrGatewayRejected = errors.New("gateway rejected the request")
	// ErrGatewayUnavailable covers network failures, timeouts and 5xx.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	// ErrChargeNotFound means the provider has no record of the charge.
	ErrChargeNotFound = errors.New("charge not found at gateway")
	// ErrInvalidSignature means a webhook delivery failed verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrWebhookUnsigned is returned by providers that have no signing
	// scheme. The ingestion layer must treat such payloads as hints and
	// re-fetch the status instead of trusting the body.
	ErrWebhookUnsigned = errors.New("webhook deliveries are not signed by this gateway")
	// ErrInvalidTaxID means the customer document is not a valid CPF/CNPJ.
	ErrInvalidTaxID = errors.New("invalid customer tax id")
)

// Payment method hints accepted at checkout.
const (
	MethodCard   = "card"
	MethodPix    = "pix"
	MethodBoleto = "boleto"
)

type Customer struct {
	Name  string
	Email string
	TaxID string
}

type ChargeRequest struct {
	Customer    Customer
	AmountCents int64
	Currency    string
	MethodHint  string
	CardToken   string
	// Description labels the charge on the provider side (plan name).
	Description string
	// Reference is our payment id, passed to the provider as the
	// idempotency key / external reference.
	Reference string
}

// ChargeResult carries the provider's charge id plus whatever payment
// instructions that provider hands back (exactly one set is populated).
type ChargeResult struct {
	ExternalID  string
	RawStatus   string
	RedirectURL string
	QRCode      string
	QRCodeText  string
	BoletoURL   string
}

// WebhookEvent is a parsed provider notification. ExternalID is the
// provider's charge id; Reference, when present, is our own payment id
// echoed back by the provider. Either may resolve the payment.
type WebhookEvent struct {
	ExternalID string
	Reference  string
	RawStatus  string
	EventType  string
}

// Gateway is the per-provider capability set. Implementations encapsulate
// authentication, payload shapes and the raw-status vocabulary of one
// provider; nothing provider-specific leaks past this interface.
type Gateway interface {
	Name() models.GatewayName

	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	// GetStatus returns the provider's raw status string for a charge.
	GetStatus(ctx context.Context, externalID string) (string, error)

	// MapStatus converts a raw provider status into the canonical status.
	// It is pure and total: unknown statuses map to StatusPending, never
	// to a terminal state.
	MapStatus(raw string) models.PaymentStatus

	// VerifyWebhook checks a delivery against the provider's signing
	// scheme using the exact raw body bytes. It returns
	// ErrInvalidSignature on mismatch and ErrWebhookUnsigned when the
	// provider has no scheme at all.
	VerifyWebhook(signature string, body []byte) error

	// ParseWebhook extracts the charge reference and raw status from a
	// provider payload.
	ParseWebhook(body []byte) (*WebhookEvent, error)

	// SignatureHeader names the HTTP header carrying the webhook
	// signature, empty for unsigned providers.
	SignatureHeader() string
}

// validTaxID accepts CPF (11 digits) or CNPJ (14 digits), ignoring
// punctuation.
func validTaxID(doc string) bool {
	digits := 0
	for _, r := range doc {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' || r == '-' || r == '/':
			// separators are fine
		default:
			return false
		}
	}
	return digits == 11 || digits == 14
}

// onlyDigits strips CPF/CNPJ punctuation before sending the document out.
func onlyDigits(doc string) string {
	out := make([]byte, 0, len(doc))
	for _, r := range doc {
		if r >= '0' && r <= '9' {
			out = append(out, byte(r))
		}
	}
	return string(out)
}

// doJSON executes an HTTP request, classifies the response per the error
// taxonomy and decodes a 2xx body into out (out may be nil).
func doJSON(client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: decoding response: %v", ErrGatewayUnavailable, err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrGatewayAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return ErrChargeNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: status %d: %s", ErrGatewayRejected, resp.StatusCode, truncate(body, 256))
	default:
		return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
