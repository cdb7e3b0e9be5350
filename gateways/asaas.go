package gateways

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/GuiSantosdev/clivus-dev-sub001/models"
)

const (
	asaasProdURL    = "https://api.asaas.com/v3"
	asaasSandboxURL = "https://api-sandbox.asaas.com/v3"
)

// AsaasGateway talks to the Asaas REST API. Webhook deliveries carry the
// configured token in the asaas-access-token header.
type AsaasGateway struct {
	baseURL      string
	apiKey       string
	webhookToken string
	httpClient   *http.Client
}

func NewAsaasGateway(apiKey, webhookToken string, sandbox bool) *AsaasGateway {
	base := asaasProdURL
	if sandbox {
		base = asaasSandboxURL
	}
	return &AsaasGateway{
		baseURL:      base,
		apiKey:       apiKey,
		webhookToken: webhookToken,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *AsaasGateway) Name() models.GatewayName { return models.GatewayAsaas }

// ---- Asaas API request/response structs ----

type asaasCustomerRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	CpfCnpj string `json:"cpfCnpj"`
}

type asaasCustomerResponse struct {
	ID string `json:"id"`
}

type asaasPaymentRequest struct {
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	DueDate           string  `json:"dueDate"`
	Description       string  `json:"description,omitempty"`
	ExternalReference string  `json:"externalReference"`
}

type asaasPaymentResponse struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	InvoiceURL        string `json:"invoiceUrl"`
	BankSlipURL       string `json:"bankSlipUrl"`
	ExternalReference string `json:"externalReference"`
}

type asaasPixQrResponse struct {
	EncodedImage string `json:"encodedImage"`
	Payload      string `json:"payload"`
}

type asaasWebhookEnvelope struct {
	Event   string               `json:"event"`
	Payment asaasPaymentResponse `json:"payment"`
}

func (g *AsaasGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount", ErrGatewayRejected)
	}
	if !validTaxID(req.Customer.TaxID) {
		return nil, ErrInvalidTaxID
	}

	var customer asaasCustomerResponse
	err := g.do(ctx, http.MethodPost, "/customers", asaasCustomerRequest{
		Name:    req.Customer.Name,
		Email:   req.Customer.Email,
		CpfCnpj: onlyDigits(req.Customer.TaxID),
	}, &customer)
	if err != nil {
		return nil, fmt.Errorf("asaas create customer: %w", err)
	}

	billingType := "BOLETO"
	if req.MethodHint == MethodPix {
		billingType = "PIX"
	} else if req.MethodHint == MethodCard {
		billingType = "CREDIT_CARD"
	}

	var payment asaasPaymentResponse
	err = g.do(ctx, http.MethodPost, "/payments", asaasPaymentRequest{
		Customer:          customer.ID,
		BillingType:       billingType,
		Value:             float64(req.AmountCents) / 100,
		DueDate:           time.Now().AddDate(0, 0, 3).Format("2006-01-02"),
		Description:       req.Description,
		ExternalReference: req.Reference,
	}, &payment)
	if err != nil {
		return nil, fmt.Errorf("asaas create payment: %w", err)
	}

	result := &ChargeResult{
		ExternalID: payment.ID,
		RawStatus:  payment.Status,
	}

	switch billingType {
	case "PIX":
		var qr asaasPixQrResponse
		if err := g.do(ctx, http.MethodGet, "/payments/"+payment.ID+"/pixQrCode", nil, &qr); err != nil {
			return nil, fmt.Errorf("asaas pix qr code: %w", err)
		}
		result.QRCode = qr.EncodedImage
		result.QRCodeText = qr.Payload
	case "BOLETO":
		result.BoletoURL = payment.BankSlipURL
	default:
		result.RedirectURL = payment.InvoiceURL
	}

	return result, nil
}

func (g *AsaasGateway) GetStatus(ctx context.Context, externalID string) (string, error) {
	var payment asaasPaymentResponse
	if err := g.do(ctx, http.MethodGet, "/payments/"+externalID, nil, &payment); err != nil {
		return "", fmt.Errorf("asaas get payment: %w", err)
	}
	return payment.Status, nil
}

func (g *AsaasGateway) MapStatus(raw string) models.PaymentStatus {
	switch raw {
	case "RECEIVED", "CONFIRMED", "RECEIVED_IN_CASH", "DUNNING_RECEIVED":
		return models.StatusCompleted
	case "OVERDUE", "CHARGEBACK_REQUESTED":
		return models.StatusFailed
	case "REFUNDED", "REFUND_REQUESTED":
		return models.StatusRefunded
	default:
		// PENDING, AWAITING_RISK_ANALYSIS and anything unknown
		return models.StatusPending
	}
}

func (g *AsaasGateway) SignatureHeader() string { return "asaas-access-token" }

func (g *AsaasGateway) VerifyWebhook(signature string, body []byte) error {
	if g.webhookToken == "" {
		return ErrWebhookUnsigned
	}
	if subtle.ConstantTimeCompare([]byte(signature), []byte(g.webhookToken)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

func (g *AsaasGateway) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var env asaasWebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed asaas webhook: %w", err)
	}
	if env.Payment.ID == "" {
		return nil, fmt.Errorf("asaas webhook missing payment id")
	}
	return &WebhookEvent{
		ExternalID: env.Payment.ID,
		Reference:  env.Payment.ExternalReference,
		RawStatus:  env.Payment.Status,
		EventType:  env.Event,
	}, nil
}

func (g *AsaasGateway) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body *bytes.Buffer
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(data)
	} else {
		body = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", g.apiKey)

	return doJSON(g.httpClient, req, out)
}
