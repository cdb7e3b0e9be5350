package gateways

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/GuiSantosdev/clivus-dev-sub001/models"
)

const pagarmeBaseURL = "https://api.pagar.me/core/v5"

// PagarmeGateway creates orders via the Pagar.me v5 API using basic auth.
// Webhook deliveries are signed with HMAC-SHA256 over the raw body.
type PagarmeGateway struct {
	apiKey        string
	webhookSecret string
	httpClient    *http.Client
}

func NewPagarmeGateway(apiKey, webhookSecret string) *PagarmeGateway {
	return &PagarmeGateway{
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *PagarmeGateway) Name() models.GatewayName { return models.GatewayPagarme }

// ---- Pagar.me API request/response structs ----

type pagarmeOrderRequest struct {
	Code     string `json:"code"`
	Customer struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Document string `json:"document"`
		Type     string `json:"type"`
	} `json:"customer"`
	Items []struct {
		Amount      int64  `json:"amount"`
		Description string `json:"description"`
		Quantity    int    `json:"quantity"`
	} `json:"items"`
	Payments []pagarmeOrderPayment `json:"payments"`
}

type pagarmeOrderPayment struct {
	PaymentMethod string `json:"payment_method"`
	Pix           *struct {
		ExpiresIn int `json:"expires_in"`
	} `json:"pix,omitempty"`
	Boleto *struct {
		DueAt string `json:"due_at"`
	} `json:"boleto,omitempty"`
	CreditCard *struct {
		CardToken string `json:"card_token"`
	} `json:"credit_card,omitempty"`
}

type pagarmeOrderResponse struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Status  string `json:"status"`
	Charges []struct {
		ID              string `json:"id"`
		Status          string `json:"status"`
		LastTransaction struct {
			QrCode    string `json:"qr_code"`
			QrCodeURL string `json:"qr_code_url"`
			URL       string `json:"url"`
			PDF       string `json:"pdf"`
		} `json:"last_transaction"`
	} `json:"charges"`
}

type pagarmeWebhookEnvelope struct {
	Type string `json:"type"`
	Data struct {
		ID     string `json:"id"`
		Code   string `json:"code"`
		Status string `json:"status"`
	} `json:"data"`
}

func (g *PagarmeGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount", ErrGatewayRejected)
	}
	if !validTaxID(req.Customer.TaxID) {
		return nil, ErrInvalidTaxID
	}

	var orderReq pagarmeOrderRequest
	orderReq.Code = req.Reference
	orderReq.Customer.Name = req.Customer.Name
	orderReq.Customer.Email = req.Customer.Email
	doc := onlyDigits(req.Customer.TaxID)
	orderReq.Customer.Document = doc
	orderReq.Customer.Type = "individual"
	if len(doc) == 14 {
		orderReq.Customer.Type = "company"
	}
	orderReq.Items = []struct {
		Amount      int64  `json:"amount"`
		Description string `json:"description"`
		Quantity    int    `json:"quantity"`
	}{{Amount: req.AmountCents, Description: req.Description, Quantity: 1}}

	payment := pagarmeOrderPayment{}
	switch req.MethodHint {
	case MethodCard:
		payment.PaymentMethod = "credit_card"
		payment.CreditCard = &struct {
			CardToken string `json:"card_token"`
		}{CardToken: req.CardToken}
	case MethodBoleto:
		payment.PaymentMethod = "boleto"
		payment.Boleto = &struct {
			DueAt string `json:"due_at"`
		}{DueAt: time.Now().AddDate(0, 0, 3).Format(time.RFC3339)}
	default:
		payment.PaymentMethod = "pix"
		payment.Pix = &struct {
			ExpiresIn int `json:"expires_in"`
		}{ExpiresIn: 3600}
	}
	orderReq.Payments = []pagarmeOrderPayment{payment}

	var order pagarmeOrderResponse
	if err := g.do(ctx, http.MethodPost, "/orders", orderReq, &order); err != nil {
		return nil, fmt.Errorf("pagarme create order: %w", err)
	}

	result := &ChargeResult{
		ExternalID: order.ID,
		RawStatus:  order.Status,
	}
	if len(order.Charges) > 0 {
		tx := order.Charges[0].LastTransaction
		switch payment.PaymentMethod {
		case "pix":
			result.QRCode = tx.QrCodeURL
			result.QRCodeText = tx.QrCode
		case "boleto":
			result.BoletoURL = tx.PDF
		default:
			result.RedirectURL = tx.URL
		}
	}

	return result, nil
}

func (g *PagarmeGateway) GetStatus(ctx context.Context, externalID string) (string, error) {
	var order pagarmeOrderResponse
	if err := g.do(ctx, http.MethodGet, "/orders/"+externalID, nil, &order); err != nil {
		return "", fmt.Errorf("pagarme get order: %w", err)
	}
	return order.Status, nil
}

func (g *PagarmeGateway) MapStatus(raw string) models.PaymentStatus {
	switch raw {
	case "paid":
		return models.StatusCompleted
	case "failed", "payment_failed", "canceled", "expired":
		return models.StatusFailed
	case "refunded", "pending_refund":
		return models.StatusRefunded
	default:
		// pending, processing, waiting_payment and anything unknown
		return models.StatusPending
	}
}

func (g *PagarmeGateway) SignatureHeader() string { return "X-Hub-Signature" }

func (g *PagarmeGateway) VerifyWebhook(signature string, body []byte) error {
	if g.webhookSecret == "" {
		return ErrWebhookUnsigned
	}
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

func (g *PagarmeGateway) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var env pagarmeWebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed pagarme webhook: %w", err)
	}
	if env.Data.ID == "" {
		return nil, fmt.Errorf("pagarme webhook missing order id")
	}
	return &WebhookEvent{
		ExternalID: env.Data.ID,
		Reference:  env.Data.Code,
		RawStatus:  env.Data.Status,
		EventType:  env.Type,
	}, nil
}

func (g *PagarmeGateway) do(ctx context.Context, method, path string, in, out interface{}) error {
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

	req, err := http.NewRequestWithContext(ctx, method, pagarmeBaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.apiKey, "")

	return doJSON(g.httpClient, req, out)
}
