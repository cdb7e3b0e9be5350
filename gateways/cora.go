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

const (
	coraProdURL    = "https://matls-clients.api.cora.com.br"
	coraSandboxURL = "https://matls-clients.api.stage.cora.com.br"
)

// CoraGateway issues bank-slip invoices via the Cora API. Webhook
// deliveries are signed with HMAC-SHA256 over the raw body.
type CoraGateway struct {
	baseURL        string
	apiToken       string
	endpointSecret string
	httpClient     *http.Client
}

func NewCoraGateway(apiToken, endpointSecret string, sandbox bool) *CoraGateway {
	base := coraProdURL
	if sandbox {
		base = coraSandboxURL
	}
	return &CoraGateway{
		baseURL:        base,
		apiToken:       apiToken,
		endpointSecret: endpointSecret,
		httpClient:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *CoraGateway) Name() models.GatewayName { return models.GatewayCora }

// ---- Cora API request/response structs ----

type coraInvoiceRequest struct {
	Code     string `json:"code"`
	Customer struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Document struct {
			Identity string `json:"identity"`
			Type     string `json:"type"`
		} `json:"document"`
	} `json:"customer"`
	Services []struct {
		Name   string `json:"name"`
		Amount int64  `json:"amount"`
	} `json:"services"`
	PaymentTerms struct {
		DueDate string `json:"due_date"`
	} `json:"payment_terms"`
}

type coraInvoiceResponse struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	Status         string `json:"status"`
	PaymentOptions struct {
		BankSlip struct {
			URL     string `json:"url"`
			Barcode string `json:"barcode"`
		} `json:"bank_slip"`
	} `json:"payment_options"`
}

type coraWebhookEnvelope struct {
	Event string `json:"event"`
	Data  struct {
		ID     string `json:"id"`
		Code   string `json:"code"`
		Status string `json:"status"`
	} `json:"data"`
}

func (g *CoraGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount", ErrGatewayRejected)
	}
	if !validTaxID(req.Customer.TaxID) {
		return nil, ErrInvalidTaxID
	}

	var invoiceReq coraInvoiceRequest
	invoiceReq.Code = req.Reference
	invoiceReq.Customer.Name = req.Customer.Name
	invoiceReq.Customer.Email = req.Customer.Email
	doc := onlyDigits(req.Customer.TaxID)
	invoiceReq.Customer.Document.Identity = doc
	invoiceReq.Customer.Document.Type = "CPF"
	if len(doc) == 14 {
		invoiceReq.Customer.Document.Type = "CNPJ"
	}
	invoiceReq.Services = []struct {
		Name   string `json:"name"`
		Amount int64  `json:"amount"`
	}{{Name: req.Description, Amount: req.AmountCents}}
	invoiceReq.PaymentTerms.DueDate = time.Now().AddDate(0, 0, 3).Format("2006-01-02")

	var invoice coraInvoiceResponse
	if err := g.do(ctx, http.MethodPost, "/v2/invoices", req.Reference, invoiceReq, &invoice); err != nil {
		return nil, fmt.Errorf("cora create invoice: %w", err)
	}

	return &ChargeResult{
		ExternalID: invoice.ID,
		RawStatus:  invoice.Status,
		BoletoURL:  invoice.PaymentOptions.BankSlip.URL,
	}, nil
}

func (g *CoraGateway) GetStatus(ctx context.Context, externalID string) (string, error) {
	var invoice coraInvoiceResponse
	if err := g.do(ctx, http.MethodGet, "/v2/invoices/"+externalID, "", nil, &invoice); err != nil {
		return "", fmt.Errorf("cora get invoice: %w", err)
	}
	return invoice.Status, nil
}

func (g *CoraGateway) MapStatus(raw string) models.PaymentStatus {
	switch raw {
	case "PAID":
		return models.StatusCompleted
	case "LATE", "OVERDUE", "CANCELLED":
		return models.StatusFailed
	case "REVERSED", "REFUNDED":
		return models.StatusRefunded
	default:
		// DRAFT, OPEN, IN_PAYMENT and anything unknown
		return models.StatusPending
	}
}

func (g *CoraGateway) SignatureHeader() string { return "X-Cora-Signature" }

func (g *CoraGateway) VerifyWebhook(signature string, body []byte) error {
	if g.endpointSecret == "" {
		return ErrWebhookUnsigned
	}
	mac := hmac.New(sha256.New, []byte(g.endpointSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

func (g *CoraGateway) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var env coraWebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed cora webhook: %w", err)
	}
	if env.Data.ID == "" {
		return nil, fmt.Errorf("cora webhook missing invoice id")
	}
	return &WebhookEvent{
		ExternalID: env.Data.ID,
		Reference:  env.Data.Code,
		RawStatus:  env.Data.Status,
		EventType:  env.Event,
	}, nil
}

func (g *CoraGateway) do(ctx context.Context, method, path, idempotencyKey string, in, out interface{}) error {
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
	req.Header.Set("Authorization", "Bearer "+g.apiToken)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	return doJSON(g.httpClient, req, out)
}
