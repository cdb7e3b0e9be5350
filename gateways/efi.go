package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/GuiSantosdev/clivus-dev-sub001/models"
)

const (
	efiProdURL    = "https://pix.api.efipay.com.br"
	efiSandboxURL = "https://pix-h.api.efipay.com.br"
)

// EfiGateway creates Pix charges against the EFI (Gerencianet) API.
// EFI authenticates API calls with a short-lived OAuth token obtained via
// client credentials; the token is cached until shortly before expiry.
//
// EFI does not sign webhook deliveries, so VerifyWebhook returns
// ErrWebhookUnsigned and the ingestion layer re-fetches the charge status
// instead of trusting the payload.
type EfiGateway struct {
	baseURL      string
	clientID     string
	clientSecret string
	pixKey       string
	httpClient   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewEfiGateway(clientID, clientSecret, pixKey string, sandbox bool) *EfiGateway {
	base := efiProdURL
	if sandbox {
		base = efiSandboxURL
	}
	return &EfiGateway{
		baseURL:      base,
		clientID:     clientID,
		clientSecret: clientSecret,
		pixKey:       pixKey,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *EfiGateway) Name() models.GatewayName { return models.GatewayEfi }

// ---- EFI API request/response structs ----

type efiTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type efiChargeRequest struct {
	Calendario struct {
		Expiracao int `json:"expiracao"`
	} `json:"calendario"`
	Devedor struct {
		CPF  string `json:"cpf,omitempty"`
		CNPJ string `json:"cnpj,omitempty"`
		Nome string `json:"nome"`
	} `json:"devedor"`
	Valor struct {
		Original string `json:"original"`
	} `json:"valor"`
	Chave              string `json:"chave"`
	SolicitacaoPagador string `json:"solicitacaoPagador,omitempty"`
}

type efiChargeResponse struct {
	Txid   string `json:"txid"`
	Status string `json:"status"`
	Loc    struct {
		ID int `json:"id"`
	} `json:"loc"`
}

type efiQrResponse struct {
	Qrcode       string `json:"qrcode"`
	ImagemQrcode string `json:"imagemQrcode"`
}

type efiWebhookEnvelope struct {
	Pix []struct {
		Txid string `json:"txid"`
	} `json:"pix"`
}

func (g *EfiGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount", ErrGatewayRejected)
	}
	if !validTaxID(req.Customer.TaxID) {
		return nil, ErrInvalidTaxID
	}

	var chargeReq efiChargeRequest
	chargeReq.Calendario.Expiracao = 3600
	chargeReq.Devedor.Nome = req.Customer.Name
	doc := onlyDigits(req.Customer.TaxID)
	if len(doc) == 14 {
		chargeReq.Devedor.CNPJ = doc
	} else {
		chargeReq.Devedor.CPF = doc
	}
	chargeReq.Valor.Original = fmt.Sprintf("%d.%02d", req.AmountCents/100, req.AmountCents%100)
	chargeReq.Chave = g.pixKey
	chargeReq.SolicitacaoPagador = req.Description

	var charge efiChargeResponse
	if err := g.do(ctx, http.MethodPost, "/v2/cob", chargeReq, &charge); err != nil {
		return nil, fmt.Errorf("efi create charge: %w", err)
	}

	var qr efiQrResponse
	if err := g.do(ctx, http.MethodGet, fmt.Sprintf("/v2/loc/%d/qrcode", charge.Loc.ID), nil, &qr); err != nil {
		return nil, fmt.Errorf("efi qr code: %w", err)
	}

	return &ChargeResult{
		ExternalID: charge.Txid,
		RawStatus:  charge.Status,
		QRCode:     qr.ImagemQrcode,
		QRCodeText: qr.Qrcode,
	}, nil
}

func (g *EfiGateway) GetStatus(ctx context.Context, externalID string) (string, error) {
	var charge efiChargeResponse
	if err := g.do(ctx, http.MethodGet, "/v2/cob/"+externalID, nil, &charge); err != nil {
		return "", fmt.Errorf("efi get charge: %w", err)
	}
	return charge.Status, nil
}

func (g *EfiGateway) MapStatus(raw string) models.PaymentStatus {
	switch strings.ToLower(raw) {
	case "paid", "settled", "concluida":
		return models.StatusCompleted
	case "unpaid", "expired", "canceled",
		"removida_pelo_usuario_recebedor", "removida_pelo_psp":
		return models.StatusFailed
	case "refunded", "devolvida":
		return models.StatusRefunded
	default:
		// new, waiting, ativa and anything unknown
		return models.StatusPending
	}
}

func (g *EfiGateway) SignatureHeader() string { return "" }

func (g *EfiGateway) VerifyWebhook(signature string, body []byte) error {
	return ErrWebhookUnsigned
}

func (g *EfiGateway) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var env efiWebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed efi webhook: %w", err)
	}
	if len(env.Pix) == 0 || env.Pix[0].Txid == "" {
		return nil, fmt.Errorf("efi webhook missing txid")
	}
	// The payload carries no trustworthy status; the caller must resolve
	// it via GetStatus.
	return &WebhookEvent{
		ExternalID: env.Pix[0].Txid,
		EventType:  "pix",
	}, nil
}

// accessToken returns a cached OAuth token, refreshing when it is within a
// minute of expiry.
func (g *EfiGateway) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && time.Now().Before(g.tokenExpiry.Add(-time.Minute)) {
		return g.token, nil
	}

	payload := bytes.NewBufferString(`{"grant_type":"client_credentials"}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/oauth/token", payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.clientID, g.clientSecret)

	var token efiTokenResponse
	if err := doJSON(g.httpClient, req, &token); err != nil {
		return "", fmt.Errorf("efi oauth token: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty efi access token", ErrGatewayAuth)
	}

	g.token = token.AccessToken
	g.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return g.token, nil
}

func (g *EfiGateway) do(ctx context.Context, method, path string, in, out interface{}) error {
	token, err := g.accessToken(ctx)
	if err != nil {
		return err
	}

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
	req.Header.Set("Authorization", "Bearer "+token)

	return doJSON(g.httpClient, req, out)
}
