package controllers_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/GuiSantosdev/clivus-dev-sub001/controllers"
	"github.com/GuiSantosdev/clivus-dev-sub001/gateways"
	"github.com/GuiSantosdev/clivus-dev-sub001/middleware"
	"github.com/GuiSantosdev/clivus-dev-sub001/models"
	"github.com/GuiSantosdev/clivus-dev-sub001/services"
)

// stubCheckout scripts the orchestrator behind the controller.
type stubCheckout struct {
	initiateResult *services.CheckoutResult
	initiateErr    error
	checkResult    *services.PaymentStatusResult
	checkErr       error
	lastRequest    services.CheckoutRequest
}

func (s *stubCheckout) InitiateCheckout(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutResult, error) {
	s.lastRequest = req
	if s.initiateErr != nil {
		return nil, s.initiateErr
	}
	return s.initiateResult, nil
}

func (s *stubCheckout) CheckPayment(ctx context.Context, userID, paymentID uuid.UUID) (*services.PaymentStatusResult, error) {
	if s.checkErr != nil {
		return nil, s.checkErr
	}
	return s.checkResult, nil
}

func checkoutRouter(stub *stubCheckout) *gin.Engine {
	cc := &controllers.CheckoutController{Checkout: stub, Logger: zap.NewNop()}
	r := gin.New()
	authed := r.Group("/")
	authed.Use(middleware.AuthMiddleware())
	authed.POST("/checkout", cc.InitiateCheckout)
	authed.GET("/payments/:id", cc.CheckPayment)
	return r
}

func TestInitiateCheckoutHandler_Success(t *testing.T) {
	paymentID := uuid.New()
	stub := &stubCheckout{
		initiateResult: &services.CheckoutResult{
			PaymentID:  paymentID,
			Gateway:    models.GatewayEfi,
			QRCode:     "base64-image",
			QRCodeText: "copy-paste-code",
		},
	}
	r := checkoutRouter(stub)

	body := `{"plan_slug":"pro","gateway":"efi","method_hint":"pix"}`
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(body))
	req.Header.Set("X-User-ID", uuid.New().String())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), paymentID.String())
	assert.Contains(t, w.Body.String(), "qr_code_text")
	assert.NotContains(t, w.Body.String(), "boleto_url")
	assert.Equal(t, "pro", stub.lastRequest.PlanSlug)
	assert.Equal(t, models.GatewayEfi, stub.lastRequest.Gateway)
}

func TestInitiateCheckoutHandler_Validation(t *testing.T) {
	r := checkoutRouter(&stubCheckout{})

	// Missing gateway.
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(`{"plan_slug":"pro"}`))
	req.Header.Set("X-User-ID", uuid.New().String())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing auth header.
	req = httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(`{"plan_slug":"pro","gateway":"efi"}`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInitiateCheckoutHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"plan not found", services.ErrPlanNotFound, http.StatusNotFound},
		{"user not found", services.ErrUserNotFound, http.StatusNotFound},
		{"invalid tax id", gateways.ErrInvalidTaxID, http.StatusBadRequest},
		{"gateway rejected", gateways.ErrGatewayRejected, http.StatusBadRequest},
		{"gateway disabled", gateways.ErrGatewayDisabled, http.StatusServiceUnavailable},
		{"gateway auth", gateways.ErrGatewayAuth, http.StatusServiceUnavailable},
		{"gateway unavailable", gateways.ErrGatewayUnavailable, http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := checkoutRouter(&stubCheckout{initiateErr: tc.err})

			body := `{"plan_slug":"pro","gateway":"efi"}`
			req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(body))
			req.Header.Set("X-User-ID", uuid.New().String())
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestCheckPaymentHandler(t *testing.T) {
	paymentID := uuid.New()
	stub := &stubCheckout{
		checkResult: &services.PaymentStatusResult{
			PaymentID:   paymentID,
			Status:      models.StatusCompleted,
			RawStatus:   "RECEIVED",
			AmountCents: 9900,
			Currency:    "BRL",
			Gateway:     models.GatewayAsaas,
			PlanName:    "Pro",
		},
	}
	r := checkoutRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/payments/"+paymentID.String(), nil)
	req.Header.Set("X-User-ID", uuid.New().String())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)
	assert.Contains(t, w.Body.String(), `"stale":false`)
}

func TestCheckPaymentHandler_Errors(t *testing.T) {
	r := checkoutRouter(&stubCheckout{checkErr: services.ErrNotOwner})
	req := httptest.NewRequest(http.MethodGet, "/payments/"+uuid.New().String(), nil)
	req.Header.Set("X-User-ID", uuid.New().String())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Malformed payment id never reaches the service.
	req = httptest.NewRequest(http.MethodGet, "/payments/not-a-uuid", nil)
	req.Header.Set("X-User-ID", uuid.New().String())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
