package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/GuiSantosdev/clivus-dev-sub001/gateways"
	"github.com/GuiSantosdev/clivus-dev-sub001/models"
)

// memPaymentRepo is an in-memory PaymentRepository with the same
// compare-and-swap semantics as the real one.
type memPaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*models.Payment
}

func newMemPaymentRepo(seed ...*models.Payment) *memPaymentRepo {
	r := &memPaymentRepo{payments: make(map[uuid.UUID]*models.Payment)}
	for _, p := range seed {
		cp := *p
		r.payments[p.ID] = &cp
	}
	return r
}

func (r *memPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *payment
	r.payments[payment.ID] = &cp
	return nil
}

func (r *memPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) GetByGatewayExternalID(ctx context.Context, gateway models.GatewayName, externalID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.Gateway == gateway && p.ExternalID != nil && *p.ExternalID == externalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memPaymentRepo) ConfirmCharge(ctx context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[payment.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.ExternalID = payment.ExternalID
	p.ExternalIDConfirmed = true
	p.RawStatus = payment.RawStatus
	p.RedirectURL = payment.RedirectURL
	p.QRCode = payment.QRCode
	p.QRCodeText = payment.QRCodeText
	p.BoletoURL = payment.BoletoURL
	return nil
}

func (r *memPaymentRepo) UpdateStatusIfCurrent(ctx context.Context, id uuid.UUID, from, to models.PaymentStatus, rawStatus string, eventPayload *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	if rawStatus != "" {
		p.RawStatus = rawStatus
	}
	if eventPayload != nil {
		p.EventPayload = eventPayload
	}
	now := time.Now()
	switch to {
	case models.StatusCompleted:
		p.CompletedAt = &now
	case models.StatusFailed:
		p.FailedAt = &now
	case models.StatusRefunded:
		p.RefundedAt = &now
	}
	return true, nil
}

// memUserRepo mirrors the credential-once semantics of the real repo.
type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemUserRepo(seed ...*models.User) *memUserRepo {
	r := &memUserRepo{users: make(map[uuid.UUID]*models.User)}
	for _, u := range seed {
		cp := *u
		r.users[u.ID] = &cp
	}
	return r
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GrantAccess(ctx context.Context, id uuid.UUID, credentialHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	u.HasAccess = true
	if u.CredentialHash == nil {
		hash := credentialHash
		u.CredentialHash = &hash
		return true, nil
	}
	return false, nil
}

func (r *memUserRepo) RevokeAccess(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.HasAccess = false
	return nil
}

type memPlanRepo struct {
	plans map[uuid.UUID]*models.Plan
}

func newMemPlanRepo(seed ...*models.Plan) *memPlanRepo {
	r := &memPlanRepo{plans: make(map[uuid.UUID]*models.Plan)}
	for _, p := range seed {
		cp := *p
		r.plans[p.ID] = &cp
	}
	return r
}

func (r *memPlanRepo) GetActiveBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	for _, p := range r.plans {
		if p.Slug == slug && p.Active {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memPlanRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	p, ok := r.plans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

// mockNotifier records notification calls; failures are injectable.
type mockNotifier struct {
	mu          sync.Mutex
	welcomes   []string // credentials passed to SendWelcome
	sales      int
	welcomeErr error
	saleErr    error
}

func (m *mockNotifier) SendWelcome(ctx context.Context, user *models.User, planName, credential string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.welcomeErr != nil {
		return m.welcomeErr
	}
	m.welcomes = append(m.welcomes, credential)
	return nil
}

func (m *mockNotifier) NotifySale(ctx context.Context, payment *models.Payment, planName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saleErr != nil {
		return m.saleErr
	}
	m.sales++
	return nil
}

func (m *mockNotifier) welcomeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.welcomes)
}

func (m *mockNotifier) saleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sales
}

// mockPublisher records published payment events.
type mockPublisher struct {
	mu     sync.Mutex
	events []models.PaymentEvent
	err    error
}

func (m *mockPublisher) PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

// fakeGateway is a scriptable Gateway for checkout tests.
type fakeGateway struct {
	name         models.GatewayName
	chargeResult *gateways.ChargeResult
	chargeErr    error
	status       string
	statusErr    error
	chargeCalls  int
}

func (g *fakeGateway) Name() models.GatewayName { return g.name }

func (g *fakeGateway) CreateCharge(ctx context.Context, req gateways.ChargeRequest) (*gateways.ChargeResult, error) {
	g.chargeCalls++
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	return g.chargeResult, nil
}

func (g *fakeGateway) GetStatus(ctx context.Context, externalID string) (string, error) {
	if g.statusErr != nil {
		return "", g.statusErr
	}
	return g.status, nil
}

func (g *fakeGateway) MapStatus(raw string) models.PaymentStatus {
	switch raw {
	case "paid":
		return models.StatusCompleted
	case "failed":
		return models.StatusFailed
	case "refunded":
		return models.StatusRefunded
	default:
		return models.StatusPending
	}
}

func (g *fakeGateway) VerifyWebhook(signature string, body []byte) error { return nil }

func (g *fakeGateway) ParseWebhook(body []byte) (*gateways.WebhookEvent, error) {
	return &gateways.WebhookEvent{}, nil
}

func (g *fakeGateway) SignatureHeader() string { return "X-Test-Signature" }
