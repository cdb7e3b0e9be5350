package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/GuiSantosdev/clivus-dev-sub001/models"
	"github.com/GuiSantosdev/clivus-dev-sub001/services"
)

type reconcilerFixture struct {
	payments   *memPaymentRepo
	users      *memUserRepo
	plans      *memPlanRepo
	notifier   *mockNotifier
	publisher  *mockPublisher
	reconciler *services.Reconciler
	payment    *models.Payment
	user       *models.User
}

func newReconcilerFixture(t *testing.T, status models.PaymentStatus) *reconcilerFixture {
	t.Helper()

	plan := &models.Plan{ID: uuid.New(), Slug: "pro", Name: "Pro", AmountCents: 9900, Currency: "BRL", Active: true}
	user := &models.User{ID: uuid.New(), Name: "Ana", Email: "ana@example.com", TaxID: "52998224725"}
	externalID := "ch_123"
	payment := &models.Payment{
		ID:                  uuid.New(),
		UserID:              user.ID,
		PlanID:              plan.ID,
		AmountCents:         plan.AmountCents,
		Currency:            plan.Currency,
		Gateway:             models.GatewayAsaas,
		ExternalID:          &externalID,
		ExternalIDConfirmed: true,
		Status:              status,
	}

	f := &reconcilerFixture{
		payments:  newMemPaymentRepo(payment),
		users:     newMemUserRepo(user),
		plans:     newMemPlanRepo(plan),
		notifier:  &mockNotifier{},
		publisher: &mockPublisher{},
		payment:   payment,
		user:      user,
	}
	logger := zap.NewNop()
	access := services.NewAccessService(f.users, logger)
	f.reconciler = services.NewReconciler(f.payments, f.users, f.plans, access, f.notifier, f.publisher, logger)
	return f
}

func TestReconcile_CompletionGrantsAccessOnce(t *testing.T) {
	f := newReconcilerFixture(t, models.StatusPending)
	ctx := context.Background()

	outcome, err := f.reconciler.Reconcile(ctx, f.payment.ID, models.StatusCompleted, "RECEIVED", nil)
	assert.NoError(t, err)
	assert.True(t, outcome.DidTransition)
	assert.Equal(t, models.StatusPending, outcome.From)
	assert.Equal(t, models.StatusCompleted, outcome.To)

	user, _ := f.users.GetByID(ctx, f.user.ID)
	assert.True(t, user.HasAccess)
	assert.NotNil(t, user.CredentialHash)
	assert.Equal(t, 1, f.notifier.welcomeCount())
	assert.Equal(t, 1, f.notifier.saleCount())
	assert.Equal(t, []string{"payment_completed"}, f.publisher.eventTypes())

	// The welcome email carries the plaintext credential exactly once.
	assert.NotEmpty(t, f.notifier.welcomes[0])

	// Re-delivery of the same status is a no-op: no second credential,
	// email or event.
	firstHash := *user.CredentialHash
	outcome, err = f.reconciler.Reconcile(ctx, f.payment.ID, models.StatusCompleted, "RECEIVED", nil)
	assert.NoError(t, err)
	assert.False(t, outcome.DidTransition)

	user, _ = f.users.GetByID(ctx, f.user.ID)
	assert.Equal(t, firstHash, *user.CredentialHash)
	assert.Equal(t, 1, f.notifier.welcomeCount())
	assert.Equal(t, 1, f.notifier.saleCount())
	assert.Len(t, f.publisher.eventTypes(), 1)
}

func TestReconcile_NoResurrectionFromFailed(t *testing.T) {
	f := newReconcilerFixture(t, models.StatusFailed)
	ctx := context.Background()

	outcome, err := f.reconciler.Reconcile(ctx, f.payment.ID, models.StatusCompleted, "paid", nil)
	assert.NoError(t, err)
	assert.False(t, outcome.DidTransition)

	p, _ := f.payments.GetByID(ctx, f.payment.ID)
	assert.Equal(t, models.StatusFailed, p.Status)
	user, _ := f.users.GetByID(ctx, f.user.ID)
	assert.False(t, user.HasAccess)
	assert.Equal(t, 0, f.notifier.welcomeCount())
	assert.Empty(t, f.publisher.eventTypes())
}

func TestReconcile_NoResurrectionFromRefunded(t *testing.T) {
	f := newReconcilerFixture(t, models.StatusRefunded)

	outcome, err := f.reconciler.Reconcile(context.Background(), f.payment.ID, models.StatusCompleted, "paid", nil)
	assert.NoError(t, err)
	assert.False(t, outcome.DidTransition)

	p, _ := f.payments.GetByID(context.Background(), f.payment.ID)
	assert.Equal(t, models.StatusRefunded, p.Status)
}

func TestReconcile_CompletedToRefundedRevokesAccess(t *testing.T) {
	f := newReconcilerFixture(t, models.StatusPending)
	ctx := context.Background()

	_, err := f.reconciler.Reconcile(ctx, f.payment.ID, models.StatusCompleted, "paid", nil)
	assert.NoError(t, err)

	outcome, err := f.reconciler.Reconcile(ctx, f.payment.ID, models.StatusRefunded, "refunded", nil)
	assert.NoError(t, err)
	assert.True(t, outcome.DidTransition)
	assert.Equal(t, models.StatusCompleted, outcome.From)
	assert.Equal(t, models.StatusRefunded, outcome.To)

	user, _ := f.users.GetByID(ctx, f.user.ID)
	assert.False(t, user.HasAccess)
	// The credential survives revocation; only the access flag flips.
	assert.NotNil(t, user.CredentialHash)
	assert.Equal(t, []string{"payment_completed", "payment_refunded"}, f.publisher.eventTypes())
}

func TestReconcile_ConcurrentDeliveriesOneWinner(t *testing.T) {
	f := newReconcilerFixture(t, models.StatusPending)
	ctx := context.Background()

	const callers = 8
	outcomes := make([]services.TransitionOutcome, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			outcome, err := f.reconciler.Reconcile(ctx, f.payment.ID, models.StatusCompleted, "paid", nil)
			assert.NoError(t, err)
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, o := range outcomes {
		if o.DidTransition {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, f.notifier.welcomeCount())
	assert.Equal(t, 1, f.notifier.saleCount())
	assert.Len(t, f.publisher.eventTypes(), 1)

	user, _ := f.users.GetByID(ctx, f.user.ID)
	assert.True(t, user.HasAccess)
}

func TestReconcile_SideEffectFailureKeepsStatus(t *testing.T) {
	f := newReconcilerFixture(t, models.StatusPending)
	f.notifier.welcomeErr = errors.New("smtp down")
	f.publisher.err = errors.New("broker down")
	ctx := context.Background()

	outcome, err := f.reconciler.Reconcile(ctx, f.payment.ID, models.StatusCompleted, "paid", nil)
	assert.NoError(t, err)
	assert.True(t, outcome.DidTransition)

	// The committed transition stands even though every effect failed.
	p, _ := f.payments.GetByID(ctx, f.payment.ID)
	assert.Equal(t, models.StatusCompleted, p.Status)
	user, _ := f.users.GetByID(ctx, f.user.ID)
	assert.True(t, user.HasAccess)
}

func TestReconcile_FailureRevokesAccess(t *testing.T) {
	f := newReconcilerFixture(t, models.StatusPending)
	ctx := context.Background()

	// Simulate access granted by an earlier cycle.
	_, err := f.users.GrantAccess(ctx, f.user.ID, "hash")
	assert.NoError(t, err)

	outcome, err := f.reconciler.Reconcile(ctx, f.payment.ID, models.StatusFailed, "OVERDUE", nil)
	assert.NoError(t, err)
	assert.True(t, outcome.DidTransition)

	user, _ := f.users.GetByID(ctx, f.user.ID)
	assert.False(t, user.HasAccess)
	assert.Equal(t, []string{"payment_failed"}, f.publisher.eventTypes())
}

func TestReconcile_RecordsEventPayload(t *testing.T) {
	f := newReconcilerFixture(t, models.StatusPending)
	ctx := context.Background()

	body := `{"event":"PAYMENT_RECEIVED"}`
	_, err := f.reconciler.Reconcile(ctx, f.payment.ID, models.StatusCompleted, "RECEIVED", &body)
	assert.NoError(t, err)

	p, _ := f.payments.GetByID(ctx, f.payment.ID)
	assert.NotNil(t, p.EventPayload)
	assert.Equal(t, body, *p.EventPayload)
	assert.Equal(t, "RECEIVED", p.RawStatus)
	assert.NotNil(t, p.CompletedAt)
}

func TestReconcile_UnknownPayment(t *testing.T) {
	f := newReconcilerFixture(t, models.StatusPending)

	_, err := f.reconciler.Reconcile(context.Background(), uuid.New(), models.StatusCompleted, "paid", nil)
	assert.Error(t, err)
}
