package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GuiSantosdev/clivus-dev-sub001/models"
	"github.com/GuiSantosdev/clivus-dev-sub001/repository"
)

// AccessProvisioner is the slice of AccessService the reconciler needs.
type AccessProvisioner interface {
	Grant(ctx context.Context, userID uuid.UUID) (credential string, generated bool, err error)
	Revoke(ctx context.Context, userID uuid.UUID) error
}

// NotificationDispatcher is the slice of NotificationService the
// reconciler needs.
type NotificationDispatcher interface {
	SendWelcome(ctx context.Context, user *models.User, planName, credential string) error
	NotifySale(ctx context.Context, payment *models.Payment, planName string) error
}

// EventPublisher publishes integration events for real transitions.
type EventPublisher interface {
	PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error
}

// TransitionOutcome reports what Reconcile did.
type TransitionOutcome struct {
	DidTransition bool
	From          models.PaymentStatus
	To            models.PaymentStatus
}

// Reconciler is the single authority that applies canonical status
// transitions to payments. Webhooks and polls both feed it; it is safe
// under concurrent invocation for the same payment because the transition
// itself is a single conditional update.
type Reconciler struct {
	payments repository.PaymentRepository
	users    repository.UserRepository
	plans    repository.PlanRepository
	access   AccessProvisioner
	notifier NotificationDispatcher
	events   EventPublisher
	logger   *zap.Logger
}

func NewReconciler(
	payments repository.PaymentRepository,
	users repository.UserRepository,
	plans repository.PlanRepository,
	access AccessProvisioner,
	notifier NotificationDispatcher,
	events EventPublisher,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		payments: payments,
		users:    users,
		plans:    plans,
		access:   access,
		notifier: notifier,
		events:   events,
		logger:   logger,
	}
}

// Reconcile applies newStatus to the payment. Re-deliveries of the same
// status and illegal exits from terminal states are no-ops. Side effects
// run only when this call actually won the transition; their failures are
// logged and never roll back the committed status.
func (r *Reconciler) Reconcile(ctx context.Context, paymentID uuid.UUID, newStatus models.PaymentStatus, rawStatus string, eventPayload *string) (TransitionOutcome, error) {
	payment, err := r.payments.GetByID(ctx, paymentID)
	if err != nil {
		return TransitionOutcome{}, fmt.Errorf("loading payment: %w", err)
	}

	outcome := TransitionOutcome{From: payment.Status, To: payment.Status}

	if payment.Status == newStatus {
		return outcome, nil
	}

	if !payment.Status.CanTransitionTo(newStatus) {
		// Late or retried notifications must never un-fail or un-refund
		// a payment. Ignored, not an error.
		r.logger.Warn("Ignoring invalid payment transition",
			zap.String("payment_id", paymentID.String()),
			zap.String("from", string(payment.Status)),
			zap.String("to", string(newStatus)),
			zap.String("raw_status", rawStatus),
		)
		return outcome, nil
	}

	won, err := r.payments.UpdateStatusIfCurrent(ctx, paymentID, payment.Status, newStatus, rawStatus, eventPayload)
	if err != nil {
		return outcome, fmt.Errorf("updating payment status: %w", err)
	}
	if !won {
		// A concurrent caller transitioned the row first.
		r.logger.Info("Lost payment transition race",
			zap.String("payment_id", paymentID.String()),
			zap.String("attempted", string(newStatus)),
		)
		return outcome, nil
	}

	outcome.DidTransition = true
	outcome.To = newStatus
	r.logger.Info("Payment transitioned",
		zap.String("payment_id", paymentID.String()),
		zap.String("from", string(outcome.From)),
		zap.String("to", string(newStatus)),
		zap.String("gateway", string(payment.Gateway)),
	)

	payment.Status = newStatus
	r.runSideEffects(ctx, payment)
	return outcome, nil
}

// runSideEffects executes the post-transition effects. Guarded solely by
// the transition having been won, so a retried webhook no-ops before ever
// reaching here, while failures below never undo the committed status.
func (r *Reconciler) runSideEffects(ctx context.Context, payment *models.Payment) {
	switch payment.Status {
	case models.StatusCompleted:
		r.onCompleted(ctx, payment)
	case models.StatusFailed, models.StatusRefunded:
		if err := r.access.Revoke(ctx, payment.UserID); err != nil {
			r.logger.Error("Failed to revoke access",
				zap.String("payment_id", payment.ID.String()),
				zap.String("user_id", payment.UserID.String()),
				zap.Error(err),
			)
		}
	}
	r.publishEvent(ctx, payment)
}

func (r *Reconciler) onCompleted(ctx context.Context, payment *models.Payment) {
	credential, generated, err := r.access.Grant(ctx, payment.UserID)
	if err != nil {
		r.logger.Error("Failed to grant access",
			zap.String("payment_id", payment.ID.String()),
			zap.String("user_id", payment.UserID.String()),
			zap.Error(err),
		)
		return
	}
	if generated {
		r.logger.Info("Credential provisioned",
			zap.String("user_id", payment.UserID.String()),
		)
	}

	planName := ""
	if plan, err := r.plans.GetByID(ctx, payment.PlanID); err == nil {
		planName = plan.Name
	}

	user, err := r.users.GetByID(ctx, payment.UserID)
	if err != nil {
		r.logger.Error("Failed to load user for notifications",
			zap.String("user_id", payment.UserID.String()),
			zap.Error(err),
		)
		return
	}

	if err := r.notifier.SendWelcome(ctx, user, planName, credential); err != nil {
		r.logger.Error("Welcome notification failed",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
	}
	if err := r.notifier.NotifySale(ctx, payment, planName); err != nil {
		r.logger.Error("Sale notification failed",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
	}
}

func (r *Reconciler) publishEvent(ctx context.Context, payment *models.Payment) {
	event := models.PaymentEvent{
		Type:        "payment_" + string(payment.Status),
		PaymentID:   payment.ID.String(),
		UserID:      payment.UserID.String(),
		PlanID:      payment.PlanID.String(),
		AmountCents: payment.AmountCents,
		Currency:    payment.Currency,
		Gateway:     string(payment.Gateway),
		Timestamp:   time.Now().UTC(),
	}
	if err := r.events.PublishPaymentEvent(ctx, event); err != nil {
		r.logger.Error("Failed to publish payment event",
			zap.String("payment_id", event.PaymentID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}
