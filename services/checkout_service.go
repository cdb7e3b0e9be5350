package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/GuiSantosdev/clivus-dev-sub001/gateways"
	"github.com/GuiSantosdev/clivus-dev-sub001/models"
	"github.com/GuiSantosdev/clivus-dev-sub001/repository"
)

var (
	ErrPlanNotFound    = errors.New("plan not found or inactive")
	ErrUserNotFound    = errors.New("user not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrNotOwner        = errors.New("payment belongs to another user")
)

// chargeTimeout caps every outbound charge-creation call. The store
// transaction is never held across this window; the payment row is
// written before and after the call, not during.
const chargeTimeout = 20 * time.Second

type CheckoutRequest struct {
	UserID     uuid.UUID
	PlanSlug   string
	Gateway    models.GatewayName
	MethodHint string
	CardToken  string
}

type CheckoutResult struct {
	PaymentID   uuid.UUID
	Gateway     models.GatewayName
	RedirectURL string
	QRCode      string
	QRCodeText  string
	BoletoURL   string
}

// PaymentStatusResult is the check-payment response. Stale is the soft
// error flag: the gateway could not be reached, so Status is the last
// stored value.
type PaymentStatusResult struct {
	PaymentID   uuid.UUID
	Status      models.PaymentStatus
	RawStatus   string
	AmountCents int64
	Currency    string
	Gateway     models.GatewayName
	PlanName    string
	Stale       bool
}

// CheckoutService orchestrates charge creation and the on-demand status
// poll. It owns no transition logic; everything status-related funnels
// through the reconciler.
type CheckoutService struct {
	payments   repository.PaymentRepository
	users      repository.UserRepository
	plans      repository.PlanRepository
	registry   *gateways.Registry
	reconciler *Reconciler
	logger     *zap.Logger
}

func NewCheckoutService(
	payments repository.PaymentRepository,
	users repository.UserRepository,
	plans repository.PlanRepository,
	registry *gateways.Registry,
	reconciler *Reconciler,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		payments:   payments,
		users:      users,
		plans:      plans,
		registry:   registry,
		reconciler: reconciler,
		logger:     logger,
	}
}

// InitiateCheckout creates the external charge and the pending payment
// row. If the provider call fails the row is marked failed, never left
// pending forever.
func (s *CheckoutService) InitiateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	plan, err := s.plans.GetActiveBySlug(ctx, req.PlanSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("loading plan: %w", err)
	}

	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	gw, err := s.registry.Lookup(req.Gateway)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:          uuid.New(),
		UserID:      user.ID,
		PlanID:      plan.ID,
		AmountCents: plan.AmountCents,
		Currency:    plan.Currency,
		Gateway:     gw.Name(),
		Status:      models.StatusPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("creating payment: %w", err)
	}

	chargeCtx, cancel := context.WithTimeout(ctx, chargeTimeout)
	defer cancel()

	charge, err := gw.CreateCharge(chargeCtx, gateways.ChargeRequest{
		Customer: gateways.Customer{
			Name:  user.Name,
			Email: user.Email,
			TaxID: user.TaxID,
		},
		AmountCents: plan.AmountCents,
		Currency:    plan.Currency,
		MethodHint:  req.MethodHint,
		CardToken:   req.CardToken,
		Description: plan.Name,
		Reference:   payment.ID.String(),
	})
	if err != nil {
		s.markChargeFailed(payment.ID, err)
		return nil, err
	}

	payment.ExternalID = &charge.ExternalID
	payment.ExternalIDConfirmed = true
	payment.RawStatus = charge.RawStatus
	payment.RedirectURL = optional(charge.RedirectURL)
	payment.QRCode = optional(charge.QRCode)
	payment.QRCodeText = optional(charge.QRCodeText)
	payment.BoletoURL = optional(charge.BoletoURL)

	if err := s.payments.ConfirmCharge(ctx, payment); err != nil {
		return nil, fmt.Errorf("persisting charge result: %w", err)
	}

	s.logger.Info("Checkout initiated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("gateway", string(gw.Name())),
		zap.String("plan", plan.Slug),
		zap.Int64("amount_cents", plan.AmountCents),
	)

	return &CheckoutResult{
		PaymentID:   payment.ID,
		Gateway:     gw.Name(),
		RedirectURL: charge.RedirectURL,
		QRCode:      charge.QRCode,
		QRCodeText:  charge.QRCodeText,
		BoletoURL:   charge.BoletoURL,
	}, nil
}

// CheckPayment returns the payment status for its owner, refreshing a
// pending payment against the gateway first. Gateway trouble degrades to
// the stored status with Stale set; it never fails the request.
func (s *CheckoutService) CheckPayment(ctx context.Context, userID, paymentID uuid.UUID) (*PaymentStatusResult, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("loading payment: %w", err)
	}
	if payment.UserID != userID {
		return nil, ErrNotOwner
	}

	result := &PaymentStatusResult{
		PaymentID:   payment.ID,
		Status:      payment.Status,
		RawStatus:   payment.RawStatus,
		AmountCents: payment.AmountCents,
		Currency:    payment.Currency,
		Gateway:     payment.Gateway,
	}
	if plan, err := s.plans.GetByID(ctx, payment.PlanID); err == nil {
		result.PlanName = plan.Name
	}

	if payment.Status != models.StatusPending || !payment.ExternalIDConfirmed || payment.ExternalID == nil {
		return result, nil
	}

	gw, err := s.registry.Lookup(payment.Gateway)
	if err != nil {
		result.Stale = true
		return result, nil
	}

	raw, err := gw.GetStatus(ctx, *payment.ExternalID)
	if err != nil {
		s.logger.Warn("Status poll failed, returning stored status",
			zap.String("payment_id", payment.ID.String()),
			zap.String("gateway", string(payment.Gateway)),
			zap.Error(err),
		)
		result.Stale = true
		return result, nil
	}

	outcome, err := s.reconciler.Reconcile(ctx, payment.ID, gw.MapStatus(raw), raw, nil)
	if err != nil {
		result.Stale = true
		return result, nil
	}

	result.Status = outcome.To
	result.RawStatus = raw
	return result, nil
}

func (s *CheckoutService) markChargeFailed(paymentID uuid.UUID, cause error) {
	// The request context may already be canceled; the failure mark must
	// still land.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.payments.UpdateStatusIfCurrent(ctx, paymentID, models.StatusPending, models.StatusFailed, "", nil); err != nil {
		s.logger.Error("Failed to mark payment failed after charge error",
			zap.String("payment_id", paymentID.String()),
			zap.Error(err),
		)
		return
	}
	s.logger.Warn("Charge creation failed",
		zap.String("payment_id", paymentID.String()),
		zap.Error(cause),
	)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
