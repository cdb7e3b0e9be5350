package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/GuiSantosdev/clivus-dev-sub001/models"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByGatewayExternalID(ctx context.Context, gateway models.GatewayName, externalID string) (*models.Payment, error)

	// ConfirmCharge persists the provider-assigned external id and payment
	// instructions after charge creation succeeds.
	ConfirmCharge(ctx context.Context, payment *models.Payment) error

	// UpdateStatusIfCurrent performs the compare-and-swap transition
	// "set status=to where id=? and status=from" and reports whether this
	// caller won the row. Concurrent callers racing for the same
	// transition see exactly one true.
	UpdateStatusIfCurrent(ctx context.Context, id uuid.UUID, from, to models.PaymentStatus, rawStatus string, eventPayload *string) (bool, error)
}

type gormPaymentRepo struct {
	db *gorm.DB
}

func NewGormPaymentRepo(db *gorm.DB) PaymentRepository {
	return &gormPaymentRepo{db: db}
}

func (r *gormPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) GetByGatewayExternalID(ctx context.Context, gateway models.GatewayName, externalID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND external_id = ?", gateway, externalID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) ConfirmCharge(ctx context.Context, payment *models.Payment) error {
	updates := map[string]interface{}{
		"external_id":           payment.ExternalID,
		"external_id_confirmed": true,
		"raw_status":            payment.RawStatus,
		"redirect_url":          payment.RedirectURL,
		"qr_code":               payment.QRCode,
		"qr_code_text":          payment.QRCodeText,
		"boleto_url":            payment.BoletoURL,
		"updated_at":            time.Now(),
	}
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", payment.ID).
		Updates(updates).Error
}

func (r *gormPaymentRepo) UpdateStatusIfCurrent(ctx context.Context, id uuid.UUID, from, to models.PaymentStatus, rawStatus string, eventPayload *string) (bool, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": now,
	}
	if rawStatus != "" {
		updates["raw_status"] = rawStatus
	}
	if eventPayload != nil {
		updates["event_payload"] = eventPayload
	}
	switch to {
	case models.StatusCompleted:
		updates["completed_at"] = &now
	case models.StatusFailed:
		updates["failed_at"] = &now
	case models.StatusRefunded:
		updates["refunded_at"] = &now
	}

	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
