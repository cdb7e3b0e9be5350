package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the canonical four-value payment status, independent of
// any provider's vocabulary.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
	StatusRefunded  PaymentStatus = "refunded"
)

// IsTerminal returns true if the status is a terminal state.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRefunded
}

// CanTransitionTo returns true if the status can transition to the target
// status. The only permitted exit from a terminal state is
// completed -> refunded.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	if s == target {
		return false
	}
	switch s {
	case StatusPending:
		return target == StatusCompleted || target == StatusFailed || target == StatusRefunded
	case StatusCompleted:
		return target == StatusRefunded
	default:
		return false
	}
}

// GatewayName identifies one of the supported payment providers.
type GatewayName string

const (
	GatewayStripe  GatewayName = "stripe"
	GatewayAsaas   GatewayName = "asaas"
	GatewayEfi     GatewayName = "efi"
	GatewayCora    GatewayName = "cora"
	GatewayPagarme GatewayName = "pagarme"
)

// AllGateways lists every supported gateway name.
var AllGateways = []GatewayName{GatewayStripe, GatewayAsaas, GatewayEfi, GatewayCora, GatewayPagarme}

// ValidGateway reports whether name is one of the supported providers.
func ValidGateway(name GatewayName) bool {
	for _, g := range AllGateways {
		if g == name {
			return true
		}
	}
	return false
}

type Payment struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;index;not null"`
	PlanID uuid.UUID `gorm:"type:uuid;index;not null"`

	AmountCents int64       `gorm:"not null"` // minor units
	Currency    string      `gorm:"type:varchar(10);not null"`
	Gateway     GatewayName `gorm:"type:varchar(20);not null;uniqueIndex:idx_gateway_external_id"`

	// ExternalID is the provider-assigned charge/order id. It stays nil
	// until the provider call returns; ExternalIDConfirmed flips when the
	// id is the provider's own, so callers never infer that from the id's
	// shape.
	ExternalID          *string `gorm:"type:varchar(255);uniqueIndex:idx_gateway_external_id"`
	ExternalIDConfirmed bool    `gorm:"not null;default:false"`

	Status    PaymentStatus `gorm:"type:varchar(20);not null;index"`
	RawStatus string        `gorm:"type:varchar(100)"`

	// EventPayload keeps the last webhook body for audit and debugging.
	EventPayload *string `gorm:"type:jsonb"`

	RedirectURL *string `gorm:"type:varchar(1024)"`
	QRCode      *string `gorm:"type:text"`
	QRCodeText  *string `gorm:"type:text"`
	BoletoURL   *string `gorm:"type:varchar(1024)"`

	CompletedAt *time.Time
	FailedAt    *time.Time
	RefundedAt  *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}
