package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name  string    `gorm:"type:varchar(255);not null"`
	Email string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	TaxID string    `gorm:"type:varchar(20)"` // CPF/CNPJ digits

	// HasAccess is derived state; only the reconciler's side effects write it.
	HasAccess bool `gorm:"not null;default:false"`

	// CredentialHash holds the bcrypt hash of the one-time credential.
	// The plaintext is returned to the caller exactly once at generation
	// and is never stored or logged.
	CredentialHash *string `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
