package models

import "time"

// PaymentEvent is the integration event published on every real status
// transition. Consumers are external; delivery is at-least-once.
type PaymentEvent struct {
	Type        string    `json:"type"` // payment_completed, payment_failed, payment_refunded
	PaymentID   string    `json:"payment_id"`
	UserID      string    `json:"user_id"`
	PlanID      string    `json:"plan_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Gateway     string    `json:"gateway"`
	Timestamp   time.Time `json:"timestamp"`
}
