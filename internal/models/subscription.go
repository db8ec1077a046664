package models

import "time"

// Subscription statuses. Transitions are pending -> approved or
// pending -> rejected in practice, but the webhook overwrites status
// unconditionally by payment_id, so nothing enforces monotonicity.
const (
	SubscriptionStatusPending  = "pending"
	SubscriptionStatusApproved = "approved"
	SubscriptionStatusRejected = "rejected"
)

// Payment method tags as persisted on the subscription row.
const (
	PaymentMethodCreditCard = "credit_card"
	PaymentMethodPix        = "pix"
)

// Subscription represents one user's billing relationship. A row is created
// right after every structurally valid gateway charge and later mutated in
// place by the webhook receiver. Rows are never deleted by this service.
type Subscription struct {
	ID                int64      `db:"id" json:"id"`
	UserID            string     `db:"user_id" json:"user_id"`
	PaymentID         string     `db:"payment_id" json:"payment_id"`
	ExternalReference string     `db:"external_reference" json:"external_reference"`
	Status            string     `db:"status" json:"status"`
	Amount            float64    `db:"amount" json:"amount"`
	PaymentMethod     string     `db:"payment_method" json:"payment_method"`
	NextBillingDate   *time.Time `db:"next_billing_date" json:"next_billing_date,omitempty"`
	ExpiresAt         *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}
