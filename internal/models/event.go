package models

import "time"

// PaymentEvent is the envelope published to Kafka for payment lifecycle
// changes and for the persistence-failure dead letter.
type PaymentEvent struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`
	PaymentID     string    `json:"payment_id"`
	UserID        string    `json:"user_id"`
	Status        string    `json:"status"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Amount        float64   `json:"amount,omitempty"`
	Detail        string    `json:"detail,omitempty"`
}
