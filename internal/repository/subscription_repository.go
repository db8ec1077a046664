package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lupafinanceira/backend/internal/models"
	"github.com/lupafinanceira/backend/pkg/logger"
)

// SubscriptionRepository persists subscription rows.
type SubscriptionRepository interface {
	// Create inserts a subscription row. The insert is idempotent: conflicts
	// on external_reference (or payment_id) are ignored, so duplicate client
	// submissions never create duplicate rows.
	Create(ctx context.Context, sub *models.Subscription) error

	// UpdateStatusByPaymentID overwrites the status of the row matching the
	// gateway payment id. Nil date arguments leave the stored dates untouched.
	// Returns the number of rows updated; zero rows is not an error (the
	// caller decides whether to log it).
	UpdateStatusByPaymentID(ctx context.Context, paymentID, status string, nextBillingDate, expiresAt *time.Time) (int64, error)

	// GetByPaymentID returns the subscription for a gateway payment id.
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Subscription, error)
}

// PostgresSubscriptionRepository implements SubscriptionRepository on pgx.
type PostgresSubscriptionRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresSubscriptionRepository creates the Postgres-backed repository.
func NewPostgresSubscriptionRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db, log: log}
}

func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			user_id, payment_id, external_reference, status,
			amount, payment_method, next_billing_date, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
	`

	ct, err := r.db.Exec(ctx, query,
		sub.UserID, sub.PaymentID, sub.ExternalReference, sub.Status,
		sub.Amount, sub.PaymentMethod, sub.NextBillingDate, sub.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}

	if ct.RowsAffected() == 0 {
		r.log.Warnw("Subscription insert skipped, row already exists",
			"paymentID", sub.PaymentID, "externalReference", sub.ExternalReference)
	}
	return nil
}

func (r *PostgresSubscriptionRepository) UpdateStatusByPaymentID(ctx context.Context, paymentID, status string, nextBillingDate, expiresAt *time.Time) (int64, error) {
	query := `
		UPDATE subscriptions
		SET status = $1,
		    next_billing_date = COALESCE($2, next_billing_date),
		    expires_at = COALESCE($3, expires_at),
		    updated_at = now()
		WHERE payment_id = $4
	`

	ct, err := r.db.Exec(ctx, query, status, nextBillingDate, expiresAt, paymentID)
	if err != nil {
		return 0, fmt.Errorf("failed to update subscription status: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *PostgresSubscriptionRepository) GetByPaymentID(ctx context.Context, paymentID string) (*models.Subscription, error) {
	query := `
		SELECT id, user_id, payment_id, external_reference, status,
		       amount, payment_method, next_billing_date, expires_at,
		       created_at, updated_at
		FROM subscriptions
		WHERE payment_id = $1
	`

	var sub models.Subscription
	err := r.db.QueryRow(ctx, query, paymentID).Scan(
		&sub.ID, &sub.UserID, &sub.PaymentID, &sub.ExternalReference, &sub.Status,
		&sub.Amount, &sub.PaymentMethod, &sub.NextBillingDate, &sub.ExpiresAt,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query subscription: %w", err)
	}
	return &sub, nil
}
