package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/refundly/webhooks/pkg/domain/vendor"
	"github.com/refundly/webhooks/pkg/domain/webhook"
)

// SubscriptionRepository is the PostgreSQL implementation of webhook.SubscriptionRepository.
type SubscriptionRepository struct {
	db *DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db *DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

var _ webhook.SubscriptionRepository = (*SubscriptionRepository)(nil)

const subscriptionColumns = `id, vendor_id, url, key, enabled, created_at`

// Create inserts a subscription. The vendor row stays locked until the transaction ends, so
// concurrent registrations for one vendor are serialized and the count taken after the insert
// is exact. An insert that puts the vendor over limit is rolled back.
func (r *SubscriptionRepository) Create(ctx context.Context, s *webhook.Subscription, limit int) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		var locked int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM vendors WHERE id = $1 FOR UPDATE`, s.VendorID().Int64()).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return vendor.ErrVendorNotFound
		}
		if err != nil {
			return fmt.Errorf("lock vendor: %w", err)
		}

		query := `
			INSERT INTO webhook_subscriptions (vendor_id, url, key, enabled, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`
		var (
			id        int64
			createdAt time.Time
		)
		err = tx.QueryRowContext(ctx, query,
			s.VendorID().Int64(),
			s.URL(),
			s.Key(),
			s.Enabled(),
			s.CreatedAt(),
		).Scan(&id, &createdAt)
		if err != nil {
			if isUniqueViolation(err) {
				return webhook.ErrSubscriptionExists
			}
			return fmt.Errorf("create subscription: %w", err)
		}

		if limit > 0 {
			var count int
			err = tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM webhook_subscriptions WHERE vendor_id = $1`, s.VendorID().Int64(),
			).Scan(&count)
			if err != nil {
				return fmt.Errorf("count subscriptions: %w", err)
			}
			if count > limit {
				return webhook.ErrSubscriptionLimitReached
			}
		}

		s.SetID(webhook.ID(id))
		s.SetCreatedAt(createdAt)
		return nil
	})
}

// GetByID retrieves a subscription by id.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id webhook.ID) (*webhook.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM webhook_subscriptions WHERE id = $1`
	s, err := scanSubscription(r.db.QueryRowContext(ctx, query, id.Int64()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, webhook.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return s, nil
}

// ListByVendor returns the vendor's subscriptions oldest first.
func (r *SubscriptionRepository) ListByVendor(ctx context.Context, vendorID webhook.ID) ([]*webhook.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM webhook_subscriptions
		WHERE vendor_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, vendorID.Int64())
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	subs := make([]*webhook.Subscription, 0)
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

// Update persists the mutable fields of a subscription.
func (r *SubscriptionRepository) Update(ctx context.Context, s *webhook.Subscription) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE webhook_subscriptions SET enabled = $2 WHERE id = $1`,
		s.ID().Int64(), s.Enabled(),
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return requireAffected(result, webhook.ErrSubscriptionNotFound)
}

// Delete removes a subscription. Events referencing it are kept.
func (r *SubscriptionRepository) Delete(ctx context.Context, id webhook.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, id.Int64())
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return requireAffected(result, webhook.ErrSubscriptionNotFound)
}

func scanSubscription(row scanner) (*webhook.Subscription, error) {
	var (
		id, vendorID int64
		url, key     string
		enabled      bool
		createdAt    sql.NullTime
	)
	if err := row.Scan(&id, &vendorID, &url, &key, &enabled, &createdAt); err != nil {
		return nil, err
	}
	return webhook.ReconstructSubscription(
		webhook.ID(id), webhook.ID(vendorID), url, key, enabled, createdAt.Time,
	), nil
}

// requireAffected maps a zero-row update or delete to notFound.
func requireAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
