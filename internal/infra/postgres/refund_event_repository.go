package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/refundly/webhooks/pkg/domain/webhook"
)

// RefundEventRepository is the PostgreSQL implementation of webhook.RefundEventRepository.
type RefundEventRepository struct {
	db *DB
}

// NewRefundEventRepository creates a new RefundEventRepository.
func NewRefundEventRepository(db *DB) *RefundEventRepository {
	return &RefundEventRepository{db: db}
}

var _ webhook.RefundEventRepository = (*RefundEventRepository)(nil)

// Create inserts an unsent partner event and assigns its id.
func (r *RefundEventRepository) Create(ctx context.Context, e *webhook.RefundEvent) error {
	query := `
		INSERT INTO refund_webhook_events (refund_id, sent, trials, last_trial_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		e.RefundID.Int64(),
		e.Sent,
		e.Trials,
		nullTime(e.LastTrialAt),
		e.CreatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("create refund webhook event: %w", err)
	}
	e.ID = webhook.ID(id)
	return nil
}

// GetByID retrieves a partner event by id.
func (r *RefundEventRepository) GetByID(ctx context.Context, id webhook.ID) (*webhook.RefundEvent, error) {
	query := `
		SELECT id, refund_id, sent, trials, last_trial_at, created_at
		FROM refund_webhook_events
		WHERE id = $1
	`
	var (
		eventID, refundID int64
		sent              bool
		trials            int
		lastTrialAt       sql.NullTime
		createdAt         time.Time
	)
	err := r.db.QueryRowContext(ctx, query, id.Int64()).Scan(&eventID, &refundID, &sent, &trials, &lastTrialAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, webhook.ErrRefundEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get refund webhook event: %w", err)
	}
	return &webhook.RefundEvent{
		ID:       webhook.ID(eventID),
		RefundID: webhook.ID(refundID),
		Attempt: webhook.Attempt{
			Sent:        sent,
			Trials:      trials,
			LastTrialAt: nullTimeValue(lastTrialAt),
		},
		CreatedAt: createdAt,
	}, nil
}

// RecordAttempt counts one attempt in a single statement.
func (r *RefundEventRepository) RecordAttempt(ctx context.Context, id webhook.ID, success bool, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE refund_webhook_events
		SET trials = trials + 1, last_trial_at = $2, sent = sent OR $3
		WHERE id = $1
	`, id.Int64(), at, success)
	if err != nil {
		return fmt.Errorf("record refund webhook event attempt: %w", err)
	}
	return requireAffected(result, webhook.ErrRefundEventNotFound)
}

// ListPending returns the ids of eligible partner events due for republishing.
func (r *RefundEventRepository) ListPending(ctx context.Context, notAfter time.Time) ([]webhook.ID, error) {
	query := `
		SELECT id
		FROM refund_webhook_events
		WHERE sent = FALSE
			AND trials < $1
			AND (last_trial_at IS NULL OR last_trial_at <= $2)
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, webhook.MaxTrials, notAfter)
	if err != nil {
		return nil, fmt.Errorf("list pending refund webhook events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]webhook.ID, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending refund webhook event: %w", err)
		}
		ids = append(ids, webhook.ID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending refund webhook events: %w", err)
	}
	return ids, nil
}

// CountForRetention counts partner events matching the retention filter.
func (r *RefundEventRepository) CountForRetention(ctx context.Context, filter webhook.RetentionFilter) (int64, error) {
	where, args := retentionWhere(filter)
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM refund_webhook_events WHERE `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count refund webhook events for retention: %w", err)
	}
	return count, nil
}

// DeleteForRetention deletes partner events matching the retention filter.
func (r *RefundEventRepository) DeleteForRetention(ctx context.Context, filter webhook.RetentionFilter) (int64, error) {
	where, args := retentionWhere(filter)
	result, err := r.db.ExecContext(ctx, `DELETE FROM refund_webhook_events WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete refund webhook events for retention: %w", err)
	}
	return result.RowsAffected()
}
