package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/refundly/webhooks/pkg/domain/webhook"
)

// EventRepository is the PostgreSQL implementation of webhook.EventRepository.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

var _ webhook.EventRepository = (*EventRepository)(nil)

const eventColumns = `e.id, e.refund_id, e.subscription_id, e.sent, e.trials, e.last_trial_at, e.created_at`

// Create inserts an unsent event and assigns its id.
func (r *EventRepository) Create(ctx context.Context, e *webhook.Event) error {
	query := `
		INSERT INTO webhook_events (refund_id, subscription_id, sent, trials, last_trial_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		e.RefundID.Int64(),
		e.SubscriptionID.Int64(),
		e.Sent,
		e.Trials,
		nullTime(e.LastTrialAt),
		e.CreatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("create webhook event: %w", err)
	}
	e.ID = webhook.ID(id)
	return nil
}

// GetByID retrieves an event by id.
func (r *EventRepository) GetByID(ctx context.Context, id webhook.ID) (*webhook.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM webhook_events e WHERE e.id = $1`
	e, err := scanEvent(r.db.QueryRowContext(ctx, query, id.Int64()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, webhook.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	return e, nil
}

// RecordAttempt counts one attempt. The increment happens in SQL so concurrent attempts never
// overwrite each other, and sent is only ever set, never cleared.
func (r *EventRepository) RecordAttempt(ctx context.Context, id webhook.ID, success bool, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET trials = trials + 1, last_trial_at = $2, sent = sent OR $3
		WHERE id = $1
	`, id.Int64(), at, success)
	if err != nil {
		return fmt.Errorf("record webhook event attempt: %w", err)
	}
	return requireAffected(result, webhook.ErrEventNotFound)
}

// ListPending returns eligible events due for republishing, with the vendor owning each.
// Events whose subscription was deleted have no queue to go to and are skipped. Events of a
// disabled subscription are skipped until it is enabled again.
func (r *EventRepository) ListPending(ctx context.Context, notAfter time.Time) ([]webhook.PendingEvent, error) {
	query := `
		SELECT e.id, s.vendor_id
		FROM webhook_events e
		JOIN webhook_subscriptions s ON s.id = e.subscription_id
		WHERE e.sent = FALSE
			AND s.enabled = TRUE
			AND e.trials < $1
			AND (e.last_trial_at IS NULL OR e.last_trial_at <= $2)
		ORDER BY s.vendor_id, e.id
	`
	rows, err := r.db.QueryContext(ctx, query, webhook.MaxTrials, notAfter)
	if err != nil {
		return nil, fmt.Errorf("list pending webhook events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	pending := make([]webhook.PendingEvent, 0)
	for rows.Next() {
		var eventID, vendorID int64
		if err := rows.Scan(&eventID, &vendorID); err != nil {
			return nil, fmt.Errorf("scan pending webhook event: %w", err)
		}
		pending = append(pending, webhook.PendingEvent{
			EventID:  webhook.ID(eventID),
			VendorID: webhook.ID(vendorID),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending webhook events: %w", err)
	}
	return pending, nil
}

// List returns events newest first.
func (r *EventRepository) List(ctx context.Context, filter webhook.EventFilter) ([]*webhook.Event, error) {
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 50
	}

	conditions := make([]string, 0)
	args := make([]any, 0)
	argIdx := 1

	from := `webhook_events e`
	if filter.VendorID != nil {
		from += ` JOIN webhook_subscriptions s ON s.id = e.subscription_id`
		conditions = append(conditions, fmt.Sprintf("s.vendor_id = $%d", argIdx))
		args = append(args, filter.VendorID.Int64())
		argIdx++
	}
	if filter.Sent != nil {
		conditions = append(conditions, fmt.Sprintf("e.sent = $%d", argIdx))
		args = append(args, *filter.Sent)
		argIdx++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY e.id DESC LIMIT $%d`, eventColumns, from, whereClause, argIdx)
	args = append(args, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]*webhook.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook events: %w", err)
	}
	return events, nil
}

// CountForRetention counts events matching the retention filter.
func (r *EventRepository) CountForRetention(ctx context.Context, filter webhook.RetentionFilter) (int64, error) {
	where, args := retentionWhere(filter)
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM webhook_events WHERE `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count webhook events for retention: %w", err)
	}
	return count, nil
}

// DeleteForRetention deletes events matching the retention filter.
func (r *EventRepository) DeleteForRetention(ctx context.Context, filter webhook.RetentionFilter) (int64, error) {
	where, args := retentionWhere(filter)
	result, err := r.db.ExecContext(ctx, `DELETE FROM webhook_events WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete webhook events for retention: %w", err)
	}
	return result.RowsAffected()
}

// retentionWhere builds the predicate shared by both event tables.
func retentionWhere(filter webhook.RetentionFilter) (string, []any) {
	where := `(last_trial_at <= $1 OR (last_trial_at IS NULL AND created_at <= $1))`
	args := []any{filter.Cutoff}
	if filter.SettledOnly {
		where += ` AND (sent = TRUE OR trials >= $2)`
		args = append(args, webhook.MaxTrials)
	}
	return where, args
}

func scanEvent(row scanner) (*webhook.Event, error) {
	var (
		id, refundID, subscriptionID int64
		sent                         bool
		trials                       int
		lastTrialAt                  sql.NullTime
		createdAt                    time.Time
	)
	if err := row.Scan(&id, &refundID, &subscriptionID, &sent, &trials, &lastTrialAt, &createdAt); err != nil {
		return nil, err
	}
	return &webhook.Event{
		ID:             webhook.ID(id),
		RefundID:       webhook.ID(refundID),
		SubscriptionID: webhook.ID(subscriptionID),
		Attempt: webhook.Attempt{
			Sent:        sent,
			Trials:      trials,
			LastTrialAt: nullTimeValue(lastTrialAt),
		},
		CreatedAt: createdAt,
	}, nil
}
