package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/refundly/webhooks/pkg/domain/webhook"
)

func TestRetentionWhere(t *testing.T) {
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	where, args := retentionWhere(webhook.RetentionFilter{Cutoff: cutoff})
	assert.Equal(t, `(last_trial_at <= $1 OR (last_trial_at IS NULL AND created_at <= $1))`, where)
	assert.Equal(t, []any{cutoff}, args)

	where, args = retentionWhere(webhook.RetentionFilter{Cutoff: cutoff, SettledOnly: true})
	assert.Contains(t, where, `AND (sent = TRUE OR trials >= $2)`)
	assert.Equal(t, []any{cutoff, webhook.MaxTrials}, args)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestNullTimeRoundTrip(t *testing.T) {
	assert.False(t, nullTime(nil).Valid)
	assert.Nil(t, nullTimeValue(sql.NullTime{}))

	now := time.Now()
	got := nullTimeValue(nullTime(&now))
	if assert.NotNil(t, got) {
		assert.True(t, now.Equal(*got))
	}
}

type fakeResult struct{ n int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.n, nil }

func TestRequireAffected(t *testing.T) {
	assert.NoError(t, requireAffected(fakeResult{n: 1}, webhook.ErrEventNotFound))
	assert.ErrorIs(t, requireAffected(fakeResult{n: 0}, webhook.ErrEventNotFound), webhook.ErrEventNotFound)
}
