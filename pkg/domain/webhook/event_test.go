package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAttempt_Eligible(t *testing.T) {
	tests := []struct {
		name   string
		sent   bool
		trials int
		want   bool
	}{
		{"fresh", false, 0, true},
		{"one failure", false, 1, true},
		{"last trial left", false, MaxTrials - 1, true},
		{"exhausted", false, MaxTrials, false},
		{"sent", true, 1, false},
		{"sent on last trial", true, MaxTrials, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Attempt{Sent: tt.sent, Trials: tt.trials}
			assert.Equal(t, tt.want, a.Eligible())
			assert.Equal(t, !tt.want, a.Settled())
		})
	}
}

func TestAttempt_Record(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var a Attempt

	for i := 1; i <= MaxTrials; i++ {
		a.Record(false, now)
		assert.Equal(t, i, a.Trials)
		assert.False(t, a.Sent)
	}
	assert.True(t, a.Exhausted())
	assert.False(t, a.Eligible())
	assert.Equal(t, now, *a.LastTrialAt)

	var b Attempt
	b.Record(true, now)
	b.Record(false, now.Add(time.Minute))
	assert.True(t, b.Sent, "sent must never be cleared")
	assert.Equal(t, 2, b.Trials)
}
