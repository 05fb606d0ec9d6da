package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/domain/webhook"
)

func TestEventService_List(t *testing.T) {
	subs := newMemorySubscriptions()
	events := newMemoryEvents(subs)
	a := subs.add(1, "https://a.example", testKey)
	b := subs.add(2, "https://b.example", testKey)

	e1 := events.put(webhook.NewEvent(10, a.ID()))
	sent := webhook.NewEvent(11, a.ID())
	sent.Sent, sent.Trials = true, 1
	e2 := events.put(sent)
	events.put(webhook.NewEvent(12, b.ID()))

	svc := NewEventService(events)
	vendor := shared.ID(1)

	got, err := svc.List(context.Background(), ListEventsInput{VendorID: &vendor})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, e2.ID, got[0].ID)
	assert.Equal(t, e1.ID, got[1].ID)

	unsent := false
	got, err = svc.List(context.Background(), ListEventsInput{VendorID: &vendor, Sent: &unsent})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e1.ID, got[0].ID)

	got, err = svc.List(context.Background(), ListEventsInput{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
