package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refundly/webhooks/pkg/domain/webhook"
	"github.com/refundly/webhooks/pkg/logger"
)

func newTestRegistrar() (*QueueRegistrar, *fakeBroker, *fakeConsumers) {
	subs := newMemorySubscriptions()
	delivery := NewDeliveryService(newMemoryEvents(subs), newMemoryRefundEvents(), subs, newMemoryRefunds(), nil, logger.NewNop())
	broker := newFakeBroker()
	consumers := newFakeConsumers()
	return NewQueueRegistrar(broker, consumers, delivery, logger.NewNop()), broker, consumers
}

func TestQueueRegistrar_RegisterVendorIsIdempotent(t *testing.T) {
	r, broker, consumers := newTestRegistrar()
	ctx := context.Background()

	require.NoError(t, r.RegisterVendor(ctx, 7))
	require.NoError(t, r.RegisterVendor(ctx, 7))

	assert.Equal(t, []string{webhook.VendorQueue(7)}, broker.declared)
	assert.Equal(t, 1, consumers.calls)
	assert.Contains(t, consumers.handlers, webhook.VendorQueue(7))
}

func TestQueueRegistrar_RegisterVendorRejectsZero(t *testing.T) {
	r, broker, _ := newTestRegistrar()

	assert.Error(t, r.RegisterVendor(context.Background(), 0))
	assert.Empty(t, broker.declared)
}

func TestQueueRegistrar_ConsumerFailureIsRetried(t *testing.T) {
	r, _, consumers := newTestRegistrar()
	consumers.err = errStore

	assert.ErrorIs(t, r.RegisterVendor(context.Background(), 7), errStore)

	consumers.err = nil
	require.NoError(t, r.RegisterVendor(context.Background(), 7))
	assert.Equal(t, 2, consumers.calls)
}

func TestQueueRegistrar_Restore(t *testing.T) {
	r, broker, consumers := newTestRegistrar()
	vendors := newMemoryVendors(1, 2)
	declared := staticQueues{webhook.VendorQueue(2), webhook.VendorQueue(9), webhook.PartnerQueue, "unrelated"}

	n, err := r.Restore(context.Background(), vendors, declared)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.ElementsMatch(t, []string{
		webhook.PartnerQueue,
		webhook.VendorQueue(1),
		webhook.VendorQueue(2),
		webhook.VendorQueue(9),
	}, broker.declared)
	assert.Len(t, consumers.handlers, 4)
}
