package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/domain/webhook"
	"github.com/refundly/webhooks/pkg/logger"
)

func TestVendorService_CreateRegistersQueue(t *testing.T) {
	registrar, broker, consumers := newTestRegistrar()
	svc := NewVendorService(newMemoryVendors(), registrar, logger.NewNop())

	v, err := svc.Create(context.Background(), CreateVendorInput{Name: "Acme Shoes"})
	require.NoError(t, err)
	assert.NotZero(t, v.ID())
	assert.Equal(t, "Acme Shoes", v.Name())

	assert.Equal(t, []string{webhook.VendorQueue(v.ID())}, broker.declared)
	assert.Contains(t, consumers.handlers, webhook.VendorQueue(v.ID()))

	got, err := svc.Get(context.Background(), v.ID())
	require.NoError(t, err)
	assert.Equal(t, v.ID(), got.ID())
}

func TestVendorService_CreateValidation(t *testing.T) {
	registrar, broker, _ := newTestRegistrar()
	svc := NewVendorService(newMemoryVendors(), registrar, logger.NewNop())

	_, err := svc.Create(context.Background(), CreateVendorInput{})
	assert.Error(t, err)
	assert.Empty(t, broker.declared)
}

func TestVendorService_CreateKeepsVendorWhenRegistrationFails(t *testing.T) {
	registrar, _, consumers := newTestRegistrar()
	consumers.err = errStore
	vendors := newMemoryVendors()
	svc := NewVendorService(vendors, registrar, logger.NewNop())

	v, err := svc.Create(context.Background(), CreateVendorInput{Name: "Acme"})
	assert.ErrorIs(t, err, errStore)
	require.NotNil(t, v)

	ids, err := vendors.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []shared.ID{v.ID()}, ids)
}
