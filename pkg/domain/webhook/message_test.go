package webhook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVendorQueue(t *testing.T) {
	assert.Equal(t, "webhook-vendor-17", VendorQueue(17))
	assert.Equal(t, "refund-webhook-vendor", PartnerQueue)
}

func TestEncodeMessages(t *testing.T) {
	bodies, err := EncodeMessages(VariantVendor, []ID{1, 2})
	require.NoError(t, err)
	require.Len(t, bodies, 2)
	assert.JSONEq(t, `{"webhookEventId":1}`, string(bodies[0]))
	assert.JSONEq(t, `{"webhookEventId":2}`, string(bodies[1]))

	bodies, err = EncodeMessages(VariantPartner, []ID{9})
	require.NoError(t, err)
	assert.JSONEq(t, `{"refundWebhookEventId":9}`, string(bodies[0]))
}

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name    string
		variant Variant
		body    string
		want    ID
		wantErr bool
	}{
		{"vendor ok", VariantVendor, `{"webhookEventId":5}`, 5, false},
		{"partner ok", VariantPartner, `{"refundWebhookEventId":6}`, 6, false},
		{"not json", VariantVendor, `not-json`, 0, true},
		{"empty object", VariantVendor, `{}`, 0, true},
		{"wrong field for variant", VariantPartner, `{"webhookEventId":5}`, 0, true},
		{"zero id", VariantVendor, `{"webhookEventId":0}`, 0, true},
		{"string id", VariantVendor, `{"webhookEventId":"5"}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMessage(tt.variant, []byte(tt.body))
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrMalformedMessage))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVendorQueue(t *testing.T) {
	id, ok := ParseVendorQueue(VendorQueue(17))
	assert.True(t, ok)
	assert.Equal(t, ID(17), id)

	for _, name := range []string{PartnerQueue, "webhook-vendor-", "webhook-vendor-abc", "webhook-vendor-0", "default"} {
		_, ok := ParseVendorQueue(name)
		assert.False(t, ok, name)
	}
}
