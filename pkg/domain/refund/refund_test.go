package refund

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCard_Masked(t *testing.T) {
	assert.Equal(t, "**** **** ***** 4242", Card{LastFour: "4242"}.Masked())
	assert.Empty(t, Card{}.Masked())
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusProcessed.Succeeded())
	assert.False(t, StatusFailed.Succeeded())
	assert.True(t, StatusRejected.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
}

func TestDetails_HasPartnerCallback(t *testing.T) {
	assert.False(t, (&Details{}).HasPartnerCallback())
	assert.False(t, (&Details{Notification: &Notification{RedirectURL: "https://shop.example/done"}}).HasPartnerCallback())
	assert.True(t, (&Details{Notification: &Notification{WebhookURL: "https://partner.example/hooks"}}).HasPartnerCallback())
}
