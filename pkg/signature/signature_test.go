package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_KnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	got := Sign("Jefe", []byte("what do ya want for nothing?"))
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", got)
}

func TestVerify(t *testing.T) {
	body := []byte(`{"refundId":1,"success":true}`)
	sig := Sign("abc", body)

	assert.True(t, Verify("abc", body, sig))
	assert.False(t, Verify("abd", body, sig))
	assert.False(t, Verify("abc", []byte(`{"refundId":1,"success":false}`), sig))
	assert.False(t, Verify("abc", body, "zz-not-hex"))
}
