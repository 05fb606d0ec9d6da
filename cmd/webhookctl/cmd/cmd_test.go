package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/jwt"
	"github.com/refundly/webhooks/pkg/signature"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() {
		stdout = prev
		rootCmd.SetIn(nil)
	})

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestSign_File(t *testing.T) {
	body := []byte(`{"id":"12","type":"refund_status_updated"}`)
	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	out, err := execute(t, "sign", "s3cret", path, "-o", "table")
	require.NoError(t, err)
	assert.Equal(t, signature.Sign("s3cret", body)+"\n", out)
}

func TestSign_StdinJSON(t *testing.T) {
	rootCmd.SetIn(strings.NewReader("{}"))

	out, err := execute(t, "sign", "key", "-", "-o", "json")
	require.NoError(t, err)

	var got signedPayload
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, signature.Header, got.Header)
	assert.Equal(t, 2, got.Bytes)
	assert.True(t, signature.Verify("key", []byte("{}"), got.Signature))
}

func TestSign_MissingFile(t *testing.T) {
	_, err := execute(t, "sign", "key", filepath.Join(t.TempDir(), "missing.json"), "-o", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read payload")
}

func TestTokenIssue(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret-with-enough-entropy")
	t.Setenv("AUTH_JWT_ISSUER", "webhookctl-test")

	out, err := execute(t, "token", "issue", "--vendor", "7", "--role", "vendor", "-o", "json")
	require.NoError(t, err)

	var got issuedToken
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, int64(7), got.VendorID)
	assert.Equal(t, "vendor", got.Role)

	gen := jwt.NewGenerator(jwt.TokenConfig{Secret: "test-secret-with-enough-entropy", Issuer: "webhookctl-test"})
	claims, err := gen.Validate(got.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.VendorID)
	assert.Equal(t, jwt.RoleVendor, claims.Role)
}

func TestTokenIssue_VendorRoleNeedsVendor(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret-with-enough-entropy")

	_, err := execute(t, "token", "issue", "--vendor", "0", "--role", "vendor", "-o", "table")
	assert.ErrorIs(t, err, jwt.ErrEmptyVendorID)
}

func TestTokenIssue_InternalWithoutVendor(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret-with-enough-entropy")

	out, err := execute(t, "token", "issue", "--vendor", "0", "--role", "internal", "-o", "table")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(strings.TrimSpace(out), ".")+1)
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := execute(t, "version", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestNotify_InvalidIDs(t *testing.T) {
	_, err := execute(t, "notify", "vendor", "abc", "1", "-o", "table")
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = execute(t, "notify", "partner", "0", "-o", "table")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestEventsList_InvalidFlags(t *testing.T) {
	_, err := execute(t, "events", "list", "--vendor", "-3", "--sent", "", "-o", "table")
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = execute(t, "events", "list", "--vendor", "0", "--sent", "maybe", "-o", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--sent")
}

func TestQueuesForget_RejectsNonVendorQueue(t *testing.T) {
	_, err := execute(t, "queues", "forget", "refund-webhook-vendor", "-o", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a vendor queue")
}
