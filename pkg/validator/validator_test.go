package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type subscriptionInput struct {
	URL      string `validate:"required,max=2000,callback_url"`
	Key      string `validate:"omitempty,min=8,max=255,signing_key"`
	VendorID int64  `validate:"gt=0"`
}

func TestValidate(t *testing.T) {
	v := New()

	tests := []struct {
		name   string
		input  subscriptionInput
		fields []string
	}{
		{"valid", subscriptionInput{URL: "https://shop.example.com/hooks", Key: "abcdefgh", VendorID: 1}, nil},
		{"valid without key", subscriptionInput{URL: "http://shop.example.com", VendorID: 1}, nil},
		{"missing url", subscriptionInput{VendorID: 1}, []string{"url"}},
		{"ftp url", subscriptionInput{URL: "ftp://shop.example.com", VendorID: 1}, []string{"url"}},
		{"relative url", subscriptionInput{URL: "/hooks", VendorID: 1}, []string{"url"}},
		{"credentials in url", subscriptionInput{URL: "https://u:p@shop.example.com", VendorID: 1}, []string{"url"}},
		{"short key", subscriptionInput{URL: "https://a.example", Key: "abc", VendorID: 1}, []string{"key"}},
		{"key with space", subscriptionInput{URL: "https://a.example", Key: "abc defgh", VendorID: 1}, []string{"key"}},
		{"zero vendor", subscriptionInput{URL: "https://a.example"}, []string{"vendor_id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			got := make([]string, 0, len(verrs))
			for _, e := range verrs {
				got = append(got, e.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{{Field: "url", Message: "is required"}, {Field: "key", Message: "bad"}}
	assert.Equal(t, "url: is required; key: bad", errs.Error())
	assert.Empty(t, ValidationErrors{}.Error())
}
