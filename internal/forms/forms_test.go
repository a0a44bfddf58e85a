package forms

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidflow-dev/vidflow/internal/cli/client"
)

func TestValidator_Register(t *testing.T) {
	v := New()

	tests := []struct {
		name string
		req  client.RegisterRequest
		want Errors
	}{
		{
			name: "valid",
			req:  client.RegisterRequest{Email: "a@example.com", Password: "password123", ConfirmedPassword: "password123"},
		},
		{
			name: "everything missing",
			req:  client.RegisterRequest{},
			want: Errors{
				{Field: "email", Message: "This field is required."},
				{Field: "password", Message: "This field is required."},
				{Field: "confirmed_password", Message: "This field is required."},
			},
		},
		{
			name: "bad email and mismatch",
			req:  client.RegisterRequest{Email: "not-an-email", Password: "password123", ConfirmedPassword: "password124"},
			want: Errors{
				{Field: "email", Message: "Enter a valid email address."},
				{Field: "confirmed_password", Message: "Passwords do not match."},
			},
		},
		{
			name: "short password",
			req:  client.RegisterRequest{Email: "a@example.com", Password: "short", ConfirmedPassword: "short"},
			want: Errors{
				{Field: "password", Message: "Ensure this field has at least 8 characters."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}

			var got Errors
			require.True(t, errors.As(err, &got), "expected forms.Errors, got %T", err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrors_Helpers(t *testing.T) {
	errs := Errors{
		{Field: "email", Message: "This field is required."},
		{Field: "password", Message: "a"},
		{Field: "password", Message: "b"},
	}

	assert.Equal(t, map[string][]string{
		"email":    {"This field is required."},
		"password": {"a", "b"},
	}, errs.Map())
	assert.Equal(t, "a", errs.Field("password"))
	assert.Equal(t, "", errs.Field("missing"))
	assert.Equal(t, "email: This field is required.; password: a; password: b", errs.Error())
}

func TestTranslate_PassesOtherErrorsThrough(t *testing.T) {
	boom := errors.New("boom")
	assert.Same(t, boom, Translate(boom))
}
