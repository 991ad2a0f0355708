package auth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/jredh-dev/ewaste/pkg/models"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrDuplicateEmail, "This email is already registered."},
		{ErrInvalidEmail, "Invalid email address."},
		{ErrWeakPassword, "Password should be at least 6 characters."},
		{ErrNotFound, "No account found with this email."},
		{ErrWrongPassword, "Incorrect password."},
		{fmt.Errorf("wrapped: %w", ErrWrongPassword), "Incorrect password."},
		{errors.New("boom"), "An error occurred. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err))
		})
	}
}

func TestMapToolkitError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"EMAIL_NOT_FOUND", ErrNotFound},
		{"INVALID_PASSWORD", ErrWrongPassword},
		{"INVALID_LOGIN_CREDENTIALS", ErrInvalidCredentials},
		{"INVALID_EMAIL", ErrInvalidEmail},
		{"WEAK_PASSWORD : Password should be at least 6 characters", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := mapToolkitError(&googleapi.Error{Code: 400, Message: tt.msg})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	other := mapToolkitError(&googleapi.Error{Code: 500, Message: "INTERNAL"})
	assert.False(t, IsIdentityError(other))

	plain := errors.New("dial tcp: timeout")
	assert.ErrorIs(t, mapToolkitError(plain), plain)
}

func TestRoleFromClaims(t *testing.T) {
	assert.Equal(t, models.RoleCompany, roleFromClaims(map[string]interface{}{"role": "company"}))
	assert.Equal(t, models.RoleNone, roleFromClaims(map[string]interface{}{"role": "admin"}))
	assert.Equal(t, models.RoleNone, roleFromClaims(nil))
}
