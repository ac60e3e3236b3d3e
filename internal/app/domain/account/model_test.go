package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMobile(t *testing.T) {
	tests := []struct {
		mobile string
		ok     bool
	}{
		{"9876543210", true},
		{"987654321", false},
		{"98765432100", false},
		{"98765x3210", false},
		{"９８７６５４３２１０", false},
		{"", false},
	}
	for _, tt := range tests {
		err := ValidateMobile(tt.mobile)
		if tt.ok {
			assert.NoError(t, err, tt.mobile)
		} else {
			assert.ErrorIs(t, err, ErrInvalidMobile, tt.mobile)
		}
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, CheckPassword(hash, "secret1"))
	assert.False(t, CheckPassword(hash, "secret2"))
	assert.False(t, CheckPassword("", "secret1"))
}

func TestUserAvailableAndProfile(t *testing.T) {
	u := User{ID: "u1", Name: "Asha", Mobile: "9876543210", PasswordHash: "h", WalletBalance: 500.10, ReservedBalance: 100.05}
	assert.Equal(t, 400.05, u.Available())

	p := u.Profile()
	assert.Equal(t, Profile{ID: "u1", Name: "Asha", Mobile: "9876543210", WalletBalance: 500.10}, p)
}
