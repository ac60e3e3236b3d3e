package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_IssueAndVerify(t *testing.T) {
	m, err := NewManager("test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	token, expires, err := m.Issue("user-1", RoleUser)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, RoleUser, claims.Role)
	assert.False(t, claims.IsAdmin())
}

func TestManager_RejectsForeignSecret(t *testing.T) {
	a, _ := NewManager("secret-a-0123456789", time.Hour)
	b, _ := NewManager("secret-b-0123456789", time.Hour)

	token, _, err := a.Issue("admin-1", RoleAdmin)
	require.NoError(t, err)

	_, err = b.Verify(token)
	assert.Error(t, err)
}

func TestManager_RejectsExpired(t *testing.T) {
	m, _ := NewManager("test-secret-0123456789", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := m.Issue("user-1", RoleUser)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestManager_RejectsNoneAlgorithm(t *testing.T) {
	m, _ := NewManager("test-secret-0123456789", time.Hour)
	claims := &Claims{UserID: "x", Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(unsigned)
	assert.Error(t, err)
}

func TestManager_IssueValidation(t *testing.T) {
	m, _ := NewManager("test-secret-0123456789", time.Hour)
	_, _, err := m.Issue("", RoleUser)
	assert.Error(t, err)
	_, _, err = m.Issue("u", "root")
	assert.Error(t, err)

	_, err = NewManager(" ", time.Hour)
	assert.Error(t, err)
}
