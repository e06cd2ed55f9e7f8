package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskboard/internal/auth"
)

func TestJWT_IssueAndValidateRoundTrip(t *testing.T) {
	t.Parallel()

	secret := "test-secret-key-very-long-and-secure"
	userID := uuid.New()

	token, err := auth.IssueAccessToken(secret, userID, "admin", 5*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := auth.ValidateToken(secret, token)
	require.NoError(t, err)
	require.NotNil(t, claims)

	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "taskboard", claims.Issuer)
	assert.NotNil(t, claims.IssuedAt)
	assert.NotNil(t, claims.ExpiresAt)
}

func TestJWT_Rejected(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	expired, err := auth.IssueAccessToken("secret", userID, "member", -1*time.Second)
	require.NoError(t, err)

	signedElsewhere, err := auth.IssueAccessToken("correct-secret", userID, "member", 5*time.Minute)
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		UserID: userID.String(),
	})
	foreignToken, err := foreign.SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{name: "expired", secret: "secret", token: expired},
		{name: "wrong secret", secret: "wrong-secret", token: signedElsewhere},
		{name: "foreign issuer", secret: "secret", token: foreignToken},
		{name: "malformed", secret: "secret", token: "not.a.valid.jwt.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			claims, err := auth.ValidateToken(tt.secret, tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}
