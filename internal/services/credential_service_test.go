package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestCredentialIssuer_IssueVerify(t *testing.T) {
	iss, err := NewCredentialIssuer("secret", "farmmarket", 0)
	require.NoError(t, err)

	token, exp, err := iss.Issue("u1", testPhone, "user")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(7*24*time.Hour), exp, 5*time.Second)

	claims, err := iss.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "u1", claims.Subject)
	require.Equal(t, testPhone, claims.Mobile)
	require.Equal(t, "user", claims.Role)
	require.NotEmpty(t, claims.ID)
}

func TestCredentialIssuer_RequiresSecret(t *testing.T) {
	_, err := NewCredentialIssuer("", "farmmarket", time.Hour)
	require.ErrorIs(t, err, ErrMissingSigningSecret)
}

func TestCredentialIssuer_RejectsForeignSignature(t *testing.T) {
	a, _ := NewCredentialIssuer("secret-a", "farmmarket", time.Hour)
	b, _ := NewCredentialIssuer("secret-b", "farmmarket", time.Hour)

	token, _, err := a.Issue("u1", testPhone, "user")
	require.NoError(t, err)
	_, err = b.Verify(token)
	require.ErrorIs(t, err, ErrInvalidCredential)

	_, err = a.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestCredentialIssuer_Expired(t *testing.T) {
	ci, _ := NewCredentialIssuer("secret", "farmmarket", time.Hour)
	iss := ci.(*jwtIssuer)

	token, _, err := iss.Issue("u1", testPhone, "user")
	require.NoError(t, err)

	iss.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = iss.Verify(token)
	require.ErrorIs(t, err, ErrInvalidCredential)
	require.ErrorContains(t, err, "expired")
}

func TestCredentialIssuer_RejectsOtherAlgorithms(t *testing.T) {
	iss, _ := NewCredentialIssuer("secret", "farmmarket", time.Hour)

	claims := &Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "farmmarket",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = iss.Verify(token)
	require.ErrorIs(t, err, ErrInvalidCredential)
}
