package jwt_test

import (
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/algelab-auth/token/jwt"
	"github.com/jrsteele09/algelab-auth/token/keys"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testIssuer = "algelab"
	leeway     = 30 * time.Second
)

func setup(t *testing.T, now *time.Time) (*jwt.Creator, *jwt.Inspector, keys.Signer) {
	t.Helper()
	signer, err := keys.NewHMACSigner(testSecret)
	require.NoError(t, err)
	nowFunc := func() time.Time { return *now }
	return jwt.NewCreator(signer, testIssuer, 30*time.Minute, nowFunc),
		jwt.NewInspector(signer, testIssuer, leeway, nowFunc),
		signer
}

func TestCreateAndValidate(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	creator, inspector, _ := setup(t, &now)

	raw, issued, err := creator.CreateAccessToken("github_42")
	require.NoError(t, err)
	require.True(t, now.Add(30*time.Minute).Equal(issued.ExpiresAtTime()))

	claims, err := inspector.Validate(raw)
	require.NoError(t, err)
	require.Equal(t, "github_42", claims.UserID())
	require.Equal(t, jwt.TokenTypeAccess, claims.TokenType)
	require.Equal(t, testIssuer, claims.Issuer)
	require.NotEmpty(t, claims.ID)
}

func TestExpiryBoundary(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	creator, inspector, _ := setup(t, &now)

	raw, _, err := creator.CreateAccessToken("github_42")
	require.NoError(t, err)

	now = now.Add(30*time.Minute + leeway - time.Second)
	_, err = inspector.Validate(raw)
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = inspector.Validate(raw)
	require.ErrorIs(t, err, jwt.ErrExpired)
}

func TestValidateRejections(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	creator, inspector, signer := setup(t, &now)

	raw, _, err := creator.CreateAccessToken("github_42")
	require.NoError(t, err)

	_, err = inspector.Validate("")
	require.ErrorIs(t, err, jwt.ErrMalformed)
	_, err = inspector.Validate("not.a.jwt")
	require.ErrorIs(t, err, jwt.ErrMalformed)

	// Flip one character of the signature.
	parts := strings.Split(raw, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	_, err = inspector.Validate(parts[0] + "." + parts[1] + "." + string(sig))
	require.ErrorIs(t, err, jwt.ErrBadSignature)

	other, err := keys.NewHMACSigner(testSecret + "-rotated")
	require.NoError(t, err)
	foreign, _, err := jwt.NewCreator(other, testIssuer, time.Minute, func() time.Time { return now }).CreateAccessToken("github_42")
	require.NoError(t, err)
	_, err = inspector.Validate(foreign)
	require.ErrorIs(t, err, jwt.ErrBadSignature)

	wrongType, err := signer.Sign(&jwt.AccessClaims{
		TokenType: "refresh",
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "github_42",
			ExpiresAt: jwtlib.NewNumericDate(now.Add(time.Minute)),
		},
	})
	require.NoError(t, err)
	_, err = inspector.Validate(wrongType)
	require.ErrorIs(t, err, jwt.ErrMalformed)

	noExpiry, err := signer.Sign(&jwt.AccessClaims{
		TokenType:        jwt.TokenTypeAccess,
		RegisteredClaims: jwtlib.RegisteredClaims{Issuer: testIssuer, Subject: "github_42"},
	})
	require.NoError(t, err)
	_, err = inspector.Validate(noExpiry)
	require.ErrorIs(t, err, jwt.ErrMalformed)
}

func TestCreateRequiresSubject(t *testing.T) {
	now := time.Now()
	creator, _, _ := setup(t, &now)
	_, _, err := creator.CreateAccessToken(" ")
	require.Error(t, err)
}
