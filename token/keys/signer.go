package keys

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	minSecretLength = 32
	hmacKeyLength   = 32
	hkdfInfo        = "algelab access token signing key v1"
)

// ErrWeakSecret is returned when the configured secret is too short to derive
// a signing key from.
var ErrWeakSecret = errors.New("signing secret is too short")

// Signer is an interface for signing and verifying JWT tokens
type Signer interface {
	// Sign creates a signed JWT token from claims
	Sign(claims jwt.Claims) (string, error)

	// GetVerificationKey is a jwt.Keyfunc returning the key used to verify a token
	GetVerificationKey(token *jwt.Token) (any, error)

	// GetSigningMethod returns the JWT signing method used
	GetSigningMethod() jwt.SigningMethod
}

// HMACSigner implements Signer using HS256. The raw secret is never used as
// the key directly; a 256-bit key is derived from it with HKDF-SHA256.
type HMACSigner struct {
	key []byte
}

// NewHMACSigner derives a signing key from secret.
func NewHMACSigner(secret string) (*HMACSigner, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrWeakSecret, minSecretLength)
	}

	key := make([]byte, hmacKeyLength)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	return &HMACSigner{key: key}, nil
}

func (h *HMACSigner) Sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token with HMAC: %w", err)
	}
	return signed, nil
}

func (h *HMACSigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.key, nil
}

func (h *HMACSigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}

// KeyPairSigner signs with RS256 and publishes its public key as a JWKS.
type KeyPairSigner struct {
	keyPair *KeyPair
}

func NewKeyPairSigner(keyPair *KeyPair) *KeyPairSigner {
	return &KeyPairSigner{keyPair: keyPair}
}

func (a *KeyPairSigner) Sign(claims jwt.Claims) (string, error) {
	tok := jwt.NewWithClaims(a.keyPair.GetSigningMethod(), claims)
	tok.Header["kid"] = a.keyPair.KeyID

	signed, err := tok.SignedString(a.keyPair.Private)
	if err != nil {
		return "", fmt.Errorf("[KeyPairSigner Sign] %w", err)
	}
	return signed, nil
}

func (a *KeyPairSigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return a.keyPair.Public(), nil
}

func (a *KeyPairSigner) GetSigningMethod() jwt.SigningMethod {
	return a.keyPair.GetSigningMethod()
}

func (a *KeyPairSigner) GetJWKS() (*JWKS, error) {
	return &JWKS{Keys: []JWK{a.keyPair.ToJWK()}}, nil
}

// NewSigner picks the signer for the configured key material: RS256 when a PEM
// file is given, HS256 derived from secret otherwise.
func NewSigner(secret, pemFile, keyID string) (Signer, error) {
	if pemFile != "" {
		kp, err := LoadKeyPairFromPEMFile(keyID, pemFile)
		if err != nil {
			return nil, err
		}
		return NewKeyPairSigner(kp), nil
	}
	return NewHMACSigner(secret)
}
