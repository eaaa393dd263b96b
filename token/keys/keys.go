package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm names as they appear in token headers and JWKs.
const (
	HS256 = "HS256"
	RS256 = "RS256"
)

const minRSABits = 2048

// KeyPair is an RSA signing key and the id published with it.
type KeyPair struct {
	KeyID   string
	Private *rsa.PrivateKey
}

type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK is the public half of an RS256 key.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// GenerateRSAKeyPair creates a fresh key. Sizes below 2048 bits are raised.
func GenerateRSAKeyPair(keyID string, bits int) (*KeyPair, error) {
	if bits < minRSABits {
		bits = minRSABits
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("[keys GenerateRSAKeyPair] %w", err)
	}
	return &KeyPair{KeyID: keyID, Private: priv}, nil
}

func (kp *KeyPair) Public() *rsa.PublicKey {
	return &kp.Private.PublicKey
}

func (kp *KeyPair) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodRS256
}

// PrivateKeyPEM encodes the private key as a PKCS#8 PEM block, the format
// SIGNING_KEY_PEM_FILE is expected to hold.
func (kp *KeyPair) PrivateKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(kp.Private)
	if err != nil {
		return nil, fmt.Errorf("[keys PrivateKeyPEM] %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

func (kp *KeyPair) ToJWK() JWK {
	pub := kp.Public()
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Kid: kp.KeyID,
		Alg: RS256,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// ParseRSAPrivateKeyPEM accepts PKCS#1 ("RSA PRIVATE KEY") and PKCS#8
// ("PRIVATE KEY") blocks.
func ParseRSAPrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("[keys ParseRSAPrivateKeyPEM] no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("[keys ParseRSAPrivateKeyPEM] %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("[keys ParseRSAPrivateKeyPEM] key is %T, not RSA", parsed)
	}
	return key, nil
}

// LoadKeyPairFromPEMFile reads the signing key from disk and rejects keys
// shorter than 2048 bits.
func LoadKeyPairFromPEMFile(keyID, path string) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[keys LoadKeyPairFromPEMFile] %w", err)
	}
	priv, err := ParseRSAPrivateKeyPEM(data)
	if err != nil {
		return nil, err
	}
	if n := priv.N.BitLen(); n < minRSABits {
		return nil, fmt.Errorf("[keys LoadKeyPairFromPEMFile] RSA key has %d bits, need %d", n, minRSABits)
	}
	return &KeyPair{KeyID: keyID, Private: priv}, nil
}
