package neartx

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
)

const ed25519Prefix = "ed25519:"

// KeyPair holds a NEAR ed25519 signing key and its derived public key.
type KeyPair struct {
	AccountID  string
	PrivateKey ed25519.PrivateKey
}

// ParseKeyPair decodes a NEAR secret key of the form "ed25519:<base58>".
// The base58 payload is the 64-byte expanded key (seed + public key).
func ParseKeyPair(accountID, secretKey string) (KeyPair, error) {
	if strings.TrimSpace(accountID) == "" {
		return KeyPair{}, clierr.New(clierr.CodeAuth, "signing account id is empty")
	}
	trimmed := strings.TrimSpace(secretKey)
	if !strings.HasPrefix(trimmed, ed25519Prefix) {
		return KeyPair{}, clierr.New(clierr.CodeAuth, "secret key must start with \"ed25519:\"")
	}
	decoded := base58.Decode(strings.TrimPrefix(trimmed, ed25519Prefix))
	switch len(decoded) {
	case ed25519.PrivateKeySize:
		return KeyPair{AccountID: accountID, PrivateKey: ed25519.PrivateKey(decoded)}, nil
	case ed25519.SeedSize:
		return KeyPair{AccountID: accountID, PrivateKey: ed25519.NewKeyFromSeed(decoded)}, nil
	default:
		return KeyPair{}, clierr.New(clierr.CodeAuth, fmt.Sprintf("secret key decodes to %d bytes, want %d or %d", len(decoded), ed25519.PrivateKeySize, ed25519.SeedSize))
	}
}

// PublicKey returns the raw 32-byte public key.
func (k KeyPair) PublicKey() []byte {
	return k.PrivateKey.Public().(ed25519.PublicKey)
}

// PublicKeyString renders the public key in NEAR's "ed25519:<base58>" form,
// as used in view_access_key queries.
func (k KeyPair) PublicKeyString() string {
	return ed25519Prefix + base58.Encode(k.PublicKey())
}
