package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const keySize = 32

// ErrBadSignature is returned when a signed value fails verification.
var ErrBadSignature = errors.New("invalid signature")

// GenerateKey returns 32 cryptographically secure random bytes.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return key, nil
}

// DeriveKey derives a 32-byte purpose-bound key from secret using
// HKDF-SHA256. The same secret and context always yield the same key.
func DeriveKey(secret []byte, context string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("deriving key: empty secret")
	}
	key := make([]byte, keySize)
	r := hkdf.New(sha256.New, secret, nil, []byte(context))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}

// Sign returns the URL-safe base64 HMAC-SHA256 of msg under key.
func Sign(key []byte, msg string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks sig against msg in constant time.
func Verify(key []byte, msg, sig string) error {
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrBadSignature
	}
	return nil
}
