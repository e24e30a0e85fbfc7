package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(key))
	}
	key2, _ := GenerateKey()
	if bytes.Equal(key, key2) {
		t.Error("two keys should not be equal")
	}
}

func TestDeriveKey(t *testing.T) {
	secret := []byte("change-me")
	k1, err := DeriveKey(secret, "session-cookie-v1")
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if len(k1) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(k1))
	}
	k2, _ := DeriveKey(secret, "session-cookie-v1")
	if !bytes.Equal(k1, k2) {
		t.Error("derivation should be deterministic")
	}
	k3, _ := DeriveKey(secret, "session-cookie-v2")
	if bytes.Equal(k1, k3) {
		t.Error("different contexts should yield different keys")
	}
	if _, err := DeriveKey(nil, "x"); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestSignVerify(t *testing.T) {
	key, _ := GenerateKey()
	sig := Sign(key, "alice|1700000000")

	if err := Verify(key, "alice|1700000000", sig); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if err := Verify(key, "mallory|1700000000", sig); !errors.Is(err, ErrBadSignature) {
		t.Errorf("tampered message: expected ErrBadSignature, got %v", err)
	}
	other, _ := GenerateKey()
	if err := Verify(other, "alice|1700000000", sig); !errors.Is(err, ErrBadSignature) {
		t.Errorf("wrong key: expected ErrBadSignature, got %v", err)
	}
	if err := Verify(key, "alice|1700000000", "!!not base64!!"); !errors.Is(err, ErrBadSignature) {
		t.Errorf("garbage signature: expected ErrBadSignature, got %v", err)
	}
}
