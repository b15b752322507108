package authpw

import (
	"encoding/base64"
	"errors"
	"testing"

	"lexshelf/api/internal/library"
)

func TestNewCredentialAndVerify(t *testing.T) {
	cred, err := NewCredential("secret1")
	if err != nil {
		t.Fatalf("NewCredential() error = %v", err)
	}
	salt, err := base64.StdEncoding.DecodeString(cred.Salt)
	if err != nil || len(salt) != SaltSize {
		t.Fatalf("salt = %q (%d bytes), err = %v", cred.Salt, len(salt), err)
	}
	hash, err := base64.StdEncoding.DecodeString(cred.Hash)
	if err != nil || len(hash) != KeySize {
		t.Fatalf("hash = %q (%d bytes), err = %v", cred.Hash, len(hash), err)
	}
	if !Verify(&cred, "secret1") {
		t.Fatal("expected password to verify")
	}
	if Verify(&cred, "secret2") {
		t.Fatal("expected wrong password to fail")
	}
}

func TestNewCredentialUsesFreshSalt(t *testing.T) {
	a, err := NewCredential("same-password")
	if err != nil {
		t.Fatalf("NewCredential() error = %v", err)
	}
	b, err := NewCredential("same-password")
	if err != nil {
		t.Fatalf("NewCredential() error = %v", err)
	}
	if a.Salt == b.Salt || a.Hash == b.Hash {
		t.Fatal("expected distinct salt and hash for repeated passwords")
	}
}

func TestNewCredentialRejectsShortPassword(t *testing.T) {
	_, err := NewCredential("12345")
	if !errors.Is(err, library.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestVerifyWithoutCredential(t *testing.T) {
	if Verify(nil, "anything") {
		t.Fatal("expected nil credential to reject")
	}
	if Verify(&library.Credential{Hash: "!!", Salt: "!!"}, "anything") {
		t.Fatal("expected malformed credential to reject")
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	if string(Derive("pw", salt)) != string(Derive("pw", salt)) {
		t.Fatal("expected same output for same input")
	}
}
