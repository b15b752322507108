// Package authpw derives and verifies the admin password credential.
package authpw

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"lexshelf/api/internal/library"
)

const (
	Iterations        = 100000
	SaltSize          = 16
	KeySize           = 32
	MinPasswordLength = 6
)

// Derive runs PBKDF2-HMAC-SHA256 over password with salt.
func Derive(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, Iterations, KeySize, sha256.New)
}

// NewCredential hashes password under a fresh random salt.
func NewCredential(password string) (library.Credential, error) {
	if len([]rune(password)) < MinPasswordLength {
		return library.Credential{}, fmt.Errorf("%w: password must be at least %d characters", library.ErrInvalidInput, MinPasswordLength)
	}
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return library.Credential{}, fmt.Errorf("generate salt: %w", err)
	}
	return library.Credential{
		Hash: base64.StdEncoding.EncodeToString(Derive(password, salt)),
		Salt: base64.StdEncoding.EncodeToString(salt),
	}, nil
}

// Verify reports whether password matches cred. A nil or malformed
// credential never matches.
func Verify(cred *library.Credential, password string) bool {
	if cred == nil {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(cred.Salt)
	if err != nil || len(salt) == 0 {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(cred.Hash)
	if err != nil || len(want) == 0 {
		return false
	}
	got := Derive(password, salt)
	return subtle.ConstantTimeCompare(got, want) == 1
}
