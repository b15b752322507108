package util

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// NewID returns a time-ordered identifier. UUIDv7 values generated by one
// process are strictly increasing, so ids sort in creation order.
func NewID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		return randomID(prefix)
	}
	value := strings.ReplaceAll(id.String(), "-", "")
	if prefix == "" {
		return value
	}
	return prefix + value
}

func randomID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return prefix + hex.EncodeToString(bytes)
}
