// Package id generates compact, URL-safe record identifiers.
//
// IDs are UUIDv4 payloads encoded as lowercase unpadded base32, which keeps
// them copy-paste friendly in URLs and log lines while preserving the full
// 128 bits of randomness.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a new 26-character lowercase base32 identifier.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}
