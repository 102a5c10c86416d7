// Package random provides cryptographic seed generation helpers.
//
// It uses crypto/rand to generate high-entropy seeds suitable for
// initializing pseudo-random number generators in deterministic systems.
// The ghost-segment draw in the session engine is seeded this way in
// production and replaced with a fixed source in tests.
package random

import (
	crand "crypto/rand"
	"encoding/binary"

	apperrors "github.com/gravemark/ink/internal/platform/errors"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeSeedUnavailable, "read random seed", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
