package crypto

import (
	"crypto/rand"
	"encoding/binary"
)

// Word32 returns a cryptographically random 32-bit word, mirroring the
// CSPRNG collaborator described in §6.1 (GenerateWord32 in the original).
func Word32() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand.Read on a supported platform does not fail in
		// practice; a zero word is an acceptable degraded fallback
		// for nonce seeding, which only needs to avoid collisions.
		return 0
	}

	return binary.BigEndian.Uint32(buf[:])
}
