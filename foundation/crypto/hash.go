package crypto

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// InvalidHash is the sentinel value marking an unset hash.
const InvalidHash = "Invalid"

// base64Alphabet gives the total order used to compare hashes as if they
// were numbers: '+' is smallest, then '0'-'9', then 'a'-'z', then
// 'A'-'Z', with '/' the largest. This is NOT the natural codepoint order
// of the base64 alphabet and must be reproduced exactly, since
// proof-of-work target comparisons depend on it.
var base64Alphabet = func() map[byte]int {
	order := "+0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ/"
	m := make(map[byte]int, len(order))
	for i := 0; i < len(order); i++ {
		m[order[i]] = i
	}
	return m
}()

// ErrInvalidBase64Char is returned by CompareBase64Numeric when a byte
// outside the base64 alphabet {A-Za-z0-9+/} is encountered.
type ErrInvalidBase64Char struct {
	Char byte
}

func (e ErrInvalidBase64Char) Error() string {
	return fmt.Sprintf("byte %q is not a valid base64 alphabet character", e.Char)
}

// SHA3 returns the SHA3-256 digest of data.
func SHA3(data []byte) [32]byte {
	return sha3.Sum256(data)
}

// Hash returns the base64 encoding of the SHA3-256 digest of data, with
// newlines stripped. Equality of hashes is plain string equality.
func Hash(data []byte) string {
	digest := SHA3(data)
	encoded := base64.StdEncoding.EncodeToString(digest[:])
	return strings.ReplaceAll(encoded, "\n", "")
}

// HashString is a convenience wrapper over Hash for string inputs.
func HashString(s string) string {
	return Hash([]byte(s))
}

// CompareBase64Numeric compares two base64-alphabet strings as if they
// were numbers in the custom total order described above: longer
// strings are greater; same-length strings compare left to right by
// per-character rank. It returns <0, 0, or >0 the way strings.Compare
// does. Encountering a byte outside the base64 alphabet is fatal,
// reported via the returned error.
func CompareBase64Numeric(a, b string) (int, error) {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1, nil
		}
		return 1, nil
	}

	for i := 0; i < len(a); i++ {
		ra, ok := base64Alphabet[a[i]]
		if !ok {
			return 0, ErrInvalidBase64Char{Char: a[i]}
		}
		rb, ok := base64Alphabet[b[i]]
		if !ok {
			return 0, ErrInvalidBase64Char{Char: b[i]}
		}

		if ra != rb {
			if ra < rb {
				return -1, nil
			}
			return 1, nil
		}
	}

	return 0, nil
}
