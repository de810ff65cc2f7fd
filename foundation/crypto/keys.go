// Package crypto wraps the ECDSA and hashing primitives the tangle
// builds on: key generation/signing over secp256k1, and SHA3-256/base64
// hashing with the numeric ordering proof-of-work depends on.
package crypto

import (
	"crypto/ecdsa"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// verificationProbe is the fixed message a KeyPair signs and verifies
// against itself to confirm the public and private halves agree.
const verificationProbe = "VERIFY"

// AccountID is the string form of an account's public key hash.
type AccountID string

// InvalidKey is returned when key generation or validation fails.
type InvalidKey struct {
	Reason string
}

func (e *InvalidKey) Error() string {
	return fmt.Sprintf("invalid key: %s", e.Reason)
}

// PublicKey is an ECDSA public key.
type PublicKey = ecdsa.PublicKey

// PrivateKey is an ECDSA private key.
type PrivateKey = ecdsa.PrivateKey

// KeyPair bundles a private key with its public half.
type KeyPair struct {
	Private *PrivateKey
	Public  *PublicKey
}

// GenerateKeyPair creates a new secp256k1 key pair.
func GenerateKeyPair() (KeyPair, error) {
	pri, err := crypto.GenerateKey()
	if err != nil {
		return KeyPair{}, fmt.Errorf("generating key: %w", err)
	}

	return KeyPair{Private: pri, Public: &pri.PublicKey}, nil
}

// Validate returns true iff the pair's public and private halves agree:
// verify(pub, probe, sign(pri, probe)) holds.
func (kp KeyPair) Validate() bool {
	if kp.Private == nil || kp.Public == nil {
		return false
	}

	sig, err := Sign(kp.Private, []byte(verificationProbe))
	if err != nil {
		return false
	}

	return Verify(kp.Public, []byte(verificationProbe), sig)
}

// PublicKeyBytes returns the canonical uncompressed byte serialization
// of a public key.
func PublicKeyBytes(pub *PublicKey) []byte {
	return crypto.FromECDSAPub(pub)
}

// PublicKeyBase64 returns the canonical base64 form of a public key.
func PublicKeyBase64(pub *PublicKey) string {
	return base64.StdEncoding.EncodeToString(PublicKeyBytes(pub))
}

// PublicKeyFromBase64 reconstructs a public key from its base64 form.
func PublicKeyFromBase64(s string) (*PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}

	pub, err := crypto.UnmarshalPubkey(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling public key: %w", err)
	}

	return pub, nil
}

// PublicKeyFromBytes reconstructs a public key from its canonical
// uncompressed byte serialization.
func PublicKeyFromBytes(raw []byte) (*PublicKey, error) {
	pub, err := crypto.UnmarshalPubkey(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling public key: %w", err)
	}

	return pub, nil
}

// AccountIDFromPublicKey derives the account hash of a public key:
// hash(bytes(pub)).
func AccountIDFromPublicKey(pub *PublicKey) AccountID {
	return AccountID(Hash(PublicKeyBytes(pub)))
}

// Sign computes the ECDSA signature of a message under a private key.
// The message is hashed with SHA3-256 first since go-ethereum's ECDSA
// routines operate on a 32-byte digest.
func Sign(pri *PrivateKey, message []byte) ([]byte, error) {
	digest := SHA3(message)
	sig, err := crypto.Sign(digest[:], pri)
	if err != nil {
		return nil, fmt.Errorf("signing message: %w", err)
	}

	return sig, nil
}

// Verify checks an ECDSA signature of a message against a public key.
func Verify(pub *PublicKey, message []byte, signature []byte) bool {
	if len(signature) < 64 {
		return false
	}

	digest := SHA3(message)
	return crypto.VerifySignature(PublicKeyBytes(pub), digest[:], signature[:64])
}

// SignString signs the string form of a value, matching the teacher's
// convention of signing to_string(amount)-style payloads.
func SignString(pri *PrivateKey, message string) (string, error) {
	sig, err := Sign(pri, []byte(message))
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyString verifies a base64-encoded signature over a string message.
func VerifyString(pub *PublicKey, message string, signature string) bool {
	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	return Verify(pub, []byte(message), raw)
}

// errVerificationFailed is returned by callers that want a typed error
// instead of a bare bool from Verify.
var errVerificationFailed = errors.New("signature verification failed")

// VerifyOrError is a convenience wrapper returning an error instead of a bool.
func VerifyOrError(pub *PublicKey, message string, signature string) error {
	if !VerifyString(pub, message, signature) {
		return errVerificationFailed
	}

	return nil
}
