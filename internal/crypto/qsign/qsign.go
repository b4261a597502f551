// Package qsign provides lattice-based (Dilithium) signatures for
// transfer authorization, plus address derivation.
//
// All keys and signatures cross the package boundary as base64
// (std encoding) strings; addresses are "qvr" + hex(sha256(pk)).
// Every decode or verification failure fails closed.
package qsign

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode2"

	"github.com/qverse/engine/internal/core/domain"
)

var (
	// ErrBadEncoding is returned when a key or signature cannot be decoded.
	ErrBadEncoding = fmt.Errorf("%w: bad encoding", domain.ErrCrypto)
	// ErrVerificationFailed is returned by SignTransfer helpers when a
	// signature does not validate.
	ErrVerificationFailed = fmt.Errorf("%w: verification failed", domain.ErrCrypto)
)

// AddressPrefix marks engine-native addresses.
const AddressPrefix = "qvr"

// GenerateKeys produces a fresh Dilithium keypair. The secret half must be
// handed to the caller and never persisted.
func GenerateKeys() (publicKey, secretKey string, err error) {
	pk, sk, err := mode2.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("%w: keypair generation: %v", domain.ErrCrypto, err)
	}
	pkBytes, err := pk.MarshalBinary()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", domain.ErrCrypto, err)
	}
	skBytes, err := sk.MarshalBinary()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", domain.ErrCrypto, err)
	}
	return base64.StdEncoding.EncodeToString(pkBytes),
		base64.StdEncoding.EncodeToString(skBytes), nil
}

// DeriveAddress maps a public key to its wallet address. The mapping is
// deterministic and one-way (SHA-256), so the key cannot be recovered.
func DeriveAddress(publicKey string) (string, error) {
	pkBytes, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		return "", ErrBadEncoding
	}
	if len(pkBytes) != mode2.PublicKeySize {
		return "", ErrBadEncoding
	}
	sum := sha256.Sum256(pkBytes)
	return AddressPrefix + hex.EncodeToString(sum[:]), nil
}

// Sign produces a detached signature over msg.
func Sign(msg []byte, secretKey string) (string, error) {
	skBytes, err := base64.StdEncoding.DecodeString(secretKey)
	if err != nil {
		return "", ErrBadEncoding
	}
	var sk mode2.PrivateKey
	if err := sk.UnmarshalBinary(skBytes); err != nil {
		return "", ErrBadEncoding
	}
	sig := make([]byte, mode2.SignatureSize)
	mode2.SignTo(&sk, msg, sig)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify reports whether signature authenticates msg under publicKey.
// Malformed input of any sort returns false, never true.
func Verify(msg []byte, signature, publicKey string) bool {
	pkBytes, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		return false
	}
	sigBytes, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	if len(pkBytes) != mode2.PublicKeySize || len(sigBytes) != mode2.SignatureSize {
		return false
	}
	var pk mode2.PublicKey
	if err := pk.UnmarshalBinary(pkBytes); err != nil {
		return false
	}
	return mode2.Verify(&pk, msg, sigBytes)
}

// VerifyRingSignature is the extension point for linkable ring
// signatures. Until a real scheme lands it refuses every input; it must
// never report success.
func VerifyRingSignature(msg []byte, signature string, publicKeys []string) error {
	return fmt.Errorf("%w: ring signature verification", domain.ErrNotImplemented)
}

// CanonicalTransferMessage builds the byte message a transfer signature
// covers. The field order is fixed so signer and verifier always agree:
// from|to|token|amount|fee|id.
func CanonicalTransferMessage(from, to, token string, amount, fee float64, id string) []byte {
	var b strings.Builder
	b.WriteString(from)
	b.WriteByte('|')
	b.WriteString(to)
	b.WriteByte('|')
	b.WriteString(token)
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(amount, 'f', -1, 64))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(fee, 'f', -1, 64))
	b.WriteByte('|')
	b.WriteString(id)
	return []byte(b.String())
}
