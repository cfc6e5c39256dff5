// Package crypto defines the cryptography capability the rest of the node
// is written against. Everything that hashes, signs, encrypts or checks
// proof of work receives a Cryptography at construction, so tests can swap
// in a stub and the curve/cipher choices stay in one place.
package crypto

import (
	"context"

	"github.com/bitmessage-network/bmnode/wire"
)

// Cryptography is the capability handle handed to every subsystem.
//
// Public signing and encryption keys are the 64-byte uncompressed X||Y
// form used on the wire; private keys are 32-byte scalars.
type Cryptography interface {
	Sha512(data ...[]byte) []byte
	DoubleSha512(data ...[]byte) []byte
	Ripemd160(data ...[]byte) []byte

	Sign(data []byte, privateSigningKey []byte) ([]byte, error)
	VerifySignature(data, signature []byte, publicSigningKey []byte) bool

	// Encrypt seals plain for the holder of the private key matching
	// publicEncryptionKey. Decrypt reverses it, returning
	// errors.ErrDecryptionFailed when the key doesn't fit or the
	// ciphertext was tampered with.
	Encrypt(plain, publicEncryptionKey []byte) ([]byte, error)
	Decrypt(cipher, privateEncryptionKey []byte) ([]byte, error)

	RandomNonce() (uint64, error)
	RandomBytes(n int) ([]byte, error)

	// CheckProofOfWork returns errors.ErrInsufficientPow if the object's
	// nonce doesn't meet the target derived from its size, TTL and the
	// given difficulty parameters.
	CheckProofOfWork(obj *wire.MsgObject, nonceTrialsPerByte, extraBytes uint64) error

	// DoProofOfWork searches for a nonce meeting the target and sets it
	// on the object. It respects ctx cancellation.
	DoProofOfWork(ctx context.Context, obj *wire.MsgObject, nonceTrialsPerByte, extraBytes uint64) error
}
