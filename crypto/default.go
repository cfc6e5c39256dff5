package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/ripemd160"

	"github.com/bitmessage-network/bmnode/errors"
)

// Default is the production Cryptography implementation: SHA-512 and
// RIPEMD-160 hashing, ECDSA over secp256k1 and the Bitmessage ECIES
// construction.
type Default struct{}

func NewDefault() *Default {
	return &Default{}
}

func (c *Default) Sha512(data ...[]byte) []byte {
	h := sha512.New()
	for _, d := range data {
		h.Write(d)
	}

	return h.Sum(nil)
}

func (c *Default) DoubleSha512(data ...[]byte) []byte {
	first := c.Sha512(data...)
	return c.Sha512(first)
}

func (c *Default) Ripemd160(data ...[]byte) []byte {
	h := ripemd160.New()
	for _, d := range data {
		h.Write(d)
	}

	return h.Sum(nil)
}

func (c *Default) Sign(data []byte, privateSigningKey []byte) ([]byte, error) {
	if len(privateSigningKey) != 32 {
		return nil, errors.NewInvalidArgumentError("private signing key must be 32 bytes, got %d", len(privateSigningKey))
	}

	priv, _ := btcec.PrivKeyFromBytes(privateSigningKey)

	digest := sha256.Sum256(data)
	sig := btcecdsa.Sign(priv, digest[:])

	return sig.Serialize(), nil
}

func (c *Default) VerifySignature(data, signature []byte, publicSigningKey []byte) bool {
	pub, err := parsePublicKey(publicSigningKey)
	if err != nil {
		return false
	}

	sig, err := btcecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}

	digest := sha256.Sum256(data)

	return sig.Verify(digest[:], pub)
}

func (c *Default) RandomNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, errors.NewProcessingError("reading random nonce", err)
	}

	return binary.BigEndian.Uint64(b[:]), nil
}

func (c *Default) RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.NewProcessingError("reading random bytes", err)
	}

	return b, nil
}

// parsePublicKey accepts the 64-byte uncompressed X||Y wire form as well as
// the 65-byte 0x04-prefixed form.
func parsePublicKey(b []byte) (*btcec.PublicKey, error) {
	switch len(b) {
	case 64:
		prefixed := make([]byte, 65)
		prefixed[0] = 0x04
		copy(prefixed[1:], b)

		return btcec.ParsePubKey(prefixed)
	case 65, 33:
		return btcec.ParsePubKey(b)
	default:
		return nil, errors.NewInvalidArgumentError("public key must be 33, 64 or 65 bytes, got %d", len(b))
	}
}

// PublicKeyBytes returns the 64-byte X||Y wire form for a private key.
func PublicKeyBytes(privateKey []byte) ([]byte, error) {
	if len(privateKey) != 32 {
		return nil, errors.NewInvalidArgumentError("private key must be 32 bytes, got %d", len(privateKey))
	}

	_, pub := btcec.PrivKeyFromBytes(privateKey)

	return pub.SerializeUncompressed()[1:], nil
}
