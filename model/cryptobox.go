package model

import (
	"io"

	"github.com/bitmessage-network/bmnode/crypto"
	"github.com/bitmessage-network/bmnode/errors"
)

// CryptoBox is the sealed half of an encrypted payload: opaque ciphertext
// produced by the crypto capability. A payload holds a box, a plaintext, or
// both; the box is authoritative on the wire, the plaintext in memory.
type CryptoBox struct {
	ciphertext []byte
}

func NewCryptoBox(ciphertext []byte) *CryptoBox {
	return &CryptoBox{ciphertext: ciphertext}
}

// Seal encrypts plain for the given public key and returns the box.
func Seal(c crypto.Cryptography, plain, publicEncryptionKey []byte) (*CryptoBox, error) {
	ciphertext, err := c.Encrypt(plain, publicEncryptionKey)
	if err != nil {
		return nil, err
	}

	return &CryptoBox{ciphertext: ciphertext}, nil
}

// Open decrypts the box with the given private key.
func (b *CryptoBox) Open(c crypto.Cryptography, privateEncryptionKey []byte) ([]byte, error) {
	if b == nil {
		return nil, errors.NewDecryptionFailedError("no ciphertext to decrypt")
	}

	return c.Decrypt(b.ciphertext, privateEncryptionKey)
}

func (b *CryptoBox) Encode(w io.Writer) error {
	_, err := w.Write(b.ciphertext)
	return err
}

func (b *CryptoBox) Bytes() []byte {
	return b.ciphertext
}
