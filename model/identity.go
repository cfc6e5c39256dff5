package model

import (
	"github.com/bitmessage-network/bmnode/crypto"
)

// Identity is an address we hold the private keys for.
type Identity struct {
	PrivateSigningKey    []byte
	PrivateEncryptionKey []byte
	Address              *BitmessageAddress
}

// NewIdentity derives a fresh identity on the given stream.
func NewIdentity(c crypto.Cryptography, version, stream uint64, nonceTrialsPerByte, extraBytes uint64) (*Identity, error) {
	privSigning, err := c.RandomBytes(32)
	if err != nil {
		return nil, err
	}

	privEncryption, err := c.RandomBytes(32)
	if err != nil {
		return nil, err
	}

	signingKey, err := crypto.PublicKeyBytes(privSigning)
	if err != nil {
		return nil, err
	}

	encryptionKey, err := crypto.PublicKeyBytes(privEncryption)
	if err != nil {
		return nil, err
	}

	address := NewAddress(c, version, stream, &PubkeyInfo{
		SigningKey:         signingKey,
		EncryptionKey:      encryptionKey,
		NonceTrialsPerByte: nonceTrialsPerByte,
		ExtraBytes:         extraBytes,
	})

	return &Identity{
		PrivateSigningKey:    privSigning,
		PrivateEncryptionKey: privEncryption,
		Address:              address,
	}, nil
}
