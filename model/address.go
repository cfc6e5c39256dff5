package model

import (
	"bytes"
	"encoding/hex"

	"github.com/bitmessage-network/bmnode/crypto"
	"github.com/bitmessage-network/bmnode/errors"
)

// RipeSize is the width of the routable hash in a Bitmessage address.
const RipeSize = 20

// PubkeyInfo is the public half of an identity: the behavior bits, both
// 64-byte keys and the proof-of-work difficulty the holder demands for
// messages sent to it.
type PubkeyInfo struct {
	BehaviorBitfield   uint32
	SigningKey         []byte
	EncryptionKey      []byte
	NonceTrialsPerByte uint64
	ExtraBytes         uint64
}

// BitmessageAddress identifies a sender or recipient. A version of zero
// marks an unresolved placeholder that only carries the destination ripe;
// it is upgraded once the matching pubkey object arrives.
type BitmessageAddress struct {
	Version uint64
	Stream  uint64
	Ripe    []byte
	Pubkey  *PubkeyInfo
}

// NewPlaceholderAddress builds the unresolved form holding only a ripe.
func NewPlaceholderAddress(ripe []byte) (*BitmessageAddress, error) {
	if len(ripe) != RipeSize {
		return nil, errors.NewInvalidArgumentError("ripe must be %d bytes, got %d", RipeSize, len(ripe))
	}

	return &BitmessageAddress{Version: 0, Stream: 0, Ripe: ripe}, nil
}

// NewAddress builds a resolved address from a pubkey, deriving the ripe.
func NewAddress(c crypto.Cryptography, version, stream uint64, pubkey *PubkeyInfo) *BitmessageAddress {
	return &BitmessageAddress{
		Version: version,
		Stream:  stream,
		Ripe:    Ripe(c, pubkey.SigningKey, pubkey.EncryptionKey),
		Pubkey:  pubkey,
	}
}

// Ripe derives the 20-byte routable hash from the two public keys.
func Ripe(c crypto.Cryptography, signingKey, encryptionKey []byte) []byte {
	return c.Ripemd160(c.Sha512(signingKey, encryptionKey))
}

func (a *BitmessageAddress) RipeEquals(other *BitmessageAddress) bool {
	return other != nil && bytes.Equal(a.Ripe, other.Ripe)
}

func (a *BitmessageAddress) String() string {
	return hex.EncodeToString(a.Ripe)
}
