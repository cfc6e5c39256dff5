package model

import (
	"bytes"
	"io"

	"github.com/bitmessage-network/bmnode/crypto"
	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/wire"
)

// Broadcast is a message to everyone subscribed to the sending address.
// The encryption key is derived from the address itself, so any subscriber
// can open it. Version 4 is the bare box; version 5 prefixes a 32-byte tag
// so subscribers can cheaply spot broadcasts they care about.
type Broadcast struct {
	version uint64
	stream  uint64

	// Tag is present on v5 only.
	Tag []byte

	encrypted *CryptoBox
	plaintext *Plaintext

	// sealed is set by Encrypt and cleared by a successful Decrypt.
	sealed bool
}

// BroadcastVersionFor returns the object version a sender of the given
// address version emits.
func BroadcastVersionFor(addressVersion uint64) uint64 {
	if addressVersion < 4 {
		return 4
	}

	return 5
}

func NewBroadcastV4(stream uint64, plaintext *Plaintext) *Broadcast {
	return &Broadcast{version: 4, stream: stream, plaintext: plaintext}
}

func NewBroadcastV5(stream uint64, tag []byte, plaintext *Plaintext) (*Broadcast, error) {
	if len(tag) != 32 {
		return nil, errors.NewInvalidArgumentError("broadcast v5 tag must be 32 bytes, got %d", len(tag))
	}

	return &Broadcast{version: 5, stream: stream, Tag: tag, plaintext: plaintext}, nil
}

func decodeBroadcast(version, stream uint64, body []byte) (*Broadcast, error) {
	if version >= 5 {
		if len(body) < 32 {
			return nil, errors.NewTruncatedError("broadcast v5 body is %d bytes", len(body))
		}

		return &Broadcast{
			version:   version,
			stream:    stream,
			Tag:       body[:32],
			encrypted: NewCryptoBox(body[32:]),
		}, nil
	}

	return &Broadcast{
		version:   version,
		stream:    stream,
		encrypted: NewCryptoBox(body),
	}, nil
}

func (b *Broadcast) Type() wire.ObjectType {
	return wire.ObjectTypeBroadcast
}

func (b *Broadcast) Version() uint64 {
	return b.version
}

func (b *Broadcast) Stream() uint64 {
	return b.stream
}

func (b *Broadcast) Encode(w io.Writer) error {
	if b.version >= 5 {
		if _, err := w.Write(b.Tag); err != nil {
			return err
		}
	}

	if b.encrypted == nil {
		return errors.NewApplicationError("broadcast must be encrypted before encoding")
	}

	return b.encrypted.Encode(w)
}

func (b *Broadcast) EncodeBytesToSign(w io.Writer) error {
	if b.plaintext == nil {
		return errors.NewApplicationError("broadcast must be decrypted to sign")
	}

	if b.version >= 5 {
		if _, err := w.Write(b.Tag); err != nil {
			return err
		}
	}

	return b.plaintext.Encode(w, false)
}

func (b *Broadcast) Signature() []byte {
	if b.plaintext == nil {
		return nil
	}

	return b.plaintext.Signature()
}

func (b *Broadcast) SetSignature(sig []byte) {
	if b.plaintext != nil {
		b.plaintext.SetSignature(sig)
	}
}

func (b *Broadcast) Encrypt(c crypto.Cryptography, publicEncryptionKey []byte) error {
	if b.plaintext == nil {
		return errors.NewApplicationError("broadcast has nothing to encrypt")
	}

	var buf bytes.Buffer
	if err := b.plaintext.Encode(&buf, true); err != nil {
		return err
	}

	box, err := Seal(c, buf.Bytes(), publicEncryptionKey)
	if err != nil {
		return err
	}

	b.encrypted = box
	b.sealed = true

	return nil
}

func (b *Broadcast) Decrypt(c crypto.Cryptography, privateEncryptionKey []byte) error {
	plain, err := b.encrypted.Open(c, privateEncryptionKey)
	if err != nil {
		return err
	}

	plaintext, err := DecodePlaintext(bytes.NewReader(plain))
	if err != nil {
		return err
	}

	b.plaintext = plaintext
	b.sealed = false

	return nil
}

func (b *Broadcast) Decrypted() bool {
	return b.plaintext != nil && !b.sealed
}

func (b *Broadcast) Plaintext() *Plaintext {
	return b.plaintext
}
