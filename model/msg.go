package model

import (
	"bytes"
	"io"

	"github.com/bitmessage-network/bmnode/crypto"
	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/wire"
)

// Msg is a person-to-person message: a Plaintext sealed for the recipient's
// encryption key. On the wire it is nothing but the ciphertext.
type Msg struct {
	stream uint64

	encrypted *CryptoBox
	plaintext *Plaintext

	// sealed is set by Encrypt and cleared by a successful Decrypt.
	sealed bool
}

func NewMsg(stream uint64, plaintext *Plaintext) *Msg {
	return &Msg{stream: stream, plaintext: plaintext}
}

func decodeMsg(stream uint64, body []byte) *Msg {
	return &Msg{stream: stream, encrypted: NewCryptoBox(body)}
}

func (m *Msg) Type() wire.ObjectType {
	return wire.ObjectTypeMsg
}

func (m *Msg) Version() uint64 {
	return 1
}

func (m *Msg) Stream() uint64 {
	return m.stream
}

func (m *Msg) Encode(w io.Writer) error {
	if m.encrypted == nil {
		return errors.NewApplicationError("msg must be encrypted before encoding")
	}

	return m.encrypted.Encode(w)
}

func (m *Msg) EncodeBytesToSign(w io.Writer) error {
	if m.plaintext == nil {
		return errors.NewApplicationError("msg must be decrypted to sign")
	}

	return m.plaintext.Encode(w, false)
}

func (m *Msg) Signature() []byte {
	if m.plaintext == nil {
		return nil
	}

	return m.plaintext.Signature()
}

func (m *Msg) SetSignature(sig []byte) {
	if m.plaintext != nil {
		m.plaintext.SetSignature(sig)
	}
}

func (m *Msg) Encrypt(c crypto.Cryptography, publicEncryptionKey []byte) error {
	if m.plaintext == nil {
		return errors.NewApplicationError("msg has nothing to encrypt")
	}

	var buf bytes.Buffer
	if err := m.plaintext.Encode(&buf, true); err != nil {
		return err
	}

	box, err := Seal(c, buf.Bytes(), publicEncryptionKey)
	if err != nil {
		return err
	}

	m.encrypted = box
	m.sealed = true

	return nil
}

func (m *Msg) Decrypt(c crypto.Cryptography, privateEncryptionKey []byte) error {
	plain, err := m.encrypted.Open(c, privateEncryptionKey)
	if err != nil {
		return err
	}

	plaintext, err := DecodePlaintext(bytes.NewReader(plain))
	if err != nil {
		return err
	}

	m.plaintext = plaintext
	m.sealed = false

	return nil
}

func (m *Msg) Decrypted() bool {
	return m.plaintext != nil && !m.sealed
}

func (m *Msg) Plaintext() *Plaintext {
	return m.plaintext
}
