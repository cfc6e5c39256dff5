package model

import (
	"io"

	"github.com/bitmessage-network/bmnode/crypto"
	"github.com/bitmessage-network/bmnode/wire"
)

// ObjectPayload is the typed body of an object message. Concrete variants
// are GetPubkey, the Pubkey versions, Msg, the Broadcast versions and
// Generic for anything the factory doesn't recognize.
type ObjectPayload interface {
	Type() wire.ObjectType
	Version() uint64
	Stream() uint64

	// Encode writes the full wire form, including a trailing signature
	// where the variant carries one.
	Encode(w io.Writer) error
}

// Signable payloads carry a detached signature over the object header
// (without nonce) followed by the payload's bytes-to-sign, which exclude
// the signature itself.
type Signable interface {
	ObjectPayload

	EncodeBytesToSign(w io.Writer) error
	Signature() []byte
	SetSignature(sig []byte)
}

// Encryptable payloads hold a sealed box, a plaintext, or both. Encode
// writes the sealed box and fails while the payload has not been sealed
// with Encrypt; Decrypt opens a received box.
type Encryptable interface {
	ObjectPayload

	Encrypt(c crypto.Cryptography, publicEncryptionKey []byte) error
	Decrypt(c crypto.Cryptography, privateEncryptionKey []byte) error
	Decrypted() bool
}

// Generic carries payloads of unknown type or version so they can still be
// stored and relayed.
type Generic struct {
	objectType wire.ObjectType
	version    uint64
	stream     uint64
	Data       []byte
}

func NewGeneric(objectType wire.ObjectType, version, stream uint64, data []byte) *Generic {
	return &Generic{
		objectType: objectType,
		version:    version,
		stream:     stream,
		Data:       data,
	}
}

func (g *Generic) Type() wire.ObjectType {
	return g.objectType
}

func (g *Generic) Version() uint64 {
	return g.version
}

func (g *Generic) Stream() uint64 {
	return g.stream
}

func (g *Generic) Encode(w io.Writer) error {
	_, err := w.Write(g.Data)
	return err
}
