package model

import (
	"bytes"

	"github.com/bitmessage-network/bmnode/crypto"
	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/wire"
)

// ObjectMessage is the typed form of an object: header fields plus a
// decoded payload variant. The encoded payload is memoized on first use and
// byte-stable afterwards, so the inventory vector and the proof of work
// stay consistent; mutating operations refuse to run once it is pinned.
type ObjectMessage struct {
	nonce       [8]byte
	expiresTime int64
	objectType  wire.ObjectType
	version     uint64
	stream      uint64
	payload     ObjectPayload

	encodedPayload []byte
}

// NewObject builds a local object around a payload. A non-zero
// streamOverride replaces the payload's own stream in the header.
func NewObject(payload ObjectPayload, expiresTime int64, streamOverride uint64) *ObjectMessage {
	stream := payload.Stream()
	if streamOverride > 0 {
		stream = streamOverride
	}

	return &ObjectMessage{
		expiresTime: expiresTime,
		objectType:  payload.Type(),
		version:     payload.Version(),
		stream:      stream,
		payload:     payload,
	}
}

func (o *ObjectMessage) Nonce() [8]byte {
	return o.nonce
}

func (o *ObjectMessage) SetNonce(nonce [8]byte) {
	o.nonce = nonce
}

func (o *ObjectMessage) ExpiresTime() int64 {
	return o.expiresTime
}

func (o *ObjectMessage) Type() wire.ObjectType {
	return o.objectType
}

func (o *ObjectMessage) Version() uint64 {
	return o.version
}

func (o *ObjectMessage) Stream() uint64 {
	return o.stream
}

func (o *ObjectMessage) Payload() ObjectPayload {
	return o.payload
}

// payloadBytes returns the encoded payload, computing and pinning it the
// first time.
func (o *ObjectMessage) payloadBytes() ([]byte, error) {
	if o.encodedPayload == nil {
		var buf bytes.Buffer
		if err := o.payload.Encode(&buf); err != nil {
			return nil, err
		}

		o.encodedPayload = buf.Bytes()
	}

	return o.encodedPayload, nil
}

// Wire returns the raw wire form of this object.
func (o *ObjectMessage) Wire() (*wire.MsgObject, error) {
	payload, err := o.payloadBytes()
	if err != nil {
		return nil, err
	}

	return wire.NewMsgObject(o.nonce, o.expiresTime, o.objectType, o.version, o.stream, payload), nil
}

// InventoryVector computes the content hash of this object. The nonce must
// already be set for the result to match what peers compute.
func (o *ObjectMessage) InventoryVector() (wire.InventoryVector, error) {
	msg, err := o.Wire()
	if err != nil {
		return wire.InventoryVector{}, err
	}

	return msg.InventoryVector(), nil
}

// BytesToSign is the canonical pre-image covered by the payload signature:
// the header without the nonce followed by the payload's bytes-to-sign.
func (o *ObjectMessage) BytesToSign() ([]byte, error) {
	signable, ok := o.payload.(Signable)
	if !ok {
		return nil, errors.NewApplicationError("%s payload is not signable", o.objectType)
	}

	var buf bytes.Buffer

	_ = wire.WriteInt64(&buf, o.expiresTime)
	_ = wire.WriteUint32(&buf, uint32(o.objectType))
	_ = wire.WriteVarInt(&buf, o.version)
	_ = wire.WriteVarInt(&buf, o.stream)

	if err := signable.EncodeBytesToSign(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (o *ObjectMessage) Signed() bool {
	_, ok := o.payload.(Signable)
	return ok
}

// Sign computes and stores the payload signature. It must happen before
// the payload bytes are pinned by encryption or encoding.
func (o *ObjectMessage) Sign(c crypto.Cryptography, privateSigningKey []byte) error {
	signable, ok := o.payload.(Signable)
	if !ok {
		return nil
	}

	if o.encodedPayload != nil {
		return errors.NewApplicationError("object already encoded, cannot re-sign")
	}

	data, err := o.BytesToSign()
	if err != nil {
		return err
	}

	sig, err := c.Sign(data, privateSigningKey)
	if err != nil {
		return err
	}

	signable.SetSignature(sig)

	return nil
}

// SignatureValid verifies the payload signature. The payload must be
// decrypted first.
func (o *ObjectMessage) SignatureValid(c crypto.Cryptography, publicSigningKey []byte) (bool, error) {
	if enc, ok := o.payload.(Encryptable); ok && !enc.Decrypted() {
		return false, errors.NewApplicationError("payload must be decrypted before verifying its signature")
	}

	signable, ok := o.payload.(Signable)
	if !ok {
		return false, errors.NewApplicationError("%s payload is not signable", o.objectType)
	}

	data, err := o.BytesToSign()
	if err != nil {
		return false, err
	}

	return c.VerifySignature(data, signable.Signature(), publicSigningKey), nil
}

func (o *ObjectMessage) Encrypt(c crypto.Cryptography, publicEncryptionKey []byte) error {
	enc, ok := o.payload.(Encryptable)
	if !ok {
		return nil
	}

	if o.encodedPayload != nil {
		return errors.NewApplicationError("object already encoded, cannot re-encrypt")
	}

	return enc.Encrypt(c, publicEncryptionKey)
}

func (o *ObjectMessage) Decrypt(c crypto.Cryptography, privateEncryptionKey []byte) error {
	enc, ok := o.payload.(Encryptable)
	if !ok {
		return nil
	}

	return enc.Decrypt(c, privateEncryptionKey)
}

// Decrypted reports whether the payload is readable: true for unencrypted
// payloads, and for encrypted ones only after a successful Decrypt.
func (o *ObjectMessage) Decrypted() bool {
	if enc, ok := o.payload.(Encryptable); ok {
		return enc.Decrypted()
	}

	return true
}
