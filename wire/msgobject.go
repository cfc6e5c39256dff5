package wire

import (
	"bytes"
	"crypto/sha512"
	"io"

	"github.com/bitmessage-network/bmnode/errors"
)

// MsgObject is the wire form of an object: the proof-of-work nonce, the
// header and the raw, still-untyped payload bytes. The typed payload
// variants live in the model package; connections deal only in this form.
type MsgObject struct {
	Nonce       [8]byte
	ExpiresTime int64
	ObjectType  ObjectType
	Version     uint64
	Stream      uint64
	Payload     []byte
}

func NewMsgObject(nonce [8]byte, expiresTime int64, objectType ObjectType, version, stream uint64, payload []byte) *MsgObject {
	return &MsgObject{
		Nonce:       nonce,
		ExpiresTime: expiresTime,
		ObjectType:  objectType,
		Version:     version,
		Stream:      stream,
		Payload:     payload,
	}
}

func (msg *MsgObject) Command() string {
	return CmdObject
}

func (msg *MsgObject) MaxPayloadLength() uint32 {
	return MaxPayloadLength
}

func (msg *MsgObject) Encode(w io.Writer) error {
	if _, err := w.Write(msg.Nonce[:]); err != nil {
		return err
	}

	_, err := w.Write(msg.PayloadBytesWithoutNonce())

	return err
}

func (msg *MsgObject) Decode(r io.Reader) error {
	nonce, err := ReadBytes(r, 8)
	if err != nil {
		return err
	}

	expiresTime, err := ReadInt64(r)
	if err != nil {
		return err
	}

	objectType, err := ReadUint32(r)
	if err != nil {
		return err
	}

	version, err := ReadVarInt(r)
	if err != nil {
		return err
	}

	stream, err := ReadVarInt(r)
	if err != nil {
		return err
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return errors.NewTruncatedError("reading object payload", err)
	}

	copy(msg.Nonce[:], nonce)
	msg.ExpiresTime = expiresTime
	msg.ObjectType = ObjectType(objectType)
	msg.Version = version
	msg.Stream = stream
	msg.Payload = payload

	return nil
}

// HeaderBytesWithoutNonce returns the canonical encoding of the header
// fields after the nonce. This is the prefix of both the proof-of-work
// pre-image and the bytes-to-sign pre-image.
func (msg *MsgObject) HeaderBytesWithoutNonce() []byte {
	var buf bytes.Buffer

	_ = WriteInt64(&buf, msg.ExpiresTime)
	_ = WriteUint32(&buf, uint32(msg.ObjectType))
	_ = WriteVarInt(&buf, msg.Version)
	_ = WriteVarInt(&buf, msg.Stream)

	return buf.Bytes()
}

// PayloadBytesWithoutNonce returns everything after the nonce: the header
// followed by the payload. The proof of work covers these bytes.
func (msg *MsgObject) PayloadBytesWithoutNonce() []byte {
	header := msg.HeaderBytesWithoutNonce()

	b := make([]byte, 0, len(header)+len(msg.Payload))
	b = append(b, header...)
	b = append(b, msg.Payload...)

	return b
}

// InventoryVector computes the content hash identifying this object: the
// first 32 bytes of the double SHA-512 of nonce plus payload bytes.
func (msg *MsgObject) InventoryVector() InventoryVector {
	data := make([]byte, 0, 8+len(msg.Payload)+32)
	data = append(data, msg.Nonce[:]...)
	data = append(data, msg.PayloadBytesWithoutNonce()...)

	first := sha512.Sum512(data)
	second := sha512.Sum512(first[:])

	var iv InventoryVector
	copy(iv[:], second[:InventoryVectorSize])

	return iv
}
