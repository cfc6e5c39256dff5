package model

import (
	"bytes"
	"io"

	"github.com/bitmessage-network/bmnode/crypto"
	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/wire"
)

// PubkeyV2 publishes an identity's keys in the clear: behavior bits and the
// two 64-byte keys. It carries no signature.
type PubkeyV2 struct {
	stream uint64
	Info   PubkeyInfo
}

func NewPubkeyV2(stream uint64, info PubkeyInfo) *PubkeyV2 {
	return &PubkeyV2{stream: stream, Info: info}
}

func decodePubkeyV2(stream uint64, body []byte) (*PubkeyV2, error) {
	r := bytes.NewReader(body)

	info, err := decodePubkeyInfoBase(r)
	if err != nil {
		return nil, err
	}

	return &PubkeyV2{stream: stream, Info: *info}, nil
}

func (p *PubkeyV2) Type() wire.ObjectType {
	return wire.ObjectTypePubkey
}

func (p *PubkeyV2) Version() uint64 {
	return 2
}

func (p *PubkeyV2) Stream() uint64 {
	return p.stream
}

func (p *PubkeyV2) Encode(w io.Writer) error {
	return encodePubkeyInfoBase(w, &p.Info)
}

// PubkeyV3 adds the proof-of-work demands and a signature over the object
// header and the key material.
type PubkeyV3 struct {
	stream    uint64
	Info      PubkeyInfo
	signature []byte
}

func NewPubkeyV3(stream uint64, info PubkeyInfo) *PubkeyV3 {
	return &PubkeyV3{stream: stream, Info: info}
}

func decodePubkeyV3(stream uint64, body []byte) (*PubkeyV3, error) {
	r := bytes.NewReader(body)

	p, err := decodePubkeyV3Fields(r, stream)
	if err != nil {
		return nil, err
	}

	return p, nil
}

func decodePubkeyV3Fields(r io.Reader, stream uint64) (*PubkeyV3, error) {
	info, err := decodePubkeyInfoBase(r)
	if err != nil {
		return nil, err
	}

	if info.NonceTrialsPerByte, err = wire.ReadVarInt(r); err != nil {
		return nil, err
	}

	if info.ExtraBytes, err = wire.ReadVarInt(r); err != nil {
		return nil, err
	}

	signature, err := wire.ReadVarBytes(r, wire.MaxPayloadLength)
	if err != nil {
		return nil, err
	}

	return &PubkeyV3{stream: stream, Info: *info, signature: signature}, nil
}

func (p *PubkeyV3) Type() wire.ObjectType {
	return wire.ObjectTypePubkey
}

func (p *PubkeyV3) Version() uint64 {
	return 3
}

func (p *PubkeyV3) Stream() uint64 {
	return p.stream
}

func (p *PubkeyV3) Encode(w io.Writer) error {
	if err := p.EncodeBytesToSign(w); err != nil {
		return err
	}

	return wire.WriteVarBytes(w, p.signature)
}

func (p *PubkeyV3) EncodeBytesToSign(w io.Writer) error {
	if err := encodePubkeyInfoBase(w, &p.Info); err != nil {
		return err
	}

	if err := wire.WriteVarInt(w, p.Info.NonceTrialsPerByte); err != nil {
		return err
	}

	return wire.WriteVarInt(w, p.Info.ExtraBytes)
}

func (p *PubkeyV3) Signature() []byte {
	return p.signature
}

func (p *PubkeyV3) SetSignature(sig []byte) {
	p.signature = sig
}

// PubkeyV4 hides the key material inside a box only holders of the address
// can open; publicly visible is just the tag.
type PubkeyV4 struct {
	stream uint64
	Tag    []byte

	encrypted *CryptoBox
	decrypted *PubkeyV3

	// sealed is set by Encrypt and cleared by a successful Decrypt.
	sealed bool
}

func NewPubkeyV4(stream uint64, tag []byte, decrypted *PubkeyV3) (*PubkeyV4, error) {
	if len(tag) != 32 {
		return nil, errors.NewInvalidArgumentError("pubkey v4 tag must be 32 bytes, got %d", len(tag))
	}

	return &PubkeyV4{stream: stream, Tag: tag, decrypted: decrypted}, nil
}

func decodePubkeyV4(stream uint64, body []byte) (*PubkeyV4, error) {
	if len(body) < 32 {
		return nil, errors.NewTruncatedError("pubkey v4 body is %d bytes", len(body))
	}

	return &PubkeyV4{
		stream:    stream,
		Tag:       body[:32],
		encrypted: NewCryptoBox(body[32:]),
	}, nil
}

func (p *PubkeyV4) Type() wire.ObjectType {
	return wire.ObjectTypePubkey
}

func (p *PubkeyV4) Version() uint64 {
	return 4
}

func (p *PubkeyV4) Stream() uint64 {
	return p.stream
}

func (p *PubkeyV4) Encode(w io.Writer) error {
	if _, err := w.Write(p.Tag); err != nil {
		return err
	}

	if p.encrypted == nil {
		return errors.NewApplicationError("pubkey v4 must be encrypted before encoding")
	}

	return p.encrypted.Encode(w)
}

// EncodeBytesToSign covers the tag and the decrypted key material; the
// signature is computed before sealing.
func (p *PubkeyV4) EncodeBytesToSign(w io.Writer) error {
	if p.decrypted == nil {
		return errors.NewApplicationError("pubkey v4 must be decrypted to sign")
	}

	if _, err := w.Write(p.Tag); err != nil {
		return err
	}

	return p.decrypted.EncodeBytesToSign(w)
}

func (p *PubkeyV4) Signature() []byte {
	if p.decrypted == nil {
		return nil
	}

	return p.decrypted.Signature()
}

func (p *PubkeyV4) SetSignature(sig []byte) {
	if p.decrypted != nil {
		p.decrypted.SetSignature(sig)
	}
}

func (p *PubkeyV4) Encrypt(c crypto.Cryptography, publicEncryptionKey []byte) error {
	if p.decrypted == nil {
		return errors.NewApplicationError("pubkey v4 has nothing to encrypt")
	}

	var buf bytes.Buffer
	if err := p.decrypted.Encode(&buf); err != nil {
		return err
	}

	box, err := Seal(c, buf.Bytes(), publicEncryptionKey)
	if err != nil {
		return err
	}

	p.encrypted = box
	p.sealed = true

	return nil
}

func (p *PubkeyV4) Decrypt(c crypto.Cryptography, privateEncryptionKey []byte) error {
	plain, err := p.encrypted.Open(c, privateEncryptionKey)
	if err != nil {
		return err
	}

	decrypted, err := decodePubkeyV3Fields(bytes.NewReader(plain), p.stream)
	if err != nil {
		return err
	}

	p.decrypted = decrypted
	p.sealed = false

	return nil
}

func (p *PubkeyV4) Decrypted() bool {
	return p.decrypted != nil && !p.sealed
}

// Decrypted key material, nil while still sealed.
func (p *PubkeyV4) Info() *PubkeyInfo {
	if p.decrypted == nil {
		return nil
	}

	return &p.decrypted.Info
}

func encodePubkeyInfoBase(w io.Writer, info *PubkeyInfo) error {
	if err := wire.WriteUint32(w, info.BehaviorBitfield); err != nil {
		return err
	}

	if _, err := w.Write(info.SigningKey); err != nil {
		return err
	}

	_, err := w.Write(info.EncryptionKey)

	return err
}

func decodePubkeyInfoBase(r io.Reader) (*PubkeyInfo, error) {
	behavior, err := wire.ReadUint32(r)
	if err != nil {
		return nil, err
	}

	signingKey, err := wire.ReadBytes(r, 64)
	if err != nil {
		return nil, err
	}

	encryptionKey, err := wire.ReadBytes(r, 64)
	if err != nil {
		return nil, err
	}

	return &PubkeyInfo{
		BehaviorBitfield: behavior,
		SigningKey:       signingKey,
		EncryptionKey:    encryptionKey,
	}, nil
}
