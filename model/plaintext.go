package model

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/wire"
)

// Encoding tags the interpretation of a plaintext message body.
type Encoding uint64

const (
	// EncodingIgnore marks bodies the recipient should not display.
	EncodingIgnore Encoding = 0

	// EncodingTrivial is a bare body with no subject.
	EncodingTrivial Encoding = 1

	// EncodingSimple is "Subject:<s>\nBody:<b>", UTF-8.
	EncodingSimple Encoding = 2
)

// Status tracks an outbound message through its lifecycle. Once submitted,
// failures never surface to the caller; they show up here and in the logs.
type Status int

const (
	StatusPubkeyRequested Status = iota
	StatusDoingProofOfWork
	StatusSent
	StatusAcknowledged
)

func (s Status) String() string {
	switch s {
	case StatusPubkeyRequested:
		return "PUBKEY_REQUESTED"
	case StatusDoingProofOfWork:
		return "DOING_PROOF_OF_WORK"
	case StatusSent:
		return "SENT"
	case StatusAcknowledged:
		return "ACKNOWLEDGED"
	default:
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
}

// Plaintext is the decrypted envelope carried by msg and broadcast objects:
// the sender's identity, the destination ripe, the body and the ack payload,
// plus the application-side bookkeeping fields persisted by the message
// repository.
type Plaintext struct {
	ID        uuid.UUID
	From      *BitmessageAddress
	to        *BitmessageAddress
	Encoding  Encoding
	Message   []byte
	Ack       []byte
	signature []byte

	Status   Status
	Sent     int64
	Received int64
	Labels   []string

	// AckData is the 32-byte token expected back in an ack object. TTL,
	// Retries and NextTry drive the resend schedule.
	AckData []byte
	TTL     int64
	Retries int
	NextTry int64
}

// PlaintextDraft accumulates fields during a streamed decode and is
// finalized by Build, which validates what arrived.
type PlaintextDraft struct {
	AddressVersion     uint64
	Stream             uint64
	BehaviorBitfield   uint32
	SigningKey         []byte
	EncryptionKey      []byte
	NonceTrialsPerByte uint64
	ExtraBytes         uint64
	DestinationRipe    []byte
	Encoding           uint64
	Message            []byte
	Ack                []byte
	Signature          []byte
}

// DecodePlaintextDraft reads everything up to, but not including, the
// signature.
func DecodePlaintextDraft(r io.Reader) (*PlaintextDraft, error) {
	d := &PlaintextDraft{}

	var err error

	if d.AddressVersion, err = wire.ReadVarInt(r); err != nil {
		return nil, err
	}

	if d.Stream, err = wire.ReadVarInt(r); err != nil {
		return nil, err
	}

	if d.BehaviorBitfield, err = wire.ReadUint32(r); err != nil {
		return nil, err
	}

	if d.SigningKey, err = wire.ReadBytes(r, 64); err != nil {
		return nil, err
	}

	if d.EncryptionKey, err = wire.ReadBytes(r, 64); err != nil {
		return nil, err
	}

	if d.NonceTrialsPerByte, err = wire.ReadVarInt(r); err != nil {
		return nil, err
	}

	if d.ExtraBytes, err = wire.ReadVarInt(r); err != nil {
		return nil, err
	}

	if d.DestinationRipe, err = wire.ReadBytes(r, RipeSize); err != nil {
		return nil, err
	}

	if d.Encoding, err = wire.ReadVarInt(r); err != nil {
		return nil, err
	}

	if d.Message, err = wire.ReadVarBytes(r, wire.MaxPayloadLength); err != nil {
		return nil, err
	}

	if d.Ack, err = wire.ReadVarBytes(r, wire.MaxPayloadLength); err != nil {
		return nil, err
	}

	return d, nil
}

// DecodePlaintext reads a full plaintext including the trailing signature.
func DecodePlaintext(r io.Reader) (*Plaintext, error) {
	d, err := DecodePlaintextDraft(r)
	if err != nil {
		return nil, err
	}

	if d.Signature, err = wire.ReadVarBytes(r, wire.MaxPayloadLength); err != nil {
		return nil, err
	}

	return d.Build()
}

// Build validates the draft and produces the Plaintext. The destination
// starts out as a placeholder address carrying only the ripe; SetTo
// resolves it once the recipient's pubkey is known.
func (d *PlaintextDraft) Build() (*Plaintext, error) {
	if len(d.SigningKey) != 64 || len(d.EncryptionKey) != 64 {
		return nil, errors.NewInvalidArgumentError("public keys must be 64 bytes")
	}

	to, err := NewPlaceholderAddress(d.DestinationRipe)
	if err != nil {
		return nil, err
	}

	from := &BitmessageAddress{
		Version: d.AddressVersion,
		Stream:  d.Stream,
		Pubkey: &PubkeyInfo{
			BehaviorBitfield:   d.BehaviorBitfield,
			SigningKey:         d.SigningKey,
			EncryptionKey:      d.EncryptionKey,
			NonceTrialsPerByte: d.NonceTrialsPerByte,
			ExtraBytes:         d.ExtraBytes,
		},
	}

	return &Plaintext{
		ID:        uuid.New(),
		From:      from,
		to:        to,
		Encoding:  Encoding(d.Encoding),
		Message:   d.Message,
		Ack:       d.Ack,
		signature: d.Signature,
	}, nil
}

// NewPlaintext builds an outbound plaintext from a resolved sender and a
// destination that may still be a placeholder.
func NewPlaintext(from, to *BitmessageAddress, encoding Encoding, message, ack []byte) (*Plaintext, error) {
	if from == nil || from.Pubkey == nil {
		return nil, errors.NewInvalidArgumentError("sender address must carry a pubkey")
	}

	if to == nil || len(to.Ripe) != RipeSize {
		return nil, errors.NewInvalidArgumentError("destination must carry a %d byte ripe", RipeSize)
	}

	return &Plaintext{
		ID:       uuid.New(),
		From:     from,
		to:       to,
		Encoding: encoding,
		Message:  message,
		Ack:      ack,
		Status:   StatusPubkeyRequested,
	}, nil
}

// SimpleMessage composes an EncodingSimple body.
func SimpleMessage(subject, body string) []byte {
	return []byte("Subject:" + subject + "\n" + "Body:" + body)
}

func (p *Plaintext) To() *BitmessageAddress {
	return p.to
}

// SetTo resolves the destination. It is only allowed while the current
// destination is the unresolved placeholder, and the resolved address must
// hash to the same ripe the message was addressed to.
func (p *Plaintext) SetTo(to *BitmessageAddress) error {
	if p.to.Version != 0 {
		return errors.NewInvalidArgumentError("destination address already resolved")
	}

	if !p.to.RipeEquals(to) {
		return errors.NewInvalidArgumentError("resolved address ripe doesn't match destination")
	}

	p.to = to

	return nil
}

func (p *Plaintext) Stream() uint64 {
	return p.From.Stream
}

func (p *Plaintext) Signature() []byte {
	return p.signature
}

func (p *Plaintext) SetSignature(sig []byte) {
	p.signature = sig
}

func (p *Plaintext) AddLabel(label string) {
	for _, l := range p.Labels {
		if l == label {
			return
		}
	}

	p.Labels = append(p.Labels, label)
}

// Encode writes the wire form, with the signature when includeSignature is
// set. The signature-less form is the canonical bytes-to-sign pre-image.
func (p *Plaintext) Encode(w io.Writer, includeSignature bool) error {
	if err := wire.WriteVarInt(w, p.From.Version); err != nil {
		return err
	}

	if err := wire.WriteVarInt(w, p.From.Stream); err != nil {
		return err
	}

	if err := wire.WriteUint32(w, p.From.Pubkey.BehaviorBitfield); err != nil {
		return err
	}

	if _, err := w.Write(p.From.Pubkey.SigningKey); err != nil {
		return err
	}

	if _, err := w.Write(p.From.Pubkey.EncryptionKey); err != nil {
		return err
	}

	if err := wire.WriteVarInt(w, p.From.Pubkey.NonceTrialsPerByte); err != nil {
		return err
	}

	if err := wire.WriteVarInt(w, p.From.Pubkey.ExtraBytes); err != nil {
		return err
	}

	if _, err := w.Write(p.to.Ripe); err != nil {
		return err
	}

	if err := wire.WriteVarInt(w, uint64(p.Encoding)); err != nil {
		return err
	}

	if err := wire.WriteVarBytes(w, p.Message); err != nil {
		return err
	}

	if err := wire.WriteVarBytes(w, p.Ack); err != nil {
		return err
	}

	if includeSignature {
		return wire.WriteVarBytes(w, p.signature)
	}

	return nil
}
