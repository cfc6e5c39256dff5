package model

import (
	"io"

	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/wire"
)

// GetPubkey asks the network for the pubkey object matching an address.
// Versions 2 and 3 identify the target by its 20-byte ripe; version 4 by
// the 32-byte tag derived from the address, which hides the ripe.
type GetPubkey struct {
	version uint64
	stream  uint64

	// RipeOrTag is 20 bytes for v2/v3, 32 bytes for v4.
	RipeOrTag []byte
}

func NewGetPubkey(version, stream uint64, ripeOrTag []byte) (*GetPubkey, error) {
	expected := RipeSize
	if version >= 4 {
		expected = 32
	}

	if len(ripeOrTag) != expected {
		return nil, errors.NewInvalidArgumentError("getpubkey v%d identifier must be %d bytes, got %d",
			version, expected, len(ripeOrTag))
	}

	return &GetPubkey{version: version, stream: stream, RipeOrTag: ripeOrTag}, nil
}

func decodeGetPubkey(version, stream uint64, body []byte) (*GetPubkey, error) {
	return NewGetPubkey(version, stream, body)
}

func (g *GetPubkey) Type() wire.ObjectType {
	return wire.ObjectTypeGetPubkey
}

func (g *GetPubkey) Version() uint64 {
	return g.version
}

func (g *GetPubkey) Stream() uint64 {
	return g.stream
}

func (g *GetPubkey) Encode(w io.Writer) error {
	_, err := w.Write(g.RipeOrTag)
	return err
}
