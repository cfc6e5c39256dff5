package wire

import (
	"io"

	"github.com/bitmessage-network/bmnode/errors"
)

const maxUserAgentLength = 5000

// MsgVersion opens the handshake on every connection.
type MsgVersion struct {
	Version   int32
	Services  uint64
	Timestamp int64
	AddrRecv  NetworkAddress
	AddrFrom  NetworkAddress

	// Nonce is a random value identifying this node instance, used to
	// detect connections to self.
	Nonce uint64

	UserAgent string
	Streams   []uint64
}

func NewMsgVersion(addrRecv, addrFrom NetworkAddress, nonce uint64, userAgent string, streams []uint64, now int64) *MsgVersion {
	return &MsgVersion{
		Version:   ProtocolVersion,
		Services:  NodeNetwork,
		Timestamp: now,
		AddrRecv:  addrRecv,
		AddrFrom:  addrFrom,
		Nonce:     nonce,
		UserAgent: userAgent,
		Streams:   streams,
	}
}

func (msg *MsgVersion) Command() string {
	return CmdVersion
}

func (msg *MsgVersion) MaxPayloadLength() uint32 {
	return 4 + 8 + 8 + 26 + 26 + 8 + 9 + maxUserAgentLength + 9*9
}

func (msg *MsgVersion) Encode(w io.Writer) error {
	if err := WriteInt32(w, msg.Version); err != nil {
		return err
	}

	if err := WriteUint64(w, msg.Services); err != nil {
		return err
	}

	if err := WriteInt64(w, msg.Timestamp); err != nil {
		return err
	}

	if err := msg.AddrRecv.EncodeShort(w); err != nil {
		return err
	}

	if err := msg.AddrFrom.EncodeShort(w); err != nil {
		return err
	}

	if err := WriteUint64(w, msg.Nonce); err != nil {
		return err
	}

	if err := WriteVarString(w, msg.UserAgent); err != nil {
		return err
	}

	return WriteVarIntList(w, msg.Streams)
}

func (msg *MsgVersion) Decode(r io.Reader) error {
	version, err := ReadInt32(r)
	if err != nil {
		return err
	}

	services, err := ReadUint64(r)
	if err != nil {
		return err
	}

	timestamp, err := ReadInt64(r)
	if err != nil {
		return err
	}

	var addrRecv, addrFrom NetworkAddress

	if err := addrRecv.DecodeShort(r); err != nil {
		return err
	}

	if err := addrFrom.DecodeShort(r); err != nil {
		return err
	}

	nonce, err := ReadUint64(r)
	if err != nil {
		return err
	}

	userAgent, err := ReadVarString(r, maxUserAgentLength)
	if err != nil {
		return err
	}

	streams, err := ReadVarIntList(r, 160000)
	if err != nil {
		return err
	}

	if len(streams) == 0 {
		return errors.NewInvalidEncodingError("version message announces no streams")
	}

	msg.Version = version
	msg.Services = services
	msg.Timestamp = timestamp
	msg.AddrRecv = addrRecv
	msg.AddrFrom = addrFrom
	msg.Nonce = nonce
	msg.UserAgent = userAgent
	msg.Streams = streams

	return nil
}
