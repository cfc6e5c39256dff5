package wire

import (
	"io"

	"github.com/bitmessage-network/bmnode/errors"
)

// MsgAddr advertises known peer addresses.
type MsgAddr struct {
	Addresses []*NetworkAddress
}

func NewMsgAddr(addresses []*NetworkAddress) *MsgAddr {
	return &MsgAddr{Addresses: addresses}
}

func (msg *MsgAddr) Command() string {
	return CmdAddr
}

func (msg *MsgAddr) MaxPayloadLength() uint32 {
	// count prefix plus 38 bytes per full-form address
	return 9 + MaxAddrPerMessage*38
}

func (msg *MsgAddr) Encode(w io.Writer) error {
	if len(msg.Addresses) > MaxAddrPerMessage {
		return errors.NewApplicationError("addr message with %d addresses, limit is %d",
			len(msg.Addresses), MaxAddrPerMessage)
	}

	if err := WriteVarInt(w, uint64(len(msg.Addresses))); err != nil {
		return err
	}

	for _, na := range msg.Addresses {
		if err := na.Encode(w); err != nil {
			return err
		}
	}

	return nil
}

func (msg *MsgAddr) Decode(r io.Reader) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}

	if count > MaxAddrPerMessage {
		return errors.NewTooLargeError("addr message with %d addresses, limit is %d",
			count, MaxAddrPerMessage)
	}

	addresses := make([]*NetworkAddress, 0, count)

	for i := uint64(0); i < count; i++ {
		na := &NetworkAddress{}
		if err := na.Decode(r); err != nil {
			return err
		}

		addresses = append(addresses, na)
	}

	msg.Addresses = addresses

	return nil
}
