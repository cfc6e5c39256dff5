package wire

import "io"

// MsgVerAck acknowledges a version message. It has no payload.
type MsgVerAck struct{}

func NewMsgVerAck() *MsgVerAck {
	return &MsgVerAck{}
}

func (msg *MsgVerAck) Command() string {
	return CmdVerAck
}

func (msg *MsgVerAck) MaxPayloadLength() uint32 {
	return 0
}

func (msg *MsgVerAck) Encode(_ io.Writer) error {
	return nil
}

func (msg *MsgVerAck) Decode(_ io.Reader) error {
	return nil
}
