package wire

import (
	"io"

	"github.com/bitmessage-network/bmnode/errors"
)

const maxCustomCommandLength = 100

// MsgCustom carries application-defined commands. The node itself never
// interprets the data; it hands the message to a configured handler.
type MsgCustom struct {
	Subcommand string
	Data       []byte
}

func NewMsgCustom(subcommand string, data []byte) *MsgCustom {
	return &MsgCustom{Subcommand: subcommand, Data: data}
}

func (msg *MsgCustom) Command() string {
	return CmdCustom
}

func (msg *MsgCustom) MaxPayloadLength() uint32 {
	return MaxPayloadLength
}

func (msg *MsgCustom) Encode(w io.Writer) error {
	if err := WriteVarString(w, msg.Subcommand); err != nil {
		return err
	}

	_, err := w.Write(msg.Data)

	return err
}

func (msg *MsgCustom) Decode(r io.Reader) error {
	subcommand, err := ReadVarString(r, maxCustomCommandLength)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return errors.NewTruncatedError("reading custom message data", err)
	}

	msg.Subcommand = subcommand
	msg.Data = data

	return nil
}
