package wire

import (
	"io"

	"github.com/bitmessage-network/bmnode/errors"
)

// MsgInv advertises inventory vectors the sender has available.
type MsgInv struct {
	Inventory []InventoryVector
}

func NewMsgInv(inventory []InventoryVector) *MsgInv {
	return &MsgInv{Inventory: inventory}
}

func (msg *MsgInv) Command() string {
	return CmdInv
}

func (msg *MsgInv) MaxPayloadLength() uint32 {
	return 9 + MaxInvPerMessage*InventoryVectorSize
}

func (msg *MsgInv) Encode(w io.Writer) error {
	return encodeInventoryList(w, msg.Inventory)
}

func (msg *MsgInv) Decode(r io.Reader) error {
	inventory, err := decodeInventoryList(r)
	if err != nil {
		return err
	}

	msg.Inventory = inventory

	return nil
}

func encodeInventoryList(w io.Writer, inventory []InventoryVector) error {
	if len(inventory) > MaxInvPerMessage {
		return errors.NewApplicationError("inventory list with %d vectors, limit is %d",
			len(inventory), MaxInvPerMessage)
	}

	if err := WriteVarInt(w, uint64(len(inventory))); err != nil {
		return err
	}

	for _, iv := range inventory {
		if err := writeInventoryVector(w, iv); err != nil {
			return err
		}
	}

	return nil
}

func decodeInventoryList(r io.Reader) ([]InventoryVector, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	if count > MaxInvPerMessage {
		return nil, errors.NewTooLargeError("inventory list with %d vectors, limit is %d",
			count, MaxInvPerMessage)
	}

	inventory := make([]InventoryVector, 0, count)

	for i := uint64(0); i < count; i++ {
		iv, err := readInventoryVector(r)
		if err != nil {
			return nil, err
		}

		inventory = append(inventory, iv)
	}

	return inventory, nil
}
