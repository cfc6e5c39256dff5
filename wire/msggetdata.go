package wire

import "io"

// MsgGetData requests the objects behind a list of inventory vectors.
type MsgGetData struct {
	Inventory []InventoryVector
}

func NewMsgGetData(inventory []InventoryVector) *MsgGetData {
	return &MsgGetData{Inventory: inventory}
}

func (msg *MsgGetData) Command() string {
	return CmdGetData
}

func (msg *MsgGetData) MaxPayloadLength() uint32 {
	return 9 + MaxInvPerMessage*InventoryVectorSize
}

func (msg *MsgGetData) Encode(w io.Writer) error {
	return encodeInventoryList(w, msg.Inventory)
}

func (msg *MsgGetData) Decode(r io.Reader) error {
	inventory, err := decodeInventoryList(r)
	if err != nil {
		return err
	}

	msg.Inventory = inventory

	return nil
}
