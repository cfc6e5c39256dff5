package wire

import (
	"encoding/hex"
	"io"

	"github.com/bitmessage-network/bmnode/errors"
)

// InventoryVectorSize is the width of an inventory vector in bytes.
const InventoryVectorSize = 32

// InventoryVector is the content hash identifying an object network-wide:
// the truncated double SHA-512 of nonce plus the payload bytes without the
// nonce. It is a value type so it can key maps directly.
type InventoryVector [InventoryVectorSize]byte

func NewInventoryVector(b []byte) (InventoryVector, error) {
	var iv InventoryVector

	if len(b) != InventoryVectorSize {
		return iv, errors.NewInvalidArgumentError("inventory vector must be %d bytes, got %d", InventoryVectorSize, len(b))
	}

	copy(iv[:], b)

	return iv, nil
}

func (iv InventoryVector) Bytes() []byte {
	b := make([]byte, InventoryVectorSize)
	copy(b, iv[:])

	return b
}

func (iv InventoryVector) String() string {
	return hex.EncodeToString(iv[:])
}

func readInventoryVector(r io.Reader) (InventoryVector, error) {
	var iv InventoryVector

	b, err := ReadBytes(r, InventoryVectorSize)
	if err != nil {
		return iv, err
	}

	copy(iv[:], b)

	return iv, nil
}

func writeInventoryVector(w io.Writer, iv InventoryVector) error {
	_, err := w.Write(iv[:])
	return err
}
