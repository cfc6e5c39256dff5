package wire

import (
	"encoding/binary"
	"io"

	"github.com/bitmessage-network/bmnode/errors"
)

// The codec follows the bitcoin-family conventions Bitmessage inherited:
// big-endian fixed-width integers and the 1/3/5/9 byte var_int encoding.

func ReadUint8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errors.NewTruncatedError("reading uint8", err)
	}

	return b[0], nil
}

func ReadUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errors.NewTruncatedError("reading uint16", err)
	}

	return binary.BigEndian.Uint16(b[:]), nil
}

func ReadUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errors.NewTruncatedError("reading uint32", err)
	}

	return binary.BigEndian.Uint32(b[:]), nil
}

func ReadUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errors.NewTruncatedError("reading uint64", err)
	}

	return binary.BigEndian.Uint64(b[:]), nil
}

func ReadInt32(r io.Reader) (int32, error) {
	v, err := ReadUint32(r)
	return int32(v), err
}

func ReadInt64(r io.Reader) (int64, error) {
	v, err := ReadUint64(r)
	return int64(v), err
}

func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func WriteUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])

	return err
}

func WriteUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])

	return err
}

func WriteUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])

	return err
}

func WriteInt32(w io.Writer, v int32) error {
	return WriteUint32(w, uint32(v))
}

func WriteInt64(w io.Writer, v int64) error {
	return WriteUint64(w, uint64(v))
}

// ReadBytes reads exactly n bytes.
func ReadBytes(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.NewTruncatedError("reading %d bytes", n, err)
	}

	return b, nil
}

// ReadVarInt decodes a variable length integer. Non-minimal encodings are
// rejected so that a value has exactly one wire representation.
func ReadVarInt(r io.Reader) (uint64, error) {
	discriminant, err := ReadUint8(r)
	if err != nil {
		return 0, err
	}

	var value uint64

	switch discriminant {
	case 0xff:
		v, err := ReadUint64(r)
		if err != nil {
			return 0, err
		}

		if v < 0x100000000 {
			return 0, errors.NewInvalidEncodingError("var_int %d encoded with 9 bytes", v)
		}

		value = v

	case 0xfe:
		v, err := ReadUint32(r)
		if err != nil {
			return 0, err
		}

		if v < 0x10000 {
			return 0, errors.NewInvalidEncodingError("var_int %d encoded with 5 bytes", v)
		}

		value = uint64(v)

	case 0xfd:
		v, err := ReadUint16(r)
		if err != nil {
			return 0, err
		}

		if v < 0xfd {
			return 0, errors.NewInvalidEncodingError("var_int %d encoded with 3 bytes", v)
		}

		value = uint64(v)

	default:
		value = uint64(discriminant)
	}

	return value, nil
}

func WriteVarInt(w io.Writer, v uint64) error {
	switch {
	case v < 0xfd:
		return WriteUint8(w, uint8(v))

	case v <= 0xffff:
		if err := WriteUint8(w, 0xfd); err != nil {
			return err
		}

		return WriteUint16(w, uint16(v))

	case v <= 0xffffffff:
		if err := WriteUint8(w, 0xfe); err != nil {
			return err
		}

		return WriteUint32(w, uint32(v))

	default:
		if err := WriteUint8(w, 0xff); err != nil {
			return err
		}

		return WriteUint64(w, v)
	}
}

// VarIntSerializeSize returns the number of bytes WriteVarInt would emit.
func VarIntSerializeSize(v uint64) int {
	switch {
	case v < 0xfd:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// ReadVarBytes reads a var_int length prefix followed by that many bytes,
// rejecting lengths above maxLength.
func ReadVarBytes(r io.Reader, maxLength uint32) ([]byte, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	if length > uint64(maxLength) {
		return nil, errors.NewTooLargeError("var_bytes length %d exceeds limit %d", length, maxLength)
	}

	return ReadBytes(r, int(length))
}

func WriteVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}

	_, err := w.Write(b)

	return err
}

// ReadVarString reads a var_bytes field interpreted as a string.
func ReadVarString(r io.Reader, maxLength uint32) (string, error) {
	b, err := ReadVarBytes(r, maxLength)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func WriteVarString(w io.Writer, s string) error {
	return WriteVarBytes(w, []byte(s))
}

// ReadVarIntList reads a var_int count followed by that many var_ints. Used
// for the stream list in the version message.
func ReadVarIntList(r io.Reader, maxEntries uint64) ([]uint64, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	if count > maxEntries {
		return nil, errors.NewTooLargeError("var_int list count %d exceeds limit %d", count, maxEntries)
	}

	list := make([]uint64, 0, count)

	for i := uint64(0); i < count; i++ {
		v, err := ReadVarInt(r)
		if err != nil {
			return nil, err
		}

		list = append(list, v)
	}

	return list, nil
}

func WriteVarIntList(w io.Writer, list []uint64) error {
	if err := WriteVarInt(w, uint64(len(list))); err != nil {
		return err
	}

	for _, v := range list {
		if err := WriteVarInt(w, v); err != nil {
			return err
		}
	}

	return nil
}
