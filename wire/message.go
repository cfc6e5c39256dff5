package wire

import (
	"bytes"
	"crypto/sha512"
	"io"
	"strings"

	"github.com/bitmessage-network/bmnode/errors"
)

// Message is a payload that can be framed onto the wire. Decode must consume
// exactly the payload it is given.
type Message interface {
	Command() string
	Encode(w io.Writer) error
	Decode(r io.Reader) error
	MaxPayloadLength() uint32
}

// makeEmptyMessage returns a fresh message value for a command, or an error
// for commands the protocol doesn't know.
func makeEmptyMessage(command string) (Message, error) {
	switch command {
	case CmdVersion:
		return &MsgVersion{}, nil
	case CmdVerAck:
		return &MsgVerAck{}, nil
	case CmdAddr:
		return &MsgAddr{}, nil
	case CmdInv:
		return &MsgInv{}, nil
	case CmdGetData:
		return &MsgGetData{}, nil
	case CmdObject:
		return &MsgObject{}, nil
	case CmdCustom:
		return &MsgCustom{}, nil
	default:
		return nil, errors.NewNodeProtocolError("unhandled command [%s]", command)
	}
}

// checksum is the first four bytes of sha512(sha512(payload)).
func checksum(payload []byte) [4]byte {
	first := sha512.Sum512(payload)
	second := sha512.Sum512(first[:])

	var c [4]byte
	copy(c[:], second[:4])

	return c
}

// WriteMessage frames msg with the given magic and writes it to w.
func WriteMessage(w io.Writer, msg Message, magic uint32) error {
	command := msg.Command()
	if len(command) > CommandSize {
		return errors.NewApplicationError("command [%s] is too long", command)
	}

	var payload bytes.Buffer
	if err := msg.Encode(&payload); err != nil {
		return err
	}

	if uint32(payload.Len()) > msg.MaxPayloadLength() {
		return errors.NewApplicationError("payload of [%s] is %d bytes, limit is %d",
			command, payload.Len(), msg.MaxPayloadLength())
	}

	var cmd [CommandSize]byte
	copy(cmd[:], command)

	payloadBytes := payload.Bytes()
	check := checksum(payloadBytes)

	var header bytes.Buffer
	_ = WriteUint32(&header, magic)
	_, _ = header.Write(cmd[:])
	_ = WriteUint32(&header, uint32(len(payloadBytes)))
	_, _ = header.Write(check[:])

	if _, err := w.Write(header.Bytes()); err != nil {
		return err
	}

	// no separate write for an empty payload: on a synchronous conn such
	// as net.Pipe a zero-length write blocks until the peer reads again
	if len(payloadBytes) == 0 {
		return nil
	}

	_, err := w.Write(payloadBytes)

	return err
}

// ReadMessage reads one frame from r, verifying magic, length bound and
// checksum, and decodes it into a typed message.
func ReadMessage(r io.Reader, magic uint32) (Message, error) {
	gotMagic, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}

	if gotMagic != magic {
		return nil, errors.NewNodeProtocolError("wrong magic %08x, expected %08x", gotMagic, magic)
	}

	cmdBytes, err := ReadBytes(r, CommandSize)
	if err != nil {
		return nil, err
	}

	command := strings.TrimRight(string(cmdBytes), "\x00")

	length, err := ReadUint32(r)
	if err != nil {
		return nil, err
	}

	if length > MaxPayloadLength {
		return nil, errors.NewTooLargeError("payload of [%s] is %d bytes, limit is %d",
			command, length, MaxPayloadLength)
	}

	var check [4]byte
	if _, err := io.ReadFull(r, check[:]); err != nil {
		return nil, errors.NewTruncatedError("reading checksum", err)
	}

	payload, err := ReadBytes(r, int(length))
	if err != nil {
		return nil, err
	}

	if checksum(payload) != check {
		return nil, errors.NewChecksumMismatchError("checksum mismatch for [%s]", command)
	}

	msg, err := makeEmptyMessage(command)
	if err != nil {
		return nil, err
	}

	if uint32(len(payload)) > msg.MaxPayloadLength() {
		return nil, errors.NewTooLargeError("payload of [%s] is %d bytes, limit is %d",
			command, len(payload), msg.MaxPayloadLength())
	}

	pr := bytes.NewReader(payload)
	if err := msg.Decode(pr); err != nil {
		return nil, err
	}

	if pr.Len() > 0 {
		return nil, errors.NewInvalidEncodingError("payload of [%s] has %d trailing bytes", command, pr.Len())
	}

	return msg, nil
}
