package wire

import (
	"bytes"
	"net"
	"testing"

	"github.com/bitmessage-network/bmnode/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddress(port uint16) NetworkAddress {
	return NetworkAddress{
		Time:     1640000000,
		Stream:   1,
		Services: NodeNetwork,
		IP:       net.ParseIP("127.0.0.1").To16(),
		Port:     port,
	}
}

func roundTrip(t *testing.T, msg Message) Message {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, msg, MainNetMagic))

	got, err := ReadMessage(&buf, MainNetMagic)
	require.NoError(t, err)

	return got
}

func TestVersionRoundTrip(t *testing.T) {
	msg := NewMsgVersion(testAddress(8444), testAddress(8445), 0xcafebabe, "/bmnode:0.1/", []uint64{1, 2}, 1640000000)

	got := roundTrip(t, msg)

	version, ok := got.(*MsgVersion)
	require.True(t, ok)
	assert.Equal(t, ProtocolVersion, version.Version)
	assert.Equal(t, uint64(0xcafebabe), version.Nonce)
	assert.Equal(t, "/bmnode:0.1/", version.UserAgent)
	assert.Equal(t, []uint64{1, 2}, version.Streams)
	assert.Equal(t, msg.AddrRecv.Port, version.AddrRecv.Port)
}

func TestVerAckRoundTrip(t *testing.T) {
	got := roundTrip(t, NewMsgVerAck())

	_, ok := got.(*MsgVerAck)
	require.True(t, ok)
}

func TestAddrRoundTrip(t *testing.T) {
	a1 := testAddress(8444)
	a2 := testAddress(8555)
	msg := NewMsgAddr([]*NetworkAddress{&a1, &a2})

	got := roundTrip(t, msg)

	addr, ok := got.(*MsgAddr)
	require.True(t, ok)
	require.Len(t, addr.Addresses, 2)
	assert.Equal(t, uint16(8555), addr.Addresses[1].Port)
	assert.Equal(t, int64(1640000000), addr.Addresses[0].Time)
	assert.Equal(t, uint32(1), addr.Addresses[0].Stream)
}

func TestInvRoundTrip(t *testing.T) {
	ivs := []InventoryVector{{1, 2, 3}, {4, 5, 6}}

	got := roundTrip(t, NewMsgInv(ivs))

	inv, ok := got.(*MsgInv)
	require.True(t, ok)
	assert.Equal(t, ivs, inv.Inventory)
}

func TestGetDataRoundTrip(t *testing.T) {
	ivs := []InventoryVector{{0xaa}, {0xbb}}

	got := roundTrip(t, NewMsgGetData(ivs))

	getData, ok := got.(*MsgGetData)
	require.True(t, ok)
	assert.Equal(t, ivs, getData.Inventory)
}

func TestObjectRoundTrip(t *testing.T) {
	msg := NewMsgObject([8]byte{1, 2, 3, 4, 5, 6, 7, 8}, 1640000600, ObjectTypeMsg, 1, 1, []byte{0xde, 0xad})

	got := roundTrip(t, msg)

	obj, ok := got.(*MsgObject)
	require.True(t, ok)
	assert.Equal(t, msg.Nonce, obj.Nonce)
	assert.Equal(t, msg.ExpiresTime, obj.ExpiresTime)
	assert.Equal(t, ObjectTypeMsg, obj.ObjectType)
	assert.Equal(t, msg.Payload, obj.Payload)
	assert.Equal(t, msg.InventoryVector(), obj.InventoryVector())
}

func TestCustomRoundTrip(t *testing.T) {
	msg := NewMsgCustom("ping", []byte("pong"))

	got := roundTrip(t, msg)

	custom, ok := got.(*MsgCustom)
	require.True(t, ok)
	assert.Equal(t, "ping", custom.Subcommand)
	assert.Equal(t, []byte("pong"), custom.Data)
}

func TestReadMessageWrongMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, NewMsgVerAck(), MainNetMagic))

	_, err := ReadMessage(&buf, 0x12345678)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNodeProtocol))
}

func TestReadMessageChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, NewMsgInv([]InventoryVector{{9}}), MainNetMagic))

	// corrupt the last payload byte
	b := buf.Bytes()
	b[len(b)-1] ^= 0xff

	_, err := ReadMessage(bytes.NewReader(b), MainNetMagic)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrChecksumMismatch))
}

func TestReadMessageUnknownCommand(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteUint32(&buf, MainNetMagic)

	var cmd [CommandSize]byte
	copy(cmd[:], "bogus")
	_, _ = buf.Write(cmd[:])

	_ = WriteUint32(&buf, 0)
	check := checksum(nil)
	_, _ = buf.Write(check[:])

	_, err := ReadMessage(&buf, MainNetMagic)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNodeProtocol))
}

func TestReadMessageTrailingBytes(t *testing.T) {
	// a verack with a non-empty payload must be rejected
	var buf bytes.Buffer
	_ = WriteUint32(&buf, MainNetMagic)

	var cmd [CommandSize]byte
	copy(cmd[:], CmdVerAck)
	_, _ = buf.Write(cmd[:])

	payload := []byte{0x00}
	_ = WriteUint32(&buf, uint32(len(payload)))
	check := checksum(payload)
	_, _ = buf.Write(check[:])
	_, _ = buf.Write(payload)

	_, err := ReadMessage(&buf, MainNetMagic)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTooLarge))
}

func TestInventoryVectorDeterminism(t *testing.T) {
	m1 := NewMsgObject([8]byte{1}, 1640000600, ObjectTypeBroadcast, 4, 1, []byte("payload"))
	m2 := NewMsgObject([8]byte{1}, 1640000600, ObjectTypeBroadcast, 4, 1, []byte("payload"))
	m3 := NewMsgObject([8]byte{2}, 1640000600, ObjectTypeBroadcast, 4, 1, []byte("payload"))

	assert.Equal(t, m1.InventoryVector(), m2.InventoryVector())
	assert.NotEqual(t, m1.InventoryVector(), m3.InventoryVector())
}
