package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmessage-network/bmnode/crypto"
	"github.com/bitmessage-network/bmnode/util"
	"github.com/bitmessage-network/bmnode/wire"
)

func TestMsgSignEncryptDecryptVerify(t *testing.T) {
	c := crypto.NewDefault()

	privSigning, _, from := testIdentity(t, c)
	_, privEncryption, to := testIdentity(t, c)

	p, err := NewPlaintext(from, to, EncodingSimple, SimpleMessage("subject", "body"), []byte("ack"))
	require.NoError(t, err)

	obj := NewObject(NewMsg(1, p), util.NowShifted(util.Day), 0)
	assert.Equal(t, wire.ObjectTypeMsg, obj.Type())
	assert.Equal(t, uint64(1), obj.Version())
	assert.Equal(t, uint64(1), obj.Stream())

	require.NoError(t, obj.Sign(c, privSigning))
	require.NoError(t, obj.Encrypt(c, to.Pubkey.EncryptionKey))
	assert.False(t, obj.Decrypted())

	// ship it through the wire and back
	msg, err := obj.Wire()
	require.NoError(t, err)

	received, err := ObjectFromWire(msg)
	require.NoError(t, err)
	assert.False(t, received.Decrypted())

	require.NoError(t, received.Decrypt(c, privEncryption))
	require.True(t, received.Decrypted())

	receivedMsg, ok := received.Payload().(*Msg)
	require.True(t, ok)
	assert.Equal(t, p.Message, receivedMsg.Plaintext().Message)

	valid, err := received.SignatureValid(c, from.Pubkey.SigningKey)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestSignatureInvalidBeforeDecrypt(t *testing.T) {
	c := crypto.NewDefault()

	privSigning, _, from := testIdentity(t, c)
	_, _, to := testIdentity(t, c)

	p, err := NewPlaintext(from, to, EncodingTrivial, []byte("body"), nil)
	require.NoError(t, err)

	obj := NewObject(NewMsg(1, p), util.NowShifted(util.Day), 0)
	require.NoError(t, obj.Sign(c, privSigning))
	require.NoError(t, obj.Encrypt(c, to.Pubkey.EncryptionKey))

	msg, err := obj.Wire()
	require.NoError(t, err)

	received, err := ObjectFromWire(msg)
	require.NoError(t, err)

	_, err = received.SignatureValid(c, from.Pubkey.SigningKey)
	require.Error(t, err)
}

func TestEncodedPayloadIsPinned(t *testing.T) {
	c := crypto.NewDefault()

	privSigning, _, from := testIdentity(t, c)
	_, _, to := testIdentity(t, c)

	p, err := NewPlaintext(from, to, EncodingTrivial, []byte("body"), nil)
	require.NoError(t, err)

	obj := NewObject(NewMsg(1, p), util.NowShifted(util.Day), 0)
	require.NoError(t, obj.Sign(c, privSigning))
	require.NoError(t, obj.Encrypt(c, to.Pubkey.EncryptionKey))

	first, err := obj.Wire()
	require.NoError(t, err)

	second, err := obj.Wire()
	require.NoError(t, err)
	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, first.InventoryVector(), second.InventoryVector())

	// once encoded, signing and encrypting again must fail
	require.Error(t, obj.Sign(c, privSigning))
	require.Error(t, obj.Encrypt(c, to.Pubkey.EncryptionKey))
}

func TestStreamOverride(t *testing.T) {
	c := crypto.NewDefault()
	_, _, from := testIdentity(t, c)
	_, _, to := testIdentity(t, c)

	p, err := NewPlaintext(from, to, EncodingTrivial, []byte("body"), nil)
	require.NoError(t, err)

	obj := NewObject(NewMsg(1, p), util.NowShifted(util.Day), 7)
	assert.Equal(t, uint64(7), obj.Stream())
}

func TestFactoryReturnsGenericForUnknown(t *testing.T) {
	msg := wire.NewMsgObject([8]byte{1}, util.NowShifted(util.Hour), wire.ObjectType(99), 1, 1, []byte("mystery"))

	obj, err := ObjectFromWire(msg)
	require.NoError(t, err)

	generic, ok := obj.Payload().(*Generic)
	require.True(t, ok)
	assert.Equal(t, []byte("mystery"), generic.Data)

	// generic payloads re-encode byte-identically
	wireMsg, err := obj.Wire()
	require.NoError(t, err)
	assert.Equal(t, msg.Payload, wireMsg.Payload)
	assert.Equal(t, msg.InventoryVector(), wireMsg.InventoryVector())
}

func TestFactoryDecodesGetPubkey(t *testing.T) {
	ripe := make([]byte, 20)
	ripe[0] = 0xab

	msg := wire.NewMsgObject([8]byte{}, util.NowShifted(util.Hour), wire.ObjectTypeGetPubkey, 3, 1, ripe)

	obj, err := ObjectFromWire(msg)
	require.NoError(t, err)

	gp, ok := obj.Payload().(*GetPubkey)
	require.True(t, ok)
	assert.Equal(t, ripe, gp.RipeOrTag)
}

func TestFactoryDecodesBroadcastV5(t *testing.T) {
	body := make([]byte, 32+64)
	body[0] = 0x11

	msg := wire.NewMsgObject([8]byte{}, util.NowShifted(util.Hour), wire.ObjectTypeBroadcast, 5, 1, body)

	obj, err := ObjectFromWire(msg)
	require.NoError(t, err)

	b, ok := obj.Payload().(*Broadcast)
	require.True(t, ok)
	assert.Equal(t, body[:32], b.Tag)
	assert.False(t, b.Decrypted())
}

func TestPubkeyV3SignAndVerify(t *testing.T) {
	c := crypto.NewDefault()

	privSigning, _, addr := testIdentity(t, c)

	payload := NewPubkeyV3(addr.Stream, *addr.Pubkey)
	obj := NewObject(payload, util.NowShifted(util.Day), 0)

	require.NoError(t, obj.Sign(c, privSigning))

	valid, err := obj.SignatureValid(c, addr.Pubkey.SigningKey)
	require.NoError(t, err)
	assert.True(t, valid)

	// round trip through the wire keeps the signature
	msg, err := obj.Wire()
	require.NoError(t, err)

	received, err := ObjectFromWire(msg)
	require.NoError(t, err)

	valid, err = received.SignatureValid(c, addr.Pubkey.SigningKey)
	require.NoError(t, err)
	assert.True(t, valid)
}
