package model

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmessage-network/bmnode/crypto"
)

func testIdentity(t *testing.T, c crypto.Cryptography) (privSigning, privEncryption []byte, addr *BitmessageAddress) {
	t.Helper()

	privSigning, err := c.RandomBytes(32)
	require.NoError(t, err)

	privEncryption, err = c.RandomBytes(32)
	require.NoError(t, err)

	signingKey, err := crypto.PublicKeyBytes(privSigning)
	require.NoError(t, err)

	encryptionKey, err := crypto.PublicKeyBytes(privEncryption)
	require.NoError(t, err)

	addr = NewAddress(c, 4, 1, &PubkeyInfo{
		SigningKey:         signingKey,
		EncryptionKey:      encryptionKey,
		NonceTrialsPerByte: 1000,
		ExtraBytes:         1000,
	})

	return privSigning, privEncryption, addr
}

func TestPlaintextRoundTrip(t *testing.T) {
	c := crypto.NewDefault()
	_, _, from := testIdentity(t, c)
	_, _, to := testIdentity(t, c)

	p, err := NewPlaintext(from, to, EncodingSimple, SimpleMessage("hi", "there"), []byte("ackdata"))
	require.NoError(t, err)
	p.SetSignature([]byte{0x30, 0x01, 0x02})

	var buf bytes.Buffer
	require.NoError(t, p.Encode(&buf, true))

	got, err := DecodePlaintext(&buf)
	require.NoError(t, err)

	assert.Equal(t, p.Message, got.Message)
	assert.Equal(t, p.Ack, got.Ack)
	assert.Equal(t, p.Signature(), got.Signature())
	assert.Equal(t, from.Pubkey.SigningKey, got.From.Pubkey.SigningKey)
	assert.Equal(t, to.Ripe, got.To().Ripe)

	// decoded destinations are unresolved placeholders
	assert.Equal(t, uint64(0), got.To().Version)
}

func TestPlaintextBytesToSignOmitSignature(t *testing.T) {
	c := crypto.NewDefault()
	_, _, from := testIdentity(t, c)
	_, _, to := testIdentity(t, c)

	p, err := NewPlaintext(from, to, EncodingTrivial, []byte("body"), nil)
	require.NoError(t, err)

	var without bytes.Buffer
	require.NoError(t, p.Encode(&without, false))

	p.SetSignature([]byte("sig"))

	var withoutAfterSigning bytes.Buffer
	require.NoError(t, p.Encode(&withoutAfterSigning, false))

	var with bytes.Buffer
	require.NoError(t, p.Encode(&with, true))

	assert.Equal(t, without.Bytes(), withoutAfterSigning.Bytes())
	assert.Greater(t, with.Len(), without.Len())
	assert.Equal(t, without.Bytes(), with.Bytes()[:without.Len()])
}

func TestSetToAcceptsMatchingRipe(t *testing.T) {
	c := crypto.NewDefault()
	_, _, from := testIdentity(t, c)
	_, _, resolved := testIdentity(t, c)

	placeholder, err := NewPlaceholderAddress(resolved.Ripe)
	require.NoError(t, err)

	p, err := NewPlaintext(from, placeholder, EncodingTrivial, []byte("body"), nil)
	require.NoError(t, err)

	require.NoError(t, p.SetTo(resolved))
	assert.Equal(t, resolved, p.To())
}

func TestSetToRejectsMismatchedRipe(t *testing.T) {
	c := crypto.NewDefault()
	_, _, from := testIdentity(t, c)
	_, _, intended := testIdentity(t, c)
	_, _, other := testIdentity(t, c)

	placeholder, err := NewPlaceholderAddress(intended.Ripe)
	require.NoError(t, err)

	p, err := NewPlaintext(from, placeholder, EncodingTrivial, []byte("body"), nil)
	require.NoError(t, err)

	require.Error(t, p.SetTo(other))
	assert.Equal(t, placeholder, p.To())
}

func TestSetToRejectsSecondResolution(t *testing.T) {
	c := crypto.NewDefault()
	_, _, from := testIdentity(t, c)
	_, _, resolved := testIdentity(t, c)

	placeholder, err := NewPlaceholderAddress(resolved.Ripe)
	require.NoError(t, err)

	p, err := NewPlaintext(from, placeholder, EncodingTrivial, []byte("body"), nil)
	require.NoError(t, err)

	require.NoError(t, p.SetTo(resolved))
	require.Error(t, p.SetTo(resolved))
}

func TestAddLabelDeduplicates(t *testing.T) {
	c := crypto.NewDefault()
	_, _, from := testIdentity(t, c)
	_, _, to := testIdentity(t, c)

	p, err := NewPlaintext(from, to, EncodingTrivial, []byte("body"), nil)
	require.NoError(t, err)

	p.AddLabel("inbox")
	p.AddLabel("unread")
	p.AddLabel("inbox")

	assert.Equal(t, []string{"inbox", "unread"}, p.Labels)
}
