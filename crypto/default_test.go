package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmessage-network/bmnode/errors"
)

func TestHashing(t *testing.T) {
	c := NewDefault()

	// digest sizes: 64 bytes for (double) sha512, 20 for ripemd160
	assert.Equal(t, 64, len(c.Sha512([]byte{})))
	assert.Equal(t, 64, len(c.DoubleSha512([]byte("abc"))))
	assert.Equal(t, 20, len(c.Ripemd160([]byte("abc"))))

	// hashing in pieces equals hashing the concatenation
	assert.Equal(t, c.Sha512([]byte("foobar")), c.Sha512([]byte("foo"), []byte("bar")))
	assert.Equal(t, c.DoubleSha512([]byte("foobar")), c.DoubleSha512([]byte("foo"), []byte("bar")))
}

func TestSignVerify(t *testing.T) {
	c := NewDefault()

	priv, err := c.RandomBytes(32)
	require.NoError(t, err)

	pub, err := PublicKeyBytes(priv)
	require.NoError(t, err)
	require.Len(t, pub, 64)

	data := []byte("message to sign")

	sig, err := c.Sign(data, priv)
	require.NoError(t, err)

	assert.True(t, c.VerifySignature(data, sig, pub))
	assert.False(t, c.VerifySignature([]byte("tampered"), sig, pub))

	otherPriv, err := c.RandomBytes(32)
	require.NoError(t, err)
	otherPub, err := PublicKeyBytes(otherPriv)
	require.NoError(t, err)
	assert.False(t, c.VerifySignature(data, sig, otherPub))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := NewDefault()

	priv, err := c.RandomBytes(32)
	require.NoError(t, err)

	pub, err := PublicKeyBytes(priv)
	require.NoError(t, err)

	plain := []byte("the quick brown fox jumps over the lazy dog")

	sealed, err := c.Encrypt(plain, pub)
	require.NoError(t, err)
	require.NotEqual(t, plain, sealed)

	opened, err := c.Decrypt(sealed, priv)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)
}

func TestDecryptWrongKey(t *testing.T) {
	c := NewDefault()

	priv, err := c.RandomBytes(32)
	require.NoError(t, err)
	pub, err := PublicKeyBytes(priv)
	require.NoError(t, err)

	wrongPriv, err := c.RandomBytes(32)
	require.NoError(t, err)

	sealed, err := c.Encrypt([]byte("secret"), pub)
	require.NoError(t, err)

	_, err = c.Decrypt(sealed, wrongPriv)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDecryptionFailed))
}

func TestDecryptTampered(t *testing.T) {
	c := NewDefault()

	priv, err := c.RandomBytes(32)
	require.NoError(t, err)
	pub, err := PublicKeyBytes(priv)
	require.NoError(t, err)

	sealed, err := c.Encrypt([]byte("secret"), pub)
	require.NoError(t, err)

	sealed[len(sealed)-40] ^= 0xff

	_, err = c.Decrypt(sealed, priv)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDecryptionFailed))
}

func TestRandomNonce(t *testing.T) {
	c := NewDefault()

	n1, err := c.RandomNonce()
	require.NoError(t, err)

	n2, err := c.RandomNonce()
	require.NoError(t, err)

	assert.NotEqual(t, n1, n2)
}
