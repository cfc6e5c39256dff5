package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/bitmessage-network/bmnode/errors"
)

// Bitmessage's ECIES: an ephemeral secp256k1 key agreement, AES-256-CBC
// for the body and HMAC-SHA256 over everything before the mac. The wire
// layout is
//
//	iv(16) || curve(0x02CA) || xlen || x || ylen || y || ciphertext || mac(32)
//
// with x and y length-prefixed big-endian coordinates of the ephemeral
// public key.
const eciesCurveType uint16 = 0x02CA

func (c *Default) Encrypt(plain, publicEncryptionKey []byte) ([]byte, error) {
	pub, err := parsePublicKey(publicEncryptionKey)
	if err != nil {
		return nil, err
	}

	ephemeral, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, errors.NewProcessingError("generating ephemeral key", err)
	}

	encKey, macKey := deriveKeys(ephemeral, pub)

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, errors.NewProcessingError("reading iv", err)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, errors.NewProcessingError("creating cipher", err)
	}

	padded := pkcs7Pad(plain, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	var out bytes.Buffer
	out.Write(iv)
	writeEphemeralKey(&out, ephemeral.PubKey())
	out.Write(ciphertext)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(out.Bytes())
	out.Write(mac.Sum(nil))

	return out.Bytes(), nil
}

func (c *Default) Decrypt(data, privateEncryptionKey []byte) ([]byte, error) {
	if len(privateEncryptionKey) != 32 {
		return nil, errors.NewInvalidArgumentError("private encryption key must be 32 bytes, got %d", len(privateEncryptionKey))
	}

	if len(data) < aes.BlockSize+2+sha256.Size {
		return nil, errors.NewDecryptionFailedError("ciphertext too short")
	}

	macStart := len(data) - sha256.Size
	body := data[:macStart]
	theirMac := data[macStart:]

	iv := body[:aes.BlockSize]

	ephemeralPub, ciphertext, err := readEphemeralKey(body[aes.BlockSize:])
	if err != nil {
		return nil, err
	}

	priv, _ := btcec.PrivKeyFromBytes(privateEncryptionKey)
	encKey, macKey := deriveKeys(priv, ephemeralPub)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(body)

	if !hmac.Equal(mac.Sum(nil), theirMac) {
		return nil, errors.NewDecryptionFailedError("mac mismatch")
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.NewDecryptionFailedError("ciphertext length %d not a block multiple", len(ciphertext))
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, errors.NewProcessingError("creating cipher", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plain, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return nil, err
	}

	return plain, nil
}

// deriveKeys performs the ECDH agreement and splits sha512(shared) into
// the AES key and the HMAC key.
func deriveKeys(priv *btcec.PrivateKey, pub *btcec.PublicKey) (encKey, macKey []byte) {
	var shared btcec.JacobianPoint
	pub.AsJacobian(&shared)
	btcec.ScalarMultNonConst(&priv.Key, &shared, &shared)
	shared.ToAffine()

	x := shared.X.Bytes()
	derived := sha512.Sum512(x[:])

	return derived[:32], derived[32:]
}

func writeEphemeralKey(buf *bytes.Buffer, pub *btcec.PublicKey) {
	uncompressed := pub.SerializeUncompressed()
	x := uncompressed[1:33]
	y := uncompressed[33:]

	var curve [2]byte
	binary.BigEndian.PutUint16(curve[:], eciesCurveType)
	buf.Write(curve[:])

	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(x)))
	buf.Write(length[:])
	buf.Write(x)

	binary.BigEndian.PutUint16(length[:], uint16(len(y)))
	buf.Write(length[:])
	buf.Write(y)
}

func readEphemeralKey(b []byte) (*btcec.PublicKey, []byte, error) {
	r := bytes.NewReader(b)

	var curve uint16
	if err := binary.Read(r, binary.BigEndian, &curve); err != nil {
		return nil, nil, errors.NewDecryptionFailedError("reading curve type", err)
	}

	if curve != eciesCurveType {
		return nil, nil, errors.NewDecryptionFailedError("unexpected curve type %04x", curve)
	}

	x, err := readLengthPrefixed(r)
	if err != nil {
		return nil, nil, err
	}

	y, err := readLengthPrefixed(r)
	if err != nil {
		return nil, nil, err
	}

	key := make([]byte, 65)
	key[0] = 0x04
	copy(key[1+32-len(x):33], x)
	copy(key[33+32-len(y):], y)

	pub, err := btcec.ParsePubKey(key)
	if err != nil {
		return nil, nil, errors.NewDecryptionFailedError("parsing ephemeral key", err)
	}

	rest := make([]byte, r.Len())
	_, _ = r.Read(rest)

	return pub, rest, nil
}

func readLengthPrefixed(r *bytes.Reader) ([]byte, error) {
	var length uint16
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, errors.NewDecryptionFailedError("reading coordinate length", err)
	}

	if length > 32 {
		return nil, errors.NewDecryptionFailedError("coordinate length %d out of range", length)
	}

	b := make([]byte, length)
	if _, err := r.Read(b); err != nil {
		return nil, errors.NewDecryptionFailedError("reading coordinate", err)
	}

	return b, nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	padding := blockSize - len(b)%blockSize
	padded := make([]byte, len(b)+padding)
	copy(padded, b)

	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(padding)
	}

	return padded
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errors.NewDecryptionFailedError("invalid padded length %d", len(b))
	}

	padding := int(b[len(b)-1])
	if padding == 0 || padding > blockSize || padding > len(b) {
		return nil, errors.NewDecryptionFailedError("invalid padding")
	}

	for _, p := range b[len(b)-padding:] {
		if int(p) != padding {
			return nil, errors.NewDecryptionFailedError("invalid padding")
		}
	}

	return b[:len(b)-padding], nil
}
