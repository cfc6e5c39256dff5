package p2p

import (
	"context"
	"crypto/sha512"
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/ripemd160"

	"github.com/bitmessage-network/bmnode/wire"
)

// stubCrypto is the test double for the crypto capability: real hashing so
// inventory vectors stay consistent, everything else controllable.
type stubCrypto struct {
	mu sync.Mutex

	// powErr is returned by CheckProofOfWork when set.
	powErr error

	nextNonce uint64
}

func (s *stubCrypto) Sha512(data ...[]byte) []byte {
	h := sha512.New()
	for _, d := range data {
		h.Write(d)
	}

	return h.Sum(nil)
}

func (s *stubCrypto) DoubleSha512(data ...[]byte) []byte {
	first := s.Sha512(data...)
	return s.Sha512(first)
}

func (s *stubCrypto) Ripemd160(data ...[]byte) []byte {
	h := ripemd160.New()
	for _, d := range data {
		h.Write(d)
	}

	return h.Sum(nil)
}

func (s *stubCrypto) Sign(data []byte, _ []byte) ([]byte, error) {
	digest := s.Sha512(data)
	return digest[:16], nil
}

func (s *stubCrypto) VerifySignature(_, _ []byte, _ []byte) bool {
	return true
}

func (s *stubCrypto) Encrypt(plain, _ []byte) ([]byte, error) {
	return plain, nil
}

func (s *stubCrypto) Decrypt(cipher, _ []byte) ([]byte, error) {
	return cipher, nil
}

func (s *stubCrypto) RandomNonce() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextNonce++

	return s.nextNonce, nil
}

func (s *stubCrypto) RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)

	s.mu.Lock()
	s.nextNonce++
	binary.BigEndian.PutUint64(b, s.nextNonce)
	s.mu.Unlock()

	return b, nil
}

func (s *stubCrypto) CheckProofOfWork(_ *wire.MsgObject, _, _ uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.powErr
}

func (s *stubCrypto) setPowError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.powErr = err
}

func (s *stubCrypto) DoProofOfWork(_ context.Context, obj *wire.MsgObject, _, _ uint64) error {
	obj.Nonce = [8]byte{0xde, 0xad, 0xbe, 0xef}
	return nil
}

// stubHandler records flood-fill traffic.
type stubHandler struct {
	mu        sync.Mutex
	offered   []wire.InventoryVector
	requested []wire.InventoryVector
}

func (h *stubHandler) Offer(iv wire.InventoryVector) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.offered = append(h.offered, iv)
}

func (h *stubHandler) Request(ivs []wire.InventoryVector) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.requested = append(h.requested, ivs...)
}

func (h *stubHandler) offeredVectors() []wire.InventoryVector {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]wire.InventoryVector{}, h.offered...)
}

func (h *stubHandler) requestedVectors() []wire.InventoryVector {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]wire.InventoryVector{}, h.requested...)
}

// stubListener records delivered objects.
type stubListener struct {
	mu       sync.Mutex
	received []*wire.MsgObject
}

func (l *stubListener) Receive(_ context.Context, obj *wire.MsgObject) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.received = append(l.received, obj)
}

func (l *stubListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.received)
}
