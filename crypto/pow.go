package crypto

import (
	"context"
	"encoding/binary"
	"math/big"
	"runtime"

	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/util"
	"github.com/bitmessage-network/bmnode/wire"
)

var two64 = new(big.Int).Lsh(big.NewInt(1), 64)

// PowTarget derives the proof-of-work target for an object's payload. The
// difficulty scales with the payload size and the remaining time to live,
// so large or long-lived objects cost more to stamp:
//
//	target = 2^64 / (trials * (len + extra + ttl*(len+extra)/2^16))
//
// where len includes the 8 nonce bytes.
func PowTarget(payloadLengthWithoutNonce int, ttlSeconds int64, nonceTrialsPerByte, extraBytes uint64) uint64 {
	if ttlSeconds < 0 {
		ttlSeconds = 0
	}

	length := big.NewInt(int64(payloadLengthWithoutNonce) + 8 + int64(extraBytes))

	divisor := new(big.Int).Mul(big.NewInt(ttlSeconds), length)
	divisor.Rsh(divisor, 16)
	divisor.Add(divisor, length)
	divisor.Mul(divisor, new(big.Int).SetUint64(nonceTrialsPerByte))

	if divisor.Sign() == 0 {
		return ^uint64(0)
	}

	target := new(big.Int).Div(two64, divisor)
	if !target.IsUint64() {
		return ^uint64(0)
	}

	return target.Uint64()
}

// powValue is the quantity compared against the target: the first 8 bytes,
// big-endian, of doubleSha512(nonce || sha512(payloadWithoutNonce)).
func (c *Default) powValue(nonce [8]byte, initialHash []byte) uint64 {
	resultHash := c.DoubleSha512(nonce[:], initialHash)
	return binary.BigEndian.Uint64(resultHash[:8])
}

func (c *Default) CheckProofOfWork(obj *wire.MsgObject, nonceTrialsPerByte, extraBytes uint64) error {
	payload := obj.PayloadBytesWithoutNonce()
	ttl := obj.ExpiresTime - util.Now()

	target := PowTarget(len(payload), ttl, nonceTrialsPerByte, extraBytes)
	initialHash := c.Sha512(payload)

	if value := c.powValue(obj.Nonce, initialHash); value > target {
		return errors.NewInsufficientPowError("pow value %d above target %d", value, target)
	}

	return nil
}

func (c *Default) DoProofOfWork(ctx context.Context, obj *wire.MsgObject, nonceTrialsPerByte, extraBytes uint64) error {
	payload := obj.PayloadBytesWithoutNonce()
	ttl := obj.ExpiresTime - util.Now()

	target := PowTarget(len(payload), ttl, nonceTrialsPerByte, extraBytes)
	initialHash := c.Sha512(payload)

	workers := runtime.NumCPU()
	found := make(chan [8]byte, workers)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := 0; i < workers; i++ {
		go func(offset uint64) {
			var nonce [8]byte

			for n := offset; ; n += uint64(workers) {
				select {
				case <-workerCtx.Done():
					return
				default:
				}

				binary.BigEndian.PutUint64(nonce[:], n)

				if c.powValue(nonce, initialHash) <= target {
					select {
					case found <- nonce:
					case <-workerCtx.Done():
					}

					return
				}
			}
		}(uint64(i))
	}

	select {
	case nonce := <-found:
		obj.Nonce = nonce
		return nil
	case <-ctx.Done():
		return errors.NewContextCanceledError("proof of work interrupted", ctx.Err())
	}
}
