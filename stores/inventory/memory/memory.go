// Package memory is the in-process inventory backend, used by sync mode
// and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/ulogger"
	"github.com/bitmessage-network/bmnode/util"
	"github.com/bitmessage-network/bmnode/wire"
)

const expiryGraceSeconds = 300

type entry struct {
	obj     *wire.MsgObject
	stream  uint64
	expires int64
}

type Memory struct {
	mu      sync.RWMutex
	logger  ulogger.Logger
	objects map[wire.InventoryVector]*entry
	cancel  context.CancelFunc
}

func New(ctx context.Context, logger ulogger.Logger) *Memory {
	cleanerCtx, cancel := context.WithCancel(ctx)

	m := &Memory{
		logger:  logger,
		objects: make(map[wire.InventoryVector]*entry),
		cancel:  cancel,
	}

	go m.cleaner(cleanerCtx, time.Minute)

	return m
}

func (m *Memory) cleaner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.Cleanup(ctx)
		}
	}
}

func (m *Memory) GetInventory(_ context.Context, streams ...uint64) ([]wire.InventoryVector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := util.Now()
	result := make([]wire.InventoryVector, 0, len(m.objects))

	for iv, e := range m.objects {
		if e.expires > now && matchesStream(e.stream, streams) {
			result = append(result, iv)
		}
	}

	return result, nil
}

func (m *Memory) GetMissing(_ context.Context, offer []wire.InventoryVector, _ ...uint64) ([]wire.InventoryVector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	missing := make([]wire.InventoryVector, 0, len(offer))

	for _, iv := range offer {
		if _, ok := m.objects[iv]; !ok {
			missing = append(missing, iv)
		}
	}

	return missing, nil
}

func (m *Memory) GetObject(_ context.Context, iv wire.InventoryVector) (*wire.MsgObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.objects[iv]
	if !ok {
		return nil, errors.NewNotFoundError("object %s not in inventory", iv)
	}

	return e.obj, nil
}

func (m *Memory) GetObjects(_ context.Context, stream, version, objectType int64) ([]*wire.MsgObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*wire.MsgObject

	for _, e := range m.objects {
		if stream >= 0 && int64(e.obj.Stream) != stream {
			continue
		}

		if version >= 0 && int64(e.obj.Version) != version {
			continue
		}

		if objectType >= 0 && int64(e.obj.ObjectType) != objectType {
			continue
		}

		result = append(result, e.obj)
	}

	return result, nil
}

func (m *Memory) StoreObject(_ context.Context, obj *wire.MsgObject) error {
	iv := obj.InventoryVector()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[iv]; ok {
		return nil
	}

	m.objects[iv] = &entry{
		obj:     obj,
		stream:  obj.Stream,
		expires: obj.ExpiresTime,
	}

	return nil
}

func (m *Memory) Contains(_ context.Context, iv wire.InventoryVector) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[iv]

	return ok, nil
}

func (m *Memory) Cleanup(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := util.NowShifted(-expiryGraceSeconds)

	for iv, e := range m.objects {
		if e.expires < cutoff {
			delete(m.objects, iv)
		}
	}

	return nil
}

func (m *Memory) Close(_ context.Context) error {
	m.cancel()
	return nil
}

func matchesStream(stream uint64, streams []uint64) bool {
	if len(streams) == 0 {
		return true
	}

	for _, s := range streams {
		if s == stream {
			return true
		}
	}

	return false
}
