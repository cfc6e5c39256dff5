package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/ulogger"
	"github.com/bitmessage-network/bmnode/util"
	"github.com/bitmessage-network/bmnode/wire"
)

func testObject(stream uint64, expiresIn int64, payload string) *wire.MsgObject {
	return wire.NewMsgObject([8]byte{1}, util.NowShifted(expiresIn), wire.ObjectTypeMsg, 1, stream, []byte(payload))
}

func TestStoreAndGet(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, ulogger.TestLogger{})
	defer m.Close(ctx)

	obj := testObject(1, util.Hour, "payload")
	require.NoError(t, m.StoreObject(ctx, obj))

	got, err := m.GetObject(ctx, obj.InventoryVector())
	require.NoError(t, err)
	assert.Equal(t, obj.Payload, got.Payload)

	ok, err := m.Contains(ctx, obj.InventoryVector())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStoreIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, ulogger.TestLogger{})
	defer m.Close(ctx)

	obj := testObject(1, util.Hour, "payload")
	require.NoError(t, m.StoreObject(ctx, obj))
	require.NoError(t, m.StoreObject(ctx, obj))

	inv, err := m.GetInventory(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, inv, 1)
}

func TestGetInventoryFiltersStreams(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, ulogger.TestLogger{})
	defer m.Close(ctx)

	require.NoError(t, m.StoreObject(ctx, testObject(1, util.Hour, "one")))
	require.NoError(t, m.StoreObject(ctx, testObject(2, util.Hour, "two")))
	require.NoError(t, m.StoreObject(ctx, testObject(3, util.Hour, "three")))

	inv, err := m.GetInventory(ctx, 1, 3)
	require.NoError(t, err)
	assert.Len(t, inv, 2)
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, ulogger.TestLogger{})
	defer m.Close(ctx)

	known := testObject(1, util.Hour, "known")
	require.NoError(t, m.StoreObject(ctx, known))

	unknown := testObject(1, util.Hour, "unknown")

	missing, err := m.GetMissing(ctx, []wire.InventoryVector{known.InventoryVector(), unknown.InventoryVector()}, 1)
	require.NoError(t, err)
	assert.Equal(t, []wire.InventoryVector{unknown.InventoryVector()}, missing)
}

func TestGetObjectsFilters(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, ulogger.TestLogger{})
	defer m.Close(ctx)

	msg := testObject(1, util.Hour, "msg")
	broadcast := wire.NewMsgObject([8]byte{2}, util.NowShifted(util.Hour), wire.ObjectTypeBroadcast, 5, 1, []byte("bc"))

	require.NoError(t, m.StoreObject(ctx, msg))
	require.NoError(t, m.StoreObject(ctx, broadcast))

	all, err := m.GetObjects(ctx, -1, -1, -1)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	broadcasts, err := m.GetObjects(ctx, -1, -1, int64(wire.ObjectTypeBroadcast))
	require.NoError(t, err)
	require.Len(t, broadcasts, 1)
	assert.Equal(t, wire.ObjectTypeBroadcast, broadcasts[0].ObjectType)

	none, err := m.GetObjects(ctx, 9, -1, -1)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetObjectNotFound(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, ulogger.TestLogger{})
	defer m.Close(ctx)

	_, err := m.GetObject(ctx, wire.InventoryVector{0xff})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCleanupHonorsGracePeriod(t *testing.T) {
	ctx := context.Background()
	m := New(ctx, ulogger.TestLogger{})
	defer m.Close(ctx)

	longExpired := testObject(1, -10*util.Minute, "long expired")
	justExpired := testObject(1, -1*util.Minute, "just expired")
	live := testObject(1, util.Hour, "live")

	require.NoError(t, m.StoreObject(ctx, longExpired))
	require.NoError(t, m.StoreObject(ctx, justExpired))
	require.NoError(t, m.StoreObject(ctx, live))

	require.NoError(t, m.Cleanup(ctx))

	// the long-expired object is gone, the recently expired one stays
	// through the grace period
	ok, _ := m.Contains(ctx, longExpired.InventoryVector())
	assert.False(t, ok)

	ok, _ = m.Contains(ctx, justExpired.InventoryVector())
	assert.True(t, ok)

	// but expired objects never show up in the advertised inventory
	inv, err := m.GetInventory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []wire.InventoryVector{live.InventoryVector()}, inv)
}
