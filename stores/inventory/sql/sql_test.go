package sql

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/ulogger"
	"github.com/bitmessage-network/bmnode/util"
	"github.com/bitmessage-network/bmnode/wire"
)

func testStore(t *testing.T) *SQL {
	t.Helper()

	storeURL, err := url.Parse("sqlitememory:///inventory")
	require.NoError(t, err)

	s, err := New(context.Background(), ulogger.TestLogger{}, storeURL)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close(context.Background()) })

	return s
}

func testObject(stream uint64, expiresIn int64, payload string) *wire.MsgObject {
	return wire.NewMsgObject([8]byte{1}, util.NowShifted(expiresIn), wire.ObjectTypeMsg, 1, stream, []byte(payload))
}

func TestStoreAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	obj := testObject(1, util.Hour, "payload")
	require.NoError(t, s.StoreObject(ctx, obj))

	got, err := s.GetObject(ctx, obj.InventoryVector())
	require.NoError(t, err)

	assert.Equal(t, obj.Nonce, got.Nonce)
	assert.Equal(t, obj.ExpiresTime, got.ExpiresTime)
	assert.Equal(t, obj.ObjectType, got.ObjectType)
	assert.Equal(t, obj.Payload, got.Payload)
	assert.Equal(t, obj.InventoryVector(), got.InventoryVector())
}

func TestStoreDuplicateIsIgnored(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	obj := testObject(1, util.Hour, "payload")
	require.NoError(t, s.StoreObject(ctx, obj))
	require.NoError(t, s.StoreObject(ctx, obj))

	inv, err := s.GetInventory(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, inv, 1)
}

func TestGetInventoryExcludesExpired(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	require.NoError(t, s.StoreObject(ctx, testObject(1, util.Hour, "live")))
	require.NoError(t, s.StoreObject(ctx, testObject(1, -util.Minute, "expired")))

	inv, err := s.GetInventory(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, inv, 1)
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	known := testObject(1, util.Hour, "known")
	require.NoError(t, s.StoreObject(ctx, known))

	unknown := testObject(1, util.Hour, "unknown")

	missing, err := s.GetMissing(ctx, []wire.InventoryVector{known.InventoryVector(), unknown.InventoryVector()}, 1)
	require.NoError(t, err)
	assert.Equal(t, []wire.InventoryVector{unknown.InventoryVector()}, missing)
}

func TestGetObjectsWildcards(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	require.NoError(t, s.StoreObject(ctx, testObject(1, util.Hour, "one")))
	require.NoError(t, s.StoreObject(ctx, wire.NewMsgObject([8]byte{9}, util.NowShifted(util.Hour), wire.ObjectTypePubkey, 3, 2, []byte("pk"))))

	all, err := s.GetObjects(ctx, -1, -1, -1)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pubkeys, err := s.GetObjects(ctx, 2, 3, int64(wire.ObjectTypePubkey))
	require.NoError(t, err)
	require.Len(t, pubkeys, 1)
	assert.Equal(t, wire.ObjectTypePubkey, pubkeys[0].ObjectType)
}

func TestCleanupRemovesLongExpired(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	longExpired := testObject(1, -10*util.Minute, "long expired")
	justExpired := testObject(1, -util.Minute, "just expired")

	require.NoError(t, s.StoreObject(ctx, longExpired))
	require.NoError(t, s.StoreObject(ctx, justExpired))

	require.NoError(t, s.Cleanup(ctx))

	ok, err := s.Contains(ctx, longExpired.InventoryVector())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Contains(ctx, justExpired.InventoryVector())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetObjectNotFound(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	_, err := s.GetObject(ctx, wire.InventoryVector{0xab})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
