package p2p

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmessage-network/bmnode/settings"
	"github.com/bitmessage-network/bmnode/stores/inventory/memory"
	"github.com/bitmessage-network/bmnode/ulogger"
	"github.com/bitmessage-network/bmnode/wire"
)

func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	defer l.Close()

	return l.Addr().(*net.TCPAddr).Port
}

type serverHarness struct {
	server   *Server
	inv      *memory.Memory
	listener *stubListener
	settings *settings.Settings
}

func newServerHarness(t *testing.T) *serverHarness {
	t.Helper()

	tSettings := testSettings()
	tSettings.P2P.ListenAddress = "127.0.0.1"
	tSettings.P2P.Port = freePort(t)

	inv := memory.New(context.Background(), ulogger.TestLogger{})
	listener := &stubListener{}
	registry := NewPeerRegistry()

	// seed the stub's nonce counter with the port so that every harness
	// server gets its own client nonce and peers are not taken for self
	stub := &stubCrypto{nextNonce: uint64(tSettings.P2P.Port)}

	server, err := NewServer(ulogger.TestLogger{}, tSettings, stub, inv, registry, listener, nil)
	require.NoError(t, err)

	require.NoError(t, server.Start(context.Background()))

	t.Cleanup(func() {
		_ = server.Stop(context.Background())
		_ = inv.Close(context.Background())
		registry.Stop()
	})

	return &serverHarness{
		server:   server,
		inv:      inv,
		listener: listener,
		settings: tSettings,
	}
}

func (h *serverHarness) addr() string {
	return fmt.Sprintf("127.0.0.1:%d", h.settings.P2P.Port)
}

func TestRequestReassignsOutstandingObjects(t *testing.T) {
	h := newServerHarness(t)

	iv := wire.InventoryVector{0xaa}
	h.server.commonRequested.Set(iv, 1)

	h.server.Request([]wire.InventoryVector{iv})

	_, ok := h.server.commonRequested.Get(iv)
	assert.False(t, ok)
}

func TestSynchronizeFetchesRemoteInventory(t *testing.T) {
	remote := newServerHarness(t)
	local := newServerHarness(t)

	obj := testObject("synchronize me", 1)
	require.NoError(t, remote.inv.StoreObject(context.Background(), obj))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	require.NoError(t, local.server.SynchronizeWith(ctx, remote.addr(), 10*time.Second))

	ok, err := local.inv.Contains(context.Background(), obj.InventoryVector())
	require.NoError(t, err)
	assert.True(t, ok, "synchronized inventory must contain the remote object")
}

func TestSynchronizePushesLocalInventory(t *testing.T) {
	remote := newServerHarness(t)
	local := newServerHarness(t)

	obj := testObject("push me", 1)
	require.NoError(t, local.inv.StoreObject(context.Background(), obj))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	require.NoError(t, local.server.SynchronizeWith(ctx, remote.addr(), 10*time.Second))

	require.Eventually(t, func() bool {
		ok, _ := remote.inv.Contains(context.Background(), obj.InventoryVector())
		return ok
	}, 5*time.Second, 50*time.Millisecond)
}

func TestServerStats(t *testing.T) {
	h := newServerHarness(t)

	stats := h.server.Stats()
	assert.Equal(t, 0, stats["connections"])
	assert.Equal(t, 0, stats["active"])
}
