package p2p

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"github.com/ordishs/go-utils/expiringmap"

	"github.com/bitmessage-network/bmnode/crypto"
	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/settings"
	"github.com/bitmessage-network/bmnode/stores/inventory"
	"github.com/bitmessage-network/bmnode/ulogger"
	"github.com/bitmessage-network/bmnode/util"
	"github.com/bitmessage-network/bmnode/wire"
)

// Mode says who opened the connection and how it behaves. Sync connections
// exchange inventories once and terminate instead of staying up.
type Mode int

const (
	ModeServer Mode = iota
	ModeClient
	ModeSync
)

func (m Mode) String() string {
	switch m {
	case ModeServer:
		return "server"
	case ModeClient:
		return "client"
	case ModeSync:
		return "sync"
	default:
		return "unknown"
	}
}

const (
	StateConnecting   = "connecting"
	StateActive       = "active"
	StateDisconnected = "disconnected"

	eventActivate   = "activate"
	eventDisconnect = "disconnect"
)

const (
	// ivCacheExpiry is how long a connection remembers which vectors the
	// peer knows about.
	ivCacheExpiry = 5 * time.Minute

	// requestExpiry bounds how long an entry stays in the process-wide
	// requested-objects map if the object never arrives.
	requestExpiry = 10 * time.Minute

	// sendingQueueSize bounds the outbound FIFO.
	sendingQueueSize = 1000

	// inventoryChunkSize is the largest inv frame we send.
	inventoryChunkSize = wire.MaxInvPerMessage

	// syncReadIdle is the read-silence window after which an active sync
	// connection with an empty send queue counts as finished.
	syncReadIdle = time.Second
)

// Connection drives the per-peer state machine: the handshake while
// Connecting, the inv/getdata/object/addr exchange while Active. A
// connection is owned by exactly one Server and shares only the inventory,
// the registry and the requested-objects map with its siblings.
type Connection struct {
	logger   ulogger.Logger
	settings *settings.Settings

	mode Mode
	conn net.Conn
	node *wire.NetworkAddress
	host *wire.NetworkAddress

	crypto    crypto.Cryptography
	inventory inventory.Store
	registry  NodeRegistry
	listener  MessageListener
	custom    CustomHandler
	handler   NetworkHandler

	clientNonce     uint64
	commonRequested *expiringmap.ExpiringMap[wire.InventoryVector, int64]

	ivCache      *expiringmap.ExpiringMap[wire.InventoryVector, int64]
	requestedMu  sync.Mutex
	requested    map[wire.InventoryVector]struct{}
	sendingQueue chan wire.Message

	machine   *fsm.FSM
	machineMu sync.Mutex

	peerNonce      uint64
	peerVersion    int32
	peerStreams    []uint64
	verackSent     bool
	verackReceived bool

	lastObjectTime atomic.Int64

	syncDeadline     time.Time
	syncReadDeadline time.Time

	ctx            context.Context
	cancel         context.CancelFunc
	writeMu        sync.Mutex
	disconnectOnce sync.Once
}

// connectionDeps bundles everything a connection shares with its server.
type connectionDeps struct {
	logger          ulogger.Logger
	settings        *settings.Settings
	crypto          crypto.Cryptography
	inventory       inventory.Store
	registry        NodeRegistry
	listener        MessageListener
	custom          CustomHandler
	handler         NetworkHandler
	clientNonce     uint64
	commonRequested *expiringmap.ExpiringMap[wire.InventoryVector, int64]
}

func newConnection(deps *connectionDeps, mode Mode, conn net.Conn, syncTimeout time.Duration) *Connection {
	node, err := wire.NewNetworkAddressFromAddr(conn.RemoteAddr(), 1, util.Now())
	if err != nil {
		node = wire.NewNetworkAddress(net.IPv6zero, 0, 1, util.Now())
	}

	c := &Connection{
		logger:   deps.logger,
		settings: deps.settings,

		mode: mode,
		conn: conn,
		node: node,
		host: wire.NewNetworkAddress(net.IPv6zero, uint16(deps.settings.P2P.Port), 1, 0),

		crypto:    deps.crypto,
		inventory: deps.inventory,
		registry:  deps.registry,
		listener:  deps.listener,
		custom:    deps.custom,
		handler:   deps.handler,

		clientNonce:     deps.clientNonce,
		commonRequested: deps.commonRequested,

		ivCache:      expiringmap.New[wire.InventoryVector, int64](ivCacheExpiry),
		requested:    make(map[wire.InventoryVector]struct{}),
		sendingQueue: make(chan wire.Message, sendingQueueSize),
	}

	if mode == ModeSync && syncTimeout > 0 {
		c.syncDeadline = time.Now().Add(syncTimeout)
	}

	c.machine = fsm.NewFSM(
		StateConnecting,
		fsm.Events{
			{Name: eventActivate, Src: []string{StateConnecting}, Dst: StateActive},
			{Name: eventDisconnect, Src: []string{StateConnecting, StateActive}, Dst: StateDisconnected},
		},
		fsm.Callbacks{},
	)

	return c
}

// Start launches the read and write loops. Client and sync connections
// open the handshake by sending their version immediately.
func (c *Connection) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)

	initPrometheusMetrics()
	prometheusP2PConnectionsOpened.Inc()

	go c.writeLoop()
	go c.readLoop()
}

// Done is closed once the connection is shutting down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Connection) Mode() Mode {
	return c.mode
}

func (c *Connection) Node() *wire.NetworkAddress {
	return c.node
}

func (c *Connection) State() string {
	c.machineMu.Lock()
	defer c.machineMu.Unlock()

	return c.machine.Current()
}

func (c *Connection) Streams() []uint64 {
	return c.peerStreams
}

// KnowsOf reports whether the peer recently advertised or was offered the
// vector.
func (c *Connection) KnowsOf(iv wire.InventoryVector) bool {
	_, ok := c.ivCache.Get(iv)
	return ok
}

// Requested reports whether this connection is awaiting the object.
func (c *Connection) Requested(iv wire.InventoryVector) bool {
	c.requestedMu.Lock()
	defer c.requestedMu.Unlock()

	_, ok := c.requested[iv]

	return ok
}

func (c *Connection) LastObjectTime() int64 {
	return c.lastObjectTime.Load()
}

// Offer enqueues a single-vector inv for the peer and remembers that it
// now knows about it.
func (c *Connection) Offer(iv wire.InventoryVector) {
	c.enqueue(wire.NewMsgInv([]wire.InventoryVector{iv}))
	c.ivCache.Set(iv, util.Now())
}

// Disconnect transitions to Disconnected, hands outstanding requests back
// for reassignment and unblocks the IO loops.
func (c *Connection) Disconnect() {
	c.disconnectOnce.Do(func() {
		c.machineMu.Lock()
		_ = c.machine.Event(context.Background(), eventDisconnect)
		c.machineMu.Unlock()

		c.requestedMu.Lock()
		outstanding := make([]wire.InventoryVector, 0, len(c.requested))
		for iv := range c.requested {
			outstanding = append(outstanding, iv)
		}
		c.requested = make(map[wire.InventoryVector]struct{})
		c.requestedMu.Unlock()

		if c.handler != nil {
			c.handler.Request(outstanding)
		}

		if c.cancel != nil {
			c.cancel()
		}

		_ = c.conn.Close()

		prometheusP2PConnectionsClosed.Inc()
		c.logger.Infof("disconnected from %s (%s)", c.node, c.mode)
	})
}

func (c *Connection) versionMessage() *wire.MsgVersion {
	return wire.NewMsgVersion(*c.node, *c.host, c.clientNonce, c.settings.P2P.UserAgent, c.settings.P2P.Streams, util.Now())
}

// enqueue appends to the sending FIFO. A full queue counts as a dead peer.
func (c *Connection) enqueue(msg wire.Message) {
	select {
	case c.sendingQueue <- msg:
	default:
		c.logger.Warnf("sending queue for %s full, disconnecting", c.node)
		c.Disconnect()
	}
}

// send writes a frame immediately, bypassing the queue. Handshake frames
// use this so they cannot get stuck behind queued inventory.
func (c *Connection) send(msg wire.Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := wire.WriteMessage(c.conn, msg, c.settings.P2P.Magic); err != nil {
		c.logger.Errorf("failed to send %s to %s: %v", msg.Command(), c.node, err)
		c.Disconnect()
	}
}

func (c *Connection) writeLoop() {
	// whoever dialed opens the handshake
	if c.mode == ModeClient || c.mode == ModeSync {
		c.send(c.versionMessage())
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.sendingQueue:
			c.send(msg)
		}
	}
}

func (c *Connection) readLoop() {
	defer c.Disconnect()

	for {
		if c.ctx.Err() != nil {
			return
		}

		if c.mode == ModeSync {
			_ = c.conn.SetReadDeadline(time.Now().Add(syncReadIdle))
		}

		msg, err := wire.ReadMessage(c.conn, c.settings.P2P.Magic)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() && c.mode == ModeSync {
				if c.syncFinished(nil) {
					c.logger.Infof("synchronization with %s finished", c.node)
					return
				}

				continue
			}

			if c.ctx.Err() == nil && c.State() != StateDisconnected {
				c.logger.Warnf("read from %s failed: %v", c.node, err)
			}

			return
		}

		c.handleMessage(msg)

		if c.syncFinished(msg) {
			c.logger.Infof("synchronization with %s finished", c.node)
			return
		}
	}
}

// handleMessage dispatches by state: data-plane only once Active, the
// handshake commands before that, nothing after disconnect.
func (c *Connection) handleMessage(msg wire.Message) {
	switch c.State() {
	case StateActive:
		c.receiveDataMessage(msg)
	case StateDisconnected:
		// drop
	default:
		c.handleCommand(msg)
	}
}

func (c *Connection) receiveDataMessage(msg wire.Message) {
	switch m := msg.(type) {
	case *wire.MsgInv:
		c.receiveInv(m)
	case *wire.MsgGetData:
		c.receiveGetData(m)
	case *wire.MsgObject:
		c.receiveObject(m)
	case *wire.MsgAddr:
		c.receiveAddr(m)
	default:
		c.logger.Warnf("unexpected '%s' from active peer %s, disconnecting", msg.Command(), c.node)
		c.Disconnect()
	}
}

func (c *Connection) handleCommand(msg wire.Message) {
	switch m := msg.(type) {
	case *wire.MsgVersion:
		c.handleVersion(m)
	case *wire.MsgVerAck:
		if c.verackSent {
			c.activate()
		}

		c.verackReceived = true
	case *wire.MsgCustom:
		response := c.handleCustom(m)
		if response == nil {
			c.Disconnect()
		} else {
			c.send(response)
		}
	default:
		c.logger.Warnf("expected 'version' or 'verack' from %s but got '%s', disconnecting", c.node, msg.Command())
		c.Disconnect()
	}
}

func (c *Connection) handleVersion(version *wire.MsgVersion) {
	switch {
	case version.Nonce == c.clientNonce:
		c.logger.Infof("tried to connect to self, disconnecting")
		c.Disconnect()

	case version.Version >= wire.ProtocolVersion:
		c.peerNonce = version.Nonce
		c.peerVersion = version.Version
		c.peerStreams = version.Streams

		c.verackSent = true
		c.send(wire.NewMsgVerAck())

		if c.mode == ModeServer {
			c.send(c.versionMessage())
		}

		if c.verackReceived {
			c.activate()
		}

	default:
		c.logger.Infof("peer %s speaks unsupported version %d, disconnecting", c.node, version.Version)
		c.Disconnect()
	}
}

func (c *Connection) activate() {
	c.machineMu.Lock()
	err := c.machine.Event(context.Background(), eventActivate)
	c.machineMu.Unlock()

	if err != nil {
		return
	}

	c.logger.Infof("established connection with %s (%s)", c.node, c.mode)
	c.node.Time = util.Now()

	if c.mode != ModeSync {
		c.sendAddresses()
		c.registry.OfferAddresses([]*wire.NetworkAddress{c.node})
	}

	c.sendInventory()
}

func (c *Connection) sendAddresses() {
	addresses := c.registry.GetKnownAddresses(wire.MaxAddrPerMessage, c.peerStreams...)
	c.enqueue(wire.NewMsgAddr(addresses))
}

func (c *Connection) sendInventory() {
	ivs, err := c.inventory.GetInventory(c.ctx, c.peerStreams...)
	if err != nil {
		c.logger.Errorf("failed to load inventory for %s: %v", c.node, err)
		return
	}

	for i := 0; i < len(ivs); i += inventoryChunkSize {
		end := i + inventoryChunkSize
		if end > len(ivs) {
			end = len(ivs)
		}

		c.enqueue(wire.NewMsgInv(ivs[i:end]))
	}
}

func (c *Connection) receiveInv(inv *wire.MsgInv) {
	prometheusP2PInvReceived.Inc()

	now := util.Now()
	for _, iv := range inv.Inventory {
		c.ivCache.Set(iv, now)
	}

	missing, err := c.inventory.GetMissing(c.ctx, inv.Inventory, c.peerStreams...)
	if err != nil {
		c.logger.Errorf("failed to compute missing objects: %v", err)
		return
	}

	// skip whatever some other connection is already fetching
	toRequest := make([]wire.InventoryVector, 0, len(missing))

	for _, iv := range missing {
		if _, ok := c.commonRequested.Get(iv); !ok {
			toRequest = append(toRequest, iv)
		}
	}

	c.logger.Debugf("received inventory with %d elements from %s, %d missing", len(inv.Inventory), c.node, len(toRequest))

	if len(toRequest) == 0 {
		return
	}

	c.requestedMu.Lock()
	for _, iv := range toRequest {
		c.requested[iv] = struct{}{}
	}
	c.requestedMu.Unlock()

	for _, iv := range toRequest {
		c.commonRequested.Set(iv, now)
	}

	c.enqueue(wire.NewMsgGetData(toRequest))
}

func (c *Connection) receiveGetData(getData *wire.MsgGetData) {
	prometheusP2PGetDataReceived.Inc()

	for _, iv := range getData.Inventory {
		obj, err := c.inventory.GetObject(c.ctx, iv)
		if err != nil {
			if !errors.Is(err, errors.ErrNotFound) {
				c.logger.Errorf("failed to load object %s: %v", iv, err)
			}

			continue
		}

		c.enqueue(obj)
	}
}

func (c *Connection) receiveObject(obj *wire.MsgObject) {
	prometheusP2PObjectsReceived.Inc()

	iv := obj.InventoryVector()

	c.requestedMu.Lock()
	delete(c.requested, iv)
	c.requestedMu.Unlock()

	// whatever happens to the object, it is no longer in flight
	defer c.commonRequested.Delete(iv)

	if known, err := c.inventory.Contains(c.ctx, iv); err == nil && known {
		c.logger.Debugf("received object %s - already in inventory", iv)
		return
	}

	c.listener.Receive(c.ctx, obj)

	if err := c.crypto.CheckProofOfWork(obj, c.settings.P2P.NonceTrialsPerByte, c.settings.P2P.ExtraBytes); err != nil {
		prometheusP2PPowFailures.Inc()
		c.logger.Warnf("dropping object %s from %s: %v", iv, c.node, err)

		return
	}

	if err := c.inventory.StoreObject(c.ctx, obj); err != nil {
		c.logger.Errorf("stream %d, object type %s: %v", obj.Stream, obj.ObjectType, err)
		return
	}

	prometheusP2PObjectsStored.Inc()

	// offer the object to some random nodes so it spreads through the
	// network
	c.handler.Offer(iv)

	c.lastObjectTime.Store(util.Now())
}

func (c *Connection) receiveAddr(addr *wire.MsgAddr) {
	prometheusP2PAddressesReceived.Add(float64(len(addr.Addresses)))
	c.logger.Debugf("received %d addresses from %s", len(addr.Addresses), c.node)
	c.registry.OfferAddresses(addr.Addresses)
}

func (c *Connection) handleCustom(msg *wire.MsgCustom) wire.Message {
	if c.custom == nil {
		return nil
	}

	return c.custom.Handle(c.ctx, msg)
}

// syncFinished decides whether a sync-mode connection is done: cancelled,
// past its deadline, or active with an empty send queue and a second of
// read silence. Any activity pushes the idle window out.
func (c *Connection) syncFinished(msg wire.Message) bool {
	if c.mode != ModeSync {
		return false
	}

	if c.ctx.Err() != nil {
		return true
	}

	if !c.syncDeadline.IsZero() && time.Now().After(c.syncDeadline) {
		c.logger.Infof("synchronization with %s timed out", c.node)
		return true
	}

	if c.State() != StateActive {
		return false
	}

	if len(c.sendingQueue) > 0 || msg != nil || c.syncReadDeadline.IsZero() {
		c.syncReadDeadline = time.Now().Add(syncReadIdle)
		return false
	}

	return time.Now().After(c.syncReadDeadline)
}
