package p2p

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/ordishs/go-utils/expiringmap"
	"golang.org/x/sync/errgroup"

	"github.com/bitmessage-network/bmnode/crypto"
	"github.com/bitmessage-network/bmnode/errors"
	"github.com/bitmessage-network/bmnode/settings"
	"github.com/bitmessage-network/bmnode/stores/inventory"
	"github.com/bitmessage-network/bmnode/ulogger"
	"github.com/bitmessage-network/bmnode/util"
	"github.com/bitmessage-network/bmnode/wire"
)

const (
	// dialTimeout bounds outbound connection attempts.
	dialTimeout = 10 * time.Second

	// maintenanceInterval is how often the server cleans the inventory
	// and tops up its outbound connections.
	maintenanceInterval = time.Minute
)

// Server owns the set of live connections, the process-wide map of
// requested objects, and the listener/dial loops. It is the NetworkHandler
// the connections flood-fill through.
type Server struct {
	logger   ulogger.Logger
	settings *settings.Settings

	crypto    crypto.Cryptography
	inventory inventory.Store
	registry  NodeRegistry
	listener  MessageListener
	custom    CustomHandler

	clientNonce     uint64
	commonRequested *expiringmap.ExpiringMap[wire.InventoryVector, int64]

	connectionsMu sync.RWMutex
	connections   map[*Connection]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	g      *errgroup.Group
}

func NewServer(logger ulogger.Logger, tSettings *settings.Settings, c crypto.Cryptography,
	store inventory.Store, registry NodeRegistry, listener MessageListener, custom CustomHandler) (*Server, error) {
	nonce, err := c.RandomNonce()
	if err != nil {
		return nil, errors.NewServiceError("failed to generate client nonce", err)
	}

	initPrometheusMetrics()

	return &Server{
		logger:          logger,
		settings:        tSettings,
		crypto:          c,
		inventory:       store,
		registry:        registry,
		listener:        listener,
		custom:          custom,
		clientNonce:     nonce,
		commonRequested: expiringmap.New[wire.InventoryVector, int64](requestExpiry),
		connections:     make(map[*Connection]struct{}),
	}, nil
}

// ClientNonce identifies this node instance in version messages.
func (s *Server) ClientNonce() uint64 {
	return s.clientNonce
}

// Start brings up the accept loop, connects out to known peers and runs
// periodic maintenance. It returns once the listener is running.
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.g, _ = errgroup.WithContext(s.ctx)

	addr := fmt.Sprintf("%s:%d", s.settings.P2P.ListenAddress, s.settings.P2P.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.NewServiceError("failed to listen on %s", addr, err)
	}

	s.logger.Infof("p2p server listening on %s", addr)

	s.g.Go(func() error {
		<-s.ctx.Done()
		return listener.Close()
	})

	s.g.Go(func() error {
		return s.acceptLoop(listener)
	})

	s.g.Go(func() error {
		s.maintenanceLoop()
		return nil
	})

	return nil
}

// Stop disconnects everything and waits for the loops to exit.
func (s *Server) Stop(_ context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	s.connectionsMu.Lock()
	for c := range s.connections {
		c.Disconnect()
	}
	s.connections = make(map[*Connection]struct{})
	s.connectionsMu.Unlock()

	if s.g != nil {
		_ = s.g.Wait()
	}

	return nil
}

func (s *Server) acceptLoop(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}

			s.logger.Errorf("accept failed: %v", err)

			continue
		}

		s.logger.Debugf("inbound connection from %s", conn.RemoteAddr())
		s.startConnection(ModeServer, conn, 0)
	}
}

func (s *Server) maintenanceLoop() {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.inventory.Cleanup(s.ctx); err != nil {
				s.logger.Errorf("inventory cleanup failed: %v", err)
			}

			s.reapDisconnected()
			s.connectOut()
		}
	}
}

// reapDisconnected drops connections that have shut down.
func (s *Server) reapDisconnected() {
	s.connectionsMu.Lock()
	defer s.connectionsMu.Unlock()

	for c := range s.connections {
		if c.State() == StateDisconnected {
			delete(s.connections, c)
		}
	}
}

// connectOut dials known peers until the connection budget is spent.
func (s *Server) connectOut() {
	missing := s.settings.P2P.MaxPeers - s.connectionCount()
	if missing <= 0 {
		return
	}

	var candidates []string

	if len(s.settings.P2P.ConnectPeers) > 0 {
		candidates = s.settings.P2P.ConnectPeers
	} else {
		for _, na := range s.registry.GetKnownAddresses(missing*2, s.settings.P2P.Streams...) {
			candidates = append(candidates, na.String())
		}
	}

	for _, addr := range candidates {
		if missing <= 0 {
			return
		}

		if s.isConnectedTo(addr) {
			continue
		}

		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		if err != nil {
			s.logger.Debugf("failed to dial %s: %v", addr, err)
			continue
		}

		s.startConnection(ModeClient, conn, 0)

		missing--
	}
}

func (s *Server) connectionCount() int {
	s.connectionsMu.RLock()
	defer s.connectionsMu.RUnlock()

	return len(s.connections)
}

func (s *Server) isConnectedTo(addr string) bool {
	s.connectionsMu.RLock()
	defer s.connectionsMu.RUnlock()

	for c := range s.connections {
		if c.State() != StateDisconnected && c.Node().String() == addr {
			return true
		}
	}

	return false
}

func (s *Server) startConnection(mode Mode, conn net.Conn, syncTimeout time.Duration) *Connection {
	c := newConnection(&connectionDeps{
		logger:          s.logger,
		settings:        s.settings,
		crypto:          s.crypto,
		inventory:       s.inventory,
		registry:        s.registry,
		listener:        s.listener,
		custom:          s.custom,
		handler:         s,
		clientNonce:     s.clientNonce,
		commonRequested: s.commonRequested,
	}, mode, conn, syncTimeout)

	s.connectionsMu.Lock()
	s.connections[c] = struct{}{}
	s.connectionsMu.Unlock()

	c.Start(s.ctx)

	return c
}

// Offer advertises a freshly admitted object to a random subset of the
// active connections that don't already know it.
func (s *Server) Offer(iv wire.InventoryVector) {
	s.connectionsMu.RLock()

	eligible := make([]*Connection, 0, len(s.connections))

	for c := range s.connections {
		if c.State() == StateActive && !c.KnowsOf(iv) && !c.Requested(iv) {
			eligible = append(eligible, c)
		}
	}

	s.connectionsMu.RUnlock()

	rand.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})

	fanout := s.settings.P2P.OfferFanout
	if fanout <= 0 || fanout > len(eligible) {
		fanout = len(eligible)
	}

	for _, c := range eligible[:fanout] {
		c.Offer(iv)
		prometheusP2PObjectsOffered.Inc()
	}
}

// Request takes back inventory vectors a dying connection never received.
// Removing them from the requested map lets the next inv advertising them
// trigger a fresh getdata on another connection.
func (s *Server) Request(ivs []wire.InventoryVector) {
	for _, iv := range ivs {
		s.commonRequested.Delete(iv)
	}
}

// SynchronizeWith runs a bounded inventory exchange with one peer and
// returns when it completes, times out or ctx is cancelled.
func (s *Server) SynchronizeWith(ctx context.Context, addr string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return errors.NewServiceError("failed to dial %s for synchronization", addr, err)
	}

	c := s.startConnection(ModeSync, conn, timeout)

	select {
	case <-ctx.Done():
		c.Disconnect()
		return errors.NewContextCanceledError("synchronization with %s interrupted", addr, ctx.Err())
	case <-c.Done():
		return nil
	}
}

// Stats summarizes the server state for diagnostics.
func (s *Server) Stats() map[string]interface{} {
	s.connectionsMu.RLock()
	defer s.connectionsMu.RUnlock()

	active := 0

	for c := range s.connections {
		if c.State() == StateActive {
			active++
		}
	}

	return map[string]interface{}{
		"connections": len(s.connections),
		"active":      active,
		"timestamp":   util.Now(),
	}
}
