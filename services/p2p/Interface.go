package p2p

import (
	"context"

	"github.com/bitmessage-network/bmnode/wire"
)

// MessageListener receives every object a connection admits, before the
// proof-of-work check. Implementations must never block for long and must
// swallow their own errors; a listener failure never takes the connection
// down.
type MessageListener interface {
	Receive(ctx context.Context, obj *wire.MsgObject)
}

// CustomHandler answers custom messages. Returning nil tells the
// connection to disconnect the peer.
type CustomHandler interface {
	Handle(ctx context.Context, msg *wire.MsgCustom) wire.Message
}

// NodeRegistry is the set of known peer addresses. Implementations must be
// safe for concurrent use.
type NodeRegistry interface {
	// GetKnownAddresses returns up to limit addresses serving any of the
	// given streams.
	GetKnownAddresses(limit int, streams ...uint64) []*wire.NetworkAddress

	// OfferAddresses merges freshly learned peers, making them available
	// to subsequent GetKnownAddresses calls.
	OfferAddresses(addresses []*wire.NetworkAddress)
}

// NetworkHandler is the connection's view of the server owning it.
type NetworkHandler interface {
	// Offer advertises a freshly admitted object to a random subset of
	// the other connections.
	Offer(iv wire.InventoryVector)

	// Request hands back inventory vectors a dying connection never
	// received, so other connections will re-request them.
	Request(ivs []wire.InventoryVector)
}

// listenerFunc adapts a plain function to MessageListener.
type listenerFunc func(ctx context.Context, obj *wire.MsgObject)

func (f listenerFunc) Receive(ctx context.Context, obj *wire.MsgObject) {
	f(ctx, obj)
}

// ListenerFunc wraps f as a MessageListener.
func ListenerFunc(f func(ctx context.Context, obj *wire.MsgObject)) MessageListener {
	return listenerFunc(f)
}
