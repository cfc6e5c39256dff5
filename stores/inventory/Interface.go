// Package inventory defines the content-addressed store of currently valid
// objects. Connections offer everything in it to freshly-handshaked peers
// and use it to deduplicate what they request.
package inventory

import (
	"context"

	"github.com/bitmessage-network/bmnode/wire"
)

// Store is the inventory contract. Implementations must be safe for
// concurrent use; every connection talks to the same store.
//
// Objects are kept in their raw wire form. For any vector returned by
// GetInventory, GetObject yields a decodable object whose expiry is still
// in the future at the moment of the query.
type Store interface {
	// GetInventory returns the vectors of all unexpired objects in the
	// given streams.
	GetInventory(ctx context.Context, streams ...uint64) ([]wire.InventoryVector, error)

	// GetMissing filters offer down to the vectors not known locally.
	GetMissing(ctx context.Context, offer []wire.InventoryVector, streams ...uint64) ([]wire.InventoryVector, error)

	// GetObject returns the object behind a vector, or
	// errors.ErrNotFound.
	GetObject(ctx context.Context, iv wire.InventoryVector) (*wire.MsgObject, error)

	// GetObjects returns objects filtered by stream, version and object
	// type; negative values are wildcards.
	GetObjects(ctx context.Context, stream, version, objectType int64) ([]*wire.MsgObject, error)

	// StoreObject inserts an object keyed by its vector. Duplicates are
	// silently ignored.
	StoreObject(ctx context.Context, obj *wire.MsgObject) error

	// Contains reports whether the vector is known.
	Contains(ctx context.Context, iv wire.InventoryVector) (bool, error)

	// Cleanup removes objects that expired more than five minutes ago.
	// The grace period keeps us from re-requesting objects we just
	// evicted from peers that still advertise them.
	Cleanup(ctx context.Context) error

	Close(ctx context.Context) error
}

// ExpiryGraceSeconds is how long past expiry an object is kept before
// Cleanup removes it.
const ExpiryGraceSeconds = 300
