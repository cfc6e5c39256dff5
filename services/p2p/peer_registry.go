package p2p

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/bitmessage-network/bmnode/wire"
)

// addressTTL is how long a peer address stays known without being
// re-announced.
const addressTTL = 3 * time.Hour

// PeerRegistry is the in-memory NodeRegistry. Addresses expire unless peers
// keep announcing them, which keeps dead nodes from accumulating.
type PeerRegistry struct {
	addresses *ttlcache.Cache[string, *wire.NetworkAddress]
}

func NewPeerRegistry() *PeerRegistry {
	r := &PeerRegistry{
		addresses: ttlcache.New[string, *wire.NetworkAddress](
			ttlcache.WithTTL[string, *wire.NetworkAddress](addressTTL),
		),
	}

	go r.addresses.Start()

	return r
}

func (r *PeerRegistry) GetKnownAddresses(limit int, streams ...uint64) []*wire.NetworkAddress {
	result := make([]*wire.NetworkAddress, 0, limit)

	for _, item := range r.addresses.Items() {
		if len(result) >= limit {
			break
		}

		na := item.Value()

		if matchesStream(uint64(na.Stream), streams) {
			result = append(result, na)
		}
	}

	return result
}

func (r *PeerRegistry) OfferAddresses(addresses []*wire.NetworkAddress) {
	for _, na := range addresses {
		if na == nil || na.Port == 0 {
			continue
		}

		r.addresses.Set(na.Key(), na, ttlcache.DefaultTTL)
	}
}

func (r *PeerRegistry) Stop() {
	r.addresses.Stop()
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
