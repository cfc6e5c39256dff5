package p2p

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmessage-network/bmnode/util"
	"github.com/bitmessage-network/bmnode/wire"
)

func registryAddress(ip string, port uint16, stream uint32) *wire.NetworkAddress {
	return wire.NewNetworkAddress(net.ParseIP(ip), port, stream, util.Now())
}

func TestOfferedAddressesBecomeKnown(t *testing.T) {
	r := NewPeerRegistry()
	defer r.Stop()

	na := registryAddress("10.0.0.1", 8444, 1)
	r.OfferAddresses([]*wire.NetworkAddress{na})

	known := r.GetKnownAddresses(10, 1)
	require.Len(t, known, 1)
	assert.Equal(t, na.Key(), known[0].Key())
}

func TestGetKnownAddressesFiltersByStream(t *testing.T) {
	r := NewPeerRegistry()
	defer r.Stop()

	r.OfferAddresses([]*wire.NetworkAddress{
		registryAddress("10.0.0.1", 8444, 1),
		registryAddress("10.0.0.2", 8444, 2),
		registryAddress("10.0.0.3", 8444, 3),
	})

	known := r.GetKnownAddresses(10, 2)
	require.Len(t, known, 1)
	assert.Equal(t, uint32(2), known[0].Stream)
}

func TestGetKnownAddressesHonorsLimit(t *testing.T) {
	r := NewPeerRegistry()
	defer r.Stop()

	for i := 1; i <= 5; i++ {
		r.OfferAddresses([]*wire.NetworkAddress{
			registryAddress("10.0.0."+string(rune('0'+i)), 8444, 1),
		})
	}

	known := r.GetKnownAddresses(3, 1)
	assert.Len(t, known, 3)
}

func TestInvalidAddressesAreIgnored(t *testing.T) {
	r := NewPeerRegistry()
	defer r.Stop()

	r.OfferAddresses([]*wire.NetworkAddress{
		nil,
		registryAddress("10.0.0.1", 0, 1),
	})

	assert.Empty(t, r.GetKnownAddresses(10, 1))
}

func TestReofferUpdatesAddress(t *testing.T) {
	r := NewPeerRegistry()
	defer r.Stop()

	na := registryAddress("10.0.0.1", 8444, 1)
	r.OfferAddresses([]*wire.NetworkAddress{na})

	updated := registryAddress("10.0.0.1", 8444, 1)
	updated.Time = na.Time + 100
	r.OfferAddresses([]*wire.NetworkAddress{updated})

	known := r.GetKnownAddresses(10, 1)
	require.Len(t, known, 1)
	assert.Equal(t, updated.Time, known[0].Time)
}
