package settings

import (
	"strconv"

	"github.com/bitmessage-network/bmnode/wire"
)

func NewSettings() *Settings {
	streamsRaw := getMultiString("p2p_streams", "1")

	streams := make([]uint64, 0, len(streamsRaw))

	for _, s := range streamsRaw {
		if s == "" {
			continue
		}

		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			panic("invalid stream number [" + s + "]")
		}

		streams = append(streams, v)
	}

	connectPeers := make([]string, 0)

	for _, p := range getMultiString("p2p_connectPeers", "") {
		if p != "" {
			connectPeers = append(connectPeers, p)
		}
	}

	return &Settings{
		ClientName: getString("clientName", "bmnode"),
		DataFolder: getString("dataFolder", "data"),
		LogLevel:   getString("log_level", "INFO"),

		P2P: P2PSettings{
			ListenAddress: getString("p2p_listenAddress", "0.0.0.0"),
			Port:          getInt("p2p_port", 8444),
			Magic:         uint32(getInt("p2p_magic", int(wire.MainNetMagic))),
			UserAgent:     getString("p2p_userAgent", "/bmnode:0.1.0/"),
			Streams:       streams,
			MaxPeers:      getInt("p2p_maxPeers", 25),
			ConnectPeers:  connectPeers,

			NonceTrialsPerByte: uint64(getInt("pow_nonceTrialsPerByte", 1000)),
			ExtraBytes:         uint64(getInt("pow_extraBytes", 1000)),

			OfferFanout: getInt("p2p_offerFanout", 8),
		},

		Inventory: StoreSettings{
			URL: getURL("inventory_store", "sqlite:///inventory"),
		},

		Messages: StoreSettings{
			URL: getURL("messages_store", "sqlite:///messages"),
		},
	}
}
