package settings

import "net/url"

type P2PSettings struct {
	ListenAddress string
	Port          int
	Magic         uint32
	UserAgent     string
	Streams       []uint64
	MaxPeers      int

	// ConnectPeers, when set, replaces discovery: the node only dials
	// these addresses.
	ConnectPeers []string

	// NonceTrialsPerByte and ExtraBytes are the network-wide
	// proof-of-work difficulty parameters. Senders and verifiers must
	// agree on them.
	NonceTrialsPerByte uint64
	ExtraBytes         uint64

	// OfferFanout is how many peers a freshly admitted object is
	// offered to.
	OfferFanout int
}

type StoreSettings struct {
	URL *url.URL
}

type Settings struct {
	ClientName string
	DataFolder string
	LogLevel   string

	P2P       P2PSettings
	Inventory StoreSettings
	Messages  StoreSettings
}
