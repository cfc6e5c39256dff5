package p2p

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusP2PConnectionsOpened  prometheus.Counter
	prometheusP2PConnectionsClosed  prometheus.Counter
	prometheusP2PInvReceived        prometheus.Counter
	prometheusP2PGetDataReceived    prometheus.Counter
	prometheusP2PObjectsReceived    prometheus.Counter
	prometheusP2PObjectsStored      prometheus.Counter
	prometheusP2PObjectsOffered     prometheus.Counter
	prometheusP2PPowFailures        prometheus.Counter
	prometheusP2PAddressesReceived  prometheus.Counter
)

var prometheusMetricsInitOnce sync.Once

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(func() {
		prometheusP2PConnectionsOpened = promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "p2p",
				Name:      "connections_opened",
				Help:      "Number of peer connections opened",
			},
		)

		prometheusP2PConnectionsClosed = promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "p2p",
				Name:      "connections_closed",
				Help:      "Number of peer connections closed",
			},
		)

		prometheusP2PInvReceived = promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "p2p",
				Name:      "inv_received",
				Help:      "Number of inv messages received",
			},
		)

		prometheusP2PGetDataReceived = promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "p2p",
				Name:      "getdata_received",
				Help:      "Number of getdata messages received",
			},
		)

		prometheusP2PObjectsReceived = promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "p2p",
				Name:      "objects_received",
				Help:      "Number of object messages received",
			},
		)

		prometheusP2PObjectsStored = promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "p2p",
				Name:      "objects_stored",
				Help:      "Number of objects admitted to the inventory",
			},
		)

		prometheusP2PObjectsOffered = promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "p2p",
				Name:      "objects_offered",
				Help:      "Number of objects offered to peers",
			},
		)

		prometheusP2PPowFailures = promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "p2p",
				Name:      "pow_failures",
				Help:      "Number of objects dropped for insufficient proof of work",
			},
		)

		prometheusP2PAddressesReceived = promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "p2p",
				Name:      "addresses_received",
				Help:      "Number of addresses received from peers",
			},
		)
	})
}
