package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bitmessage-network/bmnode/crypto"
	"github.com/bitmessage-network/bmnode/model"
	"github.com/bitmessage-network/bmnode/services/p2p"
	"github.com/bitmessage-network/bmnode/settings"
	"github.com/bitmessage-network/bmnode/stores/inventory"
	"github.com/bitmessage-network/bmnode/stores/messages"
	"github.com/bitmessage-network/bmnode/ulogger"
	"github.com/bitmessage-network/bmnode/wire"
)

// Name used by build script for the binaries. (Please keep on single line)
const progname = "bmnode"

// Version & commit strings injected at build with -ldflags -X...
var version string
var commit string

func init() {
	gocore.SetInfo(progname, version, commit)
}

func main() {
	syncPeer := flag.String("sync", "", "synchronize once with the given peer (host:port) and exit")
	syncTimeout := flag.Duration("syncTimeout", time.Minute, "bound for -sync")
	newIdentity := flag.Bool("newIdentity", false, "generate a fresh identity at startup")
	statsAddress := flag.String("stats", "", "listen address for prometheus metrics and pprof")
	help := flag.Bool("help", false, "Show help")

	flag.Parse()

	if help != nil && *help {
		fmt.Println("usage: bmnode [options]")
		fmt.Println("where options are:")
		fmt.Println("")
		fmt.Println("    -sync=<host:port>")
		fmt.Println("          synchronize inventories with one peer, then exit")
		fmt.Println("")
		fmt.Println("    -syncTimeout=<duration>")
		fmt.Println("          upper bound for -sync (default 1m)")
		fmt.Println("")
		fmt.Println("    -newIdentity=<1|0>")
		fmt.Println("          generate a fresh identity at startup")
		fmt.Println("")
		fmt.Println("    -stats=<host:port>")
		fmt.Println("          serve prometheus metrics and pprof on this address")

		return
	}

	tSettings := settings.NewSettings()
	logger := ulogger.New(progname, ulogger.WithLevel(tSettings.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	cryptography := crypto.NewDefault()

	inventoryStore, err := inventory.NewStore(ctx, logger.New("inv"), tSettings.Inventory.URL)
	if err != nil {
		logger.Fatalf("failed to open inventory store: %v", err)
	}

	messageStore, err := messages.NewStore(ctx, logger.New("msgs"), tSettings.Messages.URL)
	if err != nil {
		logger.Fatalf("failed to open message store: %v", err)
	}

	registry := p2p.NewPeerRegistry()

	// the dispatcher needs the server for flood-fill and the server needs
	// the dispatcher as its listener, so wire them up in two steps
	var dispatcher *p2p.Dispatcher

	server, err := p2p.NewServer(logger.New("p2p"), tSettings, cryptography, inventoryStore, registry,
		p2p.ListenerFunc(func(ctx context.Context, obj *wire.MsgObject) {
			dispatcher.Receive(ctx, obj)
		}), nil)
	if err != nil {
		logger.Fatalf("failed to create p2p server: %v", err)
	}

	dispatcher = p2p.NewDispatcher(logger.New("dispatch"), tSettings, cryptography, inventoryStore, messageStore, server)

	if *newIdentity {
		identity, err := model.NewIdentity(cryptography, 4, tSettings.P2P.Streams[0],
			tSettings.P2P.NonceTrialsPerByte, tSettings.P2P.ExtraBytes)
		if err != nil {
			logger.Fatalf("failed to generate identity: %v", err)
		}

		dispatcher.AddIdentity(identity)
		logger.Infof("generated identity %s", identity.Address)
	}

	if *statsAddress != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())

			if err := http.ListenAndServe(*statsAddress, nil); err != nil {
				logger.Errorf("stats server failed: %v", err)
			}
		}()
	}

	if err := server.Start(ctx); err != nil {
		logger.Fatalf("failed to start p2p server: %v", err)
	}

	if *syncPeer != "" {
		if err := server.SynchronizeWith(ctx, *syncPeer, *syncTimeout); err != nil {
			logger.Errorf("synchronization failed: %v", err)
		}
	} else {
		select {
		case <-interrupt:
		case <-ctx.Done():
		}
	}

	logger.Infof("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	_ = server.Stop(shutdownCtx)
	_ = inventoryStore.Close(shutdownCtx)
	_ = messageStore.Close(shutdownCtx)
	registry.Stop()
}
