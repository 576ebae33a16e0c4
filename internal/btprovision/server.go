package btprovision

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ncbedge/edgecore/internal/platform/rsasig"
	"github.com/ncbedge/edgecore/internal/wifimanager"
)

const (
	watchdogInterval = 60 * time.Second
	hygieneInterval  = 5 * time.Minute
)

// Connector is the subset of wifimanager.Manager the provisioning
// protocol needs to act on a 10050 Provision Wi-Fi message.
type Connector interface {
	ConnectToWifi(ctx context.Context, ssid, password, ncbip string) (bool, string)
}

// Server is the Bluetooth RFCOMM provisioning endpoint: it advertises a
// serial profile, accepts one client at a time, and dispatches the small
// JSON protocol defined in the per-client message loop.
type Server struct {
	adapter *adapterControl
	signer  *rsasig.Signer
	conn    Connector

	did string
	uid string

	listenFD int
}

// New constructs a Server. alias is the adapter's advertised name.
// serviceUUID is the derived Bluetooth service UUID; it is stored on the
// adapter control but neither registered in the SDP record nor
// advertised.
func New(cmd commander, hciName, alias, serviceUUID string, signer *rsasig.Signer, conn Connector, did, uid string) *Server {
	return &Server{
		adapter: newAdapterControl(cmd, hciName, alias, serviceUUID),
		signer:  signer,
		conn:    conn,
		did:     did,
		uid:     uid,
	}
}

// Run performs bring-up, then serves forever until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.adapter.wipeAllPairings()
	s.adapter.bringUp(ctx)

	fd, err := s.bindWithRetry()
	if err != nil {
		return err
	}
	s.listenFD = fd
	defer unix.Close(fd)

	go s.watchdogLoop(ctx)
	go s.hygieneLoop(ctx)

	return s.acceptLoop(ctx)
}

// bindWithRetry opens the listening socket, and if bind fails with
// "address in use", forces adapter cleanup and retries exactly once.
func (s *Server) bindWithRetry() (int, error) {
	fd, err := listenSocket(rfcommChannel)
	if err == nil {
		return fd, nil
	}
	slog.Warn("btprovision: initial bind failed, forcing cleanup and retrying once", "err", err)
	s.adapter.forceCleanup(context.Background())
	return listenSocket(rfcommChannel)
}

func (s *Server) watchdogLoop(ctx context.Context) {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.adapter.isDiscoverable() {
				s.adapter.reassertDiscoverable()
			}
		}
	}
}

func (s *Server) hygieneLoop(ctx context.Context) {
	ticker := time.NewTicker(hygieneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.adapter.sweepStalePairings()
		}
	}
}

// acceptLoop serves one client at a time — provisioning is rare and
// serial, so there is no benefit to concurrent sessions and meaningful
// simplicity in forbidding them. Accept itself is a blocking syscall
// outside Go's net poller, so this loop must run on a goroutine that can
// tie up an OS thread without starving the rest of the supervisor.
func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		clientFD, peer, err := acceptClient(s.listenFD)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("btprovision: accept failed", "err", err)
			time.Sleep(time.Second)
			continue
		}

		slog.Info("btprovision: client connected", "peer", peer)
		s.serveClient(ctx, clientFD, peer)
		unix.Close(clientFD)
		slog.Info("btprovision: client disconnected", "peer", peer)
	}
}
