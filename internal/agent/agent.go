// Package agent owns process lifecycle: starting every long-running
// service concurrently and waiting for a clean shutdown signal.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	_ "net/http/pprof"

	"github.com/ncbedge/edgecore/internal/config"
	"github.com/ncbedge/edgecore/internal/httputil"
)

// Service is anything the agent runs for the life of the process.
// Start must block until ctx is cancelled and return nil on a clean
// shutdown.
type Service interface {
	Start(ctx context.Context) error
}

// ServiceFunc adapts a Run(ctx) error method value to Service, the way
// http.HandlerFunc adapts a plain function to http.Handler.
type ServiceFunc func(ctx context.Context) error

func (f ServiceFunc) Start(ctx context.Context) error { return f(ctx) }

type Agent struct {
	cfg      *config.Config
	services []Service
}

func New(cfg *config.Config, services []Service) *Agent {
	return &Agent{cfg: cfg, services: services}
}

// Start runs every service concurrently and blocks until ctx is
// cancelled, then waits for all services to return.
func (a *Agent) Start(ctx context.Context) {
	slog.Info("agent: starting services", "count", len(a.services))

	var wg sync.WaitGroup
	for _, svc := range a.services {
		svc := svc
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Start(ctx); err != nil {
				slog.Error("agent: service failed to start", "err", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("agent: shutdown signal received, waiting for services")
	wg.Wait()
}

// ProfilerService exposes net/http/pprof on localhost only — reachable
// over an SSH tunnel, never on the hotspot or LAN interface.
type ProfilerService struct {
	Port int
}

func (p *ProfilerService) Start(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", p.Port)
	srv := &http.Server{Addr: addr}
	slog.Info("agent: pprof listening (SSH tunnel required)", "addr", addr)
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// HotspotState and UpstreamLink are the narrow views HealthHandler
// needs into wifimanager and upstream without importing either
// package's full surface.
type HotspotState interface {
	IsHotspotActive() bool
}

type UpstreamLink interface {
	Established() bool
}

// HealthHandler reports liveness plus the two states an operator cares
// about most: is the device stuck in provisioning mode, and is it
// talking to the upstream.
func HealthHandler(hotspot HotspotState, upstream UpstreamLink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OK(w, map[string]any{
			"status":          "ok",
			"hotspotActive":   hotspot.IsHotspotActive(),
			"upstreamLinked":  upstream.Established(),
			"timestamp":       time.Now().UTC().Format(time.RFC3339),
		})
	}
}
