package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ncbedge/edgecore/internal/agent"
	"github.com/ncbedge/edgecore/internal/api"
	"github.com/ncbedge/edgecore/internal/btprovision"
	"github.com/ncbedge/edgecore/internal/captiveportal"
	"github.com/ncbedge/edgecore/internal/config"
	"github.com/ncbedge/edgecore/internal/logger"
	"github.com/ncbedge/edgecore/internal/platform/executil"
	"github.com/ncbedge/edgecore/internal/platform/probe"
	"github.com/ncbedge/edgecore/internal/platform/rsasig"
	"github.com/ncbedge/edgecore/internal/platform/wifi"
	"github.com/ncbedge/edgecore/internal/upstream"
	"github.com/ncbedge/edgecore/internal/wifimanager"
)

const scanRefreshInterval = 15 * time.Second

func main() {
	devMode := flag.Bool("dev", false, "Run in development mode (mock hardware)")
	flag.Parse()

	logger.Init(*devMode)

	cfg := config.Load(*devMode)
	slog.Info("edgecore: config loaded",
		"deviceID", cfg.DeviceID,
		"ownerID", cfg.OwnerID,
		"dev", cfg.IsDev,
		"dataDir", cfg.DataDir,
		"iface", cfg.Interface,
	)

	signer, err := rsasig.Load(cfg.PrivateKeyPath())
	if err != nil {
		log.Fatalf("rsasig: failed to load device key: %v", err)
	}

	shellCmd := shellCommanderFor(cfg)

	hostControl := wifi.New(cfg.IsArm64(), cfg.Interface)
	scanCache := wifi.NewScanCache(cfg.Interface, shellCmd)

	mgr := wifimanager.New(wifimanager.Deps{
		Interface:       cfg.Interface,
		GatewayIP:       cfg.HotspotGatewayIP,
		DefaultPassword: cfg.HotspotDefaultPass,
		SettingsPath:    cfg.SettingsPath,
		DeviceID:        cfg.DeviceID,
		Control:         hostControl,
		Scan:            scanCache,
		Probe:           probe.New(),
		ShellCommander:  shellCmd,
	})

	btAlias := "NCB-Edge-" + cfg.DeviceID
	btUUID := config.DeriveBluetoothUUID(cfg.DeviceID)
	btSvc := btprovision.New(shellCmd, cfg.Interface, btAlias, btUUID, signer, mgr, cfg.DeviceID, cfg.OwnerID)

	link := upstreamLinkFor(cfg, mgr)
	poller := upstream.New(link, signer, mgr, hostControl, cfg.DeviceID, cfg.OwnerID, cfg.SettingsPath)

	coordinator := &captiveportal.Coordinator{
		AllowHotspot:  cfg.AllowHotspot,
		MissThreshold: cfg.HotspotMissThreshold,
		Hotspot:       mgr,
		Upstream:      poller,
		Misses:        poller,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", agent.HealthHandler(mgr, poller))
	api.RegisterProvisioningRoutes(mux, mgr, scanCache)

	apiSvc := api.New(api.Config{
		Port:    5000,
		DataDir: cfg.DataDir,
		IsDev:   cfg.IsDev,
	}, withCaptivePortalRedirect(mgr, cfg.HotspotGatewayIP, mux))

	a := agent.New(cfg, []agent.Service{
		agent.ServiceFunc(func(ctx context.Context) error { scanCache.Run(ctx, scanRefreshInterval); return nil }),
		agent.ServiceFunc(btSvc.Run),
		agent.ServiceFunc(poller.Run),
		agent.ServiceFunc(coordinator.Run),
		apiSvc,
		&agent.ProfilerService{Port: cfg.PprofPort},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Start(ctx)
	slog.Info("edgecore: shutdown complete")
}

// shellCommanderFor picks the live shell runner on the arm64 gateway
// image and the fake-output runner everywhere else, matching wifi.New's
// own hardware gate.
func shellCommanderFor(cfg *config.Config) executil.Runner {
	if cfg.IsArm64() {
		return executil.Real{}
	}
	return executil.NewDevRunner()
}

// upstreamLinkFor returns a StubLink in dev mode, since there is no
// real upstream signalling endpoint to poll from a developer's
// workstation.
func upstreamLinkFor(cfg *config.Config, mgr *wifimanager.Manager) upstream.Link {
	if cfg.IsDev {
		return upstream.StubLink{}
	}
	return upstream.NewHTTPLink(cfg.UpstreamURL, func() bool { return !mgr.IsHotspotActive() })
}

// withCaptivePortalRedirect wraps mux so that while the hotspot is
// active, captive-portal detection probes are redirected to the
// provisioning page instead of reaching the normal routes.
func withCaptivePortalRedirect(mgr *wifimanager.Manager, gatewayIP string, mux *http.ServeMux) *http.ServeMux {
	wrapped := http.NewServeMux()
	wrapped.Handle("/", captiveportal.Middleware(mgr, gatewayIP, mux))
	return wrapped
}
