package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ncbedge/edgecore/internal/httputil"
	"github.com/ncbedge/edgecore/internal/platform/wifi"
)

// connectDelay matches the original web-based provisioning flow's
// timing: the HTTP response must reach the browser before the
// interface drops out from under the connection that carried it.
const connectDelay = 2 * time.Second

// ProvisioningManager is the subset of wifimanager.Manager the
// provisioning endpoints need.
type ProvisioningManager interface {
	ConnectToWifi(ctx context.Context, ssid, password, ncbip string) (bool, string)
	StartHotspot(ctx context.Context, ssid, password string) (bool, string)
	StopHotspot(ctx context.Context) (bool, string)
	IsHotspotActive() bool
}

// ScanSnapshot is the subset of wifi.ScanCache the /networks endpoint
// needs.
type ScanSnapshot interface {
	All() map[string]wifi.ScanEntry
}

type connectRequest struct {
	SSID     string `json:"SSID"`
	Password string `json:"Password"`
	NCBIP    string `json:"NCBIP"`
}

type startRequest struct {
	SSID     string `json:"SSID"`
	Password string `json:"Password"`
}

// RegisterProvisioningRoutes wires the five §4.I endpoints onto mux
// under /api/Admin/Provision.
func RegisterProvisioningRoutes(mux *http.ServeMux, mgr ProvisioningManager, scan ScanSnapshot) {
	const prefix = "/api/Admin/Provision"

	mux.HandleFunc("GET "+prefix+"/networks", func(w http.ResponseWriter, r *http.Request) {
		httputil.Provisioned(w, scan.All(), "")
	})

	mux.HandleFunc("POST "+prefix+"/connect", func(w http.ResponseWriter, r *http.Request) {
		var req connectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.ProvisionFailed(w, "invalid JSON body")
			return
		}
		if req.SSID == "" || req.NCBIP == "" {
			httputil.ProvisionFailed(w, "SSID and NCBIP are required")
			return
		}

		// Respond immediately — the Wi-Fi transition tears down the
		// client's own connection to this server.
		httputil.Provisioned(w, nil, "connecting")

		go func() {
			time.Sleep(connectDelay)
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			if ok, msg := mgr.ConnectToWifi(ctx, req.SSID, req.Password, req.NCBIP); !ok {
				slog.Warn("api: background connect failed", "ssid", req.SSID, "msg", msg)
			}
		}()
	})

	mux.HandleFunc("GET "+prefix+"/status", func(w http.ResponseWriter, r *http.Request) {
		httputil.Provisioned(w, map[string]any{
			"IsActive": mgr.IsHotspotActive(),
		}, "")
	})

	mux.HandleFunc("POST "+prefix+"/start", func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		json.NewDecoder(r.Body).Decode(&req)

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()
		ok, msg := mgr.StartHotspot(ctx, req.SSID, req.Password)
		if !ok {
			httputil.ProvisionFailed(w, msg)
			return
		}
		httputil.Provisioned(w, nil, msg)
	})

	mux.HandleFunc("POST "+prefix+"/stop", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()
		ok, msg := mgr.StopHotspot(ctx)
		if !ok {
			httputil.ProvisionFailed(w, msg)
			return
		}
		httputil.Provisioned(w, nil, msg)
	})
}
