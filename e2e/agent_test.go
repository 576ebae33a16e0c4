// Package e2e wires the same components cmd/edgecore/main.go wires, but
// against mocks, and drives the result through an httptest server. It
// exercises the provisioning HTTP surface end to end without building or
// running a real binary.
package e2e_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ncbedge/edgecore/internal/agent"
	"github.com/ncbedge/edgecore/internal/api"
	"github.com/ncbedge/edgecore/internal/platform/wifi"
)

type stubHotspot struct{ active bool }

func (s *stubHotspot) IsHotspotActive() bool { return s.active }
func (s *stubHotspot) StartHotspot(ctx context.Context, ssid, password string) (bool, string) {
	s.active = true
	return true, "hotspot started"
}
func (s *stubHotspot) StopHotspot(ctx context.Context) (bool, string) {
	s.active = false
	return true, "hotspot stopped"
}
func (s *stubHotspot) ConnectToWifi(ctx context.Context, ssid, password, ncbip string) (bool, string) {
	return true, "connected"
}

type stubUpstream struct{}

func (stubUpstream) Established() bool { return false }

func buildTestMux(t *testing.T) *http.ServeMux {
	t.Helper()

	hotspot := &stubHotspot{}
	scan := wifi.NewScanCache("wlan0", nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", agent.HealthHandler(hotspot, stubUpstream{}))
	api.RegisterProvisioningRoutes(mux, hotspot, scan)
	return mux
}

func TestHealthEndpoint(t *testing.T) {
	srv := httptest.NewServer(buildTestMux(t))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status         string `json:"status"`
		HotspotActive  bool   `json:"hotspotActive"`
		UpstreamLinked bool   `json:"upstreamLinked"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.HotspotActive {
		t.Error("expected hotspot inactive on fresh start")
	}
	if body.UpstreamLinked {
		t.Error("expected upstream unlinked with stub link")
	}
}

func TestProvisioningStartStopRoundTrip(t *testing.T) {
	srv := httptest.NewServer(buildTestMux(t))
	defer srv.Close()

	statusResp, err := http.Get(srv.URL + "/api/Admin/Provision/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer statusResp.Body.Close()

	var env struct {
		Success bool `json:"success"`
		Data    struct {
			IsActive bool `json:"IsActive"`
		} `json:"data"`
	}
	json.NewDecoder(statusResp.Body).Decode(&env)
	if !env.Success {
		t.Fatal("expected success=true from /status")
	}
	if env.Data.IsActive {
		t.Error("expected hotspot inactive before /start")
	}

	startResp, err := http.Post(srv.URL+"/api/Admin/Provision/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /start: %v", err)
	}
	defer startResp.Body.Close()
	if startResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /start, got %d", startResp.StatusCode)
	}

	stopResp, err := http.Post(srv.URL+"/api/Admin/Provision/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /stop: %v", err)
	}
	defer stopResp.Body.Close()
	if stopResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /stop, got %d", stopResp.StatusCode)
	}
}

func TestNetworksEndpointReturnsEmptySnapshotBeforeScan(t *testing.T) {
	srv := httptest.NewServer(buildTestMux(t))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/Admin/Provision/networks")
	if err != nil {
		t.Fatalf("GET /networks: %v", err)
	}
	defer resp.Body.Close()

	var env struct {
		Success bool                      `json:"success"`
		Data    map[string]wifi.ScanEntry `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success {
		t.Fatal("expected success=true from /networks")
	}
	if len(env.Data) != 0 {
		t.Errorf("expected empty scan snapshot, got %d entries", len(env.Data))
	}
}
