// Whitebox test (package wifimanager, not wifimanager_test) because Deps
// takes the unexported shellCommander interface and tests need to
// substitute a stub reachability prober.
package wifimanager

import (
	"context"
	"testing"
	"time"

	"github.com/ncbedge/edgecore/internal/config"
	"github.com/ncbedge/edgecore/internal/platform/executil"
	"github.com/ncbedge/edgecore/internal/platform/wifi"
)

// stubProber reports whatever reachable is set to, avoiding a dependency
// on real ICMP privileges inside the test runner.
type stubProber struct{ reachable bool }

func (s stubProber) Probe(ctx context.Context, ip string) (bool, error) {
	return s.reachable, nil
}

func newTestManager(t *testing.T) (*Manager, *wifi.MockControl, *wifi.ScanCache, *executil.Mock) {
	t.Helper()
	shell := &executil.Mock{}
	control := wifi.NewMockControl("wlan0")
	scan := wifi.NewScanCache("wlan0", shell)

	m := New(Deps{
		Interface:       "wlan0",
		GatewayIP:       "10.42.0.1",
		DefaultPassword: "defaultpw1",
		SettingsPath:    t.TempDir() + "/appsettings.json",
		DeviceID:        "device-test-1",
		Control:         control,
		Scan:            scan,
		Probe:           stubProber{reachable: true},
		ShellCommander:  shell,
	})
	return m, control, scan, shell
}

// seedScan injects a network into the scan cache via a faked nmcli
// refresh.
func seedScan(t *testing.T, shell *executil.Mock, scan *wifi.ScanCache, ssid string) {
	t.Helper()
	shell.Expect("nmcli radio wifi", executil.MockResult{Output: []byte("enabled\n")})
	shell.Expect(
		"nmcli -t -f SSID,SIGNAL,SECURITY,FREQ dev wifi list --rescan yes",
		executil.MockResult{Output: []byte(ssid + ":80:WPA2:2412\n")},
	)
	scan.Refresh()
}

func TestConnectToWifi_HappyPath(t *testing.T) {
	m, _, scan, shell := newTestManager(t)
	seedScan(t, shell, scan, "HomeNet")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ok, msg := m.ConnectToWifi(ctx, "HomeNet", "password1", "10.42.0.1")
	if !ok {
		t.Fatalf("connect failed: %s", msg)
	}

	snap := m.Snapshot()
	if snap.HotspotActive {
		t.Error("expected hotspot inactive after a successful connect")
	}
	if snap.CurrentTarget.SSID != "HomeNet" {
		t.Errorf("CurrentTarget.SSID = %q, want HomeNet", snap.CurrentTarget.SSID)
	}
	if snap.CurrentTarget.NCBIP != "10.42.0.1" {
		t.Errorf("CurrentTarget.NCBIP = %q, want 10.42.0.1", snap.CurrentTarget.NCBIP)
	}
}

func TestConnectToWifi_UnknownSSIDFails(t *testing.T) {
	m, _, scan, shell := newTestManager(t)
	seedScan(t, shell, scan, "HomeNet")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, msg := m.ConnectToWifi(ctx, "GhostNet", "password1", "10.42.0.1")
	if ok {
		t.Fatal("expected connect to an unscanned SSID to fail")
	}
	if msg == "" {
		t.Error("expected a non-empty failure message naming nearby SSIDs")
	}
}

func TestConnectToWifi_InvalidNCBIPFails(t *testing.T) {
	m, _, scan, shell := newTestManager(t)
	seedScan(t, shell, scan, "HomeNet")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, _ := m.ConnectToWifi(ctx, "HomeNet", "password1", "not-an-ip")
	if ok {
		t.Fatal("expected connect with a malformed NCBIP to fail")
	}
}

func TestConnectToWifi_UnreachableGatewayFailsAndDoesNotPersist(t *testing.T) {
	m, _, scan, shell := newTestManager(t)
	m.probe = stubProber{reachable: false}
	seedScan(t, shell, scan, "HomeNet")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, _ := m.ConnectToWifi(ctx, "HomeNet", "password1", "10.42.0.1")
	if ok {
		t.Fatal("expected connect to fail when the gateway is unreachable")
	}
	if m.Snapshot().CurrentTarget.SSID != "" {
		t.Error("expected no CurrentTarget to be published on a failed connect")
	}
	if ip, _ := config.ReadNCBIP(m.settingsPath); ip != "" {
		t.Errorf("persisted NCBIP = %q, want none after a failed connect", ip)
	}
}

func TestStartStopHotspot_Idempotent(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ok, _ := m.StartHotspot(ctx, "TestHotspot", "hotspotpw")
	if !ok {
		t.Fatal("expected hotspot to start")
	}
	if !m.IsHotspotActive() {
		t.Fatal("expected IsHotspotActive() true after StartHotspot")
	}

	ok, msg := m.StartHotspot(ctx, "TestHotspot", "hotspotpw")
	if !ok {
		t.Fatalf("expected idempotent StartHotspot to succeed, got %q", msg)
	}

	ok, _ = m.StopHotspot(ctx)
	if !ok {
		t.Fatal("expected hotspot to stop")
	}
	if m.IsHotspotActive() {
		t.Fatal("expected IsHotspotActive() false after StopHotspot")
	}

	ok, msg = m.StopHotspot(ctx)
	if !ok {
		t.Fatalf("expected idempotent StopHotspot to succeed, got %q", msg)
	}
}

func TestStartHotspot_DerivesSSIDWhenEmpty(t *testing.T) {
	m, control, _, _ := newTestManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ok, msg := m.StartHotspot(ctx, "", "")
	if !ok {
		t.Fatalf("expected hotspot to start with derived SSID, got %q", msg)
	}

	snap := m.Snapshot()
	if snap.HotspotSSID == "" {
		t.Fatal("expected a non-empty derived hotspot SSID")
	}
	active, _ := control.ActiveConnectionSSID()
	if active != snap.HotspotSSID {
		t.Errorf("control active SSID = %q, want %q", active, snap.HotspotSSID)
	}

	m.StopHotspot(ctx)
}

func TestStartHotspot_ShortPasswordFallsBackToDefault(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ok, msg := m.StartHotspot(ctx, "TestHotspot", "short")
	if !ok {
		t.Fatalf("expected hotspot to start despite a too-short password, got %q", msg)
	}
	m.StopHotspot(ctx)
}

func TestConnectToWifi_StopsHotspotFirstWhenActive(t *testing.T) {
	m, _, scan, shell := newTestManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ok, msg := m.StartHotspot(ctx, "TestHotspot", "hotspotpw")
	if !ok {
		t.Fatalf("setup: StartHotspot failed: %s", msg)
	}

	seedScan(t, shell, scan, "HomeNet")

	ok, msg = m.ConnectToWifi(ctx, "HomeNet", "password1", "10.42.0.1")
	if !ok {
		t.Fatalf("expected connect to tear down the hotspot and succeed, got %q", msg)
	}
	if m.IsHotspotActive() {
		t.Error("expected hotspot inactive after connecting to a client network")
	}
}

func TestConnectToWifi_RollsBackToHotspotOnFailure(t *testing.T) {
	m, _, scan, shell := newTestManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ok, msg := m.StartHotspot(ctx, "TestHotspot", "hotspotpw")
	if !ok {
		t.Fatalf("setup: StartHotspot failed: %s", msg)
	}

	// HomeNet is never seeded into the scan cache, so connectLocked fails
	// at step 3 and ConnectToWifi must re-raise the hotspot (step 9).
	_ = scan
	_ = shell
	ok, _ = m.ConnectToWifi(ctx, "HomeNet", "password1", "10.42.0.1")
	if ok {
		t.Fatal("expected connect to an unscanned SSID to fail")
	}
	if !m.IsHotspotActive() {
		t.Error("expected hotspot to be re-raised after a failed connect attempt")
	}
}
