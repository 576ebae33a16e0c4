// Blackbox test: package wifi_test exercises ScanCache through
// executil.Mock to avoid real nmcli calls.
package wifi_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ncbedge/edgecore/internal/platform/executil"
	"github.com/ncbedge/edgecore/internal/platform/wifi"
)

func TestRefresh_ParsesNmcliOutput(t *testing.T) {
	runner := &executil.Mock{}
	runner.Expect("nmcli radio wifi", executil.MockResult{Output: []byte("enabled\n")})
	runner.Expect(
		"nmcli -t -f SSID,SIGNAL,SECURITY,FREQ dev wifi list --rescan yes",
		executil.MockResult{Output: []byte("HomeNet:85:WPA2:2412\nOfficeWifi:72:WPA3:5180\n")},
	)

	cache := wifi.NewScanCache("wlan0", runner)
	cache.Refresh()

	if !cache.IsAvailable("HomeNet") {
		t.Error("expected HomeNet to be available after refresh")
	}
	entry, ok := cache.Info("OfficeWifi")
	if !ok {
		t.Fatal("expected OfficeWifi entry")
	}
	if entry.Signal != 72 || entry.Security != "WPA3" || entry.FreqMHz != 5180 {
		t.Errorf("OfficeWifi entry = %+v, want Signal=72 Security=WPA3 FreqMHz=5180", entry)
	}
}

func TestRefresh_RadioDisabled_ClearsCache(t *testing.T) {
	runner := &executil.Mock{}
	runner.Expect("nmcli radio wifi", executil.MockResult{Output: []byte("disabled\n")})

	cache := wifi.NewScanCache("wlan0", runner)
	cache.Refresh()

	if cache.IsAvailable("Anything") {
		t.Error("expected empty cache when radio is disabled")
	}
	if len(cache.All()) != 0 {
		t.Errorf("expected 0 entries, got %d", len(cache.All()))
	}
}

func TestRefresh_NmcliFails_ClearsCache(t *testing.T) {
	runner := &executil.Mock{}
	runner.Expect("nmcli radio wifi", executil.MockResult{Output: []byte("enabled\n")})
	runner.Expect(
		"nmcli -t -f SSID,SIGNAL,SECURITY,FREQ dev wifi list --rescan yes",
		executil.MockResult{Err: errors.New("nmcli: command not found")},
	)

	cache := wifi.NewScanCache("wlan0", runner)
	cache.Refresh()

	if len(cache.All()) != 0 {
		t.Errorf("expected empty cache on scan failure, got %d entries", len(cache.All()))
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	runner := &executil.Mock{}
	runner.Expect("nmcli radio wifi", executil.MockResult{Output: []byte("enabled\n")})
	runner.Expect(
		"nmcli -t -f SSID,SIGNAL,SECURITY,FREQ dev wifi list --rescan yes",
		executil.MockResult{Output: []byte("")},
	)

	cache := wifi.NewScanCache("wlan0", runner)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		cache.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
