package wifi_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/ncbedge/edgecore/internal/platform/executil"
	"github.com/ncbedge/edgecore/internal/platform/wifi"
)

func TestAddClientProfile_SetsPSKWhenPasswordGiven(t *testing.T) {
	runner := &executil.Mock{}
	w := wifi.NewRealControl("wlan0", runner)

	if err := w.AddClientProfile("ncbedge-client", "HomeNet", "s3cr3tpw"); err != nil {
		t.Fatalf("AddClientProfile() error: %v", err)
	}

	runner.AssertCalled(t, "nmcli con add type wifi ifname wlan0 con-name ncbedge-client autoconnect yes ssid HomeNet")
	runner.AssertCalled(t, "nmcli con modify ncbedge-client wifi-sec.key-mgmt wpa-psk wifi-sec.psk s3cr3tpw")
}

func TestAddClientProfile_SkipsPSKWhenOpenNetwork(t *testing.T) {
	runner := &executil.Mock{}
	w := wifi.NewRealControl("wlan0", runner)

	if err := w.AddClientProfile("ncbedge-client", "OpenCafe", ""); err != nil {
		t.Fatalf("AddClientProfile() error: %v", err)
	}

	if runner.CallCount("nmcli con modify ncbedge-client wifi-sec.key-mgmt wpa-psk wifi-sec.psk") != 0 {
		t.Error("expected no PSK modify call for an open network")
	}
	for _, c := range runner.Calls {
		if strings.Contains(c.String(), "wifi-sec.psk") {
			t.Errorf("unexpected PSK call for an open network: %q", c.String())
		}
	}
}

func TestActivateProfile_FailureWrapsCombinedOutput(t *testing.T) {
	runner := &executil.Mock{}
	runner.Expect("nmcli con up ncbedge-client", executil.MockResult{
		Output: []byte("Error: Connection activation failed"),
		Err:    errors.New("exit status 1"),
	})

	w := wifi.NewRealControl("wlan0", runner)
	err := w.ActivateProfile("ncbedge-client")
	if err == nil {
		t.Fatal("expected error on activation failure")
	}
}

func TestDeleteProfile_NeverErrors(t *testing.T) {
	runner := &executil.Mock{}
	runner.Expect("nmcli con delete ghost-profile", executil.MockResult{Err: errors.New("no such connection")})

	w := wifi.NewRealControl("wlan0", runner)
	if err := w.DeleteProfile("ghost-profile"); err != nil {
		t.Errorf("DeleteProfile should swallow a not-found error, got %v", err)
	}
}

func TestActiveConnectionSSID_MatchesInterfaceAndType(t *testing.T) {
	runner := &executil.Mock{}
	runner.Expect("nmcli -t -f NAME,DEVICE,TYPE con show --active", executil.MockResult{
		Output: []byte("Wired connection 1:eth0:ethernet\nHomeNet:wlan0:wifi\n"),
	})

	w := wifi.NewRealControl("wlan0", runner)
	ssid, err := w.ActiveConnectionSSID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ssid != "HomeNet" {
		t.Errorf("ActiveConnectionSSID() = %q, want %q", ssid, "HomeNet")
	}
}

func TestAddHotspotProfile_ConfiguresAPMode(t *testing.T) {
	runner := &executil.Mock{}
	w := wifi.NewRealControl("wlan0", runner)

	if err := w.AddHotspotProfile("ncbedge-hotspot", "NCB-Edge-1234", "password1", "10.42.0.1"); err != nil {
		t.Fatalf("AddHotspotProfile() error: %v", err)
	}

	runner.AssertCalled(t, "nmcli con modify ncbedge-hotspot 802-11-wireless.mode ap")
	runner.AssertCalled(t, "nmcli con modify ncbedge-hotspot ipv4.method shared")
	runner.AssertCalled(t, "nmcli con modify ncbedge-hotspot ipv4.addresses 10.42.0.1/24")
}

func TestMockControl_SatisfiesHostControlLifecycle(t *testing.T) {
	m := wifi.NewMockControl("wlan0")

	if m.RadioEnabled() != true {
		t.Fatal("expected radio enabled by default")
	}
	if err := m.AddClientProfile("c1", "HomeNet", "pw"); err != nil {
		t.Fatalf("AddClientProfile: %v", err)
	}
	if err := m.ActivateProfile("c1"); err != nil {
		t.Fatalf("ActivateProfile: %v", err)
	}
	ssid, err := m.ActiveConnectionSSID()
	if err != nil || ssid != "HomeNet" {
		t.Fatalf("ActiveConnectionSSID() = (%q, %v), want (HomeNet, nil)", ssid, err)
	}
}

func TestMockControl_FailDirectConnectInjection(t *testing.T) {
	m := wifi.NewMockControl("wlan0")
	m.FailDirectConnect = map[string]bool{"BadNet": true}

	if err := m.DirectConnect("BadNet", "wrong"); err == nil {
		t.Fatal("expected injected DirectConnect failure")
	}
	if err := m.DirectConnect("GoodNet", "right"); err != nil {
		t.Errorf("unexpected error for non-injected SSID: %v", err)
	}
}
