package wifi

import (
	"fmt"
	"log/slog"
	"strings"
)

// commanderRW is the subset of executil.Runner real control needs for
// mutating calls, beyond the read-only commander used by ScanCache.
type commanderRW interface {
	Run(name string, args ...string) error
	Output(name string, args ...string) ([]byte, error)
	CombinedOutput(name string, args ...string) ([]byte, error)
}

// HostControl is the narrow interface wifimanager drives directly for
// every mutating Wi-Fi operation. RealControl implements it over nmcli;
// MockControl implements it for tests and dev mode.
type HostControl interface {
	RadioEnabled() bool
	ActiveConnectionSSID() (string, error)
	InterfaceSSID() (string, error)

	DeleteProfile(name string) error
	AddClientProfile(name, ssid, password string) error
	ActivateProfile(name string) error
	DirectConnect(ssid, password string) error

	AddHotspotProfile(name, ssid, password, gatewayIP string) error
	DeactivateProfile(name string) error
}

// RealControl drives nmcli on real hardware.
type RealControl struct {
	Interface string
	cmd       commanderRW
}

// NewRealControl constructs a RealControl bound to iface, using cmd for
// every shelled-out call.
func NewRealControl(iface string, cmd commanderRW) *RealControl {
	return &RealControl{Interface: iface, cmd: cmd}
}

func (w *RealControl) RadioEnabled() bool {
	out, err := w.cmd.Output("nmcli", "radio", "wifi")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "enabled"
}

// ActiveConnectionSSID queries nmcli's active-connection table — one of
// the two independent checks §4.E step 6 requires.
func (w *RealControl) ActiveConnectionSSID() (string, error) {
	out, err := w.cmd.Output("nmcli", "-t", "-f", "NAME,DEVICE,TYPE", "con", "show", "--active")
	if err != nil {
		return "", fmt.Errorf("wifi: active connection query failed: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			continue
		}
		if parts[1] == w.Interface && parts[2] == "wifi" {
			return parts[0], nil
		}
	}
	return "", nil
}

// InterfaceSSID queries the interface's own notion of the current SSID,
// independent of the active-connection table — §4.E step 6's second
// check.
func (w *RealControl) InterfaceSSID() (string, error) {
	out, err := w.cmd.Output("iwgetid", w.Interface, "-r")
	if err != nil {
		return "", fmt.Errorf("wifi: iwgetid failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (w *RealControl) DeleteProfile(name string) error {
	// nmcli returns non-zero when the profile doesn't exist; that's not
	// a failure from this package's perspective.
	w.cmd.Run("nmcli", "con", "delete", name)
	return nil
}

func (w *RealControl) AddClientProfile(name, ssid, password string) error {
	args := []string{"con", "add",
		"type", "wifi",
		"ifname", w.Interface,
		"con-name", name,
		"autoconnect", "yes",
		"ssid", ssid,
	}
	if err := w.cmd.Run("nmcli", args...); err != nil {
		return fmt.Errorf("wifi: add profile %q failed: %w", name, err)
	}
	if password != "" {
		if err := w.cmd.Run("nmcli", "con", "modify", name,
			"wifi-sec.key-mgmt", "wpa-psk", "wifi-sec.psk", password); err != nil {
			return fmt.Errorf("wifi: set psk on %q failed: %w", name, err)
		}
	}
	return nil
}

func (w *RealControl) ActivateProfile(name string) error {
	out, err := w.cmd.CombinedOutput("nmcli", "con", "up", name)
	if err != nil {
		return fmt.Errorf("wifi: activate %q failed: %s: %w", name, strings.TrimSpace(string(out)), err)
	}
	return nil
}

func (w *RealControl) DeactivateProfile(name string) error {
	return w.cmd.Run("nmcli", "con", "down", name)
}

// DirectConnect is the one-shot fallback path used when persistent
// profile installation fails — §4.E step 4.
func (w *RealControl) DirectConnect(ssid, password string) error {
	var args []string
	if password != "" {
		args = []string{"dev", "wifi", "connect", ssid, "password", password}
	} else {
		args = []string{"dev", "wifi", "connect", ssid}
	}
	out, err := w.cmd.CombinedOutput("nmcli", args...)
	if err != nil {
		return fmt.Errorf("wifi: direct connect to %q failed: %s: %w", ssid, strings.TrimSpace(string(out)), err)
	}
	return nil
}

func (w *RealControl) AddHotspotProfile(name, ssid, password, gatewayIP string) error {
	if err := w.cmd.Run("nmcli", "con", "add",
		"type", "wifi",
		"ifname", w.Interface,
		"con-name", name,
		"autoconnect", "yes",
		"ssid", ssid,
	); err != nil {
		return fmt.Errorf("wifi: add hotspot profile failed: %w", err)
	}

	configSteps := [][]string{
		{"modify", name, "wifi-sec.key-mgmt", "wpa-psk"},
		{"modify", name, "wifi-sec.psk", password},
		{"modify", name, "802-11-wireless.mode", "ap"},
		{"modify", name, "802-11-wireless.band", "bg"},
		{"modify", name, "ipv4.method", "shared"},
		{"modify", name, "ipv4.addresses", gatewayIP + "/24"},
		{"modify", name, "ipv6.method", "shared"},
	}
	for _, args := range configSteps {
		if err := w.cmd.Run("nmcli", append([]string{"con"}, args...)...); err != nil {
			slog.Warn("wifi: hotspot config step failed", "args", args, "err", err)
		}
	}
	return nil
}
