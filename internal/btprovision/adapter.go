package btprovision

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// commander is the narrow executil surface adapter control needs.
type commander interface {
	Run(name string, args ...string) error
	Output(name string, args ...string) ([]byte, error)
}

// adapterControl wraps the host CLIs (hciconfig, bluetoothctl, sdptool)
// used to bring the Bluetooth adapter into a discoverable, pairable
// state and to keep it there.
type adapterControl struct {
	cmd      commander
	name     string // adapter device name, e.g. hci0
	alias    string
	serviceUUID string
}

func newAdapterControl(cmd commander, hciName, alias, serviceUUID string) *adapterControl {
	return &adapterControl{cmd: cmd, name: hciName, alias: alias, serviceUUID: serviceUUID}
}

// bringUp runs the one-time bring-up sequence: power on, discoverable
// and pairable with no timeout, alias, best-effort SDP record (the
// generic Serial Port profile on channel 1; serviceUUID is not part of
// it), and a
// best-effort BLE advertising kick that must not block past its budget.
func (a *adapterControl) bringUp(ctx context.Context) {
	a.cmd.Run("hciconfig", a.name, "up")
	a.cmd.Run("bluetoothctl", "power", "on")
	a.cmd.Run("bluetoothctl", "discoverable-timeout", "0")
	a.cmd.Run("bluetoothctl", "discoverable", "on")
	a.cmd.Run("bluetoothctl", "pairable", "on")
	a.cmd.Run("bluetoothctl", "system-alias", a.alias)

	a.cmd.Run("sdptool", "add", "--channel=1", "SP")

	go func() {
		advertiseCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		a.advertiseBLE(advertiseCtx)
	}()
}

// advertiseBLE is best-effort: btmgmt may not exist or may fail on some
// adapters, and that must never block bring-up.
func (a *adapterControl) advertiseBLE(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.cmd.Run("btmgmt", "advertising", "on")
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Debug("btprovision: BLE advertising kick exceeded its budget")
	}
}

// isDiscoverable queries whether the adapter currently reports
// discoverable=yes.
func (a *adapterControl) isDiscoverable() bool {
	out, err := a.cmd.Output("bluetoothctl", "show")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Discoverable:") {
			return strings.Contains(line, "yes")
		}
	}
	return false
}

// reassertDiscoverable reissues the power/discoverable/pairable sequence
// — called by the watchdog when isDiscoverable reports false.
func (a *adapterControl) reassertDiscoverable() {
	slog.Warn("btprovision: adapter no longer discoverable, reasserting")
	a.cmd.Run("bluetoothctl", "power", "on")
	a.cmd.Run("bluetoothctl", "discoverable", "on")
	a.cmd.Run("bluetoothctl", "pairable", "on")
}

// forceCleanup is used when bind fails with "address in use": release
// the RFCOMM channel, restart the Bluetooth daemon, and re-bring-up the
// adapter before the caller retries the bind once.
func (a *adapterControl) forceCleanup(ctx context.Context) {
	a.cmd.Run("rfcomm", "release", "0")
	a.cmd.Run("systemctl", "restart", "bluetooth")
	time.Sleep(1 * time.Second)
	a.bringUp(ctx)
}

// wipeAllPairings removes every currently paired device and its cached
// state — called once at bring-up, since this provisioning protocol
// uses trust-on-proximity rather than long-lived pairings.
func (a *adapterControl) wipeAllPairings() {
	for _, mac := range a.pairedDevices() {
		a.removeDevice(mac)
	}
}

// sweepStalePairings removes paired devices that are not currently
// connected — the periodic hygiene pass.
func (a *adapterControl) sweepStalePairings() {
	connected := map[string]bool{}
	for _, mac := range a.connectedDevices() {
		connected[mac] = true
	}
	for _, mac := range a.pairedDevices() {
		if !connected[mac] {
			a.removeDevice(mac)
		}
	}
}

func (a *adapterControl) pairedDevices() []string {
	out, err := a.cmd.Output("bluetoothctl", "devices", "Paired")
	if err != nil {
		return nil
	}
	return parseDeviceList(out)
}

func (a *adapterControl) connectedDevices() []string {
	out, err := a.cmd.Output("bluetoothctl", "devices", "Connected")
	if err != nil {
		return nil
	}
	return parseDeviceList(out)
}

// parseDeviceList parses `bluetoothctl devices [Paired|Connected]`
// output: lines of "Device AA:BB:CC:DD:EE:FF Name".
func parseDeviceList(out []byte) []string {
	var macs []string
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "Device" {
			macs = append(macs, fields[1])
		}
	}
	return macs
}

func (a *adapterControl) removeDevice(mac string) {
	a.cmd.Run("bluetoothctl", "remove", mac)
	os.RemoveAll(filepath.Join("/var/lib/bluetooth", a.localAddr(), mac))
}

// localAddr reads the adapter's own MAC via hciconfig, used to locate
// the per-device pairing cache directory.
func (a *adapterControl) localAddr() string {
	out, err := a.cmd.Output("hciconfig", a.name)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		idx := strings.Index(line, "BD Address: ")
		if idx == -1 {
			continue
		}
		rest := line[idx+len("BD Address: "):]
		fields := strings.Fields(rest)
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}
