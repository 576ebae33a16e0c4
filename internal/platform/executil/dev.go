// internal/platform/executil/dev.go
//
// DevRunner wraps Real{} and stubs hardware-only commands that don't
// exist on a dev laptop (nmcli, iptables, hciconfig, bluetoothctl,
// sdptool, dnsmasq …).
//
// Commands that need to return data (nmcli scan/connection listings,
// iwgetid, hciconfig) return realistic fake output so the parsers in
// wifi/btprovision work normally — the API responds with mock data
// instead of errors.
//
// Commands that are pure side-effects (iptables rules, systemctl,
// nmcli con up/down) are logged at DEBUG level and silently succeed.
//
// cmd/edgecore's shellCommanderFor selects it whenever the host is not
// arm64; the arm64 gateway image uses Real{}.
package executil

import (
	"log/slog"
	"strings"
)

// DevRunner satisfies Runner. Wrap it around Real{} so any command we
// don't explicitly stub falls through to the real binary.
type DevRunner struct{ real Runner }

func NewDevRunner() Runner { return &DevRunner{real: Real{}} }

// ── stub tables ───────────────────────────────────────────────────────────

// silentOK — these commands are pure side-effects on real hardware.
// On a dev machine they either don't exist or would fail with permission
// denied. We log at DEBUG and return nil so callers never see an error.
var silentOK = map[string]bool{
	"iptables":     true,
	"ip6tables":    true,
	"hciconfig":    true,
	"bluetoothctl": true,
	"btmgmt":       true,
	"sdptool":      true,
	"dnsmasq":      true,
	"sysctl":       true,
	"rfkill":       true,
}

// silentOKSystemctlUnits — `systemctl <action> <unit>` pairs to stub.
var silentOKSystemctlUnits = map[string]bool{
	"dnsmasq":       true,
	"bluetooth":     true,
	"NetworkManager": true,
}

// ── Runner interface ─────────────────────────────────────────────────────

func (d *DevRunner) Run(name string, args ...string) error {
	if d.shouldStub(name, args) {
		slog.Debug("dev: stubbed (no-op)", "cmd", name, "args", strings.Join(args, " "))
		return nil
	}
	return d.real.Run(name, args...)
}

func (d *DevRunner) Output(name string, args ...string) ([]byte, error) {
	if out, ok := d.fakeOutput(name, args); ok {
		slog.Debug("dev: stubbed with fake output", "cmd", name)
		return out, nil
	}
	return d.real.Output(name, args...)
}

func (d *DevRunner) CombinedOutput(name string, args ...string) ([]byte, error) {
	if out, ok := d.fakeOutput(name, args); ok {
		slog.Debug("dev: stubbed with fake output", "cmd", name)
		return out, nil
	}
	return d.real.CombinedOutput(name, args...)
}

// RunLine stubs the line-oriented path (no package in the tree calls it).
// Matching is by prefix since these lines carry dynamic arguments (SSID,
// password, interface name) that a literal map can't key on cleanly.
func (d *DevRunner) RunLine(line string) Result {
	if r, ok := d.fakeResult(line); ok {
		slog.Debug("dev: stubbed line with fake result", "line", line)
		return r
	}
	if real, ok := d.real.(interface{ RunLine(string) Result }); ok {
		return real.RunLine(line)
	}
	return Result{Success: true}
}

// ── decision logic ───────────────────────────────────────────────────────

func (d *DevRunner) shouldStub(name string, args []string) bool {
	if silentOK[name] {
		return true
	}
	if name == "nmcli" {
		return true
	}
	if name == "systemctl" && len(args) >= 2 {
		unit := args[len(args)-1]
		action := args[0]
		hardwareAction := action == "start" || action == "stop" ||
			action == "restart" || action == "kill" || action == "is-active"
		if hardwareAction && silentOKSystemctlUnits[unit] {
			return true
		}
	}
	if name == "sh" && len(args) >= 2 && strings.Contains(args[1], "/proc/sys") {
		return true
	}
	return false
}

// fakeOutput returns realistic stub data for commands that need to
// produce output consumed by parsers.
func (d *DevRunner) fakeOutput(name string, args []string) ([]byte, bool) {
	switch name {

	case "nmcli":
		if len(args) >= 3 && args[0] == "-t" && contains(args, "wifi") && contains(args, "list") {
			return []byte(fakeNmcliScan), true
		}
		if len(args) >= 1 && args[0] == "-g" && contains(args, "GENERAL.STATE") {
			return []byte("100 connected\n"), true
		}
		if len(args) >= 1 && contains(args, "active") {
			return []byte(fakeNmcliActive), true
		}
		if len(args) >= 2 && args[0] == "radio" && args[1] == "wifi" {
			return []byte("enabled\n"), true
		}
		return []byte(""), true

	case "iwgetid":
		return []byte("HomeNetwork\n"), true

	case "hciconfig":
		return []byte(fakeHciconfig), true

	case "bluetoothctl":
		return []byte(""), true
	}

	return nil, false
}

// fakeResult stubs RunLine invocations (full bash lines) by recognizable
// substring, since these carry SSID/password/interface arguments.
func (d *DevRunner) fakeResult(line string) (Result, bool) {
	switch {
	case strings.Contains(line, "nmcli") && strings.Contains(line, "wifi list"):
		return Result{Success: true, Stdout: fakeNmcliScan}, true
	case strings.Contains(line, "nmcli") && strings.Contains(line, "GENERAL.STATE"):
		return Result{Success: true, Stdout: "100 connected\n"}, true
	case strings.Contains(line, "nmcli"):
		return Result{Success: true}, true
	case strings.Contains(line, "iwgetid"):
		return Result{Success: true, Stdout: "HomeNetwork\n"}, true
	case strings.Contains(line, "ping"):
		return Result{Success: true, Stdout: "1 packets transmitted, 1 received"}, true
	case strings.Contains(line, "iptables"), strings.Contains(line, "dnsmasq"),
		strings.Contains(line, "hciconfig"), strings.Contains(line, "bluetoothctl"),
		strings.Contains(line, "sdptool"), strings.Contains(line, "btmgmt"),
		strings.Contains(line, "systemctl"):
		return Result{Success: true}, true
	}
	return Result{}, false
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.Contains(h, needle) {
			return true
		}
	}
	return false
}

// ── fake output constants ────────────────────────────────────────────────

// fakeNmcliScan — three visible networks, matching
// `nmcli -t -f SSID,SIGNAL,SECURITY,FREQ dev wifi list --rescan yes`.
const fakeNmcliScan = `HomeNetwork:78:WPA2:5180
NeighboursWifi:41:WPA2:2437
OpenCafe:22::2412
`

// fakeNmcliActive — `nmcli -t -f NAME,DEVICE,TYPE con show --active`.
const fakeNmcliActive = `HomeNetwork:wlan0:wifi
`

// fakeHciconfig — `hciconfig hci0` output showing the radio is UP.
const fakeHciconfig = `hci0:	Type: Primary  Bus: UART
	BD Address: AA:BB:CC:DD:EE:FF  ACL MTU: 1021:4  SCO MTU: 96:6
	UP RUNNING PSCAN ISCAN
	RX bytes:1024 acl:0 sco:0 events:64 errors:0
	TX bytes:2048 acl:0 sco:0 commands:32 errors:0
`
