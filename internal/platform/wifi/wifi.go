// Package wifi owns the two host-facing Wi-Fi concerns that sit below
// wifimanager: a periodically refreshed scan cache, and a narrow
// HostControl interface over nmcli that wifimanager drives directly for
// mutating operations (connect, hotspot up/down).
package wifi

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ncbedge/edgecore/internal/platform/executil"
)

// ScanEntry is one network's most recently observed scan data.
type ScanEntry struct {
	Signal   int
	Security string
	FreqMHz  int
}

// commander is the subset of executil.Runner the scan cache needs.
type commander interface {
	Output(name string, args ...string) ([]byte, error)
}

// ScanCache holds the most recent Wi-Fi scan, refreshed on a ticker. Reads
// never block on a refresh and never observe a partially written map:
// Refresh builds a full replacement map and swaps it in atomically.
type ScanCache struct {
	snapshot atomic.Pointer[map[string]ScanEntry]
	cmd      commander
	iface    string
}

// NewScanCache constructs a cache that scans with cmd on interface iface.
// The cache starts empty; call Refresh or Run before relying on it.
func NewScanCache(iface string, cmd commander) *ScanCache {
	c := &ScanCache{cmd: cmd, iface: iface}
	empty := map[string]ScanEntry{}
	c.snapshot.Store(&empty)
	return c
}

// Run refreshes the cache every interval until ctx is cancelled.
func (c *ScanCache) Run(ctx context.Context, interval time.Duration) {
	c.Refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Refresh()
		}
	}
}

// Refresh invokes a rescan and atomically replaces the snapshot. If the
// radio is disabled or the scan fails, the cache is emptied rather than
// left stale.
func (c *ScanCache) Refresh() {
	if !c.radioEnabled() {
		empty := map[string]ScanEntry{}
		c.snapshot.Store(&empty)
		return
	}

	out, err := c.cmd.Output("nmcli", "-t", "-f", "SSID,SIGNAL,SECURITY,FREQ",
		"dev", "wifi", "list", "--rescan", "yes")
	if err != nil {
		empty := map[string]ScanEntry{}
		c.snapshot.Store(&empty)
		return
	}

	fresh := map[string]ScanEntry{}
	for _, line := range strings.Split(string(out), "\n") {
		parts := strings.Split(line, ":")
		if len(parts) < 4 || parts[0] == "" {
			continue
		}
		entry := ScanEntry{Security: parts[2]}
		if n, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			entry.Signal = n
		}
		if n, err := strconv.Atoi(strings.TrimSpace(parts[3])); err == nil {
			entry.FreqMHz = n
		}
		fresh[parts[0]] = entry
	}
	c.snapshot.Store(&fresh)
}

func (c *ScanCache) radioEnabled() bool {
	out, err := c.cmd.Output("nmcli", "radio", "wifi")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "enabled"
}

// IsAvailable reports whether ssid appears in the most recent scan.
func (c *ScanCache) IsAvailable(ssid string) bool {
	m := *c.snapshot.Load()
	_, ok := m[ssid]
	return ok
}

// Info returns the most recent scan data for ssid.
func (c *ScanCache) Info(ssid string) (ScanEntry, bool) {
	m := *c.snapshot.Load()
	e, ok := m[ssid]
	return e, ok
}

// All returns a copy of the full current snapshot.
func (c *ScanCache) All() map[string]ScanEntry {
	m := *c.snapshot.Load()
	out := make(map[string]ScanEntry, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// New picks the host-control implementation: Real on the arm64 gateway
// image, Mock everywhere else (dev workstation, CI).
func New(isArm64 bool, iface string) HostControl {
	if isArm64 {
		return NewRealControl(iface, executil.Real{})
	}
	return NewMockControl(iface)
}
