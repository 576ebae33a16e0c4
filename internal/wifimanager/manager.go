// Package wifimanager is the Wi-Fi state manager: the process-wide
// authority over which of {connected-as-client, hotspot-active} the
// radio is in. Every mutating operation funnels through a single
// semaphore-guarded section so the two states can never both be true at
// once (I1).
package wifimanager

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ncbedge/edgecore/internal/config"
	"github.com/ncbedge/edgecore/internal/errs"
	"github.com/ncbedge/edgecore/internal/platform/wifi"
)

// reachabilityProber is the subset of probe.Prober the manager needs —
// narrowed to an interface so tests can substitute a stub instead of
// issuing real ICMP echoes.
type reachabilityProber interface {
	Probe(ctx context.Context, ip string) (bool, error)
}

const (
	acquireTimeout    = 30 * time.Second
	clientProfileName = "ncbedge-client"
	hotspotProfile    = "ncbedge-hotspot"
	settleDelay       = 3 * time.Second
	hotspotSettleWait = 2 * time.Second
	minPSKLen         = 8
	maxPSKLen         = 63
	nearbyListSize    = 5
)

// Manager is THE CORE: it owns WifiState and serializes every mutating
// Wi-Fi operation behind a 30s-timeout semaphore.
type Manager struct {
	sem *semaphore.Weighted

	state stateBox

	scan    *wifi.ScanCache
	control wifi.HostControl
	probe   reachabilityProber
	rules   *captivePortalRules

	iface          string
	gatewayIP      string
	defaultPass    string
	settingsPath   string
	did            string
	Reconnect      *ReconnectSignal
}

// Deps bundles the construction-time dependencies a Manager needs.
type Deps struct {
	Interface        string
	GatewayIP        string
	DefaultPassword  string
	SettingsPath     string
	DeviceID         string
	Control          wifi.HostControl
	Scan             *wifi.ScanCache
	Probe            reachabilityProber
	ShellCommander   shellCommander
}

// New constructs a Manager. Pass the Real shell commander in production
// and a mock in tests.
func New(d Deps) *Manager {
	return &Manager{
		sem:          semaphore.NewWeighted(1),
		scan:         d.Scan,
		control:      d.Control,
		probe:        d.Probe,
		rules:        newCaptivePortalRules(d.Interface, d.GatewayIP, d.ShellCommander),
		iface:        d.Interface,
		gatewayIP:    d.GatewayIP,
		defaultPass:  d.DefaultPassword,
		settingsPath: d.SettingsPath,
		did:          d.DeviceID,
		Reconnect:    &ReconnectSignal{},
	}
}

// Snapshot returns the current externally observable state.
func (m *Manager) Snapshot() WifiState {
	return m.state.Snapshot()
}

// IsHotspotActive is a convenience accessor for callers (the captive-
// portal coordinator, the middleware) that only care about the one bit.
func (m *Manager) IsHotspotActive() bool {
	return m.state.Snapshot().HotspotActive
}

func (m *Manager) acquire(ctx context.Context) (func(), error) {
	acqCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()
	if err := m.sem.Acquire(acqCtx, 1); err != nil {
		return nil, errs.E(errs.Op("wifimanager"), errs.KindUnavailable, "busy, retry")
	}
	return func() { m.sem.Release(1) }, nil
}

// ConnectToWifi implements the spec's 9-step connect sequence.
func (m *Manager) ConnectToWifi(ctx context.Context, ssid, password, ncbip string) (bool, string) {
	release, err := m.acquire(ctx)
	if err != nil {
		return false, errs.Message(err)
	}
	defer release()

	wasHotspotActive := m.state.Snapshot().HotspotActive
	if wasHotspotActive {
		if ok, msg := m.stopHotspotLocked(ctx); !ok {
			return false, "could not stop hotspot before connecting: " + msg
		}
	}

	ok, msg := m.connectLocked(ctx, ssid, password, ncbip)
	if !ok {
		// Step 9: any failure after step 2 re-raises the hotspot.
		if hsOK, hsMsg := m.startHotspotLocked(ctx, "", ""); !hsOK {
			return false, fmt.Sprintf("%s; rollback to hotspot also failed: %s", msg, hsMsg)
		}
		return false, msg
	}

	return true, msg
}

func (m *Manager) connectLocked(ctx context.Context, ssid, password, ncbip string) (bool, string) {
	// Step 2: validate ncbip.
	if addr := net.ParseIP(ncbip); addr == nil || addr.To4() == nil {
		return false, "NCBIP is not a valid IPv4 address"
	}

	// Step 3: radio enabled + SSID present in scan cache.
	if !m.control.RadioEnabled() {
		return false, "Wi-Fi radio is disabled"
	}
	if !m.scan.IsAvailable(ssid) {
		return false, fmt.Sprintf("SSID %q not found in scan cache; nearby: %s",
			ssid, strings.Join(m.nearbySSIDs(), ", "))
	}

	// Step 4: install persistent profile, fall back to direct connect.
	m.control.DeleteProfile(clientProfileName)
	installed := m.control.AddClientProfile(clientProfileName, ssid, password) == nil
	if installed {
		if err := m.control.ActivateProfile(clientProfileName); err != nil {
			installed = false
		}
	}
	if !installed {
		if err := m.control.DirectConnect(ssid, password); err != nil {
			return false, fmt.Sprintf("connect to %q failed: %v", ssid, err)
		}
	}

	// Step 5: settle.
	select {
	case <-ctx.Done():
		return false, "cancelled while settling"
	case <-time.After(settleDelay):
	}

	// Step 6: verify.
	if !m.control.RadioEnabled() {
		return false, "radio disabled after connect attempt"
	}
	activeSSID, _ := m.control.ActiveConnectionSSID()
	ifaceSSID, _ := m.control.InterfaceSSID()
	if activeSSID != ssid || ifaceSSID != ssid {
		return false, fmt.Sprintf("active SSID mismatch after connect (active=%q, iface=%q, want=%q)",
			activeSSID, ifaceSSID, ssid)
	}

	// Step 7: reachability probe.
	reachable, err := m.probe.Probe(ctx, ncbip)
	if err != nil || !reachable {
		return false, fmt.Sprintf("gateway %s unreachable after connecting", ncbip)
	}

	// Step 8: persist, publish, signal.
	if err := config.UpdateNCBIP(m.settingsPath, ncbip); err != nil {
		return false, "connected, but failed to persist NCBIP: " + err.Error()
	}
	m.state.set(func(s *WifiState) {
		s.HotspotActive = false
		s.HotspotSSID = ""
		s.CurrentTarget = NetworkTarget{SSID: ssid, NCBIP: ncbip}
	})
	m.Reconnect.Broadcast()

	return true, "connected to " + ssid
}

func (m *Manager) nearbySSIDs() []string {
	all := m.scan.All()
	names := make([]string, 0, len(all))
	for ssid := range all {
		names = append(names, ssid)
		if len(names) >= nearbyListSize {
			break
		}
	}
	return names
}

// StartHotspot implements the spec's 7-step start sequence.
func (m *Manager) StartHotspot(ctx context.Context, ssid, password string) (bool, string) {
	release, err := m.acquire(ctx)
	if err != nil {
		return false, errs.Message(err)
	}
	defer release()
	return m.startHotspotLocked(ctx, ssid, password)
}

func (m *Manager) startHotspotLocked(ctx context.Context, ssid, password string) (bool, string) {
	// Step 1: idempotent.
	if m.state.Snapshot().HotspotActive {
		return true, "hotspot already active"
	}

	// Step 2: derive SSID/validate password.
	if ssid == "" {
		ssid = config.DeriveHotspotSSID(m.did)
	}
	if len(password) < minPSKLen || len(password) > maxPSKLen {
		password = m.defaultPass
	}

	// Step 3: disconnect client interface, remove stale profile.
	m.control.DeactivateProfile(clientProfileName)
	m.control.DeleteProfile(hotspotProfile)

	// Step 4: install AP-mode profile.
	if err := m.control.AddHotspotProfile(hotspotProfile, ssid, password, m.gatewayIP); err != nil {
		return false, "failed to install hotspot profile: " + err.Error()
	}

	// Step 5: activate, settle, verify.
	if err := m.control.ActivateProfile(hotspotProfile); err != nil {
		return false, "failed to activate hotspot: " + err.Error()
	}
	select {
	case <-ctx.Done():
		return false, "cancelled while settling hotspot"
	case <-time.After(hotspotSettleWait):
	}
	active, _ := m.control.ActiveConnectionSSID()
	if active != ssid {
		return false, fmt.Sprintf("hotspot %q did not appear in active connections (saw %q)", ssid, active)
	}

	// Step 6: publish state.
	m.state.set(func(s *WifiState) {
		s.HotspotActive = true
		s.HotspotSSID = ssid
		s.CurrentTarget = NetworkTarget{}
	})

	// Step 7: install captive-portal rules.
	if err := m.rules.install(); err != nil {
		return false, "hotspot up, but captive-portal rules failed: " + err.Error()
	}

	return true, "hotspot started: " + ssid
}

// StopHotspot is the public, mutex-acquiring entry point.
func (m *Manager) StopHotspot(ctx context.Context) (bool, string) {
	release, err := m.acquire(ctx)
	if err != nil {
		return false, errs.Message(err)
	}
	defer release()
	return m.stopHotspotLocked(ctx)
}

// stopHotspotLocked assumes the caller already holds the semaphore —
// used internally by ConnectToWifi's reentrant handoff so it never tries
// to acquire its own lock twice.
func (m *Manager) stopHotspotLocked(ctx context.Context) (bool, string) {
	if !m.state.Snapshot().HotspotActive {
		return true, "hotspot already stopped"
	}

	// Ordering guarantee: rules removed before the profile is deactivated.
	if err := m.rules.teardown(); err != nil {
		return false, "failed to tear down captive-portal rules: " + err.Error()
	}

	m.control.DeactivateProfile(hotspotProfile)
	m.control.DeleteProfile(hotspotProfile)

	m.state.set(func(s *WifiState) {
		s.HotspotActive = false
		s.HotspotSSID = ""
	})

	return true, "hotspot stopped"
}
