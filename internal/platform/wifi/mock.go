package wifi

import (
	"log/slog"
	"sync"
)

// MockControl implements HostControl in memory for dev mode and tests.
// It tracks just enough state (radio on/off, active SSID, installed
// profiles) to exercise wifimanager's logic without real hardware.
type MockControl struct {
	mu sync.Mutex

	Interface string
	radioOn   bool
	activeSSID string
	profiles  map[string]mockProfile

	// FailAddProfile, when set, makes AddClientProfile fail for the
	// named profile so tests can exercise the one-shot fallback path.
	FailAddProfile map[string]bool
	// FailDirectConnect makes DirectConnect fail for the named SSID.
	FailDirectConnect map[string]bool
}

type mockProfile struct {
	ssid     string
	password string
	active   bool
}

// NewMockControl constructs a MockControl with the radio enabled.
func NewMockControl(iface string) *MockControl {
	return &MockControl{
		Interface:         iface,
		radioOn:           true,
		profiles:          map[string]mockProfile{},
		FailAddProfile:    map[string]bool{},
		FailDirectConnect: map[string]bool{},
	}
}

func (m *MockControl) RadioEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.radioOn
}

// SetRadioEnabled lets tests toggle radio availability.
func (m *MockControl) SetRadioEnabled(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.radioOn = on
}

func (m *MockControl) ActiveConnectionSSID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeSSID, nil
}

func (m *MockControl) InterfaceSSID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeSSID, nil
}

func (m *MockControl) DeleteProfile(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, name)
	return nil
}

func (m *MockControl) AddClientProfile(name, ssid, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAddProfile[name] {
		return errMock("add profile " + name + " failed")
	}
	m.profiles[name] = mockProfile{ssid: ssid, password: password}
	return nil
}

func (m *MockControl) ActivateProfile(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[name]
	if !ok {
		return errMock("profile " + name + " not found")
	}
	p.active = true
	m.profiles[name] = p
	m.activeSSID = p.ssid
	slog.Debug("wifi mock: activated profile", "name", name, "ssid", p.ssid)
	return nil
}

func (m *MockControl) DeactivateProfile(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[name]; ok {
		p.active = false
		m.profiles[name] = p
		if m.activeSSID == p.ssid {
			m.activeSSID = ""
		}
	}
	return nil
}

func (m *MockControl) DirectConnect(ssid, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDirectConnect[ssid] {
		return errMock("direct connect to " + ssid + " failed")
	}
	m.activeSSID = ssid
	return nil
}

func (m *MockControl) AddHotspotProfile(name, ssid, password, gatewayIP string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[name] = mockProfile{ssid: ssid, password: password}
	return nil
}

type errMock string

func (e errMock) Error() string { return string(e) }
