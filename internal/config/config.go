// Package config loads process configuration and owns the device's
// persistent identity: DID, UID, and the private key file path the RSA
// façade pins its signing key to.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the provisioning core's process-wide configuration.
type Config struct {
	IsDev   bool
	DataDir string

	// Device identity (spec §3).
	DeviceID string // DID
	OwnerID  string // UID
	CertDir  string // holds Cert/{DID}_private_key.pem

	// Upstream (external collaborator, observed not owned).
	UpstreamURL string

	// Hotspot / captive portal defaults (spec §6).
	HotspotGatewayIP     string
	HotspotDefaultPass   string
	ProvisioningURL      string
	AllowHotspot         bool
	HotspotMissThreshold int // spec default 12

	// Wireless interface name (spec assumes a single managed radio).
	Interface string

	// Path to the appsettings.json-equivalent persisted config file.
	SettingsPath string

	PprofPort int
}

// Load reads environment variables (via .env in dev) and returns a Config.
// devMode is threaded in from main so flag parsing stays in main, matching
// the agent's original convention.
func Load(devMode bool) *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("config: no .env file found, relying on system env vars")
	}

	cfg := &Config{
		IsDev:                devMode,
		UpstreamURL:          getEnv("UPSTREAM_URL", "https://ncb.example.invalid"),
		HotspotGatewayIP:     getEnv("HOTSPOT_GATEWAY_IP", "10.42.0.1"),
		HotspotDefaultPass:   getEnv("HOTSPOT_DEFAULT_PASSWORD", "12345678"),
		AllowHotspot:         getEnvAsBool("ALLOW_HOTSPOT", true),
		HotspotMissThreshold: getEnvAsInt("HOTSPOT_MISS_THRESHOLD", 12),
		Interface:            getEnv("WIFI_INTERFACE", "wlan0"),
		PprofPort:            getEnvAsInt("PPROF_PORT", 6060),
	}

	if cfg.IsArm64() {
		cfg.DataDir = "/mnt/data"
		cfg.CertDir = "/etc/ncbedge/Cert"
		cfg.SettingsPath = "/etc/ncbedge/appsettings.json"
	} else {
		cfg.DataDir = "./data"
		cfg.CertDir = "./Cert"
		cfg.SettingsPath = "./appsettings.json"
	}
	if v := getEnv("DATA_DIR", ""); v != "" {
		cfg.DataDir = v
	}

	cfg.ProvisioningURL = "http://" + cfg.HotspotGatewayIP + ":5000/provision"

	cfg.DeviceID = getOrGenerateDeviceID(cfg.CertDir, cfg.IsDev)
	cfg.OwnerID = getOrGenerateOwnerID(cfg.DataDir, cfg.IsDev)

	return cfg
}

// IsArm64 mirrors the original agent's hardware-detection helper: the
// provisioning core only runs its real host-tool path on the arm64
// gateway image, never in dev mode on a developer's workstation.
func (c *Config) IsArm64() bool {
	return runtime.GOOS == "linux" && runtime.GOARCH == "arm64" && !c.IsDev
}

// PrivateKeyPath returns the path to this device's pinned RSA private key.
func (c *Config) PrivateKeyPath() string {
	return filepath.Join(c.CertDir, c.DeviceID+"_private_key.pem")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("config: invalid integer env var, using default",
			"key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}

func getEnvAsBool(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("config: invalid bool env var, using default",
			"key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}
