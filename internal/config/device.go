package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// getOrGenerateDeviceID loads the persisted DID from certDir/device-id, or
// mints and persists a new one. The DID doubles as the file name stem for
// the pinned RSA key (PrivateKeyPath) and as the seed for the derived
// hotspot SSID and Bluetooth service UUID.
func getOrGenerateDeviceID(certDir string, isDev bool) string {
	return loadOrCreateID(filepath.Join(certDir, "device-id"), "device-")
}

// getOrGenerateOwnerID loads the persisted UID from dataDir/owner-id, or
// mints and persists a new one. Unlike the DID it carries no cryptographic
// role — it only identifies which account owns the device once claimed.
func getOrGenerateOwnerID(dataDir string, isDev bool) string {
	return loadOrCreateID(filepath.Join(dataDir, "owner-id"), "owner-")
}

func loadOrCreateID(filePath, prefix string) string {
	if content, err := os.ReadFile(filePath); err == nil {
		return strings.TrimSpace(string(content))
	}

	newID := prefix + uuid.New().String()
	slog.Info("config: generated new identity", "path", filePath, "id", newID)

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("config: could not create identity directory, id will not persist",
			"dir", dir, "err", err)
		return newID
	}

	if err := os.WriteFile(filePath, []byte(newID), 0644); err != nil {
		slog.Warn("config: could not persist identity", "path", filePath, "err", err)
	}

	return newID
}
