package config

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// DeriveHotspotSSID returns the SSID the gateway advertises while in
// hotspot mode: NCBEdge_ followed by the last 6 characters of the DID
// with hyphens stripped, so a returning owner can find the same network
// again after a reboot without the core persisting a separate name.
func DeriveHotspotSSID(did string) string {
	stripped := strings.ReplaceAll(did, "-", "")
	suffix := stripped
	if len(stripped) > 6 {
		suffix = stripped[len(stripped)-6:]
	}
	return "NCBEdge_" + suffix
}

// DeriveBluetoothUUID returns the 128-bit service UUID derived for the
// device: the fixed prefix
// 12345678-1234-5678-1234-56789abc followed by the 8-hex-digit lowercase
// FNV-1a hash of the DID, so a companion app can recompute it from the
// DID alone. btprovision keeps it but does not register it over SDP.
func DeriveBluetoothUUID(did string) string {
	h := fnv.New32a()
	h.Write([]byte(did))
	return fmt.Sprintf("12345678-1234-5678-1234-56789abc%08x", h.Sum32())
}
