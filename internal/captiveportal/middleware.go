package captiveportal

import (
	"net/http"
	"strings"
)

// probeHosts are the captive-portal detection hostnames the major
// platforms probe on network join. A hijacked DNS answer sends all of
// these to the gateway IP; this middleware catches the HTTP request that
// follows and redirects it to the provisioning page.
var probeHosts = []string{
	"captive.apple.com",
	"www.apple.com",
	"connectivitycheck.gstatic.com",
	"clients3.google.com",
	"www.msftconnecttest.com",
	"www.msftncsi.com",
	"detectportal.firefox.com",
}

// allowlistPrefixes are paths that must never be redirected even while
// the hotspot is active: the provisioning page itself, its API, static
// assets, and the admin/swagger surfaces.
var allowlistPrefixes = []string{
	"/provision",
	"/api/",
	"/static/",
	"/lib/",
	"/admin",
	"/swagger",
}

// staticAssetExtensions catches static assets served outside the
// allowlisted path prefixes above (e.g. /lib/bootstrap.css).
var staticAssetExtensions = []string{
	".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".woff", ".woff2",
}

// ActiveHotspot reports whether the hotspot is currently up — the
// middleware only intercepts traffic while it is.
type ActiveHotspot interface {
	IsHotspotActive() bool
}

// Middleware redirects matching captive-portal probes to /provision
// whenever the hotspot is active and the request path isn't allowlisted.
func Middleware(hotspot ActiveHotspot, gatewayIP string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hotspot.IsHotspotActive() || isAllowlisted(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		host := hostOnly(r.Host)
		if host == gatewayIP || isProbeHost(host) {
			http.Redirect(w, r, "/provision", http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isAllowlisted(path string) bool {
	for _, prefix := range allowlistPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, ext := range staticAssetExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func isProbeHost(host string) bool {
	for _, h := range probeHosts {
		if host == h {
			return true
		}
	}
	return false
}

func hostOnly(hostport string) string {
	if idx := strings.LastIndex(hostport, ":"); idx != -1 {
		return hostport[:idx]
	}
	return hostport
}
