package wifimanager

import (
	"fmt"
	"log/slog"

	"github.com/miekg/dns"
)

const dnsHijackAddr = ":5353"

// shellCommander is the narrow executil surface captivePortalRules needs
// for iptables manipulation.
type shellCommander interface {
	Run(name string, args ...string) error
}

// captivePortalRules owns the iptables redirect rules and the in-process
// DNS hijack server that make the hotspot's captive portal reachable from
// an unconfigured client: every DNS query resolves to the gateway, and
// HTTP/HTTPS traffic is redirected to the provisioning port.
type captivePortalRules struct {
	iface     string
	gatewayIP string
	cmd       shellCommander

	dnsServer *dns.Server
}

func newCaptivePortalRules(iface, gatewayIP string, cmd shellCommander) *captivePortalRules {
	return &captivePortalRules{iface: iface, gatewayIP: gatewayIP, cmd: cmd}
}

// install clears the nat/filter tables, adds the captive-portal
// redirects, and starts the wildcard-A-record DNS hijack server. Every
// step is best-effort: a missing iptables binary in dev mode must not
// block StartHotspot.
func (r *captivePortalRules) install() error {
	r.cmd.Run("iptables", "-t", "nat", "-F")
	r.cmd.Run("iptables", "-F")

	r.cmd.Run("iptables", "-A", "INPUT", "-p", "tcp", "--dport", "5000", "-j", "ACCEPT")
	r.cmd.Run("iptables", "-t", "nat", "-A", "PREROUTING",
		"-p", "tcp", "--dport", "80", "-j", "REDIRECT", "--to-port", "5000")
	r.cmd.Run("iptables", "-t", "nat", "-A", "PREROUTING",
		"-p", "tcp", "--dport", "443", "-j", "REDIRECT", "--to-port", "5000")

	r.cmd.Run("iptables", "-A", "INPUT", "-p", "udp", "--dport", "53", "-j", "ACCEPT")
	r.cmd.Run("iptables", "-A", "INPUT", "-p", "tcp", "--dport", "53", "-j", "ACCEPT")
	r.cmd.Run("iptables", "-t", "nat", "-A", "PREROUTING",
		"-i", r.iface, "-p", "udp", "--dport", "53", "-j", "REDIRECT", "--to-port", "5353")

	r.dnsServer = startDNSHijack(r.gatewayIP, dnsHijackAddr)

	return nil
}

// teardown flushes the nat and filter tables and stops the DNS hijack
// server. Called before the hotspot profile is deactivated — the
// ordering the design requires so no captive-portal rule outlives the
// hotspot it belongs to.
func (r *captivePortalRules) teardown() error {
	if r.dnsServer != nil {
		if err := r.dnsServer.Shutdown(); err != nil {
			slog.Warn("wifimanager: dns hijack shutdown error", "err", err)
		}
		r.dnsServer = nil
	}

	r.cmd.Run("iptables", "-t", "nat", "-F")
	r.cmd.Run("iptables", "-F")

	return nil
}

// startDNSHijack answers every A-record query with redirectIP,
// grounded on the teacher's wildcard DNS spoofing server.
func startDNSHijack(redirectIP, addr string) *dns.Server {
	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		m.Authoritative = true

		for _, q := range req.Question {
			if q.Qtype == dns.TypeA {
				rr, err := dns.NewRR(fmt.Sprintf("%s 3600 IN A %s", q.Name, redirectIP))
				if err == nil {
					m.Answer = append(m.Answer, rr)
				}
			}
		}
		w.WriteMsg(m)
	})

	server := &dns.Server{Addr: addr, Net: "udp", Handler: mux}
	go func() {
		slog.Info("wifimanager: starting captive-portal dns hijack", "addr", addr, "redirectIP", redirectIP)
		if err := server.ListenAndServe(); err != nil {
			slog.Debug("wifimanager: dns hijack server stopped", "err", err)
		}
	}()
	return server
}
