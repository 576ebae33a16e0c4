// Package probe implements the reachability probe: up to N ICMP echoes
// against an IPv4 target, used by wifimanager to confirm a new
// connection actually has a path to the gateway.
package probe

import (
	"context"
	"net"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/ncbedge/edgecore/internal/errs"
)

const (
	defaultAttempts     = 10
	perAttemptTimeout   = 2 * time.Second
	interAttemptDelay   = 1 * time.Second
)

// Prober issues ICMP echoes and reports the first success.
type Prober struct {
	Attempts int
}

// New returns a Prober with the default attempt count.
func New() *Prober {
	return &Prober{Attempts: defaultAttempts}
}

// Probe issues up to p.Attempts pings to ip, one at a time, returning true
// on the first reply. A target that doesn't parse as IPv4 (including any
// valid IPv6 address) fails immediately without spending an attempt.
func (p *Prober) Probe(ctx context.Context, ip string) (bool, error) {
	const op = errs.Op("probe.Probe")

	addr := net.ParseIP(ip)
	if addr == nil || addr.To4() == nil {
		return false, errs.E(op, errs.KindInvalid, "not a valid IPv4 address")
	}

	attempts := p.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return false, errs.E(op, errs.KindCancelled, ctx.Err())
		}

		if pingOnce(ip) {
			return true, nil
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return false, errs.E(op, errs.KindCancelled, ctx.Err())
			case <-time.After(interAttemptDelay):
			}
		}
	}
	return false, nil
}

func pingOnce(ip string) bool {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return false
	}
	pinger.SetPrivileged(true)
	pinger.Count = 1
	pinger.Timeout = perAttemptTimeout

	if err := pinger.Run(); err != nil {
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}
