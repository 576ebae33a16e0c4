// Package captiveportal supervises the hotspot lifecycle decision (start
// when the upstream link has been down long enough, stop once it
// recovers) and provides the HTTP middleware that redirects an
// unconfigured client's captive-portal probes to the provisioning page.
package captiveportal

import (
	"context"
	"log/slog"
	"time"
)

const (
	initialDelay  = 90 * time.Second
	checkInterval = 90 * time.Second
	shutdownBudget = 10 * time.Second
)

// UpstreamState reports whether the upstream signalling link is
// currently established. Implemented by internal/upstream.Poller.
type UpstreamState interface {
	Established() bool
}

// MissCounter exposes the upstream poller's consecutive-miss count. The
// counter is owned and incremented by the poller; the coordinator only
// reads it.
type MissCounter interface {
	Misses() int
}

// HotspotController is the subset of wifimanager.Manager the coordinator
// drives.
type HotspotController interface {
	StartHotspot(ctx context.Context, ssid, password string) (bool, string)
	StopHotspot(ctx context.Context) (bool, string)
	IsHotspotActive() bool
}

// Coordinator is the supervisor task implementing §4.G.
type Coordinator struct {
	AllowHotspot  bool
	MissThreshold int

	Hotspot  HotspotController
	Upstream UpstreamState
	Misses   MissCounter
}

// Run performs the one-shot boot cleanup, then — if hotspot fallback is
// enabled — waits the initial delay and polls every checkInterval,
// starting or stopping the hotspot per the miss-threshold rule. It
// returns when ctx is cancelled, after attempting one graceful
// StopHotspot within shutdownBudget.
func (c *Coordinator) Run(ctx context.Context) error {
	c.bootCleanup(ctx)

	if !c.AllowHotspot {
		slog.Info("captiveportal: hotspot fallback disabled, coordinator idle")
		<-ctx.Done()
		return nil
	}

	select {
	case <-ctx.Done():
		return c.shutdown()
	case <-time.After(initialDelay):
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return c.shutdown()
		case <-ticker.C:
			c.evaluate(ctx)
		}
	}
}

func (c *Coordinator) bootCleanup(ctx context.Context) {
	if c.Hotspot.IsHotspotActive() {
		return
	}
	// Defensive stop in case a prior ungraceful shutdown left an AP
	// profile installed without the in-memory state to match.
	c.Hotspot.StopHotspot(ctx)
}

func (c *Coordinator) evaluate(ctx context.Context) {
	established := c.Upstream.Established()
	active := c.Hotspot.IsHotspotActive()

	if !established && c.Misses.Misses() > c.MissThreshold {
		if !active {
			slog.Warn("captiveportal: upstream link down past threshold, starting hotspot",
				"misses", c.Misses.Misses())
			c.Hotspot.StartHotspot(ctx, "", "")
		}
		return
	}

	if established && active {
		slog.Info("captiveportal: upstream link restored, stopping hotspot")
		c.Hotspot.StopHotspot(ctx)
	}
}

func (c *Coordinator) shutdown() error {
	if !c.Hotspot.IsHotspotActive() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownBudget)
	defer cancel()
	if ok, msg := c.Hotspot.StopHotspot(ctx); !ok {
		slog.Warn("captiveportal: graceful hotspot shutdown failed", "msg", msg)
	}
	return nil
}
