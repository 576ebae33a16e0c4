// Package upstream polls the upstream signalling link for the device's
// assigned Wi-Fi network and NCB IP, and reconciles local state against
// whatever it reports.
package upstream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ncbedge/edgecore/internal/config"
	"github.com/ncbedge/edgecore/internal/errs"
	"github.com/ncbedge/edgecore/internal/platform/rsasig"
)

const pollInterval = 20 * time.Second

// Link is the external upstream RPC collaborator: the signalling
// connection itself, and its GetNCBNetInfo call, are owned elsewhere —
// this package only consumes them.
type Link interface {
	Established() bool
	GetNCBNetInfo(ctx context.Context, envelope SignedEnvelope) (cipherData string, err error)
}

// SignedEnvelope is the request body every signed upstream call sends.
type SignedEnvelope struct {
	DID  string `json:"DID"`
	UID  string `json:"UID"`
	Time int64  `json:"Time"`
	Sign string `json:"Sign"`
}

// netInfo is the decrypted shape of GetNCBNetInfo's response Data field.
type netInfo struct {
	WifiName  string `json:"wifiName"`
	IPAddress string `json:"ipAddress"`
}

// Connector is the subset of wifimanager.Manager the poller drives when
// the upstream-reported network differs from the live one.
type Connector interface {
	ConnectToWifi(ctx context.Context, ssid, password, ncbip string) (bool, string)
}

// HostSSID queries the interface's live SSID — independent of whatever
// the manager's in-memory state believes, per spec's "queried via the
// host" wording.
type HostSSID interface {
	InterfaceSSID() (string, error)
}

// Poller implements the upstream-info poll loop (component H). It also
// owns the consecutive-miss counter the captive-portal coordinator reads
// through the MissCounter interface.
type Poller struct {
	link      Link
	signer    *rsasig.Signer
	connector Connector
	hostSSID  HostSSID

	did          string
	uid          string
	settingsPath string

	misses atomic.Int32
}

// New constructs a Poller.
func New(link Link, signer *rsasig.Signer, connector Connector, hostSSID HostSSID, did, uid, settingsPath string) *Poller {
	return &Poller{
		link:         link,
		signer:       signer,
		connector:    connector,
		hostSSID:     hostSSID,
		did:          did,
		uid:          uid,
		settingsPath: settingsPath,
	}
}

// Misses returns the current consecutive-miss count.
func (p *Poller) Misses() int {
	return int(p.misses.Load())
}

// Established reports whether the upstream link is currently connected.
func (p *Poller) Established() bool {
	return p.link.Established()
}

// Run polls every pollInterval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	if p.link.Established() {
		p.misses.Store(0)
		return
	}

	info, err := p.fetchNetInfo(ctx)
	if err != nil {
		slog.Warn("upstream: poll failed", "err", err)
		p.misses.Add(1)
		return
	}

	if p.link.Established() {
		p.misses.Store(0)
	} else {
		p.misses.Add(1)
	}

	p.reconcile(ctx, info)
}

func (p *Poller) fetchNetInfo(ctx context.Context) (netInfo, error) {
	const op = errs.Op("upstream.fetchNetInfo")

	sig, err := p.signer.Sign(p.did)
	if err != nil {
		return netInfo{}, errs.E(op, errs.KindCrypto, err)
	}

	envelope := SignedEnvelope{DID: p.did, UID: p.uid, Time: time.Now().Unix(), Sign: sig}
	cipherData, err := p.link.GetNCBNetInfo(ctx, envelope)
	if err != nil {
		return netInfo{}, errs.E(op, errs.KindNetwork, err)
	}

	plain, err := p.signer.Decrypt(cipherData)
	if err != nil {
		return netInfo{}, errs.E(op, errs.KindCrypto, err)
	}

	var info netInfo
	if err := json.Unmarshal([]byte(plain), &info); err != nil {
		return netInfo{}, errs.E(op, errs.KindProtocol, err, "malformed net info payload")
	}
	return info, nil
}

func (p *Poller) reconcile(ctx context.Context, info netInfo) {
	if info.WifiName == "" {
		return
	}

	currentSSID, _ := p.hostSSID.InterfaceSSID()
	if currentSSID != info.WifiName {
		slog.Info("upstream: reported network differs from live SSID, reconnecting",
			"current", currentSSID, "want", info.WifiName)
		p.connector.ConnectToWifi(ctx, info.WifiName, "", info.IPAddress)
		return
	}

	stored, _ := config.ReadNCBIP(p.settingsPath)
	if stored != info.IPAddress && info.IPAddress != "" {
		slog.Info("upstream: NCBIP changed without a network change, persisting", "ip", info.IPAddress)
		if err := config.UpdateNCBIP(p.settingsPath, info.IPAddress); err != nil {
			slog.Warn("upstream: failed to persist NCBIP", "err", err)
		}
	}
}
