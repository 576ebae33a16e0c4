package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPLink is the production Link: it POSTs the signed envelope to the
// upstream's GetNCBNetInfo endpoint over plain HTTP. The signalling
// connection's lifecycle (Established) is reported by whatever owns the
// session — this type only wraps the one RPC call the poller needs.
type HTTPLink struct {
	BaseURL    string
	Client     *http.Client
	established func() bool
}

// NewHTTPLink constructs an HTTPLink. established reports whether the
// caller's owning session currently considers the upstream connected.
func NewHTTPLink(baseURL string, established func() bool) *HTTPLink {
	return &HTTPLink{
		BaseURL:     baseURL,
		Client:      &http.Client{Timeout: 10 * time.Second},
		established: established,
	}
}

func (l *HTTPLink) Established() bool {
	if l.established == nil {
		return false
	}
	return l.established()
}

type netInfoResponse struct {
	Data string `json:"Data"`
}

func (l *HTTPLink) GetNCBNetInfo(ctx context.Context, envelope SignedEnvelope) (string, error) {
	body, err := json.Marshal(envelope)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.BaseURL+"/GetNCBNetInfo", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream: GetNCBNetInfo returned %d", resp.StatusCode)
	}

	var parsed netInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.Data, nil
}

// StubLink is a Link that never establishes and always fails the RPC —
// used in dev mode where there is no real upstream to poll.
type StubLink struct{}

func (StubLink) Established() bool { return false }

func (StubLink) GetNCBNetInfo(ctx context.Context, envelope SignedEnvelope) (string, error) {
	return "", fmt.Errorf("upstream: no upstream configured in dev mode")
}
