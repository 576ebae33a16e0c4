package btprovision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const (
	recvWindow   = 100 * time.Millisecond
	idleGap      = 150 * time.Millisecond
	sendRetryGap = 500 * time.Millisecond
)

// message is the JSON envelope the companion app sends for type-10000
// and type-10050 requests. MsgId and Time travel as strings on the wire.
type message struct {
	MsgID string `json:"MsgId"`
	Time  string `json:"Time"`
	Type  int    `json:"Type"`
	Data  string `json:"Data"`
}

// response is the JSON envelope every structured reply uses. MsgId, Time,
// and Type are echoed from the request so the peer can correlate replies.
type response struct {
	MsgID   string `json:"MsgId"`
	Time    string `json:"Time"`
	Type    int    `json:"Type"`
	Success bool   `json:"Success"`
	Data    string `json:"Data,omitempty"`
	Sign    string `json:"Sign,omitempty"`
	Message string `json:"Message,omitempty"`
}

const (
	msgTypeReadDeviceID = 10000
	msgTypeProvisionWifi = 10050
)

type provisionPayload struct {
	SSID     string `json:"SSID"`
	Password string `json:"Password"`
	NCBIP    string `json:"NCBIP"`
}

// serveClient runs the per-client message loop: accumulate bytes until a
// full line, decode, dispatch, respond, repeat until the peer disconnects
// or ctx is cancelled.
func (s *Server) serveClient(ctx context.Context, fd int, peer string) {
	unix.SetNonblock(fd, true)

	var lastSent []byte
	acc := newLineAccumulator()

	for {
		if ctx.Err() != nil {
			return
		}

		line, ok, err := acc.next(fd)
		if err != nil {
			return // peer closed or socket error
		}
		if !ok {
			continue
		}

		payload := decodePayload(line)
		if bytes.Equal(payload, lastSent) {
			slog.Debug("btprovision: dropped echoed payload", "peer", peer)
			continue
		}

		reply := s.handle(ctx, payload)
		if err := sendWithRetry(fd, reply); err != nil {
			slog.Warn("btprovision: send failed, dropping client", "peer", peer, "err", err)
			return
		}
		lastSent = reply
	}
}

// decodePayload tries base64; on failure it uses the raw bytes, per the
// transport's "attempt base64, else raw" rule.
func decodePayload(line []byte) []byte {
	trimmed := bytes.TrimSpace(line)
	if decoded, err := base64.StdEncoding.DecodeString(string(trimmed)); err == nil {
		return decoded
	}
	return trimmed
}

// handle dispatches a decoded payload: JSON envelope if it looks like an
// object, otherwise the non-JSON debug dialect.
func (s *Server) handle(ctx context.Context, payload []byte) []byte {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) >= 2 && trimmed[0] == '{' && trimmed[len(trimmed)-1] == '}' {
		return append(s.handleJSON(ctx, trimmed), '\n')
	}
	return append(s.handleDebug(string(trimmed)), '\n')
}

func (s *Server) handleJSON(ctx context.Context, raw []byte) []byte {
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return mustJSON(response{Success: false, Message: "malformed request"})
	}

	echo := response{MsgID: msg.MsgID, Time: msg.Time, Type: msg.Type}

	switch msg.Type {
	case msgTypeReadDeviceID:
		sig, err := s.signer.Sign(s.did)
		if err != nil {
			return mustJSON(withMessage(echo, "could not sign device id"))
		}
		return mustJSON(withData(echo, s.did, sig))

	case msgTypeProvisionWifi:
		return s.handleProvision(ctx, msg, echo)

	default:
		return mustJSON(withMessage(echo, "type not supported"))
	}
}

func (s *Server) handleProvision(ctx context.Context, msg message, echo response) []byte {
	plaintext, err := s.signer.Decrypt(msg.Data)
	if err != nil {
		return mustJSON(withMessage(echo, "could not decrypt payload"))
	}

	var p provisionPayload
	if err := json.Unmarshal([]byte(plaintext), &p); err != nil || p.SSID == "" || p.NCBIP == "" {
		return mustJSON(withMessage(echo, "provisioning payload is malformed"))
	}

	ok, connMsg := s.conn.ConnectToWifi(ctx, p.SSID, p.Password, p.NCBIP)
	if !ok {
		return mustJSON(withMessage(echo, connMsg))
	}

	sig, err := s.signer.Sign("SUCCESS")
	if err != nil {
		return mustJSON(withData(echo, "SUCCESS", ""))
	}
	return mustJSON(withData(echo, "SUCCESS", sig))
}

// withMessage returns echo marked as a failure with message set.
func withMessage(echo response, message string) response {
	echo.Success = false
	echo.Message = message
	return echo
}

// withData returns echo marked as a success carrying data and an
// optional signature.
func withData(echo response, data, sign string) response {
	echo.Success = true
	echo.Data = data
	echo.Sign = sign
	return echo
}

func (s *Server) handleDebug(cmd string) []byte {
	switch strings.ToUpper(strings.TrimSpace(cmd)) {
	case "PING":
		return []byte("PONG")
	case "STATUS":
		return []byte(fmt.Sprintf("adapter=%s discoverable=%v", s.adapter.name, s.adapter.isDiscoverable()))
	case "TIME":
		return []byte(time.Now().UTC().Format(time.RFC3339))
	case "INFO":
		return []byte(fmt.Sprintf("did=%s uid=%s os=%s/%s", s.did, s.uid, runtime.GOOS, runtime.GOARCH))
	case "HELP":
		return []byte("commands: PING STATUS TIME INFO HELP")
	default:
		return []byte("Echo: " + cmd)
	}
}

func mustJSON(r response) []byte {
	b, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"success":false,"message":"internal error"}`)
	}
	return b
}

// sendWithRetry writes payload, retrying once after sendRetryGap if the
// first attempt fails because the transport buffer is full (EAGAIN on a
// non-blocking socket).
func sendWithRetry(fd int, payload []byte) error {
	if err := writeAll(fd, payload); err != nil {
		if err == unix.EAGAIN {
			time.Sleep(sendRetryGap)
			return writeAll(fd, payload)
		}
		return err
	}
	return nil
}

func writeAll(fd int, payload []byte) error {
	for len(payload) > 0 {
		n, err := unix.Write(fd, payload)
		if err != nil {
			return err
		}
		payload = payload[n:]
	}
	return nil
}

// lineAccumulator reads from a non-blocking fd in recvWindow slices,
// accumulating until a line terminator or an idle gap with no new bytes.
type lineAccumulator struct {
	buf []byte
}

func newLineAccumulator() *lineAccumulator {
	return &lineAccumulator{}
}

// next returns the next complete line (without its terminator), or
// (nil, false, nil) if no line is ready yet and the caller should poll
// again.
func (a *lineAccumulator) next(fd int) ([]byte, bool, error) {
	if idx := bytes.IndexByte(a.buf, '\n'); idx >= 0 {
		line := a.buf[:idx]
		a.buf = a.buf[idx+1:]
		return bytes.TrimSuffix(line, []byte("\r")), true, nil
	}

	chunk := make([]byte, 4096)
	deadline := time.Now().Add(recvWindow)
	lastRead := time.Now()

	for time.Now().Before(deadline) {
		n, err := unix.Read(fd, chunk)
		switch {
		case n > 0:
			a.buf = append(a.buf, chunk[:n]...)
			lastRead = time.Now()
			if idx := bytes.IndexByte(a.buf, '\n'); idx >= 0 {
				line := a.buf[:idx]
				a.buf = a.buf[idx+1:]
				return bytes.TrimSuffix(line, []byte("\r")), true, nil
			}
		case n == 0 && err == nil:
			return nil, false, unix.ECONNRESET
		case err == unix.EAGAIN:
			if len(a.buf) > 0 && time.Since(lastRead) > idleGap {
				line := a.buf
				a.buf = nil
				return line, true, nil
			}
			time.Sleep(5 * time.Millisecond)
		default:
			return nil, false, err
		}
	}

	return nil, false, nil
}
