// Package errs is the error taxonomy shared by every provisioning
// subsystem. It generalizes the kinds the original agent used for its
// disk/cloud/VPN features into the categories the provisioning core
// needs. The HTTP-200-always envelope itself is httputil.Envelope.
package errs

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

type Kind uint8

const (
	KindOther        Kind = iota // Unclassified — maps to 500
	KindIO                       // Disk / filesystem issues — 500
	KindNetwork                  // generic network failure — 503
	KindInvalid                  // Validation / bad input — 400 (spec: InvalidArgument)
	KindUnauthorized             // Auth token missing or invalid — 401
	KindNotFound                 // File or route not found — 404
	KindSystem                   // OS-level failures (exec, mount) — 500

	// Provisioning-specific kinds (spec §7 taxonomy).
	KindUnavailable   // Wi-Fi disabled, SSID not in scan cache, mutex timeout — 503
	KindHostTool      // non-zero exit from a host CLI — 502
	KindUnreachable   // reachability probe failed after retries — 504
	KindCrypto        // key missing, verify/decrypt failed — 500 (never leaks detail)
	KindProtocol      // malformed Bluetooth message, unsupported type — 400
	KindCancelled     // shutdown requested mid-operation — 499-ish, mapped to 503
)

type Op string

// Error is the shared structured error type. Err may itself be an *Error,
// which Error()/Unwrap() thread through transparently.
type Error struct {
	Op      Op     // Where did it happen?
	Kind    Kind   // What category?
	Err     error  // Underlying cause
	Message string // Safe to show to the user / frontend
}

func E(args ...any) error {
	e := &Error{}
	for _, arg := range args {
		switch v := arg.(type) {
		case Op:
			e.Op = v
		case Kind:
			e.Kind = v
		case error:
			e.Err = v
		case string:
			e.Message = v
		case *Error:
			cp := *v
			e.Err = &cp
		}
	}
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(string(e.Op))
	}
	if e.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind of err, walking the Unwrap chain. Returns
// KindOther if err is nil or carries no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// HTTPResponse writes a conventional JSON error body with a status code
// derived from the error's Kind. Used by ambient/admin endpoints that are
// allowed ordinary HTTP status semantics (contrast with the provisioning
// API's Envelope, which is always 200).
func HTTPResponse(w http.ResponseWriter, err error) {
	slog.Error("errs: request failed", "err", err)

	code := http.StatusInternalServerError
	msg := "internal server error"

	var e *Error
	if errors.As(err, &e) {
		code = kindToStatus(e.Kind)

		if e.Message != "" {
			msg = e.Message
		} else if code != http.StatusInternalServerError && e.Err != nil {
			msg = e.Err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Message returns the safe, user-facing text for err: the Message field
// of the outermost *Error if set, otherwise err.Error(). Used by
// wifimanager to turn a failed lock acquisition into the (false, message)
// result its callers return.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
	}
	return err.Error()
}

func kindToStatus(k Kind) int {
	switch k {
	case KindInvalid, KindProtocol:
		return http.StatusBadRequest // 400
	case KindUnauthorized:
		return http.StatusUnauthorized // 401
	case KindNotFound:
		return http.StatusNotFound // 404
	case KindHostTool:
		return http.StatusBadGateway // 502
	case KindNetwork, KindUnavailable, KindCancelled:
		return http.StatusServiceUnavailable // 503
	case KindUnreachable:
		return http.StatusGatewayTimeout // 504
	case KindIO, KindSystem, KindCrypto, KindOther:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError
	}
}
