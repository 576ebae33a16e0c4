// Each consuming package defines its own narrow interface. wifimanager
// defines shellCommander (Run only, for its iptables rules). btprovision
// defines a small interface over hciconfig/bluetoothctl/sdptool. These are
// unexported — they're an implementation detail. Both are satisfied by
// executil.Real{} and *executil.Mock without either package knowing about
// the other.
//
// Package executil provides an abstraction over os/exec so that packages
// that shell out to system tools (nmcli, iptables, dnsmasq, hciconfig,
// sdptool, etc.) can be tested without root access or real hardware.
//
// Usage pattern:
//
//  1. Each consuming package defines its own narrow interface (Go idiom).
//  2. That interface is satisfied by executil.Real in production
//     and executil.Mock (or a hand-rolled spy) in tests.
//  3. The consuming struct accepts the interface via its constructor.
package executil

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// fixedPath is the PATH every shelled-out command runs with, regardless of
// the calling process's environment. Host tooling (nmcli, iptables,
// hciconfig, bluetoothctl, sdptool, dnsmasq) lives in one of these
// directories on the gateway image; pinning PATH keeps behavior
// independent of whatever shell invoked the agent.
const fixedPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Result is the structured outcome of a single command line: never an
// error by itself. Callers inspect Success/ExitCode to decide how to
// react; a non-zero exit is ordinary control flow, not a Go error.
type Result struct {
	Success  bool
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner is the shared interface. Consuming packages copy the subset of
// methods they actually need into their own local interface — this keeps
// dependencies minimal and mocks small.
type Runner interface {
	// Run executes a command and returns an error if it exits non-zero.
	Run(name string, args ...string) error

	// Output executes a command and returns its combined stdout output.
	// Returns an error if the command exits non-zero.
	Output(name string, args ...string) ([]byte, error)

	// CombinedOutput executes a command and returns stdout + stderr merged.
	CombinedOutput(name string, args ...string) ([]byte, error)
}

// Real executes commands via os/exec, routed through a single bash line
// with a fixed PATH. This is the implementation injected in all non-test
// code.
type Real struct{}

func (r Real) Run(name string, args ...string) error {
	return r.cmd(name, args).Run()
}

func (r Real) Output(name string, args ...string) ([]byte, error) {
	return r.cmd(name, args).Output()
}

func (r Real) CombinedOutput(name string, args ...string) ([]byte, error) {
	return r.cmd(name, args).CombinedOutput()
}

func (Real) cmd(name string, args []string) *exec.Cmd {
	line := name
	if len(args) > 0 {
		line += " " + strings.Join(args, " ")
	}
	cmd := exec.Command("bash", "-c", line)
	cmd.Env = append(cmd.Env, "PATH="+fixedPath)
	return cmd
}

// RunLine runs a full command line (e.g. "nmcli -t -f SSID dev wifi list")
// through bash with the fixed PATH and returns the structured result
// instead of a Go error. Non-zero exit is reported via Success/ExitCode,
// never via a returned error — the executor never decides what a failed
// command means to the caller.
func (Real) RunLine(line string) Result {
	cmd := exec.Command("bash", "-c", line)
	cmd.Env = append(cmd.Env, "PATH="+fixedPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return ResultOf(stdout.String(), stderr.String(), err)
}

// ResultOf converts the raw outputs and error from a finished command into
// a Result, extracting the exit code when the error is an *exec.ExitError.
func ResultOf(stdout, stderr string, err error) Result {
	if err == nil {
		return Result{Success: true, Stdout: stdout, Stderr: stderr, ExitCode: 0}
	}
	var exitErr *exec.ExitError
	if ok := errorsAsExitError(err, &exitErr); ok {
		return Result{Success: false, Stdout: stdout, Stderr: stderr, ExitCode: exitErr.ExitCode()}
	}
	return Result{Success: false, Stdout: stdout, Stderr: stderr, ExitCode: -1}
}

func errorsAsExitError(err error, target **exec.ExitError) bool {
	if e, ok := err.(*exec.ExitError); ok {
		*target = e
		return true
	}
	return false
}

// Call records a single command invocation for assertion in tests.
type Call struct {
	Name string
	Args []string
}

// String returns a human-readable representation for test failure messages.
func (c Call) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// MockResult lets you pre-program what a specific command should return.
type MockResult struct {
	Output []byte
	Err    error
}

// Mock records all commands that were run and lets you pre-program responses.
// It is safe to use from a single goroutine (tests are sequential).
//
// Example:
//
//	m := &executil.Mock{}
//	m.Expect("nmcli", executil.MockResult{Err: nil})
//	w := wifi.NewRealControl("wlan0", m)
//	// ... exercise code ...
//	m.AssertCalled(t, "nmcli con up Hotspot")
type Mock struct {
	// Calls records every command Run/Output/CombinedOutput was called with,
	// in order. Inspect this in your tests.
	Calls []Call

	// responses maps "name arg1 arg2..." → MockResult.
	// If no match is found, Run returns nil and Output returns ("", nil).
	responses map[string]MockResult
}

// Expect pre-programs a response for a specific command signature.
// The key is "name arg1 arg2 ..." — exact match on the full command string.
//
//	m.Expect("iptables -t nat -A PREROUTING ...", executil.MockResult{Err: errors.New("permission denied")})
func (m *Mock) Expect(command string, result MockResult) {
	if m.responses == nil {
		m.responses = make(map[string]MockResult)
	}
	m.responses[command] = result
}

func (m *Mock) record(name string, args []string) MockResult {
	m.Calls = append(m.Calls, Call{Name: name, Args: args})
	key := name
	if len(args) > 0 {
		key += " " + strings.Join(args, " ")
	}
	if r, ok := m.responses[key]; ok {
		return r
	}
	return MockResult{} 
}

func (m *Mock) Run(name string, args ...string) error {
	return m.record(name, args).Err
}

func (m *Mock) Output(name string, args ...string) ([]byte, error) {
	r := m.record(name, args)
	return r.Output, r.Err
}

func (m *Mock) CombinedOutput(name string, args ...string) ([]byte, error) {
	r := m.record(name, args)
	return r.Output, r.Err
}

// RunLine mirrors Real.RunLine for tests: the full line is the lookup key,
// and a programmed MockResult's Err becomes a non-zero ExitCode of 1
// rather than a Go error, matching Real's never-errors-on-exit contract.
func (m *Mock) RunLine(line string) Result {
	r := m.record(line, nil)
	if r.Err != nil {
		return Result{Success: false, Stdout: string(r.Output), ExitCode: 1}
	}
	return Result{Success: true, Stdout: string(r.Output), ExitCode: 0}
}


// WasCalled reports whether the given command string was ever called.
// The command string is "name arg1 arg2 ..." — same format as Expect.
func (m *Mock) WasCalled(command string) bool {
	for _, c := range m.Calls {
		if c.String() == command {
			return true
		}
	}
	return false
}

func (m *Mock) AssertCalled(t interface {
	Helper()
	Errorf(string, ...any)
}, command string) {
	t.Helper()
	if !m.WasCalled(command) {
		var buf bytes.Buffer
		buf.WriteString(fmt.Sprintf("expected command %q to be called, but it was not.\n", command))
		buf.WriteString("calls made:\n")
		for _, c := range m.Calls {
			buf.WriteString("  " + c.String() + "\n")
		}
		t.Errorf(buf.String())
	}
}

func (m *Mock) AssertNotCalled(t interface {
	Helper()
	Errorf(string, ...any)
}, command string) {
	t.Helper()
	if m.WasCalled(command) {
		t.Errorf("expected command %q NOT to be called, but it was", command)
	}
}

func (m *Mock) CallCount(command string) int {
	count := 0
	for _, c := range m.Calls {
		if c.String() == command {
			count++
		}
	}
	return count
}