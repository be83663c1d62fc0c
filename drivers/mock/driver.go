// Package mock provides a simulated switch for tests. It speaks either the
// JUNOScript XML dialect or the Dell PowerConnect CLI over an in-memory
// stdin/stdout pair, records every request, and can be told to reject
// requests or die mid-session.
package mock

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Dialect selects the simulated switch software
type Dialect int

const (
	DialectJUNOScript Dialect = iota
	DialectDellCLI
)

// DeviceConfig configures a simulated switch
type DeviceConfig struct {
	Dialect  Dialect
	Hostname string
	Username string
	Password string

	// Echo makes the device echo every CLI line before replying
	Echo bool
}

// Device simulates switch behavior without connecting to real equipment
type Device struct {
	config DeviceConfig

	mu         sync.RWMutex
	cmdHistory []string
	requests   []string
	failures   map[string]string
	closeOn    map[string]bool
	silentOn   map[string]bool

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter

	done     chan struct{}
	stopOnce sync.Once
}

// NewDevice creates and starts a simulated switch
func NewDevice(config DeviceConfig) *Device {
	if config.Hostname == "" {
		config.Hostname = "switch"
	}

	d := &Device{
		config:   config,
		failures: make(map[string]string),
		closeOn:  make(map[string]bool),
		silentOn: make(map[string]bool),
		done:     make(chan struct{}),
	}
	d.stdinR, d.stdinW = io.Pipe()
	d.stdoutR, d.stdoutW = io.Pipe()

	go d.serve()
	return d
}

// Stdin is where the client writes
func (d *Device) Stdin() io.WriteCloser {
	return d.stdinW
}

// Stdout is what the client reads
func (d *Device) Stdout() io.Reader {
	return d.stdoutR
}

// Wait blocks until the simulated session ends
func (d *Device) Wait() error {
	<-d.done
	return nil
}

// Close ends the session from the client side
func (d *Device) Close() error {
	d.stop()
	return nil
}

// Alive reports whether the simulated session is still running
func (d *Device) Alive() bool {
	select {
	case <-d.done:
		return false
	default:
		return true
	}
}

// Kill simulates the remote shell crashing
func (d *Device) Kill() {
	d.stop()
}

func (d *Device) stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		_ = d.stdinR.Close()
		_ = d.stdinW.Close()
		_ = d.stdoutW.Close()
	})
}

// FailOn makes requests of the given operation be rejected with message.
// Operations are "lock", "unlock", "commit", "load" for JUNOScript, or a
// command prefix for the CLI dialect.
func (d *Device) FailOn(op, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = message
}

// CloseOn makes the device end the session instead of replying to op
func (d *Device) CloseOn(op string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeOn[op] = true
}

// SilentOn makes the device never reply to op
func (d *Device) SilentOn(op string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.silentOn[op] = true
}

// History returns the operations received, in order
func (d *Device) History() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.cmdHistory...)
}

// Requests returns the raw request lines received after login
func (d *Device) Requests() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.requests...)
}

func (d *Device) recordCommand(op, raw string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmdHistory = append(d.cmdHistory, op)
	d.requests = append(d.requests, raw)
}

func (d *Device) failure(op string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	msg, ok := d.failures[op]
	return msg, ok
}

func (d *Device) closes(op string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closeOn[op]
}

func (d *Device) silent(op string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.silentOn[op]
}

func (d *Device) write(format string, args ...interface{}) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	_, err := fmt.Fprintf(d.stdoutW, format, args...)
	return err == nil
}

func (d *Device) serve() {
	defer d.stop()

	in := bufio.NewScanner(d.stdinR)
	in.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !d.login(in) {
		return
	}
	switch d.config.Dialect {
	case DialectDellCLI:
		d.serveDell(in)
	default:
		d.serveJUNOScript(in)
	}
}

func (d *Device) readLine(in *bufio.Scanner) (string, bool) {
	if !in.Scan() {
		return "", false
	}
	return strings.TrimRight(in.Text(), "\r"), true
}

func (d *Device) login(in *bufio.Scanner) bool {
	userPrompt := "login: "
	if d.config.Dialect == DialectDellCLI {
		userPrompt = "User:"
	}

	for attempt := 0; attempt < 3; attempt++ {
		if !d.write("\r\n%s", userPrompt) {
			return false
		}
		user, ok := d.readLine(in)
		if !ok {
			return false
		}
		if !d.write("Password:") {
			return false
		}
		pass, ok := d.readLine(in)
		if !ok {
			return false
		}
		if user == d.config.Username && pass == d.config.Password {
			return true
		}
		if !d.write("\r\nLogin incorrect\r\n") {
			return false
		}
	}
	return false
}
