// Package wifi manages the node's wireless association through
// NetworkManager's nmcli, satisfying the telemetry loop's Link
// interface. Association state is read from sysfs so IsConnected stays
// cheap enough to poll every cycle.
package wifi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultIdle is how long Idle yields while the loop waits for
	// the association to come up.
	DefaultIdle = 250 * time.Millisecond

	commandTimeout = 15 * time.Second
	sysClassNet    = "/sys/class/net"
)

// runner executes an external command; swapped in tests.
type runner func(ctx context.Context, name string, args ...string) error

// WithLogger sets the logger for the manager.
func WithLogger(logger *slog.Logger) func(*Manager) {
	return func(m *Manager) {
		m.logger = logger.With(slog.String("interface", m.iface))
	}
}

// WithIdle overrides the idle yield duration.
func WithIdle(idle time.Duration) func(*Manager) {
	return func(m *Manager) {
		m.idle = idle
	}
}

// Manager associates one wireless interface with the configured
// network. It implements telemetry.Link.
type Manager struct {
	iface    string
	ssid     string
	password string

	netDir string
	run    runner
	idle   time.Duration
	logger *slog.Logger
}

// NewManager creates a link manager for the interface and credentials.
func NewManager(iface, ssid, password string, options ...func(*Manager)) *Manager {
	m := Manager{
		iface:    iface,
		ssid:     ssid,
		password: password,
		netDir:   sysClassNet,
		run:      runCommand,
		idle:     DefaultIdle,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&m)
	}

	return &m
}

// IsConnected reports whether the interface's operational state is up.
func (m *Manager) IsConnected() bool {
	state, err := os.ReadFile(filepath.Join(m.netDir, m.iface, "operstate"))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(state)) == "up"
}

// Connect associates the interface with the configured network. The
// call returns once nmcli accepts the request; the association itself
// completes asynchronously and is observed through IsConnected.
func (m *Manager) Connect() error {
	m.logger.Info("connecting to wireless network", slog.String("ssid", m.ssid))

	args := []string{"dev", "wifi", "connect", m.ssid, "ifname", m.iface}
	if m.password != "" {
		args = append(args, "password", m.password)
	}
	if err := m.nmcli(args...); err != nil {
		return fmt.Errorf("connecting to %q: %w", m.ssid, err)
	}
	return nil
}

// Disconnect drops the interface's association.
func (m *Manager) Disconnect() error {
	m.logger.Info("disconnecting wireless network")

	if err := m.nmcli("dev", "disconnect", m.iface); err != nil {
		return fmt.Errorf("disconnecting %q: %w", m.iface, err)
	}
	return nil
}

// Activate switches the wireless radio on or off.
func (m *Manager) Activate(on bool) error {
	state := "off"
	if on {
		state = "on"
	}
	m.logger.Info("switching wireless radio", slog.String("state", state))

	if err := m.nmcli("radio", "wifi", state); err != nil {
		return fmt.Errorf("switching radio %s: %w", state, err)
	}
	return nil
}

// Idle yields briefly so link waits never busy-spin.
func (m *Manager) Idle() {
	time.Sleep(m.idle)
}

func (m *Manager) nmcli(args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return m.run(ctx, "nmcli", args...)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
