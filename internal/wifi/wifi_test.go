package wifi

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type call struct {
	name string
	args []string
}

func newTestManager(t *testing.T, calls *[]call, runErr error) *Manager {
	t.Helper()

	m := NewManager("wlan0", "rover-base", "hunter2")
	m.run = func(_ context.Context, name string, args ...string) error {
		*calls = append(*calls, call{name: name, args: args})
		return runErr
	}
	return m
}

func writeOperstate(t *testing.T, state string) string {
	t.Helper()

	netDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(netDir, "wlan0"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(netDir, "wlan0", "operstate"), []byte(state), 0o644); err != nil {
		t.Fatal(err)
	}
	return netDir
}

func TestManager_IsConnected(t *testing.T) {
	tests := []struct {
		state string
		want  bool
	}{
		{"up\n", true},
		{"up", true},
		{"down\n", false},
		{"dormant\n", false},
	}

	for _, tt := range tests {
		m := NewManager("wlan0", "rover-base", "")
		m.netDir = writeOperstate(t, tt.state)

		if got := m.IsConnected(); got != tt.want {
			t.Errorf("IsConnected() with state %q = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestManager_IsConnected_MissingInterface(t *testing.T) {
	m := NewManager("wlan0", "rover-base", "")
	m.netDir = t.TempDir()

	if m.IsConnected() {
		t.Error("IsConnected() = true for missing interface")
	}
}

func TestManager_Connect(t *testing.T) {
	var calls []call
	m := newTestManager(t, &calls, nil)

	if err := m.Connect(); err != nil {
		t.Fatalf("Connect() = %v", err)
	}

	if len(calls) != 1 || calls[0].name != "nmcli" {
		t.Fatalf("calls = %+v", calls)
	}
	want := []string{"dev", "wifi", "connect", "rover-base", "ifname", "wlan0", "password", "hunter2"}
	assertArgs(t, calls[0].args, want)
}

func TestManager_ConnectOpenNetwork(t *testing.T) {
	var calls []call
	m := NewManager("wlan0", "rover-base", "")
	m.run = func(_ context.Context, name string, args ...string) error {
		calls = append(calls, call{name: name, args: args})
		return nil
	}

	if err := m.Connect(); err != nil {
		t.Fatalf("Connect() = %v", err)
	}

	want := []string{"dev", "wifi", "connect", "rover-base", "ifname", "wlan0"}
	assertArgs(t, calls[0].args, want)
}

func TestManager_Disconnect(t *testing.T) {
	var calls []call
	m := newTestManager(t, &calls, nil)

	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect() = %v", err)
	}
	assertArgs(t, calls[0].args, []string{"dev", "disconnect", "wlan0"})
}

func TestManager_Activate(t *testing.T) {
	var calls []call
	m := newTestManager(t, &calls, nil)

	if err := m.Activate(true); err != nil {
		t.Fatalf("Activate(true) = %v", err)
	}
	if err := m.Activate(false); err != nil {
		t.Fatalf("Activate(false) = %v", err)
	}

	assertArgs(t, calls[0].args, []string{"radio", "wifi", "on"})
	assertArgs(t, calls[1].args, []string{"radio", "wifi", "off"})
}

func TestManager_CommandFailure(t *testing.T) {
	fault := errors.New("nmcli: device not found")

	var calls []call
	m := newTestManager(t, &calls, fault)

	if err := m.Connect(); !errors.Is(err, fault) {
		t.Errorf("Connect() = %v, want wrapped %v", err, fault)
	}
	if err := m.Disconnect(); !errors.Is(err, fault) {
		t.Errorf("Disconnect() = %v, want wrapped %v", err, fault)
	}
	if err := m.Activate(true); !errors.Is(err, fault) {
		t.Errorf("Activate() = %v, want wrapped %v", err, fault)
	}
}

func assertArgs(t *testing.T, got, want []string) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("args = %v, want %v", got, want)
		}
	}
}
