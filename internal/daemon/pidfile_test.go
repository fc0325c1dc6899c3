package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsDaemonCommandLine(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"run subcommand", []string{"/usr/local/bin/acp", "run"}, true},
		{"daemon alias with flags", []string{"acp", "--config-path", "/tmp/x", "daemon"}, true},
		{"other subcommand", []string{"acp", "status"}, false},
		{"other binary", []string{"/usr/bin/ssh", "run"}, false},
		{"binary name as suffix", []string{"/usr/bin/notacp", "run"}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDaemonCommandLine(tt.args); got != tt.want {
				t.Errorf("isDaemonCommandLine(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestReadPIDFile(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.pid")
	os.WriteFile(valid, []byte("4242\n"), 0o644)
	if pid, err := ReadPIDFile(valid); err != nil || pid != 4242 {
		t.Errorf("ReadPIDFile() = %d, %v; want 4242", pid, err)
	}

	garbage := filepath.Join(dir, "garbage.pid")
	os.WriteFile(garbage, []byte("not-a-pid"), 0o644)
	if _, err := ReadPIDFile(garbage); err == nil {
		t.Error("expected error for garbage PID file")
	}

	if _, err := ReadPIDFile(filepath.Join(dir, "missing.pid")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestValidateDaemonProcess(t *testing.T) {
	// The test binary is alive but is not an acp daemon
	if ValidateDaemonProcess(os.Getpid()) {
		t.Error("expected test process not to validate as a daemon")
	}
	if ValidateDaemonProcess(0) {
		t.Error("expected false for PID 0")
	}
}

func TestTerminateStale_RefusesForeignProcess(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "daemon.pid")
	os.WriteFile(pidPath, []byte("1"), 0o644)

	if _, err := TerminateStale(pidPath); err == nil {
		t.Error("expected refusal to signal a non-acp process")
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Error("expected stale PID file to be removed")
	}
}
