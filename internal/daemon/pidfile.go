package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
)

// ReadPIDFile returns the PID recorded by a running daemon
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID file %s", path)
	}
	return pid, nil
}

// ValidateDaemonProcess checks that pid is alive and is an acp daemon, so a
// reused PID is never signalled
func ValidateDaemonProcess(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		slog.Debug("Process not found", "pid", pid)
		return false
	}

	args, err := proc.CmdlineSlice()
	if err != nil || len(args) == 0 {
		slog.Debug("Failed to get process command line", "pid", pid, "error", err)
		return false
	}

	if !isDaemonCommandLine(args) {
		slog.Debug("Process command line mismatch", "pid", pid, "actual", strings.Join(args, " "))
		return false
	}
	return true
}

// isDaemonCommandLine matches `<path>/acp [flags] run|daemon [flags]`
func isDaemonCommandLine(args []string) bool {
	if len(args) == 0 || filepath.Base(args[0]) != "acp" {
		return false
	}
	for _, arg := range args[1:] {
		if arg == "run" || arg == "daemon" {
			return true
		}
	}
	return false
}

// TerminateStale sends SIGTERM to the daemon recorded in pidPath when it
// no longer answers on its socket. The PID file is removed either way.
func TerminateStale(pidPath string) (int, error) {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		return 0, err
	}
	defer os.Remove(pidPath)

	if !ValidateDaemonProcess(pid) {
		return 0, errors.New("recorded process is not an acp daemon")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return 0, fmt.Errorf("failed to signal PID %d: %w", pid, err)
	}
	return pid, nil
}
