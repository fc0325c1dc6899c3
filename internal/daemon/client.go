package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.olrik.dev/acp/internal/core"
)

// SendCommand connects to the daemon, sends a command, and returns the response.
func SendCommand(command string) (Response, error) {
	return SendCommandWithTimeout(command, 10*time.Second)
}

// SendCommandWithTimeout is SendCommand with a deadline on the whole exchange
func SendCommandWithTimeout(command string, timeout time.Duration) (Response, error) {
	response := Response{}

	conn, err := net.DialTimeout("unix", core.GetSocketPath(), timeout)
	if err != nil {
		return response, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return response, fmt.Errorf("failed to send command to daemon: %w", err)
	}
	bytes, err := io.ReadAll(conn)
	if err != nil {
		return response, fmt.Errorf("failed to read response from daemon: %w", err)
	}

	if err := json.Unmarshal(bytes, &response); err != nil {
		return response, fmt.Errorf("failed to parse response from daemon: %w", err)
	}

	return response, nil
}

// IsRunning reports whether a daemon answers on the socket
func IsRunning() bool {
	_, err := SendCommandWithTimeout("VERSION", 2*time.Second)
	return err == nil
}

// StartDaemon launches `acp run` detached from the terminal
func StartDaemon() (int, error) {
	execPath, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"run", "--config-path", core.Config.ConfigPath}
	cmd := exec.Command(execPath, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("could not fork daemon process: %w", err)
	}
	pid := cmd.Process.Pid
	cmd.Process.Release()
	return pid, nil
}

// WaitForDaemon polls the socket until the daemon answers or timeout passes
func WaitForDaemon(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if IsRunning() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return errors.New("daemon socket was not ready in time")
}

// WaitForDaemonStop polls until the daemon no longer answers
func WaitForDaemonStop(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := SendCommandWithTimeout("VERSION", 500*time.Millisecond); err != nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return errors.New("daemon did not shut down in time")
}
