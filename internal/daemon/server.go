package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"go.olrik.dev/acp/internal/core"
	"go.olrik.dev/acp/internal/db"
	"go.olrik.dev/acp/internal/keyring"
	"go.olrik.dev/acp/internal/netwatch"
	"go.olrik.dev/acp/internal/state"
)

// ErrAlreadyRunning is returned by Run when another daemon owns the socket
var ErrAlreadyRunning = errors.New("daemon is already running")

// historyRetention bounds the check history kept in the database
const historyRetention = 30 * 24 * time.Hour

// Daemon hosts the check loop and serves the control socket.
type Daemon struct {
	loop         *Loop
	bridge       *netwatch.Bridge
	listener     net.Listener
	logBroadcast *LogBroadcaster // For streaming logs to clients
	database     *db.DB          // Check history, nil if unavailable
	startTime    time.Time
	ctx          context.Context
	cancelFunc   context.CancelFunc
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

func New() *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		logBroadcast: NewLogBroadcaster(1000),
		ctx:          ctx,
		cancelFunc:   cancel,
	}
}

// Run starts the daemon and blocks until it is stopped by a signal or the
// STOP command.
func (d *Daemon) Run() error {
	d.setupLogging()
	d.startTime = time.Now()

	socketPath := core.GetSocketPath()
	pidFilePath := core.GetPIDFilePath()

	if err := os.MkdirAll(core.Config.ConfigPath, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	listener, err := listen(socketPath)
	if err != nil {
		return err
	}
	d.listener = listener

	if err := os.WriteFile(pidFilePath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		slog.Warn("Failed to write PID file", "path", pidFilePath, "error", err)
	}
	defer os.Remove(pidFilePath)
	defer os.Remove(socketPath)

	slog.Info(fmt.Sprintf("Daemon listening on %s", socketPath))

	d.openDatabase()

	logger := slog.Default()
	detector, client := NewPortal(core.Config, logger)
	comps := Components{
		Detector:    detector,
		Login:       client,
		Credentials: openCredentials(),
		Notifier:    NewNotifier(core.Config, logger),
		Store:       state.NewStore(core.GetStatePath()),
	}
	if d.database != nil {
		comps.History = d.database
	}

	d.loop = NewLoop(comps, OptionsFromConfig(core.Config), core.Config.Schedule.QueueSize, logger)
	d.bridge = netwatch.NewBridge(core.Config.Schedule.Debounce, func(c netwatch.Change) {
		d.loop.Trigger(c.Source)
	}, logger)
	sources := netwatch.DefaultSources(WatchOptions(core.Config), logger)

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		d.loop.Run(d.ctx)
	}()
	go func() {
		defer d.wg.Done()
		d.bridge.Run(d.ctx, sources...)
	}()

	d.watchConfig()
	d.handleSignals()
	d.notifySystemd()

	for {
		conn, err := d.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				slog.Info(fmt.Sprintf("Error accepting connection: %v", err))
			}
			break
		}
		go d.handleConnection(conn)
	}

	d.shutdown()
	d.wg.Wait()
	d.closeDatabase()
	return nil
}

// listen creates the control socket, replacing a stale socket file left
// behind by a daemon that did not shut down cleanly
func listen(socketPath string) (net.Listener, error) {
	listener, err := net.Listen("unix", socketPath)
	if err == nil {
		return listener, nil
	}

	if _, statErr := os.Stat(socketPath); statErr != nil {
		return nil, fmt.Errorf("could not create socket listener: %w", err)
	}

	// Socket file exists, see if a daemon answers on it
	if conn, dialErr := net.Dial("unix", socketPath); dialErr == nil {
		conn.Close()
		return nil, ErrAlreadyRunning
	}

	slog.Info(fmt.Sprintf("Removing stale socket file: %s", socketPath))
	if err := os.Remove(socketPath); err != nil {
		return nil, fmt.Errorf("could not remove stale socket: %w", err)
	}

	listener, err = net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("could not create socket listener: %w", err)
	}
	return listener, nil
}

func (d *Daemon) openDatabase() {
	dbPath := core.GetDatabasePath()
	database, err := db.Open(dbPath)
	if err != nil {
		slog.Error("Failed to open database, check history disabled", "error", err, "path", dbPath)
		return
	}
	d.database = database
	slog.Info("Database opened", "path", dbPath)

	version := core.FormatVersion(core.Version)
	if err := d.database.LogDaemonEvent("start", fmt.Sprintf("daemon started - version: %s, PID: %d", version, os.Getpid())); err != nil {
		slog.Error("Failed to log daemon start", "error", err)
	}
	if n, err := d.database.PruneChecks(time.Now().Add(-historyRetention)); err != nil {
		slog.Warn("Failed to prune check history", "error", err)
	} else if n > 0 {
		slog.Debug("Pruned check history", "rows", n)
	}
}

func (d *Daemon) closeDatabase() {
	if d.database == nil {
		return
	}

	version := core.FormatVersion(core.Version)
	uptime := time.Since(d.startTime).Round(time.Second)
	if err := d.database.LogDaemonEvent("stop", fmt.Sprintf("daemon stopped - version: %s, PID: %d, uptime: %s", version, os.Getpid(), uptime)); err != nil {
		slog.Error("Failed to log daemon stop event", "error", err)
	}
	if err := d.database.Close(); err != nil {
		slog.Error("Failed to close database during shutdown", "error", err)
	}
}

// openCredentials opens the OS keyring. When no keyring backend is
// available every login fails with the open error until one appears.
func openCredentials() CredentialProvider {
	store, err := keyring.Open(core.ServiceName)
	if err != nil {
		slog.Error("Keyring unavailable, logins will fail", "error", err)
		return unavailableCredentials{err: err}
	}
	return store
}

type unavailableCredentials struct {
	err error
}

func (u unavailableCredentials) Get() (keyring.Credentials, error) {
	return keyring.Credentials{}, u.err
}

func (u unavailableCredentials) Set(string, string) error { return u.err }

func (u unavailableCredentials) Clear() error { return u.err }

func (d *Daemon) handleSignals() {
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-shutdownChan:
			slog.Info("Shutdown signal received", "signal", sig.String())
			d.shutdown()
		case <-d.ctx.Done():
		}
		signal.Stop(shutdownChan)
	}()
}

// notifySystemd reports readiness and feeds the watchdog when running
// under a Type=notify unit. Outside systemd these are no-ops.
func (d *Daemon) notifySystemd() {
	if ok, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		slog.Debug("sd_notify failed", "error", err)
	} else if ok {
		slog.Debug("Notified systemd of readiness")
	}

	interval, err := sd.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-d.ctx.Done():
				return
			case <-ticker.C:
				sd.SdNotify(false, sd.SdNotifyWatchdog)
			}
		}
	}()
}

// shutdown cancels the loop, the watchers and the listener. Safe to call
// multiple times from multiple goroutines.
func (d *Daemon) shutdown() {
	d.shutdownOnce.Do(func() {
		slog.Info("Executing shutdown sequence...")
		sd.SdNotify(false, sd.SdNotifyStopping)

		if d.cancelFunc != nil {
			d.cancelFunc()
		}
		if d.listener != nil {
			d.listener.Close()
		}
	})
}

func (d *Daemon) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}

	parts := strings.Fields(scanner.Text())
	if len(parts) == 0 {
		return
	}
	command, args := strings.ToUpper(parts[0]), parts[1:]

	// STATUS and VERSION are polled by the CLI, keep them out of the log
	if command != "STATUS" && command != "VERSION" {
		slog.Info(fmt.Sprintf("Executing command: %s", command))
	}

	var response Response
	switch command {
	case "STATUS":
		response = d.getStatus()
	case "CHECK":
		response = d.requestCheck()
	case "VERSION":
		response = d.getVersion()
	case "STOP":
		response = d.stopDaemon()
		// Send response before shutting down
		conn.Write([]byte(response.ToJSON()))
		d.shutdown()
		return
	case "LOGS":
		// Stream instead of a JSON response
		historyLines := 20
		showHistory := true
		if len(args) >= 1 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				historyLines = n
			}
			if args[0] == "no_history" || (len(args) >= 2 && args[1] == "no_history") {
				showHistory = false
			}
		}
		d.handleLogsWithHistory(conn, showHistory, historyLines)
		return
	default:
		response.AddMessage(fmt.Sprintf("Unknown command: %s", command), StatusError)
	}

	conn.Write([]byte(response.ToJSON()))
}

func (d *Daemon) getStatus() Response {
	response := Response{}
	if d.loop == nil {
		response.AddMessage("Check loop not running", StatusWarn)
		return response
	}

	status := d.loop.Status()
	if status.CredentialsMissing {
		response.AddMessage("No credentials configured, run 'acp setup'", StatusWarn)
	} else {
		response.AddMessage("OK", StatusInfo)
	}
	response.AddData(status)
	return response
}

func (d *Daemon) requestCheck() Response {
	response := Response{}
	if d.loop == nil {
		response.AddMessage("Check loop not running", StatusError)
		return response
	}

	if d.loop.Trigger(SourceManual) {
		response.AddMessage("Check requested", StatusInfo)
	} else {
		response.AddMessage("A check is already queued", StatusWarn)
	}
	return response
}

func (d *Daemon) getVersion() Response {
	response := Response{}
	response.AddMessage("OK", StatusInfo)
	response.AddData(VersionInfo{
		Version: core.Version,
		PID:     os.Getpid(),
	})
	return response
}

// stopDaemon handles the STOP command to shutdown the daemon
func (d *Daemon) stopDaemon() Response {
	response := Response{}
	response.AddMessage("Stopping daemon...", StatusInfo)
	return response
}
