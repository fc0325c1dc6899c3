package daemon

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"go.olrik.dev/acp/internal/core"
)

// LogBroadcaster keeps recent log lines and fans new ones out to
// streaming clients
type LogBroadcaster struct {
	clients map[chan string]bool
	history []string // Ring buffer for recent messages
	maxHist int      // Maximum history size
	mu      sync.RWMutex
}

// NewLogBroadcaster creates a new log broadcaster with the specified history size
func NewLogBroadcaster(historySize int) *LogBroadcaster {
	if historySize <= 0 {
		historySize = 1000
	}
	return &LogBroadcaster{
		clients: make(map[chan string]bool),
		history: make([]string, 0, historySize),
		maxHist: historySize,
	}
}

// Subscribe adds a new client without history
func (lb *LogBroadcaster) Subscribe() chan string {
	ch, _ := lb.SubscribeWithHistory(0)
	return ch
}

// SubscribeWithHistory adds a new client and returns up to historyLines of
// recent history
func (lb *LogBroadcaster) SubscribeWithHistory(historyLines int) (chan string, []string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	ch := make(chan string, 100) // Buffer to prevent blocking
	lb.clients[ch] = true

	var history []string
	if historyLines > 0 && len(lb.history) > 0 {
		start := max(len(lb.history)-historyLines, 0)
		history = make([]string, len(lb.history)-start)
		copy(history, lb.history[start:])
	}

	return ch, history
}

// Unsubscribe removes a client from receiving broadcasts
func (lb *LogBroadcaster) Unsubscribe(ch chan string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	delete(lb.clients, ch)
	close(ch)
}

// Broadcast records message and sends it to every client
func (lb *LogBroadcaster) Broadcast(message string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if len(lb.history) >= lb.maxHist {
		lb.history = lb.history[1:]
	}
	lb.history = append(lb.history, message)

	for ch := range lb.clients {
		select {
		case ch <- message:
		default:
			// Slow client, drop rather than block logging
		}
	}
}

// LogWriter is an io.Writer that broadcasts log messages
type LogWriter struct {
	broadcaster *LogBroadcaster
}

func (lw *LogWriter) Write(p []byte) (n int, err error) {
	lw.broadcaster.Broadcast(string(p))
	return len(p), nil
}

// logLevel maps the verbose count to a slog level
func logLevel(verbose int) slog.Level {
	if verbose > 0 {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// setupLogging configures the daemon's logger to broadcast to connected clients
func (d *Daemon) setupLogging() {
	logWriter := &LogWriter{broadcaster: d.logBroadcast}
	multiWriter := io.MultiWriter(os.Stderr, logWriter)

	handler := tint.NewHandler(multiWriter, &tint.Options{
		Level:      logLevel(core.Config.Verbose),
		TimeFormat: time.DateTime,
	})

	slog.SetDefault(slog.New(handler))
}

// handleLogsWithHistory streams daemon logs to the client until they disconnect
func (d *Daemon) handleLogsWithHistory(conn net.Conn, showHistory bool, historyLines int) {
	defer conn.Close()

	if !showHistory {
		historyLines = 0
	}
	logChan, history := d.logBroadcast.SubscribeWithHistory(historyLines)
	defer d.logBroadcast.Unsubscribe(logChan)

	initialMsg := "Connected to acp daemon logs. Press Ctrl+C to exit.\n"
	if _, err := conn.Write([]byte(initialMsg)); err != nil {
		slog.Warn(fmt.Sprintf("Failed to send initial message to logs client: %v", err))
		return
	}

	for _, msg := range history {
		if _, err := conn.Write([]byte(msg)); err != nil {
			return
		}
	}

	// Detect when client disconnects
	done := make(chan bool, 1)
	go func() {
		io.Copy(io.Discard, bufio.NewReader(conn))
		done <- true
	}()

	for {
		select {
		case logMsg, ok := <-logChan:
			if !ok {
				return
			}
			if _, err := conn.Write([]byte(logMsg)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
