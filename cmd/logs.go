package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.olrik.dev/acp/internal/core"
	"go.olrik.dev/acp/internal/daemon"
)

func NewLogsCommand() *cobra.Command {
	var lines int

	logsCmd := &cobra.Command{
		Use:     "logs",
		Aliases: []string{"log"},
		Short:   "Stream daemon logs in real-time",
		Long: `Stream daemon logs in real-time.

Press Ctrl+C to exit. By default, only shows INFO level and above.

Filter categories:
  check    - Check cycles and regime changes
  portal   - Portal detection and scraping
  login    - Login attempts and notifications
  network  - Interface, netlink and resume events
  system   - Daemon start/stop and config reload

Examples:
  acp logs               # Stream INFO and above
  acp logs -v            # Include DEBUG logs
  acp logs -F login      # Filter to login attempts
  acp logs -F wlan0      # Filter by keyword
  acp logs -L 50         # Show 50 history lines on connect

Automatically reconnects if the daemon is restarted.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if !daemon.IsRunning() {
				slog.Error("Daemon is not running. Use 'acp start' to start it.")
				os.Exit(1)
			}

			verbose := core.Config.Verbose > 0
			filter, _ := cmd.Flags().GetString("filter")
			noColor, _ := cmd.Flags().GetBool("no-color")

			// Set up signal handler for Ctrl+C
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			// Track reconnection state to suppress history on reconnect
			isReconnect := false

			// Reconnect loop
			for {
				conn, err := net.Dial("unix", core.GetSocketPath())
				if err != nil {
					slog.Error(fmt.Sprintf("Failed to connect to daemon: %v", err))
					os.Exit(1)
				}

				// Build LOGS command with optional lines count and no_history flag
				logsCmd := fmt.Sprintf("LOGS %d", lines)
				if isReconnect {
					logsCmd += " no_history"
				}
				logsCmd += "\n"

				if _, err := conn.Write([]byte(logsCmd)); err != nil {
					conn.Close()
					slog.Error(fmt.Sprintf("Failed to send LOGS command: %v", err))
					os.Exit(1)
				}

				// Channel to signal when reading is done
				done := make(chan bool)

				go func() {
					reader := bufio.NewReader(conn)
					for {
						line, err := reader.ReadString('\n')
						if err != nil {
							done <- true
							return
						}

						// Filter logs based on verbose flag
						// Skip DEBUG logs if not verbose
						// Check both plain "DBG" and ANSI-colored version
						if !verbose && isDebugLog(line) {
							continue
						}

						// Apply filter if specified
						if filter != "" && !matchesFilter(line, filter) {
							continue
						}

						// Strip color codes if --no-color
						if noColor {
							line = stripANSI(line)
						}

						fmt.Print(line)
					}
				}()

				// Wait for either Ctrl+C or connection close
				select {
				case <-sigChan:
					conn.Close()
					fmt.Println("\nDisconnected from daemon logs.")
					return
				case <-done:
					conn.Close()
					// Try to reconnect after a short delay
					fmt.Println("Connection lost. Reconnecting...")
					time.Sleep(500 * time.Millisecond)

					// Wait for daemon to be available again (up to 5 seconds)
					reconnected := false
					for i := 0; i < 10; i++ {
						if daemon.IsRunning() {
							reconnected = true
							break
						}
						time.Sleep(500 * time.Millisecond)
					}

					if !reconnected {
						fmt.Println("Daemon not available. Exiting.")
						return
					}
					// Mark as reconnect to suppress history on next connection
					isReconnect = true
					// Continue loop to reconnect
				}
			}
		},
	}

	logsCmd.Flags().StringP("filter", "F", "", "Filter logs by category or keyword (check, portal, login, network, system)")
	logsCmd.Flags().Bool("no-color", false, "Disable colored output")
	logsCmd.Flags().IntVarP(&lines, "lines", "L", 20, "Number of history lines to show on connect")

	return logsCmd
}

// isDebugLog checks if a log line is a DEBUG level log
func isDebugLog(line string) bool {
	// Check for plain DBG
	if strings.Contains(line, " DBG ") || strings.Contains(line, "\tDBG\t") {
		return true
	}
	// Check for ANSI-colored DBG (gray color: \033[90mDBG\033[0m)
	if strings.Contains(line, "\033[90mDBG\033[0m") {
		return true
	}
	// Strip ANSI and check again
	stripped := stripANSI(line)
	return strings.Contains(stripped, " DBG ") || strings.Contains(stripped, "\tDBG\t")
}

// matchesFilter checks if a log line matches the filter criteria
func matchesFilter(line, filter string) bool {
	filter = strings.ToLower(filter)
	lineLower := strings.ToLower(line)

	switch filter {
	case "check":
		return strings.Contains(lineLower, "cycle") ||
			strings.Contains(lineLower, "regime") ||
			strings.Contains(lineLower, "next_check")
	case "portal":
		return strings.Contains(lineLower, "portal") ||
			strings.Contains(lineLower, "probe") ||
			strings.Contains(lineLower, "magic")
	case "login":
		return strings.Contains(lineLower, "login") ||
			strings.Contains(lineLower, "logged in") ||
			strings.Contains(lineLower, "credentials") ||
			strings.Contains(lineLower, "notification")
	case "network":
		return strings.Contains(lineLower, "interface") ||
			strings.Contains(lineLower, "netlink") ||
			strings.Contains(lineLower, "resume") ||
			strings.Contains(lineLower, "network change")
	case "system":
		return strings.Contains(lineLower, "daemon") ||
			strings.Contains(lineLower, "config") ||
			strings.Contains(lineLower, "shutdown")
	default:
		return strings.Contains(lineLower, filter)
	}
}

// stripANSI removes ANSI escape codes from a string
func stripANSI(s string) string {
	var result strings.Builder
	inEscape := false

	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if s[i] == 'm' {
				inEscape = false
			}
			continue
		}
		result.WriteByte(s[i])
	}

	return result.String()
}
