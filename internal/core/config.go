package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

const (
	BaseDirName    = ".config/acp"
	DataDirName    = ".local/share/acp"
	ConfigFileName = "config.hcl"
	PidFileName    = "daemon.pid"
	SocketName     = "daemon.sock"
	StateFileName  = "state.json"
	DatabaseName   = "acp.db"

	// ServiceName identifies the agent in the keyring and in notifications
	ServiceName = "acp"
)

// Config is the global configuration instance
var Config *Configuration

// Configuration represents the complete acp configuration
type Configuration struct {
	ConfigPath    string // Directory containing config.hcl, socket and pid file
	DataPath      string // Directory containing state.json and the history database
	Verbose       int
	Probe         ProbeConfig
	Portal        PortalConfig
	Schedule      ScheduleConfig
	Login         LoginConfig
	Watch         WatchConfig
	Notifications NotificationConfig
}

// ProbeConfig configures the connectivity check
type ProbeConfig struct {
	URL     string
	Timeout time.Duration
}

// PortalConfig configures the portal login/logout endpoints
type PortalConfig struct {
	LoginURL         string   // Empty means the origin of the detected portal URL
	LogoutURL        string   // Empty means the origin of the last portal URL + /logout?
	RedirectURL      string   // Value submitted as the post-login redirect target
	RejectionMarkers []string // Case-insensitive body markers meaning the portal refused the login
}

// ScheduleConfig configures the poll cadence and trigger handling
type ScheduleConfig struct {
	MinDelay  time.Duration
	MaxDelay  time.Duration
	Debounce  time.Duration
	QueueSize int
}

// LoginConfig configures the login retry ladder
type LoginConfig struct {
	MaxRetries        int
	InitialRetryDelay time.Duration
}

// WatchConfig selects the interface change sources
type WatchConfig struct {
	Netlink      bool
	PollInterval time.Duration
	SleepWake    bool
}

// NotificationConfig configures desktop notifications
type NotificationConfig struct {
	Enabled bool
}

type hclConfig struct {
	Verbose       int               `hcl:"verbose,optional"`
	Probe         *hclProbe         `hcl:"probe,block"`
	Portal        *hclPortal        `hcl:"portal,block"`
	Schedule      *hclSchedule      `hcl:"schedule,block"`
	Login         *hclLogin         `hcl:"login,block"`
	Watch         *hclWatch         `hcl:"watch,block"`
	Notifications *hclNotifications `hcl:"notifications,block"`
}

type hclProbe struct {
	URL     string `hcl:"url,optional"`
	Timeout string `hcl:"timeout,optional"`
}

type hclPortal struct {
	LoginURL         string   `hcl:"login_url,optional"`
	LogoutURL        string   `hcl:"logout_url,optional"`
	RedirectURL      string   `hcl:"redirect_url,optional"`
	RejectionMarkers []string `hcl:"rejection_markers,optional"`
}

type hclSchedule struct {
	MinDelay  string `hcl:"min_delay,optional"`
	MaxDelay  string `hcl:"max_delay,optional"`
	Debounce  string `hcl:"debounce,optional"`
	QueueSize int    `hcl:"queue_size,optional"`
}

type hclLogin struct {
	MaxRetries        int    `hcl:"max_retries,optional"`
	InitialRetryDelay string `hcl:"initial_retry_delay,optional"`
}

type hclWatch struct {
	Netlink      *bool  `hcl:"netlink,optional"`
	PollInterval string `hcl:"poll_interval,optional"`
	SleepWake    *bool  `hcl:"sleep_wake,optional"`
}

type hclNotifications struct {
	Enabled *bool `hcl:"enabled,optional"`
}

// GetDefaultConfig returns a Configuration with default values
func GetDefaultConfig() *Configuration {
	homeDir, _ := os.UserHomeDir()
	return &Configuration{
		ConfigPath: filepath.Join(homeDir, BaseDirName),
		DataPath:   filepath.Join(homeDir, DataDirName),
		Probe: ProbeConfig{
			URL:     "http://clients3.google.com/generate_204",
			Timeout: 10 * time.Second,
		},
		Portal: PortalConfig{
			RejectionMarkers: []string{"authentication failed", "invalid credentials"},
		},
		Schedule: ScheduleConfig{
			MinDelay:  10 * time.Second,
			MaxDelay:  1800 * time.Second,
			Debounce:  3 * time.Second,
			QueueSize: 10,
		},
		Login: LoginConfig{
			MaxRetries:        3,
			InitialRetryDelay: 2 * time.Second,
		},
		Watch: WatchConfig{
			Netlink:      true,
			PollInterval: 5 * time.Second,
			SleepWake:    true,
		},
		Notifications: NotificationConfig{Enabled: true},
	}
}

// LoadConfig loads the HCL configuration file on top of the defaults
func LoadConfig(filename string) (*Configuration, error) {
	var hclCfg hclConfig

	if err := hclsimple.DecodeFile(filename, nil, &hclCfg); err != nil {
		return nil, fmt.Errorf("failed to parse HCL config: %w", err)
	}

	cfg := GetDefaultConfig()
	cfg.ConfigPath = filepath.Dir(filename)
	cfg.Verbose = hclCfg.Verbose

	var err error
	if p := hclCfg.Probe; p != nil {
		if p.URL != "" {
			cfg.Probe.URL = p.URL
		}
		if cfg.Probe.Timeout, err = parseDuration("probe.timeout", p.Timeout, cfg.Probe.Timeout); err != nil {
			return nil, err
		}
	}

	if p := hclCfg.Portal; p != nil {
		cfg.Portal.LoginURL = p.LoginURL
		cfg.Portal.LogoutURL = p.LogoutURL
		cfg.Portal.RedirectURL = p.RedirectURL
		if len(p.RejectionMarkers) > 0 {
			cfg.Portal.RejectionMarkers = p.RejectionMarkers
		}
	}

	if s := hclCfg.Schedule; s != nil {
		if cfg.Schedule.MinDelay, err = parseDuration("schedule.min_delay", s.MinDelay, cfg.Schedule.MinDelay); err != nil {
			return nil, err
		}
		if cfg.Schedule.MaxDelay, err = parseDuration("schedule.max_delay", s.MaxDelay, cfg.Schedule.MaxDelay); err != nil {
			return nil, err
		}
		if cfg.Schedule.Debounce, err = parseDuration("schedule.debounce", s.Debounce, cfg.Schedule.Debounce); err != nil {
			return nil, err
		}
		if s.QueueSize > 0 {
			cfg.Schedule.QueueSize = s.QueueSize
		}
	}

	if l := hclCfg.Login; l != nil {
		if l.MaxRetries > 0 {
			cfg.Login.MaxRetries = l.MaxRetries
		}
		if cfg.Login.InitialRetryDelay, err = parseDuration("login.initial_retry_delay", l.InitialRetryDelay, cfg.Login.InitialRetryDelay); err != nil {
			return nil, err
		}
	}

	if w := hclCfg.Watch; w != nil {
		if w.Netlink != nil {
			cfg.Watch.Netlink = *w.Netlink
		}
		if w.SleepWake != nil {
			cfg.Watch.SleepWake = *w.SleepWake
		}
		if cfg.Watch.PollInterval, err = parseDuration("watch.poll_interval", w.PollInterval, cfg.Watch.PollInterval); err != nil {
			return nil, err
		}
	}

	if n := hclCfg.Notifications; n != nil && n.Enabled != nil {
		cfg.Notifications.Enabled = *n.Enabled
	}

	if cfg.Schedule.MinDelay > cfg.Schedule.MaxDelay {
		return nil, fmt.Errorf("schedule.min_delay (%s) exceeds schedule.max_delay (%s)",
			cfg.Schedule.MinDelay, cfg.Schedule.MaxDelay)
	}

	return cfg, nil
}

// parseDuration returns def for an empty value
func parseDuration(key, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, value)
	}
	return d, nil
}

// InitializeConfig loads config.hcl from configPath, falling back to
// defaults when the file does not exist
func InitializeConfig(configPath string) error {
	filename := filepath.Join(configPath, ConfigFileName)
	if !ConfigExists(filename) {
		Config = GetDefaultConfig()
		Config.ConfigPath = configPath
		return nil
	}

	cfg, err := LoadConfig(filename)
	if err != nil {
		Config = GetDefaultConfig()
		Config.ConfigPath = configPath
		return err
	}
	Config = cfg
	return nil
}

// ConfigExists checks if a config file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return err == nil
}

func GetConfigFilePath() string {
	return filepath.Join(Config.ConfigPath, ConfigFileName)
}

func GetSocketPath() string {
	return filepath.Join(Config.ConfigPath, SocketName)
}

func GetPIDFilePath() string {
	return filepath.Join(Config.ConfigPath, PidFileName)
}

func GetStatePath() string {
	return filepath.Join(Config.DataPath, StateFileName)
}

func GetDatabasePath() string {
	return filepath.Join(Config.DataPath, DatabaseName)
}
