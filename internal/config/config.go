package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Tracker (sampler) configuration
	Tracker TrackerConfig

	// Focus session and categorization configuration
	Focus FocusConfig

	// Popup intervention policy configuration
	Popup PopupConfig

	// Daemon configuration
	Daemon DaemonConfig

	// Web server configuration
	Web WebConfig

	// AI companion configuration
	Companion CompanionConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path        string // Path to SQLite database file
	BackupLimit int    // Rotated blob backups retained per key
}

// TrackerConfig holds sampling behavior configuration
type TrackerConfig struct {
	PollInterval     time.Duration // How often to sample the foreground window
	MinPollInterval  time.Duration // Minimum allowed poll interval
	MaxPollInterval  time.Duration // Maximum allowed poll interval
	IdleThreshold    time.Duration // Time without input before the user counts as idle
	FlushInterval    time.Duration // How often the usage store is written to the database
	MinAttribution   time.Duration // Deltas shorter than this are carried to the next tick
	ContinuityWindow time.Duration // Max gap for extending the last timestamp entry
	MaxGap           time.Duration // Deltas longer than this are treated as a sampling gap
	BrowserClasses   []string      // Process classes resolved through the tab resolver
	TabResolver      string        // External command printing the active tab as JSON
}

// FocusConfig holds categorization and focus session configuration
type FocusConfig struct {
	DistractedCategories []string // Categories that end a focus session
	RulesFile            string   // Optional YAML file with category rules and overrides
}

// QuietHours is a [Start, End) clock-hour window that may wrap midnight
type QuietHours struct {
	Enabled bool
	Start   int
	End     int
}

// PopupConfig holds intervention policy configuration
type PopupConfig struct {
	MinInterval       time.Duration // Base minimum interval between popups
	MaxConsecutive    int           // Popups in a burst before the burst cooldown applies
	AdaptiveDelay     bool          // Learn the interval multiplier from user responses
	RespectFocusTime  bool          // Protect the start of a focus session
	EarlySessionGrace time.Duration // Length of the protected session start
	BurstCooldown     time.Duration // Quiet period required after a burst
	BreakDuration     time.Duration // Popups suppressed after a "cooldown" response
	DismissBase       time.Duration // First per-category dismissal duration
	DismissMax        time.Duration // Cap for the doubling dismissal duration
	QuietHours        QuietHours
	Notify            bool // Show a desktop notification on popup requests
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string // Path to PID file for daemon management
	LogFile string // Path to the daemon log file
	Debug   bool   // Enable debug logging
}

// WebConfig holds web server configuration
type WebConfig struct {
	Host string // Host to bind web server to
	Port int    // Port for web server
}

// CompanionConfig holds AI chat companion configuration
type CompanionConfig struct {
	URL     string        // Base URL of the companion service, empty disables it
	Timeout time.Duration // Timeout for chat requests
}

// Default category names referenced by the configuration defaults.
const (
	DefaultDistractedCategory = "Entertainment"
	DefaultQuietStart         = 22
	DefaultQuietEnd           = 8
	DefaultMaxConsecutive     = 3
)

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "", // Empty means use default ~/.config/focusguard/focusguard.db
			BackupLimit: 5,
		},
		Tracker: TrackerConfig{
			PollInterval:     30 * time.Second,
			MinPollInterval:  10 * time.Second,
			MaxPollInterval:  300 * time.Second,
			IdleThreshold:    120 * time.Second,
			FlushInterval:    60 * time.Second,
			MinAttribution:   10 * time.Second,
			ContinuityWindow: 10 * time.Second,
			MaxGap:           10 * time.Minute,
			BrowserClasses: []string{
				"chrome.exe", "brave.exe", "msedge.exe", "firefox.exe",
				"google-chrome", "chromium", "brave-browser", "firefox",
			},
		},
		Focus: FocusConfig{
			DistractedCategories: []string{DefaultDistractedCategory},
		},
		Popup: PopupConfig{
			MinInterval:       30 * time.Second,
			MaxConsecutive:    DefaultMaxConsecutive,
			AdaptiveDelay:     true,
			RespectFocusTime:  true,
			EarlySessionGrace: 5 * time.Minute,
			BurstCooldown:     10 * time.Minute,
			BreakDuration:     5 * time.Minute,
			DismissBase:       15 * time.Minute,
			DismissMax:        2 * time.Hour,
			QuietHours: QuietHours{
				Enabled: false,
				Start:   DefaultQuietStart,
				End:     DefaultQuietEnd,
			},
			Notify: true,
		},
		Daemon: DaemonConfig{
			PIDFile: fmt.Sprintf("/tmp/focusguard-%d.pid", os.Getuid()),
			LogFile: fmt.Sprintf("/tmp/focusguard-%d.log", os.Getuid()),
		},
		Web: WebConfig{
			Host: "localhost",
			Port: 10000 + os.Getuid(), // Default port based on user ID
		},
		Companion: CompanionConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// Validate checks if the configuration is usable at all
func (c *Config) Validate() error {
	if c.Tracker.PollInterval < c.Tracker.MinPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be less than minimum (%v)",
			c.Tracker.PollInterval, c.Tracker.MinPollInterval)
	}

	if c.Tracker.PollInterval > c.Tracker.MaxPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be greater than maximum (%v)",
			c.Tracker.PollInterval, c.Tracker.MaxPollInterval)
	}

	if c.Tracker.IdleThreshold < 0 {
		return fmt.Errorf("idle threshold cannot be negative")
	}

	if c.Tracker.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %v", c.Tracker.FlushInterval)
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return fmt.Errorf("web host cannot be empty")
	}

	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	return nil
}

// Sanitize corrects policy misconfiguration to safe defaults. knownCategories
// lists the category names of the active rule-set; nil skips that check.
// Every correction is reported as a warning string.
func (c *Config) Sanitize(knownCategories []string) []string {
	var warnings []string

	qh := &c.Popup.QuietHours
	if qh.Start < 0 || qh.Start > 23 || qh.End < 0 || qh.End > 23 {
		warnings = append(warnings, fmt.Sprintf("quiet hours %d-%d out of range, using %d-%d",
			qh.Start, qh.End, DefaultQuietStart, DefaultQuietEnd))
		qh.Start = DefaultQuietStart
		qh.End = DefaultQuietEnd
	}

	if c.Popup.MaxConsecutive < 1 {
		warnings = append(warnings, fmt.Sprintf("max consecutive popups %d invalid, using %d",
			c.Popup.MaxConsecutive, DefaultMaxConsecutive))
		c.Popup.MaxConsecutive = DefaultMaxConsecutive
	}

	if knownCategories != nil {
		kept := c.Focus.DistractedCategories[:0]
		for _, name := range c.Focus.DistractedCategories {
			if slices.Contains(knownCategories, name) {
				kept = append(kept, name)
				continue
			}
			warnings = append(warnings, fmt.Sprintf("unknown distracted category %q ignored", name))
		}
		c.Focus.DistractedCategories = kept
	}

	if len(c.Focus.DistractedCategories) == 0 {
		warnings = append(warnings, fmt.Sprintf("no distracted categories, using %q", DefaultDistractedCategory))
		c.Focus.DistractedCategories = []string{DefaultDistractedCategory}
	}

	return warnings
}

// SetPollInterval sets the poll interval with validation
func (c *Config) SetPollInterval(interval time.Duration) error {
	if interval < c.Tracker.MinPollInterval {
		return fmt.Errorf("poll interval cannot be less than %v", c.Tracker.MinPollInterval)
	}
	if interval > c.Tracker.MaxPollInterval {
		return fmt.Errorf("poll interval cannot be greater than %v", c.Tracker.MaxPollInterval)
	}
	c.Tracker.PollInterval = interval
	return nil
}

// SetWebPort sets the web server port with validation
func (c *Config) SetWebPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	c.Web.Port = port
	return nil
}

// SetQuietHours enables quiet hours for [start, end) with validation
func (c *Config) SetQuietHours(start, end int) error {
	if start < 0 || start > 23 || end < 0 || end > 23 {
		return fmt.Errorf("quiet hours must be between 0 and 23, got %d-%d", start, end)
	}
	c.Popup.QuietHours = QuietHours{Enabled: true, Start: start, End: end}
	return nil
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Database:
    Path: %s
    Backups: %d
  Tracker:
    Poll Interval: %v
    Idle Threshold: %v
    Flush Interval: %v
    Continuity Window: %v
    Browsers: %s
  Focus:
    Distracted: %s
    Rules File: %s
  Popup:
    Min Interval: %v
    Max Consecutive: %d
    Early Session Grace: %v
    Burst Cooldown: %v
    Quiet Hours: %v (%d-%d)
  Daemon:
    PID File: %s
    Log File: %s
  Web:
    Host: %s
    Port: %d
  Companion:
    URL: %s`,
		c.Database.Path,
		c.Database.BackupLimit,
		c.Tracker.PollInterval,
		c.Tracker.IdleThreshold,
		c.Tracker.FlushInterval,
		c.Tracker.ContinuityWindow,
		strings.Join(c.Tracker.BrowserClasses, ", "),
		strings.Join(c.Focus.DistractedCategories, ", "),
		c.Focus.RulesFile,
		c.Popup.MinInterval,
		c.Popup.MaxConsecutive,
		c.Popup.EarlySessionGrace,
		c.Popup.BurstCooldown,
		c.Popup.QuietHours.Enabled,
		c.Popup.QuietHours.Start,
		c.Popup.QuietHours.End,
		c.Daemon.PIDFile,
		c.Daemon.LogFile,
		c.Web.Host,
		c.Web.Port,
		c.Companion.URL,
	)
}
