package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads the first .env file found in the working directory or
// ~/.config/focusguard. Variables already set in the environment win.
func LoadDotEnv() {
	for _, path := range envPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func envPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "focusguard", ".env"))
	}
	return paths
}

// LoadFromEnv loads configuration from environment variables
// Environment variables override default values
func LoadFromEnv(cfg *Config) {
	// Database configuration
	if dbPath := os.Getenv("FOCUSGUARD_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	// Tracker configuration
	if interval, ok := envDuration("FOCUSGUARD_POLL_INTERVAL"); ok {
		if interval >= cfg.Tracker.MinPollInterval && interval <= cfg.Tracker.MaxPollInterval {
			cfg.Tracker.PollInterval = interval
		}
	}
	if threshold, ok := envDuration("FOCUSGUARD_IDLE_THRESHOLD"); ok {
		cfg.Tracker.IdleThreshold = threshold
	}
	if flush, ok := envDuration("FOCUSGUARD_FLUSH_INTERVAL"); ok {
		cfg.Tracker.FlushInterval = flush
	}
	if minAttr, ok := envDuration("FOCUSGUARD_MIN_ATTRIBUTION"); ok {
		cfg.Tracker.MinAttribution = minAttr
	}
	if window, ok := envDuration("FOCUSGUARD_CONTINUITY_WINDOW"); ok {
		cfg.Tracker.ContinuityWindow = window
	}
	if maxGap, ok := envDuration("FOCUSGUARD_MAX_GAP"); ok {
		cfg.Tracker.MaxGap = maxGap
	}
	if browsers := envList("FOCUSGUARD_BROWSERS"); browsers != nil {
		cfg.Tracker.BrowserClasses = browsers
	}
	if resolver := os.Getenv("FOCUSGUARD_TAB_RESOLVER"); resolver != "" {
		cfg.Tracker.TabResolver = resolver
	}

	// Focus configuration
	if distracted := envList("FOCUSGUARD_DISTRACTED"); distracted != nil {
		cfg.Focus.DistractedCategories = distracted
	}
	if rules := os.Getenv("FOCUSGUARD_RULES_FILE"); rules != "" {
		cfg.Focus.RulesFile = rules
	}

	// Popup configuration
	if interval, ok := envDuration("FOCUSGUARD_POPUP_MIN_INTERVAL"); ok {
		cfg.Popup.MinInterval = interval
	}
	if maxConsecutive := os.Getenv("FOCUSGUARD_POPUP_MAX_CONSECUTIVE"); maxConsecutive != "" {
		if n, err := strconv.Atoi(maxConsecutive); err == nil {
			cfg.Popup.MaxConsecutive = n
		}
	}
	if adaptive, ok := envBool("FOCUSGUARD_POPUP_ADAPTIVE"); ok {
		cfg.Popup.AdaptiveDelay = adaptive
	}
	if respect, ok := envBool("FOCUSGUARD_POPUP_RESPECT_FOCUS"); ok {
		cfg.Popup.RespectFocusTime = respect
	}
	if grace, ok := envDuration("FOCUSGUARD_POPUP_GRACE"); ok {
		cfg.Popup.EarlySessionGrace = grace
	}
	if cooldown, ok := envDuration("FOCUSGUARD_POPUP_BURST_COOLDOWN"); ok {
		cfg.Popup.BurstCooldown = cooldown
	}
	if brk, ok := envDuration("FOCUSGUARD_POPUP_BREAK"); ok {
		cfg.Popup.BreakDuration = brk
	}
	if quiet := os.Getenv("FOCUSGUARD_QUIET_HOURS"); quiet != "" {
		if start, end, ok := parseHourRange(quiet); ok {
			cfg.Popup.QuietHours = QuietHours{Enabled: true, Start: start, End: end}
		}
	}
	if notify, ok := envBool("FOCUSGUARD_NOTIFY"); ok {
		cfg.Popup.Notify = notify
	}

	// Daemon configuration
	if pidFile := os.Getenv("FOCUSGUARD_PID_FILE"); pidFile != "" {
		cfg.Daemon.PIDFile = pidFile
	}
	if logFile := os.Getenv("FOCUSGUARD_LOG_FILE"); logFile != "" {
		cfg.Daemon.LogFile = logFile
	}
	if debug, ok := envBool("FOCUSGUARD_DEBUG"); ok {
		cfg.Daemon.Debug = debug
	}

	// Web configuration
	if webHost := os.Getenv("FOCUSGUARD_WEB_HOST"); webHost != "" {
		cfg.Web.Host = webHost
	}
	if webPort := os.Getenv("FOCUSGUARD_WEB_PORT"); webPort != "" {
		if port, err := strconv.Atoi(webPort); err == nil && port > 0 && port <= 65535 {
			cfg.Web.Port = port
		}
	}

	// Companion configuration
	if url := os.Getenv("FOCUSGUARD_COMPANION_URL"); url != "" {
		cfg.Companion.URL = url
	}
	if timeout, ok := envDuration("FOCUSGUARD_COMPANION_TIMEOUT"); ok {
		cfg.Companion.Timeout = timeout
	}
}

// New creates a new Config with default values, .env files and environment overrides
func New() *Config {
	LoadDotEnv()
	cfg := Default()
	LoadFromEnv(cfg)
	return cfg
}

// envDuration accepts Go durations ("30s", "5m") or plain seconds.
func envDuration(key string) (time.Duration, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d, true
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

func envBool(key string) (bool, bool) {
	value := os.Getenv(key)
	if value == "" {
		return false, false
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, false
	}
	return b, true
}

func envList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseHourRange parses "22-8" into its bounds. Range checks happen in Sanitize.
func parseHourRange(value string) (int, int, bool) {
	parts := strings.SplitN(value, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}
