package config_test

import (
	"fmt"
	"time"

	"focusguard/internal/config"
)

// Example of creating a default configuration
func ExampleDefault() {
	cfg := config.Default()
	fmt.Println("Poll Interval:", cfg.Tracker.PollInterval)
	fmt.Println("Min Popup Interval:", cfg.Popup.MinInterval)
	fmt.Println("Distracted:", cfg.Focus.DistractedCategories)
	// Output:
	// Poll Interval: 30s
	// Min Popup Interval: 30s
	// Distracted: [Entertainment]
}

// Example of setting poll interval with validation
func ExampleConfig_SetPollInterval() {
	cfg := config.Default()

	// Valid interval
	if err := cfg.SetPollInterval(45 * time.Second); err != nil {
		fmt.Println("Error:", err)
	} else {
		fmt.Println("Poll interval set to:", cfg.Tracker.PollInterval)
	}

	// Invalid interval (too low)
	if err := cfg.SetPollInterval(5 * time.Second); err != nil {
		fmt.Println("Error:", err)
	}

	// Output:
	// Poll interval set to: 45s
	// Error: poll interval cannot be less than 10s
}

// Example of validating configuration
func ExampleConfig_Validate() {
	cfg := config.Default()

	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid config:", err)
	} else {
		fmt.Println("Configuration is valid")
	}

	// Output:
	// Configuration is valid
}

// Example of repairing a broken policy configuration
func ExampleConfig_Sanitize() {
	cfg := config.Default()
	cfg.Popup.QuietHours = config.QuietHours{Enabled: true, Start: 25, End: 8}

	for _, w := range cfg.Sanitize(nil) {
		fmt.Println("warning:", w)
	}
	fmt.Println("Quiet hours:", cfg.Popup.QuietHours.Start, cfg.Popup.QuietHours.End)

	// Output:
	// warning: quiet hours 25-8 out of range, using 22-8
	// Quiet hours: 22 8
}
