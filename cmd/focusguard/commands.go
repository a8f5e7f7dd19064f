package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"focusguard/internal/config"
	"focusguard/internal/daemon"
	"focusguard/internal/logger"
	"focusguard/internal/reporter"
	"focusguard/internal/usage"
	"focusguard/pkg/browser"
	"focusguard/pkg/detector"
	"focusguard/pkg/utils"
)

func startDaemon(args []string) {
	cfg := loadConfig()
	applyServeFlags(cfg, args)
	dm := daemon.New(cfg.Daemon.PIDFile)

	if !daemon.IsChild() {
		ensureNotRunning(dm)

		pid, err := daemon.Daemonize()
		if err != nil {
			fatalf("Failed to start daemon: %v", err)
		}
		fmt.Printf("Daemon started successfully (PID: %d)\n", pid)
		fmt.Printf("Web API available at: http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
		fmt.Printf("Logs: %s\n", cfg.Daemon.LogFile)
		return
	}

	logFile, err := daemon.OpenLog(cfg.Daemon.LogFile)
	if err == nil {
		logger.SetOutput(logFile, logger.Level(cfg.Daemon.Debug))
		defer logFile.Close()
	}

	if err := serve(cfg, dm); err != nil {
		logger.Error("daemon exited", "error", err)
		os.Exit(1)
	}
}

func serveForeground(args []string) {
	cfg := loadConfig()
	applyServeFlags(cfg, args)
	dm := daemon.New(cfg.Daemon.PIDFile)
	ensureNotRunning(dm)

	logger.SetOutput(os.Stderr, logger.Level(cfg.Daemon.Debug))
	if err := serve(cfg, dm); err != nil {
		fatalf("focusguard: %v", err)
	}
}

// applyServeFlags handles the options of start and serve. The daemon child
// is started with the same arguments and parses them again.
func applyServeFlags(cfg *config.Config, args []string) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--debug":
			cfg.Daemon.Debug = true
		case "--port":
			if i+1 >= len(args) {
				fatalf("--port requires a value")
			}
			i++
			port, err := strconv.Atoi(args[i])
			if err != nil {
				fatalf("Invalid port %q", args[i])
			}
			if err := cfg.SetWebPort(port); err != nil {
				fatalf("Invalid port: %v", err)
			}
		default:
			fatalf("Unknown option: %s", args[i])
		}
	}
}

func serve(cfg *config.Config, dm *daemon.Daemon) error {
	s, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return run(s, dm)
}

func ensureNotRunning(dm *daemon.Daemon) {
	running, pid, err := dm.IsRunning()
	if err != nil {
		fatalf("Failed to check daemon status: %v", err)
	}
	if running {
		fatalf("Daemon is already running (PID: %d)", pid)
	}
}

func stopDaemon() {
	cfg := config.New()
	dm := daemon.New(cfg.Daemon.PIDFile)

	running, pid, err := dm.IsRunning()
	if err != nil {
		fatalf("Failed to check daemon status: %v", err)
	}
	if !running {
		fmt.Println("Daemon is not running")
		return
	}

	fmt.Printf("Stopping daemon (PID: %d)...\n", pid)
	if err := dm.Stop(); err != nil {
		fatalf("Failed to stop daemon: %v", err)
	}
	fmt.Println("Daemon stopped successfully")
}

func showStatus() {
	cfg := config.New()
	dm := daemon.New(cfg.Daemon.PIDFile)

	running, pid, err := dm.IsRunning()
	if err != nil {
		fatalf("Failed to check daemon status: %v", err)
	}

	if running {
		fmt.Printf("Status: Running (PID: %d)\n", pid)
		fmt.Printf("Poll Interval: %v\n", cfg.Tracker.PollInterval)
		fmt.Printf("Database: %s\n", cfg.Database.Path)
		fmt.Printf("Web API: http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	} else {
		fmt.Println("Status: Not running")
	}

	printTodaySessions(cfg)

	det, err := detector.New()
	if err != nil {
		fmt.Printf("\nCould not detect current window: %v\n", err)
		return
	}
	defer det.Close()

	if info, err := det.GetFocusedWindow(); err == nil {
		fmt.Printf("\nCurrent Window:\n")
		fmt.Printf("  App: %s\n", info.Identity())
		fmt.Printf("  Title: %s\n", utils.Truncate(info.WindowTitle, 60))
		fmt.Printf("  Display: %s\n", info.DisplayServer)
	}

	if idle, err := det.GetIdleInfo(cfg.Tracker.IdleThreshold); err == nil {
		fmt.Printf("\nSystem State: %s\n", idle.State())
		if idle.IdleTime > 0 {
			fmt.Printf("  Idle Time: %s\n", utils.FormatDuration(time.Duration(idle.IdleTime)*time.Second))
		}
	}
}

func printTodaySessions(cfg *config.Config) {
	s, err := openStore(context.Background(), cfg)
	if err != nil {
		fmt.Printf("\nDatabase unavailable: %v\n", err)
		return
	}
	defer s.Close()

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	summary, err := s.repo.GetSessionSummarySince(midnight)
	if err != nil {
		return
	}
	fmt.Printf("\nFocus Sessions Today: %d (total %s, longest %s)\n",
		summary.Count,
		utils.FormatDuration(time.Duration(summary.TotalSeconds)*time.Second),
		utils.FormatDuration(time.Duration(summary.LongestSecs)*time.Second))

	if day, ok := s.aggregator.UsageForDate(usage.DateKey(now)); ok {
		fmt.Printf("Tracked Today: %s\n", utils.FormatDuration(time.Duration(day.TotalMs())*time.Millisecond))
	}
}

func generateReport(args []string) {
	periodType := "day"
	jsonOutput := false
	for _, arg := range args {
		if arg == "--json" {
			jsonOutput = true
			continue
		}
		periodType = arg
	}

	s, err := openStore(context.Background(), loadConfig())
	if err != nil {
		fatalf("Failed to open database: %v", err)
	}
	defer s.Close()

	rep := reporter.New(s.aggregator, s.repo)
	report, err := rep.GenerateReport(periodType)
	if err != nil {
		fatalf("Failed to generate report: %v", err)
	}

	if jsonOutput {
		out, err := rep.FormatReportJSON(report)
		if err != nil {
			fatalf("Failed to format JSON: %v", err)
		}
		fmt.Println(out)
		return
	}
	fmt.Println(rep.FormatReportText(report))
}

func categorize(args []string) {
	if len(args) == 0 {
		fatalf("Usage: %s categorize <app or domain>", appName)
	}

	s, err := openStore(context.Background(), loadConfig())
	if err != nil {
		fatalf("Failed to open database: %v", err)
	}
	defer s.Close()

	identity := args[0]
	if strings.Contains(identity, ".") {
		if domain := browser.Domain(identity); domain != "" {
			identity = domain
		}
	}
	category := s.categorizer.Categorize(identity)
	fmt.Printf("%s -> %s (%s)\n", identity, category, s.categorizer.Color(category))
}

func clearUsage() {
	cfg := loadConfig()
	// A running daemon would write its in-memory usage back on the next flush.
	if running, pid, _ := daemon.New(cfg.Daemon.PIDFile).IsRunning(); running {
		fatalf("Stop the daemon (PID: %d) before clearing data", pid)
	}

	fmt.Print("This will delete all tracking data. Are you sure? (yes/no): ")
	response, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	if response != "yes" && response != "y" {
		fmt.Println("Operation cancelled")
		return
	}

	s, err := openStore(context.Background(), cfg)
	if err != nil {
		fatalf("Failed to open database: %v", err)
	}
	defer s.Close()

	if err := s.repo.Clear(context.Background(), usage.DataKey); err != nil {
		fatalf("Failed to clear database: %v", err)
	}
	fmt.Println("Tracking data cleared successfully")
}
