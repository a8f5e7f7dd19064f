package main

import (
	"fmt"
	"os"
)

var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

const appName = "focusguard"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "start":
		startDaemon(os.Args[2:])
	case "serve":
		serveForeground(os.Args[2:])
	case "stop":
		stopDaemon()
	case "status":
		showStatus()
	case "report":
		generateReport(os.Args[2:])
	case "categorize":
		categorize(os.Args[2:])
	case "clear":
		clearUsage()
	case "version":
		fmt.Printf("%s version %s\n", appName, version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`focusguard - Focus session guard and application usage tracker

Usage:
  focusguard <command> [options]

Commands:
  start [--port N] [--debug] Start the tracker and web API in the background
  serve [--port N] [--debug] Run the tracker and web API in the foreground
  stop                       Stop the background daemon
  status                     Show daemon status, focused window and today's sessions
  report [period] [--json]   Usage report (period: day, week, month)
  categorize <identity>      Show the category of an app or domain
  clear                      Delete all recorded usage
  version                    Show version information
  help                       Show this help message

Examples:
  focusguard start
  focusguard report week --json
  focusguard categorize youtube.com

Environment Variables:
  FOCUSGUARD_DB_PATH         Database file path
  FOCUSGUARD_POLL_INTERVAL   Poll interval (10s-300s)
  FOCUSGUARD_IDLE_THRESHOLD  Idle threshold
  FOCUSGUARD_RULES_FILE      YAML file with category rules and overrides
  FOCUSGUARD_DISTRACTED      Comma separated distracting categories
  FOCUSGUARD_TAB_RESOLVER    Command printing the active browser tab as JSON
  FOCUSGUARD_WEB_PORT        Web API port
  FOCUSGUARD_COMPANION_URL   AI companion base URL
  FOCUSGUARD_DEBUG           Enable debug logging (true/false)

Version: %s
`, version)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
