package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

const defaultConfigPath = "config.yaml"

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "serve":
		if hasHelpFlag(args) {
			printServeHelp()
			return 0
		}
		return runServe(args)
	case "tui":
		if hasHelpFlag(args) {
			printTUIHelp()
			return 0
		}
		return runTUI(args)
	case "watch":
		if hasHelpFlag(args) {
			printWatchHelp()
			return 0
		}
		return runWatch(args)
	case "config":
		return runConfigNoun(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := pflag.NewFlagSet("version", pflag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: relaycmd version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("relaycmd %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalizedBuildTime, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalizedBuildTime
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}

	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// resolveConfigPath prefers the flag, then RELAYCMD_CONFIG, then the default.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("RELAYCMD_CONFIG"); env != "" {
		return env
	}
	return defaultConfigPath
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, a := range args {
		if a == "--help" || a == "-h" {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Print(`relaycmd - UI commands with weak handlers, auto-disable and progress scopes

Usage:
  relaycmd <command> [flags]

Commands:
  serve             Build commands from config and serve the HTTP API
  tui               Open the interactive command panel
  watch             Monitor a running relaycmd API (commands, progress, events)
  config check      Validate configuration and print its fingerprint
  config get <path> Read a value (dot path or command:<name>)
  config token      Create a scoped API token entry
  version           Show version information
  help              Show this help message

Use 'relaycmd <command> --help' for command flags.
`)
}

func printServeHelp() {
	fmt.Print(`Usage: relaycmd serve [--config PATH]

Builds every configured command and runs until SIGINT or SIGTERM:
  - the HTTP API when api.enabled is true
  - the signed webhook listener when webhooks are configured
  - every configured schedule

With state.path set, executions and enabled flags persist in SQLite and the
database is locked against a second process.
`)
}

func printTUIHelp() {
	fmt.Print(`Usage: relaycmd tui [--config PATH] [--api] [--log-file PATH]

Opens a button per command. Buttons grey out whenever the command cannot
execute and refresh when any command changes state. Configured schedules run
while the panel is open.

  --api        Also serve the HTTP API while the panel is open
  --log-file   Write logs to this file (logs are discarded by default)
`)
}

func printWatchHelp() {
	fmt.Print(`Usage: relaycmd watch [--url URL] [--token TOKEN]

Connects to a running API and shows command states, active progress and the
live event stream. The token needs commands:ro and events:ro.
Defaults: --url http://127.0.0.1:8087, --token from RELAYCMD_TOKEN.
`)
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: relaycmd config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, get, token")
}
