package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/relaycmd/internal/auth"
	"github.com/mattjoyce/relaycmd/internal/config"
	"github.com/mattjoyce/relaycmd/internal/doctor"
	"github.com/mattjoyce/relaycmd/internal/tui/tokenmgr"
)

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		return runConfigCheck(actionArgs)
	case "get":
		return runConfigGet(actionArgs)
	case "token":
		return runConfigToken(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

type checkResult struct {
	Valid       bool           `json:"valid"`
	Path        string         `json:"path"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Commands    []string       `json:"commands,omitempty"`
	Error       string         `json:"error,omitempty"`
	Errors      []doctor.Issue `json:"errors,omitempty"`
	Warnings    []doctor.Issue `json:"warnings,omitempty"`
}

func runConfigCheck(args []string) int {
	var configPath string
	var jsonOut bool
	fs := pflag.NewFlagSet("check", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "Path to configuration file or directory")
	fs.BoolVar(&jsonOut, "json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	path := resolveConfigPath(configPath)
	res := checkResult{Path: path}
	cfg, err := config.Load(path)
	if err != nil {
		res.Error = err.Error()
	} else {
		report := doctor.New(cfg).Validate()
		res.Valid = report.Valid
		res.Fingerprint = cfg.Fingerprint
		res.Errors = report.Errors
		res.Warnings = report.Warnings
		for _, c := range cfg.Commands {
			res.Commands = append(res.Commands, c.Name)
		}
	}

	switch {
	case jsonOut:
		data, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(data))
	case res.Error != "":
		fmt.Fprintf(os.Stderr, "Configuration check FAILED: %s\n", res.Error)
	case !res.Valid:
		fmt.Fprint(os.Stderr, "Configuration check FAILED\n")
		fmt.Fprint(os.Stderr, doctor.FormatHuman(&doctor.Result{Errors: res.Errors, Warnings: res.Warnings}))
	default:
		fmt.Printf("Configuration OK: %s\n", res.Path)
		fmt.Printf("fingerprint: %s\n", res.Fingerprint)
		fmt.Printf("commands: %d (%s)\n", len(res.Commands), strings.Join(res.Commands, ", "))
		if len(res.Warnings) > 0 {
			fmt.Print(doctor.FormatHuman(&doctor.Result{Valid: true, Warnings: res.Warnings}))
		}
	}

	if !res.Valid {
		return 1
	}
	return 0
}

func runConfigGet(args []string) int {
	var configPath string
	fs := pflag.NewFlagSet("get", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: relaycmd config get <path> [--config PATH]")
		return 1
	}

	cfg, err := config.Load(resolveConfigPath(configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	val, err := cfg.GetPath(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	out, err := yaml.Marshal(val)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Print(string(out))
	return 0
}

func runConfigToken(args []string) int {
	var scopes []string
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	fs.StringSliceVar(&scopes, "scopes", nil, "Comma-separated scopes (skips the interactive picker)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if len(scopes) == 0 {
		picked, err := tokenmgr.SelectScopes()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		if len(picked) == 0 {
			fmt.Fprintln(os.Stderr, "No scopes selected.")
			return 1
		}
		scopes = picked
	}

	for _, s := range scopes {
		if !auth.KnownScope(s) {
			fmt.Fprintf(os.Stderr, "Unknown scope: %s\n", s)
			return 1
		}
	}

	snippet, err := tokenmgr.Snippet(tokenmgr.NewToken(), scopes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	fmt.Println("# Add under api.auth in your config:")
	fmt.Print(snippet)
	return 0
}
