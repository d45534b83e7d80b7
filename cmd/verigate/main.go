package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/verigate/internal/config"
	"github.com/mattjoyce/verigate/internal/dispatch"
	"github.com/mattjoyce/verigate/internal/doctor"
	"github.com/mattjoyce/verigate/internal/log"
	"github.com/mattjoyce/verigate/internal/target"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "config":
		os.Exit(runConfigNoun(args))
	case "list":
		os.Exit(runList(args))
	case "version":
		fmt.Printf("verigate version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)

	default:
		// Everything else is a target name
		os.Exit(runTarget(cmd, args))
	}
}

func printUsage() {
	fmt.Print(`verigate - Verification target runner

Usage:
  verigate <target> [flags]
  verigate <command> [flags]

Targets:
  accept                         Acceptance metrics, latest run, all tenants
  accept-tenant --tenant ID      Acceptance metrics, latest run, one tenant
  sso                            SSO and auth isolation checks
  rls --a ID --b ID              Row-level security smoke test
  export-verify                  Export row count verification (limit 100)
  odoo-p95                       Odoo verify endpoint p95 latency (n=20)

Commands:
  list            Show registered targets
  config check    Validate configuration and checker scripts
  config lock     Authorize current config (update integrity hashes)
  config show     Show full resolved configuration
  version         Show version information
  help            Show this help message

Global flags:
  --config PATH     Path to verigate.yaml
  --base-url URL    Override the verification base URL

BASE_URL in the environment also overrides the configured base URL.
`)
}

// --- TARGET DISPATCH ---

func runTarget(name string, args []string) int {
	// Required params are static per target, so the flag set can be built
	// from the default registry before the config is loaded.
	staticSpec, ok := target.Builtin(config.Defaults()).Get(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown target: %s\n\n", name)
		printUsage()
		return 1
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	baseURL := fs.String("base-url", "", "Override the verification base URL")

	paramFlags := make(map[string]*string, len(staticSpec.RequiredParams))
	for _, p := range staticSpec.RequiredParams {
		paramFlags[p] = fs.String(p, "", "value for required parameter "+p)
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)

	// Precedence: --base-url flag, then BASE_URL env, then config/default
	cfg.Resolve()
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}

	params := make(map[string]string, len(paramFlags))
	for p, v := range paramFlags {
		params[p] = *v
	}

	registry := target.Builtin(cfg)
	disp := dispatch.New(registry, cfg, dispatch.NewExecRunner())

	code, err := disp.Run(context.Background(), name, params)
	if err != nil {
		var missing *dispatch.MissingParamError
		if errors.As(err, &missing) {
			fmt.Fprintf(os.Stderr, "Error: %v\n%s\n", missing, missing.Usage)
			return code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return code
	}
	return code
}

// --- COMMANDS ---

func runList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	cfg.Resolve()

	for _, spec := range target.Builtin(cfg).All() {
		fmt.Printf("%-14s %s\n", spec.Name, spec.Description)
	}
	return 0
}

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
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	case "help":
		printConfigNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runConfigCheck(args []string) int {
	var configPath string
	var strict, jsonOut bool

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}
	cfg.Resolve()

	doc := doctor.New(cfg, target.Builtin(cfg))
	result := doc.Validate()

	if jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if strict && len(result.Warnings) > 0 {
		return 2
	}
	return 0
}

func runConfigLock(args []string) int {
	var configPath string
	var verbose, verboseShort, dryRun bool

	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&verboseShort, "v", false, "Verbose output")
	fs.BoolVar(&dryRun, "dry-run", false, "Dry run")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	isVerbose := verbose || verboseShort

	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		configPath = discovered
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve config path: %v\n", err)
		return 1
	}

	dir := filepath.Dir(absPath)
	report, err := config.GenerateChecksums(dir, []string{filepath.Base(absPath)}, dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config in %s: %v\n", dir, err)
		return 1
	}

	if isVerbose {
		for _, file := range report.Files {
			if file.Exists {
				fmt.Printf("  HASH %s: %s\n", file.Filename, file.Hash)
				continue
			}
			fmt.Printf("  SKIP %s: not found\n", file.Filename)
		}
	}

	if dryRun {
		fmt.Printf("Dry run completed (no files written): %s\n", report.ChecksumPath)
	} else {
		fmt.Printf("Successfully locked configuration: %s\n", report.ChecksumPath)
	}
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	cfg.Resolve()

	if *jsonOut {
		data, _ := json.MarshalIndent(cfg, "", "  ")
		fmt.Println(string(data))
	} else {
		data, _ := yaml.Marshal(cfg)
		fmt.Print(string(data))
	}
	return 0
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: verigate config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, lock, show")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: verigate config check [--config PATH] [--strict] [--json]")
	fmt.Println("Validate configuration, checker scripts, and integrity.")
}

func printConfigLockHelp() {
	fmt.Println("Usage: verigate config lock [--config PATH] [-v|--verbose] [--dry-run]")
	fmt.Println("Authorize current configuration state by regenerating integrity hashes.")
}

func printConfigShowHelp() {
	fmt.Println("Usage: verigate config show [--config PATH] [--json]")
	fmt.Println("Show the full resolved configuration.")
}
