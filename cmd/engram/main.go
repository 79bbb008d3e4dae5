// Package main implements the engram CLI: starting and stopping the
// daemon, generating/inspecting configuration, running the one-shot
// offline re-embedding migration, and installing the launchd service.
//
// Usage:
//
//	engram start [--foreground]      Start the daemon
//	engram stop                      Stop the running daemon
//	engram status                    Show daemon status
//	engram setup                     Interactive first-run wizard
//	engram init-config               Generate default config.toml
//	engram config-export <file>      Export current config to a file
//	engram config-import <file>      Import config from a file
//	engram reindex --model-id <id>   Re-embed into a new index generation
//	engram install-service           Install as a launchd user agent
//	engram version                   Print version information
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/engramhq/engram/internal/version"
)

func main() {
	// Stop parsing at the first non-flag argument so subcommand-specific
	// flags (e.g. "reindex --model-id") reach their own handler instead of
	// being rejected here.
	flag.CommandLine.SetInterspersed(false)
	noColor := flag.Bool("no-color", false, "disable colored output")
	showVersion := flag.BoolP("version", "V", false, "print version and exit")
	flag.Usage = printUsage

	flag.Parse()
	initColor(*noColor)

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	command, rest := args[0], args[1:]
	switch command {
	case "start":
		cmdStart(rest)
	case "stop":
		cmdStop()
	case "status":
		cmdStatus()
	case "setup":
		cmdSetup(rest)
	case "init-config":
		cmdInitConfig()
	case "config-export":
		cmdConfigExport(rest)
	case "config-import":
		cmdConfigImport(rest)
	case "reindex":
		cmdReindex(rest)
	case "install-service":
		cmdInstallService()
	case "uninstall-service":
		cmdUninstallService()
	case "version":
		fmt.Println(version.String())
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Engram — local-first screen memory daemon

Usage: engram <command> [options]

Commands:
  start              Start the engram daemon
  stop               Stop the running daemon
  status             Show daemon status and summary stats
  setup              Interactive first-run setup wizard
  init-config        Generate default config.toml
  config-export      Export current config to a TOML file
  config-import      Import config from a TOML file
  reindex            Re-embed the vector index under a new model (offline)
  install-service    Install as a launchd user agent (macOS)
  uninstall-service  Remove the launchd user agent
  version            Print version information
  help               Show this help message

Options:
  --foreground       Run in foreground (with 'start')
  --non-interactive  Skip interactive prompts (with 'setup')
  --no-color         Disable colored output
  -V, --version      Print version and exit

engram stores its data under ~/.engram by default (override with the
ENGRAM_SERVER_DATA_DIR environment variable or server.data_dir in
config.toml).
`)
}
