// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for satchel.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdStatus
	CmdConfig
	CmdUser
	CmdAudit
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool
	ConfigPath string

	// Command-specific
	Subcommand string

	// Raw args remaining after the command name
	Raw []string
}

const usageText = `satchel - terminal client for school document filing

Usage:
  satchel                    Start the TUI (default)
  satchel status, s          Show client status
  satchel config [show|set]  Configuration
  satchel user <subcommand>  Local account management
  satchel audit [show]       Audit log inspection
  satchel version            Show version

User Commands:
  satchel user add <name>           Create an account (prompts for password)
    --role teacher|admin            Account role (default: teacher)
    --totp                          Provision an authenticator secret
  satchel user timeout <name> <minutes>
                                    Set a per-user session timeout
  satchel user timeout <name> clear Remove the per-user timeout
  satchel user rm <name>            Delete an account

Audit Commands:
  satchel audit show                Display recent audit entries
    --lines N                       Show last N entries (default: 50)

Config Commands:
  satchel config show               Display current configuration
  satchel config set <key> <value>  Update a setting
                                    Keys: server.url, session.default_minutes,
                                          session.max_minutes, audit.enabled

Global Flags:
  --config PATH   Use an alternate config file
  --json          Output in JSON where supported
  -q, --quiet     Suppress non-essential output
  -v, --verbose   Verbose output
`

// PrintUsage writes the usage text to stdout.
func PrintUsage() {
	fmt.Print(usageText)
}

// Parse parses os.Args into a command and its arguments.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses the given argument list. Split out from Parse so tests
// can drive it directly.
func ParseArgs(args []string) (Command, Args) {
	remaining, parsed := parseGlobalFlags(args)

	if len(remaining) == 0 {
		return CmdTUI, parsed
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsed.Raw = remaining
	if len(remaining) > 0 {
		parsed.Subcommand = remaining[0]
	}

	switch cmd {
	case "tui":
		return CmdTUI, parsed

	case "status", "s":
		return CmdStatus, parsed

	case "config":
		return CmdConfig, parsed

	case "user", "users":
		return CmdUser, parsed

	case "audit":
		return CmdAudit, parsed

	case "version", "--version", "-V":
		return CmdVersion, parsed

	case "help", "--help", "-h":
		return CmdHelp, parsed

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		return CmdHelp, parsed
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsed Args

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsed.Quiet = true
		case "-v", "--verbose":
			parsed.Verbose = true
		case "--json":
			parsed.JSON = true
		case "--config":
			if i+1 < len(args) {
				i++
				parsed.ConfigPath = args[i]
			}
		default:
			if strings.HasPrefix(arg, "--config=") {
				parsed.ConfigPath = strings.TrimPrefix(arg, "--config=")
			} else {
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsed
}
