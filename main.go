// satchel - Terminal client for the Satchel school document filing service.
//
// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/satchelhq/satchel/internal/audit"
	"github.com/satchelhq/satchel/internal/auth"
	"github.com/satchelhq/satchel/internal/cli"
	"github.com/satchelhq/satchel/internal/config"
	"github.com/satchelhq/satchel/internal/store"
	"github.com/satchelhq/satchel/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdTUI:
		runTUI(args)
	case cli.CmdStatus:
		exitOnError(cli.HandleStatus(args))
	case cli.CmdConfig:
		exitOnError(cli.HandleConfig(args))
	case cli.CmdUser:
		exitOnError(cli.HandleUser(args))
	case cli.CmdAudit:
		exitOnError(cli.HandleAudit(args))
	case cli.CmdVersion:
		exitOnError(cli.HandleVersion(args))
	case cli.CmdHelp:
		cli.PrintUsage()
	default:
		cli.PrintUsage()
		os.Exit(1)
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runTUI launches the interactive terminal client.
func runTUI(args cli.Args) {
	configPath := args.ConfigPath
	if configPath == "" {
		if p, err := config.Path(); err == nil {
			configPath = p
		}
	}

	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	config.SetGlobal(cfg)

	// Hot-reload the config file so session policy changes apply to the
	// next countdown cycle without a restart.
	watcher, err := config.NewWatcher(configPath, 500*time.Millisecond, func(updated *config.Config) {
		config.SetGlobal(updated)
	})
	if err == nil {
		if werr := watcher.Watch(); werr == nil {
			defer watcher.Close()
		}
	}

	storePath, err := cli.StorePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving data directory: %v\n", err)
		os.Exit(1)
	}
	st, err := store.Open(storePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening local store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	auditLog := audit.Nop()
	if cfg.Audit.Enabled {
		logPath := cfg.Audit.LogPath
		if logPath == "" {
			logPath = audit.DefaultPath()
		}
		auditLog, err = audit.New(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening audit log: %v\n", err)
			os.Exit(1)
		}
		if cfg.Audit.MaxSizeMB > 0 {
			auditLog.SetMaxSize(int64(cfg.Audit.MaxSizeMB) * 1024 * 1024)
		}
	}
	defer auditLog.Close()

	app := ui.NewApp(st, auth.New(st), auditLog)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.UI.MouseEnabled {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(app, opts...)

	// Register the program so the session monitor's callbacks can push
	// warning and countdown messages into the update loop.
	ui.SetProgram(p)

	finalModel, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}

	if a, ok := finalModel.(ui.App); ok {
		if mon := a.Monitor(); mon != nil {
			mon.Stop()
		}
	}
}
