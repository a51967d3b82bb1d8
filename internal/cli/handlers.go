// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// handlers.go - Command handlers for the non-TUI satchel commands.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/satchelhq/satchel/internal/audit"
	"github.com/satchelhq/satchel/internal/auth"
	"github.com/satchelhq/satchel/internal/config"
	"github.com/satchelhq/satchel/internal/policy"
	"github.com/satchelhq/satchel/internal/store"
)

// StorePath returns the local account database path.
func StorePath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "satchel.db"), nil
}

// =============================================================================
// STATUS
// =============================================================================

// HandleStatus prints the client status.
func HandleStatus(args Args) error {
	cfg := config.Global()
	pol := policy.Resolve(0, cfg.Session.DefaultTimeoutMinutes, cfg.Session.MaxTimeoutMinutes)
	lead := policy.WarningLead(pol.Timeout())

	configPath, _ := config.Path()

	if args.JSON {
		out := map[string]any{
			"version":                 Version,
			"server_url":              cfg.Server.BaseURL,
			"config_path":             configPath,
			"session_timeout_minutes": pol.TimeoutMinutes,
			"warning_lead":            lead.String(),
			"audit_enabled":           cfg.Audit.Enabled,
			"audit_log_path":          cfg.Audit.LogPath,
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("satchel %s\n\n", Version)
	fmt.Printf("Server:          %s\n", cfg.Server.BaseURL)
	fmt.Printf("Config:          %s\n", configPath)
	fmt.Printf("Session timeout: %d minutes (warning %s before sign-out)\n", pol.TimeoutMinutes, lead)
	fmt.Printf("Audit logging:   %v\n", cfg.Audit.Enabled)
	if cfg.Audit.Enabled {
		path := cfg.Audit.LogPath
		if path == "" {
			path = audit.DefaultPath()
		}
		fmt.Printf("Audit log:       %s\n", path)
	}
	return nil
}

// =============================================================================
// CONFIG
// =============================================================================

// HandleConfig implements `satchel config [show|set]`.
func HandleConfig(args Args) error {
	parser := NewArgParser(args.Raw)

	switch parser.Subcommand() {
	case "", "show":
		return configShow(args)
	case "set":
		return configSet(args, parser.Positional(1), parser.Positional(2))
	default:
		return fmt.Errorf("unknown config subcommand: %s", parser.Subcommand())
	}
}

func configShow(args Args) error {
	cfg := config.Global()

	if args.JSON {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("server.url              = %s\n", cfg.Server.BaseURL)
	fmt.Printf("session.default_minutes = %d\n", cfg.Session.DefaultTimeoutMinutes)
	fmt.Printf("session.max_minutes     = %d\n", cfg.Session.MaxTimeoutMinutes)
	fmt.Printf("session.throttle_ms     = %d\n", cfg.Session.ActivityThrottleMS)
	fmt.Printf("audit.enabled           = %v\n", cfg.Audit.Enabled)
	fmt.Printf("audit.log_path          = %s\n", cfg.Audit.LogPath)
	fmt.Printf("ui.theme                = %s\n", cfg.UI.Theme)
	return nil
}

func configSet(args Args, key, value string) error {
	if key == "" || value == "" {
		return errors.New("usage: satchel config set <key> <value>")
	}

	path := args.ConfigPath
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			return err
		}
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return err
	}

	switch key {
	case "server.url":
		cfg.Server.BaseURL = value
	case "session.default_minutes":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("session.default_minutes must be a positive integer, got %q", value)
		}
		cfg.Session.DefaultTimeoutMinutes = n
	case "session.max_minutes":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("session.max_minutes must be a positive integer, got %q", value)
		}
		cfg.Session.MaxTimeoutMinutes = n
	case "audit.enabled":
		switch strings.ToLower(value) {
		case "true", "yes", "on", "1":
			cfg.Audit.Enabled = true
		case "false", "no", "off", "0":
			cfg.Audit.Enabled = false
		default:
			return fmt.Errorf("audit.enabled must be a boolean, got %q", value)
		}
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	cfg.Validate()
	if err := config.SaveToPath(cfg, path); err != nil {
		return err
	}
	config.SetGlobal(cfg)

	if !args.Quiet {
		fmt.Printf("%s = %s\n", key, value)
	}
	return nil
}

// =============================================================================
// USER
// =============================================================================

// HandleUser implements `satchel user add|timeout|rm`.
func HandleUser(args Args) error {
	parser := NewArgParser(args.Raw)

	dbPath, err := StorePath()
	if err != nil {
		return err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open account database: %w", err)
	}
	defer st.Close()

	switch parser.Subcommand() {
	case "add":
		return userAdd(st, parser)
	case "timeout":
		return userTimeout(st, parser)
	case "rm", "remove", "delete":
		return userRemove(st, parser)
	default:
		return fmt.Errorf("usage: satchel user add|timeout|rm")
	}
}

func userAdd(st *store.Store, parser *ArgParser) error {
	username := parser.Positional(1)
	if username == "" {
		return errors.New("usage: satchel user add <name>")
	}

	role := parser.FlagOrDefault("role", auth.RoleTeacher)

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	totpSecret := ""
	if parser.BoolFlag("totp") {
		totpSecret, err = auth.GenerateTOTPSecret(username)
		if err != nil {
			return fmt.Errorf("failed to provision authenticator secret: %w", err)
		}
	}

	a := auth.New(st)
	if err := a.CreateUser(context.Background(), username, password, role, totpSecret); err != nil {
		return err
	}

	fmt.Printf("created %s account %q\n", role, auth.NormalizeUsername(username))
	if totpSecret != "" {
		fmt.Printf("authenticator secret: %s\n", totpSecret)
		fmt.Println("add this secret to an authenticator app; it will not be shown again")
	}
	return nil
}

func userTimeout(st *store.Store, parser *ArgParser) error {
	username := auth.NormalizeUsername(parser.Positional(1))
	value := parser.Positional(2)
	if username == "" || value == "" {
		return errors.New("usage: satchel user timeout <name> <minutes|clear>")
	}

	ctx := context.Background()

	if value == "clear" {
		if err := st.ClearTimeoutPreference(ctx, username); err != nil {
			return err
		}
		fmt.Printf("cleared session timeout for %q\n", username)
		return nil
	}

	minutes, err := strconv.Atoi(value)
	if err != nil || minutes <= 0 {
		return fmt.Errorf("minutes must be a positive integer, got %q", value)
	}

	// A zero maximum means no cap.
	if max := config.Global().Session.MaxTimeoutMinutes; max > 0 && minutes > max {
		fmt.Printf("warning: %d minutes exceeds the allowed maximum of %d and will be ignored at sign-in\n", minutes, max)
	}

	if err := st.SetTimeoutPreference(ctx, username, minutes); err != nil {
		return err
	}
	fmt.Printf("session timeout for %q set to %d minutes\n", username, minutes)
	return nil
}

func userRemove(st *store.Store, parser *ArgParser) error {
	username := auth.NormalizeUsername(parser.Positional(1))
	if username == "" {
		return errors.New("usage: satchel user rm <name>")
	}

	if err := st.DeleteUser(context.Background(), username); err != nil {
		return err
	}
	fmt.Printf("deleted account %q\n", username)
	return nil
}

// promptPassword reads a password without echoing it. Falls back to plain
// line reading when stdin is not a terminal (tests, pipes).
func promptPassword(label string) (string, error) {
	fmt.Print(label)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// =============================================================================
// AUDIT
// =============================================================================

// HandleAudit implements `satchel audit [show]`.
func HandleAudit(args Args) error {
	parser := NewArgParser(args.Raw)

	switch parser.Subcommand() {
	case "", "show":
		return auditShow(args, parser)
	default:
		return fmt.Errorf("unknown audit subcommand: %s", parser.Subcommand())
	}
}

func auditShow(args Args, parser *ArgParser) error {
	cfg := config.Global()
	path := cfg.Audit.LogPath
	if path == "" {
		path = audit.DefaultPath()
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no audit log yet")
			return nil
		}
		return err
	}
	defer f.Close()

	limit := parser.FlagIntOrDefault("lines", 50)

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > limit {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	for _, line := range lines {
		if args.JSON {
			fmt.Println(line)
			continue
		}
		var e audit.Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			fmt.Println(line)
			continue
		}
		fmt.Println(e.ToLogLine())
	}
	return nil
}

// =============================================================================
// VERSION
// =============================================================================

// HandleVersion prints version information.
func HandleVersion(args Args) error {
	if args.JSON {
		out := map[string]string{
			"version": Version,
			"commit":  GitCommit,
			"built":   BuildDate,
		}
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("satchel %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	return nil
}
