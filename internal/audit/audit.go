// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audit provides append-only audit logging for sign-ins and
// session lifecycle events. Schools use the log to answer "who was
// signed in when", so entries are flushed to disk as they are written.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// DefaultMaxFileSize is the default max file size before rotation (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// Event types recorded by the client.
const (
	EventLogin           = "LOGIN"
	EventLoginFailed     = "LOGIN_FAILED"
	EventSessionStarted  = "SESSION_STARTED"
	EventSessionExtended = "SESSION_EXTENDED"
	EventSessionWarning  = "SESSION_WARNING"
	EventSessionExpired  = "SESSION_EXPIRED"
	EventSessionEnded    = "SESSION_ENDED"
)

// =============================================================================
// EVENT
// =============================================================================

// Event represents a single audit log entry.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	SessionID string            `json:"session_id,omitempty"`
	Username  string            `json:"username,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ToLogLine formats the event as a single pipe-delimited line.
func (e *Event) ToLogLine() string {
	timestamp := e.Timestamp.Format("2006-01-02 15:04:05")

	status := "SUCCESS"
	if !e.Success {
		if e.Error != "" {
			status = fmt.Sprintf("ERROR: %s", e.Error)
		} else {
			status = "FAILURE"
		}
	}

	return fmt.Sprintf("%s | %s | %s | %s | %s",
		timestamp,
		e.EventType,
		e.SessionID,
		e.Username,
		status,
	)
}

// ToJSON formats the event as a single JSON object.
func (e *Event) ToJSON() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// =============================================================================
// REDACTION
// =============================================================================

// secretPatterns catches credentials that would otherwise leak into the log
// through error messages or metadata.
var secretPatterns = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[=:]\s*\S+`), "[PASSWORD_REDACTED]"},
	{regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-_.]+`), "Bearer [TOKEN_REDACTED]"},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), "[JWT_REDACTED]"},
}

// RedactSecrets applies the credential patterns to the input string.
func RedactSecrets(input string) string {
	result := input
	for _, sp := range secretPatterns {
		result = sp.pattern.ReplaceAllString(result, sp.replace)
	}
	return result
}

// =============================================================================
// LOGGER
// =============================================================================

// Logger writes events to a JSON-lines file, one event per line, with
// size-based rotation. All methods are safe for concurrent use. A nil
// *Logger is a valid no-op logger.
type Logger struct {
	path    string
	file    *os.File
	mu      sync.Mutex
	enabled bool
	maxSize int64
}

// New creates a logger appending to the file at path. An empty path uses
// DefaultPath.
func New(path string) (*Logger, error) {
	if path == "" {
		path = DefaultPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &Logger{
		path:    path,
		file:    file,
		enabled: true,
		maxSize: DefaultMaxFileSize,
	}, nil
}

// Nop returns a logger that accepts and discards all events. Used when
// auditing is disabled in config.
func Nop() *Logger {
	return &Logger{enabled: false}
}

// Log writes an event to the log file and syncs it to disk.
func (l *Logger) Log(event Event) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || l.file == nil {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Error != "" {
		event.Error = RedactSecrets(event.Error)
	}
	for k, v := range event.Metadata {
		event.Metadata[k] = RedactSecrets(v)
	}

	if err := l.checkRotationLocked(); err != nil {
		return fmt.Errorf("audit rotation failed: %w", err)
	}

	line, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	if _, err := fmt.Fprintln(l.file, line); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	return l.file.Sync()
}

// =============================================================================
// CONVENIENCE METHODS
// =============================================================================

// LogLogin records a successful sign-in.
func (l *Logger) LogLogin(sessionID, username string) error {
	return l.Log(Event{EventType: EventLogin, SessionID: sessionID, Username: username, Success: true})
}

// LogLoginFailed records a rejected sign-in attempt.
func (l *Logger) LogLoginFailed(username, reason string) error {
	return l.Log(Event{EventType: EventLoginFailed, Username: username, Success: false, Error: reason})
}

// LogSessionStarted records the start of inactivity tracking.
func (l *Logger) LogSessionStarted(sessionID, username string, metadata map[string]string) error {
	return l.Log(Event{EventType: EventSessionStarted, SessionID: sessionID, Username: username, Success: true, Metadata: metadata})
}

// LogSessionExtended records an explicit "stay signed in" from the warning
// dialog.
func (l *Logger) LogSessionExtended(sessionID, username string) error {
	return l.Log(Event{EventType: EventSessionExtended, SessionID: sessionID, Username: username, Success: true})
}

// LogSessionWarning records the warning dialog becoming visible.
func (l *Logger) LogSessionWarning(sessionID, username string, remaining time.Duration) error {
	return l.Log(Event{
		EventType: EventSessionWarning,
		SessionID: sessionID,
		Username:  username,
		Success:   true,
		Metadata:  map[string]string{"remaining": remaining.String()},
	})
}

// LogSessionExpired records an automatic sign-out after the countdown
// reached zero.
func (l *Logger) LogSessionExpired(sessionID, username string) error {
	return l.Log(Event{EventType: EventSessionExpired, SessionID: sessionID, Username: username, Success: true})
}

// LogSessionEnded records a deliberate sign-out.
func (l *Logger) LogSessionEnded(sessionID, username string) error {
	return l.Log(Event{EventType: EventSessionEnded, SessionID: sessionID, Username: username, Success: true})
}

// =============================================================================
// FILE ROTATION
// =============================================================================

// Rotate renames the current log file with a timestamp suffix and starts a
// fresh one.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rotateLocked()
}

func (l *Logger) rotateLocked() error {
	if l.file == nil {
		return nil
	}

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log for rotation: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	ext := filepath.Ext(l.path)
	base := strings.TrimSuffix(l.path, ext)
	rotatedPath := fmt.Sprintf("%s_%s%s", base, timestamp, ext)

	if err := os.Rename(l.path, rotatedPath); err != nil {
		// Reopen the original so logging can continue.
		l.file, _ = os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create new audit log after rotation: %w", err)
	}
	l.file = file

	return nil
}

func (l *Logger) checkRotationLocked() error {
	if l.maxSize <= 0 {
		return nil
	}

	info, err := l.file.Stat()
	if err != nil {
		return nil // ignore stat errors
	}

	if info.Size() >= l.maxSize {
		return l.rotateLocked()
	}

	return nil
}

// SetMaxSize sets the maximum file size before rotation. Zero disables
// rotation.
func (l *Logger) SetMaxSize(size int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxSize = size
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// SetEnabled enables or disables logging.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// IsEnabled returns whether logging is enabled.
func (l *Logger) IsEnabled() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Path returns the audit log file path.
func (l *Logger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Close closes the audit log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	err := l.file.Close()
	l.file = nil
	return err
}

// DefaultPath returns the default audit log path (~/.satchel/audit.log).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".satchel", "audit.log")
}
