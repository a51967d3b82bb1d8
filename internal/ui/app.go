// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui provides the Bubble Tea application for the satchel client:
// acceptable-use notice, login form, the filing shell, and the
// session-timeout overlay that sits on top of all of it.
package ui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/satchelhq/satchel/internal/audit"
	"github.com/satchelhq/satchel/internal/auth"
	"github.com/satchelhq/satchel/internal/config"
	"github.com/satchelhq/satchel/internal/monitor"
	"github.com/satchelhq/satchel/internal/policy"
	"github.com/satchelhq/satchel/internal/store"
	"github.com/satchelhq/satchel/internal/ui/components"
	"github.com/satchelhq/satchel/internal/ui/styles"
)

// =============================================================================
// PROGRAM REFERENCE
// =============================================================================

// programRef lets timer callbacks deliver messages into the running program.
// Set by SetProgram once the tea.Program exists.
var (
	programRef   *tea.Program
	programRefMu sync.RWMutex
)

// SetProgram registers the running program so background callbacks can send
// messages into it.
func SetProgram(p *tea.Program) {
	programRefMu.Lock()
	programRef = p
	programRefMu.Unlock()
}

func send(msg tea.Msg) {
	programRefMu.RLock()
	p := programRef
	programRefMu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

// =============================================================================
// SCREENS
// =============================================================================

// Screen identifies which top-level view is active.
type Screen int

const (
	ScreenNotice Screen = iota // acceptable-use notice
	ScreenLogin
	ScreenShell
)

// usageNotice is shown before login. Schools routinely require an
// acceptable-use acknowledgment on shared machines.
const usageNotice = `# Satchel

School document filing for **%s**.

- Files you upload are visible to your school's administration.
- You will be signed out automatically after a period of inactivity.
- Do not share your account.

*Press any key to continue to sign-in.*
`

// =============================================================================
// MESSAGES
// =============================================================================

// loginResultMsg carries the outcome of an async login attempt.
type loginResultMsg struct {
	session *auth.Session
	err     error
}

// quitAfterExpiryMsg fires after the signed-out notice has been on screen
// long enough to read.
type quitAfterExpiryMsg struct{}

// =============================================================================
// DOCUMENTS
// =============================================================================

// Document is one entry in the filing shell. The list is display-only in
// this client; uploads happen through the school's web portal.
type Document struct {
	Name     string
	Category string
	FiledAt  time.Time
}

// =============================================================================
// APP MODEL
// =============================================================================

// App is the root Bubble Tea model.
type App struct {
	theme  *styles.Theme
	screen Screen

	width  int
	height int

	// Collaborators, provided by main.
	store *store.Store
	auth  *auth.Authenticator
	audit *audit.Logger

	// Notice screen
	noticeRendered string

	// Login form
	usernameInput textinput.Model
	passwordInput textinput.Model
	totpInput     textinput.Model
	needTOTP      bool
	loginFocus    int
	loginBusy     bool
	loginErr      string

	// Active session
	session *auth.Session
	mon     *monitor.Monitor

	// Shell
	docs   []Document
	cursor int

	// Components
	overlay   components.TimeoutOverlay
	statusBar components.StatusBar

	// Sign-out bookkeeping: distinguishes a deliberate sign-out from an
	// inactivity expiry in the audit trail.
	userSignOut bool
}

// NewApp creates the root model.
func NewApp(st *store.Store, authn *auth.Authenticator, auditLog *audit.Logger) App {
	theme := styles.NewThemeForMode(config.Global().UI.Theme)

	username := textinput.New()
	username.Prompt = "> "
	username.Placeholder = "username"
	username.CharLimit = 64
	username.Focus()

	password := textinput.New()
	password.Prompt = "> "
	password.Placeholder = "password"
	password.CharLimit = 128
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'

	totpCode := textinput.New()
	totpCode.Prompt = "> "
	totpCode.Placeholder = "6-digit code"
	totpCode.CharLimit = 6

	cfg := config.Global()
	rendered := renderNotice(cfg.Server.BaseURL)

	return App{
		theme:          theme,
		screen:         ScreenNotice,
		store:          st,
		auth:           authn,
		audit:          auditLog,
		noticeRendered: rendered,
		usernameInput:  username,
		passwordInput:  password,
		totpInput:      totpCode,
		overlay:        components.NewTimeoutOverlay(),
		docs:           sampleDocuments(),
	}
}

func renderNotice(serverURL string) string {
	md := fmt.Sprintf(usageNotice, serverURL)
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// sampleDocuments seeds the shell until server sync lands.
// TODO: replace with the /documents listing once the sync client ships.
func sampleDocuments() []Document {
	now := time.Now()
	return []Document{
		{Name: "quarterly-grades-2026.xlsx", Category: "Grades", FiledAt: now.AddDate(0, 0, -2)},
		{Name: "field-trip-consent.pdf", Category: "Forms", FiledAt: now.AddDate(0, 0, -5)},
		{Name: "attendance-march.csv", Category: "Attendance", FiledAt: now.AddDate(0, 0, -9)},
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.overlay.SetSize(msg.Width, msg.Height)
		a.statusBar.SetWidth(msg.Width)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.MouseMsg:
		// Only button presses count as activity. Wheel scrolling and
		// motion would keep an unattended session alive.
		if a.screen == ScreenShell && a.mon != nil {
			switch msg.Type {
			case tea.MouseLeft, tea.MouseRight, tea.MouseMiddle:
				a.mon.RecordActivity()
			}
		}
		return a, nil

	case loginResultMsg:
		return a.handleLoginResult(msg)

	case components.WarningMsg:
		var cmd tea.Cmd
		a.overlay, cmd = a.overlay.Update(msg)
		a.statusBar.SetWarning(true, msg.Remaining)
		if a.session != nil {
			a.audit.LogSessionWarning(a.session.ID, a.session.Username, msg.Remaining)
		}
		return a, cmd

	case components.CountdownTickMsg:
		var cmd tea.Cmd
		a.overlay, cmd = a.overlay.Update(msg)
		a.statusBar.SetWarning(true, msg.Remaining)
		return a, cmd

	case components.ExpiredMsg:
		return a.handleExpired()

	case components.ExtendRequestedMsg:
		if a.mon != nil {
			a.mon.Extend()
		}
		a.statusBar.SetWarning(false, 0)
		if a.session != nil {
			a.audit.LogSessionExtended(a.session.ID, a.session.Username)
		}
		return a, nil

	case components.LogoutRequestedMsg:
		a.userSignOut = true
		if a.mon != nil {
			a.mon.ForceLogout()
		}
		return a, nil

	case quitAfterExpiryMsg:
		return a, tea.Quit
	}

	return a, nil
}

// View renders the active screen with the overlay on top when visible.
func (a App) View() string {
	if a.overlay.IsVisible() {
		return a.overlay.View()
	}

	switch a.screen {
	case ScreenNotice:
		return a.viewNotice()
	case ScreenLogin:
		return a.viewLogin()
	case ScreenShell:
		return a.viewShell()
	}
	return ""
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The overlay owns the keyboard while it is up.
	if a.overlay.IsVisible() {
		var cmd tea.Cmd
		a.overlay, cmd = a.overlay.Update(msg)
		if !a.overlay.IsVisible() {
			a.statusBar.SetWarning(false, 0)
		}
		return a, cmd
	}

	if msg.String() == "ctrl+c" {
		return a.signOutAndQuit()
	}

	switch a.screen {
	case ScreenNotice:
		a.screen = ScreenLogin
		return a, textinput.Blink

	case ScreenLogin:
		return a.handleLoginKey(msg)

	case ScreenShell:
		return a.handleShellKey(msg)
	}
	return a, nil
}

func (a App) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.loginBusy {
		return a, nil
	}

	fields := a.loginFields()

	switch msg.String() {
	case "tab", "down":
		a.setLoginFocus((a.loginFocus + 1) % len(fields))
		return a, textinput.Blink

	case "shift+tab", "up":
		a.setLoginFocus((a.loginFocus + len(fields) - 1) % len(fields))
		return a, textinput.Blink

	case "enter":
		if a.loginFocus < len(fields)-1 {
			a.setLoginFocus(a.loginFocus + 1)
			return a, textinput.Blink
		}
		return a.submitLogin()
	}

	var cmd tea.Cmd
	switch a.loginFocus {
	case 0:
		a.usernameInput, cmd = a.usernameInput.Update(msg)
	case 1:
		a.passwordInput, cmd = a.passwordInput.Update(msg)
	case 2:
		a.totpInput, cmd = a.totpInput.Update(msg)
	}
	return a, cmd
}

func (a App) handleShellKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.mon != nil {
		a.mon.RecordActivity()
	}

	switch msg.String() {
	case "q":
		return a.signOutAndQuit()

	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}

	case "down", "j":
		if a.cursor < len(a.docs)-1 {
			a.cursor++
		}
	}
	return a, nil
}

func (a *App) loginFields() []int {
	if a.needTOTP {
		return []int{0, 1, 2}
	}
	return []int{0, 1}
}

func (a *App) setLoginFocus(i int) {
	a.loginFocus = i
	a.usernameInput.Blur()
	a.passwordInput.Blur()
	a.totpInput.Blur()
	switch i {
	case 0:
		a.usernameInput.Focus()
	case 1:
		a.passwordInput.Focus()
	case 2:
		a.totpInput.Focus()
	}
}

// =============================================================================
// LOGIN
// =============================================================================

func (a App) submitLogin() (tea.Model, tea.Cmd) {
	username := a.usernameInput.Value()
	password := a.passwordInput.Value()
	totpCode := a.totpInput.Value()

	if username == "" || password == "" {
		a.loginErr = "username and password are required"
		return a, nil
	}

	a.loginBusy = true
	a.loginErr = ""
	authn := a.auth

	return a, func() tea.Msg {
		sess, err := authn.Login(context.Background(), username, password, totpCode)
		return loginResultMsg{session: sess, err: err}
	}
}

func (a App) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	a.loginBusy = false

	if msg.err != nil {
		switch {
		case errors.Is(msg.err, auth.ErrTOTPRequired):
			a.needTOTP = true
			a.loginErr = "enter the code from your authenticator app"
			a.setLoginFocus(2)
		case errors.Is(msg.err, auth.ErrInvalidTOTP):
			a.loginErr = "that code was not accepted"
			a.totpInput.Reset()
			a.setLoginFocus(2)
		case errors.Is(msg.err, auth.ErrInvalidCredentials):
			a.loginErr = "sign-in failed, check your username and password"
			a.passwordInput.Reset()
			a.setLoginFocus(1)
		default:
			a.loginErr = "sign-in error: " + msg.err.Error()
		}
		a.audit.LogLoginFailed(a.usernameInput.Value(), a.loginErr)
		return a, textinput.Blink
	}

	a.session = msg.session
	a.screen = ScreenShell
	a.statusBar = components.NewStatusBar(msg.session.Username)
	a.statusBar.SetWidth(a.width)
	a.audit.LogLogin(msg.session.ID, msg.session.Username)

	a.startMonitor()
	return a, nil
}

// =============================================================================
// SESSION MONITORING
// =============================================================================

// startMonitor builds and starts the inactivity monitor for the signed-in
// user. Timer callbacks run on timer goroutines, so they hand off to the
// program through send rather than touching the model.
func (a *App) startMonitor() {
	sess := a.session
	st := a.store
	username := sess.Username

	schedule := monitor.FromPolicy(func() policy.SessionPolicy {
		cfg := config.Global()
		override := 0
		if pref, err := st.TimeoutPreference(context.Background(), username); err == nil {
			override = pref
		}
		return policy.Resolve(override, cfg.Session.DefaultTimeoutMinutes, cfg.Session.MaxTimeoutMinutes)
	})

	throttle := time.Duration(config.Global().Session.ActivityThrottleMS) * time.Millisecond

	a.mon = monitor.New(monitor.Config{
		Schedule: schedule,
		Throttle: throttle,
		Callbacks: monitor.Callbacks{
			OnWarning: func(remaining time.Duration) {
				send(components.WarningMsg{Remaining: remaining})
			},
			OnTick: func(remaining time.Duration) {
				send(components.CountdownTickMsg{Remaining: remaining})
			},
			OnExpired: func() {
				send(components.ExpiredMsg{})
			},
		},
	})
	a.mon.Start()

	a.audit.LogSessionStarted(sess.ID, username, map[string]string{
		"role": sess.Role,
	})
}

func (a App) handleExpired() (tea.Model, tea.Cmd) {
	if a.session != nil {
		if a.userSignOut {
			a.audit.LogSessionEnded(a.session.ID, a.session.Username)
		} else {
			a.audit.LogSessionExpired(a.session.ID, a.session.Username)
		}
	}

	if a.userSignOut {
		return a, tea.Quit
	}

	// Leave the signed-out notice up long enough to read, then exit.
	a.overlay.MarkExpired()
	return a, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return quitAfterExpiryMsg{}
	})
}

func (a App) signOutAndQuit() (tea.Model, tea.Cmd) {
	if a.mon != nil && a.mon.Active() {
		a.userSignOut = true
		a.mon.ForceLogout()
		// Expiry callback delivers ExpiredMsg, which quits.
		return a, nil
	}
	return a, tea.Quit
}

// =============================================================================
// VIEWS
// =============================================================================

func (a App) viewNotice() string {
	width := a.width
	if width == 0 {
		width = 80
	}
	height := a.height
	if height == 0 {
		height = 24
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, a.noticeRendered)
}

func (a App) viewLogin() string {
	width := a.width
	if width == 0 {
		width = 80
	}
	height := a.height
	if height == 0 {
		height = 24
	}

	var parts []string
	parts = append(parts, a.theme.HeaderTitle.Render("satchel")+" "+a.theme.HeaderSubtitle.Render("sign in"))
	parts = append(parts, "")
	parts = append(parts, a.theme.LoginLabel.Render("Username"))
	parts = append(parts, a.usernameInput.View())
	parts = append(parts, a.theme.LoginLabel.Render("Password"))
	parts = append(parts, a.passwordInput.View())
	if a.needTOTP {
		parts = append(parts, a.theme.LoginLabel.Render("Authenticator code"))
		parts = append(parts, a.totpInput.View())
	}
	if a.loginBusy {
		parts = append(parts, "")
		parts = append(parts, a.theme.LoginNotice.Render("signing in..."))
	}
	if a.loginErr != "" {
		parts = append(parts, "")
		parts = append(parts, a.theme.LoginError.Render(styles.StatusIndicators.Error+" "+a.loginErr))
	}

	box := a.theme.LoginBox.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func (a App) viewShell() string {
	width := a.width
	if width == 0 {
		width = 80
	}
	height := a.height
	if height == 0 {
		height = 24
	}

	header := a.theme.Header.Width(width - 2).Render("satchel filing")

	var rows []string
	for i, doc := range a.docs {
		line := fmt.Sprintf("%-30s %-12s %s",
			components.TruncateLine(doc.Name, 30),
			doc.Category,
			doc.FiledAt.Format("2006-01-02"),
		)
		if i == a.cursor {
			rows = append(rows, a.theme.DocItemSelected.Render(line))
		} else {
			rows = append(rows, a.theme.DocItem.Render(line))
		}
	}
	list := a.theme.DocList.Width(width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))

	body := lipgloss.JoinVertical(lipgloss.Left, header, "", list)

	bodyHeight := height - lipgloss.Height(body) - 1
	if bodyHeight > 0 {
		body = lipgloss.JoinVertical(lipgloss.Left, body, lipgloss.NewStyle().Height(bodyHeight).Render(""))
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, a.statusBar.View())
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Monitor exposes the active inactivity monitor, nil before login.
func (a *App) Monitor() *monitor.Monitor {
	return a.mon
}

// Session returns the active session, nil before login.
func (a *App) Session() *auth.Session {
	return a.session
}
