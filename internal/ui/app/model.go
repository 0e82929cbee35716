// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/knowhub/internal/config"
	"github.com/jeranaias/knowhub/internal/conversation"
	"github.com/jeranaias/knowhub/internal/gateway"
	"github.com/jeranaias/knowhub/internal/registry"
	"github.com/jeranaias/knowhub/internal/session"
	"github.com/jeranaias/knowhub/internal/ui/components"
	"github.com/jeranaias/knowhub/internal/ui/styles"
	"github.com/jeranaias/knowhub/internal/util"
)

// Screen is the visible top-level view.
type Screen int

const (
	ScreenAuth      Screen = iota // Login / signup form
	ScreenDocuments               // Document registry
	ScreenChat                    // Conversation
)

// String returns the tab label of the screen.
func (s Screen) String() string {
	switch s {
	case ScreenAuth:
		return "Sign in"
	case ScreenDocuments:
		return "Documents"
	case ScreenChat:
		return "Chat"
	default:
		return "Unknown"
	}
}

// tabs are the screens reachable with Tab once signed in.
var tabs = []Screen{ScreenDocuments, ScreenChat}

// Layout: header line + body + status line.
const (
	headerHeight    = 1
	statusBarHeight = 1
)

// ErrMissingDependency is returned by Run when Deps is incomplete.
var ErrMissingDependency = errors.New("app: missing dependency")

// Deps are the components the UI drives.
type Deps struct {
	Config   *config.Config
	Session  *session.Store
	Registry *registry.Registry
	Engine   *conversation.Engine
	Theme    *styles.Theme
	Logger   *slog.Logger
}

// =============================================================================
// APPLICATION MODEL
// =============================================================================

// Model is the root Bubble Tea model. It must be used as a pointer.
type Model struct {
	// State
	screen Screen
	width  int
	height int

	// Components
	cfg      *config.Config
	store    *session.Store
	registry *registry.Registry
	engine   *conversation.Engine
	theme    *styles.Theme
	logger   *slog.Logger

	// UI
	keys    KeyMap
	spinner spinner.Model
	toasts  *components.ToastManager
	scope   *workScope // Pointer to avoid copying the mutex

	// Screens
	auth authForm
	docs documentsView
	chat chatView
}

// New creates the root model. The starting screen depends on whether the
// session store already holds a credential.
func New(deps Deps) *Model {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	theme := deps.Theme
	if theme == nil {
		theme = styles.NewTheme(cfg.UI.Theme)
	}
	logger := deps.Logger
	if logger == nil {
		logger = util.DiscardLogger()
	}

	m := &Model{
		cfg:      cfg,
		store:    deps.Session,
		registry: deps.Registry,
		engine:   deps.Engine,
		theme:    theme,
		logger:   logger.With("component", "tui"),
		keys:     DefaultKeyMap(),
		spinner:  newSpinner(theme),
		toasts:   components.NewToastManager(),
		scope:    newWorkScope(),
		auth:     newAuthForm(),
		docs:     newDocumentsView(),
		chat:     newChatView(),
	}

	if m.store.Authenticated() {
		m.screen = ScreenDocuments
		m.docs.refreshing = true
	} else {
		m.screen = ScreenAuth
		m.auth.focusField(fieldEmail)
	}
	return m
}

func newSpinner(theme *styles.Theme) spinner.Model {
	sp := spinner.New()
	sp.Spinner = styles.LineSpinner.Bubble()
	sp.Style = theme.Spinner
	return sp
}

// Screen returns the visible screen.
func (m *Model) Screen() Screen {
	return m.screen
}

// Init starts the spinner and toast clocks, and lists documents when a
// session was restored.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, components.ToastTickCmd(), textinput.Blink}
	if m.screen == ScreenDocuments {
		cmds = append(cmds, m.refreshCmd())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.engine.Busy() {
			m.syncTranscript()
		}
		return m, cmd

	case components.ToastTickMsg:
		m.toasts.Tick()
		return m, components.ToastTickCmd()

	case authResultMsg:
		return m.handleAuthResult(msg)

	case refreshResultMsg:
		return m.handleRefreshResult(msg)

	case uploadResultMsg:
		return m.handleUploadResult(msg)

	case askResultMsg:
		return m.handleAskResult(msg)

	case registryChangedMsg:
		return m, m.schedulePoll()

	case conversationChangedMsg:
		m.syncTranscript()
		return m, nil

	case pollTickMsg:
		return m.handlePollTick()

	case sessionEndedMsg:
		m.logger.Info("session ended", "reason", string(msg.reason))
		return m, m.endSession("Your session has ended. Please log in again.")
	}

	// Cursor blink and other input housekeeping.
	return m, m.updateFocusedInput(msg)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.engine.Cancel()
		m.scope.stop()
		return m, tea.Quit
	}
	if m.screen == ScreenAuth {
		return m.updateAuth(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Logout):
		return m, m.logout()
	case key.Matches(msg, m.keys.SwitchTab) && !m.docs.formOpen:
		return m, m.switchTab()
	}

	if m.screen == ScreenChat {
		return m.updateChat(msg)
	}
	return m.updateDocuments(msg)
}

func (m *Model) updateFocusedInput(msg tea.Msg) tea.Cmd {
	switch {
	case m.screen == ScreenAuth:
		return m.auth.update(msg)
	case m.screen == ScreenDocuments && m.docs.formOpen:
		return m.docs.form.update(msg)
	case m.screen == ScreenChat:
		var cmd tea.Cmd
		m.chat.input, cmd = m.chat.input.Update(msg)
		return cmd
	}
	return nil
}

// =============================================================================
// NAVIGATION AND SESSION
// =============================================================================

func (m *Model) switchTab() tea.Cmd {
	if m.screen == ScreenDocuments {
		m.screen = ScreenChat
		m.syncTranscript()
		m.chat.viewport.GotoBottom()
		return m.chat.input.Focus()
	}
	m.screen = ScreenDocuments
	m.chat.input.Blur()
	return nil
}

// logout signs out and returns to the auth screen.
func (m *Model) logout() tea.Cmd {
	if err := m.store.Logout(); err != nil {
		m.logger.Warn("logout could not clear the credential slot", "error", err)
		m.toasts.AddError("Signed out, but the saved credential could not be removed.")
	} else {
		m.toasts.AddStatus("Signed out.")
	}
	return m.resetSession()
}

// endSession is logout without the store call: the credential is already
// gone.
func (m *Model) endSession(notice string) tea.Cmd {
	if m.screen != ScreenAuth {
		m.toasts.AddError(notice)
	}
	return m.resetSession()
}

// resetSession drops everything tied to the signed-in user.
func (m *Model) resetSession() tea.Cmd {
	m.scope.reset()
	m.engine.Reset()
	m.registry.Reset()
	m.docs = newDocumentsView()
	m.chat.input.Reset()
	m.chat.input.Blur()
	m.syncTranscript()
	m.screen = ScreenAuth
	return m.auth.reset()
}

// routeUnauthenticated sends the user back to the auth screen when err
// says the session is gone.
func (m *Model) routeUnauthenticated(err error) (tea.Cmd, bool) {
	if !errors.Is(err, gateway.ErrUnauthenticated) {
		return nil, false
	}
	return m.endSession(gateway.UserMessage(err)), true
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)
	m.resizeChat(width, m.bodyHeight())
	m.docs.clampSelection(len(m.registry.Documents()), m.visibleRows())
}

func (m *Model) bodyHeight() int {
	return max(m.height-headerHeight-statusBarHeight, 1)
}

// View renders the current screen.
func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := components.Header{}
	if m.screen != ScreenAuth {
		header.Tabs = make([]string, len(tabs))
		for i, s := range tabs {
			header.Tabs[i] = s.String()
			if s == m.screen {
				header.Active = i
			}
		}
		if cred, ok := m.store.Current(); ok {
			header.User = cred.DisplayName()
		}
	}

	height := m.bodyHeight()
	var body string
	switch m.screen {
	case ScreenAuth:
		body = m.viewAuth(m.width, height)
	case ScreenChat:
		body = m.viewChat(m.width)
	default:
		body = m.viewDocuments(m.width, height)
	}
	body = lipgloss.NewStyle().Height(height).MaxHeight(height).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left,
		header.Render(m.theme, m.width),
		body,
		m.viewStatusBar())
}

// viewStatusBar shows the newest toast, or the key hints for the screen.
func (m *Model) viewStatusBar() string {
	if toasts := m.toasts.Toasts(); len(toasts) > 0 {
		line := toasts[0].Render(m.theme, m.width-2)
		return m.theme.StatusBar.Width(m.width).MaxWidth(m.width).Render(line)
	}

	var bindings []key.Binding
	status := ""
	switch {
	case m.screen == ScreenAuth:
		bindings = m.keys.AuthHelp()
	case m.screen == ScreenChat:
		bindings = m.keys.ChatHelp()
		if m.engine.Busy() {
			status = "Waiting for an answer..."
			if q, ok := pendingQuestion(m.engine.Messages()); ok {
				status = "Answering: " + q.Preview(40)
			}
		}
	case m.docs.formOpen:
		bindings = m.keys.UploadHelp()
	default:
		bindings = m.keys.DocumentsHelp()
		if n := m.registry.Pending(); n > 0 {
			status = fmt.Sprintf("%d in progress", n)
		}
	}
	return components.StatusBar{
		Message: status,
		Hints:   components.HintsFromBindings(bindings...),
	}.Render(m.theme, m.width)
}

// =============================================================================
// RUN
// =============================================================================

// Run starts the full-screen UI and blocks until the user quits.
func Run(deps Deps) error {
	if deps.Session == nil || deps.Registry == nil || deps.Engine == nil {
		return ErrMissingDependency
	}
	m := New(deps)
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Send blocks until Update reads the message, and these callbacks can
	// fire from inside Update, so each send gets its own goroutine.
	deps.Registry.SetChangeCallback(func() { go p.Send(registryChangedMsg{}) })
	deps.Engine.SetChangeCallback(func() { go p.Send(conversationChangedMsg{}) })
	deps.Session.SetTeardownCallback(func(reason session.TeardownReason) {
		go p.Send(sessionEndedMsg{reason: reason})
	})
	defer func() {
		deps.Registry.SetChangeCallback(nil)
		deps.Engine.SetChangeCallback(nil)
		deps.Session.SetTeardownCallback(nil)
		m.scope.stop()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

// errorText is the message shown for err.
func errorText(err error) string {
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		return gateway.UserMessage(err)
	}
	return util.SingleLine(err.Error())
}
