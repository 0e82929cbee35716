// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/knowhub/internal/ui/styles"
	"github.com/jeranaias/knowhub/internal/util"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// ToastKind represents the type of toast notification.
type ToastKind int

const (
	// ToastKindStatus is an informational toast
	ToastKindStatus ToastKind = iota
	// ToastKindError is an error toast
	ToastKindError
	// ToastKindWarning is a warning toast
	ToastKindWarning
	// ToastKindSuccess is a success toast
	ToastKindSuccess
)

// DefaultToastDuration is the auto-dismiss duration for status toasts.
const DefaultToastDuration = 4 * time.Second

// ErrorToastDuration is longer so errors can be read.
const ErrorToastDuration = 8 * time.Second

// Toast is a non-blocking notice.
type Toast struct {
	ID        int
	Message   string
	Kind      ToastKind
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired reports whether the toast should be dismissed at now.
func (t Toast) IsExpired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// =============================================================================
// TOAST MANAGER
// =============================================================================

// ToastManager keeps the active toasts, newest first.
type ToastManager struct {
	mu        sync.Mutex
	toasts    []Toast
	nextID    int
	maxToasts int
	now       func() time.Time
}

// NewToastManager creates a new toast manager.
func NewToastManager() *ToastManager {
	return &ToastManager{
		nextID:    1,
		maxToasts: 3,
		now:       time.Now,
	}
}

// Add shows a toast and returns its ID.
func (m *ToastManager) Add(kind ToastKind, message string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := DefaultToastDuration
	if kind == ToastKindError {
		duration = ErrorToastDuration
	}
	toast := Toast{
		ID:        m.nextID,
		Message:   message,
		Kind:      kind,
		CreatedAt: m.now(),
		Duration:  duration,
	}
	m.nextID++

	m.toasts = append([]Toast{toast}, m.toasts...)
	if len(m.toasts) > m.maxToasts {
		m.toasts = m.toasts[:m.maxToasts]
	}
	return toast.ID
}

// AddError adds an error toast.
func (m *ToastManager) AddError(message string) int { return m.Add(ToastKindError, message) }

// AddSuccess adds a success toast.
func (m *ToastManager) AddSuccess(message string) int { return m.Add(ToastKindSuccess, message) }

// AddStatus adds an informational toast.
func (m *ToastManager) AddStatus(message string) int { return m.Add(ToastKindStatus, message) }

// Dismiss removes the newest toast.
func (m *ToastManager) Dismiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.toasts) > 0 {
		m.toasts = m.toasts[1:]
	}
}

// Tick drops expired toasts and returns what remains.
func (m *ToastManager) Tick() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	active := m.toasts[:0]
	for _, t := range m.toasts {
		if !t.IsExpired(now) {
			active = append(active, t)
		}
	}
	m.toasts = active
	return append([]Toast(nil), m.toasts...)
}

// Toasts returns a copy of the active toasts.
func (m *ToastManager) Toasts() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Toast(nil), m.toasts...)
}

// Clear removes all toasts.
func (m *ToastManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toasts = nil
}

// ToastTickMsg is sent periodically to expire toasts.
type ToastTickMsg struct {
	Time time.Time
}

// ToastTickCmd ticks toasts every 250ms.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return ToastTickMsg{Time: t}
	})
}

// =============================================================================
// TOAST RENDERING
// =============================================================================

// Render draws the toast as a single status line.
func (t Toast) Render(theme *styles.Theme, width int) string {
	var style lipgloss.Style
	var icon string
	switch t.Kind {
	case ToastKindError:
		style, icon = theme.ErrorStyle, styles.StatusIndicators.Error
	case ToastKindWarning:
		style, icon = theme.WarningStyle, styles.StatusIndicators.Warning
	case ToastKindSuccess:
		style, icon = theme.SuccessStyle, styles.StatusIndicators.Success
	default:
		style, icon = theme.InfoStyle, styles.StatusIndicators.Info
	}
	text := util.SingleLine(t.Message)
	if width > 0 {
		text = util.TruncateWidth(text, max(width-runewidth.StringWidth(icon)-1, 1))
	}
	return style.Render(icon + " " + text)
}

// =============================================================================
// HELPERS
// =============================================================================

// WrapText word-wraps text to width display cells. Words wider than width
// are kept whole on their own line.
func WrapText(text string, width int) string {
	if width <= 0 {
		return text
	}

	var out strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			out.WriteByte('\n')
		}
		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}
		current := words[0]
		currentWidth := runewidth.StringWidth(current)
		for _, word := range words[1:] {
			w := runewidth.StringWidth(word)
			if currentWidth+1+w <= width {
				current += " " + word
				currentWidth += 1 + w
				continue
			}
			out.WriteString(current)
			out.WriteByte('\n')
			current, currentWidth = word, w
		}
		out.WriteString(current)
	}
	return out.String()
}

// countLabel renders "n noun" with a naive plural.
func countLabel(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
