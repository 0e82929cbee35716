// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/knowhub/internal/ui/styles"
	"github.com/jeranaias/knowhub/internal/util"
)

// KeyHint is one "key description" pair in the status bar.
type KeyHint struct {
	Key  string
	Desc string
}

// HintsFromBindings converts bubbles key bindings into hints.
func HintsFromBindings(bindings ...key.Binding) []KeyHint {
	hints := make([]KeyHint, 0, len(bindings))
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		hints = append(hints, KeyHint{Key: h.Key, Desc: h.Desc})
	}
	return hints
}

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// StatusBar is the bottom bar: a status message on the left, key hints on
// the right. Hints are dropped from the end when space runs out.
type StatusBar struct {
	Message string
	Hints   []KeyHint
}

// Render draws the status bar across width cells.
func (s StatusBar) Render(theme *styles.Theme, width int) string {
	msg := ""
	if s.Message != "" {
		msg = util.TruncateWidth(util.SingleLine(s.Message), max(width/2, 10))
	}

	parts := make([]string, 0, len(s.Hints))
	for _, h := range s.Hints {
		parts = append(parts, theme.ShortcutKey.Render(h.Key)+" "+theme.ShortcutDesc.Render(h.Desc))
	}
	for len(parts) > 0 && width > 0 &&
		lipgloss.Width(msg)+lipgloss.Width(strings.Join(parts, "  "))+4 > width {
		parts = parts[:len(parts)-1]
	}
	hints := strings.Join(parts, "  ")

	gap := width - lipgloss.Width(msg) - lipgloss.Width(hints) - 2
	if gap < 1 {
		gap = 1
	}
	line := msg + strings.Repeat(" ", gap) + hints
	if width > 0 {
		return theme.StatusBar.Width(width).MaxWidth(width).Render(line)
	}
	return theme.StatusBar.Render(line)
}
