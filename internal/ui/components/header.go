// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/knowhub/internal/ui/styles"
	"github.com/jeranaias/knowhub/internal/util"
)

// Brand is the application name shown in the header.
const Brand = "knowhub"

// =============================================================================
// HEADER COMPONENT
// =============================================================================

// Header is the top bar: brand, screen tabs and the signed-in user.
type Header struct {
	Tabs   []string
	Active int
	User   string
}

// Render draws the header across width cells.
func (h Header) Render(theme *styles.Theme, width int) string {
	left := theme.HeaderBrand.Render(Brand)

	if len(h.Tabs) > 0 {
		tabs := make([]string, len(h.Tabs))
		for i, name := range h.Tabs {
			if i == h.Active {
				tabs[i] = theme.TabActive.Render(name)
			} else {
				tabs[i] = theme.TabInactive.Render(name)
			}
		}
		left += "  " + strings.Join(tabs, " ")
	}

	right := ""
	if h.User != "" {
		// Narrow terminals drop the user rather than wrap.
		avail := width - lipgloss.Width(left) - 4
		if avail > 8 {
			right = theme.HeaderSubtitle.Render(util.TruncateWidth(h.User, avail))
		}
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	line := left + strings.Repeat(" ", gap) + right
	if width > 0 {
		return theme.Header.Width(width).MaxWidth(width).Render(line)
	}
	return theme.Header.Render(line)
}
