// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the knowhub TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. The theme can also be pinned with the ui.theme setting.

# Color System (colors.go)

  - Purple - Primary accent for assistant messages and selections
  - Cyan - Brand color and citations
  - Emerald - Ready documents and success states
  - Amber - Documents still processing
  - Rose - Failed documents and failed answers

Every status is also shown with an ASCII indicator (StatusIndicators) so it
does not depend on color alone.

# Theme System (theme.go)

	theme := styles.NewTheme(cfg.UI.Theme)
	fmt.Println(theme.StatusReady.Render("ready"))

# Spinners (spinner.go)

SpinnerConfig values convert to bubbles spinners with Bubble().
*/
package styles
