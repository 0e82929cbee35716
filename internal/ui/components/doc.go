// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the rendering building blocks of the knowhub TUI.

Components are plain render functions and small state holders. They never
call the gateway or mutate session, registry or conversation state; screens
pass them snapshots.

# Display Components

  - Header (header.go) - brand, screen tabs and the signed-in user
  - StatusBar (statusbar.go) - key hints and a transient status line
  - MessageBubble (message.go) - chat messages with citations
  - DocumentRow (document.go) - one registry entry with its status badge
  - ToastManager (toast.go) - non-blocking notices that auto-dismiss

All components take a *styles.Theme:

	theme := styles.NewTheme("auto")
	bar := components.StatusBar{Hints: []components.KeyHint{{Key: "tab", Desc: "switch"}}}
	fmt.Println(bar.Render(theme, 80))
*/
package components
