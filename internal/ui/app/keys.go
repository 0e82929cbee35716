// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the application.
type KeyMap struct {
	// Global
	Quit      key.Binding
	Logout    key.Binding
	SwitchTab key.Binding

	// Forms
	Submit     key.Binding
	NextField  key.Binding
	PrevField  key.Binding
	ToggleMode key.Binding
	Close      key.Binding

	// Documents
	Refresh key.Binding
	Upload  key.Binding
	Up      key.Binding
	Down    key.Binding

	// Chat
	Send     key.Binding
	Cancel   key.Binding
	Retry    key.Binding
	PageUp   key.Binding
	PageDown key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		Logout: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "sign out"),
		),
		SwitchTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "switch view"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "submit"),
		),
		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("Tab", "next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("S-Tab", "previous field"),
		),
		ToggleMode: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "login/signup"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "close"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Upload: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "upload"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "previous"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "next"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "ask"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "cancel"),
		),
		Retry: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "retry"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("PgDn", "scroll down"),
		),
	}
}

// =============================================================================
// HELP TEXT
// =============================================================================

// AuthHelp returns the bindings shown on the auth screen.
func (k KeyMap) AuthHelp() []key.Binding {
	return []key.Binding{k.Submit, k.NextField, k.ToggleMode, k.Quit}
}

// DocumentsHelp returns the bindings shown on the documents screen.
func (k KeyMap) DocumentsHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Upload, k.SwitchTab, k.Logout, k.Quit}
}

// UploadHelp returns the bindings shown while the upload form is open.
func (k KeyMap) UploadHelp() []key.Binding {
	return []key.Binding{k.Submit, k.NextField, k.Close}
}

// ChatHelp returns the bindings shown on the chat screen.
func (k KeyMap) ChatHelp() []key.Binding {
	return []key.Binding{k.Send, k.Cancel, k.Retry, k.SwitchTab, k.Logout}
}
