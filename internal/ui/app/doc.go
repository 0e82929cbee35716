// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package app is the root Bubble Tea model of the knowhub terminal UI.

It owns no domain state. Every screen reads snapshots from the session
store, the document registry and the conversation engine, and every user
action is a tea.Cmd that calls one of their operations off the update loop.

# Screens

  - Auth: login and signup form (ctrl+t switches between them)
  - Documents: the registry listing, refresh, and the upload form
  - Chat: the transcript viewport and the question input

Tab switches between Documents and Chat. ctrl+o signs out from anywhere and
returns to Auth, as does any Unauthenticated failure.

# Change Notifications

Run registers change callbacks on the registry, the engine and the session
store. They fire on whatever goroutine changed the state, including the
update loop itself, so each one forwards a message with go p.Send.

# Usage

	err := app.Run(app.Deps{
		Config:   cfg,
		Session:  store,
		Registry: reg,
		Engine:   engine,
		Logger:   logger,
	})
*/
package app
