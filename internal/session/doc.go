// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the authenticated-session lifecycle.
//
// The Store is the single writer of the bearer credential. Login and Signup
// create it, Logout destroys it, Restore reloads it from the durable slot at
// startup, and the gateway calls Invalidate when the server rejects it.
//
// # Key Types
//
//   - Store: credential owner, implements gateway.CredentialSource
//   - Credential: bearer token plus decoded display claims
//   - Authenticator: the login/signup calls the Store depends on
//
// # Usage
//
//	store := session.NewStore(client, storage.NewFileSlot(path), logger)
//	client.SetCredentials(store)
//
//	if _, ok, _ := store.Restore(); !ok {
//	    cred, err := store.Login(ctx, email, password)
//	    ...
//	}
//
//	store.SetTeardownCallback(func(reason session.TeardownReason) {
//	    // route back to the login screen
//	})
package session
