// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway is the single funnel for all remote I/O with the
// knowledge service.
//
// Every call attaches the current bearer credential, classifies the outcome
// into exactly one error kind, and asks the session to tear down when the
// server rejects the credential. There are no automatic retries.
//
// # Key Types
//
//   - Client: HTTP client with credential attachment and classification
//   - Request / Response: generic call envelope used by Call
//   - Error: typed failure carrying a Kind, optional Reason and message
//   - CredentialSource: read/teardown view of the session store
//
// # Usage
//
//	client := gateway.New(gateway.Options{BaseURL: cfg.Server.URL})
//	client.SetCredentials(store)
//
//	docs, err := client.ListDocuments(ctx)
//	if errors.Is(err, gateway.ErrUnauthenticated) {
//	    // route back to login
//	}
//
// # Error Kinds
//
// Unauthenticated, ValidationError, Unreachable, ServerError, Conflict and
// InvalidCredentials. UserMessage turns any of them into a short sentence
// suitable for display.
package gateway
