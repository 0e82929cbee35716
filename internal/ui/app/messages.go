// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/jeranaias/knowhub/internal/conversation"
	"github.com/jeranaias/knowhub/internal/registry"
	"github.com/jeranaias/knowhub/internal/session"
)

// =============================================================================
// OPERATION RESULTS
// =============================================================================

// authResultMsg carries the outcome of a login or signup.
type authResultMsg struct {
	email string
	cred  session.Credential
	err   error
}

// refreshResultMsg carries the outcome of a registry refresh.
type refreshResultMsg struct {
	err error
}

// uploadResultMsg carries the outcome of a document submission.
type uploadResultMsg struct {
	doc registry.Document
	err error
}

// askResultMsg carries the outcome of an ask or retry.
type askResultMsg struct {
	turn conversation.Turn
	err  error
}

// =============================================================================
// CHANGE NOTIFICATIONS
// =============================================================================

// registryChangedMsg is sent by the registry change callback.
type registryChangedMsg struct{}

// conversationChangedMsg is sent by the engine change callback.
type conversationChangedMsg struct{}

// sessionEndedMsg is sent when the session store tears the session down.
type sessionEndedMsg struct {
	reason session.TeardownReason
}

// pollTickMsg triggers a refresh while documents are still processing.
type pollTickMsg struct{}
