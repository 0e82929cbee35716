// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// ERROR KINDS
// =============================================================================

// Kind classifies every failure surfaced by knowhub components.
type Kind int

const (
	// KindUnknown is never produced by the gateway; it marks foreign errors.
	KindUnknown Kind = iota
	// KindUnauthenticated means no credential, or the server rejected it.
	KindUnauthenticated
	// KindValidation means the request was rejected as malformed, either
	// locally before any I/O or by a 4xx response.
	KindValidation
	// KindUnreachable means a transport failure, timeout or cancellation.
	KindUnreachable
	// KindServer means a 5xx response or an unusable success response.
	KindServer
	// KindConflict means the resource already exists (HTTP 409).
	KindConflict
	// KindInvalidCredentials means login was refused.
	KindInvalidCredentials
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindValidation:
		return "ValidationError"
	case KindUnreachable:
		return "Unreachable"
	case KindServer:
		return "ServerError"
	case KindConflict:
		return "Conflict"
	case KindInvalidCredentials:
		return "InvalidCredentials"
	default:
		return "Unknown"
	}
}

// Reason refines a ValidationError raised locally.
type Reason string

const (
	ReasonMissingCredentials Reason = "missingCredentials"
	ReasonMissingDisplayName Reason = "missingDisplayName"
	ReasonMissingTitleOrFile Reason = "missingTitleOrFile"
	ReasonUnsupportedFormat  Reason = "unsupportedFormat"
	ReasonFileTooLarge       Reason = "fileTooLarge"
	ReasonEmptyQuestion      Reason = "emptyQuestion"
	ReasonConversationBusy   Reason = "conversationBusy"
	ReasonNotRetryable       Reason = "notRetryable"
)

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is the typed failure returned by the gateway and by the components
// built on it.
type Error struct {
	Kind    Kind
	Reason  Reason // local validation only
	Status  int    // HTTP status, 0 when no response was received
	Message string // server-provided or local message
	Err     error  // underlying cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Reason != "" {
		fmt.Fprintf(&b, "(%s)", e.Reason)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind, and by reason when the sentinel carries one.
// A conflict also matches ErrValidation.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Reason != "" && t.Reason != e.Reason {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindValidation && e.Kind == KindConflict
}

// Sentinels for errors.Is.
var (
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrUnreachable        = &Error{Kind: KindUnreachable}
	ErrServer             = &Error{Kind: KindServer}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}

	ErrConversationBusy = &Error{Kind: KindValidation, Reason: ReasonConversationBusy}
)

// Validation builds a local ValidationError; no request is made.
// An empty message takes the standard wording for the reason.
func Validation(reason Reason, message string) *Error {
	if message == "" {
		message = reasonMessages[reason]
	}
	return &Error{Kind: KindValidation, Reason: reason, Message: message}
}

// KindOf extracts the kind from err, or KindUnknown.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindUnknown
}

// ReasonOf extracts the validation reason from err, if any.
func ReasonOf(err error) Reason {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Reason
	}
	return ""
}

// =============================================================================
// USER MESSAGES
// =============================================================================

// FallbackMessage is shown when nothing more specific is known.
const FallbackMessage = "An unexpected error occurred."

// UserMessage maps an error to a short sentence for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var gerr *Error
	if !errors.As(err, &gerr) {
		return FallbackMessage
	}

	switch gerr.Kind {
	case KindUnauthenticated:
		return "Your session has ended. Please log in again."
	case KindInvalidCredentials:
		if gerr.Message != "" {
			return gerr.Message
		}
		return "Invalid email or password."
	case KindConflict:
		if gerr.Message != "" {
			return gerr.Message
		}
		return "An account with this email already exists."
	case KindUnreachable:
		return "Cannot reach the knowledge service. Check your connection and try again."
	case KindValidation:
		if gerr.Message != "" {
			return gerr.Message
		}
		if msg, ok := reasonMessages[gerr.Reason]; ok {
			return msg
		}
		return FallbackMessage
	case KindServer:
		if gerr.Message != "" {
			return gerr.Message
		}
		return FallbackMessage
	default:
		return FallbackMessage
	}
}

var reasonMessages = map[Reason]string{
	ReasonMissingCredentials: "Please enter both email and password.",
	ReasonMissingDisplayName: "Please enter your name.",
	ReasonMissingTitleOrFile: "Please provide both a file and a title.",
	ReasonUnsupportedFormat:  "This file type is not supported.",
	ReasonFileTooLarge:       "This file is too large to upload.",
	ReasonEmptyQuestion:      "Please type a question first.",
	ReasonConversationBusy:   "Please wait for the current answer.",
	ReasonNotRetryable:       "Only failed answers can be retried.",
}
