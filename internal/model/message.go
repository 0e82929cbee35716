// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/jeranaias/knowhub/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// DELIVERY STATE
// =============================================================================

// DeliveryState tracks an assistant reply through its round-trip.
type DeliveryState int

const (
	StatePending DeliveryState = iota
	StateCommitted
	StateFailed
)

// String returns the state name.
func (s DeliveryState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one transcript entry. Values handed out by Conversation are
// copies; mutating them does not affect the transcript.
type Message struct {
	// Identity
	Seq       uint64    `json:"seq"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content is non-empty once committed, empty while pending or failed.
	Content string        `json:"content"`
	Sources []string      `json:"sources"`
	State   DeliveryState `json:"state"`

	// AnswersSeq is the user message an assistant message replies to.
	AnswersSeq uint64 `json:"answers_seq,omitempty"`

	// Err is the failure of a failed message.
	Err error `json:"-"`
}

// IsPending reports whether the reply is still in flight.
func (m Message) IsPending() bool { return m.State == StatePending }

// IsCommitted reports whether the message is final with content.
func (m Message) IsCommitted() bool { return m.State == StateCommitted }

// IsFailed reports whether the reply failed.
func (m Message) IsFailed() bool { return m.State == StateFailed }

// Preview returns a single-line preview of the content, at most maxLen
// characters (0 = no limit).
func (m Message) Preview(maxLen int) string {
	content := strings.Join(strings.Fields(m.Content), " ")
	if maxLen <= 0 {
		return content
	}
	return util.TruncateRunes(content, maxLen)
}

// clone deep-copies the message.
func (m *Message) clone() Message {
	c := *m
	if m.Sources != nil {
		c.Sources = append([]string(nil), m.Sources...)
	}
	return c
}
