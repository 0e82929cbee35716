// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the transcript data structures for the chat view.
//
// A Conversation is an append-only sequence of Messages. Every message gets
// a sequence number when it is appended; numbers strictly increase and are
// never reused. Committed messages are never edited or removed. Assistant
// messages start pending and resolve exactly once, to committed or failed.
//
// # Key Types
//
//   - Conversation: append-only transcript, safe for concurrent use
//   - Message: one transcript entry with role, content, sources and state
//   - DeliveryState: pending, committed or failed
//   - Role: user or assistant
//
// # Usage
//
//	conv := model.NewConversation()
//	q := conv.AppendUser("What is the refund policy?")
//	a := conv.AppendPending(q.Seq)
//	_ = conv.Commit(a.Seq, "Within 30 days.", []string{"policy.pdf#2"})
//
//	for _, msg := range conv.Messages() {
//	    fmt.Println(msg.Role.DisplayName(), msg.Content)
//	}
package model
