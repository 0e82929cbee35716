// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation runs question/answer round-trips against the
// knowledge service and records them in an append-only transcript.
//
// Each Ask appends a committed user message and a pending assistant message,
// makes exactly one gateway call, and resolves that pending message by its
// sequence number: committed with the answer and its citations, or failed
// with empty content. Only one ask is in flight at a time; a second Ask
// while one is running is rejected and leaves the transcript untouched.
// Failed answers are never retried automatically.
//
// # Key Types
//
//   - Engine: the conversation state machine shared by the CLI and TUI
//   - Turn: the question and reply produced by one Ask
//   - Asker: the gateway operation the engine depends on
//
// # Usage
//
//	engine := conversation.NewEngine(client, logger)
//	turn, err := engine.Ask(ctx, "What is the travel policy?")
//	if err != nil {
//	    fmt.Println(gateway.UserMessage(err))
//	}
//	fmt.Println(turn.Reply.Content, turn.Reply.Sources)
package conversation
