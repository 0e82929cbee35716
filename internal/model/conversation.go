// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Errors returned when a resolution does not apply.
var (
	// ErrUnknownMessage indicates no message has the given sequence number.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrNotPending indicates the message was already resolved.
	ErrNotPending = errors.New("message is not pending")
	// ErrEmptyContent indicates an attempt to commit an empty message.
	ErrEmptyContent = errors.New("committed message must have content")
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is an append-only transcript. It is safe for concurrent use.
type Conversation struct {
	ID        string
	CreatedAt time.Time

	mu       sync.RWMutex
	messages []*Message
	index    map[uint64]*Message
	lastSeq  uint64
	now      func() time.Time
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		messages:  make([]*Message, 0),
		index:     make(map[uint64]*Message),
		now:       time.Now,
	}
}

// =============================================================================
// APPEND
// =============================================================================

// nextSeq assigns the next sequence number. Caller holds c.mu.
func (c *Conversation) nextSeq() uint64 {
	c.lastSeq++
	return c.lastSeq
}

func (c *Conversation) appendLocked(msg *Message) Message {
	msg.Seq = c.nextSeq()
	msg.Timestamp = c.now()
	c.messages = append(c.messages, msg)
	c.index[msg.Seq] = msg
	return msg.clone()
}

// AppendUser appends a committed user message.
func (c *Conversation) AppendUser(content string) Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendLocked(&Message{
		Role:    RoleUser,
		Content: content,
		Sources: []string{},
		State:   StateCommitted,
	})
}

// AppendPending appends a pending assistant message answering answersSeq.
func (c *Conversation) AppendPending(answersSeq uint64) Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendLocked(&Message{
		Role:       RoleAssistant,
		Sources:    []string{},
		State:      StatePending,
		AnswersSeq: answersSeq,
	})
}

// =============================================================================
// RESOLUTION
// =============================================================================

// pendingLocked finds a still-pending message. Caller holds c.mu.
func (c *Conversation) pendingLocked(seq uint64) (*Message, error) {
	msg, ok := c.index[seq]
	if !ok {
		return nil, fmt.Errorf("%w: seq %d", ErrUnknownMessage, seq)
	}
	if msg.State != StatePending {
		return nil, fmt.Errorf("%w: seq %d is %s", ErrNotPending, seq, msg.State)
	}
	return msg, nil
}

// Commit resolves pending message seq with its content and sources.
func (c *Conversation) Commit(seq uint64, content string, sources []string) error {
	if content == "" {
		return ErrEmptyContent
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	msg, err := c.pendingLocked(seq)
	if err != nil {
		return err
	}
	msg.Content = content
	msg.Sources = append([]string{}, sources...)
	msg.State = StateCommitted
	return nil
}

// Fail resolves pending message seq as failed. Content stays empty.
func (c *Conversation) Fail(seq uint64, cause error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg, err := c.pendingLocked(seq)
	if err != nil {
		return err
	}
	msg.State = StateFailed
	msg.Err = cause
	return nil
}

// =============================================================================
// READS
// =============================================================================

// Messages returns a snapshot of the transcript in sequence order.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	for i, msg := range c.messages {
		out[i] = msg.clone()
	}
	return out
}

// Get returns the message with sequence number seq.
func (c *Conversation) Get(seq uint64) (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msg, ok := c.index[seq]
	if !ok {
		return Message{}, false
	}
	return msg.clone(), true
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

