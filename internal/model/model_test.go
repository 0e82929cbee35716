// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"sync"
	"testing"
)

// =============================================================================
// ROLE / STATE TESTS
// =============================================================================

func TestRole_DisplayName(t *testing.T) {
	if RoleUser.DisplayName() != "You" {
		t.Errorf("RoleUser.DisplayName() = %q", RoleUser.DisplayName())
	}
	if RoleAssistant.DisplayName() != "Assistant" {
		t.Errorf("RoleAssistant.DisplayName() = %q", RoleAssistant.DisplayName())
	}
	if Role("other").DisplayName() != "other" {
		t.Errorf("unknown role should display as-is")
	}
}

func TestDeliveryState_String(t *testing.T) {
	for state, want := range map[DeliveryState]string{
		StatePending:      "pending",
		StateCommitted:    "committed",
		StateFailed:       "failed",
		DeliveryState(42): "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}

func TestMessage_Preview(t *testing.T) {
	msg := Message{Content: "What is\nthe   refund policy?"}
	if got := msg.Preview(0); got != "What is the refund policy?" {
		t.Errorf("Preview(0) = %q", got)
	}
	if got := msg.Preview(10); got != "What is..." {
		t.Errorf("Preview(10) = %q", got)
	}
	if got := (Message{Content: "héllo wörld"}).Preview(5); got != "hé..." {
		t.Errorf("Preview should be rune-safe, got %q", got)
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_SequenceNumbers(t *testing.T) {
	conv := NewConversation()
	if conv.Len() != 0 {
		t.Fatal("new conversation should be empty")
	}

	q := conv.AppendUser("hi")
	a := conv.AppendPending(q.Seq)
	q2 := conv.AppendUser("again")

	if q.Seq != 1 || a.Seq != 2 || q2.Seq != 3 {
		t.Errorf("seqs = %d,%d,%d, want 1,2,3", q.Seq, a.Seq, q2.Seq)
	}
	if a.AnswersSeq != q.Seq {
		t.Errorf("AnswersSeq = %d, want %d", a.AnswersSeq, q.Seq)
	}
	if !q.IsCommitted() || !a.IsPending() {
		t.Errorf("states = %s,%s", q.State, a.State)
	}
	if conv.Len() != 3 {
		t.Errorf("Len = %d, want 3", conv.Len())
	}
}

func TestConversation_SequenceNumbersUnderConcurrency(t *testing.T) {
	conv := NewConversation()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := conv.AppendUser("q")
			conv.AppendPending(q.Seq)
		}()
	}
	wg.Wait()

	msgs := conv.Messages()
	if len(msgs) != 100 {
		t.Fatalf("len = %d, want 100", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Seq <= msgs[i-1].Seq {
			t.Fatalf("seq not strictly increasing at %d: %d <= %d", i, msgs[i].Seq, msgs[i-1].Seq)
		}
	}
}

func TestConversation_CommitBySeq(t *testing.T) {
	conv := NewConversation()
	q1 := conv.AppendUser("one")
	a1 := conv.AppendPending(q1.Seq)
	q2 := conv.AppendUser("two")
	a2 := conv.AppendPending(q2.Seq)

	// Resolve out of order.
	if err := conv.Commit(a2.Seq, "answer two", nil); err != nil {
		t.Fatalf("Commit(a2) error = %v", err)
	}
	if err := conv.Commit(a1.Seq, "answer one", []string{"s1"}); err != nil {
		t.Fatalf("Commit(a1) error = %v", err)
	}

	got1, _ := conv.Get(a1.Seq)
	got2, _ := conv.Get(a2.Seq)
	if got1.Content != "answer one" || got2.Content != "answer two" {
		t.Errorf("contents = %q, %q", got1.Content, got2.Content)
	}
	if len(got1.Sources) != 1 || got1.Sources[0] != "s1" {
		t.Errorf("sources = %v", got1.Sources)
	}
	if got2.Sources == nil || len(got2.Sources) != 0 {
		t.Errorf("nil sources should commit as empty, got %v", got2.Sources)
	}
}

func TestConversation_ResolveOnlyOnce(t *testing.T) {
	conv := NewConversation()
	q := conv.AppendUser("q")
	a := conv.AppendPending(q.Seq)

	if err := conv.Commit(a.Seq, "done", nil); err != nil {
		t.Fatal(err)
	}
	if err := conv.Commit(a.Seq, "again", nil); !errors.Is(err, ErrNotPending) {
		t.Errorf("second Commit error = %v, want ErrNotPending", err)
	}
	if err := conv.Fail(a.Seq, errors.New("late")); !errors.Is(err, ErrNotPending) {
		t.Errorf("Fail after Commit error = %v, want ErrNotPending", err)
	}
	if err := conv.Commit(q.Seq, "edit user", nil); !errors.Is(err, ErrNotPending) {
		t.Errorf("committed user message must not be editable, got %v", err)
	}
	if err := conv.Commit(99, "x", nil); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("Commit(99) error = %v, want ErrUnknownMessage", err)
	}

	got, _ := conv.Get(a.Seq)
	if got.Content != "done" {
		t.Errorf("content = %q, want done", got.Content)
	}
}

func TestConversation_CommitRejectsEmpty(t *testing.T) {
	conv := NewConversation()
	a := conv.AppendPending(conv.AppendUser("q").Seq)
	if err := conv.Commit(a.Seq, "", nil); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("error = %v, want ErrEmptyContent", err)
	}
	got, _ := conv.Get(a.Seq)
	if !got.IsPending() {
		t.Errorf("state = %s, want pending", got.State)
	}
}

func TestConversation_FailKeepsContentEmpty(t *testing.T) {
	conv := NewConversation()
	q := conv.AppendUser("q")
	a := conv.AppendPending(q.Seq)
	cause := errors.New("unreachable")

	if err := conv.Fail(a.Seq, cause); err != nil {
		t.Fatal(err)
	}
	got, _ := conv.Get(a.Seq)
	if !got.IsFailed() || got.Content != "" || !errors.Is(got.Err, cause) {
		t.Errorf("failed message = %+v", got)
	}
	user, _ := conv.Get(q.Seq)
	if !user.IsCommitted() || user.Content != "q" {
		t.Errorf("user message changed: %+v", user)
	}
	for _, msg := range conv.Messages() {
		if msg.IsPending() {
			t.Errorf("message %d still pending", msg.Seq)
		}
	}
}

func TestConversation_SnapshotsAreCopies(t *testing.T) {
	conv := NewConversation()
	a := conv.AppendPending(conv.AppendUser("q").Seq)
	_ = conv.Commit(a.Seq, "answer", []string{"src"})

	snap := conv.Messages()
	snap[1].Content = "tampered"
	snap[1].Sources[0] = "tampered"

	got, _ := conv.Get(a.Seq)
	if got.Content != "answer" || got.Sources[0] != "src" {
		t.Errorf("snapshot mutation leaked into transcript: %+v", got)
	}
}
