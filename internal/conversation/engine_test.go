// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/knowhub/internal/gateway"
	"github.com/jeranaias/knowhub/internal/model"
)

// scriptedAsker returns queued results in order. A nil release channel
// answers immediately.
type scriptedAsker struct {
	mu        sync.Mutex
	answers   []gateway.Answer
	errs      []error
	questions []string
	calls     atomic.Int32

	started chan struct{}
	release chan struct{}
}

func (s *scriptedAsker) Ask(ctx context.Context, question string) (gateway.Answer, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.questions = append(s.questions, question)
	i := len(s.questions) - 1
	s.mu.Unlock()

	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return gateway.Answer{}, &gateway.Error{Kind: gateway.KindUnreachable, Err: ctx.Err()}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i < len(s.errs) && s.errs[i] != nil {
		return gateway.Answer{}, s.errs[i]
	}
	if i < len(s.answers) {
		return s.answers[i], nil
	}
	return gateway.Answer{Answer: "ok"}, nil
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_CommitsAnswerWithSources(t *testing.T) {
	asker := &scriptedAsker{answers: []gateway.Answer{
		{Answer: "Thirty days.", Sources: []string{"refunds.pdf", "faq.md"}},
	}}
	engine := NewEngine(asker, nil)

	turn, err := engine.Ask(context.Background(), "  What is the refund window?  ")
	require.NoError(t, err)

	assert.Equal(t, "What is the refund window?", turn.Question.Content)
	assert.True(t, turn.Question.IsCommitted())
	assert.Equal(t, model.RoleAssistant, turn.Reply.Role)
	assert.True(t, turn.Reply.IsCommitted())
	assert.Equal(t, "Thirty days.", turn.Reply.Content)
	assert.Equal(t, []string{"refunds.pdf", "faq.md"}, turn.Reply.Sources)
	assert.Equal(t, turn.Question.Seq, turn.Reply.AnswersSeq)
	assert.Equal(t, []string{"What is the refund window?"}, asker.questions)
	assert.False(t, engine.Busy())
}

func TestAsk_MissingSourcesCommitAsEmpty(t *testing.T) {
	engine := NewEngine(&scriptedAsker{answers: []gateway.Answer{{Answer: "Hello"}}}, nil)

	turn, err := engine.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.NotNil(t, turn.Reply.Sources)
	assert.Empty(t, turn.Reply.Sources)
}

func TestAsk_RejectsEmptyQuestion(t *testing.T) {
	asker := &scriptedAsker{}
	engine := NewEngine(asker, nil)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := engine.Ask(context.Background(), q)
		assert.ErrorIs(t, err, gateway.ErrValidation)
		assert.Equal(t, gateway.ReasonEmptyQuestion, gateway.ReasonOf(err))
	}
	assert.Empty(t, engine.Messages())
	assert.Equal(t, int32(0), asker.calls.Load())
}

// Scenario: a question sent while the service is down leaves the question
// committed and the reply failed with no content.
func TestAsk_FailureKeepsQuestionAndFailsReply(t *testing.T) {
	unreachable := &gateway.Error{Kind: gateway.KindUnreachable, Err: errors.New("dial tcp: connection refused")}
	asker := &scriptedAsker{
		answers: []gateway.Answer{{Answer: "first answer", Sources: []string{"a.pdf"}}},
		errs:    []error{nil, unreachable},
	}
	engine := NewEngine(asker, nil)
	ctx := context.Background()

	_, err := engine.Ask(ctx, "first")
	require.NoError(t, err)
	before := engine.Messages()

	turn, err := engine.Ask(ctx, "second")
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrUnreachable)
	assert.True(t, turn.Question.IsCommitted())
	assert.True(t, turn.Reply.IsFailed())
	assert.Empty(t, turn.Reply.Content)
	assert.ErrorIs(t, turn.Reply.Err, gateway.ErrUnreachable)

	after := engine.Messages()
	require.Len(t, after, 4)
	assert.Equal(t, before, after[:2], "earlier committed messages must not change")
	assert.Equal(t, "second", after[2].Content)
	assert.True(t, after[2].IsCommitted())
}

func TestAsk_EmptyAnswerFails(t *testing.T) {
	engine := NewEngine(&scriptedAsker{answers: []gateway.Answer{{Answer: "  "}}}, nil)

	turn, err := engine.Ask(context.Background(), "hello?")
	assert.ErrorIs(t, err, gateway.ErrServer)
	assert.True(t, turn.Reply.IsFailed())
	assert.Empty(t, turn.Reply.Content)
}

func TestAsk_SequenceNumbersIncrease(t *testing.T) {
	engine := NewEngine(&scriptedAsker{errs: []error{nil, errors.New("boom"), nil}}, nil)
	ctx := context.Background()
	for _, q := range []string{"a", "b", "c"} {
		_, _ = engine.Ask(ctx, q)
	}

	msgs := engine.Messages()
	require.Len(t, msgs, 6)
	for i, msg := range msgs {
		assert.Equal(t, uint64(i+1), msg.Seq)
	}
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestAsk_BusyRejectsWithoutTouchingTranscript(t *testing.T) {
	asker := &scriptedAsker{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	engine := NewEngine(asker, nil)

	done := make(chan error, 1)
	go func() {
		_, err := engine.Ask(context.Background(), "slow question")
		done <- err
	}()
	<-asker.started
	assert.True(t, engine.Busy())
	snapshot := engine.Messages()

	_, err := engine.Ask(context.Background(), "impatient question")
	assert.ErrorIs(t, err, gateway.ErrValidation)
	assert.ErrorIs(t, err, gateway.ErrConversationBusy)
	assert.Equal(t, snapshot, engine.Messages())

	close(asker.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), asker.calls.Load())
	assert.False(t, engine.Busy())
}

func TestAsk_ConcurrentCallersNeverInterleave(t *testing.T) {
	engine := NewEngine(&scriptedAsker{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = engine.Ask(context.Background(), "q")
		}()
	}
	wg.Wait()

	msgs := engine.Messages()
	require.Zero(t, len(msgs)%2)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, model.RoleUser, msgs[i].Role)
		assert.Equal(t, model.RoleAssistant, msgs[i+1].Role)
		assert.Equal(t, msgs[i].Seq, msgs[i+1].AnswersSeq)
		assert.False(t, msgs[i+1].IsPending())
	}
}

func TestCancel_ResolvesPendingAsFailed(t *testing.T) {
	asker := &scriptedAsker{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	engine := NewEngine(asker, nil)

	done := make(chan Turn, 1)
	go func() {
		turn, _ := engine.Ask(context.Background(), "never answered")
		done <- turn
	}()
	<-asker.started
	engine.Cancel()

	select {
	case turn := <-done:
		assert.True(t, turn.Reply.IsFailed())
	case <-time.After(time.Second):
		t.Fatal("cancelled ask did not resolve")
	}
	assert.False(t, engine.Busy())
}

func TestAsk_CancelledContextFails(t *testing.T) {
	asker := &scriptedAsker{release: make(chan struct{})}
	engine := NewEngine(asker, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	turn, err := engine.Ask(ctx, "too late")
	require.Error(t, err)
	assert.True(t, turn.Reply.IsFailed())
	assert.Equal(t, 0, countPending(engine.Messages()))
}

// =============================================================================
// RETRY
// =============================================================================

func TestRetry_AppendsNewCycle(t *testing.T) {
	asker := &scriptedAsker{
		errs:    []error{&gateway.Error{Kind: gateway.KindServer, Status: 502}},
		answers: []gateway.Answer{{}, {Answer: "Now it works."}},
	}
	engine := NewEngine(asker, nil)
	ctx := context.Background()

	failed, err := engine.Ask(ctx, "flaky?")
	require.Error(t, err)

	turn, err := engine.Retry(ctx, failed.Reply.Seq)
	require.NoError(t, err)
	assert.Equal(t, "flaky?", turn.Question.Content)
	assert.Equal(t, "Now it works.", turn.Reply.Content)

	msgs := engine.Messages()
	require.Len(t, msgs, 4)
	assert.True(t, msgs[1].IsFailed(), "the failed reply stays in the transcript")
	assert.Equal(t, []string{"flaky?", "flaky?"}, asker.questions)
}

func TestRetry_OnlyFailedReplies(t *testing.T) {
	engine := NewEngine(&scriptedAsker{}, nil)
	ctx := context.Background()
	turn, err := engine.Ask(ctx, "fine")
	require.NoError(t, err)

	for _, seq := range []uint64{turn.Question.Seq, turn.Reply.Seq, 99} {
		_, err := engine.Retry(ctx, seq)
		assert.Equal(t, gateway.ReasonNotRetryable, gateway.ReasonOf(err), "seq %d", seq)
	}
	_, err = engine.RetryLast(ctx)
	assert.Equal(t, gateway.ReasonNotRetryable, gateway.ReasonOf(err))
}

func TestRetryLast(t *testing.T) {
	asker := &scriptedAsker{errs: []error{nil, errors.New("down")}}
	engine := NewEngine(asker, nil)
	ctx := context.Background()
	_, _ = engine.Ask(ctx, "one")
	_, _ = engine.Ask(ctx, "two")

	turn, err := engine.RetryLast(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", turn.Question.Content)
}

// =============================================================================
// NOTIFICATIONS / RESET
// =============================================================================

func TestChangeCallback(t *testing.T) {
	engine := NewEngine(&scriptedAsker{}, nil)
	var calls atomic.Int32
	engine.SetChangeCallback(func() {
		// Reading from the callback must not deadlock.
		_ = engine.Messages()
		calls.Add(1)
	})

	_, err := engine.Ask(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestReset(t *testing.T) {
	engine := NewEngine(&scriptedAsker{}, nil)
	_, err := engine.Ask(context.Background(), "hello")
	require.NoError(t, err)
	id := engine.ConversationID()

	engine.Reset()
	assert.Empty(t, engine.Messages())
	assert.NotEqual(t, id, engine.ConversationID())
}

func countPending(msgs []model.Message) int {
	n := 0
	for _, m := range msgs {
		if m.IsPending() {
			n++
		}
	}
	return n
}
