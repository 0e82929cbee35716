// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jeranaias/knowhub/internal/gateway"
	"github.com/jeranaias/knowhub/internal/model"
	"github.com/jeranaias/knowhub/internal/util"
)

// FailureMessage is shown in place of a failed answer.
const FailureMessage = "Failed to get a response from the AI. Please try again."

// Asker is the gateway operation the engine depends on.
type Asker interface {
	Ask(ctx context.Context, question string) (gateway.Answer, error)
}

// Turn is the result of one ask cycle.
type Turn struct {
	Question model.Message
	Reply    model.Message
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine serializes asks against one conversation.
type Engine struct {
	mu       sync.Mutex
	conv     *model.Conversation
	inFlight bool
	cancel   context.CancelFunc

	asker  Asker
	logger *slog.Logger

	// Callbacks
	onChange func()
}

// NewEngine creates an engine with an empty conversation.
func NewEngine(asker Asker, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = util.DiscardLogger()
	}
	return &Engine{
		conv:   model.NewConversation(),
		asker:  asker,
		logger: logger.With("component", "conversation"),
	}
}

// SetChangeCallback registers fn to run after every transcript change. It
// runs outside the engine lock.
func (e *Engine) SetChangeCallback(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

func (e *Engine) notify() {
	e.mu.Lock()
	fn := e.onChange
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// =============================================================================
// ASK
// =============================================================================

// Ask sends question and records the round-trip. The returned Turn is valid
// whenever the question was appended, including when the reply failed; in
// that case err carries the failure. Validation failures return a zero Turn
// and leave the transcript untouched.
func (e *Engine) Ask(ctx context.Context, question string) (Turn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Turn{}, gateway.Validation(gateway.ReasonEmptyQuestion, "")
	}

	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return Turn{}, gateway.Validation(gateway.ReasonConversationBusy, "")
	}
	e.inFlight = true
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	conv := e.conv
	q := conv.AppendUser(question)
	pending := conv.AppendPending(q.Seq)
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		e.inFlight = false
		e.cancel = nil
		e.mu.Unlock()
		e.notify()
	}()
	e.notify()

	e.logger.Debug("ask started", "seq", pending.Seq, "question_len", len(question))
	answer, err := e.asker.Ask(ctx, question)
	if err == nil && strings.TrimSpace(answer.Answer) == "" {
		err = &gateway.Error{Kind: gateway.KindServer, Message: "The service returned an empty answer."}
	}
	if err == nil {
		err = conv.Commit(pending.Seq, answer.Answer, answer.Sources)
	} else {
		if resolveErr := conv.Fail(pending.Seq, err); resolveErr != nil {
			err = errors.Join(err, resolveErr)
		}
		e.logger.Warn("ask failed", "seq", pending.Seq, "kind", gateway.KindOf(err).String())
	}

	reply, _ := conv.Get(pending.Seq)
	if err == nil {
		e.logger.Debug("ask committed", "seq", reply.Seq, "sources", len(reply.Sources))
	}
	return Turn{Question: q, Reply: reply}, err
}

// Retry starts a new ask cycle for the question answered by the failed
// message seq. The failed message stays in the transcript.
func (e *Engine) Retry(ctx context.Context, seq uint64) (Turn, error) {
	e.mu.Lock()
	conv := e.conv
	e.mu.Unlock()

	msg, ok := conv.Get(seq)
	if !ok || !msg.IsFailed() || msg.Role != model.RoleAssistant {
		return Turn{}, gateway.Validation(gateway.ReasonNotRetryable, "")
	}
	question, ok := conv.Get(msg.AnswersSeq)
	if !ok {
		return Turn{}, fmt.Errorf("%w: question %d", model.ErrUnknownMessage, msg.AnswersSeq)
	}
	return e.Ask(ctx, question.Content)
}

// RetryLast retries the most recent failed reply.
func (e *Engine) RetryLast(ctx context.Context) (Turn, error) {
	msgs := e.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsFailed() {
			return e.Retry(ctx, msgs[i].Seq)
		}
	}
	return Turn{}, gateway.Validation(gateway.ReasonNotRetryable, "")
}

// Cancel aborts the in-flight ask, if any. The pending reply resolves to
// failed.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// =============================================================================
// READS
// =============================================================================

// Messages returns a snapshot of the transcript.
func (e *Engine) Messages() []model.Message {
	e.mu.Lock()
	conv := e.conv
	e.mu.Unlock()
	return conv.Messages()
}

// Busy reports whether an ask is in flight.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight
}

// ConversationID returns the current conversation identifier.
func (e *Engine) ConversationID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.ID
}

// Reset starts a new empty conversation, for example after logout. An
// in-flight ask is cancelled and resolves in the old conversation.
func (e *Engine) Reset() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.conv = model.NewConversation()
	e.mu.Unlock()
	e.notify()
}
