// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/knowhub/internal/conversation"
	"github.com/jeranaias/knowhub/internal/gateway"
	"github.com/jeranaias/knowhub/internal/model"
	"github.com/jeranaias/knowhub/internal/ui/components"
)

// inputAreaHeight is the separator line plus the input line.
const inputAreaHeight = 2

type chatView struct {
	viewport viewport.Model
	input    textinput.Model
}

func newChatView() chatView {
	input := textinput.New()
	input.Placeholder = "Ask a question about your documents..."
	input.Prompt = "> "
	input.CharLimit = 4000

	return chatView{
		viewport: viewport.New(80, 20),
		input:    input,
	}
}

// =============================================================================
// UPDATE
// =============================================================================

func (m *Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := &m.chat
	switch {
	case key.Matches(msg, m.keys.Send):
		return m, m.submitQuestion()
	case key.Matches(msg, m.keys.Cancel):
		if m.engine.Busy() {
			m.engine.Cancel()
			m.toasts.AddStatus("Request cancelled.")
		}
		return m, nil
	case key.Matches(msg, m.keys.Retry):
		return m, m.retryCmd()
	case key.Matches(msg, m.keys.PageUp):
		c.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		c.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return m, cmd
}

// submitQuestion sends the input. The text stays in the input when the
// engine is busy so nothing typed is lost.
func (m *Model) submitQuestion() tea.Cmd {
	question := strings.TrimSpace(m.chat.input.Value())
	if question == "" {
		return nil
	}
	if m.engine.Busy() {
		m.toasts.Add(components.ToastKindWarning, "Please wait for the current answer.")
		return nil
	}
	m.chat.input.Reset()

	engine := m.engine
	ctx := m.scope.context()
	return func() tea.Msg {
		turn, err := engine.Ask(ctx, question)
		return askResultMsg{turn: turn, err: err}
	}
}

func (m *Model) retryCmd() tea.Cmd {
	if m.engine.Busy() {
		return nil
	}
	engine := m.engine
	ctx := m.scope.context()
	return func() tea.Msg {
		turn, err := engine.RetryLast(ctx)
		return askResultMsg{turn: turn, err: err}
	}
}

func (m *Model) handleAskResult(msg askResultMsg) (tea.Model, tea.Cmd) {
	m.syncTranscript()
	if msg.err == nil {
		return m, nil
	}
	if cmd, ended := m.routeUnauthenticated(msg.err); ended {
		return m, cmd
	}

	switch gateway.ReasonOf(msg.err) {
	case gateway.ReasonConversationBusy:
		m.toasts.Add(components.ToastKindWarning, "Please wait for the current answer.")
	case gateway.ReasonNotRetryable:
		m.toasts.AddStatus("Nothing to retry.")
	default:
		// A failed reply is already drawn in the transcript.
		if msg.turn.Reply.Seq == 0 {
			m.toasts.AddError(errorText(msg.err))
		}
	}
	return m, nil
}

// =============================================================================
// VIEW
// =============================================================================

// syncTranscript re-renders the transcript into the viewport, following
// the bottom when the user had not scrolled away.
func (m *Model) syncTranscript() {
	c := &m.chat
	atBottom := c.viewport.AtBottom()
	opts := components.MessageOptions{
		Width:       c.viewport.Width,
		ShowSources: m.cfg.UI.ShowSources,
		Spinner:     m.spinner.View(),
		FailureText: conversation.FailureMessage,
	}
	c.viewport.SetContent(components.RenderTranscript(m.theme, m.cfg.Chat.Greeting, m.engine.Messages(), opts))
	if atBottom {
		c.viewport.GotoBottom()
	}
}

func (m *Model) resizeChat(width, height int) {
	c := &m.chat
	c.viewport.Width = max(width, 10)
	c.viewport.Height = max(height-inputAreaHeight, 1)
	c.input.Width = max(width-4, 10)
	m.syncTranscript()
}

func (m *Model) viewChat(width int) string {
	input := m.theme.InputContainer.Width(width).Render(m.chat.input.View())
	return lipgloss.JoinVertical(lipgloss.Left, m.chat.viewport.View(), input)
}

// pendingQuestion returns the question whose answer is still in flight.
func pendingQuestion(msgs []model.Message) (model.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if !msgs[i].IsPending() {
			continue
		}
		for _, q := range msgs[:i] {
			if q.Seq == msgs[i].AnswersSeq {
				return q, true
			}
		}
	}
	return model.Message{}, false
}
