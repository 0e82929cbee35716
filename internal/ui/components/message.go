// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/knowhub/internal/gateway"
	"github.com/jeranaias/knowhub/internal/model"
	"github.com/jeranaias/knowhub/internal/ui/styles"
	"github.com/jeranaias/knowhub/internal/util"
)

// MessageOptions controls how a chat message is drawn.
type MessageOptions struct {
	Width       int
	ShowSources bool
	// Spinner is the current frame shown for a pending reply.
	Spinner string
	// FailureText replaces the content of a failed reply.
	FailureText string
}

// =============================================================================
// MESSAGE BUBBLE
// =============================================================================

// RenderMessage draws one transcript entry.
func RenderMessage(theme *styles.Theme, msg model.Message, opts MessageOptions) string {
	width := max(opts.Width, 30)
	contentWidth := width - 12

	header := theme.RoleLabel.Render(strings.ToLower(msg.Role.DisplayName()))
	if !msg.Timestamp.IsZero() {
		header += " " + theme.Timestamp.Render(msg.Timestamp.Format("3:04 PM"))
	}

	switch {
	case msg.Role == model.RoleUser:
		bubble := theme.UserBubble.Render(WrapText(msg.Content, contentWidth))
		return lipgloss.JoinVertical(lipgloss.Right,
			lipgloss.PlaceHorizontal(width, lipgloss.Right, header),
			lipgloss.PlaceHorizontal(width, lipgloss.Right, bubble))

	case msg.IsPending():
		thinking := theme.Spinner.Render(opts.Spinner) + " " + theme.ThinkingText.Render("Thinking...")
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.AssistantBubble.Render(thinking))

	case msg.IsFailed():
		text := opts.FailureText
		if text == "" {
			text = gateway.FallbackMessage
		}
		body := theme.ErrorStyle.Render(styles.StatusIndicators.Error+" ") + WrapText(text, contentWidth-4)
		if detail := gateway.UserMessage(msg.Err); msg.Err != nil && detail != text {
			body += "\n" + theme.Muted.Render(WrapText(detail, contentWidth))
		}
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.FailedBubble.Render(body))

	default:
		bubble := theme.AssistantBubble.Render(WrapText(msg.Content, contentWidth))
		parts := []string{header, bubble}
		if opts.ShowSources && len(msg.Sources) > 0 {
			parts = append(parts, RenderSources(theme, msg.Sources, width))
		}
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}
}

// RenderSources draws the citation list of an answer.
func RenderSources(theme *styles.Theme, sources []string, width int) string {
	lines := []string{theme.SourcesHeader.Render("Sources")}
	for i, src := range sources {
		label := util.TruncateWidth(util.SingleLine(src), max(width-10, 10))
		lines = append(lines, theme.SourceItem.Render("["+itoa(i+1)+"] "+label))
	}
	return strings.Join(lines, "\n")
}

// RenderGreeting draws the assistant greeting shown above an empty
// transcript. It is not part of the conversation.
func RenderGreeting(theme *styles.Theme, text string, width int) string {
	width = max(width, 30)
	header := theme.RoleLabel.Render(strings.ToLower(model.RoleAssistant.DisplayName()))
	return lipgloss.JoinVertical(lipgloss.Left, header,
		theme.AssistantBubble.Render(WrapText(text, width-12)))
}

// RenderTranscript draws the greeting followed by every message.
func RenderTranscript(theme *styles.Theme, greeting string, msgs []model.Message, opts MessageOptions) string {
	blocks := make([]string, 0, len(msgs)+1)
	if greeting != "" {
		blocks = append(blocks, RenderGreeting(theme, greeting, opts.Width))
	}
	for _, msg := range msgs {
		blocks = append(blocks, RenderMessage(theme, msg, opts))
	}
	return strings.Join(blocks, "\n\n")
}
