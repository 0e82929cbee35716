// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// =============================================================================
// SPINNER ANIMATIONS
// =============================================================================

// LineSpinner - Simple line rotation, used while a request is in flight
var LineSpinner = SpinnerConfig{
	Frames: []string{"|", "/", "-", "\\"},
	FPS:    10,
}

// DotsSpinner - Classic three-dot animation, used for "Thinking"
var DotsSpinner = SpinnerConfig{
	Frames: []string{".  ", ".. ", "...", " ..", "  .", "   "},
	FPS:    6,
}

// SpinnerConfig holds the configuration for a spinner animation.
type SpinnerConfig struct {
	Frames []string
	FPS    int
}

// Duration returns the duration for each frame.
func (s SpinnerConfig) Duration() time.Duration {
	if s.FPS <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(s.FPS)
}

// Bubble converts the config to a bubbles spinner.
func (s SpinnerConfig) Bubble() spinner.Spinner {
	return spinner.Spinner{Frames: s.Frames, FPS: s.Duration()}
}

// =============================================================================
// PROGRESS INDICATORS
// =============================================================================

// Progress bar characters. ASCII-only.
var (
	ProgressFull  = "#"
	ProgressEmpty = "-"
)

// RenderProgressBar renders a bar width characters wide, percent in 0-100.
func RenderProgressBar(width int, percent float64) string {
	if width <= 0 {
		return ""
	}
	percent = min(max(percent, 0), 100)
	filled := int(float64(width) * percent / 100)

	var sb strings.Builder
	sb.Grow(width)
	sb.WriteString(strings.Repeat(ProgressFull, filled))
	sb.WriteString(strings.Repeat(ProgressEmpty, width-filled))
	return sb.String()
}
