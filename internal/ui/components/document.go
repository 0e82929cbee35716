// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/knowhub/internal/registry"
	"github.com/jeranaias/knowhub/internal/ui/styles"
	"github.com/jeranaias/knowhub/internal/util"
)

// =============================================================================
// DOCUMENT ROW
// =============================================================================

// StatusBadge renders a document status with its indicator. Non-terminal
// statuses show the spinner frame when one is given.
func StatusBadge(theme *styles.Theme, status registry.Status, spinner string) string {
	switch status {
	case registry.StatusReady:
		return theme.StatusReady.Render(styles.StatusIndicators.Success + " ready")
	case registry.StatusFailed:
		return theme.StatusFailed.Render(styles.StatusIndicators.Error + " failed")
	case registry.StatusProcessing:
		return theme.StatusProcessing.Render(pendingIcon(spinner) + " processing")
	default:
		return theme.StatusUploading.Render(pendingIcon(spinner) + " uploading")
	}
}

func pendingIcon(spinner string) string {
	if s := strings.TrimSpace(spinner); s != "" {
		return "[" + s + "]"
	}
	return styles.StatusIndicators.Pending
}

// RenderDocumentRow draws one registry entry on two lines: title and badge,
// then "FORMAT • size • date".
func RenderDocumentRow(theme *styles.Theme, doc registry.Document, selected bool, width int, spinner string) string {
	badge := StatusBadge(theme, doc.Status, spinner)
	titleWidth := max(width-lipgloss.Width(badge)-6, 10)

	title := util.PadWidth(util.SingleLine(doc.Title), titleWidth)
	if selected {
		title = theme.DocTitleSelected.Render("> " + title)
	} else {
		title = theme.DocTitle.Render("  " + title)
	}

	meta := doc.Meta()
	if doc.IsLocal() {
		meta += " • not yet listed"
	}
	return title + "  " + badge + "\n" + theme.DocMeta.Render("    "+util.TruncateWidth(meta, max(width-4, 10)))
}

// RenderDocumentSummary draws "3 documents, 1 processing" with a progress
// bar of the ready share.
func RenderDocumentSummary(theme *styles.Theme, docs []registry.Document) string {
	if len(docs) == 0 {
		return theme.Muted.Render("No documents yet.")
	}
	ready, pending := 0, 0
	for _, d := range docs {
		switch {
		case d.Status == registry.StatusReady:
			ready++
		case !d.Status.IsTerminal():
			pending++
		}
	}
	text := countLabel(len(docs), "document")
	if pending > 0 {
		text += ", " + strconv.Itoa(pending) + " in progress"
	}
	bar := styles.RenderProgressBar(20, float64(ready)*100/float64(len(docs)))
	return theme.Muted.Render(text + "  [" + bar + "] " + strconv.Itoa(ready) + " ready")
}

func itoa(n int) string { return strconv.Itoa(n) }
