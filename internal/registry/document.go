// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/knowhub/internal/util"
)

// =============================================================================
// DOCUMENT STATUS
// =============================================================================

// Status represents where a document is in the ingestion pipeline.
type Status string

const (
	// StatusUploading is the optimistic state of an accepted submission
	StatusUploading Status = "uploading"

	// StatusProcessing indicates the server is parsing and indexing
	StatusProcessing Status = "processing"

	// StatusReady indicates the document can be cited in answers
	StatusReady Status = "ready"

	// StatusFailed indicates ingestion failed on the server
	StatusFailed Status = "failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusReady || s == StatusFailed
}

// isValidTransition checks a status transition. Setting the same status is
// allowed; terminal states accept nothing else.
func isValidTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusUploading:
		return to == StatusProcessing || to == StatusReady || to == StatusFailed
	case StatusProcessing:
		return to == StatusReady || to == StatusFailed
	case StatusReady, StatusFailed:
		return false
	default:
		return false
	}
}

// ParseStatus maps a listing status to a Status. A record without a status
// is ready; unrecognised values are treated the same way.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "uploading":
		return StatusUploading
	case "processing", "pending", "queued", "indexing", "in_progress":
		return StatusProcessing
	case "failed", "error":
		return StatusFailed
	default:
		return StatusReady
	}
}

// =============================================================================
// DOCUMENT
// =============================================================================

// Origin tags a registry entry.
type Origin int

const (
	// OriginLocal is an optimistic entry not yet reported by a listing.
	OriginLocal Origin = iota
	// OriginConfirmed is an entry reported by the latest listing.
	OriginConfirmed
)

// String returns the origin name.
func (o Origin) String() string {
	if o == OriginConfirmed {
		return "confirmed"
	}
	return "local"
}

// Document is a registry entry. Values returned by the Registry are copies.
type Document struct {
	// DocID is the server identifier; empty for Local entries whose upload
	// acknowledgement did not carry one.
	DocID string
	// LocalID is the client-side handle of a submission. It survives
	// confirmation so a handle can still be looked up.
	LocalID string

	Title     string
	CreatedAt time.Time
	Format    string
	SizeBytes int64
	Status    Status
	Origin    Origin
}

// ID returns the identifier used to address the entry.
func (d Document) ID() string {
	if d.DocID != "" {
		return d.DocID
	}
	return d.LocalID
}

// IsLocal reports whether the entry has not been confirmed by a listing.
func (d Document) IsLocal() bool {
	return d.Origin == OriginLocal
}

// FormatLabel returns the upper-cased format, e.g. "PDF".
func (d Document) FormatLabel() string {
	if d.Format == "" {
		return "?"
	}
	return strings.ToUpper(d.Format)
}

// Meta returns "FORMAT • 12.34 KB • Jan 2, 2006".
func (d Document) Meta() string {
	parts := []string{d.FormatLabel(), util.FormatKB(d.SizeBytes)}
	if !d.CreatedAt.IsZero() {
		parts = append(parts, d.CreatedAt.Local().Format("Jan 2, 2006"))
	}
	return strings.Join(parts, " • ")
}

// =============================================================================
// IDENTITY HELPERS
// =============================================================================

// FormatFromFilename derives the declared format from a file extension.
func FormatFromFilename(name string) string {
	ext := filepath.Ext(strings.TrimSpace(name))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// correlationKey normalizes a title and format for matching an upload to a
// listed document: Unicode NFC, case-folded, trimmed.
func correlationKey(title, format string) string {
	t := norm.NFC.String(strings.TrimSpace(title))
	t = cases.Fold().String(t)
	return t + "\x00" + strings.ToLower(strings.TrimSpace(format))
}
