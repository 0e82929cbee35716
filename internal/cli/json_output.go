// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for scripting.
//
// Every command honours --json and writes exactly one JSONResponse to
// stdout. Human-readable notes go to stderr in JSON mode.

package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/knowhub/internal/gateway"
	"github.com/jeranaias/knowhub/internal/registry"
)

// JSONResponse is the standardized response format for all commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// ErrorKind is the gateway error kind, when the failure has one
	ErrorKind string `json:"error_kind,omitempty"`

	// ExitCode mirrors the process exit code on failure
	ExitCode int `json:"exit_code,omitempty"`

	// Timestamp is the RFC3339 time when the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Error:     nil,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := errorMessage(err)
	resp := &JSONResponse{
		Success:   false,
		Data:      nil,
		Error:     &errStr,
		ExitCode:  ExitCode(err),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
	if kind := gateway.KindOf(err); kind != gateway.KindUnknown {
		resp.ErrorKind = kind.String()
	}
	return resp
}

// Print writes the JSON response to w.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// PAYLOADS
// =============================================================================

// VersionData is the payload of `knowhub version --json`.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// UserData describes the signed-in user.
type UserData struct {
	Name      string     `json:"name,omitempty"`
	Email     string     `json:"email,omitempty"`
	Subject   string     `json:"subject,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// DocumentData is one registry entry.
type DocumentData struct {
	ID        string     `json:"id"`
	DocID     string     `json:"doc_id,omitempty"`
	Title     string     `json:"title"`
	Format    string     `json:"format"`
	SizeBytes int64      `json:"size_bytes"`
	Status    string     `json:"status"`
	Local     bool       `json:"local"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func documentData(d registry.Document) DocumentData {
	data := DocumentData{
		ID:        d.ID(),
		DocID:     d.DocID,
		Title:     d.Title,
		Format:    d.Format,
		SizeBytes: d.SizeBytes,
		Status:    d.Status.String(),
		Local:     d.IsLocal(),
	}
	if !d.CreatedAt.IsZero() {
		created := d.CreatedAt
		data.CreatedAt = &created
	}
	return data
}

func documentsData(docs []registry.Document) []DocumentData {
	out := make([]DocumentData, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentData(d))
	}
	return out
}

// AnswerData is the payload of `knowhub ask --json`.
type AnswerData struct {
	Question       string   `json:"question"`
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources"`
	ConversationID string   `json:"conversation_id"`
}
