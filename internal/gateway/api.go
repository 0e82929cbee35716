// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// Endpoint paths relative to the base URL.
const (
	PathLogin     = "/auth/login"
	PathSignup    = "/auth/signup"
	PathListDocs  = "/docs/list"
	PathUploadDoc = "/docs/upload"
	PathAsk       = "/chat/ask"
)

// SignupRole is sent with every signup.
const SignupRole = "Employee"

// =============================================================================
// WIRE TYPES
// =============================================================================

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// DocumentRecord is one entry of the document listing.
type DocumentRecord struct {
	DocID     string           `json:"doc_id"`
	Title     string           `json:"title"`
	CreatedAt string           `json:"created_at"`
	Metadata  DocumentMetadata `json:"metadata"`
}

// DocumentMetadata carries pass-through attributes of a document.
type DocumentMetadata struct {
	Format string  `json:"format"`
	Size   float64 `json:"size"`
	Status string  `json:"status,omitempty"`
}

// SizeBytes returns the reported size as a non-negative byte count.
func (m DocumentMetadata) SizeBytes() int64 {
	if m.Size <= 0 || math.IsNaN(m.Size) {
		return 0
	}
	return int64(m.Size)
}

// createdLayouts are the timestamp shapes seen from the service.
var createdLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Created parses CreatedAt, returning the zero time when it is unparseable.
func (r DocumentRecord) Created() time.Time {
	s := strings.TrimSpace(r.CreatedAt)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range createdLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type listDocumentsResponse struct {
	Documents []DocumentRecord `json:"documents"`
}

// Upload is a document submission.
type Upload struct {
	Title    string
	Filename string
	Format   string
	Content  io.Reader
}

// UploadAck is the service's acceptance of an upload. DocID is empty when
// the service did not return one.
type UploadAck struct {
	DocID   string `json:"doc_id"`
	Message string `json:"message"`
}

type askRequest struct {
	QueryText string `json:"queryText"`
}

// Answer is the assistant reply to a question.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Login exchanges an email and password for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	resp, err := c.Call(ctx, Request{
		Method: http.MethodPost,
		Path:   PathLogin,
		JSON:   loginRequest{Email: email, Password: password},
		Public: true,
	})
	if err != nil {
		// A refusal of the login form is a credentials problem. Throttling
		// (429) and other 4xx keep their own kind.
		if gerr, ok := err.(*Error); ok && gerr.Kind == KindValidation && refusesCredentials(gerr.Status) {
			gerr.Kind = KindInvalidCredentials
		}
		return "", err
	}
	return decodeToken(resp)
}

// refusesCredentials reports whether a login response status means the
// email or password was rejected.
func refusesCredentials(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// Signup registers a new account and returns its bearer token.
func (c *Client) Signup(ctx context.Context, email, password, name string) (string, error) {
	resp, err := c.Call(ctx, Request{
		Method: http.MethodPost,
		Path:   PathSignup,
		JSON:   signupRequest{Email: email, Password: password, Name: name, Role: SignupRole},
		Public: true,
	})
	if err != nil {
		if gerr, ok := err.(*Error); ok && gerr.Kind == KindInvalidCredentials {
			gerr.Kind = KindValidation
		}
		return "", err
	}
	return decodeToken(resp)
}

func decodeToken(resp *Response) (string, error) {
	var tr tokenResponse
	if err := resp.Decode(&tr); err != nil {
		return "", err
	}
	token := strings.TrimSpace(tr.Token)
	if token == "" {
		return "", &Error{Kind: KindServer, Status: resp.Status, Message: "server did not return a token"}
	}
	return token, nil
}

// ListDocuments returns the server's document listing in server order.
func (c *Client) ListDocuments(ctx context.Context) ([]DocumentRecord, error) {
	resp, err := c.Call(ctx, Request{Method: http.MethodGet, Path: PathListDocs})
	if err != nil {
		return nil, err
	}
	var lr listDocumentsResponse
	if err := resp.Decode(&lr); err != nil {
		return nil, err
	}
	if lr.Documents == nil {
		lr.Documents = []DocumentRecord{}
	}
	return lr.Documents, nil
}

// UploadDocument submits a document as multipart form data with the
// fields document, docTitle and fileType.
func (c *Client) UploadDocument(ctx context.Context, up Upload) (UploadAck, error) {
	resp, err := c.Call(ctx, Request{
		Method: http.MethodPost,
		Path:   PathUploadDoc,
		Form: &Form{
			FileField: "document",
			FileName:  up.Filename,
			File:      up.Content,
			Fields: []FormField{
				{Name: "docTitle", Value: up.Title},
				{Name: "fileType", Value: up.Format},
			},
		},
	})
	if err != nil {
		return UploadAck{}, err
	}

	// Any 2xx is acceptance; the body is optional.
	var ack UploadAck
	_ = json.Unmarshal(resp.Body, &ack)
	ack.DocID = strings.TrimSpace(ack.DocID)
	return ack, nil
}

// Ask sends a question and returns the answer with its citations.
func (c *Client) Ask(ctx context.Context, question string) (Answer, error) {
	resp, err := c.Call(ctx, Request{
		Method: http.MethodPost,
		Path:   PathAsk,
		JSON:   askRequest{QueryText: question},
	})
	if err != nil {
		return Answer{}, err
	}
	var ans Answer
	if err := resp.Decode(&ans); err != nil {
		return Answer{}, err
	}
	if ans.Sources == nil {
		ans.Sources = []string{}
	}
	return ans, nil
}
