// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_RefusalIsInvalidCredentials(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 422} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			creds := &fakeCreds{token: "still-valid"}
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, status, map[string]string{"error": "Invalid credentials"})
			}, creds)

			_, err := c.Login(context.Background(), "a@b.c", "wrong")
			require.ErrorIs(t, err, ErrInvalidCredentials)
			assert.Equal(t, "Invalid credentials", UserMessage(err))
			// A refused login never tears down an existing session.
			assert.Empty(t, creds.invalidated)
		})
	}
}

func TestLogin_ThrottledIsNotInvalidCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many attempts, try again later"})
	}, nil)

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "Too many attempts, try again later", UserMessage(err))
}

func TestLogin_ServerErrorStaysServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, ErrServer)
}

func TestLogin_MissingToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"token": "  "})
	}, nil)

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, ErrServer)
}

func TestSignup_SendsEmployeeRole(t *testing.T) {
	var body map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/signup", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusCreated, map[string]string{"token": "t"})
	}, nil)

	tok, err := c.Signup(context.Background(), "new@b.c", "pw", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "t", tok)
	assert.Equal(t, map[string]string{
		"email": "new@b.c", "password": "pw", "name": "Ada", "role": "Employee",
	}, body)
}

func TestSignup_Conflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "User already exists"})
	}, nil)

	_, err := c.Signup(context.Background(), "dup@b.c", "pw", "Dup")
	require.ErrorIs(t, err, ErrConflict)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "User already exists", UserMessage(err))
}

func TestListDocuments_Decodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"documents":[
			{"doc_id":"d1","title":"Policy","created_at":"2024-05-01T10:00:00Z",
			 "metadata":{"format":"pdf","size":2048,"status":"processing"}},
			{"doc_id":"d2","title":"Notes","created_at":"2024-05-02 09:30:00",
			 "metadata":{"format":"txt","size":10}}
		]}`)
	}, &fakeCreds{token: "tok"})

	docs, err := c.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "d1", docs[0].DocID)
	assert.Equal(t, "pdf", docs[0].Metadata.Format)
	assert.Equal(t, int64(2048), docs[0].Metadata.SizeBytes())
	assert.Equal(t, "processing", docs[0].Metadata.Status)
	assert.True(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Equal(docs[0].Created()))

	assert.Equal(t, "", docs[1].Metadata.Status)
	assert.True(t, time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC).Equal(docs[1].Created()))
}

func TestListDocuments_MissingArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}, &fakeCreds{token: "tok"})

	docs, err := c.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestDocumentRecord_CreatedUnparseable(t *testing.T) {
	assert.True(t, DocumentRecord{CreatedAt: "yesterday"}.Created().IsZero())
	assert.True(t, DocumentRecord{}.Created().IsZero())
	assert.Equal(t, int64(0), DocumentMetadata{Size: -5}.SizeBytes())
}

func TestUploadDocument_MultipartFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/docs/upload", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		assert.Equal(t, "Quarterly Report", r.FormValue("docTitle"))
		assert.Equal(t, "pdf", r.FormValue("fileType"))

		f, hdr, err := r.FormFile("document")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "report.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.4", string(data))

		writeJSON(w, http.StatusOK, map[string]string{"doc_id": "srv-9", "message": "ok"})
	}, &fakeCreds{token: "tok"})

	ack, err := c.UploadDocument(context.Background(), Upload{
		Title:    "Quarterly Report",
		Filename: "report.pdf",
		Format:   "pdf",
		Content:  strings.NewReader("%PDF-1.4"),
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-9", ack.DocID)
}

func TestUploadDocument_AnySuccessBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, "accepted")
	}, &fakeCreds{token: "tok"})

	ack, err := c.UploadDocument(context.Background(), Upload{
		Title: "x", Filename: "x.txt", Format: "txt", Content: strings.NewReader("x"),
	})
	require.NoError(t, err)
	assert.Empty(t, ack.DocID)
}

func TestAsk_DecodesAnswerAndSources(t *testing.T) {
	var body map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]any{
			"answer":  "Within 30 days.",
			"sources": []string{"docs/policy.pdf#section2", "docs/policy.pdf#section3"},
		})
	}, &fakeCreds{token: "tok"})

	ans, err := c.Ask(context.Background(), "What is the refund policy?")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"queryText": "What is the refund policy?"}, body)
	assert.Equal(t, "Within 30 days.", ans.Answer)
	assert.Equal(t, []string{"docs/policy.pdf#section2", "docs/policy.pdf#section3"}, ans.Sources)
}

func TestAsk_MissingSourcesIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"answer": "yes"})
	}, &fakeCreds{token: "tok"})

	ans, err := c.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.NotNil(t, ans.Sources)
	assert.Empty(t, ans.Sources)
}

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

func TestError_IsMatchesByKindAndReason(t *testing.T) {
	busy := Validation(ReasonConversationBusy, "")
	assert.True(t, errors.Is(busy, ErrValidation))
	assert.True(t, errors.Is(busy, ErrConversationBusy))
	assert.False(t, errors.Is(Validation(ReasonEmptyQuestion, ""), ErrConversationBusy))
	assert.False(t, errors.Is(busy, ErrServer))

	wrapped := fmt.Errorf("refresh: %w", &Error{Kind: KindUnreachable, Err: context.DeadlineExceeded})
	assert.True(t, errors.Is(wrapped, ErrUnreachable))
	assert.True(t, errors.Is(wrapped, context.DeadlineExceeded))
	assert.Equal(t, KindUnreachable, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, ReasonConversationBusy, ReasonOf(busy))
}

func TestError_String(t *testing.T) {
	err := &Error{Kind: KindValidation, Status: 400, Message: "bad"}
	assert.Equal(t, "ValidationError (HTTP 400): bad", err.Error())
	assert.Equal(t, "ValidationError(fileTooLarge): This file is too large to upload.",
		Validation(ReasonFileTooLarge, "").Error())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, FallbackMessage, UserMessage(errors.New("plain")))
	assert.Equal(t, FallbackMessage, UserMessage(&Error{Kind: KindServer, Status: 500}))
	assert.Equal(t, "Please provide both a file and a title.",
		UserMessage(Validation(ReasonMissingTitleOrFile, "")))
	assert.Contains(t, UserMessage(ErrUnauthenticated), "log in")
	assert.Contains(t, UserMessage(&Error{Kind: KindUnreachable}), "reach")
	assert.Equal(t, "Invalid email or password.", UserMessage(&Error{Kind: KindInvalidCredentials}))
}
