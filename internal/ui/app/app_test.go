// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/knowhub/internal/config"
	"github.com/jeranaias/knowhub/internal/conversation"
	"github.com/jeranaias/knowhub/internal/gateway"
	"github.com/jeranaias/knowhub/internal/model"
	"github.com/jeranaias/knowhub/internal/registry"
	"github.com/jeranaias/knowhub/internal/session"
	"github.com/jeranaias/knowhub/internal/ui/styles"
)

// =============================================================================
// FAKE KNOWLEDGE SERVICE
// =============================================================================

type fakeService struct {
	mu        sync.Mutex
	token     string
	docs      []map[string]any
	logins    int
	uploads   int
	askStatus int
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		if body["password"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": "tok-1"})
	})
	mux.HandleFunc("/docs/list", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"documents": f.docs})
	})
	mux.HandleFunc("/docs/upload", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.uploads++
		id := fmt.Sprintf("d-%d", f.uploads)
		f.docs = append(f.docs, doc(id, r.FormValue("docTitle"), r.FormValue("fileType"), "processing"))
		writeJSON(w, http.StatusCreated, map[string]string{"doc_id": id})
	})
	mux.HandleFunc("/chat/ask", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		f.mu.Lock()
		status := f.askStatus
		f.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]string{"error": "model offline"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"answer": "Thirty days.", "sources": []string{"refunds.pdf"}})
	})
	return mux
}

func (f *fakeService) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return r.Header.Get("Authorization") == "Bearer "+f.token
}

func (f *fakeService) counts() (logins, uploads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins, f.uploads
}

func (f *fakeService) failAsks(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.askStatus = status
}

func (f *fakeService) revoke() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = "rotated"
}

func doc(id, title, format, status string) map[string]any {
	return map[string]any{
		"doc_id":     id,
		"title":      title,
		"created_at": "2024-03-01T10:00:00Z",
		"metadata":   map[string]any{"format": format, "size": 2048, "status": status},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	svc      *fakeService
	model    *Model
	store    *session.Store
	registry *registry.Registry
	engine   *conversation.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	svc := &fakeService{
		token: "tok-1",
		docs:  []map[string]any{doc("d-0", "Handbook", "pdf", "ready")},
	}
	srv := httptest.NewServer(svc.handler())
	t.Cleanup(srv.Close)

	client := gateway.New(gateway.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	store := session.NewStore(client, nil, nil)
	client.SetCredentials(store)
	reg := registry.New(client, registry.Options{})
	engine := conversation.NewEngine(client, nil)

	m := New(Deps{
		Config:   config.Default(),
		Session:  store,
		Registry: reg,
		Engine:   engine,
		Theme:    styles.NewTheme("dark"),
	})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return &harness{svc: svc, model: m, store: store, registry: reg, engine: engine}
}

// run executes cmd and feeds its message back into the model.
func (h *harness) run(t *testing.T, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	require.NotNil(t, cmd)
	_, next := h.model.Update(cmd())
	return next
}

func (h *harness) signIn(t *testing.T) {
	t.Helper()
	m := h.model
	m.auth.inputs[fieldEmail].SetValue("ada@example.com")
	m.auth.inputs[fieldPassword].SetValue("secret")
	m.auth.focusField(fieldPassword)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	refresh := h.run(t, cmd)
	require.Equal(t, ScreenDocuments, m.Screen())
	h.run(t, refresh)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newestToast(m *Model) string {
	toasts := m.toasts.Toasts()
	if len(toasts) == 0 {
		return ""
	}
	return toasts[0].Message
}

// =============================================================================
// AUTH
// =============================================================================

func TestNew_StartsOnAuthWithoutSession(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, ScreenAuth, h.model.Screen())
	assert.Contains(t, h.model.View(), "Sign in")
}

func TestView_BeforeFirstResize(t *testing.T) {
	h := newHarness(t)
	m := New(Deps{Session: h.store, Registry: h.registry, Engine: h.engine, Theme: styles.NewTheme("dark")})
	assert.Equal(t, "Loading...", m.View())
}

func TestLogin_ListsDocuments(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	assert.True(t, h.store.Authenticated())
	assert.Equal(t, ScreenDocuments, h.model.Screen())
	assert.Equal(t, "Signed in as ada@example.com", newestToast(h.model))
	assert.Contains(t, h.model.View(), "Handbook")
}

func TestLogin_RejectedStaysOnAuth(t *testing.T) {
	h := newHarness(t)
	m := h.model
	m.auth.inputs[fieldEmail].SetValue("ada@example.com")
	m.auth.inputs[fieldPassword].SetValue("wrong")
	m.auth.focusField(fieldPassword)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	h.run(t, cmd)

	assert.Equal(t, ScreenAuth, m.Screen())
	assert.Equal(t, "Invalid credentials", m.auth.err)
	assert.False(t, m.auth.busy)
	assert.False(t, h.store.Authenticated())
}

func TestLogin_MissingFieldsNeverReachTheServer(t *testing.T) {
	h := newHarness(t)
	m := h.model
	m.auth.focusField(fieldPassword)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	h.run(t, cmd)

	assert.NotEmpty(t, m.auth.err)
	logins, _ := h.svc.counts()
	assert.Equal(t, 0, logins)
}

func TestAuth_EnterAdvancesFocusBeforeSubmitting(t *testing.T) {
	h := newHarness(t)
	m := h.model

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, fieldPassword, m.auth.focus)
	assert.False(t, m.auth.busy)
}

func TestAuth_ToggleShowsNameField(t *testing.T) {
	h := newHarness(t)
	m := h.model
	assert.Equal(t, 2, m.auth.fieldCount())

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.Equal(t, modeSignup, m.auth.mode)
	assert.Equal(t, 3, m.auth.fieldCount())
	assert.Contains(t, m.View(), "Create an account")
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func TestUpload_AcceptedClosesFormAndListsDocument(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model

	path := filepath.Join(t.TempDir(), "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("thirty day refunds"), 0o600))

	m.Update(runes("u"))
	require.True(t, m.docs.formOpen)
	m.docs.form.inputs[fieldPath].SetValue(path)
	m.docs.form.inputs[fieldTitle].SetValue("Refund Policy")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, m.docs.form.busy)
	h.run(t, cmd)

	assert.False(t, m.docs.formOpen)
	assert.Equal(t, UploadAccepted, newestToast(m))
	_, uploads := h.svc.counts()
	assert.Equal(t, 1, uploads)

	got, ok := h.registry.Get("d-1")
	require.True(t, ok)
	assert.Equal(t, "Refund Policy", got.Title)
	assert.Equal(t, "txt", got.Format)
	assert.Equal(t, registry.StatusProcessing, got.Status)
	assert.Contains(t, m.View(), "Refund Policy")
}

func TestUpload_MissingTitleIsRejectedLocally(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model

	m.Update(runes("u"))
	m.docs.form.inputs[fieldPath].SetValue("/tmp/whatever.pdf")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.NotEmpty(t, m.docs.form.err)
	assert.True(t, m.docs.formOpen)
	_, uploads := h.svc.counts()
	assert.Equal(t, 0, uploads)
}

func TestUpload_UnreadableFileKeepsFormOpen(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model

	m.Update(runes("u"))
	m.docs.form.inputs[fieldPath].SetValue(filepath.Join(t.TempDir(), "missing.pdf"))
	m.docs.form.inputs[fieldTitle].SetValue("Missing")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	h.run(t, cmd)

	assert.True(t, m.docs.formOpen)
	assert.Contains(t, m.docs.form.err, "missing.pdf")
	_, uploads := h.svc.counts()
	assert.Equal(t, 0, uploads)
}

func TestUpload_EscClosesForm(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model

	m.Update(runes("u"))
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.docs.formOpen)
}

func TestRefresh_UnauthenticatedReturnsToAuth(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model
	h.svc.revoke()

	_, cmd := m.Update(runes("r"))
	h.run(t, cmd)

	assert.Equal(t, ScreenAuth, m.Screen())
	assert.False(t, h.store.Authenticated())
	assert.Empty(t, h.registry.Documents())
	assert.Equal(t, gateway.UserMessage(gateway.ErrUnauthenticated), newestToast(m))
}

func TestDocuments_SelectionStaysInRange(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model

	for i := 0; i < 5; i++ {
		m.Update(runes("j"))
	}
	assert.Equal(t, 0, m.docs.selected)
	m.Update(runes("k"))
	assert.Equal(t, 0, m.docs.selected)
}

func TestPollTick_RefreshesOnlyWhilePending(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model

	_, cmd := m.Update(pollTickMsg{})
	assert.Nil(t, cmd, "everything is ready")

	h.svc.mu.Lock()
	h.svc.docs = append(h.svc.docs, doc("d-9", "Slow", "pdf", "processing"))
	h.svc.mu.Unlock()
	_, cmd = m.Update(runes("r"))
	h.run(t, cmd)
	require.Equal(t, 1, h.registry.Pending())

	m.docs.polling = false
	_, cmd = m.Update(pollTickMsg{})
	assert.NotNil(t, cmd)
	assert.True(t, m.docs.refreshing)
}

// =============================================================================
// CHAT
// =============================================================================

func TestAsk_ShowsAnswerWithSources(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, ScreenChat, m.Screen())
	assert.Contains(t, m.View(), "knowledge assistant")

	m.chat.input.SetValue("What is the refund window?")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, m.chat.input.Value())
	h.run(t, cmd)

	msgs := h.engine.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Thirty days.", msgs[1].Content)

	view := m.View()
	assert.Contains(t, view, "Thirty days.")
	assert.Contains(t, view, "refunds.pdf")
}

func TestAsk_FailureShowsFailedReply(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model
	h.svc.failAsks(http.StatusInternalServerError)

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m.chat.input.SetValue("Anyone there?")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	h.run(t, cmd)

	msgs := h.engine.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].IsFailed())
	assert.Contains(t, m.View(), "Failed to get a response from the AI.")
}

func TestAsk_BlankInputDoesNothing(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m.chat.input.SetValue("   ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, h.engine.Messages())
}

func TestRetry_NothingToRetry(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	h.run(t, cmd)
	assert.Equal(t, "Nothing to retry.", newestToast(m))
}

// =============================================================================
// SESSION
// =============================================================================

func TestLogout_ClearsEverything(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m.chat.input.SetValue("hello")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	h.run(t, cmd)
	require.NotEmpty(t, h.engine.Messages())

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})

	assert.Equal(t, ScreenAuth, m.Screen())
	assert.False(t, h.store.Authenticated())
	assert.Empty(t, h.registry.Documents())
	assert.Empty(t, h.engine.Messages())
	assert.Equal(t, "Signed out.", newestToast(m))
	assert.Empty(t, m.auth.inputs[fieldEmail].Value())
}

func TestSessionEnded_RoutesToAuth(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model

	m.Update(sessionEndedMsg{reason: session.TeardownRejected})
	assert.Equal(t, ScreenAuth, m.Screen())
	assert.Empty(t, h.registry.Documents())
}

func TestTab_SwitchesBetweenDocumentsAndChat(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	m := h.model

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, ScreenChat, m.Screen())
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, ScreenDocuments, m.Screen())
}

func TestQuit(t *testing.T) {
	h := newHarness(t)
	ctx := h.model.scope.context()
	_, cmd := h.model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Error(t, ctx.Err())
}

// =============================================================================
// HELPERS
// =============================================================================

func TestWorkScope_ResetCancelsOutstandingWork(t *testing.T) {
	s := newWorkScope()
	before := s.context()
	s.reset()
	assert.Error(t, before.Err())
	assert.NoError(t, s.context().Err())
	s.stop()
	assert.Error(t, s.context().Err())
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "docs", "a.pdf"), expandHome("~/docs/a.pdf"))
	assert.Equal(t, "/abs/a.pdf", expandHome("/abs/a.pdf"))
	assert.Equal(t, "rel/a.pdf", expandHome("rel/a.pdf"))
}

func TestClampSelection(t *testing.T) {
	d := documentsView{selected: 7}
	d.clampSelection(5, 2)
	assert.Equal(t, 4, d.selected)
	assert.Equal(t, 3, d.offset)

	d.selected = 0
	d.clampSelection(5, 2)
	assert.Equal(t, 0, d.offset)

	d.clampSelection(0, 2)
	assert.Equal(t, 0, d.selected)
}

func TestPendingQuestion(t *testing.T) {
	conv := model.NewConversation()
	first := conv.AppendUser("Hello")
	a := conv.AppendPending(first.Seq)
	require.NoError(t, conv.Commit(a.Seq, "Hi.", nil))

	_, ok := pendingQuestion(conv.Messages())
	assert.False(t, ok)

	q := conv.AppendUser("What is the refund policy for enterprise customers?")
	conv.AppendPending(q.Seq)
	got, ok := pendingQuestion(conv.Messages())
	require.True(t, ok)
	assert.Equal(t, q.Seq, got.Seq)
	assert.Equal(t, "What is the refund policy for enter...", got.Preview(38))
}
