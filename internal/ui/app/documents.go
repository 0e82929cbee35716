// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/knowhub/internal/gateway"
	"github.com/jeranaias/knowhub/internal/registry"
	"github.com/jeranaias/knowhub/internal/ui/components"
	"github.com/jeranaias/knowhub/internal/ui/styles"
)

// UploadAccepted is shown once the service accepts a document.
const UploadAccepted = "Document accepted for processing!"

// Field indexes into uploadForm.inputs.
const (
	fieldPath = iota
	fieldTitle
	fieldFormat
)

// rowHeight is the number of lines one document row takes, including the
// blank separator.
const rowHeight = 3

// =============================================================================
// DOCUMENTS VIEW STATE
// =============================================================================

type documentsView struct {
	selected   int
	offset     int
	refreshing bool
	polling    bool

	formOpen bool
	form     uploadForm
}

type uploadForm struct {
	inputs []textinput.Model
	focus  int
	busy   bool
	err    string
}

func newDocumentsView() documentsView {
	return documentsView{form: newUploadForm()}
}

func newUploadForm() uploadForm {
	path := textinput.New()
	path.Placeholder = "~/Documents/handbook.pdf"
	path.CharLimit = 4096

	title := textinput.New()
	title.Placeholder = "Employee handbook"
	title.CharLimit = 200

	format := textinput.New()
	format.Placeholder = "from file extension"
	format.CharLimit = 16

	f := uploadForm{inputs: []textinput.Model{path, title, format}}
	for i := range f.inputs {
		f.inputs[i].Prompt = ""
		f.inputs[i].Width = 40
	}
	return f
}

func (f *uploadForm) focusField(i int) tea.Cmd {
	n := len(f.inputs)
	f.focus = ((i % n) + n) % n
	for j := range f.inputs {
		f.inputs[j].Blur()
	}
	return f.inputs[f.focus].Focus()
}

func (f *uploadForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// clampSelection keeps the cursor inside a list of n rows and visible in
// a window of rows entries.
func (d *documentsView) clampSelection(n, rows int) {
	if n == 0 {
		d.selected, d.offset = 0, 0
		return
	}
	d.selected = max(0, min(d.selected, n-1))
	rows = max(rows, 1)
	if d.selected < d.offset {
		d.offset = d.selected
	}
	if d.selected >= d.offset+rows {
		d.offset = d.selected - rows + 1
	}
	d.offset = max(0, min(d.offset, n-1))
}

// =============================================================================
// UPDATE
// =============================================================================

func (m *Model) updateDocuments(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := &m.docs
	if d.formOpen {
		return m.updateUploadForm(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Refresh):
		if d.refreshing {
			return m, nil
		}
		d.refreshing = true
		return m, m.refreshCmd()
	case key.Matches(msg, m.keys.Upload):
		d.formOpen = true
		d.form.err = ""
		return m, d.form.focusField(fieldPath)
	case key.Matches(msg, m.keys.Up):
		d.selected--
	case key.Matches(msg, m.keys.Down):
		d.selected++
	}
	d.clampSelection(len(m.registry.Documents()), m.visibleRows())
	return m, nil
}

func (m *Model) updateUploadForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.docs.form
	if f.busy {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Close):
		m.docs.formOpen = false
		f.err = ""
		return m, nil
	case key.Matches(msg, m.keys.NextField):
		return m, f.focusField(f.focus + 1)
	case key.Matches(msg, m.keys.PrevField):
		return m, f.focusField(f.focus - 1)
	case key.Matches(msg, m.keys.Submit):
		return m, m.submitUpload()
	}
	return m, f.update(msg)
}

// submitUpload validates the form and starts the upload.
func (m *Model) submitUpload() tea.Cmd {
	f := &m.docs.form
	path := expandHome(strings.TrimSpace(f.inputs[fieldPath].Value()))
	title := strings.TrimSpace(f.inputs[fieldTitle].Value())
	format := strings.TrimSpace(f.inputs[fieldFormat].Value())
	if path == "" || title == "" {
		f.err = errorText(gateway.Validation(gateway.ReasonMissingTitleOrFile, ""))
		return nil
	}

	f.busy = true
	f.err = ""
	return m.uploadCmd(path, title, format)
}

func (m *Model) uploadCmd(path, title, format string) tea.Cmd {
	reg := m.registry
	ctx := m.scope.context()
	return func() tea.Msg {
		file, err := os.Open(path)
		if err != nil {
			return uploadResultMsg{err: fmt.Errorf("open %s: %w", path, err)}
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil {
			return uploadResultMsg{err: fmt.Errorf("stat %s: %w", path, err)}
		}
		if info.IsDir() {
			return uploadResultMsg{err: fmt.Errorf("%s is a directory", path)}
		}

		doc, err := reg.Submit(ctx, registry.Upload{
			Title:    title,
			Filename: filepath.Base(path),
			Format:   format,
			Content:  file,
			Size:     info.Size(),
		})
		return uploadResultMsg{doc: doc, err: err}
	}
}

func (m *Model) handleUploadResult(msg uploadResultMsg) (tea.Model, tea.Cmd) {
	f := &m.docs.form
	f.busy = false

	if msg.err != nil && !errors.Is(msg.err, registry.ErrRefreshAfterSubmit) {
		if cmd, ended := m.routeUnauthenticated(msg.err); ended {
			return m, cmd
		}
		f.err = errorText(msg.err)
		return m, nil
	}

	m.docs.formOpen = false
	m.docs.form = newUploadForm()
	m.toasts.AddSuccess(UploadAccepted)
	if msg.err != nil {
		if cmd, ended := m.routeUnauthenticated(msg.err); ended {
			return m, cmd
		}
		m.toasts.Add(components.ToastKindWarning, "Could not refresh the document list: "+errorText(msg.err))
	}
	m.logger.Info("document submitted", "local_id", msg.doc.LocalID, "format", msg.doc.Format)

	docs := m.registry.Documents()
	for i, d := range docs {
		if d.LocalID != "" && d.LocalID == msg.doc.LocalID {
			m.docs.selected = i
		}
	}
	m.docs.clampSelection(len(docs), m.visibleRows())
	return m, m.schedulePoll()
}

// =============================================================================
// REFRESH AND POLLING
// =============================================================================

func (m *Model) refreshCmd() tea.Cmd {
	reg := m.registry
	ctx := m.scope.context()
	return func() tea.Msg {
		_, err := reg.Refresh(ctx)
		return refreshResultMsg{err: err}
	}
}

func (m *Model) handleRefreshResult(msg refreshResultMsg) (tea.Model, tea.Cmd) {
	m.docs.refreshing = false
	if msg.err != nil {
		if gateway.IsCancelled(msg.err) {
			return m, nil
		}
		if cmd, ended := m.routeUnauthenticated(msg.err); ended {
			return m, cmd
		}
		m.toasts.AddError(errorText(msg.err))
		return m, m.schedulePoll()
	}
	m.docs.clampSelection(len(m.registry.Documents()), m.visibleRows())
	return m, m.schedulePoll()
}

// schedulePoll arms one poll tick while any document is still uploading or
// processing.
func (m *Model) schedulePoll() tea.Cmd {
	if m.docs.polling || m.screen == ScreenAuth || m.registry.Pending() == 0 {
		return nil
	}
	m.docs.polling = true
	return tea.Tick(m.pollInterval(), func(time.Time) tea.Msg { return pollTickMsg{} })
}

func (m *Model) handlePollTick() (tea.Model, tea.Cmd) {
	m.docs.polling = false
	if m.screen == ScreenAuth || m.registry.Pending() == 0 || m.docs.refreshing {
		return m, nil
	}
	m.docs.refreshing = true
	return m, m.refreshCmd()
}

func (m *Model) pollInterval() time.Duration {
	secs := m.cfg.Documents.PollIntervalSecs
	if secs <= 0 {
		secs = 5
	}
	return time.Duration(secs) * time.Second
}

// =============================================================================
// VIEW
// =============================================================================

// visibleRows is how many document rows fit in the body.
func (m *Model) visibleRows() int {
	return max((m.bodyHeight()-2)/rowHeight, 1)
}

func (m *Model) viewDocuments(width, height int) string {
	if m.docs.formOpen {
		return m.viewUploadForm(width, height)
	}
	theme := m.theme
	docs := m.registry.Documents()

	summary := components.RenderDocumentSummary(theme, docs)
	if m.docs.refreshing {
		summary += "  " + theme.Spinner.Render(m.spinner.View()) + " " + theme.Muted.Render("refreshing")
	}

	if len(docs) == 0 {
		hint := theme.FormHint.Render("Press u to upload your first document.")
		return lipgloss.JoinVertical(lipgloss.Left, summary, "", hint)
	}

	d := &m.docs
	d.clampSelection(len(docs), m.visibleRows())
	end := min(d.offset+m.visibleRows(), len(docs))
	rows := make([]string, 0, end-d.offset)
	for i := d.offset; i < end; i++ {
		rows = append(rows, components.RenderDocumentRow(theme, docs[i], i == d.selected, width-2, m.spinner.View()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, summary, "", strings.Join(rows, "\n\n"))
}

func (m *Model) viewUploadForm(width, height int) string {
	f := &m.docs.form
	theme := m.theme
	labels := []string{"File", "Title", "Format (optional)"}

	var b strings.Builder
	b.WriteString(theme.FormTitle.Render("Upload a document"))
	b.WriteString("\n")
	for i, input := range f.inputs {
		label := theme.FormLabel
		if i == f.focus {
			label = theme.FormLabelFocus
		}
		b.WriteString(label.Render(labels[i]))
		b.WriteString("\n")
		b.WriteString(input.View())
		b.WriteString("\n\n")
	}
	switch {
	case f.busy:
		b.WriteString(theme.Spinner.Render(m.spinner.View()) + " " + theme.ThinkingText.Render("Uploading..."))
	case f.err != "":
		b.WriteString(theme.ErrorStyle.Render(styles.StatusIndicators.Error+" ") + theme.ErrorMessage.Render(f.err))
	default:
		if formats := m.cfg.Documents.AllowedFormats; len(formats) > 0 {
			b.WriteString(theme.FormHint.Render("Accepted: " + strings.Join(formats, ", ")))
		}
	}

	box := theme.FormBox.Render(b.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

// expandHome replaces a leading ~/ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
