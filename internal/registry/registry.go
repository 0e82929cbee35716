// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/knowhub/internal/gateway"
	"github.com/jeranaias/knowhub/internal/util"
)

// ErrRefreshAfterSubmit wraps the refresh failure that followed an accepted
// upload. The submission itself succeeded.
var ErrRefreshAfterSubmit = errors.New("upload accepted but the document list could not be refreshed")

// DocumentService is the part of the gateway the registry uses.
type DocumentService interface {
	ListDocuments(ctx context.Context) ([]gateway.DocumentRecord, error)
	UploadDocument(ctx context.Context, up gateway.Upload) (gateway.UploadAck, error)
}

// Upload is a submission request.
type Upload struct {
	Title    string
	Filename string
	// Format is the declared file type; empty derives it from Filename.
	Format  string
	Content io.Reader
	// Size is the content length in bytes, used for the size limit and
	// for the optimistic entry.
	Size int64
}

// Options configures a Registry.
type Options struct {
	// AllowedFormats restricts declared formats (empty = any).
	AllowedFormats []string
	// MaxUploadBytes rejects larger uploads locally (0 = unlimited).
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// localEntry is an optimistic submission awaiting confirmation.
type localEntry struct {
	doc Document
	key string // correlation key, used when the ack carried no doc_id

	// known holds the doc_ids listed when the upload was sent; nil means
	// no listing was available and the entry matches by doc_id only.
	known map[string]bool
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds the Confirmed listing and the Local submissions.
type Registry struct {
	mu        sync.RWMutex
	confirmed []Document        // latest listing order
	local     []*localEntry     // submission order
	handles   map[string]string // docId -> LocalID for confirmed submissions
	listed    map[string]bool   // docIds present in the previous listing
	synced    bool              // a listing has been applied since New or Reset

	svc     DocumentService
	allowed map[string]bool
	maxSize int64
	logger  *slog.Logger
	now     func() time.Time
	group   singleflight.Group

	// Callbacks
	onChange func()
}

// New creates an empty registry.
func New(svc DocumentService, opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = util.DiscardLogger()
	}
	var allowed map[string]bool
	if len(opts.AllowedFormats) > 0 {
		allowed = make(map[string]bool, len(opts.AllowedFormats))
		for _, f := range opts.AllowedFormats {
			allowed[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))] = true
		}
	}
	return &Registry{
		handles: make(map[string]string),
		listed:  make(map[string]bool),
		svc:     svc,
		allowed: allowed,
		maxSize: opts.MaxUploadBytes,
		logger:  logger.With("component", "registry"),
		now:     time.Now,
	}
}

// SetChangeCallback registers fn to run after every state change. It runs
// outside the registry lock.
func (r *Registry) SetChangeCallback(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

func (r *Registry) notify() {
	r.mu.RLock()
	fn := r.onChange
	r.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// =============================================================================
// REFRESH
// =============================================================================

// Refresh replaces the Confirmed entries with the server listing and
// reconciles Local entries. Concurrent calls share one request. On failure
// the registry is left unchanged.
func (r *Registry) Refresh(ctx context.Context) ([]Document, error) {
	_, err, _ := r.group.Do("refresh", func() (any, error) {
		records, err := r.svc.ListDocuments(ctx)
		if err != nil {
			return nil, err
		}
		r.apply(records)
		return nil, nil
	})
	if err != nil {
		r.logger.Warn("refresh failed", "kind", gateway.KindOf(err).String())
		return nil, err
	}
	r.notify()
	return r.Documents(), nil
}

// apply merges a listing into the registry.
func (r *Registry) apply(records []gateway.DocumentRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := make(map[string]Document, len(r.confirmed))
	for _, d := range r.confirmed {
		previous[d.DocID] = d
	}

	next := make([]Document, 0, len(records))
	position := make(map[string]int, len(records))
	for _, rec := range records {
		id := strings.TrimSpace(rec.DocID)
		if id == "" {
			r.logger.Warn("listing entry without doc_id skipped")
			continue
		}
		if _, dup := position[id]; dup {
			r.logger.Warn("duplicate doc_id in listing", "doc_id", id)
			continue
		}

		doc := Document{
			DocID:     id,
			LocalID:   r.handles[id],
			Title:     rec.Title,
			CreatedAt: rec.Created(),
			Format:    rec.Metadata.Format,
			SizeBytes: rec.Metadata.SizeBytes(),
			Status:    ParseStatus(rec.Metadata.Status),
			Origin:    OriginConfirmed,
		}
		if prev, ok := previous[id]; ok && !isValidTransition(prev.Status, doc.Status) {
			r.logger.Warn("ignoring status regression", "doc_id", id,
				"confirmed", prev.Status.String(), "listed", doc.Status.String())
			doc.Status = prev.Status
		}
		position[id] = len(next)
		next = append(next, doc)
	}

	claimed := make(map[string]bool)
	confirm := func(e *localEntry, id string) {
		claimed[id] = true
		r.handles[id] = e.doc.LocalID
		next[position[id]].LocalID = e.doc.LocalID
	}

	// Entries whose acknowledgement carried a doc_id match exactly.
	remaining := make([]*localEntry, 0, len(r.local))
	for _, e := range r.local {
		if e.doc.DocID == "" {
			remaining = append(remaining, e)
			continue
		}
		if _, ok := position[e.doc.DocID]; ok {
			confirm(e, e.doc.DocID)
			continue
		}
		remaining = append(remaining, e)
	}

	// The rest claim newly listed documents by title and format, oldest
	// submission first.
	kept := make([]*localEntry, 0, len(remaining))
	for _, e := range remaining {
		if e.doc.DocID != "" || e.known == nil {
			kept = append(kept, e)
			continue
		}
		match := ""
		for _, doc := range next {
			if claimed[doc.DocID] || e.known[doc.DocID] || r.listed[doc.DocID] || r.handles[doc.DocID] != "" {
				continue
			}
			if correlationKey(doc.Title, doc.Format) == e.key {
				match = doc.DocID
				break
			}
		}
		if match == "" {
			kept = append(kept, e)
			continue
		}
		confirm(e, match)
	}

	listed := make(map[string]bool, len(next))
	for _, d := range next {
		listed[d.DocID] = true
	}

	r.confirmed = next
	r.local = kept
	r.listed = listed
	r.synced = true
}

// baseline returns the doc_ids a new submission must never claim by title.
// A registry that has not listed yet lists first. If that listing fails
// for any reason other than the session or the caller, the baseline is nil
// and the submission is matched by acknowledged doc_id only.
func (r *Registry) baseline(ctx context.Context) (map[string]bool, error) {
	r.mu.RLock()
	synced := r.synced
	r.mu.RUnlock()

	if !synced {
		if _, err := r.Refresh(ctx); err != nil {
			if errors.Is(err, gateway.ErrUnauthenticated) || ctx.Err() != nil {
				return nil, err
			}
			r.logger.Warn("no listing before upload; title matching disabled for it",
				"kind", gateway.KindOf(err).String())
			return nil, nil
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	known := make(map[string]bool, len(r.confirmed))
	for _, d := range r.confirmed {
		known[d.DocID] = true
	}
	return known, nil
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit validates and uploads a document. On acceptance a Local entry in
// the uploading state is added immediately and a refresh follows. If that
// refresh fails the returned document is still valid and the error wraps
// ErrRefreshAfterSubmit.
func (r *Registry) Submit(ctx context.Context, up Upload) (Document, error) {
	title := strings.TrimSpace(up.Title)
	filename := strings.TrimSpace(up.Filename)
	if title == "" || filename == "" || up.Content == nil {
		return Document{}, gateway.Validation(gateway.ReasonMissingTitleOrFile, "")
	}

	format := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(up.Format), "."))
	if format == "" {
		format = FormatFromFilename(filename)
	}
	if format == "" || (r.allowed != nil && !r.allowed[format]) {
		return Document{}, gateway.Validation(gateway.ReasonUnsupportedFormat,
			fmt.Sprintf("Unsupported file type %q.", format))
	}
	if r.maxSize > 0 && up.Size > r.maxSize {
		return Document{}, gateway.Validation(gateway.ReasonFileTooLarge,
			fmt.Sprintf("File is %s; the limit is %s.", util.FormatKB(up.Size), util.FormatKB(r.maxSize)))
	}

	known, err := r.baseline(ctx)
	if err != nil {
		return Document{}, err
	}

	ack, err := r.svc.UploadDocument(ctx, gateway.Upload{
		Title:    title,
		Filename: filename,
		Format:   format,
		Content:  up.Content,
	})
	if err != nil {
		r.logger.Warn("upload failed", "kind", gateway.KindOf(err).String())
		return Document{}, err
	}

	entry := &localEntry{
		doc: Document{
			DocID:     ack.DocID,
			LocalID:   uuid.NewString(),
			Title:     title,
			CreatedAt: r.now(),
			Format:    format,
			SizeBytes: max(up.Size, 0),
			Status:    StatusUploading,
			Origin:    OriginLocal,
		},
		key:   correlationKey(title, format),
		known: known,
	}
	r.mu.Lock()
	r.local = append(r.local, entry)
	r.mu.Unlock()

	r.logger.Info("upload accepted", "local_id", entry.doc.LocalID, "doc_id", ack.DocID, "format", format)
	r.notify()

	if _, err := r.Refresh(ctx); err != nil {
		doc, _ := r.Get(entry.doc.LocalID)
		return doc, fmt.Errorf("%w: %w", ErrRefreshAfterSubmit, err)
	}
	doc, _ := r.Get(entry.doc.LocalID)
	return doc, nil
}

// =============================================================================
// READS
// =============================================================================

// Documents returns Confirmed entries in listing order followed by Local
// entries in submission order.
func (r *Registry) Documents() []Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Document, 0, len(r.confirmed)+len(r.local))
	out = append(out, r.confirmed...)
	for _, e := range r.local {
		out = append(out, e.doc)
	}
	return out
}

// Get finds an entry by server doc_id or by local handle.
func (r *Registry) Get(id string) (Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := slices.IndexFunc(r.confirmed, func(d Document) bool {
		return d.DocID == id || (d.LocalID != "" && d.LocalID == id)
	}); i >= 0 {
		return r.confirmed[i], true
	}
	for _, e := range r.local {
		if e.doc.LocalID == id || (e.doc.DocID != "" && e.doc.DocID == id) {
			return e.doc, true
		}
	}
	return Document{}, false
}

// Pending counts entries that are not in a terminal state.
func (r *Registry) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.local) // Local entries are always uploading
	for _, d := range r.confirmed {
		if !d.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// Reset forgets every entry, for example when the user signs out.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.confirmed = nil
	r.local = nil
	r.handles = make(map[string]string)
	r.listed = make(map[string]bool)
	r.synced = false
	r.mu.Unlock()
	r.notify()
}

// =============================================================================
// POLLING
// =============================================================================

// Poll refreshes every interval while any entry is non-terminal. It returns
// nil once everything is terminal, the context error when cancelled, or an
// Unauthenticated error when the session ends. Other refresh failures are
// logged and polling continues.
func (r *Registry) Poll(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for r.Pending() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := r.Refresh(ctx); err != nil {
			if errors.Is(err, gateway.ErrUnauthenticated) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	return nil
}
