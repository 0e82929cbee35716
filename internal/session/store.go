// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/knowhub/internal/gateway"
	"github.com/jeranaias/knowhub/internal/storage"
	"github.com/jeranaias/knowhub/internal/util"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Authenticator performs the public login and signup calls.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Signup(ctx context.Context, email, password, name string) (string, error)
}

// TeardownReason says why a session ended without an explicit logout.
type TeardownReason string

const (
	// TeardownRejected means the server refused the credential.
	TeardownRejected TeardownReason = "rejected"
)

// =============================================================================
// STORE
// =============================================================================

var _ gateway.CredentialSource = (*Store)(nil)

// Store owns the credential. All writes go through its mutex; the gateway
// only reads Token and requests teardown through Invalidate.
type Store struct {
	mu   sync.RWMutex
	cred *Credential

	auth   Authenticator
	slot   storage.Slot
	logger *slog.Logger
	now    func() time.Time

	// Callbacks
	onTeardown func(reason TeardownReason)
}

// NewStore creates a store. A nil slot keeps the credential in memory only.
func NewStore(auth Authenticator, slot storage.Slot, logger *slog.Logger) *Store {
	if slot == nil {
		slot = storage.NewMemorySlot()
	}
	if logger == nil {
		logger = util.DiscardLogger()
	}
	return &Store{
		auth:   auth,
		slot:   slot,
		logger: logger.With("component", "session"),
		now:    time.Now,
	}
}

// SetTeardownCallback registers fn to run when the session is torn down
// implicitly. It is not called for Logout.
func (s *Store) SetTeardownCallback(fn func(reason TeardownReason)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTeardown = fn
}

// =============================================================================
// LOGIN / SIGNUP
// =============================================================================

// Login authenticates and installs the returned credential.
func (s *Store) Login(ctx context.Context, email, password string) (Credential, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return Credential{}, gateway.Validation(gateway.ReasonMissingCredentials, "")
	}

	token, err := s.auth.Login(ctx, email, password)
	if err != nil {
		s.logger.Info("login failed", "kind", gateway.KindOf(err).String())
		return Credential{}, err
	}
	return s.install(token), nil
}

// Signup registers an account and installs the returned credential.
func (s *Store) Signup(ctx context.Context, email, password, name string) (Credential, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || strings.TrimSpace(password) == "" {
		return Credential{}, gateway.Validation(gateway.ReasonMissingCredentials, "")
	}
	if name == "" {
		return Credential{}, gateway.Validation(gateway.ReasonMissingDisplayName, "")
	}

	token, err := s.auth.Signup(ctx, email, password, name)
	if err != nil {
		s.logger.Info("signup failed", "kind", gateway.KindOf(err).String())
		return Credential{}, err
	}
	return s.install(token), nil
}

// install replaces the live credential and persists it. A slot failure is
// logged; the in-memory session stays valid.
func (s *Store) install(token string) Credential {
	cred := newCredential(token, s.now())

	// The slot is written under the lock so a concurrent logout cannot
	// leave a stale token on disk.
	s.mu.Lock()
	s.cred = &cred
	if err := s.slot.Store([]byte(token)); err != nil {
		s.logger.Warn("could not persist credential", "error", err.Error())
	}
	s.mu.Unlock()

	s.logger.Info("session started", "subject", cred.Claims.Subject)
	return cred
}

// =============================================================================
// LOGOUT / TEARDOWN
// =============================================================================

// Logout clears the credential from memory and the slot. It is idempotent.
// The in-memory credential is always cleared; the returned error only
// reports a slot failure.
func (s *Store) Logout() error {
	s.mu.Lock()
	had := s.cred != nil
	s.cred = nil
	err := s.slot.Clear()
	s.mu.Unlock()

	if had {
		s.logger.Info("session ended", "reason", "logout")
	}
	if err != nil {
		return fmt.Errorf("failed to clear stored credential: %w", err)
	}
	return nil
}

// Invalidate tears the session down when token is still the live one.
// A rejection for an older token leaves a newer login untouched.
func (s *Store) Invalidate(token string) {
	s.mu.Lock()
	if s.cred == nil || s.cred.Token != token {
		s.mu.Unlock()
		return
	}
	s.cred = nil
	clearErr := s.slot.Clear()
	callback := s.onTeardown
	s.mu.Unlock()

	s.logger.Warn("session ended", "reason", string(TeardownRejected))
	if clearErr != nil {
		s.logger.Warn("could not clear stored credential", "error", clearErr.Error())
	}

	// Callbacks run outside the lock so they may call back into the store.
	if callback != nil {
		callback(TeardownRejected)
	}
}

// =============================================================================
// READS
// =============================================================================

// Current returns the live credential.
func (s *Store) Current() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return Credential{}, false
	}
	return *s.cred, true
}

// Token returns the live bearer token.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return "", false
	}
	return s.cred.Token, true
}

// Authenticated reports whether a credential is live.
func (s *Store) Authenticated() bool {
	_, ok := s.Token()
	return ok
}

// =============================================================================
// RESTORE
// =============================================================================

// Restore loads the credential persisted by a previous run. An empty,
// unreadable or expired slot yields no session; unreadable and expired
// slots are cleared. Only I/O failures are returned as errors.
func (s *Store) Restore() (Credential, bool, error) {
	data, err := s.slot.Load()
	switch {
	case errors.Is(err, storage.ErrEmpty):
		return Credential{}, false, nil
	case errors.Is(err, storage.ErrSealBroken):
		s.logger.Warn("discarding unreadable stored credential")
		s.clearSlot()
		return Credential{}, false, nil
	case err != nil:
		return Credential{}, false, err
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		s.clearSlot()
		return Credential{}, false, nil
	}

	cred := newCredential(token, s.now())
	if cred.Expired(s.now()) {
		s.logger.Info("discarding expired stored credential")
		s.clearSlot()
		return Credential{}, false, nil
	}

	s.mu.Lock()
	s.cred = &cred
	s.mu.Unlock()

	s.logger.Info("session restored", "subject", cred.Claims.Subject)
	return cred, true, nil
}

// clearSlot empties the durable slot. A failure leaves a stale credential
// on disk, so it is logged.
func (s *Store) clearSlot() {
	if err := s.slot.Clear(); err != nil {
		s.logger.Warn("could not clear stored credential", "error", err.Error())
	}
}
