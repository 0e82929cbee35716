// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"sync"
)

// =============================================================================
// SESSION WORK SCOPE (THREAD-SAFE)
// =============================================================================

// workScope hands out the context for gateway work started during one
// signed-in session. Signing out cancels everything still running.
// IMPORTANT: hold it by pointer so the mutex is never copied.
type workScope struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func newWorkScope() *workScope {
	s := &workScope{}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// context returns the current session context.
func (s *workScope) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// reset cancels outstanding work and opens a fresh scope.
func (s *workScope) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(context.Background())
}

// stop cancels outstanding work. Safe to call multiple times.
func (s *workScope) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
}
