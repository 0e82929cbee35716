// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"sync"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmpty indicates nothing is stored in the slot.
	ErrEmpty = errors.New("credential slot is empty")
	// ErrSealBroken indicates the stored value could not be opened
	// (wrong master key, truncated file or tampered data).
	ErrSealBroken = errors.New("credential slot seal is broken")
)

// =============================================================================
// SLOT INTERFACE
// =============================================================================

// Slot is a durable single-value store.
type Slot interface {
	// Load returns the stored value or ErrEmpty.
	Load() ([]byte, error)
	// Store replaces the stored value.
	Store(data []byte) error
	// Clear removes the stored value. Clearing an empty slot is not an error.
	Clear() error
}

// =============================================================================
// MEMORY SLOT
// =============================================================================

// MemorySlot keeps the value in memory only.
type MemorySlot struct {
	mu   sync.Mutex
	data []byte
}

// NewMemorySlot creates an empty in-memory slot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

// Load returns a copy of the stored value.
func (m *MemorySlot) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrEmpty
	}
	return append([]byte(nil), m.data...), nil
}

// Store keeps a copy of data.
func (m *MemorySlot) Store(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte{}, data...)
	return nil
}

// Clear drops the stored value.
func (m *MemorySlot) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	zeroBytes(m.data)
	m.data = nil
	return nil
}

// zeroBytes overwrites sensitive material before it is released.
// SECURITY: limits exposure through crash dumps.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
