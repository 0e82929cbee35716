// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable credential slot for knowhub.
//
// The slot holds a single opaque value (the session credential) that must
// survive restarts until the user logs out or the server rejects it.
//
// # Key Types
//
//   - Slot: Load/Store/Clear interface used by the session store
//   - FileSlot: AES-256-GCM sealed file with an HKDF-derived key
//   - MemorySlot: process-lifetime slot for tests and non-persistent sessions
//
// # Usage
//
//	slot := storage.NewFileSlot(path)
//	if err := slot.Store([]byte(token)); err != nil {
//	    return err
//	}
//	data, err := slot.Load()
//	if errors.Is(err, storage.ErrEmpty) {
//	    // nothing persisted
//	}
//
// # Storage Location
//
// The sealed value lives in ~/.knowhub/credential and the per-install master
// key in ~/.knowhub/credential.key, both 0600.
package storage
