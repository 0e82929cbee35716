// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/jeranaias/knowhub/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// KeySize is the size of the master and derived AES-256 keys.
	KeySize = 32
	// SaltSize is the per-write HKDF salt size.
	SaltSize = 16
	// NonceSize is the AES-GCM nonce size.
	NonceSize = 12

	// sealMagic prefixes every sealed file: magic | salt | nonce | ciphertext+tag.
	sealMagic = "KHS1"
	// hkdfInfo binds derived keys to this use.
	hkdfInfo = "knowhub credential slot v1"
)

// =============================================================================
// FILE SLOT
// =============================================================================

// FileSlot stores a value sealed with AES-256-GCM. Every write derives a
// fresh key from the master key and a random salt with HKDF-SHA-256.
// The master key is created on first write with 0600 permissions.
type FileSlot struct {
	mu      sync.Mutex
	path    string
	keyPath string
}

// NewFileSlot creates a slot at path; the master key lives at path + ".key".
func NewFileSlot(path string) *FileSlot {
	return &FileSlot{path: path, keyPath: path + ".key"}
}

// Path returns the sealed file location.
func (f *FileSlot) Path() string {
	return f.path
}

// Load opens the sealed value.
func (f *FileSlot) Load() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sealed, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("failed to read credential slot: %w", err)
	}

	master, err := os.ReadFile(f.keyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSealBroken
		}
		return nil, fmt.Errorf("failed to read master key: %w", err)
	}
	defer zeroBytes(master)
	if len(master) != KeySize {
		return nil, ErrSealBroken
	}

	return open(master, sealed)
}

// Store seals data and writes it atomically.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func (f *FileSlot) Store(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	master, err := f.masterKey()
	if err != nil {
		return err
	}
	defer zeroBytes(master)

	sealed, err := seal(master, data)
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(f.path, sealed, 0600); err != nil {
		return fmt.Errorf("failed to write credential slot: %w", err)
	}
	return nil
}

// Clear removes the sealed value. The master key is kept for later writes.
func (f *FileSlot) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear credential slot: %w", err)
	}
	return nil
}

// masterKey reads the master key, generating it on first use.
func (f *FileSlot) masterKey() ([]byte, error) {
	key, err := os.ReadFile(f.keyPath)
	if err == nil && len(key) == KeySize {
		return key, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read master key: %w", err)
	}

	key = make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	// SECURITY: owner read/write only
	if err := util.AtomicWriteFile(f.keyPath, key, 0600); err != nil {
		return nil, fmt.Errorf("failed to write master key: %w", err)
	}
	return key, nil
}

// =============================================================================
// SEALING
// =============================================================================

func deriveAEAD(master, salt []byte) (cipher.AEAD, error) {
	key := make([]byte, KeySize)
	defer zeroBytes(key)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, salt, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func seal(master, plaintext []byte) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	aead, err := deriveAEAD(master, salt)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 0, len(sealMagic)+SaltSize+NonceSize)
	header = append(header, sealMagic...)
	header = append(header, salt...)
	header = append(header, nonce...)

	// The header is authenticated as additional data.
	out := append([]byte(nil), header...)
	return aead.Seal(out, nonce, plaintext, header), nil
}

func open(master, sealed []byte) ([]byte, error) {
	headerLen := len(sealMagic) + SaltSize + NonceSize
	if len(sealed) < headerLen || !bytes.HasPrefix(sealed, []byte(sealMagic)) {
		return nil, ErrSealBroken
	}
	salt := sealed[len(sealMagic) : len(sealMagic)+SaltSize]
	nonce := sealed[len(sealMagic)+SaltSize : headerLen]

	aead, err := deriveAEAD(master, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, sealed[headerLen:], sealed[:headerLen])
	if err != nil {
		return nil, ErrSealBroken
	}
	return plaintext, nil
}
