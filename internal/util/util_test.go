// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")

	require.NoError(t, AtomicWriteFile(path, []byte("hello, world!"), 0600))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello, world!", string(content))
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "deep", "test.txt")

	require.NoError(t, AtomicWriteFile(path, []byte("test data"), 0600))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")

	require.NoError(t, AtomicWriteFile(path, []byte("initial"), 0600))
	require.NoError(t, AtomicWriteFile(path, []byte("replaced"), 0600))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(content))
}

func TestAtomicWriteFile_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slot")

	require.NoError(t, AtomicWriteFile(path, bytes.Repeat([]byte("x"), 1<<16), 0600))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "slot", entries[0].Name())
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"truncated", "hello world", 8, "hello..."},
		{"tiny max", "hello", 2, "he"},
		{"zero", "hello", 0, ""},
		{"utf8", "日本語のテキスト", 5, "日本..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateRunes(tt.in, tt.max))
		})
	}
}

func TestTruncateWidth(t *testing.T) {
	assert.Equal(t, "Policy", TruncateWidth("Policy", 10))
	assert.Equal(t, "Annual...", TruncateWidth("Annual Report 2025", 9))
	assert.Equal(t, "", TruncateWidth("anything", 0))

	// Each CJK character is two columns wide.
	got := TruncateWidth("日本語のテキスト", 7)
	assert.LessOrEqual(t, StringWidth(got), 7)
}

func TestPadWidth(t *testing.T) {
	assert.Equal(t, "ab   ", PadWidth("ab", 5))
	assert.Equal(t, 6, StringWidth(PadWidth("日本語のテキスト", 6)))
}

func TestSingleLine(t *testing.T) {
	assert.Equal(t, "a b c", SingleLine("a\nb\r\nc"))
}

func TestFormatKB(t *testing.T) {
	assert.Equal(t, "0.00 KB", FormatKB(0))
	assert.Equal(t, "976.56 KB", FormatKB(1000000))
	assert.Equal(t, "2290.04 KB", FormatKB(2345000))
}

// =============================================================================
// LOGGING TESTS
// =============================================================================

func TestInitLogger_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "knowhub.log")

	logger, closeLog, err := InitLogger("debug", path)
	require.NoError(t, err)
	logger.Debug("refresh complete", "documents", 3)
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"refresh complete"`)
	assert.Contains(t, string(data), `"documents":3`)
}

func TestInitLogger_EmptyPathDiscards(t *testing.T) {
	logger, closeLog, err := InitLogger("info", "")
	require.NoError(t, err)
	logger.Info("dropped")
	assert.NoError(t, closeLog())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLevel("debug").String())
	assert.Equal(t, "WARN", ParseLevel("Warning").String())
	assert.Equal(t, "ERROR", ParseLevel("error").String())
	assert.Equal(t, "INFO", ParseLevel("verbose").String())
}
