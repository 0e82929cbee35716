// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the knowhub packages.
//
// # Key Functions
//
// Files:
//   - AtomicWriteFile: crash-safe file writing with fsync, used by the
//     credential slot and the config saver
//
// Display:
//   - TruncateWidth: column-aware truncation for table cells
//   - FormatKB: document sizes as shown in the document list
//
// Logging:
//   - InitLogger: slog JSON logger writing to the knowhub log file
//
// # Usage
//
//	logger, closeLog, err := util.InitLogger("info", logPath)
//	defer closeLog()
//
//	cell := util.TruncateWidth(doc.Title, 32)
package util
