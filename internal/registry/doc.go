// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry tracks the user's documents across their ingestion
// lifecycle.
//
// An accepted upload appears immediately as a Local entry in the uploading
// state. Each refresh replaces the Confirmed entries with the server's
// listing and reconciles Local entries by identity: the server doc_id when
// the upload acknowledgement returned one, otherwise a newly listed document
// with the same normalized title and format. Local entries the server has
// not reported yet are kept. Status only moves forward:
//
//	uploading -> processing -> ready | failed
//
// # Key Types
//
//   - Registry: the document view shared by the CLI and the TUI
//   - Document: one entry, tagged Local or Confirmed
//   - Status: ingestion status with forward-only transitions
//   - Upload: a submission request
//
// # Usage
//
//	reg := registry.New(client, registry.Options{AllowedFormats: cfg.Documents.AllowedFormats})
//	doc, err := reg.Submit(ctx, registry.Upload{Title: "Policy", Filename: "policy.pdf", Content: f, Size: n})
//	if errors.Is(err, registry.ErrRefreshAfterSubmit) {
//	    // accepted, but the listing could not be refreshed yet
//	}
//	for _, d := range reg.Documents() {
//	    fmt.Println(d.Title, d.Status)
//	}
package registry
