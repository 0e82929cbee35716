// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for knowhub.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: Remote service URL, timeouts and rate limit
//   - SessionConfig: Credential slot location
//   - DocumentsConfig: Upload validation and polling
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (KNOWHUB_*)
//   - ~/.knowhub/config.toml
//   - ~/.knowhub/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	base := cfg.Server.URL
//	timeout := time.Duration(cfg.Server.TimeoutSecs) * time.Second
package config
