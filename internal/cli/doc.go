// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the knowhub command line on top of cobra.
//
// Every command builds the same dependency graph (config, logger, gateway
// client, credential slot, session store, document registry, conversation
// engine) and only invokes operations on it. Running knowhub without a
// command opens the terminal UI.
//
// # Key Types
//
//   - BuildInfo: version metadata injected by main
//   - JSONResponse: the single JSON document written in --json mode
//   - UsageError, ConfigError: errors mapped to dedicated exit codes
//
// # Usage
//
//	code := cli.Execute(ctx, cli.BuildInfo{Version: Version}, os.Args[1:],
//	    os.Stdin, os.Stdout, os.Stderr)
//	os.Exit(code)
//
// # Commands Overview
//
//   - login, signup, logout, whoami: session management
//   - docs list, docs upload FILE --title T, docs watch: documents
//   - ask QUESTION, chat [--plain]: questions about the documents
//   - config show|path|get|set|init: settings
//   - version
//
// # Exit Codes
//
// 0 success, 1 general or server failure, 2 usage or validation error,
// 3 configuration error, 4 not signed in or credentials refused,
// 5 service unreachable, 130 interrupted.
package cli
