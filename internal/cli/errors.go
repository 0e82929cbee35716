// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for all knowhub commands.
//
// STANDARDIZED PATTERN:
//   - Commands ALWAYS return errors (never print and return nil)
//   - Execute displays the error once and maps it to an exit code
//   - Gateway errors are shown with their short user message

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/knowhub/internal/config"
	"github.com/jeranaias/knowhub/internal/gateway"
	"github.com/jeranaias/knowhub/internal/util"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error or a server failure
	ExitGeneralError = 1
	// ExitUsageError indicates invalid usage, arguments or input
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a missing, rejected or refused credential
	ExitAuthError = 4
	// ExitNetworkError indicates the knowledge service could not be reached
	ExitNetworkError = 5
	// ExitInterrupted indicates the user cancelled the operation
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// UsageError wraps invalid command line usage (bad flags, wrong arguments).
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// ConfigError wraps a failure to load or save the configuration.
type ConfigError struct {
	Path string // empty when the default location was used
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// errNotSignedIn is returned by commands that read the stored credential.
var errNotSignedIn = &gateway.Error{
	Kind:    gateway.KindUnauthenticated,
	Message: "not signed in",
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCode determines the exit code for an error returned by a command.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}
	var ttyErr *TTYRequiredError
	if errors.As(err, &ttyErr) {
		return ExitUsageError
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	var validateErrs config.ValidateErrors
	if errors.As(err, &validateErrs) {
		return ExitConfigError
	}
	// Timeouts stay network errors; only the user's interrupt counts here.
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	switch gateway.KindOf(err) {
	case gateway.KindUnauthenticated, gateway.KindInvalidCredentials:
		return ExitAuthError
	case gateway.KindUnreachable:
		return ExitNetworkError
	case gateway.KindValidation, gateway.KindConflict:
		return ExitUsageError
	default:
		return ExitGeneralError
	}
}

// =============================================================================
// ERROR DISPLAY HELPERS
// =============================================================================

// errorMessage returns the sentence shown for err. Gateway errors use their
// short user message; everything else is shown as is on a single line.
func errorMessage(err error) string {
	if isNotSignedIn(err) {
		return "Not signed in. Run `knowhub login` first."
	}
	if gateway.KindOf(err) != gateway.KindUnknown {
		return gateway.UserMessage(err)
	}
	return util.SingleLine(err.Error())
}

// isNotSignedIn matches errNotSignedIn by identity; errors.Is would match
// every Unauthenticated error.
func isNotSignedIn(err error) bool {
	var gerr *gateway.Error
	return errors.As(err, &gerr) && gerr == errNotSignedIn
}

// DisplayError writes err in a consistent format. In JSON mode the error
// is written to out as a JSONResponse; otherwise to errOut as text.
func DisplayError(out, errOut io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}

	if jsonMode {
		_ = NewJSONErrorResponse(command, err).Print(out)
		return
	}

	fmt.Fprintf(errOut, "%s %s\n", ErrorStyle.Render("[ERROR]"), errorMessage(err))
	var validateErrs config.ValidateErrors
	if errors.As(err, &validateErrs) {
		for _, v := range validateErrs {
			fmt.Fprintf(errOut, "  %s %s\n", DimStyle.Render(v.Field+":"), v.Message)
		}
	}
}
