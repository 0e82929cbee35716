// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/knowhub/internal/config"
	"github.com/jeranaias/knowhub/internal/conversation"
	"github.com/jeranaias/knowhub/internal/gateway"
)

func newChatCmd(opts *globalOptions) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat about your documents",
		Long: `Chat about your documents. On a terminal this opens the terminal UI;
with --plain, or when input is piped, it runs a line-based session with
input history. Ctrl+C while an answer is pending cancels it and ends the
session.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			interactive := isTerminal(cmd.InOrStdin()) && isTerminal(cmd.OutOrStdout())
			if !plain && interactive {
				return runTUI(cmd, opts)
			}

			e, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer e.close()
			if !e.store.Authenticated() {
				return errNotSignedIn
			}

			var in lineReader
			if interactive {
				in = newHistoryReader()
			} else {
				in = newPipeReader(cmd.InOrStdin())
			}
			defer in.Close()

			s := &chatSession{
				env:      e,
				in:       in,
				out:      cmd.OutOrStdout(),
				errOut:   cmd.ErrOrStderr(),
				jsonMode: opts.json,
				prompt:   "knowhub> ",
			}
			if interactive {
				s.prompt = PromptStyle.Render("knowhub> ")
			}
			return s.run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "line-based chat instead of the terminal UI")
	return cmd
}

// =============================================================================
// INPUT
// =============================================================================

// lineReader reads one line of chat input. It returns io.EOF when the user
// is done.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close()
}

// historyReader provides input history and line editing on a terminal.
// USABILITY: Supports arrow keys for history navigation and line editing.
type historyReader struct {
	line        *liner.State
	historyFile string
}

func newHistoryReader() *historyReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	r := &historyReader{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

// ReadLine reads a line with history support. Ctrl+C at the prompt ends
// the session like Ctrl+D.
func (r *historyReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with 0600 permissions and restores the terminal.
func (r *historyReader) Close() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// pipeReader reads piped input without prompts.
type pipeReader struct {
	scanner *bufio.Scanner
}

func newPipeReader(in io.Reader) *pipeReader {
	return &pipeReader{scanner: bufio.NewScanner(in)}
}

func (r *pipeReader) ReadLine(string) (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *pipeReader) Close() {}

// =============================================================================
// SESSION LOOP
// =============================================================================

type chatSession struct {
	env      *env
	in       lineReader
	out      io.Writer
	errOut   io.Writer
	jsonMode bool
	prompt   string
}

const chatHelp = `Commands:
  /retry   ask the last failed question again
  /docs    list your documents
  /clear   start a new conversation
  /quit    leave the chat (also Ctrl+D)`

func (s *chatSession) run(ctx context.Context) error {
	if !s.jsonMode {
		fmt.Fprintln(s.out, TitleStyle.Render(s.env.cfg.Chat.Greeting))
		fmt.Fprintln(s.out, DimStyle.Render("Type /help for commands."))
		fmt.Fprintln(s.out)
	}

	for {
		input, err := s.in.ReadLine(s.prompt)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		var stop bool
		if strings.HasPrefix(input, "/") || strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			stop, err = s.command(ctx, input)
		} else {
			err = s.ask(ctx, input)
		}

		if ctx.Err() != nil {
			fmt.Fprintln(s.errOut, WarningStyle.Render("[Cancelled]"))
			return nil
		}
		if err != nil {
			// The session is gone; nothing else will work.
			if errors.Is(err, gateway.ErrUnauthenticated) {
				return err
			}
			DisplayError(s.out, s.errOut, "chat", err, s.jsonMode)
		}
		if stop {
			return nil
		}
	}
}

// command runs a slash command. It reports whether the session should end.
func (s *chatSession) command(ctx context.Context, input string) (bool, error) {
	fields := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(fields) == 0 {
		return false, nil
	}
	name := strings.ToLower(fields[0])
	switch name {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		fmt.Fprintln(s.out, chatHelp)
	case "retry":
		turn, err := s.env.engine.RetryLast(ctx)
		if err != nil && gateway.ReasonOf(err) == gateway.ReasonNotRetryable {
			fmt.Fprintln(s.out, DimStyle.Render("Nothing to retry."))
			return false, nil
		}
		s.printTurn(turn, err)
		return false, err
	case "clear":
		s.env.engine.Reset()
		fmt.Fprintln(s.out, DimStyle.Render("Started a new conversation."))
	case "docs":
		docs, err := s.env.registry.Refresh(ctx)
		if err != nil {
			return false, err
		}
		printDocuments(s.out, docs)
	default:
		fmt.Fprintf(s.errOut, "%s unknown command /%s (try /help)\n", WarningStyle.Render("[WARN]"), name)
	}
	return false, nil
}

func (s *chatSession) ask(ctx context.Context, question string) error {
	turn, err := s.env.engine.Ask(ctx, question)
	s.printTurn(turn, err)
	return err
}

// printTurn writes a committed answer. Failures are left to the caller.
func (s *chatSession) printTurn(turn conversation.Turn, err error) {
	if err != nil {
		return
	}
	if s.jsonMode {
		_ = NewJSONResponse("chat", AnswerData{
			Question:       turn.Question.Content,
			Answer:         turn.Reply.Content,
			Sources:        turn.Reply.Sources,
			ConversationID: s.env.engine.ConversationID(),
		}).Print(s.out)
		return
	}
	fmt.Fprintln(s.out)
	printAnswer(s.out, turn.Reply, s.env.cfg.UI.ShowSources)
	fmt.Fprintln(s.out)
}
