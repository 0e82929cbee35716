// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/knowhub/internal/model"
)

func newAskCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Ask one question about your documents",
		Example: `  knowhub ask "What is the refund policy?"
  knowhub ask --json how long is the warranty`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer e.close()

			question := strings.Join(args, " ")
			turn, err := e.engine.Ask(cmd.Context(), question)
			if err != nil {
				return err
			}

			if opts.json {
				return NewJSONResponse(commandName(cmd), AnswerData{
					Question:       turn.Question.Content,
					Answer:         turn.Reply.Content,
					Sources:        turn.Reply.Sources,
					ConversationID: e.engine.ConversationID(),
				}).Print(cmd.OutOrStdout())
			}
			printAnswer(cmd.OutOrStdout(), turn.Reply, e.cfg.UI.ShowSources)
			return nil
		},
	}
}

// printAnswer writes a committed reply wrapped to the terminal, followed
// by its sources.
func printAnswer(w io.Writer, reply model.Message, showSources bool) {
	fmt.Fprintln(w, ValueStyle.Render(WrapText(reply.Content, GetTerminalWidth())))
	if showSources && len(reply.Sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, DimStyle.Render("Sources:"))
		for _, src := range reply.Sources {
			fmt.Fprintf(w, "  %s %s\n", DimStyle.Render("•"), src)
		}
	}
}
