// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jeranaias/knowhub/internal/gateway"
	"github.com/jeranaias/knowhub/internal/registry"
	"github.com/jeranaias/knowhub/internal/util"
)

// UploadAccepted is printed when the service accepts a document.
const UploadAccepted = "Document accepted for processing!"

func newDocsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List, upload and watch documents",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		newDocsListCmd(opts),
		newDocsUploadCmd(opts),
		newDocsWatchCmd(opts),
	)
	return cmd
}

// =============================================================================
// LIST
// =============================================================================

func newDocsListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your documents",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer e.close()

			docs, err := e.registry.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json {
				return NewJSONResponse(commandName(cmd), documentsData(docs)).Print(cmd.OutOrStdout())
			}
			printDocuments(cmd.OutOrStdout(), docs)
			return nil
		},
	}
}

// printDocuments writes one line per document:
// STATUS  ID  Title  FORMAT • size • date
func printDocuments(w io.Writer, docs []registry.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No documents yet. Upload one with `knowhub docs upload FILE --title TITLE`."))
		return
	}
	titleWidth := max(GetTerminalWidth()-70, 20)
	for _, d := range docs {
		fmt.Fprintf(w, "%s %s  %s  %s\n",
			RenderDocumentStatus(d.Status),
			util.PadWidth(util.TruncateWidth(d.ID(), 24), 24),
			ValueStyle.Render(util.PadWidth(util.TruncateWidth(d.Title, titleWidth), titleWidth)),
			DimStyle.Render(d.Meta()))
	}
}

// =============================================================================
// UPLOAD
// =============================================================================

func newDocsUploadCmd(opts *globalOptions) *cobra.Command {
	var (
		title  string
		format string
		wait   bool
	)
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a document for processing",
		Long: `Upload a document. The format is taken from the file extension unless
--format is given. With --wait the command returns once the service has
finished processing the document.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer e.close()

			f, size, err := openUpload(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			doc, err := e.registry.Submit(cmd.Context(), registry.Upload{
				Title:    title,
				Filename: filepath.Base(args[0]),
				Format:   format,
				Content:  f,
				Size:     size,
			})
			if errors.Is(err, registry.ErrRefreshAfterSubmit) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", WarningStyle.Render("[WARN]"), "The document list could not be refreshed.")
				err = nil
			}
			if err != nil {
				return err
			}

			if wait {
				if !opts.json {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", SuccessStyle.Render("[OK]"), UploadAccepted)
				}
				if err := e.registry.Poll(cmd.Context(), e.pollInterval()); err != nil {
					return err
				}
				if latest, ok := e.registry.Get(doc.LocalID); ok {
					doc = latest
				}
			}

			if opts.json {
				return NewJSONResponse(commandName(cmd), documentData(doc)).Print(cmd.OutOrStdout())
			}
			out := cmd.OutOrStdout()
			if !wait {
				fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("[OK]"), UploadAccepted)
			}
			printDocuments(out, []registry.Document{doc})
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "document title (required)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "declared format, e.g. pdf (default: file extension)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait until processing finishes")
	return cmd
}

// openUpload opens path for reading. Directories are rejected.
func openUpload(path string) (*os.File, int64, error) {
	path = expandHome(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, gateway.Validation(gateway.ReasonMissingTitleOrFile, path+" is a directory")
	}
	return f, info.Size(), nil
}

// expandHome resolves a leading "~/".
func expandHome(path string) string {
	if path == "~" || len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// =============================================================================
// WATCH
// =============================================================================

func newDocsWatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow documents until they finish processing",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer e.close()

			docs, err := e.registry.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !opts.json {
				printDocuments(out, docs)
			}

			if err := watchDocuments(cmd.Context(), e, out, !opts.json); err != nil {
				return err
			}
			if opts.json {
				return NewJSONResponse(commandName(cmd), documentsData(e.registry.Documents())).Print(out)
			}
			fmt.Fprintln(out, DimStyle.Render("All documents are processed."))
			return nil
		},
	}
}

// watchDocuments polls until nothing is pending, printing each status
// change when verbose is set.
func watchDocuments(ctx context.Context, e *env, out io.Writer, verbose bool) error {
	seen := make(map[string]registry.Status)
	for _, d := range e.registry.Documents() {
		seen[d.ID()] = d.Status
	}

	// Poll refreshes on this goroutine, so the callback never runs
	// concurrently with itself.
	e.registry.SetChangeCallback(func() {
		for _, d := range e.registry.Documents() {
			prev, ok := seen[d.ID()]
			seen[d.ID()] = d.Status
			if !verbose || (ok && prev == d.Status) {
				continue
			}
			fmt.Fprintf(out, "%s %s\n", RenderDocumentStatus(d.Status), d.Title)
		}
	})
	defer e.registry.SetChangeCallback(nil)

	return e.registry.Poll(ctx, e.pollInterval())
}
