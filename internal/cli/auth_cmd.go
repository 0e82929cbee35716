// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/knowhub/internal/session"
)

// =============================================================================
// LOGIN / SIGNUP
// =============================================================================

func newLoginCmd(opts *globalOptions) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session credential",
		Long: `Sign in with an email and password. The password is read from the
terminal without echo, or from the next line of stdin when piped.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer e.close()

			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			if email == "" {
				if email, err = p.Line("Email: "); err != nil {
					return err
				}
			}
			password, err := p.Password("Password: ")
			if err != nil {
				return err
			}

			cred, err := e.store.Login(cmd.Context(), strings.TrimSpace(email), password)
			if err != nil {
				return err
			}
			return printSignedIn(cmd, opts, cred, strings.TrimSpace(email))
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email (prompted when omitted)")
	return cmd
}

func newSignupCmd(opts *globalOptions) *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer e.close()

			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			if name == "" {
				if name, err = p.Line("Name: "); err != nil {
					return err
				}
			}
			if email == "" {
				if email, err = p.Line("Email: "); err != nil {
					return err
				}
			}
			password, err := p.Password("Password: ")
			if err != nil {
				return err
			}

			cred, err := e.store.Signup(cmd.Context(), strings.TrimSpace(email), password, strings.TrimSpace(name))
			if err != nil {
				return err
			}
			return printSignedIn(cmd, opts, cred, strings.TrimSpace(email))
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email (prompted when omitted)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name (prompted when omitted)")
	return cmd
}

// printSignedIn reports the new session. Opaque tokens carry no claims, so
// the typed email stands in for the name.
func printSignedIn(cmd *cobra.Command, opts *globalOptions, cred session.Credential, email string) error {
	data := userData(cred)
	if data.Email == "" {
		data.Email = email
	}
	if opts.json {
		return NewJSONResponse(commandName(cmd), data).Print(cmd.OutOrStdout())
	}

	who := cred.DisplayName()
	if cred.Claims.Name == "" && cred.Claims.Email == "" && email != "" {
		who = email
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Signed in as %s\n", SuccessStyle.Render("[OK]"), who)
	return nil
}

func userData(cred session.Credential) UserData {
	data := UserData{
		Name:    cred.Claims.Name,
		Email:   cred.Claims.Email,
		Subject: cred.Claims.Subject,
	}
	if !cred.Claims.ExpiresAt.IsZero() {
		exp := cred.Claims.ExpiresAt
		data.ExpiresAt = &exp
	}
	return data
}

// =============================================================================
// LOGOUT / WHOAMI
// =============================================================================

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session credential",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.store.Logout(); err != nil {
				return err
			}
			if opts.json {
				return NewJSONResponse(commandName(cmd), map[string]bool{"signed_out": true}).Print(cmd.OutOrStdout())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Signed out.\n", SuccessStyle.Render("[OK]"))
			return nil
		},
	}
}

func newWhoamiCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Long: `Show the signed-in user as decoded from the stored credential. The
service is not contacted, so a revoked credential still shows here until
the next request is refused.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(opts)
			if err != nil {
				return err
			}
			defer e.close()

			cred, ok := e.store.Current()
			if !ok {
				return errNotSignedIn
			}
			if opts.json {
				return NewJSONResponse(commandName(cmd), userData(cred)).Print(cmd.OutOrStdout())
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s%s\n", RenderLabel("User"), ValueStyle.Render(cred.DisplayName()))
			if cred.Claims.Email != "" {
				fmt.Fprintf(out, "%s%s\n", RenderLabel("Email"), ValueStyle.Render(cred.Claims.Email))
			}
			if !cred.Claims.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "%s%s\n", RenderLabel("Expires"), ValueStyle.Render(cred.Claims.ExpiresAt.Local().Format("Jan 2, 2006 15:04")))
			}
			fmt.Fprintf(out, "%s%s\n", RenderLabel("Server"), ValueStyle.Render(e.cfg.Server.URL))
			return nil
		},
	}
}
