package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/idilsaglam/kanban/internal/auth"
	"github.com/idilsaglam/kanban/internal/ui"
)

func (a *app) authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the API token",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return usagef("usage: board auth <login|logout|status>")
		},
	}
	cmd.AddCommand(a.authLoginCmd(), a.authLogoutCmd(), a.authStatusCmd())
	return cmd
}

func (a *app) authLoginCmd() *cobra.Command {
	var (
		token   string
		expires time.Duration
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save a token to ~/.kanban/credentials.json",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				read, err := a.readToken(cmd)
				if err != nil {
					return failf("read token: %v", err)
				}
				token = read
			}
			var exp *time.Time
			if expires > 0 {
				t := time.Now().Add(expires).UTC()
				exp = &t
			}
			store, err := a.authStore()
			if err != nil {
				return failf("login: %v", err)
			}
			if err := store.Save(token, exp); err != nil {
				if err == auth.ErrEmptyToken {
					return usagef("login: empty token")
				}
				return failf("save token: %v", err)
			}
			ui.OK("logged in")
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token to save (read from stdin when omitted)")
	cmd.Flags().DurationVar(&expires, "expires-in", 0, "record an expiry for the token")
	return cmd
}

// readToken prompts without echo on a terminal and reads one line otherwise.
func (a *app) readToken(cmd *cobra.Command) (string, error) {
	if f, ok := a.opt.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), "Paste your token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		return string(b), err
	}
	line, err := bufio.NewReader(a.opt.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) authLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the saved token",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.authStore()
			if err != nil {
				return failf("logout: %v", err)
			}
			ti, _ := store.Token()
			if ti != nil && ti.Source == "env" {
				ui.OK("token is provided by " + auth.EnvToken + " env var (nothing to delete)")
				return nil
			}
			if err := store.Delete(); err != nil {
				return failf("logout: %v", err)
			}
			ui.OK("logged out")
			return nil
		},
	}
}

func (a *app) authStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the token comes from",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			store, err := a.authStore()
			if err != nil {
				return failf("status: %v", err)
			}
			ti, err := store.Token()
			if err != nil {
				return failf("status: %v", err)
			}
			if ti == nil {
				fmt.Fprintln(out, ui.C(ui.Current().Muted, "not logged in"))
				fmt.Fprintln(out, "Run: board auth login")
				return nil
			}
			fmt.Fprintf(out, "source: %s\n", ti.Source)
			switch {
			case ti.ExpiresAt == nil:
				fmt.Fprintln(out, "expires: (unknown)")
			case ti.Expired(time.Now()):
				fmt.Fprintf(out, "expires: %s %s\n", ti.ExpiresAt.UTC().Format(time.RFC3339), ui.C(ui.Current().Error, "(expired)"))
			default:
				fmt.Fprintf(out, "expires: %s\n", ti.ExpiresAt.UTC().Format(time.RFC3339))
			}
			fmt.Fprintln(out, "env override: "+auth.EnvToken)
			return nil
		},
	}
}
