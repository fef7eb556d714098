package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	githubadapter "github.com/ericfisherdev/prreaper/internal/adapter/driven/github"
	"github.com/ericfisherdev/prreaper/internal/domain/port/driven"
)

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage credentials stored encrypted in the SQLite database",
		Long: `Stored credentials are encrypted with AES-256-GCM under REAPER_SECRET_KEY
(64 hex characters). A token set through REAPER_GITHUB_TOKEN takes precedence
over the stored one.`,
	}

	cmd.AddCommand(newSetTokenCmd(), newDeleteTokenCmd(), newListCredentialsCmd())
	return cmd
}

// openCredentialApp opens the app and checks that it has a credential store.
func openCredentialApp(cmd *cobra.Command) (*app, error) {
	a, err := openApp(cmd.Context())
	if err != nil {
		return nil, err
	}
	if a.credentials == nil {
		a.Close()
		return nil, errors.New("credentials are only stored by the sqlite store")
	}
	return a, nil
}

func newSetTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-token <token>",
		Short: "Validate a GitHub token and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openCredentialApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.SecretKey == nil {
				return driven.ErrEncryptionKeyNotSet
			}

			login, err := githubadapter.NewClient(args[0]).AuthenticatedUser(ctx)
			if err != nil {
				return err
			}

			if err := a.credentials.Set(ctx, githubCredential, args[0]); err != nil {
				return err
			}

			a.logger.Info("github token stored", "login", login)
			fmt.Fprintf(cmd.OutOrStdout(), "stored GitHub token for %s\n", login)
			return nil
		},
	}
}

func newDeleteTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-token",
		Short: "Remove the stored GitHub token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openCredentialApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.credentials.Delete(cmd.Context(), githubCredential); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "stored GitHub token removed")
			return nil
		},
	}
}

func newListCredentialsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credentials without their values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openCredentialApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			creds, err := a.credentials.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVICE\tUPDATED")
			for _, c := range creds {
				fmt.Fprintf(w, "%s\t%s\n", c.Service, c.UpdatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}
