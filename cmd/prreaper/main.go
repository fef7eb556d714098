// Command prreaper warns about and eventually closes inactive pull requests.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "prreaper",
		Short: "Warn about and close inactive pull requests",
		Long: `prreaper scans GitHub for pull requests with no activity, posts a warning
comment on each one and closes those that stay inactive after the grace period.
Pull requests carrying an immunity label are never closed.

Configuration is read from REAPER_* environment variables, an optional .env file
and the YAML file named by REAPER_CONFIG_FILE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newOperationCmd("warn", "Post warnings on newly inactive pull requests and exit"),
		newOperationCmd("execute", "Close warned pull requests past the grace period and exit"),
		newMigrateCmd(),
		newCredentialsCmd(),
	)

	return root
}
