package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
)

// newOperationCmd builds a one-shot command for an external scheduler. The
// exit status is non-zero when the operation fails.
func newOperationCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			op, err := model.ParseOperation(name)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			runner, err := a.newRunner(ctx, nil)
			if err != nil {
				return err
			}

			run, err := runner.Run(ctx, op)
			if err != nil {
				return err
			}

			s := run.Summary
			fmt.Fprintf(cmd.OutOrStdout(),
				"%s complete: candidates=%d warned=%d executed=%d reactivated=%d immunized=%d skipped=%d\n",
				op, s.Candidates, s.Warned, s.Executed, s.Reactivated, s.Immunized, s.Skipped,
			)
			return nil
		},
	}
}
