package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/devdock/internal/config"
)

func newConfigCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with the process configuration file",
	}
	cmd.AddCommand(newConfigLintCmd(ctx))
	return cmd
}

func newConfigLintCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Validate the process configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.settings()
			if err != nil {
				return err
			}

			procs, err := config.NewStore(s.ConfigPath).Load()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d processes)\n", s.ConfigPath, len(procs))
			return nil
		},
	}
	return cmd
}
