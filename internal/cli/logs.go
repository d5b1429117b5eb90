package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/devdock/internal/desktop"
	"github.com/Paintersrp/devdock/internal/engine"
)

// opener is swapped in tests.
var opener = desktop.Default

func newLogsCmd(ctx *context) *cobra.Command {
	var open bool
	cmd := &cobra.Command{
		Use:   "logs NAME",
		Short: "Print or open the log file of a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(mgr *engine.Manager) error {
				snap, err := mgr.Get(args[0])
				if err != nil {
					return err
				}
				if open {
					return opener.OpenLog(snap.LogPath)
				}
				f, err := os.Open(snap.LogPath)
				if errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("%w: %s", desktop.ErrLogNotFound, snap.LogPath)
				}
				if err != nil {
					return err
				}
				defer f.Close()
				_, err = io.Copy(cmd.OutOrStdout(), f)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "Open the log file in the desktop viewer instead of printing it")
	return cmd
}

func newOpenCmd(ctx *context) *cobra.Command {
	return &cobra.Command{
		Use:   "open NAME",
		Short: "Open the expected port of a process in the browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(mgr *engine.Manager) error {
				snap, err := mgr.Get(args[0])
				if err != nil {
					return err
				}
				url, err := opener.OpenBrowser(snap.Config.ExpectedPort)
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "opened %s\n", url)
				return nil
			})
		},
	}
}
