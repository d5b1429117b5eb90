package cli

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Paintersrp/devdock/internal/cliutil"
	"github.com/Paintersrp/devdock/internal/engine"
	"github.com/Paintersrp/devdock/internal/tui"
)

func newTuiCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive process interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !supportsInteractiveOutput(cmd) {
				return fmt.Errorf("tui requires an interactive terminal")
			}
			return runTUI(cmd, ctx)
		},
	}
	return cmd
}

func supportsInteractiveOutput(cmd *cobra.Command) bool {
	out, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	in, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(out.Fd())) && term.IsTerminal(int(in.Fd()))
}

func runTUI(cmd *cobra.Command, ctx *context) error {
	s, err := ctx.settings()
	if err != nil {
		return err
	}
	appLog, err := openAppLog(s.LogDir)
	if err != nil {
		return err
	}
	defer appLog.Close()

	mgr, s, logger, err := ctx.openManager(appLog)
	if err != nil {
		return err
	}

	ui := tui.New(mgr, tui.WithRedactor(cliutil.NewRedactor(configs(mgr)...)))
	forwarded := forwardEvents(streamEvents(mgr, 256), ui.EventSink())

	var autostart sync.WaitGroup
	autostart.Add(1)
	go func() {
		defer autostart.Done()
		if err := mgr.AutoStart(); err != nil {
			logger.Warn("autostart incomplete", slog.Any("error", err))
		}
	}()

	runErr := ui.Run(cmd.Context())

	autostart.Wait()
	closeErr := closeManager(cmd.Context(), mgr, s)
	<-forwarded
	ui.CloseEvents()

	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", closeErr)
	}
	return nil
}

// forwardEvents copies events into sink until events closes.
func forwardEvents(events <-chan engine.Event, sink chan<- engine.Event) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range events {
			sink <- evt
		}
	}()
	return done
}
