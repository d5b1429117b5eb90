package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/devdock/internal/cliutil"
	"github.com/Paintersrp/devdock/internal/engine"
)

func newRunCmd(ctx *context) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "run NAME...",
		Short: "Start processes in the foreground and stream their output",
		Long: `run starts the named processes and prints their output and status
changes until every one of them has exited. Ctrl-C stops them gracefully.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, s, _, err := ctx.openManager(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			for _, name := range args {
				if _, err := mgr.Get(name); err != nil {
					_ = closeManager(cmd.Context(), mgr, s)
					return err
				}
			}

			redactor := cliutil.NewRedactor(configs(mgr)...)
			tracker := newExitTracker(args)
			printed := printEvents(streamEvents(mgr, 256), cmd.OutOrStdout(), cmd.ErrOrStderr(), jsonOutput, redactor, tracker)

			var startErrs []error
			for _, name := range args {
				if err := mgr.Start(name); err != nil {
					startErrs = append(startErrs, err)
				}
			}

			select {
			case <-cmd.Context().Done():
			case <-tracker.Done():
			}

			closeErr := closeManager(cmd.Context(), mgr, s)
			<-printed

			if len(startErrs) == len(args) {
				return errors.Join(startErrs...)
			}
			return closeErr
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit events as JSON lines")
	return cmd
}

// printEvents renders events as text or JSON lines until events closes.
// Status events are reported to tracker.
func printEvents(events <-chan engine.Event, stdout, stderr io.Writer, jsonOutput bool, redactor *cliutil.Redactor, tracker *exitTracker) <-chan struct{} {
	done := make(chan struct{})
	var enc *json.Encoder
	if jsonOutput {
		enc = json.NewEncoder(stdout)
	}
	go func() {
		defer close(done)
		for evt := range events {
			if enc != nil {
				cliutil.EncodeEvent(enc, stderr, evt, redactor)
			} else {
				fmt.Fprintln(stdout, cliutil.FormatEvent(evt, redactor))
			}
			if tracker != nil && evt.Type == engine.EventTypeStatus {
				tracker.Observe(evt.Process, evt.Status)
			}
		}
	}()
	return done
}

// exitTracker reports when every watched process has reached a terminal
// status.
type exitTracker struct {
	mu      sync.Mutex
	pending map[string]struct{}
	done    chan struct{}
	once    sync.Once
}

func newExitTracker(names []string) *exitTracker {
	t := &exitTracker{pending: make(map[string]struct{}, len(names)), done: make(chan struct{})}
	for _, name := range names {
		t.pending[name] = struct{}{}
	}
	return t
}

func (t *exitTracker) Observe(name string, status engine.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[name]; !ok {
		return
	}
	if !status.Terminal() {
		return
	}
	delete(t.pending, name)
	if len(t.pending) == 0 {
		t.once.Do(func() { close(t.done) })
	}
}

func (t *exitTracker) Done() <-chan struct{} {
	return t.done
}
