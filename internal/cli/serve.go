package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/devdock/internal/api"
	apihttp "github.com/Paintersrp/devdock/internal/api/http"
	"github.com/Paintersrp/devdock/internal/cliutil"
	"github.com/Paintersrp/devdock/internal/engine"
)

var newAPIServer = apihttp.NewServer

func newServeCmd(ctx *context) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run headless: autostart processes and expose the HTTP control API",
		Long: `serve starts every process marked autostart, serves the HTTP control
API and reloads the configuration file when it changes on disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, ctx, jsonOutput)
		},
	}
	cmd.Flags().String("addr", defaultAPIAddr, "Address for the HTTP control API")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit events as JSON lines")
	_ = ctx.v.BindPFlag("api-addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func runServe(cmd *cobra.Command, ctx *context, jsonOutput bool) error {
	mgr, s, logger, err := ctx.openManager(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	redactor := cliutil.NewRedactor(configs(mgr)...)
	printed := printEvents(streamEvents(mgr, engine.DefaultEventBuffer), cmd.OutOrStdout(), cmd.ErrOrStderr(), jsonOutput, redactor, nil)

	shutdown := func(runErr error) error {
		closeErr := closeManager(cmd.Context(), mgr, s)
		<-printed
		if runErr != nil {
			return runErr
		}
		return closeErr
	}

	listener, err := net.Listen("tcp", s.APIAddr)
	if err != nil {
		return shutdown(fmt.Errorf("listen %s: %w", s.APIAddr, err))
	}
	server, err := newAPIServer(apihttp.Config{
		Addr:       s.APIAddr,
		Listener:   listener,
		Controller: api.NewManagerController(mgr),
	})
	if err != nil {
		_ = listener.Close()
		return shutdown(err)
	}

	runCtx, cancel := stdcontext.WithCancel(cmd.Context())
	defer cancel()

	var background sync.WaitGroup
	background.Add(1)
	go func() {
		defer background.Done()
		watchConfig(runCtx, mgr, logger)
	}()

	if err := mgr.AutoStart(); err != nil {
		logger.Warn("autostart incomplete", slog.Any("error", err))
	}
	logger.Info("control API listening", slog.String("addr", server.Addr()))

	serveErr := server.Run(runCtx)
	cancel()
	background.Wait()
	if errors.Is(serveErr, stdcontext.Canceled) {
		serveErr = nil
	}
	return shutdown(serveErr)
}

// watchConfig reconciles the manager with external edits of the config file
// until ctx is done.
func watchConfig(ctx stdcontext.Context, mgr *engine.Manager, logger *slog.Logger) {
	store := mgr.Store()
	err := store.Watch(ctx, func() {
		// Stops of removed processes get the full grace period.
		if err := mgr.Reload(stdcontext.WithoutCancel(ctx)); err != nil {
			logger.Warn("reload configuration", slog.String("path", store.Path()), slog.Any("error", err))
			return
		}
		logger.Info("configuration reloaded", slog.String("path", store.Path()))
	}, func(err error) {
		logger.Warn("watch configuration", slog.String("path", store.Path()), slog.Any("error", err))
	})
	if err != nil {
		logger.Warn("configuration watcher stopped", slog.Any("error", err))
	}
}
