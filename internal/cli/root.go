package cli

import (
	stdcontext "context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Paintersrp/devdock/internal/config"
	"github.com/Paintersrp/devdock/internal/engine"
	"github.com/Paintersrp/devdock/internal/logfile"
	"github.com/Paintersrp/devdock/internal/logmux"
)

const (
	envPrefix       = "DEVDOCK"
	defaultAPIAddr  = "127.0.0.1:7663"
	defaultLogLevel = "info"
	appLogName      = "devdock.log"
	// shutdownGrace bounds a full Close on top of the stop window.
	shutdownGrace = 5 * time.Second
)

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("api-addr", defaultAPIAddr)

	root := &cobra.Command{
		Use:   "devdock",
		Short: "Local development process supervisor",
		Long: `devdock starts, stops and watches the local development processes
listed in its configuration file: dev servers, scripts and databases.`,
	}

	flags := root.PersistentFlags()
	flags.String("config", config.DefaultPath, "Path to the process configuration file (.json or .yaml)")
	flags.String("log-dir", logfile.DefaultDirectory, "Directory for per-process log files")
	flags.Duration("stop-timeout", engine.DefaultStopTimeout, "Grace period before a stopping process is killed")
	flags.String("log-level", defaultLogLevel, "Log level (debug, info, warn, error)")
	for _, name := range []string{"config", "log-dir", "stop-timeout", "log-level"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	ctx := &context{v: v}
	root.AddCommand(newTuiCmd(ctx))
	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newListCmd(ctx))
	root.AddCommand(newAddCmd(ctx))
	root.AddCommand(newRemoveCmd(ctx))
	root.AddCommand(newDuplicateCmd(ctx))
	root.AddCommand(newLogsCmd(ctx))
	root.AddCommand(newOpenCmd(ctx))
	root.AddCommand(newServeCmd(ctx))
	root.AddCommand(newConfigCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// context carries the settings shared by every command.
type context struct {
	v *viper.Viper
}

type settings struct {
	ConfigPath  string
	LogDir      string
	StopTimeout time.Duration
	LogLevel    slog.Level
	APIAddr     string
}

func (c *context) settings() (settings, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.v.GetString("log-level"))); err != nil {
		return settings{}, fmt.Errorf("invalid log level %q: %w", c.v.GetString("log-level"), err)
	}
	timeout := c.v.GetDuration("stop-timeout")
	if timeout <= 0 {
		return settings{}, fmt.Errorf("stop timeout must be positive, got %s", timeout)
	}
	s := settings{
		ConfigPath:  c.v.GetString("config"),
		LogDir:      c.v.GetString("log-dir"),
		StopTimeout: timeout,
		LogLevel:    level,
		APIAddr:     c.v.GetString("api-addr"),
	}
	if s.ConfigPath == "" {
		s.ConfigPath = config.DefaultPath
	}
	if s.LogDir == "" {
		s.LogDir = logfile.DefaultDirectory
	}
	return s, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openAppLog opens <log-dir>/devdock.log for the interactive mode, where
// stderr belongs to the terminal UI.
func openAppLog(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, appLogName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// openManager loads the configuration (seeding defaults when absent) and
// returns a manager whose diagnostics go to logOut.
func (c *context) openManager(logOut io.Writer) (*engine.Manager, settings, *slog.Logger, error) {
	s, err := c.settings()
	if err != nil {
		return nil, settings{}, nil, err
	}
	logger := newLogger(logOut, s.LogLevel)
	mgr := engine.NewManager(config.NewStore(s.ConfigPath), engine.Options{
		LogDir:      s.LogDir,
		StopTimeout: s.StopTimeout,
		Logger:      logger,
	}, 0)
	seeded, err := mgr.Load()
	if err != nil {
		return nil, settings{}, nil, err
	}
	if seeded {
		logger.Info("wrote default configuration", slog.String("path", s.ConfigPath))
	}
	return mgr, s, logger, nil
}

// closeManager stops every child without inheriting cancellation from the
// command context, which is usually already done after Ctrl-C.
func closeManager(ctx stdcontext.Context, mgr *engine.Manager, s settings) error {
	closeCtx, cancel := stdcontext.WithTimeout(stdcontext.WithoutCancel(ctx), s.StopTimeout+shutdownGrace)
	defer cancel()
	return mgr.Close(closeCtx)
}

// streamEvents routes the manager's events through a log mux. The returned
// channel closes after the manager is closed and every event is delivered.
func streamEvents(mgr *engine.Manager, buffer int) <-chan engine.Event {
	mux := logmux.New(buffer)
	mux.Add(mgr.Events())
	go mux.Close()
	return mux.Output()
}

func configs(mgr *engine.Manager) []config.Process {
	snaps := mgr.List()
	out := make([]config.Process, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, snap.Config)
	}
	return out
}
