package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/devdock/internal/api"
	"github.com/Paintersrp/devdock/internal/config"
	"github.com/Paintersrp/devdock/internal/engine"
	"github.com/Paintersrp/devdock/internal/launch"
	"github.com/Paintersrp/devdock/internal/probe"
)

// withManager runs fn against a freshly loaded manager and closes it after.
func (c *context) withManager(cmd *cobra.Command, fn func(mgr *engine.Manager) error) error {
	mgr, s, _, err := c.openManager(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	err = fn(mgr)
	if closeErr := closeManager(cmd.Context(), mgr, s); err == nil {
		err = closeErr
	}
	return err
}

func newListCmd(ctx *context) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(mgr *engine.Manager) error {
				snaps := mgr.List()
				if jsonOutput {
					reports := make([]api.ProcessReport, 0, len(snaps))
					for _, snap := range snaps {
						reports = append(reports, api.ReportFromSnapshot(snap))
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(reports)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tMODE\tPORT\tAUTOSTART\tWORKDIR\tCOMMAND")
				for _, snap := range snaps {
					cfg := snap.Config
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n",
						cfg.Name,
						launch.ResolveMode(cfg.Mode, cfg.Args),
						formatPort(cfg.ExpectedPort, probe.IsPortBusy),
						cfg.AutoStart,
						dash(cfg.WorkingDir),
						cfg.CommandLine(),
					)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the list as JSON")
	return cmd
}

// formatPort marks ports that are already taken on the loopback interface.
func formatPort(port int, busy func(int) bool) string {
	if port <= 0 {
		return "-"
	}
	text := strconv.Itoa(port)
	if busy != nil && busy(port) {
		text += " (in use)"
	}
	return text
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

type addOptions struct {
	name      string
	preset    string
	target    string
	command   string
	args      []string
	port      int
	workdir   string
	autostart bool
}

func newAddCmd(ctx *context) *cobra.Command {
	var opts addOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a process to the configuration",
		Example: `  devdock add --name docs --preset python-http --target ./site --port 8000
  devdock add --name api --command node --arg server.js --port 3000
  devdock add --name clock --command 'while true; do date; sleep 1; done'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.build()
			if err != nil {
				return err
			}
			return ctx.withManager(cmd, func(mgr *engine.Manager) error {
				if err := mgr.Add(cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s: %s\n", cfg.Name, cfg.CommandLine())
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.name, "name", "", "Unique process name")
	flags.StringVar(&opts.preset, "preset", "", fmt.Sprintf("Command preset (%s)", joinIDs(launch.PresetIDs())))
	flags.StringVar(&opts.target, "target", "", "Script, folder or command line the preset runs")
	flags.StringVar(&opts.command, "command", "", "Command to run; with --arg it is executed directly, otherwise by the shell")
	flags.StringArrayVar(&opts.args, "arg", nil, "Argument passed to --command (repeatable)")
	flags.IntVar(&opts.port, "port", 0, "Port the process is expected to listen on")
	flags.StringVar(&opts.workdir, "workdir", "", "Working directory")
	flags.BoolVar(&opts.autostart, "autostart", false, "Start the process when devdock starts")
	_ = cmd.MarkFlagRequired("name")
	cmd.MarkFlagsMutuallyExclusive("preset", "command")
	return cmd
}

func (o addOptions) build() (config.Process, error) {
	var spec launch.Spec
	switch {
	case o.preset != "":
		preset, ok := launch.LookupPreset(o.preset)
		if !ok {
			return config.Process{}, fmt.Errorf("unknown preset %q (available: %s)", o.preset, joinIDs(launch.PresetIDs()))
		}
		built, err := preset.Build(o.target, o.port)
		if err != nil {
			return config.Process{}, err
		}
		spec = built
	case o.command != "":
		spec = launch.Spec{Command: o.command, Args: o.args, Port: o.port}
		if len(o.args) > 0 {
			spec.Mode = launch.ModeExec
		} else {
			spec.Mode = launch.ModeShell
		}
	default:
		return config.Process{}, errors.New("one of --preset or --command is required")
	}

	cfg := config.FromSpec(o.name, spec)
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = o.workdir
	}
	cfg.AutoStart = o.autostart
	if err := cfg.Validate(); err != nil {
		return config.Process{}, err
	}
	return cfg, nil
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ", ")
}

func newRemoveCmd(ctx *context) *cobra.Command {
	return &cobra.Command{
		Use:     "rm NAME",
		Aliases: []string{"remove"},
		Short:   "Remove a process from the configuration",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(mgr *engine.Manager) error {
				if err := mgr.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	}
}

func newDuplicateCmd(ctx *context) *cobra.Command {
	return &cobra.Command{
		Use:   "dup NAME",
		Short: "Duplicate a process configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(cmd, func(mgr *engine.Manager) error {
				dup, err := mgr.Duplicate(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "duplicated %s as %s\n", args[0], dup.Name)
				return nil
			})
		},
	}
}
