// Package daemon provides the auspice command line: the view server and the dataset tooling around it.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/nextstrain/auspice/internal/catalog"
	"github.com/nextstrain/auspice/internal/charon"
	"github.com/nextstrain/auspice/internal/cli"
	"github.com/nextstrain/auspice/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	daemon  *charon.Server
	serving atomic.Bool
	// catalog lists the data directories of the view server. Hup rescans it.
	catalog atomic.Pointer[catalog.Catalog]

	// ctx is cancelled by Quit to interrupt the one shot commands.
	ctx    context.Context
	cancel context.CancelFunc

	ready chan struct{}
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int        `mapstructure:"verbosity"`
	JSONLogs  bool       `mapstructure:"jsonlogs" yaml:"jsonlogs"`
	View      viewConfig `mapstructure:"view"`
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{ready: make(chan struct{})}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.cmd = &cobra.Command{
		Use:           constants.CmdName,
		Short:         "Interactive visualisation of pathogen evolution",
		Long:          "Auspice serves phylogenomic datasets and narratives to the auspice client, and converts and inspects them.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := cli.Unmarshal(a.viper, &a.config); err != nil {
				return err
			}
			slog.Debug("got app config", "config", a.config)

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	a.installView()
	a.installConvert()
	a.installList()
	a.installNarrative()
	a.installGenomeDB()
	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "write logs as JSON")
}

// Run executes the command and associated process, returning an error if any.
func (a *App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a *App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup makes a running view server rescan its data directories on the next request, then prints all
// goroutine stack traces. It returns false: SIGHUP never stops auspice.
func (a *App) Hup() (shouldQuit bool) {
	if c := a.catalog.Load(); c != nil {
		slog.Info("Rescanning data directories")
		c.Invalidate()
	}

	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	fmt.Printf("%s", buf[:n])
	return false
}

// Quit gracefully shuts down the view server, or interrupts the running command.
func (a *App) Quit() {
	if !a.serving.Load() {
		a.cancel()
		return
	}
	a.WaitReady()
	if a.daemon != nil {
		a.daemon.Quit(false)
	}
}

// WaitReady waits for the view server to be ready.
func (a *App) WaitReady() {
	<-a.ready
}

// RootCmd returns the root command.
func (a *App) RootCmd() cobra.Command {
	return *a.cmd
}
