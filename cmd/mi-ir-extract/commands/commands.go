// Package commands provides the command line interface of mi-ir-extract.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/miremote/mi-ir-extract/internal/cli"
	"github.com/miremote/mi-ir-extract/internal/constants"
	"github.com/miremote/mi-ir-extract/internal/corpus"
	"github.com/miremote/mi-ir-extract/internal/crypt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	ctx    context.Context
	cancel context.CancelFunc
}

// appConfig holds the configuration for the application.
// Process and export flags are command specific and only come from the command line.
type appConfig struct {
	Verbosity  int    `mapstructure:"verbose"`
	JSONLogs   bool   `mapstructure:"json-logs"`
	Workers    int    `mapstructure:"workers"`
	DecryptKey string `mapstructure:"decrypt-key"`

	Watch watchConfig `mapstructure:",squash"`

	Process processConfig `mapstructure:"-"`
	Export  exportConfig  `mapstructure:"-"`
	Pronto  prontoConfig  `mapstructure:"-"`
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.cmd = &cobra.Command{
		Use:   constants.CmdName,
		Short: "Extract IR codes from Mi Remote dumps",
		Long: `Extract the infrared remote control codes bundled in Mi Remote controller API dumps.

Brand dumps are walked, their encrypted codes decrypted and turned into timing patterns
which can be reported or exported for IR tooling.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to strictly decode configuration into struct: %w", err)
			}

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Update logging after loading config if necessary
			slog.Debug("Got app config", "workers", a.config.Workers, "custom-key", a.config.DecryptKey != "")
			return nil
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	installProcessCmd(&a)
	installExportCmd(&a)
	installProntoCmd(&a)
	if err := installWatchCmd(&a); err != nil {
		return nil, err
	}
	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")
	cmd.PersistentFlags().IntVar(&app.config.Workers, "workers", runtime.NumCPU(), "number of brand documents processed concurrently")
	cmd.PersistentFlags().StringVar(&app.config.DecryptKey, "decrypt-key", "", "hexadecimal AES key of the code blobs, the built-in key if empty")
}

// Run executes the command and associated process, returning an error if any.
func (a App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup prints all goroutine stack traces and return false to signal you shouldn't quit.
func (a App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	fmt.Printf("%s", buf)
	return false
}

// Quit interrupts the running command.
func (a *App) Quit() {
	a.cancel()
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

// decryptor returns the decryptor of the configured key.
func (a App) decryptor() (*crypt.Decryptor, error) {
	d, err := crypt.NewFromHex(a.config.DecryptKey)
	if err != nil {
		a.cmd.SilenceUsage = false
		return nil, err
	}
	return d, nil
}

// newProcessor returns a corpus processor for the configuration, registering its counters on reg.
func (a App) newProcessor(reg prometheus.Registerer) (*corpus.Processor, error) {
	d, err := a.decryptor()
	if err != nil {
		return nil, err
	}

	return corpus.New(
		corpus.WithWorkers(a.config.Workers),
		corpus.WithDecryptor(d),
		corpus.WithRegisterer(reg),
		corpus.WithLogger(slog.Default()),
	)
}

// watchConfig holds the watch command settings, which can also come from the configuration.
type watchConfig struct {
	MetricsHost string        `mapstructure:"metrics-host"`
	MetricsPort int           `mapstructure:"metrics-port"`
	Debounce    time.Duration `mapstructure:"debounce"`
}
