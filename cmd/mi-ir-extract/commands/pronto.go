package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/miremote/mi-ir-extract/internal/pattern"
	"github.com/spf13/cobra"
)

type prontoConfig struct {
	Name string
}

func installProntoCmd(app *App) {
	prontoCmd := &cobra.Command{
		Use:   "pronto CODE...",
		Short: "Convert a Pronto hex code into a Flipper raw signal",
		Long: `Convert a learned Pronto hex code into a Flipper Zero raw signal.

The code words can be given as a single quoted argument or as separate arguments.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Debug("Running pronto command")
			return app.prontoRun(cmd.OutOrStdout(), strings.Join(args, " "))
		},
	}

	prontoCmd.Flags().StringVarP(&app.config.Pronto.Name, "name", "n", "", "button name of the signal")

	app.cmd.AddCommand(prontoCmd)
}

func (a App) prontoRun(stdout io.Writer, code string) error {
	p, err := pattern.ParsePronto(code, pattern.WithButton(a.config.Pronto.Name))
	if err != nil {
		a.cmd.SilenceUsage = false
		return err
	}

	_, err = fmt.Fprint(stdout, p.Flipper())
	return err
}
