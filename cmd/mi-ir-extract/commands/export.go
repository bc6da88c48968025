package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/miremote/mi-ir-extract/internal/constants"
	"github.com/miremote/mi-ir-extract/internal/export"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var errUnknownExportFormat = errors.New("unknown export format")

const (
	formatFlipper = "flipper"
	formatTVKill  = "tvkill"
	formatMsgPack = "msgpack"
)

var exportFormats = []string{formatFlipper, formatTVKill, formatMsgPack}

type exportConfig struct {
	Format  string
	Output  string
	Keysets string
	Buttons []string
}

func installExportCmd(app *App) {
	exportCmd := &cobra.Command{
		Use:   "export DIR",
		Short: "Export the patterns of every brand dump of a directory",
		Long: `Export the patterns of every brand dump (*.json) of DIR for IR tooling.

Formats:
  flipper  one Flipper Zero .ir file per model, written in the output directory
  tvkill   a TV-Kill patterns file holding the requested buttons, written at output
  msgpack  a MessagePack dump of every pattern, written at output

Flipper exports append the codes of the keyset models found in the keysets directory,
which defaults to DIR/` + constants.KeysetFolder + `.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			app.config.Export.Format = strings.ToLower(app.config.Export.Format)
			if !slices.Contains(exportFormats, app.config.Export.Format) {
				app.cmd.SilenceUsage = false
				return fmt.Errorf("%w %q, expected one of %s", errUnknownExportFormat, app.config.Export.Format, strings.Join(exportFormats, ", "))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Debug("Running export command", "format", app.config.Export.Format)
			return app.exportRun(args[0])
		},
	}

	exportCmd.Flags().StringVarP(&app.config.Export.Format, "format", "f", formatFlipper, "export format, one of "+strings.Join(exportFormats, ", "))
	exportCmd.Flags().StringVarP(&app.config.Export.Output, "output", "o", "", "output directory for flipper, output file otherwise (default in the user cache directory)")
	exportCmd.Flags().StringVar(&app.config.Export.Keysets, "keysets", "", "directory of the keyset model dumps (default DIR/"+constants.KeysetFolder+")")
	exportCmd.Flags().StringSliceVar(&app.config.Export.Buttons, "buttons", export.DefaultTVKillButtons, "buttons exported for tvkill")

	if err := exportCmd.MarkFlagDirname("keysets"); err != nil {
		panic(fmt.Sprintf("failed to mark keysets flag as directory: %v", err))
	}

	app.cmd.AddCommand(exportCmd)
}

func (a App) exportRun(dir string) error {
	d, err := a.decryptor()
	if err != nil {
		return err
	}

	proc, err := a.newProcessor(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	res, err := proc.ProcessDirectory(a.ctx, dir)
	if err != nil {
		return err
	}

	output := a.config.Export.Output
	switch a.config.Export.Format {
	case formatFlipper:
		if output == "" {
			output = filepath.Join(constants.GetDefaultOutputPath(), formatFlipper)
		}
		keysets := a.config.Export.Keysets
		if keysets == "" {
			keysets = filepath.Join(dir, constants.KeysetFolder)
		}
		err = export.Flipper(output, res, keysets, export.WithDecryptor(d), export.WithLogger(slog.Default()))
	case formatTVKill:
		if output == "" {
			output = filepath.Join(constants.GetDefaultOutputPath(), formatTVKill+".json")
		}
		err = export.TVKill(output, res, a.config.Export.Buttons)
	case formatMsgPack:
		if output == "" {
			output = filepath.Join(constants.GetDefaultOutputPath(), "patterns.msgpack")
		}
		err = export.MsgPack(output, res)
	}
	if err != nil {
		return err
	}

	slog.Info("Export written", "format", a.config.Export.Format, "output", output, "patterns", res.Total)
	return nil
}
