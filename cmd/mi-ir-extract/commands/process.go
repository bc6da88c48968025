package commands

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/miremote/mi-ir-extract/internal/fileutils"
	"github.com/miremote/mi-ir-extract/internal/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type processConfig struct {
	ReportFormat string
	Output       string
}

func installProcessCmd(app *App) {
	processCmd := &cobra.Command{
		Use:   "process DIR",
		Short: "Extract the patterns of every brand dump of a directory and report on them",
		Long: `Extract the patterns of every brand dump (*.json) of DIR and print a report with the
number of models, patterns and skipped codes per document.

A document which cannot be parsed is reported as failed without stopping the run.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := report.ParseFormat(app.config.Process.ReportFormat); err != nil {
				app.cmd.SilenceUsage = false
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Debug("Running process command")
			return app.processRun(cmd.OutOrStdout(), args[0])
		},
	}

	processCmd.Flags().StringVarP(&app.config.Process.ReportFormat, "report-format", "f", "text", "report format, one of text, json, yaml or toml")
	processCmd.Flags().StringVarP(&app.config.Process.Output, "output", "o", "", "write the report to this file instead of stdout")

	if err := processCmd.MarkFlagFilename("output"); err != nil {
		panic(fmt.Sprintf("failed to mark output flag as filename: %v", err))
	}

	app.cmd.AddCommand(processCmd)
}

func (a App) processRun(stdout io.Writer, dir string) error {
	format, err := report.ParseFormat(a.config.Process.ReportFormat)
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

	var out bytes.Buffer
	if err := report.New(res).Write(&out, format); err != nil {
		return fmt.Errorf("could not render report: %v", err)
	}

	if a.config.Process.Output == "" {
		_, err := stdout.Write(out.Bytes())
		return err
	}
	if err := fileutils.AtomicWrite(a.config.Process.Output, out.Bytes(), 0644); err != nil {
		return fmt.Errorf("could not write report: %v", err)
	}
	slog.Info("Report written", "file", a.config.Process.Output)
	return nil
}
