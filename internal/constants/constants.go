// Package constants is responsible for defining the constants used in the application.
// It also provides utility functions to get the default configuration and output paths.
package constants

import (
	"log/slog"
	"os"
	"path/filepath"
)

var (
	// Version is the version of the application.
	Version = "Dev"
)

const (
	// CmdName is the name of the command line tool.
	CmdName = "mi-ir-extract"

	// DefaultAppFolder is the name of the default root folder.
	DefaultAppFolder = "mi-ir-extract"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// DumpExtension is the extension of the vendor JSON dumps.
	DumpExtension = ".json"

	// DefaultVendor is the vendor tag given to patterns whose model carries no source.
	DefaultVendor = "mi"

	// ReverseSuffix is appended to a button name to identify its reverse signal.
	ReverseSuffix = "_r"

	// KeysetFolder is the name of the folder holding keyset model dumps, next to brand dumps.
	KeysetFolder = "models"
)

type options struct {
	baseDir func() (string, error)
}

type option func(*options)

// GetDefaultConfigPath is the default path to the configuration directory.
func GetDefaultConfigPath(opts ...option) string {
	o := options{baseDir: os.UserConfigDir}
	for _, opt := range opts {
		opt(&o)
	}

	return filepath.Join(getBaseDir(o.baseDir), DefaultAppFolder)
}

// GetDefaultOutputPath is the default path where exports are written.
func GetDefaultOutputPath(opts ...option) string {
	o := options{baseDir: os.UserCacheDir}
	for _, opt := range opts {
		opt(&o)
	}

	return filepath.Join(getBaseDir(o.baseDir), DefaultAppFolder, "output")
}

// getBaseDir is a helper function to handle the case where the baseDir function returns an error, and instead return an empty string.
func getBaseDir(baseDirFunc func() (string, error)) string {
	dir, err := baseDirFunc()
	if err != nil {
		return ""
	}
	return dir
}
