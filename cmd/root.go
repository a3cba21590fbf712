// =============================================================================
// Donation Importer - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (importer)
//   ├── inspectCmd  (importer inspect FILE)
//   ├── processCmd  (importer process FILE)
//   ├── reviewCmd   (importer review FILE)
//   ├── validateCmd (importer validate [FILES...])
//   ├── serveCmd    (importer serve)
//   └── versionCmd  (importer version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads a .env file from the working directory, if present
//   2. Loads the YAML configuration (--config)
//   3. Builds the zap logger (--verbose or log_level)
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/config"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// appConfig is loaded in PersistentPreRunE.
var appConfig *config.Config

// logger is built in PersistentPreRunE. Commands never see it nil.
var logger = zap.NewNop()

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "importer",
	Short: "Donation importer - load donation spreadsheets into the donations service",
	Long: `Donation importer reads donation spreadsheets (.xlsx, .xls, .csv), maps
their columns onto the donation fields, lets you review and correct the
records and submits them as one batch to the donations service.

Example Usage:
  importer inspect donaciones.xlsx                      # Show headers and the suggested mapping
  importer process donaciones.xlsx --dry-run            # Transform without submitting
  importer process donaciones.csv --map amount=Valor    # Override one column
  importer review donaciones.xlsx                       # Interactive review session
  importer validate                                     # Check every file in input_dir
  importer serve                                        # HTTP session API`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env file: %w", err)
		}

		cfg, err := config.Load(cfgFile, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		appConfig = cfg

		logger, err = buildLogger(cfg.LogLevel, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// buildLogger returns a production zap logger at level, lowered to debug
// when verbose is set.
func buildLogger(level string, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	return zc.Build()
}
