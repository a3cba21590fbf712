// =============================================================================
// Donation Importer - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   importer validate [FILES...] [--log-dir DIR]
//
// Runs every file through decode, automatic mapping and transform without
// submitting anything. With no arguments every spreadsheet in input_dir is
// checked. Files are validated concurrently, at most max_concurrency at a
// time; a failing file never stops the others.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/Beto18v/AdoptaFacil-sub000/internal/errors"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/pipeline"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/validation"
	"github.com/Beto18v/AdoptaFacil-sub000/pkg/utils"
)

// logDir receives the error and summary logs when set.
var logDir string

var validateCmd = &cobra.Command{
	Use:   "validate [FILES...]",
	Short: "Check spreadsheets without submitting them",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&logDir, "log-dir", "", "Write an error log and a summary to this directory")
}

func runValidate(cmd *cobra.Command, files []string) error {
	out := cmd.OutOrStdout()

	if len(files) == 0 {
		found, err := newFileManager(appConfig).DiscoverInputFiles()
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
		files = found
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No spreadsheets found in the input directory.")
		return nil
	}

	newSession, err := sessionFactory(appConfig, nil, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Validating %d file(s)...\n", len(files))
	summary, entries := validateFiles(cmd.Context(), files, newSession, appConfig.MaxConcurrency)

	for _, f := range summary.Files {
		name := filepath.Base(f.InputFile)
		if f.Error != "" {
			fmt.Fprintln(out, errStyle.Render(fmt.Sprintf("  ✗ %s: %s", name, f.Error)))
			continue
		}
		line := fmt.Sprintf("  ✓ %s: %d records", name, f.Records)
		if f.Skipped > 0 {
			line += fmt.Sprintf(", %d rows skipped", f.Skipped)
		}
		fmt.Fprintln(out, okStyle.Render(line))
	}

	fmt.Fprintln(out, "\n=== Validation Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Valid:           %d\n", summary.ValidFiles)
	fmt.Fprintf(out, "Failed:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Records:         %d\n", summary.TotalRecords)
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime))

	if logDir != "" {
		if path, err := utils.WriteErrorLog(entries, logDir); err != nil {
			return err
		} else if path != "" {
			fmt.Fprintf(out, "Error log:       %s\n", path)
		}
		path, err := utils.WriteSummaryLog(summary, logDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Summary:         %s\n", path)
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed validation", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// validateFiles checks every file with its own session, at most limit at a
// time. Results keep the order of files.
func validateFiles(ctx context.Context, files []string, newSession func() *pipeline.Session, limit int) (utils.ProcessingSummary, []utils.ErrorLogEntry) {
	summary := utils.ProcessingSummary{StartTime: time.Now(), TotalFiles: len(files)}
	results := make([]utils.FileResult, len(files))
	issues := make([][]utils.ErrorLogEntry, len(files))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, file := range files {
		g.Go(func() error {
			results[i], issues[i] = validateFile(gctx, file, newSession())
			return nil
		})
	}
	_ = g.Wait()

	summary.EndTime = time.Now()
	summary.Files = results

	var entries []utils.ErrorLogEntry
	for i, r := range results {
		if r.Error != "" {
			summary.FailedFiles++
		} else {
			summary.ValidFiles++
		}
		summary.TotalRows += r.Rows
		summary.TotalRecords += r.Records
		summary.SkippedRows += r.Skipped
		entries = append(entries, issues[i]...)
	}
	return summary, entries
}

func validateFile(ctx context.Context, path string, sess *pipeline.Session) (utils.FileResult, []utils.ErrorLogEntry) {
	defer sess.Close()
	result := utils.FileResult{InputFile: path}

	fail := func(err error) (utils.FileResult, []utils.ErrorLogEntry) {
		result.Error = apperrors.Message(err)
		entry := utils.ErrorLogEntry{
			Timestamp: time.Now(),
			FileName:  path,
			ErrorCode: apperrors.GetCode(err),
			Message:   result.Error,
		}
		var vErr *validation.ValidationError
		if errors.As(err, &vErr) {
			entry.RowNumber = vErr.Row
			entry.FieldName = string(vErr.Field)
			entry.FieldValue = vErr.Value
		}
		logger.Debug("file rejected", zap.String("file", path), zap.Error(err))
		return result, []utils.ErrorLogEntry{entry}
	}

	if err := loadFile(ctx, sess, path); err != nil {
		return fail(err)
	}
	result.Rows = sess.View().RowCount

	if err := sess.Proceed(); err != nil {
		return fail(err)
	}

	v := sess.View()
	result.Records = len(v.Records)
	result.Skipped = len(v.Skipped)

	var entries []utils.ErrorLogEntry
	for _, s := range v.Skipped {
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp:  time.Now(),
			FileName:   path,
			ErrorCode:  apperrors.CodeValidation,
			Message:    s.Message,
			RowNumber:  s.Row,
			FieldName:  string(s.Field),
			FieldValue: s.Value,
		})
	}
	return result, entries
}
