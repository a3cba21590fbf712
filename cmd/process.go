// =============================================================================
// Donation Importer - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs one file through the
// whole import pipeline without prompting.
//
// COMMAND USAGE:
//   importer process FILE [flags]
//
// FLAGS:
//   --map field=Header  : Assign a column, repeatable; overrides the suggestion
//   --set N.field=value : Correct a field of record N after the transform
//   --remove N          : Leave record N out of the batch, repeatable
//   --mode strict|skip  : Override transform.mode
//   --dry-run           : Stop after printing the records
//
// PROCESSING PIPELINE:
//   1. Decode the file and take the suggested column mapping
//   2. Apply --map overrides
//   3. Transform every row (strict or skip mode)
//   4. Apply --set edits, then --remove, using the record numbers printed
//      by --dry-run
//   5. Submit the batch to the donations service
//   6. Archive the input file on success
//
// =============================================================================

package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/pipeline"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	processMaps    []string
	processSets    []string
	processRemoves []int
	processMode    string
	dryRun         bool
)

var processCmd = &cobra.Command{
	Use:   "process FILE",
	Short: "Map, transform and submit one spreadsheet",
	Long: `The process command decodes FILE, maps its columns onto the donation
fields, converts every row into a donation record and submits the records as
one batch to the donations service.

Columns are mapped automatically from their headers; use --map to override.
In strict mode the first invalid row stops the import and nothing is sent.
In skip mode invalid rows are left out and listed.

On success:
  - The service's confirmation is printed
  - The input file is moved to archive_dir (archive_on_success)

On error:
  - Nothing is submitted
  - The input file stays where it is`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringArrayVar(&processMaps, "map", nil, "Assign a column to a field (field=Header)")
	processCmd.Flags().StringArrayVar(&processSets, "set", nil, "Correct a record field (N.field=value)")
	processCmd.Flags().IntSliceVar(&processRemoves, "remove", nil, "Remove record N from the batch")
	processCmd.Flags().StringVar(&processMode, "mode", "", "Transform mode: strict or skip (default from config)")
	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the records without submitting them")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg := *appConfig
	if processMode != "" {
		if _, err := pipeline.ParseMode(processMode); err != nil {
			return err
		}
		cfg.Transform.Mode = processMode
	}

	// Parse every flag before touching the file.
	edits := make([]recordEdit, 0, len(processSets))
	for _, s := range processSets {
		e, err := parseEdit(s)
		if err != nil {
			return err
		}
		edits = append(edits, e)
	}

	var submitter pipeline.Submitter
	if !dryRun {
		client, err := newCollector(&cfg, logger)
		if err != nil {
			return err
		}
		submitter = client
	}

	newSession, err := sessionFactory(&cfg, submitter, logger)
	if err != nil {
		return err
	}
	sess := newSession()
	defer sess.Close()

	// =========================================================================
	// STEP 1-2: DECODE AND MAP
	// =========================================================================

	if err := loadFile(ctx, sess, path); err != nil {
		return err
	}
	for _, m := range processMaps {
		field, header, err := parseMapping(m)
		if err != nil {
			return err
		}
		if err := sess.SetMapping(field, header); err != nil {
			return err
		}
	}

	// =========================================================================
	// STEP 3: TRANSFORM
	// =========================================================================

	if err := sess.Proceed(); err != nil {
		renderMapping(out, sess.View())
		return err
	}

	// =========================================================================
	// STEP 4: REVIEW EDITS
	// =========================================================================

	for _, e := range edits {
		if err := checkRecord(sess, e.index); err != nil {
			return err
		}
		if err := sess.EditField(e.index, e.field, e.value); err != nil {
			return fmt.Errorf("record %d: %w", e.index+1, err)
		}
	}

	// Highest first so the remaining numbers stay valid.
	removes := append([]int(nil), processRemoves...)
	sort.Sort(sort.Reverse(sort.IntSlice(removes)))
	for i, n := range removes {
		if i > 0 && n == removes[i-1] {
			continue
		}
		if n < 1 {
			return fmt.Errorf("invalid record number %d", n)
		}
		if err := checkRecord(sess, n-1); err != nil {
			return err
		}
		if err := sess.RemoveRecord(n - 1); err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
	}

	renderRecords(out, sess.View())

	if dryRun {
		printOK(out, "Dry run: nothing was submitted.")
		return nil
	}

	// =========================================================================
	// STEP 5-6: SUBMIT AND ARCHIVE
	// =========================================================================

	receipt, err := sess.Submit(ctx)
	if err != nil {
		return err
	}
	printOK(out, "%s (%d records)", receipt.Message, receipt.Count)

	archived, err := newFileManager(&cfg).ArchiveInputFile(path)
	if err != nil {
		logger.Warn("archive failed", zap.String("file", path), zap.Error(err))
		return nil
	}
	if archived != path {
		fmt.Fprintf(out, "Archived %s -> %s\n", path, archived)
	}
	return nil
}
