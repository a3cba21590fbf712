// =============================================================================
// Donation Importer - Review Command
// =============================================================================
//
// COMMAND USAGE:
//   importer review FILE
//
// Opens an interactive import session on FILE. Commands are read one per
// line from standard input:
//
//   map FIELD HEADER      assign a column (HEADER may contain spaces)
//   unmap FIELD           clear a field's column
//   preview               show the file preview and the mapping
//   next                  transform the rows and show the records
//   back                  return to the mapping
//   list                  show the records
//   edit N FIELD VALUE    correct record N
//   rm N                  remove record N
//   submit                send the records to the donations service
//   load [FILE]           load FILE, or the original file again
//   reset                 discard everything
//   help                  list the commands
//   quit                  leave
//
// =============================================================================

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/pipeline"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

const reviewHelp = `Commands:
  map FIELD HEADER     assign a column to a field
  unmap FIELD          clear a field's column
  preview              show the file preview and the mapping
  next                 transform the rows and show the records
  back                 return to the mapping
  list                 show the records
  edit N FIELD VALUE   correct record N
  rm N                 remove record N
  submit               send the records
  load [FILE]          load a file
  reset                discard everything
  quit                 leave`

var reviewCmd = &cobra.Command{
	Use:   "review FILE",
	Short: "Review and correct a spreadsheet interactively before submitting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newCollector(appConfig, logger)
		if err != nil {
			return err
		}
		newSession, err := sessionFactory(appConfig, client, logger)
		if err != nil {
			return err
		}
		sess := newSession()
		defer sess.Close()

		fm := newFileManager(appConfig)
		r := &reviewer{
			sess:    sess,
			path:    args[0],
			out:     cmd.OutOrStdout(),
			archive: fm.ArchiveInputFile,
		}
		return r.run(cmd.Context(), cmd.InOrStdin())
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

// reviewer drives one session from line commands.
type reviewer struct {
	sess *pipeline.Session
	path string
	out  io.Writer

	// archive moves a submitted file away. It may be nil.
	archive func(path string) (string, error)

	// submitted is set once path has been archived.
	submitted bool
}

func (r *reviewer) run(ctx context.Context, in io.Reader) error {
	if err := loadFile(ctx, r.sess, r.path); err != nil {
		return err
	}
	r.show()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(r.out, "[%s]> ", r.sess.State())
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		if err := r.exec(ctx, line); err != nil {
			printErr(r.out, err)
		}
	}
}

// exec runs one command line.
func (r *reviewer) exec(ctx context.Context, line string) error {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "help", "?":
		fmt.Fprintln(r.out, reviewHelp)
		return nil

	case "map":
		name, header, _ := strings.Cut(rest, " ")
		field, err := fieldArg(name)
		if err != nil {
			return err
		}
		header = strings.TrimSpace(header)
		if header == "" {
			return fmt.Errorf("usage: map FIELD HEADER")
		}
		if err := r.sess.SetMapping(field, header); err != nil {
			return err
		}
		renderMapping(r.out, r.sess.View())
		return nil

	case "unmap":
		field, err := fieldArg(rest)
		if err != nil {
			return err
		}
		if err := r.sess.SetMapping(field, ""); err != nil {
			return err
		}
		renderMapping(r.out, r.sess.View())
		return nil

	case "preview":
		r.show()
		return nil

	case "next":
		if err := r.sess.Proceed(); err != nil {
			return err
		}
		renderRecords(r.out, r.sess.View())
		return nil

	case "back":
		if err := r.sess.Back(); err != nil {
			return err
		}
		renderMapping(r.out, r.sess.View())
		return nil

	case "list":
		renderRecords(r.out, r.sess.View())
		return nil

	case "edit":
		parts := strings.SplitN(rest, " ", 3)
		if len(parts) < 3 {
			return fmt.Errorf("usage: edit N FIELD VALUE")
		}
		index, err := recordNumber(parts[0])
		if err != nil {
			return err
		}
		field, err := fieldArg(parts[1])
		if err != nil {
			return err
		}
		if err := checkRecord(r.sess, index); err != nil {
			return err
		}
		if err := r.sess.EditField(index, field, strings.TrimSpace(parts[2])); err != nil {
			return err
		}
		renderRecords(r.out, r.sess.View())
		return nil

	case "rm":
		index, err := recordNumber(rest)
		if err != nil {
			return err
		}
		if err := checkRecord(r.sess, index); err != nil {
			return err
		}
		if err := r.sess.RemoveRecord(index); err != nil {
			return err
		}
		renderRecords(r.out, r.sess.View())
		return nil

	case "submit":
		return r.submit(ctx)

	case "load":
		if rest != "" {
			r.path = rest
			r.submitted = false
		}
		if err := loadFile(ctx, r.sess, r.path); err != nil {
			return err
		}
		r.show()
		return nil

	case "reset":
		r.sess.Reset()
		fmt.Fprintln(r.out, "Import discarded. Use 'load' to start again.")
		return nil
	}

	return fmt.Errorf("unknown command %q (try 'help')", verb)
}

func (r *reviewer) submit(ctx context.Context) error {
	receipt, err := r.sess.Submit(ctx)
	if err != nil {
		return err
	}
	printOK(r.out, "%s (%d records)", receipt.Message, receipt.Count)

	if r.archive == nil || r.submitted {
		return nil
	}
	r.submitted = true
	archived, err := r.archive(r.path)
	if err != nil {
		logger.Warn("archive failed", zap.String("file", r.path), zap.Error(err))
		return nil
	}
	if archived != r.path {
		fmt.Fprintf(r.out, "Archived %s -> %s\n", r.path, archived)
		r.path = archived
	}
	return nil
}

// show prints the view that fits the session's step.
func (r *reviewer) show() {
	v := r.sess.View()
	switch v.State {
	case pipeline.StateMapping:
		renderPreview(r.out, v)
		renderMapping(r.out, v)
	case pipeline.StatePreview:
		renderRecords(r.out, v)
	default:
		fmt.Fprintf(r.out, "Nothing loaded (%s).\n", v.State)
	}
}

func fieldArg(name string) (types.Field, error) {
	field, ok := types.ParseField(strings.TrimSpace(name))
	if !ok {
		return "", fmt.Errorf("unknown field %q", name)
	}
	return field, nil
}
