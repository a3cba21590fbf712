// =============================================================================
// Donation Importer - Inspect Command
// =============================================================================
//
// COMMAND USAGE:
//   importer inspect FILE
//
// Decodes FILE and prints its headers, the first preview rows and the column
// mapping the importer would suggest. Nothing is transformed or submitted.
//
// =============================================================================

package cmd

import (
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Show a spreadsheet's columns, preview and suggested mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		newSession, err := sessionFactory(appConfig, nil, logger)
		if err != nil {
			return err
		}
		sess := newSession()
		defer sess.Close()

		if err := loadFile(cmd.Context(), sess, args[0]); err != nil {
			return err
		}

		v := sess.View()
		out := cmd.OutOrStdout()
		renderPreview(out, v)
		renderMapping(out, v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
