// Package validate handles the PDF validation command
package validate

import (
	"fmt"
	"io"

	"fjacquet/bill-csv/cmd/common"
	"fjacquet/bill-csv/cmd/root"
	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/pdfparser"

	"github.com/spf13/cobra"
)

// Cmd represents the validate command
var Cmd = &cobra.Command{
	Use:   "validate [files or dirs...]",
	Short: "Check that inputs are readable PDFs",
	Long: `Check that every input is a readable PDF and print its page count,
without calling the language model.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs := append(append([]string(nil), root.SharedFlags.Input...), args...)
		return Run(inputs, cmd.OutOrStdout(), root.GetLogger())
	},
}

// Run validates every PDF named by inputs and prints one line per document.
// It returns an error when at least one document is invalid.
func Run(inputs []string, out io.Writer, log logging.Logger) error {
	docs, err := common.LoadInputs(inputs)
	if err != nil {
		return err
	}

	invalid := 0
	for _, doc := range docs {
		info, err := pdfparser.ValidateFormat(doc)
		if err != nil {
			invalid++
			log.WithError(err).Warn("Invalid PDF", logging.Field{Key: logging.FieldDocument, Value: doc.Name})
			_, _ = fmt.Fprintf(out, "INVALID %s: %v\n", doc.Name, err)
			continue
		}
		_, _ = fmt.Fprintf(out, "OK      %s (%d pages, %d bytes)\n", info.Name, info.Pages, info.Bytes)
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d documents are not valid PDFs", invalid, len(docs))
	}
	return nil
}
