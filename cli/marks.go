package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/digitorus/pdfmark"
	"github.com/digitorus/pdfmark/export"
	"github.com/digitorus/pdfmark/flatten"
	"github.com/digitorus/pdfmark/internal/logger"
	"github.com/digitorus/pdfmark/mark"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.pdf> <marks.json>",
		Short: "Check a marks manifest against the pages of a PDF",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := pdfmark.OpenFile(args[0])
			if err != nil {
				return err
			}
			m, err := readManifest(args[1])
			if err != nil {
				return err
			}
			if err := m.Validate(doc.Pages()); err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), m.Summary())
			return nil
		},
	}
}

func newFlattenCmd(opts *options) *cobra.Command {
	var noAuditPage bool
	cmd := &cobra.Command{
		Use:   "flatten <in.pdf> <marks.json> <out.pdf>",
		Short: "Draw the marks onto the pages of a PDF",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read PDF: %w", err)
			}
			m, err := readManifest(args[1])
			if err != nil {
				return err
			}

			logger.Debug("flattening", "input", args[0], "marks", len(m.Marks))
			res, err := flatten.Flatten(cmd.Context(), data, m, flatten.Options{
				AuditPage: cfg.Personal.AuditPage && !noAuditPage,
				Client:    flatten.Client{IP: "local", UserAgent: "pdfmark"},
			})
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[2], res.PDF, 0o644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Flattened %d marks onto %d pages: %s\n",
				res.AuditTrail.MarksCount, res.AuditTrail.PageCount, args[2])
			return nil
		},
	}
	cmd.Flags().BoolVar(&noAuditPage, "no-audit-page", false, "do not append the audit trail page")
	return cmd
}

func printSummary(w io.Writer, s export.Summary) {
	fmt.Fprintf(w, "OK: %d marks on pages %v\n", s.Total, s.Pages)
	for _, k := range mark.Kinds() {
		if n := s.ByType[k.String()]; n > 0 {
			fmt.Fprintf(w, "  %s: %d\n", k, n)
		}
	}
}
