package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/digitorus/pdfmark"
	"github.com/digitorus/pdfmark/export"
)

type documentInfo struct {
	pdfmark.Info
	PageSizes []export.PageInfo `json:"page_sizes"`
}

func newInfoCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info <file.pdf>",
		Short: "Show the pages and metadata of a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := pdfmark.OpenFile(args[0])
			if err != nil {
				return err
			}
			info := documentInfo{Info: doc.Info()}
			for i, s := range doc.Pages() {
				info.PageSizes = append(info.PageSizes, export.PageInfo{Page: i + 1, Width: s.Width, Height: s.Height})
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			fmt.Fprintf(out, "File: %s\n", args[0])
			for _, f := range []struct{ label, value string }{
				{"Title", info.Title},
				{"Author", info.Author},
				{"Subject", info.Subject},
				{"Producer", info.Producer},
				{"Keywords", strings.Join(info.Keywords, ", ")},
			} {
				if f.value != "" {
					fmt.Fprintf(out, "%s: %s\n", f.label, f.value)
				}
			}
			fmt.Fprintf(out, "Pages: %d\n", info.Pages)
			for _, p := range info.PageSizes {
				fmt.Fprintf(out, "  Page %d: %g x %g pt\n", p.Page, p.Width, p.Height)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
