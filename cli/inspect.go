package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/digitorus/pdfmark"
	"github.com/digitorus/pdfmark/extract"
)

func newInspectCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <signed.pdf>",
		Short: "List the signatures of a signed PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := pdfmark.OpenFile(args[0])
			if err != nil {
				return err
			}
			var infos []*extract.Info
			for sig, err := range doc.Signatures() {
				if err != nil {
					return err
				}
				info, err := extract.Inspect(sig)
				if err != nil {
					return fmt.Errorf("signature %q: %w", sig.Name(), err)
				}
				infos = append(infos, info)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			if len(infos) == 0 {
				fmt.Fprintln(out, "No signatures found")
				return nil
			}
			for i, info := range infos {
				fmt.Fprintf(out, "Signature %d:\n", i+1)
				fmt.Fprintf(out, "  Name: %s\n", info.Name)
				fmt.Fprintf(out, "  Signer: %s\n", info.Signer)
				fmt.Fprintf(out, "  Issuer: %s\n", info.Issuer)
				fmt.Fprintf(out, "  Filter: %s/%s\n", info.Filter, info.SubFilter)
				if !info.SigningTime.IsZero() {
					fmt.Fprintf(out, "  Signing time: %s\n", info.SigningTime.Format(time.RFC3339))
				}
				if info.HasTimestamp() {
					fmt.Fprintf(out, "  Timestamp: %s\n", info.Timestamp.Format(time.RFC3339))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
