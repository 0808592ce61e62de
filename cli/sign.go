package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/digitorus/pdfmark/internal/logger"
	"github.com/digitorus/pdfmark/jarsign"
)

// commandRunner starts the signing tool.
var commandRunner jarsign.CommandRunner = jarsign.ExecRunner{}

func newSignCmd(opts *options) *cobra.Command {
	var req jarsign.Request
	cmd := &cobra.Command{
		Use:   "sign <in.pdf> <marks.json> <out.pdf>",
		Short: "Apply the company signature at the digital signature mark",
		Long: `Sign a PDF with the company certificate configured in the [company]
section. The signature is placed at the first digital signature mark of the
marks manifest and carries the name "<staff name> (ID: <staff number>)".`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			if req.PDF, err = os.ReadFile(args[0]); err != nil {
				return fmt.Errorf("failed to read PDF: %w", err)
			}
			if req.Manifest, err = readManifest(args[1]); err != nil {
				return err
			}

			signer := jarsign.New(cfg.Company.Signer(), jarsign.WithRunner(commandRunner))
			logger.Debug("signing", "input", args[0], "staff", req.StaffNumber)
			res, err := signer.Sign(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[2], res.PDF, 0o644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}

			out := cmd.OutOrStdout()
			d := res.SignatureDetails
			fmt.Fprintf(out, "Signed %s\n", args[2])
			fmt.Fprintf(out, "  Signer: %s\n", jarsign.SignerName(d.StaffName, d.StaffNumber))
			fmt.Fprintf(out, "  Company: %s\n", d.CompanyName)
			fmt.Fprintf(out, "  Page: %d at (%g, %g)\n", d.Page, d.Position.X, d.Position.Y)
			fmt.Fprintf(out, "  Certificate: %s (valid %s to %s)\n",
				res.CertificateInfo.Subject, res.CertificateInfo.ValidFrom, res.CertificateInfo.ValidTo)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.StaffName, "staff-name", "", "name of the signing staff member")
	f.StringVar(&req.StaffNumber, "staff-number", "", "staff number of the signer")
	f.StringVar(&req.CompanyName, "company", "", "company name (overrides the configuration)")
	f.StringVar(&req.Reason, "reason", "", "signing reason (overrides the configuration)")
	f.StringVar(&req.Location, "location", "", "signing location (overrides the configuration)")
	f.BoolVar(&req.IncludeTimestamp, "timestamp", false, "request a timestamp from the configured TSA")
	f.BoolVar(&req.Finalise, "finalise", false, "encrypt the signed document")
	f.StringVar(&req.Password, "password", "", "password of the encrypted document")
	_ = cmd.MarkFlagRequired("staff-name")
	_ = cmd.MarkFlagRequired("staff-number")
	return cmd
}
