package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/digitorus/pdfmark/internal/auditlog"
	"github.com/digitorus/pdfmark/internal/httpapi"
	"github.com/digitorus/pdfmark/internal/logger"
	"github.com/digitorus/pdfmark/jarsign"
)

func newServeCmd(opts *options) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the signing HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}

			signer := jarsign.New(cfg.Company.Signer(),
				jarsign.WithRunner(commandRunner),
				jarsign.WithLimiter(jarsign.Throttle(cfg.Company.RatePerMinute, 1)))
			srvOpts := []httpapi.Option{httpapi.WithSigner(signer)}
			if cfg.Audit.DataDir != "" {
				audit, err := auditlog.Open(cfg.Audit.DataDir)
				if err != nil {
					return err
				}
				defer audit.Close()
				logger.Info("audit log opened", "path", audit.Path())
				srvOpts = append(srvOpts, httpapi.WithAuditLog(audit))
			}
			if err := signer.CheckJava(cmd.Context()); err != nil {
				logger.Warn("company signing unavailable", "err", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return httpapi.New(cfg, srvOpts...).ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides the configuration)")
	return cmd
}
