// Package cli implements the pdfmark command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/digitorus/pdfmark/config"
	"github.com/digitorus/pdfmark/export"
	"github.com/digitorus/pdfmark/internal/logger"
)

var osExit = os.Exit

type options struct {
	configPath string
	verbose    bool
}

// NewRootCmd returns the pdfmark command with all subcommands.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "pdfmark",
		Short:         "Place signature marks on PDF documents and sign them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logger.SetVerbose(opts.verbose)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"configuration file (default "+config.DefaultLocation+" when present)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newInfoCmd(),
		newValidateCmd(),
		newFlattenCmd(opts),
		newSignCmd(opts),
		newInspectCmd(),
		newServeCmd(opts),
	)
	return cmd
}

// Execute runs the command line and exits with status 1 on failure.
func Execute() {
	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		osExit(1)
	}
}

// config loads the file named by --config, or the default location when it
// exists, or the built-in defaults.
func (o *options) config() (*config.Config, error) {
	if o.configPath != "" {
		return config.Read(o.configPath)
	}
	if _, err := os.Stat(config.DefaultLocation); err == nil {
		return config.Read(config.DefaultLocation)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return config.Default(), nil
}

func readManifest(path string) (*export.Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open marks: %w", err)
	}
	defer f.Close()
	return export.Decode(f)
}
