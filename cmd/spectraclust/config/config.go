// Package configcmder provides the config command, which prints or writes the
// effective spectraclust configuration.
package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wizenheimer/spectra/cmd/spectraclust/setup"
)

const configLongDesc string = `Print the effective configuration as YAML.

Values are layered, highest first: command-line flags, SPECTRA_* environment
variables (SPECTRA_CLUSTER_METRIC, SPECTRA_INPUT_SKIP_EMPTY, ...), the file
given with --config, then built-in defaults.

Examples:
  spectraclust config
  spectraclust config --config spectra.yaml
  spectraclust config --write spectra.yaml`

const configShortDesc string = "Show or write the configuration"

type configCommander struct {
	write string
}

func NewConfigCmd() *cobra.Command {
	cmder := &configCommander{}

	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.write, "write", "", "Write the configuration to this file instead of printing it")

	return cmd
}

func (c *configCommander) run(cmd *cobra.Command) error {
	cfg, err := setup.LoadConfig(cmd, nil)
	if err != nil {
		return err
	}
	if c.write == "" {
		return cfg.Encode(cmd.OutOrStdout())
	}
	if err := cfg.Write(c.write); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", c.write)
	return nil
}
