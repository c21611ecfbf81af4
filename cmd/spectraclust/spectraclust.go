// Package spectraclustcmder is the root of the spectraclust command tree.
package spectraclustcmder

import (
	"github.com/spf13/cobra"

	clustercmder "github.com/wizenheimer/spectra/cmd/spectraclust/cluster"
	configcmder "github.com/wizenheimer/spectra/cmd/spectraclust/config"
	kmeanscmder "github.com/wizenheimer/spectra/cmd/spectraclust/kmeans"
	"github.com/wizenheimer/spectra/cmd/spectraclust/setup"
	versioncmder "github.com/wizenheimer/spectra/cmd/version"
)

const spectraclustLongDesc string = `spectraclust groups mass spectra of single particles.

Run clustering using:
  spectraclust cluster <peak-file>   Hierarchical clustering
  spectraclust kmeans <peak-file>    K-means clustering
  spectraclust config                Show the effective configuration`

const spectraclustShortDesc string = "spectraclust - spectrum clustering"

func NewSpectraclustCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "spectraclust",
		Short:        spectraclustShortDesc,
		Long:         spectraclustLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().StringP(setup.FlagConfig, "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().BoolP(setup.FlagDebug, "d", false, "Enable debug logging")
	cmd.PersistentFlags().String(setup.FlagLogFormat, "pretty", "Log format (text, pretty, json)")

	// Add subcommands
	cmd.AddCommand(clustercmder.NewClusterCmd())
	cmd.AddCommand(kmeanscmder.NewKMeansCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
