// Package kmeanscmder provides the kmeans command, a flat partitioning
// baseline over the same prepared spectra as the cluster command.
package kmeanscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wizenheimer/spectra"
	"github.com/wizenheimer/spectra/cmd/spectraclust/setup"
	"github.com/wizenheimer/spectra/internal/config"
	"github.com/wizenheimer/spectra/internal/peakfile"
)

const kmeansLongDesc string = `Partition binned spectra into k clusters with k-means.

Initial centroids are taken uniformly from the input. Clusters are named after
their lowest atom id.

Examples:
  spectraclust kmeans peaks.csv --k 4
  spectraclust kmeans peaks.csv --k 8 --max-iter 50 --metric dot_product`

const kmeansShortDesc string = "K-means clustering of spectra"

var flagKeys = map[string]string{
	"metric":     "cluster.metric",
	"k":          "kmeans.k",
	"max-iter":   "kmeans.max_iter",
	"normalizer": "input.normalizer",
	"pos-neg":    "input.pos_neg",
	"peak-power": "input.peak_power",
	"skip-empty": "input.skip_empty",
	"atoms":      "input.atoms",
	"output":     "output.format",
}

type kmeansCommander struct{}

func NewKMeansCmd() *cobra.Command {
	cmder := &kmeansCommander{}

	cmd := &cobra.Command{
		Use:   "kmeans <peak-file>",
		Short: kmeansShortDesc,
		Long:  kmeansLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup.LoadConfig(cmd, flagKeys)
			if err != nil {
				return err
			}
			return cmder.run(cmd, cfg, args[0])
		},
	}

	d := config.DefaultConfig()
	cmd.Flags().StringP("metric", "m", d.Cluster.Metric, "Distance metric (city_block, euclidean_squared, dot_product)")
	cmd.Flags().IntP("k", "k", d.KMeans.K, "Number of clusters")
	cmd.Flags().Int("max-iter", d.KMeans.MaxIter, "Maximum refinement iterations")
	cmd.Flags().String("normalizer", d.Input.Normalizer, "Normalization policy (default, strict, none)")
	cmd.Flags().Bool("pos-neg", d.Input.PosNeg, "Normalize negative and positive peaks separately first")
	cmd.Flags().Float64("peak-power", d.Input.PeakPower, "Raise magnitudes to this power before normalizing (0 disables)")
	cmd.Flags().Bool("skip-empty", d.Input.SkipEmpty, "Leave out spectra without peaks")
	cmd.Flags().IntSlice("atoms", nil, "Only cluster these atom ids")
	cmd.Flags().StringP("output", "o", d.Output.Format, "Output format (text, yaml)")

	return cmd
}

func (c *kmeansCommander) run(cmd *cobra.Command, cfg *config.Config, path string) error {
	log := setup.NewLogger(cfg, cmd.ErrOrStderr())

	in, err := setup.OpenInput(cfg, path, log)
	if err != nil {
		return err
	}
	atoms, err := setup.Collect(in.Source)
	if err != nil {
		return err
	}

	vectors := make([]*spectra.SparseVector, len(atoms))
	for i, a := range atoms {
		vectors[i] = a.Vector
	}
	metric := cfg.Metric()
	_, assignments, err := spectra.KMeans(vectors, cfg.KMeans.K, metric, cfg.KMeans.MaxIter)
	if err != nil {
		return fmt.Errorf("k-means on %s: %w", path, err)
	}

	partition := peakfile.KMeansPartition(atoms, assignments)
	log.Info("k-means finished", "atoms", len(atoms), "clusters", partition.Len())

	report := peakfile.NewPartitionReport("k-means", metric, partition)
	if skipped := in.Skipped(); len(skipped) > 0 {
		report.WithSkipped(skipped)
	}
	return setup.WriteReport(cfg, cmd.OutOrStdout(), report)
}
