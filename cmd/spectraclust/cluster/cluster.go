// Package clustercmder provides the cluster command, which runs hierarchical
// agglomerative clustering over a peak file.
package clustercmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wizenheimer/spectra"
	"github.com/wizenheimer/spectra/cmd/spectraclust/setup"
	"github.com/wizenheimer/spectra/internal/config"
	"github.com/wizenheimer/spectra/internal/peakfile"
)

const clusterLongDesc string = `Cluster binned spectra with agglomerative hierarchical clustering.

Every spectrum starts as its own cluster. The two closest clusters are merged
(Lance-Williams update) until the target number of clusters remains or no
known distance is left.

The peak file is CSV (atom_id,location,magnitude) or YAML.

Examples:
  spectraclust cluster peaks.csv
  spectraclust cluster peaks.csv --metric city_block --target 5
  spectraclust cluster peaks.yaml --auto-cut 1 --output yaml --merges
  spectraclust cluster peaks.csv --workers 8 --precision float16`

const clusterShortDesc string = "Hierarchical clustering of spectra"

var flagKeys = map[string]string{
	"metric":     "cluster.metric",
	"target":     "cluster.target",
	"workers":    "cluster.workers",
	"precision":  "cluster.precision",
	"auto-cut":   "cluster.auto_cut",
	"normalizer": "input.normalizer",
	"pos-neg":    "input.pos_neg",
	"peak-power": "input.peak_power",
	"skip-empty": "input.skip_empty",
	"atoms":      "input.atoms",
	"output":     "output.format",
	"merges":     "output.merges",
}

type clusterCommander struct{}

func NewClusterCmd() *cobra.Command {
	cmder := &clusterCommander{}

	cmd := &cobra.Command{
		Use:   "cluster <peak-file>",
		Short: clusterShortDesc,
		Long:  clusterLongDesc,
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
	cmd.Flags().IntP("target", "t", d.Cluster.Target, "Number of clusters to stop at")
	cmd.Flags().IntP("workers", "w", d.Cluster.Workers, "Goroutines computing the initial distances")
	cmd.Flags().String("precision", d.Cluster.Precision, "Distance storage precision (float32, float16)")
	cmd.Flags().Int("auto-cut", d.Cluster.AutoCut, "Cut the full dendrogram at this jump in merge distance (0 disables)")
	cmd.Flags().String("normalizer", d.Input.Normalizer, "Normalization policy (default, strict, none)")
	cmd.Flags().Bool("pos-neg", d.Input.PosNeg, "Normalize negative and positive peaks separately first")
	cmd.Flags().Float64("peak-power", d.Input.PeakPower, "Raise magnitudes to this power before normalizing (0 disables)")
	cmd.Flags().Bool("skip-empty", d.Input.SkipEmpty, "Leave out spectra without peaks")
	cmd.Flags().IntSlice("atoms", nil, "Only cluster these atom ids")
	cmd.Flags().StringP("output", "o", d.Output.Format, "Output format (text, yaml)")
	cmd.Flags().Bool("merges", d.Output.Merges, "Include the merge history in the output")

	return cmd
}

func (c *clusterCommander) run(cmd *cobra.Command, cfg *config.Config, path string) error {
	log := setup.NewLogger(cfg, cmd.ErrOrStderr())

	in, err := setup.OpenInput(cfg, path, log)
	if err != nil {
		return err
	}

	target := cfg.Cluster.Target
	if cfg.Cluster.AutoCut > 0 {
		target = 1
	}
	hc, err := spectra.NewHierarchicalClusterer(target, cfg.Metric(),
		spectra.WithNormalizer(cfg.Normalizer()),
		spectra.WithWorkers(cfg.Cluster.Workers),
		spectra.WithPrecision(spectra.Precision(cfg.Cluster.Precision)),
		spectra.WithLogger(log),
	)
	if err != nil {
		return err
	}

	result, err := hc.Cluster(in.Source)
	if err != nil {
		return fmt.Errorf("clustering %s: %w", path, err)
	}

	partition := result.Partition
	if cfg.Cluster.AutoCut > 0 {
		partition = result.AutoCut(cfg.Cluster.AutoCut)
		log.Info("cut dendrogram", "clusters", partition.Len(), "merges", len(result.Merges))
	}

	report := peakfile.NewPartitionReport("hierarchical", hc.Metric(), partition)
	if cfg.Output.Merges {
		report.WithMerges(result.Merges)
	}
	if skipped := in.Skipped(); len(skipped) > 0 {
		report.WithSkipped(skipped)
	}
	return setup.WriteReport(cfg, cmd.OutOrStdout(), report)
}
