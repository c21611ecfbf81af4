// Package setup holds the steps shared by the spectraclust subcommands:
// loading the layered configuration, building the logger and preparing the
// input spectra.
package setup

import (
	"fmt"
	"io"
	"log/slog"
	"maps"

	"github.com/spf13/cobra"

	"github.com/wizenheimer/spectra"
	"github.com/wizenheimer/spectra/internal/config"
	"github.com/wizenheimer/spectra/internal/logger"
	"github.com/wizenheimer/spectra/internal/peakfile"
)

// Persistent flags registered on the root command.
const (
	FlagConfig    = "config"
	FlagDebug     = "debug"
	FlagLogFormat = "log-format"
)

var persistentKeys = map[string]string{
	FlagDebug:     "log.debug",
	FlagLogFormat: "log.format",
}

// LoadConfig reads the config file named by --config, binds the persistent
// flags and the given command flags (flag name -> config key) and validates
// the result.
func LoadConfig(cmd *cobra.Command, keys map[string]string) (*config.Config, error) {
	path, _ := cmd.Flags().GetString(FlagConfig)

	v, err := config.NewViper(path)
	if err != nil {
		return nil, err
	}

	all := maps.Clone(persistentKeys)
	maps.Copy(all, keys)
	if err := config.BindFlags(v, cmd.Flags(), all); err != nil {
		return nil, err
	}
	return config.Load(v)
}

// NewLogger builds the run logger from cfg, writing to w.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logger.New(
		logger.WithDebug(cfg.Log.Debug),
		logger.WithFormat(cfg.Log.Format),
		logger.WithWriter(w),
	)
}

// Input is the prepared atom stream of one run.
type Input struct {
	Source  spectra.AtomSource
	nonZero *spectra.NonZeroSource
}

// Skipped returns the empty spectra left out of the run. It is complete once
// Source has been drained.
func (in *Input) Skipped() []spectra.AtomID {
	if in.nonZero == nil {
		return nil
	}
	return in.nonZero.Skipped()
}

// OpenInput loads the peak file at path and prepares every spectrum as cfg
// asks: peak power reduction, then normalization under the configured metric.
// The returned source applies the atom filter and, if enabled, skips empty
// spectra.
func OpenInput(cfg *config.Config, path string, log *slog.Logger) (*Input, error) {
	atoms, err := peakfile.Load(path, cfg.Normalizer())
	if err != nil {
		return nil, err
	}
	log.Debug("loaded peak file", "path", path, "atoms", len(atoms))

	if err := prepare(cfg, atoms); err != nil {
		return nil, err
	}

	in := &Input{}
	var src spectra.AtomSource = spectra.NewSliceSource(atoms...)
	if filter := cfg.AtomFilter(); filter != nil {
		log.Debug("restricting atoms", "eligible", len(cfg.Input.Atoms))
		src = spectra.NewFilteredSource(src, filter)
	}
	if cfg.Input.SkipEmpty {
		in.nonZero = spectra.NewNonZeroSource(src)
		src = in.nonZero
	}
	in.Source = src
	return in, nil
}

func prepare(cfg *config.Config, atoms []spectra.Atom) error {
	metric := cfg.Metric()
	power := cfg.Input.PeakPower
	for _, a := range atoms {
		v := a.Vector
		if cfg.Input.SkipEmpty && v.Len() == 0 {
			continue
		}
		if power > 0 && power != 1 {
			v.ReducePeaksByPower(power)
		}

		var err error
		if cfg.Input.PosNeg {
			err = v.PosNegNormalize(metric)
		} else {
			err = v.Normalize(metric)
		}
		if err != nil {
			return fmt.Errorf("normalizing atom %d: %w", a.ID, err)
		}
	}
	return nil
}

// Collect drains src into a slice.
func Collect(src spectra.AtomSource) ([]spectra.Atom, error) {
	var atoms []spectra.Atom
	for src.Next() {
		atoms = append(atoms, src.Atom())
	}
	if err := src.Err(); err != nil {
		return nil, err
	}
	return atoms, nil
}

// WriteReport renders r in the configured output format.
func WriteReport(cfg *config.Config, w io.Writer, r *peakfile.Report) error {
	return peakfile.Write(w, cfg.Output.Format, r)
}
