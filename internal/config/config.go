// Package config holds the spectraclust configuration and loads it with viper.
//
// Precedence (highest to lowest):
//  1. CLI flags (once bound via BindFlags)
//  2. Environment variables (SPECTRA_CLUSTER_METRIC, SPECTRA_LOG_FORMAT, etc.)
//  3. The YAML config file
//  4. Defaults from DefaultConfig()
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/wizenheimer/spectra"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "SPECTRA"

var (
	// ErrInvalidConfig is returned when a loaded configuration fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	normalizers   = []string{"default", "strict", "none"}
	logFormats    = []string{"text", "pretty", "json"}
	outputFormats = []string{"text", "yaml"}
)

// Config is the full spectraclust configuration.
type Config struct {
	Cluster ClusterConfig `mapstructure:"cluster" yaml:"cluster"`
	KMeans  KMeansConfig  `mapstructure:"kmeans" yaml:"kmeans"`
	Input   InputConfig   `mapstructure:"input" yaml:"input"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// ClusterConfig configures hierarchical clustering.
type ClusterConfig struct {
	// Metric is any name accepted by spectra.ParseMetric.
	Metric string `mapstructure:"metric" yaml:"metric"`
	Target int    `mapstructure:"target" yaml:"target"`
	// Workers computing the initial distance matrix.
	Workers int `mapstructure:"workers" yaml:"workers"`
	// Precision is "float32" or "float16".
	Precision string `mapstructure:"precision" yaml:"precision"`
	// AutoCut, when positive, cuts the dendrogram at the AutoCut-th jump in
	// merge distance instead of stopping at Target.
	AutoCut int `mapstructure:"auto_cut" yaml:"auto_cut"`
}

// KMeansConfig configures k-means clustering.
type KMeansConfig struct {
	K       int `mapstructure:"k" yaml:"k"`
	MaxIter int `mapstructure:"max_iter" yaml:"max_iter"`
}

// InputConfig controls how spectra are prepared before clustering.
type InputConfig struct {
	// Normalizer is "default", "strict" or "none".
	Normalizer string `mapstructure:"normalizer" yaml:"normalizer"`
	// PosNeg normalizes negative and positive ion peaks separately first.
	PosNeg bool `mapstructure:"pos_neg" yaml:"pos_neg"`
	// PeakPower raises every magnitude to this exponent before normalizing;
	// 0 or 1 disables it.
	PeakPower float64 `mapstructure:"peak_power" yaml:"peak_power"`
	// SkipEmpty leaves out spectra without peaks.
	SkipEmpty bool `mapstructure:"skip_empty" yaml:"skip_empty"`
	// Atoms restricts clustering to these atom ids when non-empty.
	Atoms []uint32 `mapstructure:"atoms" yaml:"atoms,omitempty"`
}

// OutputConfig controls result rendering.
type OutputConfig struct {
	// Format is "text" or "yaml".
	Format string `mapstructure:"format" yaml:"format"`
	// Merges includes the merge history in the output.
	Merges bool `mapstructure:"merges" yaml:"merges"`
}

// LogConfig controls logging.
type LogConfig struct {
	Debug bool `mapstructure:"debug" yaml:"debug"`
	// Format is "text", "pretty" or "json".
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Cluster: ClusterConfig{
			Metric:    string(spectra.EuclideanSquared),
			Target:    10,
			Workers:   spectra.DefaultWorkers,
			Precision: string(spectra.FullPrecision),
		},
		KMeans: KMeansConfig{
			K:       10,
			MaxIter: spectra.DefaultMaxIter,
		},
		Input: InputConfig{
			Normalizer: "default",
			PosNeg:     true,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Log: LogConfig{
			Format: "pretty",
		},
	}
}

// NewViper creates a viper instance with defaults registered, the config file
// at path read (if path is non-empty) and SPECTRA_ environment variables bound.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// setDefaults registers DefaultConfig() under dotted keys so every key is
// known to viper (AutomaticEnv only resolves keys it knows).
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("cluster.metric", d.Cluster.Metric)
	v.SetDefault("cluster.target", d.Cluster.Target)
	v.SetDefault("cluster.workers", d.Cluster.Workers)
	v.SetDefault("cluster.precision", d.Cluster.Precision)
	v.SetDefault("cluster.auto_cut", d.Cluster.AutoCut)

	v.SetDefault("kmeans.k", d.KMeans.K)
	v.SetDefault("kmeans.max_iter", d.KMeans.MaxIter)

	v.SetDefault("input.normalizer", d.Input.Normalizer)
	v.SetDefault("input.pos_neg", d.Input.PosNeg)
	v.SetDefault("input.peak_power", d.Input.PeakPower)
	v.SetDefault("input.skip_empty", d.Input.SkipEmpty)
	v.SetDefault("input.atoms", d.Input.Atoms)

	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.merges", d.Output.Merges)

	v.SetDefault("log.debug", d.Log.Debug)
	v.SetDefault("log.format", d.Log.Format)
}

// BindFlags binds each flag in keys (flag name -> config key) that exists in
// fs. Flags that were not set on the command line do not override lower layers.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field that has a closed set of values.
func (c *Config) Validate() error {
	if _, err := spectra.ParseMetric(c.Cluster.Metric); err != nil {
		return fmt.Errorf("%w: cluster.metric: %w", ErrInvalidConfig, err)
	}
	if c.Cluster.Target < 1 {
		return fmt.Errorf("%w: cluster.target must be positive, got %d", ErrInvalidConfig, c.Cluster.Target)
	}
	switch spectra.Precision(c.Cluster.Precision) {
	case spectra.FullPrecision, spectra.HalfPrecision:
	default:
		return fmt.Errorf("%w: cluster.precision %q", ErrInvalidConfig, c.Cluster.Precision)
	}
	if c.KMeans.K < 1 {
		return fmt.Errorf("%w: kmeans.k must be positive, got %d", ErrInvalidConfig, c.KMeans.K)
	}
	if c.Input.PeakPower < 0 {
		return fmt.Errorf("%w: input.peak_power must not be negative, got %g", ErrInvalidConfig, c.Input.PeakPower)
	}
	if !slices.Contains(normalizers, c.Input.Normalizer) {
		return fmt.Errorf("%w: input.normalizer %q (want one of %v)", ErrInvalidConfig, c.Input.Normalizer, normalizers)
	}
	if !slices.Contains(outputFormats, c.Output.Format) {
		return fmt.Errorf("%w: output.format %q (want one of %v)", ErrInvalidConfig, c.Output.Format, outputFormats)
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		return fmt.Errorf("%w: log.format %q (want one of %v)", ErrInvalidConfig, c.Log.Format, logFormats)
	}
	return nil
}

// Metric returns the parsed cluster metric. Call after Validate.
func (c *Config) Metric() spectra.Metric {
	m, _ := spectra.ParseMetric(c.Cluster.Metric)
	return m
}

// Normalizer returns the distance rounding and normalization policy.
func (c *Config) Normalizer() spectra.Normalizer {
	switch c.Input.Normalizer {
	case "strict":
		return spectra.StrictNormalizer{}
	case "none":
		return spectra.NopNormalizer{}
	default:
		return spectra.DefaultNormalizer{}
	}
}

// AtomFilter returns the configured atom filter, nil when every atom is used.
func (c *Config) AtomFilter() *spectra.AtomFilter {
	ids := make([]spectra.AtomID, len(c.Input.Atoms))
	for i, id := range c.Input.Atoms {
		ids[i] = spectra.AtomID(id)
	}
	return spectra.NewAtomFilter(ids)
}

// Encode writes c to w as a YAML document.
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// Write stores c as YAML at path, creating or truncating the file.
func (c *Config) Write(path string) error {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
