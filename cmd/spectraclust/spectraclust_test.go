package spectraclustcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	spectraclustcmder "github.com/wizenheimer/spectra/cmd/spectraclust"
	"github.com/wizenheimer/spectra/internal/config"
	"github.com/wizenheimer/spectra/internal/peakfile"
)

// Two tight groups far apart: atoms 1 and 2 share bin 10, atoms 3 and 4 sit
// around bin -50.
const peaksCSV = `atom_id,location,magnitude
1,10,1
2,10.2,2
3,-50,3
4,-50,1
4,-49,0.1
`

const peaksYAML = `
- atom_id: 1
  peaks: [[10, 1]]
- atom_id: 2
  peaks: [[10, 2]]
- atom_id: 5
  peaks: []
- atom_id: 3
  peaks: [[-50, 3]]
- atom_id: 4
  peaks: [[-50, 1], [-49, 0.1]]
`

var _ = Describe("spectraclust", func() {
	var (
		dir    string
		stdout *bytes.Buffer
		stderr *bytes.Buffer
	)

	writeFile := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	execute := func(args ...string) error {
		cmd := spectraclustcmder.NewSpectraclustCmd()
		cmd.SetOut(stdout)
		cmd.SetErr(stderr)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		stdout = &bytes.Buffer{}
		stderr = &bytes.Buffer{}
	})

	It("registers every subcommand", func() {
		cmd := spectraclustcmder.NewSpectraclustCmd()
		var names []string
		for _, c := range cmd.Commands() {
			names = append(names, c.Name())
		}
		Expect(names).To(ContainElements("cluster", "kmeans", "config", "version"))
	})

	Describe("cluster", func() {
		It("groups nearby spectra", func() {
			path := writeFile("peaks.csv", peaksCSV)
			Expect(execute("cluster", path, "--target", "2", "--log-format", "text")).To(Succeed())

			Expect(stdout.String()).To(ContainSubstring("hierarchical clustering (Euclidean Squared): 4 atoms in 2 clusters"))
			Expect(stdout.String()).To(ContainSubstring("cluster 1 (2): 1 2"))
			Expect(stdout.String()).To(ContainSubstring("cluster 3 (2): 3 4"))
		})

		It("reports skipped empty spectra and merges as YAML", func() {
			path := writeFile("peaks.yaml", peaksYAML)
			Expect(execute("cluster", path, "-t", "2", "--skip-empty", "--merges", "-o", "yaml")).To(Succeed())

			var report peakfile.Report
			Expect(yaml.Unmarshal(stdout.Bytes(), &report)).To(Succeed())
			Expect(report.Method).To(Equal("hierarchical"))
			Expect(report.Atoms).To(Equal(4))
			Expect(report.Skipped).To(Equal([]uint32{5}))
			Expect(report.Clusters).To(HaveLen(2))
			Expect(report.Merges).To(HaveLen(2))
			Expect(report.Merges[0].Kept).To(Equal(uint32(1)))
			Expect(report.Merges[0].Absorbed).To(Equal(uint32(2)))
		})

		It("restricts clustering to the selected atoms", func() {
			path := writeFile("peaks.csv", peaksCSV)
			Expect(execute("cluster", path, "--atoms", "1,3,4", "--target", "1", "-o", "yaml")).To(Succeed())

			var report peakfile.Report
			Expect(yaml.Unmarshal(stdout.Bytes(), &report)).To(Succeed())
			Expect(report.Clusters).To(HaveLen(1))
			Expect(report.Clusters[0].Atoms).To(Equal([]uint32{1, 3, 4}))
		})

		It("cuts the full dendrogram with --auto-cut", func() {
			path := writeFile("peaks.csv", peaksCSV)
			Expect(execute("cluster", path, "--auto-cut", "1", "--merges", "-o", "yaml", "--log-format", "json")).To(Succeed())

			var report peakfile.Report
			Expect(yaml.Unmarshal(stdout.Bytes(), &report)).To(Succeed())
			Expect(report.Atoms).To(Equal(4))
			Expect(report.Merges).To(HaveLen(3))
			Expect(stderr.String()).To(ContainSubstring(`"msg":"cut dendrogram"`))
		})

		It("logs progress at debug level", func() {
			path := writeFile("peaks.csv", peaksCSV)
			Expect(execute("cluster", path, "--debug", "--log-format", "text")).To(Succeed())
			Expect(stderr.String()).To(ContainSubstring("loaded peak file"))
		})

		It("reads settings from a config file", func() {
			path := writeFile("peaks.csv", peaksCSV)
			cfgPath := writeFile("spectra.yaml", "cluster:\n  metric: city_block\n  target: 2\noutput:\n  format: yaml\n")
			Expect(execute("cluster", path, "--config", cfgPath)).To(Succeed())

			var report peakfile.Report
			Expect(yaml.Unmarshal(stdout.Bytes(), &report)).To(Succeed())
			Expect(report.Metric).To(Equal("City Block"))
			Expect(report.Clusters).To(HaveLen(2))
		})

		It("rejects an unknown metric", func() {
			path := writeFile("peaks.csv", peaksCSV)
			err := execute("cluster", path, "--metric", "cosine")
			Expect(err).To(MatchError(config.ErrInvalidConfig))
		})

		It("fails on a missing peak file", func() {
			err := execute("cluster", filepath.Join(dir, "missing.csv"))
			Expect(err).To(MatchError(ContainSubstring("opening peak file")))
		})

		It("requires exactly one peak file", func() {
			Expect(execute("cluster")).To(HaveOccurred())
		})
	})

	Describe("kmeans", func() {
		It("partitions spectra into k clusters", func() {
			path := writeFile("peaks.csv", peaksCSV)
			Expect(execute("kmeans", path, "--k", "2", "--log-format", "text")).To(Succeed())

			Expect(stdout.String()).To(ContainSubstring("k-means clustering (Euclidean Squared): 4 atoms in 2 clusters"))
			Expect(stdout.String()).To(ContainSubstring("cluster 1 (2): 1 2"))
			Expect(stdout.String()).To(ContainSubstring("cluster 3 (2): 3 4"))
		})

		It("rejects a non-positive k", func() {
			path := writeFile("peaks.csv", peaksCSV)
			Expect(execute("kmeans", path, "--k", "0")).To(MatchError(config.ErrInvalidConfig))
		})
	})

	Describe("config", func() {
		It("prints the effective configuration", func() {
			GinkgoT().Setenv("SPECTRA_CLUSTER_TARGET", "7")
			Expect(execute("config")).To(Succeed())

			var cfg config.Config
			Expect(yaml.Unmarshal(stdout.Bytes(), &cfg)).To(Succeed())
			Expect(cfg.Cluster.Target).To(Equal(7))
			Expect(cfg.Cluster.Metric).To(Equal("euclidean_squared"))
		})

		It("writes the configuration to a file", func() {
			out := filepath.Join(dir, "out.yaml")
			Expect(execute("config", "--write", out, "--log-format", "json")).To(Succeed())
			Expect(stdout.String()).To(ContainSubstring("wrote " + out))

			v, err := config.NewViper(out)
			Expect(err).NotTo(HaveOccurred())
			cfg, err := config.Load(v)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Log.Format).To(Equal("json"))
		})
	})

	Describe("version", func() {
		It("prints the version", func() {
			Expect(execute("version")).To(Succeed())
			Expect(stdout.String()).To(ContainSubstring("Version: dev"))
		})
	})
})
