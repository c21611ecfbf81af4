package setup_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wizenheimer/spectra"
	"github.com/wizenheimer/spectra/cmd/spectraclust/setup"
	"github.com/wizenheimer/spectra/internal/config"
)

var _ = Describe("OpenInput", func() {
	var (
		path string
		cfg  *config.Config
		log  *slog.Logger
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "peaks.yaml")
		content := "- atom_id: 2\n  peaks: [[-3, 9], [4, 16]]\n- atom_id: 7\n  peaks: []\n- atom_id: 1\n  peaks: [[4, 1]]\n"
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

		cfg = config.DefaultConfig()
		cfg.Cluster.Metric = string(spectra.CityBlock)
		log = slog.New(slog.DiscardHandler)
	})

	It("normalizes every spectrum and keeps file order", func() {
		cfg.Input.PosNeg = false
		in, err := setup.OpenInput(cfg, path, log)
		Expect(err).NotTo(HaveOccurred())

		atoms, err := setup.Collect(in.Source)
		Expect(err).NotTo(HaveOccurred())
		Expect(atoms).To(HaveLen(3))
		Expect(atoms[0].ID).To(Equal(spectra.AtomID(2)))
		Expect(atoms[0].Vector.MagnitudeAt(-3)).To(BeNumerically("~", 9.0/25, 1e-6))
		Expect(atoms[0].Vector.MagnitudeAt(4)).To(BeNumerically("~", 16.0/25, 1e-6))
		Expect(atoms[1].Vector.Len()).To(Equal(0))
		Expect(in.Skipped()).To(BeNil())
	})

	It("weighs both polarities equally with pos-neg normalization", func() {
		in, err := setup.OpenInput(cfg, path, log)
		Expect(err).NotTo(HaveOccurred())

		atoms, err := setup.Collect(in.Source)
		Expect(err).NotTo(HaveOccurred())
		Expect(atoms[0].Vector.MagnitudeAt(-3)).To(BeNumerically("~", 0.5, 1e-6))
		Expect(atoms[0].Vector.MagnitudeAt(4)).To(BeNumerically("~", 0.5, 1e-6))
	})

	It("reduces peaks by power before normalizing", func() {
		cfg.Input.PosNeg = false
		cfg.Input.PeakPower = 0.5
		in, err := setup.OpenInput(cfg, path, log)
		Expect(err).NotTo(HaveOccurred())

		atoms, err := setup.Collect(in.Source)
		Expect(err).NotTo(HaveOccurred())
		Expect(atoms[0].Vector.MagnitudeAt(-3)).To(BeNumerically("~", 3.0/7, 1e-6))
		Expect(atoms[0].Vector.MagnitudeAt(4)).To(BeNumerically("~", 4.0/7, 1e-6))
	})

	It("skips empty spectra and applies the atom filter", func() {
		cfg.Input.SkipEmpty = true
		cfg.Input.Atoms = []uint32{2, 7}
		in, err := setup.OpenInput(cfg, path, log)
		Expect(err).NotTo(HaveOccurred())

		atoms, err := setup.Collect(in.Source)
		Expect(err).NotTo(HaveOccurred())
		Expect(atoms).To(HaveLen(1))
		Expect(atoms[0].ID).To(Equal(spectra.AtomID(2)))
		Expect(in.Skipped()).To(Equal([]spectra.AtomID{7}))
	})

	It("surfaces strict normalization failures", func() {
		cfg.Input.Normalizer = "strict"
		_, err := setup.OpenInput(cfg, path, log)
		Expect(err).To(MatchError(spectra.ErrZeroVector))
		Expect(err).To(MatchError(ContainSubstring("atom 7")))
	})
})

var _ = Describe("NewLogger", func() {
	It("honors the configured format and level", func() {
		cfg := config.DefaultConfig()
		cfg.Log.Format = "json"
		cfg.Log.Debug = true

		var buf bytes.Buffer
		setup.NewLogger(cfg, &buf).Debug("hello", "n", 1)
		Expect(buf.String()).To(ContainSubstring(`"msg":"hello"`))
		Expect(buf.String()).To(ContainSubstring(`"level":"DEBUG"`))
	})
})
