// Package peakfile reads binned spectra from CSV or YAML files and writes
// clustering reports.
package peakfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wizenheimer/spectra"
)

var (
	// ErrMissingColumn is returned when a CSV header lacks a required column.
	ErrMissingColumn = errors.New("missing CSV column")

	// ErrNotFinite is returned for a NaN or infinite location or magnitude.
	ErrNotFinite = errors.New("value is not finite")
)

// Required CSV columns, matched case-insensitively.
const (
	ColumnAtomID    = "atom_id"
	ColumnLocation  = "location"
	ColumnMagnitude = "magnitude"
)

// Load reads atoms from path, choosing the format by extension (.csv, .yaml
// or .yml). Every vector is created with normalizer n.
func Load(path string, n spectra.Normalizer) ([]spectra.Atom, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening peak file: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return ReadCSV(f, n)
	case ".yaml", ".yml":
		return ReadYAML(f, n)
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// ReadCSV reads one peak per row. The header must name the atom_id, location
// and magnitude columns; other columns are ignored. Rows of the same atom may
// be interleaved with other atoms. Atoms are returned in the order their first
// row appears, and continuous locations are rounded to bins with
// SparseVector.Add.
func ReadCSV(r io.Reader, n spectra.Normalizer) ([]spectra.Atom, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	cols, err := columns(header)
	if err != nil {
		return nil, err
	}

	b := newBuilder(n)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)

		fields := make([]string, len(cols))
		for i, c := range cols {
			if c >= len(record) {
				return nil, fmt.Errorf("line %d: expected at least %d fields, got %d", line, c+1, len(record))
			}
			fields[i] = strings.TrimSpace(record[c])
		}

		id, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: atom id %q: %w", line, fields[0], err)
		}
		loc, err := parseFinite(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: location %q: %w", line, fields[1], err)
		}
		mag, err := parseFinite(fields[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: magnitude %q: %w", line, fields[2], err)
		}
		b.add(spectra.AtomID(id), loc, mag)
	}
	return b.atoms, nil
}

// parseFinite parses a float32 and rejects NaN and infinities.
func parseFinite(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	if err := checkFinite(float32(f)); err != nil {
		return 0, err
	}
	return float32(f), nil
}

func checkFinite(f float32) error {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return ErrNotFinite
	}
	return nil
}

// columns returns the indexes of the atom_id, location and magnitude columns.
func columns(header []string) ([]int, error) {
	want := []string{ColumnAtomID, ColumnLocation, ColumnMagnitude}
	cols := make([]int, len(want))
	for i, name := range want {
		cols[i] = -1
		for j, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				cols[i] = j
				break
			}
		}
		if cols[i] < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return cols, nil
}

// yamlSpectrum is one entry of a YAML peak file:
//
//	- atom_id: 7
//	  peaks:
//	    - [-30.2, 13]
//	    - [52.9, 52]
type yamlSpectrum struct {
	AtomID uint32       `yaml:"atom_id"`
	Peaks  [][2]float32 `yaml:"peaks"`
}

// ReadYAML reads a list of spectra, each with an atom id and a list of
// [location, magnitude] pairs. An atom may appear more than once; its peaks
// are accumulated.
func ReadYAML(r io.Reader, n spectra.Normalizer) ([]spectra.Atom, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	var entries []yaml.Node
	if err := doc.Decode(&entries); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	b := newBuilder(n)
	for _, node := range entries {
		var e yamlSpectrum
		if err := node.Decode(&e); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		id := spectra.AtomID(e.AtomID)
		b.ensure(id)
		for i, p := range e.Peaks {
			if err := checkFinite(p[0]); err != nil {
				return nil, fmt.Errorf("line %d: atom %d peak %d location: %w", node.Line, id, i, err)
			}
			if err := checkFinite(p[1]); err != nil {
				return nil, fmt.Errorf("line %d: atom %d peak %d magnitude: %w", node.Line, id, i, err)
			}
			b.add(id, p[0], p[1])
		}
	}
	return b.atoms, nil
}

// builder groups peaks into atoms in first-seen order.
type builder struct {
	normalizer spectra.Normalizer
	atoms      []spectra.Atom
	index      map[spectra.AtomID]int
}

func newBuilder(n spectra.Normalizer) *builder {
	return &builder{normalizer: n, index: make(map[spectra.AtomID]int)}
}

func (b *builder) ensure(id spectra.AtomID) *spectra.SparseVector {
	if i, ok := b.index[id]; ok {
		return b.atoms[i].Vector
	}
	v := spectra.NewSparseVectorWithNormalizer(b.normalizer)
	b.index[id] = len(b.atoms)
	b.atoms = append(b.atoms, spectra.Atom{ID: id, Vector: v})
	return v
}

func (b *builder) add(id spectra.AtomID, location, magnitude float32) {
	b.ensure(id).Add(location, magnitude)
}
