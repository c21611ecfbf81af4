package peakfile

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wizenheimer/spectra"
)

// Output formats understood by Write.
const (
	FormatText = "text"
	FormatYAML = "yaml"
)

// Report is the rendered outcome of a clustering run.
type Report struct {
	Method   string         `yaml:"method"`
	Metric   string         `yaml:"metric"`
	Atoms    int            `yaml:"atoms"`
	Skipped  []uint32       `yaml:"skipped,omitempty"`
	Clusters []ClusterEntry `yaml:"clusters"`
	Merges   []MergeEntry   `yaml:"merges,omitempty"`
}

// ClusterEntry is one cluster of a Report.
type ClusterEntry struct {
	ID    uint32   `yaml:"id"`
	Size  int      `yaml:"size"`
	Atoms []uint32 `yaml:"atoms,flow"`
}

// MergeEntry is one merge of a hierarchical run.
type MergeEntry struct {
	Kept     uint32  `yaml:"kept"`
	Absorbed uint32  `yaml:"absorbed"`
	Distance float32 `yaml:"distance"`
	Clusters int     `yaml:"clusters"`
}

// NewPartitionReport describes a partition. Clusters are listed by ascending id.
func NewPartitionReport(method string, m spectra.Metric, p spectra.Partition) *Report {
	r := &Report{Method: method, Metric: m.String(), Atoms: p.AtomCount()}
	for _, id := range p.IDs() {
		atoms := make([]uint32, len(p[id]))
		for i, a := range p[id] {
			atoms[i] = uint32(a)
		}
		r.Clusters = append(r.Clusters, ClusterEntry{ID: uint32(id), Size: len(atoms), Atoms: atoms})
	}
	return r
}

// WithMerges attaches the merge history of a hierarchical run.
func (r *Report) WithMerges(merges []spectra.MergeStep) *Report {
	r.Merges = make([]MergeEntry, len(merges))
	for i, s := range merges {
		r.Merges[i] = MergeEntry{
			Kept:     uint32(s.Kept),
			Absorbed: uint32(s.Absorbed),
			Distance: s.Distance,
			Clusters: s.Clusters,
		}
	}
	return r
}

// WithSkipped records atoms that were left out before clustering.
func (r *Report) WithSkipped(ids []spectra.AtomID) *Report {
	r.Skipped = make([]uint32, len(ids))
	for i, id := range ids {
		r.Skipped[i] = uint32(id)
	}
	return r
}

// KMeansPartition turns k-means assignments into a Partition. Each cluster is
// named after its lowest atom id, like hierarchical clusters.
func KMeansPartition(atoms []spectra.Atom, assignments []int) spectra.Partition {
	groups := make(map[int][]spectra.AtomID)
	for i, c := range assignments {
		groups[c] = append(groups[c], atoms[i].ID)
	}
	p := make(spectra.Partition, len(groups))
	for _, ids := range groups {
		slices.Sort(ids)
		p[spectra.ClusterID(ids[0])] = ids
	}
	return p
}

// Write renders r to w in format (FormatText or FormatYAML).
func Write(w io.Writer, format string, r *Report) error {
	switch format {
	case FormatYAML:
		return WriteYAML(w, r)
	case FormatText, "":
		return WriteText(w, r)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteYAML renders r as a YAML document.
func WriteYAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return enc.Close()
}

// WriteText renders r as plain text, one cluster per line.
func WriteText(w io.Writer, r *Report) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s clustering (%s): %d atoms in %d clusters\n", r.Method, r.Metric, r.Atoms, len(r.Clusters))
	if len(r.Skipped) > 0 {
		fmt.Fprintf(&sb, "skipped %d empty spectra: %s\n", len(r.Skipped), joinIDs(r.Skipped))
	}
	for _, c := range r.Clusters {
		fmt.Fprintf(&sb, "cluster %d (%d): %s\n", c.ID, c.Size, joinIDs(c.Atoms))
	}
	if len(r.Merges) > 0 {
		sb.WriteString("merges:\n")
		for i, m := range r.Merges {
			fmt.Fprintf(&sb, "%4d  %d <- %d  distance=%.6g  clusters=%d\n", i+1, m.Kept, m.Absorbed, m.Distance, m.Clusters)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func joinIDs(ids []uint32) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, " ")
}
