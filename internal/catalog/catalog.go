// Package catalog loads and serves the static preparatory-activity catalog.
//
// The catalog is read once at startup from a CSV export of the activity
// sheet and is immutable afterwards. Row order defines the 0-based activity
// index referenced by the exclusion and prerequisite columns.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Column headers expected in the catalog file.
const (
	colCluster            = "Cluster"
	colExclusion          = "Exclusion"
	colPrerequisite       = "Prerequisite"
	colFormulationSession = "Formulation Session"
	colFormulationEmail   = "Formulation Email"
	colVerb               = "Verb"
)

// Activity is one catalog entry. Exclusion lists activities that become
// ineligible once this one has been assigned; Prerequisite lists activities
// of which at least one must have been assigned first (OR semantics).
type Activity struct {
	Index              int
	Cluster            int
	Exclusion          []int
	Prerequisite       []int
	FormulationSession string
	FormulationEmail   string
	Verb               string
}

// Catalog is the immutable set of activities.
type Catalog struct {
	activities []Activity
	clusters   []int
}

// Load reads and validates the catalog from a CSV file.
func Load(path string) (*Catalog, error) {
	slog.Debug("Catalog.Load: opening catalog file", "path", path)
	f, err := os.Open(path)
	if err != nil {
		slog.Error("Catalog.Load: failed to open catalog file", "error", err, "path", path)
		return nil, fmt.Errorf("failed to open catalog file %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads and validates catalog CSV data.
func Parse(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		slog.Error("Catalog.Parse: failed to read catalog CSV", "error", err)
		return nil, fmt.Errorf("failed to read catalog CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("catalog CSV has no activity rows")
	}

	cols, err := headerIndex(records[0])
	if err != nil {
		return nil, err
	}

	activities := make([]Activity, 0, len(records)-1)
	for i, record := range records[1:] {
		act, err := parseActivity(i, record, cols)
		if err != nil {
			slog.Error("Catalog.Parse: invalid activity row", "error", err, "row", i)
			return nil, err
		}
		activities = append(activities, act)
	}

	c := &Catalog{activities: activities}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.clusters = collectClusters(activities)

	slog.Debug("Catalog.Parse: catalog loaded", "activities", len(c.activities), "clusters", len(c.clusters))
	return c, nil
}

// headerIndex maps the expected column headers to their positions.
func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colCluster, colExclusion, colPrerequisite, colFormulationSession, colFormulationEmail, colVerb} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("catalog CSV missing required column %q", required)
		}
	}
	return cols, nil
}

func parseActivity(index int, record []string, cols map[string]int) (Activity, error) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	cluster, err := strconv.Atoi(field(colCluster))
	if err != nil {
		return Activity{}, fmt.Errorf("activity %d: invalid cluster %q: %w", index, field(colCluster), err)
	}
	if cluster < 1 {
		return Activity{}, fmt.Errorf("activity %d: cluster must be >= 1, got %d", index, cluster)
	}

	exclusion, err := parseIndexList(field(colExclusion))
	if err != nil {
		return Activity{}, fmt.Errorf("activity %d: invalid exclusion list: %w", index, err)
	}
	prerequisite, err := parseIndexList(field(colPrerequisite))
	if err != nil {
		return Activity{}, fmt.Errorf("activity %d: invalid prerequisite list: %w", index, err)
	}

	return Activity{
		Index:              index,
		Cluster:            cluster,
		Exclusion:          exclusion,
		Prerequisite:       prerequisite,
		FormulationSession: field(colFormulationSession),
		FormulationEmail:   field(colFormulationEmail),
		Verb:               field(colVerb),
	}, nil
}

// parseIndexList splits a pipe-delimited list of activity indices. An empty
// field yields an empty list.
func parseIndexList(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "|")
	indices := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid activity index %q: %w", part, err)
		}
		indices = append(indices, n)
	}
	return indices, nil
}

// validate rejects catalogs whose exclusion or prerequisite sets reference
// indices outside the catalog or the activity itself.
func (c *Catalog) validate() error {
	n := len(c.activities)
	for _, act := range c.activities {
		for _, ref := range act.Exclusion {
			if ref < 0 || ref >= n {
				return fmt.Errorf("activity %d: exclusion index %d out of range [0, %d)", act.Index, ref, n)
			}
			if ref == act.Index {
				return fmt.Errorf("activity %d: exclusion set references itself", act.Index)
			}
		}
		for _, ref := range act.Prerequisite {
			if ref < 0 || ref >= n {
				return fmt.Errorf("activity %d: prerequisite index %d out of range [0, %d)", act.Index, ref, n)
			}
			if ref == act.Index {
				return fmt.Errorf("activity %d: prerequisite set references itself", act.Index)
			}
		}
	}
	return nil
}

func collectClusters(activities []Activity) []int {
	seen := make(map[int]bool)
	var clusters []int
	for _, act := range activities {
		if !seen[act.Cluster] {
			seen[act.Cluster] = true
			clusters = append(clusters, act.Cluster)
		}
	}
	return clusters
}

// Len returns the number of activities in the catalog.
func (c *Catalog) Len() int {
	return len(c.activities)
}

// Activity returns the catalog entry at the given index.
func (c *Catalog) Activity(index int) (Activity, error) {
	if index < 0 || index >= len(c.activities) {
		return Activity{}, fmt.Errorf("activity index %d out of range [0, %d)", index, len(c.activities))
	}
	return c.activities[index], nil
}

// Clusters returns the distinct cluster indices present in the catalog, in
// first-appearance order.
func (c *Catalog) Clusters() []int {
	out := make([]int, len(c.clusters))
	copy(out, c.clusters)
	return out
}
