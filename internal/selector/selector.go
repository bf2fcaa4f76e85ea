// Package selector implements fairness-weighted activity selection.
//
// Selection is a two-stage draw: first a cluster, then an activity within
// the cluster. Both draws weight candidates by inverse global popularity so
// under-chosen options are favored across the whole cohort, while hard
// eligibility (history, exclusion, prerequisites) is enforced per
// participant.
package selector

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/BTreeMap/QuitPrep/internal/catalog"
	"github.com/BTreeMap/QuitPrep/internal/models"
	"github.com/BTreeMap/QuitPrep/internal/store"
)

// Opts holds configuration options for the Selector.
type Opts struct {
	Rand *rand.Rand
}

// Option defines a configuration option for the Selector.
type Option func(*Opts)

// WithRand injects the random source used for the weighted draws. Tests pass
// a seeded source; production uses system entropy.
func WithRand(r *rand.Rand) Option {
	return func(o *Opts) {
		o.Rand = r
	}
}

// Selector draws a new activity for a participant.
type Selector struct {
	store   store.Store
	catalog *catalog.Catalog
	rng     *rand.Rand
}

// NewSelector creates a Selector over the given store and catalog.
func NewSelector(st store.Store, cat *catalog.Catalog, opts ...Option) *Selector {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{store: st, catalog: cat, rng: rng}
}

// Choose draws a new activity for the participant.
//
// An activity is eligible when it was never assigned to the participant, is
// not in the exclusion set of any previously assigned activity, and either
// has no prerequisites or at least one prerequisite was already assigned.
// If no activity is eligible, Choose fails with models.ErrNoEligibleActivity.
func (s *Selector) Choose(prolificID string) (models.ActivityAssignment, error) {
	if prolificID == "" {
		return models.ActivityAssignment{}, models.ErrEmptyProlificID
	}

	history, err := s.store.ActivityHistory(prolificID)
	if err != nil {
		slog.Error("Selector.Choose: history lookup failed", "error", err, "prolificID", prolificID)
		return models.ActivityAssignment{}, fmt.Errorf("failed to load activity history: %w", err)
	}

	remaining := s.eligible(history)
	if len(remaining) == 0 {
		slog.Warn("Selector.Choose: no eligible activity", "prolificID", prolificID, "history_len", len(history))
		return models.ActivityAssignment{}, models.ErrNoEligibleActivity
	}

	clusterCounts, err := s.store.ResponseValueCounts(models.ResponseTypeClusterNewIndex)
	if err != nil {
		slog.Error("Selector.Choose: cluster counts lookup failed", "error", err)
		return models.ActivityAssignment{}, fmt.Errorf("failed to load cluster counts: %w", err)
	}
	activityCounts, err := s.store.ResponseValueCounts(models.ResponseTypeActivityNewIndex)
	if err != nil {
		slog.Error("Selector.Choose: activity counts lookup failed", "error", err)
		return models.ActivityAssignment{}, fmt.Errorf("failed to load activity counts: %w", err)
	}

	cluster := s.drawCluster(remaining, clusterCounts)
	index := s.drawActivity(remaining, cluster, activityCounts)

	act, err := s.catalog.Activity(index)
	if err != nil {
		return models.ActivityAssignment{}, fmt.Errorf("chosen activity not in catalog: %w", err)
	}

	slog.Debug("Selector.Choose: activity chosen", "prolificID", prolificID, "activity", index, "cluster", cluster)
	return models.ActivityAssignment{
		ActivityIndex:      act.Index,
		ClusterIndex:       act.Cluster,
		FormulationSession: act.FormulationSession,
		FormulationEmail:   act.FormulationEmail,
		Verb:               act.Verb,
	}, nil
}

// eligible computes the activity indices still assignable given the
// participant's history: history and exclusion unions are removed first,
// then activities whose prerequisite set is non-empty with no member met.
func (s *Selector) eligible(history []int) []int {
	assigned := make(map[int]bool, len(history))
	excluded := make(map[int]bool)
	for _, i := range history {
		assigned[i] = true
		if act, err := s.catalog.Activity(i); err == nil {
			for _, e := range act.Exclusion {
				excluded[e] = true
			}
		} else {
			// A stored index outside the catalog cannot contribute
			// exclusions; the hard history filter still applies.
			slog.Warn("Selector.eligible: history index not in catalog", "index", i)
		}
	}

	var remaining []int
	for i := 0; i < s.catalog.Len(); i++ {
		if assigned[i] || excluded[i] {
			continue
		}
		act, err := s.catalog.Activity(i)
		if err != nil {
			continue
		}
		if len(act.Prerequisite) > 0 && !anyMet(act.Prerequisite, assigned) {
			continue
		}
		remaining = append(remaining, i)
	}
	return remaining
}

// anyMet reports whether at least one prerequisite has been assigned.
// One satisfied prerequisite suffices.
func anyMet(prerequisites []int, assigned map[int]bool) bool {
	for _, p := range prerequisites {
		if assigned[p] {
			return true
		}
	}
	return false
}

// drawCluster picks a cluster represented among the remaining activities,
// weighted by inverse global popularity.
func (s *Selector) drawCluster(remaining []int, counts map[int]int) int {
	seen := make(map[int]bool)
	var clusters []int
	for _, i := range remaining {
		act, err := s.catalog.Activity(i)
		if err != nil {
			continue
		}
		if !seen[act.Cluster] {
			seen[act.Cluster] = true
			clusters = append(clusters, act.Cluster)
		}
	}
	return s.weightedDraw(clusters, counts)
}

// drawActivity picks an activity from the chosen cluster, weighted by
// inverse global popularity.
func (s *Selector) drawActivity(remaining []int, cluster int, counts map[int]int) int {
	var candidates []int
	for _, i := range remaining {
		if act, err := s.catalog.Activity(i); err == nil && act.Cluster == cluster {
			candidates = append(candidates, i)
		}
	}
	return s.weightedDraw(candidates, counts)
}

// weightedDraw selects one item with weight 1/count, where a zero count
// carries the same weight as a count of one. Never called with an empty
// candidate list.
func (s *Selector) weightedDraw(items []int, counts map[int]int) int {
	weights := make([]float64, len(items))
	var total float64
	for i, item := range items {
		w := 1.0
		if c := counts[item]; c > 0 {
			w = 1.0 / float64(c)
		}
		weights[i] = w
		total += w
	}

	target := s.rng.Float64() * total
	for i, w := range weights {
		target -= w
		if target < 0 {
			return items[i]
		}
	}
	// Floating point residue can land past the final weight.
	return items[len(items)-1]
}
