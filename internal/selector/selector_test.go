package selector_test

import (
	"errors"
	"testing"

	"github.com/BTreeMap/QuitPrep/internal/models"
	"github.com/BTreeMap/QuitPrep/internal/selector"
	"github.com/BTreeMap/QuitPrep/internal/store"
	"github.com/BTreeMap/QuitPrep/internal/testutil"
)

const pid = "5f970a74069a250711aaa695"

func TestChooseEmptyHistoryRespectsPrerequisites(t *testing.T) {
	// Catalog: 0 (cluster 1), 1 (cluster 1, excludes 2), 2 (cluster 2,
	// prerequisite 0). With no history, 2 is blocked by its unmet
	// prerequisite, so only 0 and 1 are eligible.
	st := store.NewInMemoryStore()
	sel := selector.NewSelector(st, testutil.NewSmallCatalog(t), selector.WithRand(testutil.SeededRand(7)))

	for i := 0; i < 200; i++ {
		a, err := sel.Choose(pid)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.ActivityIndex != 0 && a.ActivityIndex != 1 {
			t.Fatalf("expected activity 0 or 1, got %d", a.ActivityIndex)
		}
		if a.ClusterIndex != 1 {
			t.Fatalf("expected cluster 1, got %d", a.ClusterIndex)
		}
	}
}

func TestChooseHistoryUnlocksPrerequisite(t *testing.T) {
	// With 0 assigned, activity 2's prerequisite is met and 0 itself is
	// off the table: eligible = {1, 2}.
	st := store.NewInMemoryStore()
	sel := selector.NewSelector(st, testutil.NewSmallCatalog(t), selector.WithRand(testutil.SeededRand(7)))
	testutil.SeedAssignment(t, st, pid, 1, 0, 1)

	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		a, err := sel.Choose(pid)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.ActivityIndex == 0 {
			t.Fatal("selector returned an already-assigned activity")
		}
		if a.ActivityIndex != 1 && a.ActivityIndex != 2 {
			t.Fatalf("expected activity 1 or 2, got %d", a.ActivityIndex)
		}
		seen[a.ActivityIndex] = true
	}
	if !seen[1] || !seen[2] {
		t.Errorf("expected both eligible activities to be drawn, saw %v", seen)
	}
}

func TestChooseNeverReturnsExcluded(t *testing.T) {
	// Activity 1 excludes 2; once 1 is assigned, only 0 remains.
	st := store.NewInMemoryStore()
	sel := selector.NewSelector(st, testutil.NewSmallCatalog(t), selector.WithRand(testutil.SeededRand(7)))
	testutil.SeedAssignment(t, st, pid, 1, 1, 1)

	for i := 0; i < 100; i++ {
		a, err := sel.Choose(pid)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.ActivityIndex != 0 {
			t.Fatalf("expected activity 0, got %d", a.ActivityIndex)
		}
	}
}

func TestChooseExhaustionFails(t *testing.T) {
	// Assigning 0 then 1 leaves only 2, which is excluded by 1.
	st := store.NewInMemoryStore()
	sel := selector.NewSelector(st, testutil.NewSmallCatalog(t), selector.WithRand(testutil.SeededRand(7)))
	testutil.SeedAssignment(t, st, pid, 1, 0, 1)
	testutil.SeedAssignment(t, st, pid, 2, 1, 1)

	_, err := sel.Choose(pid)
	if !errors.Is(err, models.ErrNoEligibleActivity) {
		t.Fatalf("expected ErrNoEligibleActivity, got %v", err)
	}
}

func TestChooseEmptyProlificID(t *testing.T) {
	st := store.NewInMemoryStore()
	sel := selector.NewSelector(st, testutil.NewSmallCatalog(t))

	_, err := sel.Choose("")
	if !errors.Is(err, models.ErrEmptyProlificID) {
		t.Fatalf("expected ErrEmptyProlificID, got %v", err)
	}
}

func TestChooseAssignmentCarriesFormulations(t *testing.T) {
	st := store.NewInMemoryStore()
	sel := selector.NewSelector(st, testutil.NewSmallCatalog(t), selector.WithRand(testutil.SeededRand(7)))
	testutil.SeedAssignment(t, st, pid, 1, 1, 1)

	a, err := sel.Choose(pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.FormulationSession != "session formulation 0" {
		t.Errorf("unexpected session formulation: %q", a.FormulationSession)
	}
	if a.FormulationEmail != "email formulation 0" {
		t.Errorf("unexpected email formulation: %q", a.FormulationEmail)
	}
	if a.Verb != "verb 0" {
		t.Errorf("unexpected verb: %q", a.Verb)
	}
}

// Zero-count and one-count clusters must carry the same weight: the draw
// over two such clusters should converge to equal frequency.
func TestZeroCountWeightsLikeOne(t *testing.T) {
	// Two single-activity clusters with no exclusions or prerequisites.
	cat := testutil.NewTestCatalog(t, [][3]string{
		{"1", "", ""},
		{"2", "", ""},
	})
	st := store.NewInMemoryStore()
	// Cluster 1 has one global selection, cluster 2 has none.
	testutil.SeedAssignment(t, st, "someone_else", 1, 0, 1)
	sel := selector.NewSelector(st, cat, selector.WithRand(testutil.SeededRand(42)))

	const draws = 4000
	counts := make(map[int]int)
	for i := 0; i < draws; i++ {
		a, err := sel.Choose(pid)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		counts[a.ClusterIndex]++
	}

	// Both clusters carry weight 1; expect roughly 50/50 with a tolerance
	// far beyond sampling noise at this draw count.
	for _, cluster := range []int{1, 2} {
		share := float64(counts[cluster]) / draws
		if share < 0.45 || share > 0.55 {
			t.Errorf("cluster %d share %.3f outside [0.45, 0.55] (counts %v)", cluster, share, counts)
		}
	}
}

// A heavily chosen cluster should be drawn far less often than a fresh one.
func TestInverseFrequencyWeighting(t *testing.T) {
	cat := testutil.NewTestCatalog(t, [][3]string{
		{"1", "", ""},
		{"2", "", ""},
	})
	st := store.NewInMemoryStore()
	// Cluster 1 was globally chosen 9 times: weight 1/9 versus 1.
	for i := 0; i < 9; i++ {
		testutil.SeedAssignment(t, st, "someone_else", i+1, 0, 1)
	}
	sel := selector.NewSelector(st, cat, selector.WithRand(testutil.SeededRand(42)))

	const draws = 4000
	counts := make(map[int]int)
	for i := 0; i < draws; i++ {
		a, err := sel.Choose(pid)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		counts[a.ClusterIndex]++
	}

	// Expected share for cluster 1 is (1/9)/(1+1/9) = 0.1.
	share := float64(counts[1]) / draws
	if share < 0.06 || share > 0.14 {
		t.Errorf("over-chosen cluster share %.3f outside [0.06, 0.14] (counts %v)", share, counts)
	}
}

// Activity weighting within the chosen cluster follows the same rule.
func TestActivityWeightingWithinCluster(t *testing.T) {
	// One cluster, two activities; activity 0 chosen 9 times globally.
	cat := testutil.NewTestCatalog(t, [][3]string{
		{"1", "", ""},
		{"1", "", ""},
	})
	st := store.NewInMemoryStore()
	for i := 0; i < 9; i++ {
		testutil.SeedResponse(t, st, "someone_else", i+1, models.ResponseTypeActivityNewIndex, "0")
	}
	sel := selector.NewSelector(st, cat, selector.WithRand(testutil.SeededRand(42)))

	const draws = 4000
	counts := make(map[int]int)
	for i := 0; i < draws; i++ {
		a, err := sel.Choose(pid)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		counts[a.ActivityIndex]++
	}

	share := float64(counts[0]) / draws
	if share < 0.06 || share > 0.14 {
		t.Errorf("over-chosen activity share %.3f outside [0.06, 0.14] (counts %v)", share, counts)
	}
}
