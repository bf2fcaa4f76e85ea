// Package testutil provides common test utilities and helpers for QuitPrep tests.
package testutil

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/QuitPrep/internal/actions"
	"github.com/BTreeMap/QuitPrep/internal/api"
	"github.com/BTreeMap/QuitPrep/internal/catalog"
	"github.com/BTreeMap/QuitPrep/internal/models"
	"github.com/BTreeMap/QuitPrep/internal/selector"
	"github.com/BTreeMap/QuitPrep/internal/session"
	"github.com/BTreeMap/QuitPrep/internal/store"
)

// CatalogCSV renders a catalog CSV from rows of
// (cluster, exclusion, prerequisite) triples. Formulations and verbs are
// generated from the row index.
func CatalogCSV(rows [][3]string) string {
	var b strings.Builder
	b.WriteString("Cluster,Exclusion,Prerequisite,Formulation Session,Formulation Email,Verb\n")
	for i, row := range rows {
		idx := strconv.Itoa(i)
		b.WriteString(row[0] + "," + row[1] + "," + row[2] +
			",session formulation " + idx +
			",email formulation " + idx +
			",verb " + idx + "\n")
	}
	return b.String()
}

// NewTestCatalog parses a catalog from (cluster, exclusion, prerequisite)
// rows and fails the test on error.
func NewTestCatalog(t *testing.T, rows [][3]string) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse(strings.NewReader(CatalogCSV(rows)))
	if err != nil {
		t.Fatalf("failed to parse test catalog: %v", err)
	}
	return cat
}

// NewSmallCatalog returns the canonical three-activity catalog used across
// selection tests: activity 0 (cluster 1), activity 1 (cluster 1, excludes
// 2), activity 2 (cluster 2, prerequisite 0).
func NewSmallCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	return NewTestCatalog(t, [][3]string{
		{"1", "", ""},
		{"1", "2", ""},
		{"2", "", "0"},
	})
}

// SeedParticipant inserts an identity record and fails the test on error.
func SeedParticipant(t *testing.T, st store.Store, prolificID, name string) {
	t.Helper()
	err := st.SaveParticipant(models.Participant{
		ProlificID:   prolificID,
		Name:         name,
		RegisteredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to seed participant %s: %v", prolificID, err)
	}
}

// SeedResponse inserts one session response fact and fails the test on error.
func SeedResponse(t *testing.T, st store.Store, prolificID string, sessionNum int, responseType, value string) {
	t.Helper()
	err := st.AddSessionResponse(models.SessionResponse{
		ProlificID:    prolificID,
		SessionNum:    sessionNum,
		ResponseType:  responseType,
		ResponseValue: value,
		Time:          time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to seed %s response for %s: %v", responseType, prolificID, err)
	}
}

// SeedAssignment records an activity assignment (activity and cluster index
// facts) for a participant's session.
func SeedAssignment(t *testing.T, st store.Store, prolificID string, sessionNum, activityIndex, clusterIndex int) {
	t.Helper()
	SeedResponse(t, st, prolificID, sessionNum, models.ResponseTypeActivityNewIndex, strconv.Itoa(activityIndex))
	SeedResponse(t, st, prolificID, sessionNum, models.ResponseTypeClusterNewIndex, strconv.Itoa(clusterIndex))
}

// SeededRand returns a deterministic random source for selection tests.
func SeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

// NewTestHandler builds an action handler over an in-memory store, the given
// catalog, and a deterministic random source. The mailer is nil.
func NewTestHandler(t *testing.T, cat *catalog.Catalog) (*actions.Handler, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	h := actions.NewHandler(
		st,
		session.NewResolver(st, cat),
		selector.NewSelector(st, cat, selector.WithRand(SeededRand(1))),
		nil,
	)
	return h, st
}

// NewTestServer creates an API server with in-memory dependencies.
func NewTestServer(t *testing.T, cat *catalog.Catalog) (*api.Server, *store.InMemoryStore) {
	t.Helper()
	h, st := NewTestHandler(t, cat)
	return api.NewServer(h), st
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}
