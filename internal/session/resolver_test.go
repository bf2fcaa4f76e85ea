package session_test

import (
	"testing"

	"github.com/BTreeMap/QuitPrep/internal/models"
	"github.com/BTreeMap/QuitPrep/internal/session"
	"github.com/BTreeMap/QuitPrep/internal/store"
	"github.com/BTreeMap/QuitPrep/internal/testutil"
)

const pid = "5f970a74069a250711aaa695"

func newResolver(t *testing.T) (*session.Resolver, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	return session.NewResolver(st, testutil.NewSmallCatalog(t)), st
}

func TestResolveFirstSession(t *testing.T) {
	r, st := newResolver(t)

	res, err := r.Resolve(pid, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Loaded {
		t.Error("expected fresh participant to load session 1")
	}
	if res.Resume != nil {
		t.Error("expected no resume state for session 1")
	}

	// Once the identity record exists, session 1 is closed.
	testutil.SeedParticipant(t, st, pid, "Alex")
	res, err = r.Resolve(pid, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Loaded {
		t.Error("expected session 1 to be closed after identity record exists")
	}
}

func TestResolveLaterSessionRequiresIdentity(t *testing.T) {
	r, _ := newResolver(t)

	res, err := r.Resolve(pid, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Loaded {
		t.Error("expected session 2 to be closed without an identity record")
	}
}

func TestResolveLaterSessionRequiresCompletionMarker(t *testing.T) {
	r, st := newResolver(t)
	testutil.SeedParticipant(t, st, pid, "Alex")

	// No state_5 fact for session 1: previous session never finished.
	res, err := r.Resolve(pid, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Loaded {
		t.Error("expected session 2 to be closed without a state_5 marker for session 1")
	}
}

func TestResolveReplayGuard(t *testing.T) {
	r, st := newResolver(t)
	testutil.SeedParticipant(t, st, pid, "Alex")
	testutil.SeedResponse(t, st, pid, 1, models.ResponseTypeState5, "4")

	res, err := r.Resolve(pid, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Loaded {
		t.Fatal("expected session 2 to load")
	}

	// Any row for session 2 closes it, regardless of type.
	testutil.SeedResponse(t, st, pid, 2, models.ResponseTypeEffort, "7")
	res, err = r.Resolve(pid, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Loaded {
		t.Error("expected replay guard to close session 2")
	}
}

func TestResolveResumeState(t *testing.T) {
	r, st := newResolver(t)
	testutil.SeedParticipant(t, st, pid, "Alex")
	testutil.SeedResponse(t, st, pid, 1, models.ResponseTypeState5, "4")
	testutil.SeedResponse(t, st, pid, 1, models.ResponseTypeMood, "content")
	testutil.SeedAssignment(t, st, pid, 1, 1, 1)

	res, err := r.Resolve(pid, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Loaded || res.Resume == nil {
		t.Fatalf("expected loaded session with resume state, got %+v", res)
	}
	if res.Resume.PriorMood != "content" {
		t.Errorf("expected prior mood %q, got %q", "content", res.Resume.PriorMood)
	}
	if res.Resume.PriorActivityVerb != "verb 1" {
		t.Errorf("expected prior activity verb %q, got %q", "verb 1", res.Resume.PriorActivityVerb)
	}
	if res.Resume.UserName != "Alex" || !res.Resume.UserNameKnown {
		t.Errorf("expected known user name Alex, got %+v", res.Resume)
	}
}

func TestResolveSentinelNameNotKnown(t *testing.T) {
	r, st := newResolver(t)
	testutil.SeedParticipant(t, st, pid, models.DefaultNameSentinel)
	testutil.SeedResponse(t, st, pid, 1, models.ResponseTypeState5, "4")

	res, err := r.Resolve(pid, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Loaded || res.Resume == nil {
		t.Fatalf("expected loaded session, got %+v", res)
	}
	if res.Resume.UserNameKnown {
		t.Error("expected sentinel name to be reported as unknown")
	}
	if res.Resume.UserName != models.DefaultNameSentinel {
		t.Errorf("expected sentinel name to be carried through, got %q", res.Resume.UserName)
	}
}

func TestResolveInvalidArguments(t *testing.T) {
	r, _ := newResolver(t)

	if _, err := r.Resolve("", 1); err == nil {
		t.Error("expected error for empty prolific id")
	}
	res, err := r.Resolve(pid, 0)
	if err == nil {
		t.Error("expected error for non-positive session number")
	}
	if res.Loaded {
		t.Error("expected closed result for invalid session number")
	}
}
