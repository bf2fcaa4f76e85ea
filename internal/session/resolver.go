// Package session implements the session resume protocol: the gating logic
// that decides whether a participant may (re-)enter a numbered session, and
// the reconstruction of continuation state from the store.
package session

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/BTreeMap/QuitPrep/internal/catalog"
	"github.com/BTreeMap/QuitPrep/internal/models"
	"github.com/BTreeMap/QuitPrep/internal/store"
)

// Resolver evaluates session entry for participants.
type Resolver struct {
	store   store.Store
	catalog *catalog.Catalog
}

// NewResolver creates a Resolver over the given store and catalog.
func NewResolver(st store.Store, cat *catalog.Catalog) *Resolver {
	return &Resolver{store: st, catalog: cat}
}

// Resolve decides whether the participant may start the numbered session.
//
// Session 1 is open exactly while no identity record exists: the record is
// written only after the name and mood steps, so its presence means the
// first session was already done. Later sessions require the identity
// record, a state_5 marker for the previous session (the previous session
// reached its terminal checkpoint), and no data at all for the requested
// session (replay guard).
//
// Store errors are returned alongside a closed result; callers that gate
// entry treat any error as not loaded.
func (r *Resolver) Resolve(prolificID string, sessionNum int) (models.SessionLoadResult, error) {
	closed := models.SessionLoadResult{Loaded: false}

	if prolificID == "" {
		return closed, models.ErrEmptyProlificID
	}
	if sessionNum < 1 {
		return closed, models.ErrInvalidSessionNum
	}

	participant, err := r.store.GetParticipant(prolificID)
	if err != nil {
		slog.Error("Resolver.Resolve: participant lookup failed", "error", err, "prolificID", prolificID)
		return closed, fmt.Errorf("failed to resolve session %d: %w", sessionNum, err)
	}

	if sessionNum == 1 {
		loaded := participant == nil
		slog.Debug("Resolver.Resolve: first session", "prolificID", prolificID, "loaded", loaded)
		return models.SessionLoadResult{Loaded: loaded}, nil
	}

	if participant == nil {
		slog.Debug("Resolver.Resolve: no identity record, session closed", "prolificID", prolificID, "session", sessionNum)
		return closed, nil
	}

	marker, err := r.store.GetSessionResponse(prolificID, sessionNum-1, models.ResponseTypeState5)
	if err != nil {
		slog.Error("Resolver.Resolve: completion marker lookup failed", "error", err, "prolificID", prolificID)
		return closed, fmt.Errorf("failed to resolve session %d: %w", sessionNum, err)
	}
	if marker == nil {
		slog.Debug("Resolver.Resolve: previous session incomplete", "prolificID", prolificID, "session", sessionNum)
		return closed, nil
	}

	started, err := r.store.HasSessionData(prolificID, sessionNum)
	if err != nil {
		slog.Error("Resolver.Resolve: replay check failed", "error", err, "prolificID", prolificID)
		return closed, fmt.Errorf("failed to resolve session %d: %w", sessionNum, err)
	}
	if started {
		slog.Debug("Resolver.Resolve: session already started", "prolificID", prolificID, "session", sessionNum)
		return closed, nil
	}

	resume, err := r.resumeState(participant, sessionNum)
	if err != nil {
		return closed, err
	}
	slog.Debug("Resolver.Resolve: session loaded", "prolificID", prolificID, "session", sessionNum)
	return models.SessionLoadResult{Loaded: true, Resume: resume}, nil
}

// resumeState gathers the prior session's mood and assigned activity verb.
func (r *Resolver) resumeState(participant *models.Participant, sessionNum int) (*models.ResumeState, error) {
	state := &models.ResumeState{
		UserName:      participant.Name,
		UserNameKnown: participant.Name != models.DefaultNameSentinel,
	}

	mood, err := r.store.GetSessionResponse(participant.ProlificID, sessionNum-1, models.ResponseTypeMood)
	if err != nil {
		slog.Error("Resolver.resumeState: mood lookup failed", "error", err, "prolificID", participant.ProlificID)
		return nil, fmt.Errorf("failed to load prior mood: %w", err)
	}
	if mood != nil {
		state.PriorMood = mood.ResponseValue
	}

	actIndex, err := r.priorActivityIndex(participant.ProlificID, sessionNum-1)
	if err != nil {
		return nil, err
	}
	if actIndex >= 0 {
		act, err := r.catalog.Activity(actIndex)
		if err != nil {
			slog.Error("Resolver.resumeState: stored activity index not in catalog", "error", err, "prolificID", participant.ProlificID, "index", actIndex)
			return nil, fmt.Errorf("failed to resolve prior activity: %w", err)
		}
		state.PriorActivityVerb = act.Verb
	}

	return state, nil
}

// priorActivityIndex returns the activity assigned in the given session, or
// -1 if none was recorded.
func (r *Resolver) priorActivityIndex(prolificID string, sessionNum int) (int, error) {
	resp, err := r.store.GetSessionResponse(prolificID, sessionNum, models.ResponseTypeActivityNewIndex)
	if err != nil {
		slog.Error("Resolver.priorActivityIndex: lookup failed", "error", err, "prolificID", prolificID)
		return -1, fmt.Errorf("failed to load prior activity index: %w", err)
	}
	if resp == nil || resp.ResponseValue == "" {
		return -1, nil
	}
	index, err := strconv.Atoi(resp.ResponseValue)
	if err != nil {
		slog.Error("Resolver.priorActivityIndex: malformed index value", "error", err, "value", resp.ResponseValue)
		return -1, fmt.Errorf("malformed prior activity index %q: %w", resp.ResponseValue, err)
	}
	return index, nil
}
