// Package store provides storage backends for QuitPrep.
//
// Two record collections are persisted: participant identity records (users)
// and per-participant-per-session response facts (sessiondata). SQLite and
// PostgreSQL backends are provided, plus an in-memory store for tests.
package store

import (
	"sort"
	"sync"

	"github.com/BTreeMap/QuitPrep/internal/models"
)

// Store is the persistence interface shared by all backends.
type Store interface {
	// SaveParticipant inserts the identity record. A second insert for the
	// same prolific id fails with models.ErrParticipantExists.
	SaveParticipant(p models.Participant) error
	// GetParticipant returns the identity record, or nil if none exists.
	GetParticipant(prolificID string) (*models.Participant, error)

	// AddSessionResponse appends one response fact.
	AddSessionResponse(r models.SessionResponse) error
	// GetSessionResponse returns the most recent fact for the key, or nil.
	GetSessionResponse(prolificID string, sessionNum int, responseType string) (*models.SessionResponse, error)
	// HasSessionData reports whether any fact exists for the session.
	HasSessionData(prolificID string, sessionNum int) (bool, error)

	// ActivityHistory returns the activity indices previously assigned to
	// the participant, in insertion order.
	ActivityHistory(prolificID string) ([]int, error)
	// ResponseValueCounts counts, across all participants, how often each
	// integer value was recorded for the response type. Used for the
	// global fairness weighting.
	ResponseValueCounts(responseType string) (map[int]int, error)

	Close() error
}

// InMemoryStore is a mutex-guarded in-memory Store for tests.
type InMemoryStore struct {
	mu           sync.Mutex
	participants map[string]models.Participant
	responses    []models.SessionResponse
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{participants: make(map[string]models.Participant)}
}

func (s *InMemoryStore) SaveParticipant(p models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.ProlificID]; ok {
		return models.ErrParticipantExists
	}
	s.participants[p.ProlificID] = p
	return nil
}

func (s *InMemoryStore) GetParticipant(prolificID string) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[prolificID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *InMemoryStore) AddSessionResponse(r models.SessionResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
	return nil
}

func (s *InMemoryStore) GetSessionResponse(prolificID string, sessionNum int, responseType string) (*models.SessionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.responses) - 1; i >= 0; i-- {
		r := s.responses[i]
		if r.ProlificID == prolificID && r.SessionNum == sessionNum && r.ResponseType == responseType {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) HasSessionData(prolificID string, sessionNum int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.responses {
		if r.ProlificID == prolificID && r.SessionNum == sessionNum {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) ActivityHistory(prolificID string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var history []int
	for _, r := range s.responses {
		if r.ProlificID == prolificID && r.ResponseType == models.ResponseTypeActivityNewIndex {
			if n, ok := parseIndexValue(r.ResponseValue); ok {
				history = append(history, n)
			}
		}
	}
	return history, nil
}

func (s *InMemoryStore) ResponseValueCounts(responseType string) (map[int]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[int]int)
	for _, r := range s.responses {
		if r.ResponseType == responseType {
			if n, ok := parseIndexValue(r.ResponseValue); ok {
				counts[n]++
			}
		}
	}
	return counts, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

// Responses returns a copy of all stored responses sorted by participant,
// session, and type (for tests).
func (s *InMemoryStore) Responses() []models.SessionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SessionResponse, len(s.responses))
	copy(out, s.responses)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProlificID != out[j].ProlificID {
			return out[i].ProlificID < out[j].ProlificID
		}
		if out[i].SessionNum != out[j].SessionNum {
			return out[i].SessionNum < out[j].SessionNum
		}
		return out[i].ResponseType < out[j].ResponseType
	})
	return out
}
