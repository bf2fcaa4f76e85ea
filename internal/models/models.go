// Package models defines the core data structures for QuitPrep.
//
// It includes the persistent record types (participants and session
// responses), the session-resume and activity-selection result types, and the
// response-type vocabulary shared across modules.
package models

import (
	"errors"
	"time"
)

// Response types recorded in the sessiondata table. Each session writes at
// most one row per (participant, session, type).
const (
	ResponseTypeMood             = "mood"
	ResponseTypeState1           = "state_1"
	ResponseTypeState2           = "state_2"
	ResponseTypeState3           = "state_3"
	ResponseTypeState4           = "state_4"
	ResponseTypeState5           = "state_5"
	ResponseTypeState6           = "state_6"
	ResponseTypeState7           = "state_7"
	ResponseTypeState8           = "state_8"
	ResponseTypeState9           = "state_9"
	ResponseTypeStateBusy        = "state_busy"
	ResponseTypeStateEnergy      = "state_energy"
	ResponseTypeActivityNewIndex = "activity_new_index"
	ResponseTypeClusterNewIndex  = "cluster_new_index"
	ResponseTypeEffort           = "effort"
	ResponseTypeExperience       = "activity_experience_slot"
	ResponseTypeExperienceMod    = "activity_experience_mod_slot"
	ResponseTypeDropout          = "dropout_response"
)

// Study-wide constants.
const (
	// FinalSessionNum is the last session of the intervention program.
	FinalSessionNum = 5
	// DefaultNameSentinel is stored as the participant name when name
	// extraction failed. Resume reports such names as unknown.
	DefaultNameSentinel = "default"
)

// Error variables for better error handling and testability
var (
	// ErrNoEligibleActivity indicates the exclusion and prerequisite filters
	// left no activity to choose from.
	ErrNoEligibleActivity = errors.New("no eligible activity remaining")
	// ErrParticipantExists indicates an identity record already exists for
	// the participant. Duplicate inserts are rejected, never merged.
	ErrParticipantExists = errors.New("participant already registered")
	ErrEmptyProlificID   = errors.New("prolific id cannot be empty")
	ErrInvalidSessionNum = errors.New("session number must be positive")
)

// Participant is the identity record created at the end of session 1.
type Participant struct {
	ProlificID   string    `json:"prolific_id"`
	Name         string    `json:"name"`
	RegisteredAt time.Time `json:"time"`
}

// SessionResponse is one append-only fact recorded at a session checkpoint.
type SessionResponse struct {
	ProlificID    string    `json:"prolific_id"`
	SessionNum    int       `json:"session_num"`
	ResponseType  string    `json:"response_type"`
	ResponseValue string    `json:"response_value"`
	Time          time.Time `json:"time"`
}

// ResumeState carries the continuation state for a session that may be
// started: what the participant reported last time and how to address them.
type ResumeState struct {
	PriorMood         string `json:"prior_mood"`
	PriorActivityVerb string `json:"prior_activity_verb"`
	UserName          string `json:"user_name"`
	UserNameKnown     bool   `json:"user_name_known"`
}

// SessionLoadResult is the outcome of the session resume protocol. Resume is
// nil for session 1 (fresh start) and whenever Loaded is false.
type SessionLoadResult struct {
	Loaded bool         `json:"loaded"`
	Resume *ResumeState `json:"resume,omitempty"`
}

// ActivityAssignment is the result of the weighted activity selection.
type ActivityAssignment struct {
	ActivityIndex      int    `json:"activity_index"`
	ClusterIndex       int    `json:"cluster_index"`
	FormulationSession string `json:"formulation_session"`
	FormulationEmail   string `json:"formulation_email"`
	Verb               string `json:"verb"`
}
