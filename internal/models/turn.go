// Package models defines the core data structures for QuitPrep.
//
// This file models the conversational turn: the typed slot context the
// dialogue engine supplies with each action invocation, and the events and
// bot responses the action returns.
package models

// Slot names used on the wire between the dialogue engine and QuitPrep.
const (
	SlotSessionNum            = "session_num"
	SlotSessionLoaded         = "session_loaded"
	SlotUserName              = "user_name_slot"
	SlotUserNameNotFirst      = "user_name_slot_not_first"
	SlotUserNameExists        = "user_name_exists"
	SlotMoodPrevSession       = "mood_prev_session"
	SlotActivityPrevVerb      = "activity_prev_verb"
	SlotMood                  = "mood"
	SlotStateBusy             = "state_busy"
	SlotStateEnergy           = "state_energy"
	SlotEffort                = "effort"
	SlotActivityExperience    = "activity_experience_slot"
	SlotActivityExperienceMod = "activity_experience_mod_slot"
	SlotDropoutResponse       = "dropout_response"
	SlotActivityNewIndex      = "activity_new_index"
	SlotClusterNewIndex       = "cluster_new_index"
	SlotActivityNewVerb       = "activity_new_verb"
	SlotFormulationSession    = "activity_formulation_new_session"
	SlotFormulationEmail      = "activity_formulation_new_email"
)

// TurnContext is the typed view of the engine's slot store for one turn.
// The API layer builds it from the wire tracker; actions never touch the raw
// slot map.
type TurnContext struct {
	SenderID      string
	LastUtterance string // name of the most recently sent bot prompt

	SessionNum            string // kept as a string slot; empty means unset
	UserName              string
	Mood                  string
	State1                string
	State2                string
	State3                string
	State4                string
	State5                string
	State6                string
	State7                string
	State8                string
	State9                string
	StateBusy             string
	StateEnergy           string
	Effort                string
	ActivityExperience    string
	ActivityExperienceMod string
	DropoutResponse       string
	ActivityNewIndex      string
	ClusterNewIndex       string
	FormulationEmail      string
}

// TurnContextFromSlots builds a TurnContext from a wire-level slot map.
func TurnContextFromSlots(senderID, lastUtterance string, slots map[string]string) TurnContext {
	return TurnContext{
		SenderID:              senderID,
		LastUtterance:         lastUtterance,
		SessionNum:            slots[SlotSessionNum],
		UserName:              slots[SlotUserName],
		Mood:                  slots[SlotMood],
		State1:                slots[ResponseTypeState1],
		State2:                slots[ResponseTypeState2],
		State3:                slots[ResponseTypeState3],
		State4:                slots[ResponseTypeState4],
		State5:                slots[ResponseTypeState5],
		State6:                slots[ResponseTypeState6],
		State7:                slots[ResponseTypeState7],
		State8:                slots[ResponseTypeState8],
		State9:                slots[ResponseTypeState9],
		StateBusy:             slots[SlotStateBusy],
		StateEnergy:           slots[SlotStateEnergy],
		Effort:                slots[SlotEffort],
		ActivityExperience:    slots[SlotActivityExperience],
		ActivityExperienceMod: slots[SlotActivityExperienceMod],
		DropoutResponse:       slots[SlotDropoutResponse],
		ActivityNewIndex:      slots[SlotActivityNewIndex],
		ClusterNewIndex:       slots[SlotClusterNewIndex],
		FormulationEmail:      slots[SlotFormulationEmail],
	}
}

// SlotValue is one named value scheduled for a checkpoint write-back.
type SlotValue struct {
	Type  string
	Value string
}

// ExperienceSlots returns the interim activity-experience checkpoint batch in
// write order.
func (tc TurnContext) ExperienceSlots() []SlotValue {
	return []SlotValue{
		{ResponseTypeEffort, tc.Effort},
		{ResponseTypeExperience, tc.ActivityExperience},
		{ResponseTypeExperienceMod, tc.ActivityExperienceMod},
		{ResponseTypeDropout, tc.DropoutResponse},
	}
}

// SessionSlots returns the full end-of-session checkpoint batch in write
// order. state_5 doubles as the resume protocol's completion marker for the
// following session.
func (tc TurnContext) SessionSlots() []SlotValue {
	return []SlotValue{
		{ResponseTypeMood, tc.Mood},
		{ResponseTypeState1, tc.State1},
		{ResponseTypeState2, tc.State2},
		{ResponseTypeState3, tc.State3},
		{ResponseTypeState4, tc.State4},
		{ResponseTypeState5, tc.State5},
		{ResponseTypeState6, tc.State6},
		{ResponseTypeState7, tc.State7},
		{ResponseTypeState8, tc.State8},
		{ResponseTypeState9, tc.State9},
		{ResponseTypeStateBusy, tc.StateBusy},
		{ResponseTypeStateEnergy, tc.StateEnergy},
		{ResponseTypeActivityNewIndex, tc.ActivityNewIndex},
		{ResponseTypeClusterNewIndex, tc.ClusterNewIndex},
	}
}

// Event is a dialogue-engine event emitted by an action.
type Event struct {
	Event string `json:"event"`
	Name  string `json:"name,omitempty"`
	Key   string `json:"key,omitempty"`
	Value any    `json:"value,omitempty"`
}

// SlotSet returns an event assigning value to the named slot. A nil value
// clears the slot.
func SlotSet(key string, value any) Event {
	return Event{Event: "slot", Key: key, Value: value}
}

// FollowupAction returns an event instructing the engine to run the named
// action next.
func FollowupAction(name string) Event {
	return Event{Event: "followup", Name: name}
}

// SessionStarted returns the event opening a new engine session.
func SessionStarted() Event {
	return Event{Event: "session_started"}
}

// ActionExecuted returns an event recording that the named action ran.
func ActionExecuted(name string) Event {
	return Event{Event: "action_executed", Name: name}
}

// BotResponse names a canned utterance template the engine should send.
type BotResponse struct {
	Template string `json:"template"`
}

// ActionResult is the payload returned to the dialogue engine for one action
// invocation.
type ActionResult struct {
	Events    []Event       `json:"events"`
	Responses []BotResponse `json:"responses"`
}

// WithEvents appends events to the result and returns it for chaining.
func (r ActionResult) WithEvents(events ...Event) ActionResult {
	r.Events = append(r.Events, events...)
	return r
}

// WithResponse appends an utterance template to the result.
func (r ActionResult) WithResponse(template string) ActionResult {
	r.Responses = append(r.Responses, BotResponse{Template: template})
	return r
}
