// Package actions implements the operation set the dialogue engine invokes
// at conversational checkpoints: session gating, checkpoint write-backs,
// activity selection, the reminder email, and the form-field validators.
//
// Every action consumes a typed TurnContext and produces an ActionResult
// (engine events plus canned utterances). Persistence failures never reach
// the participant: gating actions fail closed, write-backs log and move on,
// and unrecoverable failures fall back to a generic utterance followed by a
// dialogue restart.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/QuitPrep/internal/email"
	"github.com/BTreeMap/QuitPrep/internal/models"
	"github.com/BTreeMap/QuitPrep/internal/selector"
	"github.com/BTreeMap/QuitPrep/internal/session"
	"github.com/BTreeMap/QuitPrep/internal/store"
)

// Action names accepted on the webhook.
const (
	ActionSessionStart           = "action_session_start"
	ActionCheckNameSlot          = "action_check_nameslot"
	ActionEndDialog              = "action_end_dialog"
	ActionDefaultFallback        = "action_default_fallback_end_dialog"
	ActionLoadSessionFirst       = "action_load_session_first"
	ActionLoadSessionNotFirst    = "action_load_session_not_first"
	ActionSaveName               = "action_save_name_to_db"
	ActionSaveActivityExperience = "action_save_activity_experience"
	ActionSaveSession            = "action_save_session"
	ActionChooseActivity         = "action_choose_activity"
	ActionSendEmail              = "action_send_email"
	ActionValidateUserName       = "validate_user_name"
	ActionValidateExperience     = "validate_activity_experience"
	ActionValidateExperienceMod  = "validate_activity_experience_mod"
)

// Utterance templates referenced in action results.
const (
	UtterTimeout           = "utter_timeout"
	UtterMultipleOpenChats = "utter_multiple_open_chats"
	UtterCloseSession      = "utter_default_close_session"
	UtterLongerName        = "utter_longer_name"
	UtterProvideMoreDetail = "utter_provide_more_detail"

	UtterAskUserName      = "utter_ask_user_name_slot"
	UtterAskExperience    = "utter_ask_activity_experience_slot"
	UtterAskExperienceMod = "utter_ask_activity_experience_mod_slot"
)

// ErrUnknownAction is returned when the engine requests an action QuitPrep
// does not implement.
var ErrUnknownAction = errors.New("unknown action")

// ReminderSender submits the activity reminder for one session.
type ReminderSender interface {
	SendReminder(ctx context.Context, prolificID, displayName, formulation string, sessionNum int) error
}

// Handler executes actions against the store, resolver, selector, and mailer.
type Handler struct {
	store    store.Store
	resolver *session.Resolver
	selector *selector.Selector
	mailer   ReminderSender // nil when no SMTP host is configured
}

// NewHandler creates an action Handler.
func NewHandler(st store.Store, resolver *session.Resolver, sel *selector.Selector, mailer ReminderSender) *Handler {
	return &Handler{store: st, resolver: resolver, selector: sel, mailer: mailer}
}

// Dispatch runs the named action. The returned ActionResult is always safe
// to hand back to the engine; a non-nil error reports a degraded execution
// (logged by the caller) rather than an unusable result.
func (h *Handler) Dispatch(ctx context.Context, name string, tc models.TurnContext) (models.ActionResult, error) {
	slog.Debug("Handler.Dispatch: executing action", "action", name, "sender", tc.SenderID)
	switch name {
	case ActionSessionStart:
		return h.SessionStart(tc), nil
	case ActionCheckNameSlot:
		return h.CheckNameSlot(tc), nil
	case ActionEndDialog:
		return h.EndDialog(tc), nil
	case ActionDefaultFallback:
		return h.DefaultFallbackEndDialog(tc), nil
	case ActionLoadSessionFirst:
		return h.LoadSessionFirst(tc)
	case ActionLoadSessionNotFirst:
		return h.LoadSessionNotFirst(tc)
	case ActionSaveName:
		return h.SaveName(tc)
	case ActionSaveActivityExperience:
		return h.SaveActivityExperience(tc)
	case ActionSaveSession:
		return h.SaveSession(tc)
	case ActionChooseActivity:
		return h.ChooseActivity(tc)
	case ActionSendEmail:
		return h.SendEmail(ctx, tc)
	case ActionValidateUserName:
		return h.ValidateUserName(tc.UserName, tc.LastUtterance), nil
	case ActionValidateExperience:
		return h.ValidateActivityExperience(tc.ActivityExperience, tc.LastUtterance), nil
	case ActionValidateExperienceMod:
		return h.ValidateActivityExperienceMod(tc.ActivityExperienceMod, tc.LastUtterance), nil
	default:
		slog.Warn("Handler.Dispatch: unknown action", "action", name)
		return models.ActionResult{}, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
}

// SessionStart opens a fresh engine session. A non-empty session_num slot at
// this point means the previous session timed out mid-conversation; the
// participant is told so and the dialog is ended.
func (h *Handler) SessionStart(tc models.TurnContext) models.ActionResult {
	result := models.ActionResult{}.WithEvents(models.SessionStarted())
	if tc.SessionNum == "" {
		return result.WithEvents(models.ActionExecuted("action_listen"))
	}
	slog.Debug("Handler.SessionStart: stale session detected", "sender", tc.SenderID, "session_num", tc.SessionNum)
	return result.
		WithResponse(UtterTimeout).
		WithEvents(models.FollowupAction(ActionEndDialog))
}

// CheckNameSlot sanity-checks the captured name. A name containing
// "start_session" means a second browser window leaked an intent into the
// name slot; multi-word names are rejected and reset to the sentinel.
func (h *Handler) CheckNameSlot(tc models.TurnContext) models.ActionResult {
	if strings.Contains(tc.UserName, "start_session") {
		slog.Warn("Handler.CheckNameSlot: intent leaked into name slot", "sender", tc.SenderID)
		return models.ActionResult{}.
			WithResponse(UtterMultipleOpenChats).
			WithEvents(models.FollowupAction(ActionEndDialog))
	}
	if len(strings.Fields(tc.UserName)) == 1 {
		return models.ActionResult{}.WithEvents(models.SlotSet(models.SlotUserNameExists, true))
	}
	return models.ActionResult{}.WithEvents(
		models.SlotSet(models.SlotUserNameExists, false),
		models.SlotSet(models.SlotUserName, models.DefaultNameSentinel),
	)
}

// EndDialog cleanly terminates the dialog via the engine's restart action.
func (h *Handler) EndDialog(tc models.TurnContext) models.ActionResult {
	return models.ActionResult{}.WithEvents(models.FollowupAction("action_restart"))
}

// DefaultFallbackEndDialog is the generic unrecoverable-failure path: ask
// the participant to close the window, then restart.
func (h *Handler) DefaultFallbackEndDialog(tc models.TurnContext) models.ActionResult {
	return models.ActionResult{}.
		WithResponse(UtterCloseSession).
		WithEvents(models.FollowupAction(ActionEndDialog))
}

// LoadSessionFirst gates entry into session 1. Store errors fail closed.
func (h *Handler) LoadSessionFirst(tc models.TurnContext) (models.ActionResult, error) {
	res, err := h.resolver.Resolve(tc.SenderID, 1)
	if err != nil {
		slog.Error("Handler.LoadSessionFirst: resolve failed, failing closed", "error", err, "sender", tc.SenderID)
	}
	return models.ActionResult{}.WithEvents(models.SlotSet(models.SlotSessionLoaded, res.Loaded)), err
}

// LoadSessionNotFirst gates entry into sessions after the first and, when
// entry is allowed, restores the prior session's mood and activity verb.
// Store errors fail closed.
func (h *Handler) LoadSessionNotFirst(tc models.TurnContext) (models.ActionResult, error) {
	sessionNum, err := strconv.Atoi(tc.SessionNum)
	if err != nil {
		slog.Error("Handler.LoadSessionNotFirst: invalid session_num slot", "error", err, "value", tc.SessionNum)
		return closedSessionResult(), fmt.Errorf("invalid session_num slot %q: %w", tc.SessionNum, err)
	}

	res, err := h.resolver.Resolve(tc.SenderID, sessionNum)
	if err != nil {
		slog.Error("Handler.LoadSessionNotFirst: resolve failed, failing closed", "error", err, "sender", tc.SenderID)
		return closedSessionResult(), err
	}
	if !res.Loaded || res.Resume == nil {
		return closedSessionResult(), nil
	}

	return models.ActionResult{}.WithEvents(
		models.SlotSet(models.SlotUserNameNotFirst, res.Resume.UserName),
		models.SlotSet(models.SlotMoodPrevSession, res.Resume.PriorMood),
		models.SlotSet(models.SlotSessionLoaded, true),
		models.SlotSet(models.SlotActivityPrevVerb, res.Resume.PriorActivityVerb),
		models.SlotSet(models.SlotUserNameExists, res.Resume.UserNameKnown),
	), nil
}

// closedSessionResult is the fail-closed slot set for LoadSessionNotFirst.
func closedSessionResult() models.ActionResult {
	return models.ActionResult{}.WithEvents(
		models.SlotSet(models.SlotUserNameNotFirst, models.DefaultNameSentinel),
		models.SlotSet(models.SlotMoodPrevSession, ""),
		models.SlotSet(models.SlotSessionLoaded, false),
		models.SlotSet(models.SlotActivityPrevVerb, ""),
		models.SlotSet(models.SlotUserNameExists, false),
	)
}

// SaveName persists the identity record. This runs once, at the end of the
// name-and-mood steps of session 1; a duplicate insert is rejected by the
// store and logged, never merged.
func (h *Handler) SaveName(tc models.TurnContext) (models.ActionResult, error) {
	p := models.Participant{
		ProlificID:   tc.SenderID,
		Name:         tc.UserName,
		RegisteredAt: time.Now(),
	}
	if err := h.store.SaveParticipant(p); err != nil {
		if errors.Is(err, models.ErrParticipantExists) {
			slog.Warn("Handler.SaveName: duplicate identity record rejected", "sender", tc.SenderID)
			return models.ActionResult{}, nil
		}
		slog.Error("Handler.SaveName: failed to save identity record", "error", err, "sender", tc.SenderID)
		return models.ActionResult{}, err
	}
	return models.ActionResult{}, nil
}

// SaveActivityExperience persists the interim activity-experience batch.
func (h *Handler) SaveActivityExperience(tc models.TurnContext) (models.ActionResult, error) {
	return h.writeBatch(tc, tc.ExperienceSlots())
}

// SaveSession persists the full end-of-session batch, including the state_5
// completion marker the resume protocol keys on.
func (h *Handler) SaveSession(tc models.TurnContext) (models.ActionResult, error) {
	return h.writeBatch(tc, tc.SessionSlots())
}

// writeBatch appends one row per slot with a shared timestamp. Inserts are
// individual; a failure mid-batch leaves the earlier rows in place and is
// reported for logging only.
func (h *Handler) writeBatch(tc models.TurnContext, slots []models.SlotValue) (models.ActionResult, error) {
	sessionNum, err := strconv.Atoi(tc.SessionNum)
	if err != nil {
		slog.Error("Handler.writeBatch: invalid session_num slot", "error", err, "value", tc.SessionNum)
		return models.ActionResult{}, fmt.Errorf("invalid session_num slot %q: %w", tc.SessionNum, err)
	}

	now := time.Now()
	for _, slot := range slots {
		r := models.SessionResponse{
			ProlificID:    tc.SenderID,
			SessionNum:    sessionNum,
			ResponseType:  slot.Type,
			ResponseValue: slot.Value,
			Time:          now,
		}
		if err := h.store.AddSessionResponse(r); err != nil {
			slog.Error("Handler.writeBatch: write-back failed", "error", err, "sender", tc.SenderID, "type", slot.Type)
			return models.ActionResult{}, err
		}
	}
	slog.Debug("Handler.writeBatch: checkpoint persisted", "sender", tc.SenderID, "session", sessionNum, "rows", len(slots))
	return models.ActionResult{}, nil
}

// ChooseActivity draws the session's preparatory activity and publishes it
// to the engine slots. Selection failure falls back to the generic close
// utterance and ends the dialog.
func (h *Handler) ChooseActivity(tc models.TurnContext) (models.ActionResult, error) {
	assignment, err := h.selector.Choose(tc.SenderID)
	if err != nil {
		slog.Error("Handler.ChooseActivity: selection failed", "error", err, "sender", tc.SenderID)
		return h.DefaultFallbackEndDialog(tc), err
	}

	return models.ActionResult{}.WithEvents(
		models.SlotSet(models.SlotFormulationSession, assignment.FormulationSession),
		models.SlotSet(models.SlotFormulationEmail, assignment.FormulationEmail),
		models.SlotSet(models.SlotActivityNewIndex, strconv.Itoa(assignment.ActivityIndex)),
		models.SlotSet(models.SlotActivityNewVerb, assignment.Verb),
		models.SlotSet(models.SlotClusterNewIndex, strconv.Itoa(assignment.ClusterIndex)),
	), nil
}

// SendEmail submits the activity reminder for the session. A lost email is
// logged but never surfaced to the participant.
func (h *Handler) SendEmail(ctx context.Context, tc models.TurnContext) (models.ActionResult, error) {
	if h.mailer == nil {
		slog.Warn("Handler.SendEmail: no mailer configured, skipping reminder", "sender", tc.SenderID)
		return models.ActionResult{}, nil
	}

	sessionNum, err := strconv.Atoi(tc.SessionNum)
	if err != nil {
		slog.Error("Handler.SendEmail: invalid session_num slot", "error", err, "value", tc.SessionNum)
		return models.ActionResult{}, fmt.Errorf("invalid session_num slot %q: %w", tc.SessionNum, err)
	}

	displayName := ""
	if participant, err := h.store.GetParticipant(tc.SenderID); err != nil {
		slog.Warn("Handler.SendEmail: participant lookup failed, using fallback name", "error", err, "sender", tc.SenderID)
	} else if participant != nil {
		displayName = participant.Name
	}

	if err := h.mailer.SendReminder(ctx, tc.SenderID, displayName, tc.FormulationEmail, sessionNum); err != nil {
		slog.Error("Handler.SendEmail: reminder failed", "error", err, "sender", tc.SenderID)
		return models.ActionResult{}, err
	}
	return models.ActionResult{}, nil
}

// Ensure Mailer satisfies the consumer-side interface.
var _ ReminderSender = (*email.Mailer)(nil)
