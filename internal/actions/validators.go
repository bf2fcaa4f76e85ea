// Package actions implements the operation set the dialogue engine invokes.
//
// This file holds the form-field validators. Validation failures are
// recoverable by design: the slot is cleared and, where the input was a
// genuine attempt, a canned re-prompt is returned. A value that arrives
// while the last bot prompt was a different question is discarded silently,
// since it cannot be an answer to this field.
package actions

import (
	"strings"

	"github.com/BTreeMap/QuitPrep/internal/models"
)

// Validation constants for free-text fields
const (
	// MinExperienceLength is the minimum length for the activity
	// experience answer, unless the participant writes "none".
	MinExperienceLength = 10
	// MinExperienceModLength is the minimum length for the modification
	// variant of the experience answer.
	MinExperienceModLength = 5
	// NoneToken short-circuits the length requirement (case-insensitive,
	// anywhere in the value).
	NoneToken = "none"
)

// ValidateUserName validates the captured participant name.
func (h *Handler) ValidateUserName(value, lastUtterance string) models.ActionResult {
	if lastUtterance != UtterAskUserName {
		return models.ActionResult{}.WithEvents(models.SlotSet(models.SlotUserName, nil))
	}
	if len(value) < 1 {
		return models.ActionResult{}.
			WithResponse(UtterLongerName).
			WithEvents(models.SlotSet(models.SlotUserName, nil))
	}
	return models.ActionResult{}.WithEvents(models.SlotSet(models.SlotUserName, value))
}

// ValidateActivityExperience validates the free-text activity experience.
func (h *Handler) ValidateActivityExperience(value, lastUtterance string) models.ActionResult {
	return validateExperienceField(value, lastUtterance, UtterAskExperience, models.SlotActivityExperience, MinExperienceLength)
}

// ValidateActivityExperienceMod validates the modification variant of the
// activity experience, with a lower length requirement.
func (h *Handler) ValidateActivityExperienceMod(value, lastUtterance string) models.ActionResult {
	return validateExperienceField(value, lastUtterance, UtterAskExperienceMod, models.SlotActivityExperienceMod, MinExperienceModLength)
}

func validateExperienceField(value, lastUtterance, expectedUtterance, slot string, minLength int) models.ActionResult {
	if lastUtterance != expectedUtterance {
		return models.ActionResult{}.WithEvents(models.SlotSet(slot, nil))
	}
	if len(value) >= minLength || strings.Contains(strings.ToLower(value), NoneToken) {
		return models.ActionResult{}.WithEvents(models.SlotSet(slot, value))
	}
	return models.ActionResult{}.
		WithResponse(UtterProvideMoreDetail).
		WithEvents(models.SlotSet(slot, nil))
}
