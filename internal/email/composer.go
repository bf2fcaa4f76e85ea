// Package email renders and sends the activity reminder message.
//
// This file implements the template side: the final session uses a
// different template and drops the "before the next session" phrasing from
// the activity formulation, since no further session follows.
package email

import (
	"fmt"
	"strings"
	"text/template"

	_ "embed"

	"github.com/BTreeMap/QuitPrep/internal/models"
)

//go:embed templates/reminder_notlast.txt
var reminderNotLast string

//go:embed templates/reminder_last.txt
var reminderLast string

var (
	tmplNotLast = template.Must(template.New("reminder_notlast").Parse(reminderNotLast))
	tmplLast    = template.Must(template.New("reminder_last").Parse(reminderLast))
)

// templateData carries the reminder placeholders.
type templateData struct {
	PersonName string
	Activity   string
}

// RenderReminder renders the reminder body for the given session. The
// formulation is the email-channel activity text from the catalog.
func RenderReminder(displayName, formulation string, sessionNum, finalSessionNum int) (string, error) {
	tmpl := tmplNotLast
	if sessionNum == finalSessionNum {
		tmpl = tmplLast
		formulation = stripNextSessionPhrasing(formulation)
	}

	var b strings.Builder
	data := templateData{PersonName: displayName, Activity: formulation}
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render reminder template: %w", err)
	}
	return b.String(), nil
}

// stripNextSessionPhrasing removes references to a next session from the
// activity formulation for the terminal session.
func stripNextSessionPhrasing(s string) string {
	s = strings.ReplaceAll(s, " before the next session,", "")
	s = strings.ReplaceAll(s, " before the next session", "")
	s = strings.ReplaceAll(s, "Before the next session, I", "I")
	return s
}

// DisplayName returns the name to address the participant with, falling
// back to a neutral label for missing or failed-extraction names.
func DisplayName(name string) string {
	if name == "" || name == models.DefaultNameSentinel {
		return "Study Participant"
	}
	return name
}
