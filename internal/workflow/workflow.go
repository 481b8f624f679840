// Package workflow is the per-message lead lifecycle:
//
//	New -> Assigned -> Decided
//
// Decided is terminal and only reachable by applications. Transitions are
// pure: they take the current state and return the next one plus the
// effects that make it real.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/lalith-99/leaddesk/internal/view"
)

type Stage int

const (
	StageNew Stage = iota
	StageAssigned
	StageDecided
)

func (s Stage) String() string {
	switch s {
	case StageNew:
		return "new"
	case StageAssigned:
		return "assigned"
	case StageDecided:
		return "decided"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageOf derives the stage from what the message carries.
func StageOf(state models.MessageState) Stage {
	switch {
	case state.IsDecided():
		return StageDecided
	case state.IsAssigned():
		return StageAssigned
	}
	return StageNew
}

var (
	ErrAlreadyAssigned = errors.New("message is already assigned")
	ErrTerminal        = errors.New("message already has a decision")
	ErrAlreadyDecided  = ErrTerminal
	ErrNotApplication  = errors.New("only applications take a decision")
	ErrInvalidOutcome  = errors.New("invalid decision outcome")
	ErrMissingAssignee = errors.New("no assignee selected")
)

// Transition is the result of a state change.
type Transition struct {
	State   models.MessageState
	Effects []Effect
}

// Assign hands a New message to assignee. It never replaces an existing
// assignment and refuses decided messages.
func Assign(state models.MessageState, assignee, actor string, now time.Time) (Transition, error) {
	if strings.TrimSpace(assignee) == "" {
		return Transition{}, ErrMissingAssignee
	}
	switch StageOf(state) {
	case StageAssigned:
		return Transition{}, ErrAlreadyAssigned
	case StageDecided:
		return Transition{}, ErrTerminal
	}

	next := state
	next.Assignment = &models.AssignmentInfo{AssignedTo: assignee, AssignedBy: actor}

	record := models.Assignment{
		Channel:    state.Ref.Channel,
		MessageTS:  state.Ref.TS,
		Category:   state.Category,
		AssignedTo: assignee,
		AssignedBy: actor,
		AssignedAt: now.UTC(),
	}

	return Transition{
		State: next,
		Effects: []Effect{
			PersistAssignment{Assignment: record},
			UpdateView{State: next},
			DirectMessage{UserID: assignee, Text: assignedText(next, actor)},
			ForwardAssignment{Assignment: record},
		},
	}, nil
}

// Decide records outcome on an application from the countersign flow. The
// decision only lives in the rendered message.
func Decide(state models.MessageState, outcome models.Outcome, actor string) (Transition, error) {
	if !outcome.Valid() {
		return Transition{}, fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	if state.Category != models.CategoryApplications {
		return Transition{}, ErrNotApplication
	}
	if StageOf(state) == StageDecided {
		return Transition{}, ErrAlreadyDecided
	}

	next := state
	next.Decision = &models.Decision{Outcome: outcome, By: actor}
	return Transition{
		State:   next,
		Effects: []Effect{UpdateView{State: next}},
	}, nil
}

// DecideDirect is Decide for the approve/reject buttons. It also tries to
// tell the applicant; that effect is best-effort.
func DecideDirect(state models.MessageState, outcome models.Outcome, actor string) (Transition, error) {
	tr, err := Decide(state, outcome, actor)
	if err != nil {
		return Transition{}, err
	}
	if email := strings.TrimSpace(state.Contact.Email); email != "" {
		tr.Effects = append(tr.Effects, NotifyApplicant{
			Email: email,
			Text:  applicantText(outcome),
		})
	}
	return tr, nil
}

// Reply posts in the message thread. It is valid in every stage and does
// not change state.
func Reply(ref models.MessageRef, actor, text string) Transition {
	return Transition{
		Effects: []Effect{ThreadReply{
			Ref:  ref,
			Text: fmt.Sprintf("<@%s> replied: %s", actor, strings.TrimSpace(text)),
		}},
	}
}

// SavePreferences stores prefs for user and refreshes their home tab.
func SavePreferences(userID string, prefs models.Preferences) Transition {
	return Transition{
		Effects: []Effect{
			PersistPreferences{UserID: userID, Preferences: prefs},
			PublishHome{UserID: userID},
		},
	}
}

func assignedText(state models.MessageState, actor string) string {
	return fmt.Sprintf("<@%s> assigned you a new %s lead from %s. <%s|Open the message>",
		actor, view.CategoryLabel(state.Category), contactLabel(state.Contact),
		view.MessageLink(state.Ref.Channel, state.Ref.TS))
}

func applicantText(outcome models.Outcome) string {
	switch outcome {
	case models.OutcomeRejected:
		return "Thank you for your application. Unfortunately we cannot offer you a place at this time."
	default:
		return "Good news: your application has been accepted. We will be in touch with the next steps."
	}
}

func contactLabel(c models.Contact) string {
	name := c.Name
	if name == "" {
		name = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	switch {
	case name != "" && c.Email != "":
		return fmt.Sprintf("%s (%s)", name, c.Email)
	case name != "":
		return name
	case c.Email != "":
		return c.Email
	}
	return "an anonymous visitor"
}
